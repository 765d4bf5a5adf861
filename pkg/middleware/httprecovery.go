package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/Meesho/BharatMLStack/iris/pkg/api"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// HTTPRecovery renders api.Error values attached to the context as their
// HTTP responses and turns handler panics into a 500 instead of a dropped
// connection.
func HTTPRecovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			respondForContextError(c)
			if r := recover(); r != nil {
				log.Error().Msgf("panic while handling %s: %v\n%s", c.Request.URL.Path, r, debug.Stack())
				c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("%v", r)})
				c.Abort()
			}
		}()
		c.Next()
	}
}

func respondForContextError(c *gin.Context) {
	if len(c.Errors) == 0 {
		return
	}
	var apiErr *api.Error
	if errors.As(c.Errors.Last().Err, &apiErr) {
		c.JSON(apiErr.StatusCode, gin.H{"error": apiErr.Message})
		c.Abort()
	}
}
