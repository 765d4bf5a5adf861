package middlewares

import (
	"net/http"

	"github.com/Meesho/BharatMLStack/iris/pkg/api"
	"github.com/gin-gonic/gin"
)

const (
	healthPath = "/health"
)

// AuthMiddleware validates the caller and auth token headers on query routes
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Skip auth for health check
		if c.Request.URL.Path == healthPath {
			c.Next()
			return
		}

		requestContext, err := api.GetRequestContext(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			c.Abort()
			return
		}
		if !isAuthorized([]string{requestContext.AuthToken}) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid auth token"})
			c.Abort()
			return
		}
		c.Next()
	}
}
