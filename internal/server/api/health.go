package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// healthProvider backs the liveness probe. Readiness of downstream stores is
// not checked here, a pod that can answer this is allowed to serve.
var healthProvider = func(context *gin.Context) {
	context.JSON(http.StatusOK, gin.H{"message": "pong"})
}
