package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

var healthProvider = func(context *gin.Context) {
	context.JSON(http.StatusOK, gin.H{"message": "pong"})
}
