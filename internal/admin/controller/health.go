package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func Health(ctx *gin.Context) {
	ctx.String(http.StatusOK, "Application is up")
}
