package document

import "github.com/gin-gonic/gin"

const DefaultVersion = 1

type Handler interface {
	Fetch(ctx *gin.Context)
	Scores(ctx *gin.Context)
}

func GetHandler(version int) Handler {
	switch version {
	case DefaultVersion:
		return InitV1Handler()
	default:
		return nil
	}
}
