package api

import (
	"github.com/Meesho/BharatMLStack/iris/internal/server/middlewares"
	"github.com/Meesho/BharatMLStack/iris/internal/serving/handlers/document"
	"github.com/Meesho/BharatMLStack/iris/internal/serving/handlers/search"
	"github.com/Meesho/BharatMLStack/iris/pkg/httpframework"
)

const (
	healthCheckPath = "/health"
)

// Init expects http framework to be initialized before calling this function
func Init() {
	searchHandler := search.GetHandler(search.DefaultVersion)
	documentHandler := document.GetHandler(document.DefaultVersion)

	indexes := httpframework.Instance().Group("/api/v1/indexes", middlewares.AuthMiddleware())
	{
		indexes.POST("/:name/query", searchHandler.Query)
		indexes.POST("/:name/documents/fetch", documentHandler.Fetch)
		indexes.POST("/:name/documents/scores", documentHandler.Scores)
	}

	httpframework.Instance().GET(healthCheckPath, healthProvider)
}
