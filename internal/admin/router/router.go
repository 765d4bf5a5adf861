package router

import (
	"github.com/Meesho/BharatMLStack/iris/internal/admin/controller"
	"github.com/Meesho/BharatMLStack/iris/pkg/httpframework"
)

const (
	HeathCheckPath = "/health"
)

// Init expects http framework to be initialized before calling this function
func Init() {
	api := httpframework.Instance().Group("/api")
	{
		v1 := api.Group("/v1")
		registry := v1.Group("/registry")
		{
			registry.POST("/register-store", controller.NewRegistryController().RegisterStore)
			registry.POST("/register-frequency", controller.NewRegistryController().RegisterFrequency)
			registry.POST("/register-data-source", controller.NewRegistryController().RegisterDataSource)
			registry.POST("/register-skillset", controller.NewRegistryController().RegisterSkillset)
			registry.POST("/probe-skillset", controller.NewRegistryController().ProbeSkillset)
			registry.POST("/register-index", controller.NewRegistryController().RegisterIndex)
			registry.POST("/register-indexer", controller.NewRegistryController().RegisterIndexer)
			registry.POST("/data-source/:name/stage-documents", controller.NewRegistryController().StageDocuments)
		}
		{
			indexer := v1.Group("/indexer")
			indexer.POST("/:name/run", controller.NewRunsController().StartRun)
			indexer.POST("/:name/force-run", controller.NewRunsController().ForceRun)
			indexer.POST("/run-by-frequency", controller.NewRunsController().RunByFrequency)
		}
		{
			index := v1.Group("/index")
			index.POST("/:name/promote", controller.NewRunsController().PromoteIndex)
			index.GET("/:name/collection-info", controller.NewRunsController().GetCollectionInfo)
		}
	}

	// Init health check
	httpframework.Instance().GET(HeathCheckPath, controller.Health)
}
