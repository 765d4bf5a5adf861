package bootstrap

import (
	"github.com/Meesho/BharatMLStack/iris/internal/admin/handler/runs"
	"github.com/Meesho/BharatMLStack/iris/internal/admin/handler/workflow"
	"github.com/Meesho/BharatMLStack/iris/internal/config"
	"github.com/Meesho/BharatMLStack/iris/internal/config/structs"
	"github.com/Meesho/BharatMLStack/iris/internal/consumers/listener/delta_realtime"
	"github.com/Meesho/BharatMLStack/iris/internal/consumers/listener/realtime"
	"github.com/Meesho/BharatMLStack/iris/internal/repositories/distributedcache"
	"github.com/Meesho/BharatMLStack/iris/internal/repositories/docstore"
	"github.com/Meesho/BharatMLStack/iris/internal/server/middlewares"
)

func Init() {
	config.InitConfig(structs.GetAppConfig())
	config.Init()
	docstore.Init()
}
func InitAdmin() {
	Init()
	workflow.Init()
	runs.Init()
}
func InitConsumers() {
	Init()
	realtime.Init()
	delta_realtime.Init()
}
func InitServing() {
	Init()
	middlewares.Init()
	distributedcache.Init()
}
