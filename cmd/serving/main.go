package main

import (
	"github.com/Meesho/BharatMLStack/iris/internal/bootstrap"
	"github.com/Meesho/BharatMLStack/iris/internal/config"
	"github.com/Meesho/BharatMLStack/iris/internal/config/enums"
	"github.com/Meesho/BharatMLStack/iris/internal/config/structs"
	"github.com/Meesho/BharatMLStack/iris/internal/repositories/vector"
	"github.com/Meesho/BharatMLStack/iris/internal/server/api"
	"github.com/Meesho/BharatMLStack/iris/internal/server/middlewares"
	"github.com/Meesho/BharatMLStack/iris/internal/serving/handlers/search"
	"github.com/Meesho/BharatMLStack/iris/pkg/etcd"
	"github.com/Meesho/BharatMLStack/iris/pkg/grpc"
	"github.com/Meesho/BharatMLStack/iris/pkg/httpframework"
	"github.com/Meesho/BharatMLStack/iris/pkg/infra"
	"github.com/Meesho/BharatMLStack/iris/pkg/logger"
	"github.com/Meesho/BharatMLStack/iris/pkg/metric"
	"github.com/Meesho/BharatMLStack/iris/pkg/middleware"
	"github.com/Meesho/BharatMLStack/iris/pkg/profiling"
	"google.golang.org/grpc/health"
	healthgrpc "google.golang.org/grpc/health/grpc_health_v1"
)

const (
	IndexesWatchPath = "/indexes"
)

func main() {
	bootstrap.InitServing()
	appConfig := structs.GetAppConfig()
	logger.Init()
	metric.Init()
	infra.InitRedis()
	profiling.Init()
	etcd.InitFromAppName(&config.Iris{}, appConfig.Configs.AppName, appConfig.Configs)
	grpc.Init(middleware.GRPCLogger, middlewares.ServerInterceptor)
	httpframework.Init()
	api.Init()
	configManager := config.NewManager(config.DefaultVersion)
	configManager.RegisterWatchPathCallbackWithEvent(IndexesWatchPath, vector.GetRepository(enums.QDRANT).RefreshClients)
	configManager.RegisterWatchPathCallbackWithEvent(IndexesWatchPath, search.RefreshRateLimiters)
	healthgrpc.RegisterHealthServer(grpc.Instance().GRPCServer, health.NewServer())
	grpc.Instance().Run()
}
