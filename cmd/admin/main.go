package main

import (
	"strconv"

	adminConsumer "github.com/Meesho/BharatMLStack/iris/internal/admin/consumer"
	"github.com/Meesho/BharatMLStack/iris/internal/admin/handler/runs"
	"github.com/Meesho/BharatMLStack/iris/internal/admin/router"
	"github.com/Meesho/BharatMLStack/iris/internal/bootstrap"
	"github.com/Meesho/BharatMLStack/iris/internal/config"
	"github.com/Meesho/BharatMLStack/iris/internal/config/enums"
	"github.com/Meesho/BharatMLStack/iris/internal/config/structs"
	"github.com/Meesho/BharatMLStack/iris/internal/repositories/vector"
	"github.com/Meesho/BharatMLStack/iris/internal/server"
	"github.com/Meesho/BharatMLStack/iris/pkg/etcd"
	"github.com/Meesho/BharatMLStack/iris/pkg/httpframework"
	skafka "github.com/Meesho/BharatMLStack/iris/pkg/kafka"
	"github.com/Meesho/BharatMLStack/iris/pkg/logger"
	"github.com/Meesho/BharatMLStack/iris/pkg/metric"
	"github.com/rs/zerolog/log"
)

const (
	IndexesWatchPath = "/indexes"
)

func main() {
	bootstrap.InitAdmin()
	appConfig := structs.GetAppConfig()
	logger.Init()
	metric.Init()
	etcd.InitFromAppName(&config.Iris{}, appConfig.Configs.AppName, appConfig.Configs)
	// Initialise Kafka producer for indexer run state transitions.
	skafka.InitProducer(appConfig.Configs.RunStateProducer)

	httpframework.Init()
	router.Init()
	configManager := config.NewManager(config.DefaultVersion)
	configManager.RegisterWatchPathCallbackWithEvent(IndexesWatchPath, vector.GetRepository(enums.QDRANT).RefreshClients)

	// Run state consumer advances the orchestration state machine
	if appConfig.Configs.RunStateConsumer == 0 {
		log.Error().Msg("RunStateConsumer is not set")
	} else {
		skafka.StartConsumers(strconv.Itoa(appConfig.Configs.RunStateConsumer), "run-state", adminConsumer.ProcessStatesConsumer)
	}

	go runs.NewManager(runs.DefaultVersion).PublishCollectionMetrics()
	server.InitServer(appConfig.Configs.Port)
}
