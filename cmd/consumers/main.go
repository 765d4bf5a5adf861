package main

import (
	"strconv"

	"github.com/Meesho/BharatMLStack/iris/internal/bootstrap"
	"github.com/Meesho/BharatMLStack/iris/internal/config"
	"github.com/Meesho/BharatMLStack/iris/internal/config/enums"
	"github.com/Meesho/BharatMLStack/iris/internal/config/structs"
	"github.com/Meesho/BharatMLStack/iris/internal/consumers/api"
	"github.com/Meesho/BharatMLStack/iris/internal/consumers/listener"
	"github.com/Meesho/BharatMLStack/iris/internal/consumers/listener/delta_realtime"
	"github.com/Meesho/BharatMLStack/iris/internal/repositories/vector"
	"github.com/Meesho/BharatMLStack/iris/internal/server"
	"github.com/Meesho/BharatMLStack/iris/pkg/etcd"
	"github.com/Meesho/BharatMLStack/iris/pkg/httpframework"
	skafka "github.com/Meesho/BharatMLStack/iris/pkg/kafka"
	"github.com/Meesho/BharatMLStack/iris/pkg/logger"
	"github.com/Meesho/BharatMLStack/iris/pkg/metric"
	"github.com/Meesho/BharatMLStack/iris/pkg/profiling"
	"github.com/rs/zerolog/log"
)

const (
	IndexesWatchPath = "/indexes"
)

func main() {
	bootstrap.InitConsumers()
	appConfig := structs.GetAppConfig()
	logger.Init()
	metric.Init()
	etcd.InitFromAppName(&config.Iris{}, appConfig.Configs.AppName, appConfig.Configs)
	profiling.Init()

	// Initialise Kafka producers (static IDs known at startup).
	// Failure producers (per-indexer dynamic IDs) are initialised lazily in the document consumer.
	skafka.InitProducer(appConfig.Configs.RealtimeProducerKafkaId)
	skafka.InitProducer(appConfig.Configs.RealTimeDeltaProducerKafkaId)

	configManager := config.NewManager(config.DefaultVersion)
	configManager.RegisterWatchPathCallbackWithEvent(IndexesWatchPath, delta_realtime.NewConsumer(delta_realtime.DefaultVersion).RefreshRateLimiters)
	configManager.RegisterWatchPathCallbackWithEvent(IndexesWatchPath, vector.GetRepository(enums.QDRANT).RefreshClients)

	// Document batch consumers drain staged documents during indexer runs
	skafka.StartConsumers(appConfig.Configs.DocumentConsumerKafkaIds, "document", listener.ProcessDocumentEvents)

	// Document sequence consumers preserve per-partition ordering
	skafka.StartConsumers(appConfig.Configs.DocumentConsumerSequenceKafkaIds, "document-sequence", listener.ProcessDocumentEventsInSequence)

	// Realtime consumers apply live document mutations
	skafka.StartConsumers(appConfig.Configs.RealtimeConsumerKafkaIds, "realtime", listener.ConsumeRealtimeEvents)

	// Realtime delta consumer (single ID)
	if appConfig.Configs.RealTimeDeltaConsumerKafkaId == 0 {
		log.Error().Msg("RealTimeDeltaConsumerKafkaId is not set")
	} else {
		skafka.StartConsumers(strconv.Itoa(appConfig.Configs.RealTimeDeltaConsumerKafkaId), "realtime-delta", listener.ConsumeRealTimeDeltaEvents)
	}

	httpframework.Init()
	api.Init()
	server.InitServer(appConfig.Configs.Port)
}
