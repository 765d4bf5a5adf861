package runs

import (
	"encoding/json"
	"fmt"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/Meesho/BharatMLStack/iris/internal/admin/handler/workflow"
	"github.com/Meesho/BharatMLStack/iris/internal/config"
	"github.com/Meesho/BharatMLStack/iris/internal/config/enums"
	"github.com/Meesho/BharatMLStack/iris/internal/repositories/blob"
	"github.com/Meesho/BharatMLStack/iris/internal/repositories/vector"
	skafka "github.com/Meesho/BharatMLStack/iris/pkg/kafka"
	"github.com/Meesho/BharatMLStack/iris/pkg/metric"
	"github.com/rs/zerolog/log"
)

// sleepFunc is a package-level variable for time.Sleep, overridable in tests.
var sleepFunc = time.Sleep

type RunManager struct {
	configManager config.Manager
	blobStore     blob.Store
}

func initRunManager() Manager {
	if manager == nil {
		once.Do(func() {
			manager = &RunManager{
				configManager: config.NewManager(config.DefaultVersion),
				blobStore:     blob.NewRepository(blob.DefaultVersion),
			}
		})
	}
	return manager
}

// StartRun kicks an indexer run in its configured run mode. FULL runs build a
// fresh collection version that is promoted once indexing settles, INCREMENTAL
// runs land documents in the live read version.
func (r *RunManager) StartRun(request *StartRunRequest) (*StartRunResponse, error) {
	indexerConfig, err := r.configManager.GetIndexerConfig(request.Indexer)
	if err != nil {
		return nil, err
	}
	return r.processRun(request.Indexer, indexerConfig, indexerConfig.RunMode)
}

// ForceRun rebuilds an INCREMENTAL indexer's index from scratch with FULL run
// semantics.
func (r *RunManager) ForceRun(request *StartRunRequest) (*StartRunResponse, error) {
	indexerConfig, err := r.configManager.GetIndexerConfig(request.Indexer)
	if err != nil {
		return nil, err
	}
	if indexerConfig.RunMode == enums.FULL {
		return nil, fmt.Errorf("run mode is FULL for indexer %s, force run applies to INCREMENTAL indexers", request.Indexer)
	}
	return r.processRun(request.Indexer, indexerConfig, enums.FULL)
}

func (r *RunManager) RunByFrequency(request *RunByFrequencyRequest) (*RunByFrequencyResponse, error) {
	indexers, err := r.configManager.GetIndexersByFrequency(request.Frequency)
	if err != nil {
		return nil, err
	}
	response := &RunByFrequencyResponse{}
	for indexer, indexerConfig := range indexers {
		if !indexerConfig.Enabled {
			continue
		}
		conf := indexerConfig
		runResponse, err := r.processRun(indexer, &conf, conf.RunMode)
		if err != nil {
			log.Error().Msgf("Error starting run for indexer %s: %v", indexer, err)
			metric.Count("run_trigger_error", 1, []string{"indexer_name", indexer, "index_name", conf.TargetIndex})
			continue
		}
		response.Runs = append(response.Runs, *runResponse)
	}
	return response, nil
}

func (r *RunManager) processRun(indexer string, indexerConfig *config.Indexer, runMode enums.RunMode) (response *StartRunResponse, err error) {
	if !indexerConfig.Enabled {
		return nil, fmt.Errorf("indexer %s is disabled", indexer)
	}
	if indexerConfig.RunState != "" && indexerConfig.RunState != enums.COMPLETED && indexerConfig.RunState != enums.FAILED {
		log.Error().Msgf("run already in progress for indexer %s, state %s", indexer, indexerConfig.RunState)
		return nil, fmt.Errorf("run already in progress for indexer %s, state %s", indexer, indexerConfig.RunState)
	}
	index := indexerConfig.TargetIndex
	indexConfig, err := r.configManager.GetIndexConfig(index)
	if err != nil {
		log.Error().Err(err).Msgf("Error getting index config for %s", index)
		return nil, err
	}
	if !indexConfig.Enabled {
		return nil, fmt.Errorf("index %s is disabled", index)
	}
	if indexConfig.VectorDbConfig.WriteHost != indexConfig.VectorDbConfig.ReadHost {
		log.Error().Msgf("write host and read host are not the same for %s", index)
		metric.Count("vector_db_host_mismatch", 1, []string{"indexer_name", indexer, "index_name", index})
		return nil, fmt.Errorf("write host and read host are not the same for index %s", index)
	}
	originalConfig := indexConfig
	originalRunState := indexerConfig.RunState
	defer func() {
		if rec := recover(); rec != nil {
			r.revertConfig(originalConfig, originalRunState, indexer, index)
			if e, ok := rec.(error); ok {
				err = fmt.Errorf("panic while starting run (indexer=%s index=%s): %w", indexer, index, e)
			} else {
				err = fmt.Errorf("panic while starting run (indexer=%s index=%s): %v", indexer, index, rec)
			}
			err = fmt.Errorf("%w\n%s", err, string(debug.Stack()))
		}

		if err != nil {
			r.revertConfig(originalConfig, originalRunState, indexer, index)
		}
	}()

	if indexConfig.VectorDbConfig.Params["after_collection_index_payload"] != "" && indexConfig.VectorDbConfig.Params["after_collection_index_payload"] == "true" {
		err = r.configManager.UpdateRateLimiter(index, 0, 0)
		if err != nil {
			log.Error().Msgf("Error updating rate limiter for %s", index)
			return nil, err
		}
	}

	version, err := r.prepareRunVersion(index, indexConfig, runMode)
	if err != nil {
		return nil, err
	}
	if err = r.configManager.ResetPartitionStates(indexer); err != nil {
		log.Error().Msgf("Error resetting partition states for %s", indexer)
		return nil, err
	}
	if err = r.configManager.UpdateRunState(indexer, enums.RUN_STARTED); err != nil {
		log.Error().Msgf("Error updating run state for %s", indexer)
		return nil, err
	}
	metric.Gauge("run_state", 1, []string{"indexer_name", indexer, "index_name", index})

	documents, err := r.dispatchDocuments(indexer, indexerConfig, version)
	if err != nil {
		return nil, err
	}
	if err = r.publishRunState(indexer, index, version, runMode); err != nil {
		return nil, err
	}
	return &StartRunResponse{
		Indexer:            indexer,
		Index:              index,
		Version:            version,
		RunMode:            runMode,
		KafkaId:            indexerConfig.KafkaId,
		TopicName:          indexerConfig.TopicName,
		NumberOfPartitions: indexerConfig.NumberOfPartitions,
		Documents:          documents,
	}, nil
}

// prepareRunVersion picks the collection version the run writes into. FULL
// runs on an onboarded index advance the write versions and build a fresh
// collection, the first run builds at the registered version. INCREMENTAL
// runs reopen the live read collection for bulk writes.
func (r *RunManager) prepareRunVersion(index string, indexConfig *config.Index, runMode enums.RunMode) (int, error) {
	if runMode == enums.FULL {
		version := indexConfig.WriteVersion
		if !indexConfig.Onboarded {
			if err := r.configManager.SetIndexOnboarded(index, true); err != nil {
				log.Error().Msgf("Error updating index Onboarded for %s", index)
				return 0, err
			}
		} else {
			version++
			if err := r.configManager.UpdateIndexWriteVersion(index, version); err != nil {
				log.Error().Msgf("Error updating index write version for %s", index)
				return 0, err
			}
			if err := r.configManager.UpdateDocStoreWriteVersion(index, indexConfig.DocStoreWriteVersion+1); err != nil {
				log.Error().Msgf("Error updating doc store write version for %s", index)
				return 0, err
			}
		}
		if err := vector.GetRepository(indexConfig.VectorDbType).CreateCollection(index, version); err != nil {
			log.Error().Msgf("error creating collection for %s version %d", index, version)
			return 0, fmt.Errorf("error creating collection for %s version %d", index, version)
		}
		return version, nil
	}

	version := indexConfig.ReadVersion
	if !indexConfig.Onboarded {
		if err := r.configManager.SetIndexOnboarded(index, true); err != nil {
			log.Error().Msgf("Error updating index Onboarded for %s", index)
			return 0, err
		}
		if err := vector.GetRepository(indexConfig.VectorDbType).CreateCollection(index, version); err != nil {
			log.Error().Msgf("error creating collection for %s version %d", index, version)
			return 0, fmt.Errorf("error creating collection for %s version %d", index, version)
		}
		return version, nil
	}
	if err := vector.GetRepository(indexConfig.VectorDbType).UpdateIndexingThreshold(index, version, "0"); err != nil {
		log.Error().Msgf("Error updating indexing threshold for %s version %d", index, version)
		return 0, err
	}
	return version, nil
}

// dispatchDocuments fans the staged blob documents out over the indexer topic
// partitions, batched by the data source batch size, and closes every
// partition with an EOF sentinel.
func (r *RunManager) dispatchDocuments(indexer string, indexerConfig *config.Indexer, version int) (int, error) {
	dataSourceConfig, err := r.configManager.GetDataSourceConfig(indexerConfig.DataSource)
	if err != nil {
		log.Error().Msgf("Error getting data source config for %s", indexerConfig.DataSource)
		return 0, err
	}
	if !dataSourceConfig.Enabled {
		return 0, fmt.Errorf("data source %s is disabled", indexerConfig.DataSource)
	}
	keys, err := r.blobStore.List(dataSourceConfig.Container, dataSourceConfig.Prefix)
	if err != nil {
		log.Error().Msgf("Error listing staged documents for %s: %v", indexerConfig.DataSource, err)
		return 0, err
	}
	if len(keys) == 0 {
		return 0, fmt.Errorf("no staged documents under %s/%s", dataSourceConfig.Container, dataSourceConfig.Prefix)
	}

	skafka.InitProducer(indexerConfig.KafkaId)
	keyStr := ""
	batch := make([]skafka.ProducerMessage, 0, dataSourceConfig.BatchSize)
	dispatched := 0
	for i, key := range keys {
		body, err := r.blobStore.Download(dataSourceConfig.Container, key)
		if err != nil {
			log.Error().Msgf("Error downloading staged document %s: %v", key, err)
			return dispatched, err
		}
		var fields map[string]string
		if err = json.Unmarshal(body, &fields); err != nil {
			return dispatched, fmt.Errorf("staged object %s is not a document: %w", key, err)
		}
		if fields[documentIdField] == "" {
			return dispatched, fmt.Errorf("staged object %s is missing %s field", key, documentIdField)
		}
		partition := i % indexerConfig.NumberOfPartitions
		value, err := json.Marshal(DocumentEvent{
			Indexer:    indexer,
			DocumentId: fields[documentIdField],
			Fields:     fields,
			Operation:  addOperation,
			Version:    version,
			Partition:  strconv.Itoa(partition),
		})
		if err != nil {
			return dispatched, err
		}
		p := partition
		batch = append(batch, skafka.ProducerMessage{
			Key:       &keyStr,
			Value:     value,
			Headers:   make(map[string][]byte),
			Partition: &p,
		})
		dispatched++
		if len(batch) >= dataSourceConfig.BatchSize {
			if err = skafka.SendAndForget(indexerConfig.KafkaId, batch); err != nil {
				return dispatched, err
			}
			batch = make([]skafka.ProducerMessage, 0, dataSourceConfig.BatchSize)
		}
	}
	if len(batch) > 0 {
		if err = skafka.SendAndForget(indexerConfig.KafkaId, batch); err != nil {
			return dispatched, err
		}
	}

	eofs := make([]skafka.ProducerMessage, 0, indexerConfig.NumberOfPartitions)
	for partition := 0; partition < indexerConfig.NumberOfPartitions; partition++ {
		value, err := json.Marshal(DocumentEvent{
			Indexer:    indexer,
			DocumentId: eofDocumentId,
			Operation:  addOperation,
			Version:    version,
			Partition:  strconv.Itoa(partition),
		})
		if err != nil {
			return dispatched, err
		}
		p := partition
		eofs = append(eofs, skafka.ProducerMessage{
			Key:       &keyStr,
			Value:     value,
			Headers:   make(map[string][]byte),
			Partition: &p,
		})
	}
	if err = skafka.SendAndForget(indexerConfig.KafkaId, eofs); err != nil {
		return dispatched, err
	}
	log.Info().Msgf("Dispatched %d documents across %d partitions for indexer %s", dispatched, indexerConfig.NumberOfPartitions, indexer)
	return dispatched, nil
}

// publishRunState seeds the run state topic with the RUN_STARTED watchdog
// message. The document consumers advance the run once dispatch drains.
func (r *RunManager) publishRunState(indexer, index string, version int, runMode enums.RunMode) error {
	payload := workflow.RunStateExecutorPayload{
		Indexer:  indexer,
		Index:    index,
		Version:  version,
		RunMode:  runMode,
		RunState: enums.RUN_STARTED,
	}
	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		log.Error().Msgf("Error in Marshalling %s", err)
		return err
	}
	skafka.InitProducer(appConfig.RunStateProducer)
	keyStr := ""
	payloadToProduce := []skafka.ProducerMessage{
		{
			Key:     &keyStr,
			Value:   jsonPayload,
			Headers: make(map[string][]byte),
		},
	}
	if err = skafka.SendAndForget(appConfig.RunStateProducer, payloadToProduce); err != nil {
		metric.Incr("run_state_producer_event_error", []string{"indexer_name", indexer})
		return err
	}
	return nil
}

func (r *RunManager) PromoteIndex(request *PromoteIndexRequest) error {
	indexConfig, err := r.configManager.GetIndexConfig(request.Index)
	if err != nil {
		return err
	}
	if !indexConfig.Enabled {
		return fmt.Errorf("index %s is not enabled", request.Index)
	}
	if !indexConfig.Onboarded {
		return fmt.Errorf("index %s is not onboarded", request.Index)
	}
	if request.Host != "" {
		vectorDbConfig := indexConfig.VectorDbConfig
		vectorDbConfig.ReadHost = request.Host
		if err = r.configManager.UpdateVectorDbConfig(request.Index, vectorDbConfig); err != nil {
			log.Error().Msgf("Error updating vector DB config for %s", request.Index)
			return err
		}
		sleepFunc(10 * time.Second)
	}
	if indexConfig.ReadVersion == indexConfig.WriteVersion {
		if request.Host == "" {
			return fmt.Errorf("index %s is already serving version %d", request.Index, indexConfig.ReadVersion)
		}
		return nil
	}
	info, err := vector.GetRepository(indexConfig.VectorDbType).GetCollectionInfo(request.Index, indexConfig.WriteVersion)
	if err != nil {
		return err
	}
	if info == nil || info.PointsCount == 0 {
		return fmt.Errorf("collection for index %s version %d is empty, refusing to promote", request.Index, indexConfig.WriteVersion)
	}
	if err = r.configManager.UpdateIndexReadVersion(request.Index, indexConfig.WriteVersion); err != nil {
		return err
	}
	if err = r.configManager.UpdateDocStoreReadVersion(request.Index, indexConfig.DocStoreWriteVersion); err != nil {
		return err
	}
	log.Info().Msgf("Promoted index %s to version %d", request.Index, indexConfig.WriteVersion)
	return nil
}

func (r *RunManager) GetCollectionInfo(request *CollectionInfoRequest) (*CollectionInfoResponse, error) {
	indexConfig, err := r.configManager.GetIndexConfig(request.Index)
	if err != nil {
		return nil, err
	}
	info, err := vector.GetRepository(indexConfig.VectorDbType).GetReadCollectionInfo(request.Index, indexConfig.ReadVersion)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, fmt.Errorf("no collection info for index %s version %d", request.Index, indexConfig.ReadVersion)
	}
	return &CollectionInfoResponse{
		Index:               request.Index,
		Version:             indexConfig.ReadVersion,
		Status:              info.Status,
		PointsCount:         info.PointsCount,
		IndexedVectorsCount: info.IndexedVectorsCount,
	}, nil
}

func (r *RunManager) revertConfig(originalConfig *config.Index, originalRunState enums.RunState, indexer string, index string) {
	if originalConfig == nil {
		log.Error().Msgf("original config is nil for %s, %s", indexer, index)
		return
	}
	err := r.configManager.UpdateIndexWriteVersion(index, originalConfig.WriteVersion)
	if err != nil {
		log.Error().Err(err).Msgf("Error reverting index write version for %s", index)
	}
	err = r.configManager.UpdateDocStoreWriteVersion(index, originalConfig.DocStoreWriteVersion)
	if err != nil {
		log.Error().Err(err).Msgf("Error reverting doc store write version for %s", index)
	}
	err = r.configManager.SetIndexOnboarded(index, originalConfig.Onboarded)
	if err != nil {
		log.Error().Err(err).Msgf("Error reverting index Onboarded for %s", index)
	}
	err = r.configManager.UpdateRunState(indexer, originalRunState)
	if err != nil {
		log.Error().Err(err).Msgf("Error reverting run state for %s", indexer)
	}
	err = r.configManager.UpdateRateLimiter(index, originalConfig.RateLimiter.BurstLimit, originalConfig.RateLimiter.RateLimit)
	if err != nil {
		log.Error().Err(err).Msgf("Error reverting rate limiter for %s", index)
	}
	if originalConfig.Onboarded && originalConfig.VectorDbConfig.Params["default_indexing_threshold"] != "" {
		err = vector.GetRepository(originalConfig.VectorDbType).UpdateIndexingThreshold(index, originalConfig.ReadVersion, originalConfig.VectorDbConfig.Params["default_indexing_threshold"])
		if err != nil {
			log.Error().Err(err).Msgf("Error reverting indexing threshold for %s", index)
		}
	}
}

func (r *RunManager) PublishCollectionMetrics() error {
	isCollectionMetricEnabled := appConfig.CollectionMetricEnabled
	if isCollectionMetricEnabled {
		ticker := time.NewTicker(time.Duration(appConfig.CollectionMetricPublish) * time.Second)
		defer func() {
			if rec := recover(); rec != nil {
				panicErr := fmt.Errorf("panic occurred: %v", rec)
				log.Error().Msgf("%s", panicErr)
				ticker.Stop()
				go r.PublishCollectionMetrics()
			}
		}()
		r.startTicker(ticker)
	}
	return nil
}

func (r *RunManager) startTicker(ticker *time.Ticker) error {
	for range ticker.C {
		indexes, err := r.configManager.GetIndexes()
		if err != nil {
			log.Error().Msgf("Error getting indexes")
			continue
		}
		for index, indexConfig := range indexes {
			metric.Count("index_cache_config_similarity_search", 1, []string{"index_name", index,
				"in_memory_enabled", strconv.FormatBool(indexConfig.InMemoryCachingEnabled), "in_memory_ttl", strconv.Itoa(indexConfig.InMemoryCacheTTLSeconds),
				"distributed_enabled", strconv.FormatBool(indexConfig.DistributedCachingEnabled), "distributed_ttl", strconv.Itoa(indexConfig.DistributedCacheTTLSeconds)})
			if indexConfig.VectorDbType == enums.QDRANT {
				if indexConfig.Enabled && indexConfig.Onboarded {
					readCollectionInfo, err := vector.GetRepository(enums.QDRANT).GetReadCollectionInfo(index, indexConfig.ReadVersion)
					metricTags := []string{"index_name", index, "index_version", strconv.Itoa(indexConfig.ReadVersion)}
					if err != nil || readCollectionInfo == nil {
						log.Error().Msgf("error getting read collection info for %s", index)
						continue
					}
					metric.Gauge("qdrant_read_points_count", readCollectionInfo.PointsCount, metricTags)
					metric.Gauge("qdrant_read_indexed_vector_count", readCollectionInfo.IndexedVectorsCount, metricTags)
				}
				metric.Count("index_config", 1, []string{"index_name", index, "read_host", indexConfig.VectorDbConfig.ReadHost, "write_host", indexConfig.VectorDbConfig.WriteHost})
			}
		}
	}
	return nil
}
