package workflow

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Meesho/BharatMLStack/iris/internal/config"
	"github.com/Meesho/BharatMLStack/iris/internal/config/enums"
	"github.com/Meesho/BharatMLStack/iris/internal/repositories/vector"
	skafka "github.com/Meesho/BharatMLStack/iris/pkg/kafka"
	"github.com/Meesho/BharatMLStack/iris/pkg/metric"
	"github.com/rs/zerolog/log"
)

// sleepFunc is a package-level variable for time.Sleep, overridable in tests.
var sleepFunc = time.Sleep

type RunStateMachine struct {
	configManager config.Manager
}

func initRunStateMachine() StateMachine {
	if machine == nil {
		once.Do(func() {
			machine = &RunStateMachine{
				configManager: config.NewManager(config.DefaultVersion),
			}
		})
	}
	return machine
}

func (rsm *RunStateMachine) ProcessStates(payload *RunStateExecutorPayload) error {
	currentState := payload.RunState
	log.Error().Msgf("Processing %s State for %s %s version %d", currentState, payload.Indexer, payload.Index, payload.Version)
	if payload.RunState == "" {
		log.Error().Msgf("Run Completed for %s %s version %d", payload.Indexer, payload.Index, payload.Version)
		return nil
	}
	err := rsm.process(currentState, payload)
	if err != nil {
		return err
	}
	return nil
}

func (rsm *RunStateMachine) process(currentState enums.RunState, payload *RunStateExecutorPayload) error {
	newState, counter, err := rsm.ProcessState(payload)
	if err != nil {
		log.Error().Msgf("Error in State Processing %s", err)
		rsm.failRun(payload)
		return err
	}
	payload.RunState = newState
	payload.Counter = counter
	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		log.Error().Msgf("Error in Marshalling %s", err)
		return err
	}
	keyStr := ""
	payloadToProduce := []skafka.ProducerMessage{
		{
			Key:     &keyStr,
			Value:   jsonPayload,
			Headers: make(map[string][]byte),
		},
	}
	err = skafka.SendAndForget(appConfig.RunStateProducer, payloadToProduce)
	if err != nil {
		return err
	}
	log.Error().Msgf("%s State Processed for %s %s version %d", currentState, payload.Indexer, payload.Index, payload.Version)
	return nil
}

// failRun parks the indexer in FAILED so the run can be retriggered once
// the cause is resolved.
func (rsm *RunStateMachine) failRun(payload *RunStateExecutorPayload) {
	metric.Count("run_failed", 1, []string{"indexer_name", payload.Indexer, "index_name", payload.Index, "run_state", string(payload.RunState)})
	if err := rsm.configManager.UpdateRunState(payload.Indexer, enums.FAILED); err != nil {
		log.Error().Err(err).Msgf("Error marking run FAILED for %s", payload.Indexer)
	}
}

func (rsm *RunStateMachine) ProcessState(payload *RunStateExecutorPayload) (enums.RunState, int, error) {
	indexConfig, err := rsm.configManager.GetIndexConfig(payload.Index)
	if err != nil {
		return "", 0, err
	}
	vectorDbType := indexConfig.VectorDbType

	switch payload.RunState {
	case enums.RUN_STARTED:
		return rsm.handleRunStarted(payload)
	case enums.DISPATCH_COMPLETED:
		return rsm.handleDispatchCompleted(payload, vectorDbType)
	case enums.INDEXING_STARTED:
		return rsm.handleIndexingStarted(payload, vectorDbType)
	case enums.INDEXING_IN_PROGRESS:
		return rsm.handleIndexingInProgress(payload, vectorDbType)
	case enums.INDEXING_COMPLETED_WITH_PROMOTE:
		return rsm.handleIndexingCompletedWithPromote(payload)
	case enums.VERSION_PROMOTED:
		return rsm.handleVersionPromoted(payload, vectorDbType)
	case enums.INDEXING_COMPLETED:
		return rsm.handleIndexingCompleted(payload)
	case enums.COMPLETED:
		return rsm.handleCompleted(payload)
	default:
		return "", 0, nil
	}
}

// handleRunStarted is a dispatch watchdog. The document consumers advance the
// run to DISPATCH_COMPLETED once every partition has drained its EOF, so this
// handler only reports pending partitions and requeues itself.
func (rsm *RunStateMachine) handleRunStarted(payload *RunStateExecutorPayload) (enums.RunState, int, error) {
	indexerConfig, err := rsm.configManager.GetIndexerConfig(payload.Indexer)
	if err != nil {
		return "", 0, err
	}
	if indexerConfig.RunState != enums.RUN_STARTED {
		log.Info().Msgf("Dispatch already completed for %s, dropping watchdog chain", payload.Indexer)
		return "", 0, nil
	}
	pendingPartitions := 0
	for _, state := range indexerConfig.PartitionStates {
		if state == 0 {
			pendingPartitions++
		}
	}
	log.Info().Msgf("Run Started for %s, %d of %d partitions pending", payload.Indexer, pendingPartitions, indexerConfig.NumberOfPartitions)
	metric.Gauge("run_partitions_pending", float64(pendingPartitions), []string{"indexer_name", payload.Indexer, "index_name", payload.Index})
	sleepFunc(30 * time.Second)
	return enums.RUN_STARTED, payload.Counter + 1, nil
}

func (rsm *RunStateMachine) handleDispatchCompleted(payload *RunStateExecutorPayload, vectorDbType enums.VectorDbType) (enums.RunState, int, error) {
	log.Info().Msgf("Dispatch Completed for %s %s version %d", payload.Indexer, payload.Index, payload.Version)
	indexConfig, _ := rsm.configManager.GetIndexConfig(payload.Index)
	indexParams := indexConfig.VectorDbConfig.Params
	response, _ := vector.GetRepository(vectorDbType).GetCollectionInfo(payload.Index, payload.Version)
	if response == nil || response.PointsCount == 0 {
		return "", 0, fmt.Errorf("no points landed in collection for index %s version %d", payload.Index, payload.Version)
	}
	err := vector.GetRepository(vectorDbType).UpdateIndexingThreshold(payload.Index, payload.Version, indexParams["indexing_threshold"])
	if err != nil {
		return "", 0, err
	}
	sleepFunc(30 * time.Second)
	err = rsm.configManager.UpdateRunState(payload.Indexer, enums.INDEXING_STARTED)
	if err != nil {
		return "", 0, err
	}
	metric.Gauge("run_state", 3, []string{"indexer_name", payload.Indexer, "index_name", payload.Index})
	return enums.INDEXING_STARTED, 0, nil
}

func (rsm *RunStateMachine) handleIndexingStarted(payload *RunStateExecutorPayload, vectorDbType enums.VectorDbType) (enums.RunState, int, error) {
	log.Error().Msgf("Indexing Started for %s %s version %d counter %v", payload.Indexer, payload.Index, payload.Version, payload.Counter)
	sleepFunc(30 * time.Second)
	counter := payload.Counter
	response, _ := vector.GetRepository(vectorDbType).GetCollectionInfo(payload.Index, payload.Version)
	log.Error().Msgf("Collection Info for %s version %d is %v", payload.Index, payload.Version, response)
	isIndexedScaleUp := false
	if response != nil && response.IndexedVectorsCount/response.PointsCount > 0.95 {
		isIndexedScaleUp = true
	}
	if isIndexedScaleUp {
		counter++
	}
	if counter == 2 {
		sleepFunc(30 * time.Second)
		indexConfig, _ := rsm.configManager.GetIndexConfig(payload.Index)
		if indexConfig.VectorDbConfig.Params["after_collection_index_payload"] != "" && indexConfig.VectorDbConfig.Params["after_collection_index_payload"] == "true" {
			vector.GetRepository(vectorDbType).UpdateIndexingThreshold(payload.Index, payload.Version, "0")
			sleepFunc(10 * time.Second)
			err := vector.GetRepository(vectorDbType).CreateFieldIndexes(payload.Index, payload.Version)
			if err != nil {
				return "", 0, err
			}
		}
		err := rsm.configManager.UpdateRunState(payload.Indexer, enums.INDEXING_IN_PROGRESS)
		if err != nil {
			return "", 0, err
		}
		metric.Gauge("run_state", 4, []string{"indexer_name", payload.Indexer, "index_name", payload.Index})
		return enums.INDEXING_IN_PROGRESS, 0, nil
	} else {
		return enums.INDEXING_STARTED, counter, nil
	}
}

func (rsm *RunStateMachine) handleIndexingInProgress(payload *RunStateExecutorPayload, vectorDbType enums.VectorDbType) (enums.RunState, int, error) {
	log.Info().Msgf("Indexing In Progress for %s %s version %d", payload.Indexer, payload.Index, payload.Version)
	indexConfig, _ := rsm.configManager.GetIndexConfig(payload.Index)
	indexParams := indexConfig.VectorDbConfig.Params
	if indexParams["after_collection_index_payload"] != "" && indexParams["after_collection_index_payload"] == "true" {
		counter := payload.Counter
		response, _ := vector.GetRepository(vectorDbType).GetCollectionInfo(payload.Index, payload.Version)
		isPayloadIndexedScaleUp := false
		if response != nil {
			for _, payloadPointsCount := range response.PayloadPointsCount {
				if payloadPointsCount/response.PointsCount > 0.95 {
					isPayloadIndexedScaleUp = true
				}
			}
		}
		if isPayloadIndexedScaleUp {
			counter++
		}
		if counter != 5 {
			return enums.INDEXING_IN_PROGRESS, counter, nil
		}
	}
	err := vector.GetRepository(vectorDbType).UpdateIndexingThreshold(payload.Index, payload.Version, indexParams["default_indexing_threshold"])
	if err != nil {
		return "", 0, err
	}
	nextState := enums.INDEXING_COMPLETED
	if payload.RunMode == enums.FULL {
		nextState = enums.INDEXING_COMPLETED_WITH_PROMOTE
	}
	err = rsm.configManager.UpdateRunState(payload.Indexer, nextState)
	if err != nil {
		return "", 0, err
	}
	metric.Gauge("run_state", 5, []string{"indexer_name", payload.Indexer, "index_name", payload.Index})
	return nextState, 0, nil
}

func (rsm *RunStateMachine) handleIndexingCompletedWithPromote(payload *RunStateExecutorPayload) (enums.RunState, int, error) {
	log.Info().Msgf("Indexing Completed with Promote for %s %s version %d", payload.Indexer, payload.Index, payload.Version)
	indexConfig, err := rsm.configManager.GetIndexConfig(payload.Index)
	if err != nil {
		return "", 0, err
	}
	err = rsm.configManager.UpdateIndexReadVersion(payload.Index, payload.Version)
	if err != nil {
		return "", 0, err
	}
	err = rsm.configManager.UpdateDocStoreReadVersion(payload.Index, indexConfig.DocStoreWriteVersion)
	if err != nil {
		return "", 0, err
	}
	err = rsm.configManager.UpdateRunState(payload.Indexer, enums.VERSION_PROMOTED)
	if err != nil {
		return "", 0, err
	}
	metric.Gauge("run_state", 6, []string{"indexer_name", payload.Indexer, "index_name", payload.Index})
	return enums.VERSION_PROMOTED, 0, nil
}

func (rsm *RunStateMachine) handleVersionPromoted(payload *RunStateExecutorPayload, vectorDbType enums.VectorDbType) (enums.RunState, int, error) {
	log.Info().Msgf("Version Promoted for %s %s version %d", payload.Indexer, payload.Index, payload.Version)
	err := rsm.configManager.UpdateRunState(payload.Indexer, enums.INDEXING_COMPLETED)
	if err != nil {
		return "", 0, err
	}
	versionToDelete := payload.Version - 1
	// Collections start at version 1, the first promoted run has nothing to clean up.
	if versionToDelete > 0 {
		log.Info().Msgf("Deleting Version %d for %s", versionToDelete, payload.Index)
		// Todo: Retry the delete a few times before failing the run
		err = vector.GetRepository(vectorDbType).DeleteCollection(payload.Index, versionToDelete)
		if err != nil {
			return "", 0, err
		}
	}
	indexConfig, _ := rsm.configManager.GetIndexConfig(payload.Index)
	if indexConfig.VectorDbConfig.Params["after_collection_index_payload"] != "" && indexConfig.VectorDbConfig.Params["after_collection_index_payload"] == "true" {
		err := rsm.configManager.UpdateRateLimiter(payload.Index, 0, 0)
		if err != nil {
			return "", 0, err
		}
	}
	metric.Gauge("run_state", 7, []string{"indexer_name", payload.Indexer, "index_name", payload.Index})
	return enums.INDEXING_COMPLETED, 0, nil
}

func (rsm *RunStateMachine) handleIndexingCompleted(payload *RunStateExecutorPayload) (enums.RunState, int, error) {
	log.Info().Msgf("Indexing Completed for %s %s version %d", payload.Indexer, payload.Index, payload.Version)

	err := rsm.configManager.UpdateRunState(payload.Indexer, enums.COMPLETED)
	if err != nil {
		return "", 0, err
	}
	metric.Gauge("run_state", 8, []string{"indexer_name", payload.Indexer, "index_name", payload.Index})
	return enums.COMPLETED, 0, nil
}

func (rsm *RunStateMachine) handleCompleted(payload *RunStateExecutorPayload) (enums.RunState, int, error) {
	log.Info().Msgf("Processing Completed for %s %s version %d", payload.Indexer, payload.Index, payload.Version)
	return "", 0, nil
}
