package workflow

import (
	"fmt"
	"testing"
	"time"

	"github.com/Meesho/BharatMLStack/iris/internal/config"
	"github.com/Meesho/BharatMLStack/iris/internal/config/enums"
	"github.com/Meesho/BharatMLStack/iris/internal/repositories/vector"
	"github.com/stretchr/testify/assert"
)

func init() {
	// Override sleepFunc to no-op so tests don't block on time.Sleep calls.
	sleepFunc = func(d time.Duration) {}
}

func newTestRSM() (*RunStateMachine, *config.MockConfigManager) {
	cm := new(config.MockConfigManager)
	return &RunStateMachine{configManager: cm}, cm
}

func qdrantIndex(params map[string]string) *config.Index {
	return &config.Index{
		VectorDbType:   enums.QDRANT,
		VectorDbConfig: config.VectorDbConfig{Params: params},
	}
}

// ============================================================
// ProcessStates
// ============================================================

func TestProcessStates_EmptyRunState(t *testing.T) {
	rsm, _ := newTestRSM()
	payload := &RunStateExecutorPayload{
		Indexer: "ix1", Index: "products",
		RunState: "",
	}
	err := rsm.ProcessStates(payload)
	assert.NoError(t, err)
}

func TestProcessStates_ProcessStateError_MarksRunFailed(t *testing.T) {
	rsm, cm := newTestRSM()
	payload := &RunStateExecutorPayload{
		Indexer: "ix1", Index: "products",
		RunState: enums.RUN_STARTED,
	}
	// GetIndexConfig called inside ProcessState
	cm.On("GetIndexConfig", "products").Return((*config.Index)(nil), fmt.Errorf("config err"))
	cm.On("UpdateRunState", "ix1", enums.FAILED).Return(nil)

	err := rsm.ProcessStates(payload)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "config err")
	cm.AssertCalled(t, "UpdateRunState", "ix1", enums.FAILED)
}

// ============================================================
// ProcessState — dispatch to correct handler per RunState
// ============================================================

func TestProcessState_GetIndexConfigError(t *testing.T) {
	rsm, cm := newTestRSM()
	cm.On("GetIndexConfig", "products").Return((*config.Index)(nil), fmt.Errorf("no config"))

	state, counter, err := rsm.ProcessState(&RunStateExecutorPayload{
		Indexer: "ix1", Index: "products",
		RunState: enums.RUN_STARTED,
	})
	assert.Error(t, err)
	assert.Equal(t, enums.RunState(""), state)
	assert.Equal(t, 0, counter)
}

func TestProcessState_DefaultState(t *testing.T) {
	rsm, cm := newTestRSM()
	cm.On("GetIndexConfig", "products").Return(&config.Index{}, nil)

	state, counter, err := rsm.ProcessState(&RunStateExecutorPayload{
		Indexer: "ix1", Index: "products",
		RunState: enums.RunState("UNKNOWN_STATE"),
	})
	assert.NoError(t, err)
	assert.Equal(t, enums.RunState(""), state)
	assert.Equal(t, 0, counter)
}

func TestProcessState_FailedState_DropsChain(t *testing.T) {
	rsm, cm := newTestRSM()
	cm.On("GetIndexConfig", "products").Return(&config.Index{}, nil)

	state, counter, err := rsm.ProcessState(&RunStateExecutorPayload{
		Indexer: "ix1", Index: "products",
		RunState: enums.FAILED,
	})
	assert.NoError(t, err)
	assert.Equal(t, enums.RunState(""), state)
	assert.Equal(t, 0, counter)
}

// ============================================================
// handleRunStarted — dispatch watchdog
// ============================================================

func TestHandleRunStarted_PartitionsPending(t *testing.T) {
	rsm, cm := newTestRSM()
	cm.On("GetIndexConfig", "products").Return(&config.Index{}, nil)
	cm.On("GetIndexerConfig", "ix1").Return(&config.Indexer{
		RunState:           enums.RUN_STARTED,
		NumberOfPartitions: 2,
		PartitionStates:    map[string]int{"0": 1, "1": 0},
	}, nil)

	state, counter, err := rsm.ProcessState(&RunStateExecutorPayload{
		Indexer: "ix1", Index: "products",
		RunState: enums.RUN_STARTED,
		Counter:  3,
	})
	assert.NoError(t, err)
	assert.Equal(t, enums.RUN_STARTED, state)
	assert.Equal(t, 4, counter)
}

func TestHandleRunStarted_DispatchAlreadyCompleted(t *testing.T) {
	rsm, cm := newTestRSM()
	cm.On("GetIndexConfig", "products").Return(&config.Index{}, nil)
	cm.On("GetIndexerConfig", "ix1").Return(&config.Indexer{
		RunState: enums.DISPATCH_COMPLETED,
	}, nil)

	state, counter, err := rsm.ProcessState(&RunStateExecutorPayload{
		Indexer: "ix1", Index: "products",
		RunState: enums.RUN_STARTED,
	})
	assert.NoError(t, err)
	assert.Equal(t, enums.RunState(""), state)
	assert.Equal(t, 0, counter)
}

func TestHandleRunStarted_IndexerConfigError(t *testing.T) {
	rsm, cm := newTestRSM()
	cm.On("GetIndexConfig", "products").Return(&config.Index{}, nil)
	cm.On("GetIndexerConfig", "ix1").Return((*config.Indexer)(nil), fmt.Errorf("indexer err"))

	state, _, err := rsm.ProcessState(&RunStateExecutorPayload{
		Indexer: "ix1", Index: "products",
		RunState: enums.RUN_STARTED,
	})
	assert.Error(t, err)
	assert.Equal(t, enums.RunState(""), state)
}

// ============================================================
// handleDispatchCompleted — calls vector.GetRepository
// ============================================================

func TestHandleDispatchCompleted_Success(t *testing.T) {
	rsm, cm := newTestRSM()
	mockVectorDb := new(vector.MockDatabase)
	vector.SetTestInstance(mockVectorDb)
	defer vector.ResetTestInstance()

	cm.On("GetIndexConfig", "products").Return(qdrantIndex(map[string]string{"indexing_threshold": "20000"}), nil)
	mockVectorDb.On("GetCollectionInfo", "products", 5).Return(&vector.CollectionInfoResponse{
		PointsCount: 100,
	}, nil)
	mockVectorDb.On("UpdateIndexingThreshold", "products", 5, "20000").Return(nil)
	cm.On("UpdateRunState", "ix1", enums.INDEXING_STARTED).Return(nil)

	state, counter, err := rsm.ProcessState(&RunStateExecutorPayload{
		Indexer: "ix1", Index: "products",
		RunState: enums.DISPATCH_COMPLETED,
		Version:  5,
	})
	assert.NoError(t, err)
	assert.Equal(t, enums.INDEXING_STARTED, state)
	assert.Equal(t, 0, counter)
	cm.AssertExpectations(t)
}

func TestHandleDispatchCompleted_EmptyCollection(t *testing.T) {
	rsm, cm := newTestRSM()
	mockVectorDb := new(vector.MockDatabase)
	vector.SetTestInstance(mockVectorDb)
	defer vector.ResetTestInstance()

	cm.On("GetIndexConfig", "products").Return(qdrantIndex(map[string]string{}), nil)
	mockVectorDb.On("GetCollectionInfo", "products", 5).Return(&vector.CollectionInfoResponse{
		PointsCount: 0,
	}, nil)

	state, _, err := rsm.ProcessState(&RunStateExecutorPayload{
		Indexer: "ix1", Index: "products",
		RunState: enums.DISPATCH_COMPLETED,
		Version:  5,
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no points landed")
	assert.Equal(t, enums.RunState(""), state)
}

func TestHandleDispatchCompleted_NilCollectionInfo(t *testing.T) {
	rsm, cm := newTestRSM()
	mockVectorDb := new(vector.MockDatabase)
	vector.SetTestInstance(mockVectorDb)
	defer vector.ResetTestInstance()

	cm.On("GetIndexConfig", "products").Return(qdrantIndex(map[string]string{}), nil)
	mockVectorDb.On("GetCollectionInfo", "products", 5).Return((*vector.CollectionInfoResponse)(nil), nil)

	state, _, err := rsm.ProcessState(&RunStateExecutorPayload{
		Indexer: "ix1", Index: "products",
		RunState: enums.DISPATCH_COMPLETED,
		Version:  5,
	})
	assert.Error(t, err)
	assert.Equal(t, enums.RunState(""), state)
}

func TestHandleDispatchCompleted_ThresholdError(t *testing.T) {
	rsm, cm := newTestRSM()
	mockVectorDb := new(vector.MockDatabase)
	vector.SetTestInstance(mockVectorDb)
	defer vector.ResetTestInstance()

	cm.On("GetIndexConfig", "products").Return(qdrantIndex(map[string]string{"indexing_threshold": "20000"}), nil)
	mockVectorDb.On("GetCollectionInfo", "products", 5).Return(&vector.CollectionInfoResponse{
		PointsCount: 100,
	}, nil)
	mockVectorDb.On("UpdateIndexingThreshold", "products", 5, "20000").Return(fmt.Errorf("threshold err"))

	state, _, err := rsm.ProcessState(&RunStateExecutorPayload{
		Indexer: "ix1", Index: "products",
		RunState: enums.DISPATCH_COMPLETED,
		Version:  5,
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "threshold err")
	assert.Equal(t, enums.RunState(""), state)
}

// ============================================================
// handleIndexingStarted — calls vector.GetRepository
// ============================================================

func TestHandleIndexingStarted_NotYetIndexed(t *testing.T) {
	rsm, cm := newTestRSM()
	mockVectorDb := new(vector.MockDatabase)
	vector.SetTestInstance(mockVectorDb)
	defer vector.ResetTestInstance()

	cm.On("GetIndexConfig", "products").Return(qdrantIndex(nil), nil)
	// ratio 50/100 = 0.5 < 0.95 → not indexed
	mockVectorDb.On("GetCollectionInfo", "products", 3).Return(&vector.CollectionInfoResponse{
		PointsCount:         100,
		IndexedVectorsCount: 50,
	}, nil)

	state, counter, err := rsm.ProcessState(&RunStateExecutorPayload{
		Indexer: "ix1", Index: "products",
		RunState: enums.INDEXING_STARTED,
		Version:  3,
		Counter:  0,
	})
	assert.NoError(t, err)
	assert.Equal(t, enums.INDEXING_STARTED, state)
	assert.Equal(t, 0, counter) // no increment
}

func TestHandleIndexingStarted_IndexedOnce(t *testing.T) {
	rsm, cm := newTestRSM()
	mockVectorDb := new(vector.MockDatabase)
	vector.SetTestInstance(mockVectorDb)
	defer vector.ResetTestInstance()

	cm.On("GetIndexConfig", "products").Return(qdrantIndex(nil), nil)
	// ratio 98/100 = 0.98 > 0.95 → indexed, counter 0→1 (not 2 yet)
	mockVectorDb.On("GetCollectionInfo", "products", 3).Return(&vector.CollectionInfoResponse{
		PointsCount:         100,
		IndexedVectorsCount: 98,
	}, nil)

	state, counter, err := rsm.ProcessState(&RunStateExecutorPayload{
		Indexer: "ix1", Index: "products",
		RunState: enums.INDEXING_STARTED,
		Version:  3,
		Counter:  0,
	})
	assert.NoError(t, err)
	assert.Equal(t, enums.INDEXING_STARTED, state)
	assert.Equal(t, 1, counter) // incremented to 1
}

func TestHandleIndexingStarted_Counter2_NoPayloadIndex(t *testing.T) {
	rsm, cm := newTestRSM()
	mockVectorDb := new(vector.MockDatabase)
	vector.SetTestInstance(mockVectorDb)
	defer vector.ResetTestInstance()

	cm.On("GetIndexConfig", "products").Return(qdrantIndex(map[string]string{}), nil)
	mockVectorDb.On("GetCollectionInfo", "products", 3).Return(&vector.CollectionInfoResponse{
		PointsCount:         100,
		IndexedVectorsCount: 98,
	}, nil)
	cm.On("UpdateRunState", "ix1", enums.INDEXING_IN_PROGRESS).Return(nil)

	state, counter, err := rsm.ProcessState(&RunStateExecutorPayload{
		Indexer: "ix1", Index: "products",
		RunState: enums.INDEXING_STARTED,
		Version:  3,
		Counter:  1, // +1 = 2 → transitions
	})
	assert.NoError(t, err)
	assert.Equal(t, enums.INDEXING_IN_PROGRESS, state)
	assert.Equal(t, 0, counter)
	cm.AssertExpectations(t)
}

func TestHandleIndexingStarted_Counter2_WithPayloadIndex_Success(t *testing.T) {
	rsm, cm := newTestRSM()
	mockVectorDb := new(vector.MockDatabase)
	vector.SetTestInstance(mockVectorDb)
	defer vector.ResetTestInstance()

	cm.On("GetIndexConfig", "products").Return(qdrantIndex(map[string]string{"after_collection_index_payload": "true"}), nil)
	mockVectorDb.On("GetCollectionInfo", "products", 3).Return(&vector.CollectionInfoResponse{
		PointsCount:         100,
		IndexedVectorsCount: 98,
	}, nil)
	mockVectorDb.On("UpdateIndexingThreshold", "products", 3, "0").Return(nil)
	mockVectorDb.On("CreateFieldIndexes", "products", 3).Return(nil)
	cm.On("UpdateRunState", "ix1", enums.INDEXING_IN_PROGRESS).Return(nil)

	state, counter, err := rsm.ProcessState(&RunStateExecutorPayload{
		Indexer: "ix1", Index: "products",
		RunState: enums.INDEXING_STARTED,
		Version:  3,
		Counter:  1,
	})
	assert.NoError(t, err)
	assert.Equal(t, enums.INDEXING_IN_PROGRESS, state)
	assert.Equal(t, 0, counter)
}

func TestHandleIndexingStarted_Counter2_CreateFieldIndexesError(t *testing.T) {
	rsm, cm := newTestRSM()
	mockVectorDb := new(vector.MockDatabase)
	vector.SetTestInstance(mockVectorDb)
	defer vector.ResetTestInstance()

	cm.On("GetIndexConfig", "products").Return(qdrantIndex(map[string]string{"after_collection_index_payload": "true"}), nil)
	mockVectorDb.On("GetCollectionInfo", "products", 3).Return(&vector.CollectionInfoResponse{
		PointsCount: 100, IndexedVectorsCount: 98,
	}, nil)
	mockVectorDb.On("UpdateIndexingThreshold", "products", 3, "0").Return(nil)
	mockVectorDb.On("CreateFieldIndexes", "products", 3).Return(fmt.Errorf("field index err"))

	state, _, err := rsm.ProcessState(&RunStateExecutorPayload{
		Indexer: "ix1", Index: "products",
		RunState: enums.INDEXING_STARTED,
		Version:  3,
		Counter:  1,
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "field index err")
	assert.Equal(t, enums.RunState(""), state)
}

func TestHandleIndexingStarted_NilCollectionInfo(t *testing.T) {
	rsm, cm := newTestRSM()
	mockVectorDb := new(vector.MockDatabase)
	vector.SetTestInstance(mockVectorDb)
	defer vector.ResetTestInstance()

	cm.On("GetIndexConfig", "products").Return(qdrantIndex(nil), nil)
	mockVectorDb.On("GetCollectionInfo", "products", 3).Return((*vector.CollectionInfoResponse)(nil), nil)

	state, counter, err := rsm.ProcessState(&RunStateExecutorPayload{
		Indexer: "ix1", Index: "products",
		RunState: enums.INDEXING_STARTED,
		Version:  3,
		Counter:  0,
	})
	assert.NoError(t, err)
	assert.Equal(t, enums.INDEXING_STARTED, state)
	assert.Equal(t, 0, counter)
}

// ============================================================
// handleIndexingInProgress — calls vector.GetRepository
// ============================================================

func TestHandleIndexingInProgress_ThresholdError(t *testing.T) {
	rsm, cm := newTestRSM()
	mockVectorDb := new(vector.MockDatabase)
	vector.SetTestInstance(mockVectorDb)
	defer vector.ResetTestInstance()

	cm.On("GetIndexConfig", "products").Return(qdrantIndex(map[string]string{"default_indexing_threshold": "30000"}), nil)
	mockVectorDb.On("UpdateIndexingThreshold", "products", 3, "30000").Return(fmt.Errorf("threshold err"))

	state, _, err := rsm.ProcessState(&RunStateExecutorPayload{
		Indexer: "ix1", Index: "products",
		RunState: enums.INDEXING_IN_PROGRESS,
		Version:  3,
	})
	assert.Error(t, err)
	assert.Equal(t, enums.RunState(""), state)
}

func TestHandleIndexingInProgress_IncrementalMode(t *testing.T) {
	rsm, cm := newTestRSM()
	mockVectorDb := new(vector.MockDatabase)
	vector.SetTestInstance(mockVectorDb)
	defer vector.ResetTestInstance()

	cm.On("GetIndexConfig", "products").Return(qdrantIndex(map[string]string{"default_indexing_threshold": "30000"}), nil)
	mockVectorDb.On("UpdateIndexingThreshold", "products", 3, "30000").Return(nil)
	cm.On("UpdateRunState", "ix1", enums.INDEXING_COMPLETED).Return(nil)

	state, counter, err := rsm.ProcessState(&RunStateExecutorPayload{
		Indexer: "ix1", Index: "products",
		RunState: enums.INDEXING_IN_PROGRESS,
		RunMode:  enums.INCREMENTAL,
		Version:  3,
	})
	assert.NoError(t, err)
	assert.Equal(t, enums.INDEXING_COMPLETED, state)
	assert.Equal(t, 0, counter)
}

func TestHandleIndexingInProgress_FullMode(t *testing.T) {
	rsm, cm := newTestRSM()
	mockVectorDb := new(vector.MockDatabase)
	vector.SetTestInstance(mockVectorDb)
	defer vector.ResetTestInstance()

	cm.On("GetIndexConfig", "products").Return(qdrantIndex(map[string]string{"default_indexing_threshold": "30000"}), nil)
	mockVectorDb.On("UpdateIndexingThreshold", "products", 3, "30000").Return(nil)
	cm.On("UpdateRunState", "ix1", enums.INDEXING_COMPLETED_WITH_PROMOTE).Return(nil)

	state, counter, err := rsm.ProcessState(&RunStateExecutorPayload{
		Indexer: "ix1", Index: "products",
		RunState: enums.INDEXING_IN_PROGRESS,
		RunMode:  enums.FULL,
		Version:  3,
	})
	assert.NoError(t, err)
	assert.Equal(t, enums.INDEXING_COMPLETED_WITH_PROMOTE, state)
	assert.Equal(t, 0, counter)
}

func TestHandleIndexingInProgress_UpdateStateError(t *testing.T) {
	rsm, cm := newTestRSM()
	mockVectorDb := new(vector.MockDatabase)
	vector.SetTestInstance(mockVectorDb)
	defer vector.ResetTestInstance()

	cm.On("GetIndexConfig", "products").Return(qdrantIndex(map[string]string{"default_indexing_threshold": "30000"}), nil)
	mockVectorDb.On("UpdateIndexingThreshold", "products", 3, "30000").Return(nil)
	cm.On("UpdateRunState", "ix1", enums.INDEXING_COMPLETED).Return(fmt.Errorf("state err"))

	state, _, err := rsm.ProcessState(&RunStateExecutorPayload{
		Indexer: "ix1", Index: "products",
		RunState: enums.INDEXING_IN_PROGRESS,
		RunMode:  enums.INCREMENTAL,
		Version:  3,
	})
	assert.Error(t, err)
	assert.Equal(t, enums.RunState(""), state)
}

func TestHandleIndexingInProgress_WithPayloadIndex_NotReady(t *testing.T) {
	rsm, cm := newTestRSM()
	mockVectorDb := new(vector.MockDatabase)
	vector.SetTestInstance(mockVectorDb)
	defer vector.ResetTestInstance()

	cm.On("GetIndexConfig", "products").Return(qdrantIndex(map[string]string{
		"default_indexing_threshold":     "30000",
		"after_collection_index_payload": "true",
	}), nil)
	// payload points ratio 50/100 < 0.95 → not ready, counter stays 0
	mockVectorDb.On("GetCollectionInfo", "products", 3).Return(&vector.CollectionInfoResponse{
		PointsCount:        100,
		PayloadPointsCount: []float64{50},
	}, nil)

	state, counter, err := rsm.ProcessState(&RunStateExecutorPayload{
		Indexer: "ix1", Index: "products",
		RunState: enums.INDEXING_IN_PROGRESS,
		Version:  3,
		Counter:  0,
	})
	assert.NoError(t, err)
	assert.Equal(t, enums.INDEXING_IN_PROGRESS, state)
	assert.Equal(t, 0, counter)
}

func TestHandleIndexingInProgress_WithPayloadIndex_Ready_Counter5(t *testing.T) {
	rsm, cm := newTestRSM()
	mockVectorDb := new(vector.MockDatabase)
	vector.SetTestInstance(mockVectorDb)
	defer vector.ResetTestInstance()

	cm.On("GetIndexConfig", "products").Return(qdrantIndex(map[string]string{
		"default_indexing_threshold":     "30000",
		"after_collection_index_payload": "true",
	}), nil)
	mockVectorDb.On("GetCollectionInfo", "products", 3).Return(&vector.CollectionInfoResponse{
		PointsCount:        100,
		PayloadPointsCount: []float64{96}, // 96/100 > 0.95, counter 4→5
	}, nil)
	mockVectorDb.On("UpdateIndexingThreshold", "products", 3, "30000").Return(nil)
	cm.On("UpdateRunState", "ix1", enums.INDEXING_COMPLETED).Return(nil)

	state, counter, err := rsm.ProcessState(&RunStateExecutorPayload{
		Indexer: "ix1", Index: "products",
		RunState: enums.INDEXING_IN_PROGRESS,
		RunMode:  enums.INCREMENTAL,
		Version:  3,
		Counter:  4, // +1 = 5 → transitions
	})
	assert.NoError(t, err)
	assert.Equal(t, enums.INDEXING_COMPLETED, state)
	assert.Equal(t, 0, counter)
}

// ============================================================
// handleIndexingCompletedWithPromote
// ============================================================

func TestHandleIndexingCompletedWithPromote_Success(t *testing.T) {
	rsm, cm := newTestRSM()
	cm.On("GetIndexConfig", "products").Return(&config.Index{DocStoreWriteVersion: 9}, nil)
	cm.On("UpdateIndexReadVersion", "products", 5).Return(nil)
	cm.On("UpdateDocStoreReadVersion", "products", 9).Return(nil)
	cm.On("UpdateRunState", "ix1", enums.VERSION_PROMOTED).Return(nil)

	state, counter, err := rsm.ProcessState(&RunStateExecutorPayload{
		Indexer: "ix1", Index: "products",
		RunState: enums.INDEXING_COMPLETED_WITH_PROMOTE,
		Version:  5,
	})
	assert.NoError(t, err)
	assert.Equal(t, enums.VERSION_PROMOTED, state)
	assert.Equal(t, 0, counter)
	cm.AssertExpectations(t)
}

func TestHandleIndexingCompletedWithPromote_ReadVersionError(t *testing.T) {
	rsm, cm := newTestRSM()
	cm.On("GetIndexConfig", "products").Return(&config.Index{}, nil)
	cm.On("UpdateIndexReadVersion", "products", 5).Return(fmt.Errorf("read ver err"))

	state, _, err := rsm.ProcessState(&RunStateExecutorPayload{
		Indexer: "ix1", Index: "products",
		RunState: enums.INDEXING_COMPLETED_WITH_PROMOTE,
		Version:  5,
	})
	assert.Error(t, err)
	assert.Equal(t, enums.RunState(""), state)
}

func TestHandleIndexingCompletedWithPromote_DocStoreVersionError(t *testing.T) {
	rsm, cm := newTestRSM()
	cm.On("GetIndexConfig", "products").Return(&config.Index{DocStoreWriteVersion: 9}, nil)
	cm.On("UpdateIndexReadVersion", "products", 5).Return(nil)
	cm.On("UpdateDocStoreReadVersion", "products", 9).Return(fmt.Errorf("doc ver err"))

	state, _, err := rsm.ProcessState(&RunStateExecutorPayload{
		Indexer: "ix1", Index: "products",
		RunState: enums.INDEXING_COMPLETED_WITH_PROMOTE,
		Version:  5,
	})
	assert.Error(t, err)
	assert.Equal(t, enums.RunState(""), state)
}

func TestHandleIndexingCompletedWithPromote_UpdateStateError(t *testing.T) {
	rsm, cm := newTestRSM()
	cm.On("GetIndexConfig", "products").Return(&config.Index{DocStoreWriteVersion: 9}, nil)
	cm.On("UpdateIndexReadVersion", "products", 5).Return(nil)
	cm.On("UpdateDocStoreReadVersion", "products", 9).Return(nil)
	cm.On("UpdateRunState", "ix1", enums.VERSION_PROMOTED).Return(fmt.Errorf("state err"))

	state, _, err := rsm.ProcessState(&RunStateExecutorPayload{
		Indexer: "ix1", Index: "products",
		RunState: enums.INDEXING_COMPLETED_WITH_PROMOTE,
		Version:  5,
	})
	assert.Error(t, err)
	assert.Equal(t, enums.RunState(""), state)
}

// ============================================================
// handleVersionPromoted — calls vector.GetRepository
// ============================================================

func TestHandleVersionPromoted_Success(t *testing.T) {
	rsm, cm := newTestRSM()
	mockVectorDb := new(vector.MockDatabase)
	vector.SetTestInstance(mockVectorDb)
	defer vector.ResetTestInstance()

	cm.On("GetIndexConfig", "products").Return(qdrantIndex(map[string]string{}), nil)
	cm.On("UpdateRunState", "ix1", enums.INDEXING_COMPLETED).Return(nil)
	mockVectorDb.On("DeleteCollection", "products", 4).Return(nil) // version-1

	state, counter, err := rsm.ProcessState(&RunStateExecutorPayload{
		Indexer: "ix1", Index: "products",
		RunState: enums.VERSION_PROMOTED,
		Version:  5,
	})
	assert.NoError(t, err)
	assert.Equal(t, enums.INDEXING_COMPLETED, state)
	assert.Equal(t, 0, counter)
}

func TestHandleVersionPromoted_FirstRun_SkipsDelete(t *testing.T) {
	rsm, cm := newTestRSM()
	mockVectorDb := new(vector.MockDatabase)
	vector.SetTestInstance(mockVectorDb)
	defer vector.ResetTestInstance()

	cm.On("GetIndexConfig", "products").Return(qdrantIndex(map[string]string{}), nil)
	cm.On("UpdateRunState", "ix1", enums.INDEXING_COMPLETED).Return(nil)

	state, _, err := rsm.ProcessState(&RunStateExecutorPayload{
		Indexer: "ix1", Index: "products",
		RunState: enums.VERSION_PROMOTED,
		Version:  1,
	})
	assert.NoError(t, err)
	assert.Equal(t, enums.INDEXING_COMPLETED, state)
	mockVectorDb.AssertNotCalled(t, "DeleteCollection", "products", 0)
}

func TestHandleVersionPromoted_DeleteCollectionError(t *testing.T) {
	rsm, cm := newTestRSM()
	mockVectorDb := new(vector.MockDatabase)
	vector.SetTestInstance(mockVectorDb)
	defer vector.ResetTestInstance()

	cm.On("GetIndexConfig", "products").Return(qdrantIndex(nil), nil)
	cm.On("UpdateRunState", "ix1", enums.INDEXING_COMPLETED).Return(nil)
	mockVectorDb.On("DeleteCollection", "products", 4).Return(fmt.Errorf("delete err"))

	state, _, err := rsm.ProcessState(&RunStateExecutorPayload{
		Indexer: "ix1", Index: "products",
		RunState: enums.VERSION_PROMOTED,
		Version:  5,
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "delete err")
	assert.Equal(t, enums.RunState(""), state)
}

func TestHandleVersionPromoted_WithRateLimiterReset(t *testing.T) {
	rsm, cm := newTestRSM()
	mockVectorDb := new(vector.MockDatabase)
	vector.SetTestInstance(mockVectorDb)
	defer vector.ResetTestInstance()

	cm.On("GetIndexConfig", "products").Return(qdrantIndex(map[string]string{"after_collection_index_payload": "true"}), nil)
	cm.On("UpdateRunState", "ix1", enums.INDEXING_COMPLETED).Return(nil)
	mockVectorDb.On("DeleteCollection", "products", 4).Return(nil)
	cm.On("UpdateRateLimiter", "products", 0, 0).Return(nil)

	state, counter, err := rsm.ProcessState(&RunStateExecutorPayload{
		Indexer: "ix1", Index: "products",
		RunState: enums.VERSION_PROMOTED,
		Version:  5,
	})
	assert.NoError(t, err)
	assert.Equal(t, enums.INDEXING_COMPLETED, state)
	assert.Equal(t, 0, counter)
	cm.AssertExpectations(t)
}

func TestHandleVersionPromoted_RateLimiterError(t *testing.T) {
	rsm, cm := newTestRSM()
	mockVectorDb := new(vector.MockDatabase)
	vector.SetTestInstance(mockVectorDb)
	defer vector.ResetTestInstance()

	cm.On("GetIndexConfig", "products").Return(qdrantIndex(map[string]string{"after_collection_index_payload": "true"}), nil)
	cm.On("UpdateRunState", "ix1", enums.INDEXING_COMPLETED).Return(nil)
	mockVectorDb.On("DeleteCollection", "products", 4).Return(nil)
	cm.On("UpdateRateLimiter", "products", 0, 0).Return(fmt.Errorf("limiter err"))

	state, _, err := rsm.ProcessState(&RunStateExecutorPayload{
		Indexer: "ix1", Index: "products",
		RunState: enums.VERSION_PROMOTED,
		Version:  5,
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "limiter err")
	assert.Equal(t, enums.RunState(""), state)
}

// ============================================================
// handleIndexingCompleted
// ============================================================

func TestHandleIndexingCompleted_Success(t *testing.T) {
	rsm, cm := newTestRSM()
	cm.On("GetIndexConfig", "products").Return(&config.Index{}, nil)
	cm.On("UpdateRunState", "ix1", enums.COMPLETED).Return(nil)

	state, counter, err := rsm.ProcessState(&RunStateExecutorPayload{
		Indexer: "ix1", Index: "products",
		RunState: enums.INDEXING_COMPLETED,
	})
	assert.NoError(t, err)
	assert.Equal(t, enums.COMPLETED, state)
	assert.Equal(t, 0, counter)
}

func TestHandleIndexingCompleted_Error(t *testing.T) {
	rsm, cm := newTestRSM()
	cm.On("GetIndexConfig", "products").Return(&config.Index{}, nil)
	cm.On("UpdateRunState", "ix1", enums.COMPLETED).Return(fmt.Errorf("update err"))

	state, _, err := rsm.ProcessState(&RunStateExecutorPayload{
		Indexer: "ix1", Index: "products",
		RunState: enums.INDEXING_COMPLETED,
	})
	assert.Error(t, err)
	assert.Equal(t, enums.RunState(""), state)
}

// ============================================================
// handleCompleted
// ============================================================

func TestHandleCompleted(t *testing.T) {
	rsm, cm := newTestRSM()
	cm.On("GetIndexConfig", "products").Return(&config.Index{}, nil)

	state, counter, err := rsm.ProcessState(&RunStateExecutorPayload{
		Indexer: "ix1", Index: "products",
		RunState: enums.COMPLETED,
	})
	assert.NoError(t, err)
	assert.Equal(t, enums.RunState(""), state)
	assert.Equal(t, 0, counter)
}
