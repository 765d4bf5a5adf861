package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Meesho/BharatMLStack/iris/internal/config"
	"github.com/Meesho/BharatMLStack/iris/internal/config/structs"
	"github.com/Meesho/BharatMLStack/iris/internal/repositories"
	"github.com/Meesho/BharatMLStack/iris/internal/repositories/docstore"
	"github.com/Meesho/BharatMLStack/iris/internal/repositories/vector"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// ============================================================
// Mock: inmemorycache.Database
// ============================================================

type mockInMemCache struct {
	mock.Mock
}

func (m *mockInMemCache) MGet(keys map[string]repositories.CacheStruct, metricTags []string) map[string][]byte {
	args := m.Called(keys, metricTags)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(map[string][]byte)
}

func (m *mockInMemCache) MSet(responseData map[string]repositories.CandidateResponseStruct, missingCacheKeys map[string]repositories.CacheStruct, ttl int, byteResponseMap map[string][]byte, metricTags []string) {
	m.Called(responseData, missingCacheKeys, ttl, byteResponseMap, metricTags)
}

func (m *mockInMemCache) MSetVectors(cacheKeys map[string]repositories.CacheStruct, foundCacheKeys map[string]repositories.CacheStruct, missingCacheKeys map[string]repositories.CacheStruct, ttl int, metricTags []string) {
	m.Called(cacheKeys, foundCacheKeys, missingCacheKeys, ttl, metricTags)
}

// ============================================================
// Mock: distributedcache.Database
// ============================================================

type mockDistCache struct {
	mock.Mock
}

func (m *mockDistCache) MGet(keys map[string]repositories.CacheStruct, metricTags []string) (map[string][]byte, error) {
	args := m.Called(keys, metricTags)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string][]byte), args.Error(1)
}

func (m *mockDistCache) MSet(responseData map[string]repositories.CandidateResponseStruct, missingCacheKeys map[string]repositories.CacheStruct, ttl int, byteResponseMap map[string][]byte, metricTags []string) {
	m.Called(responseData, missingCacheKeys, ttl, byteResponseMap, metricTags)
}

func (m *mockDistCache) MSetVectors(cacheKeys map[string]repositories.CacheStruct, foundCacheKeys map[string]repositories.CacheStruct, missingCacheKeys map[string]repositories.CacheStruct, ttl int, metricTags []string) {
	m.Called(cacheKeys, foundCacheKeys, missingCacheKeys, ttl, metricTags)
}

// ============================================================
// Mock: docstore.Store
// ============================================================

type mockDocumentStore struct {
	mock.Mock
}

func (m *mockDocumentStore) BulkQuery(storeId string, bulkQuery *docstore.BulkQuery, queryType string) error {
	args := m.Called(storeId, bulkQuery, queryType)
	return args.Error(0)
}

func (m *mockDocumentStore) BulkQueryConsumer(storeId string, bulkQuery *docstore.BulkQuery) (map[string]map[string]interface{}, error) {
	args := m.Called(storeId, bulkQuery)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]map[string]interface{}), args.Error(1)
}

func (m *mockDocumentStore) Persist(storeId string, ttl int, payload docstore.Payload) error {
	args := m.Called(storeId, ttl, payload)
	return args.Error(0)
}

// helper to build a HandlerV1 with mocks
func newTestHandler() (*HandlerV1, *config.MockConfigManager, *mockInMemCache, *mockDistCache, *mockDocumentStore) {
	cm := new(config.MockConfigManager)
	inMem := new(mockInMemCache)
	dist := new(mockDistCache)
	store := new(mockDocumentStore)
	h := &HandlerV1{
		configManager:   cm,
		documentStore:   store,
		inMemoryCache:   inMem,
		distributeCache: dist,
	}
	return h, cm, inMem, dist, store
}

func performFetchRequest(h *HandlerV1, index string, body string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/indexes/"+index+"/documents/fetch", bytes.NewBufferString(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "name", Value: index}}
	h.Fetch(c)
	return w
}

func performScoresRequest(h *HandlerV1, index string, body string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/indexes/"+index+"/documents/scores", bytes.NewBufferString(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "name", Value: index}}
	h.Scores(c)
	return w
}

func TestGetTags(t *testing.T) {
	tags := getTags("catalog", RequestTypeDocumentFetch)
	assert.Equal(t, []string{"index_name", "catalog", "request_type", RequestTypeDocumentFetch}, tags)
}

func TestCalculateDotProduct(t *testing.T) {
	t.Run("same length", func(t *testing.T) {
		// [1,2] . [3,4] = 3+8 = 11
		score := CalculateDotProduct([]float32{1, 2}, []float32{3, 4})
		assert.Equal(t, float32(11), score)
	})

	t.Run("mismatched length returns 0", func(t *testing.T) {
		score := CalculateDotProduct([]float32{1, 2}, []float32{3})
		assert.Equal(t, float32(0), score)
	})

	t.Run("empty", func(t *testing.T) {
		score := CalculateDotProduct([]float32{}, []float32{})
		assert.Equal(t, float32(0), score)
	})
}

func TestGenerateResponseDocuments(t *testing.T) {
	cacheKeys := map[string]repositories.CacheStruct{
		"k1": {Index: []int{0, 2}, DocumentId: "p1", Title: "Red Dress", ImageUrl: "https://img.example.com/p1.jpg", Vector: []float32{1, 2}},
		"k2": {Index: []int{1}, DocumentId: "p2"},
	}
	records := generateResponseDocuments(cacheKeys, 3)
	assert.Len(t, records, 3)
	assert.Equal(t, "p1", records[0].Id)
	assert.Equal(t, "Red Dress", records[0].Title)
	assert.Equal(t, records[0], records[2])
	// unresolved documents keep their id with empty fields
	assert.Equal(t, "p2", records[1].Id)
	assert.Empty(t, records[1].Title)
	assert.Empty(t, records[1].Vector)
}

func TestGenerateResponseScores(t *testing.T) {
	responseMap := map[string]repositories.CandidateResponseStruct{
		"k1": {Index: []int{0}, Candidates: []*vector.SimilarCandidate{{Id: "p1", Score: 0.5}}},
		"k2": {Index: []int{1}, Candidates: []*vector.SimilarCandidate{{Id: "p2", Score: 0.6}}},
	}
	out := generateResponseScores(responseMap, 2)
	assert.Len(t, out, 2)
	assert.Equal(t, "p1", out[0].Id)
	assert.Equal(t, float32(0.5), out[0].Score)
	assert.Equal(t, "p2", out[1].Id)
	assert.Equal(t, float32(0.6), out[1].Score)
}

func TestModifyStagingFetchRequest(t *testing.T) {
	originalAppConfig := appConfig
	defer func() { appConfig = originalAppConfig }()

	appConfig = structs.Configs{StagingDefaultIndex: "staging_catalog"}
	assert.Equal(t, "staging_catalog", modifyStagingFetchRequest("catalog"))

	appConfig = structs.Configs{}
	assert.Equal(t, "catalog", modifyStagingFetchRequest("catalog"))
}

func TestModifyStagingScoresRequest(t *testing.T) {
	originalAppConfig := appConfig
	defer func() { appConfig = originalAppConfig }()

	t.Run("index override", func(t *testing.T) {
		appConfig = structs.Configs{StagingDefaultIndex: "staging_catalog", StagingDefaultVectorDimension: 3}
		request := &ScoresRequest{Vector: []float32{0.1, 0.2, 0.3}, Ids: []string{"p1"}}

		index := modifyStagingScoresRequest("catalog", request)
		assert.Equal(t, "staging_catalog", index)
		assert.Equal(t, []float32{0.1, 0.2, 0.3}, request.Vector)
	})

	t.Run("vector truncation", func(t *testing.T) {
		appConfig = structs.Configs{StagingDefaultVectorDimension: 3}
		request := &ScoresRequest{Vector: []float32{0.1, 0.2, 0.3, 0.4, 0.5}}

		modifyStagingScoresRequest("catalog", request)
		assert.Equal(t, []float32{0.1, 0.2, 0.3}, request.Vector)
	})

	t.Run("vector padding", func(t *testing.T) {
		appConfig = structs.Configs{StagingDefaultVectorDimension: 3}
		request := &ScoresRequest{Vector: []float32{0.1}}

		modifyStagingScoresRequest("catalog", request)
		assert.Equal(t, []float32{0.1, 0, 0}, request.Vector)
	})

	t.Run("no vector", func(t *testing.T) {
		appConfig = structs.Configs{StagingDefaultVectorDimension: 3}
		request := &ScoresRequest{Ids: []string{"p1"}}

		modifyStagingScoresRequest("catalog", request)
		assert.Empty(t, request.Vector)
	})
}

func TestFetch_Success(t *testing.T) {
	h, cm, _, _, store := newTestHandler()
	indexConfig := &config.Index{Enabled: true, StoreId: "store-1", DocStoreReadVersion: 2}
	cm.On("GetIndexConfig", "catalog").Return(indexConfig, nil)

	store.On("BulkQuery", "store-1", mock.AnythingOfType("*docstore.BulkQuery"), docstore.QueryTypeDocument).Run(func(args mock.Arguments) {
		bulkQuery := args.Get(1).(*docstore.BulkQuery)
		assert.Equal(t, "catalog", bulkQuery.Index)
		assert.Equal(t, 2, bulkQuery.Version)
		for k, cacheStruct := range bulkQuery.CacheKeys {
			cacheStruct.Title = "Red Dress"
			cacheStruct.ImageUrl = "https://img.example.com/p1.jpg"
			cacheStruct.Vector = []float32{1, 2}
			bulkQuery.CacheKeys[k] = cacheStruct
		}
	}).Return(nil)

	w := performFetchRequest(h, "catalog", `{"ids":["p1"]}`)
	assert.Equal(t, http.StatusOK, w.Code)

	var response FetchResponse
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, "catalog", response.Index)
	assert.Len(t, response.Documents, 1)
	assert.Equal(t, "p1", response.Documents[0].Id)
	assert.Equal(t, "Red Dress", response.Documents[0].Title)
	assert.Equal(t, "https://img.example.com/p1.jpg", response.Documents[0].ImageUrl)
	assert.Equal(t, []float32{1, 2}, response.Documents[0].Vector)
	time.Sleep(10 * time.Millisecond)
}

func TestFetch_WarmsVectorTiers(t *testing.T) {
	h, cm, inMem, dist, store := newTestHandler()
	indexConfig := &config.Index{
		Enabled:                            true,
		StoreId:                            "store-1",
		DocStoreReadVersion:                2,
		DocumentRetrievalInMemoryConfig:    config.Config{Enabled: true, TTL: 60},
		DocumentRetrievalDistributedConfig: config.Config{Enabled: true, TTL: 300},
	}
	cm.On("GetIndexConfig", "catalog").Return(indexConfig, nil)
	tags := getTags("catalog", RequestTypeDocumentFetch)

	store.On("BulkQuery", "store-1", mock.AnythingOfType("*docstore.BulkQuery"), docstore.QueryTypeDocument).Run(func(args mock.Arguments) {
		bulkQuery := args.Get(1).(*docstore.BulkQuery)
		for k, cacheStruct := range bulkQuery.CacheKeys {
			cacheStruct.Vector = []float32{1, 2}
			bulkQuery.CacheKeys[k] = cacheStruct
		}
	}).Return(nil)
	dist.On("MSetVectors", mock.Anything, mock.Anything, mock.Anything, 300, tags).Return()
	inMem.On("MSetVectors", mock.Anything, mock.Anything, mock.Anything, 60, tags).Return()

	w := performFetchRequest(h, "catalog", `{"ids":["p1"]}`)
	assert.Equal(t, http.StatusOK, w.Code)

	// Wait for the background warm-up goroutine
	time.Sleep(50 * time.Millisecond)
	dist.AssertCalled(t, "MSetVectors", mock.Anything, mock.Anything, mock.Anything, 300, tags)
	inMem.AssertCalled(t, "MSetVectors", mock.Anything, mock.Anything, mock.Anything, 60, tags)
}

func TestFetch_StoreError_Returns500(t *testing.T) {
	h, cm, _, _, store := newTestHandler()
	cm.On("GetIndexConfig", "catalog").Return(&config.Index{Enabled: true, StoreId: "store-1"}, nil)
	store.On("BulkQuery", "store-1", mock.AnythingOfType("*docstore.BulkQuery"), docstore.QueryTypeDocument).
		Return(errors.New("scylla timeout"))

	w := performFetchRequest(h, "catalog", `{"ids":["p1"]}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "error fetching documents from store")
}

func TestFetch_DisabledIndex_Returns404(t *testing.T) {
	h, cm, _, _, _ := newTestHandler()
	cm.On("GetIndexConfig", "catalog").Return(&config.Index{Enabled: false}, nil)

	w := performFetchRequest(h, "catalog", `{"ids":["p1"]}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "index catalog is not enabled")
}

func TestFetch_InvalidBody_Returns400(t *testing.T) {
	h, _, _, _, _ := newTestHandler()

	w := performFetchRequest(h, "catalog", "{not-json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid request body")
}

func TestScores_CacheHit_SkipsStore(t *testing.T) {
	h, cm, inMem, _, store := newTestHandler()
	indexConfig := &config.Index{
		Enabled:                         true,
		StoreId:                         "store-1",
		DocStoreReadVersion:             2,
		VectorProfile:                   config.VectorProfile{VectorDimension: 2},
		DocumentRetrievalInMemoryConfig: config.Config{Enabled: true, TTL: 60},
	}
	cm.On("GetIndexConfig", "catalog").Return(indexConfig, nil)
	tags := getTags("catalog", RequestTypeDocumentScores)

	cacheKeys := GetCacheKeysForScoresRequest(&ScoresRequest{Ids: []string{"p1"}}, "catalog", 2)
	cachedData := make(map[string][]byte)
	for k := range cacheKeys {
		cachedData[k] = packVector([]float32{3, 4})
	}
	inMem.On("MGet", mock.Anything, tags).Return(cachedData)

	w := performScoresRequest(h, "catalog", `{"vector":[1,2],"ids":["p1"]}`)
	assert.Equal(t, http.StatusOK, w.Code)

	var response ScoresResponse
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, "catalog", response.Index)
	assert.Len(t, response.Scores, 1)
	assert.Equal(t, "p1", response.Scores[0].Id)
	assert.Equal(t, float32(11), response.Scores[0].Score)
	store.AssertNotCalled(t, "BulkQuery", mock.Anything, mock.Anything, mock.Anything)
	time.Sleep(10 * time.Millisecond)
}

func TestScores_StoreResolvesMisses_AndBackfills(t *testing.T) {
	h, cm, inMem, dist, store := newTestHandler()
	indexConfig := &config.Index{
		Enabled:                            true,
		StoreId:                            "store-1",
		DocStoreReadVersion:                2,
		VectorProfile:                      config.VectorProfile{VectorDimension: 2},
		DocumentRetrievalInMemoryConfig:    config.Config{Enabled: true, TTL: 60},
		DocumentRetrievalDistributedConfig: config.Config{Enabled: true, TTL: 300},
	}
	cm.On("GetIndexConfig", "catalog").Return(indexConfig, nil)
	tags := getTags("catalog", RequestTypeDocumentScores)

	inMem.On("MGet", mock.Anything, tags).Return(map[string][]byte{})
	dist.On("MGet", mock.Anything, tags).Return(map[string][]byte{}, nil)
	store.On("BulkQuery", "store-1", mock.AnythingOfType("*docstore.BulkQuery"), docstore.QueryTypeDocument).Run(func(args mock.Arguments) {
		bulkQuery := args.Get(1).(*docstore.BulkQuery)
		for k, cacheStruct := range bulkQuery.CacheKeys {
			cacheStruct.Vector = []float32{3, 4}
			bulkQuery.CacheKeys[k] = cacheStruct
		}
	}).Return(nil)
	inMem.On("MSetVectors", mock.Anything, mock.Anything, mock.Anything, 60, tags).Return()
	dist.On("MSetVectors", mock.Anything, mock.Anything, mock.Anything, 300, tags).Return()

	w := performScoresRequest(h, "catalog", `{"vector":[1,2],"ids":["p1"]}`)
	assert.Equal(t, http.StatusOK, w.Code)

	var response ScoresResponse
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Equal(t, float32(11), response.Scores[0].Score)

	// Wait for the background backfill goroutine
	time.Sleep(50 * time.Millisecond)
	dist.AssertCalled(t, "MSetVectors", mock.Anything, mock.Anything, mock.Anything, 300, tags)
	inMem.AssertCalled(t, "MSetVectors", mock.Anything, mock.Anything, mock.Anything, 60, tags)
}

func TestScores_DistributedCacheError_Returns500(t *testing.T) {
	h, cm, _, dist, _ := newTestHandler()
	indexConfig := &config.Index{
		Enabled:                            true,
		StoreId:                            "store-1",
		VectorProfile:                      config.VectorProfile{VectorDimension: 2},
		DocumentRetrievalDistributedConfig: config.Config{Enabled: true, TTL: 300},
	}
	cm.On("GetIndexConfig", "catalog").Return(indexConfig, nil)
	dist.On("MGet", mock.Anything, mock.Anything).Return(nil, errors.New("redis connection refused"))

	w := performScoresRequest(h, "catalog", `{"vector":[1,2],"ids":["p1"]}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "error fetching vectors from distributed cache")
}

func TestScores_DimensionMismatch_Returns400(t *testing.T) {
	h, cm, _, _, _ := newTestHandler()
	indexConfig := &config.Index{
		Enabled:       true,
		VectorProfile: config.VectorProfile{VectorDimension: 1024},
	}
	cm.On("GetIndexConfig", "catalog").Return(indexConfig, nil)

	w := performScoresRequest(h, "catalog", `{"vector":[1,2],"ids":["p1"]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "vector has dimension 2, expected 1024")
}

func TestScores_UnknownId_ScoreZero(t *testing.T) {
	h, cm, _, _, store := newTestHandler()
	indexConfig := &config.Index{
		Enabled:       true,
		StoreId:       "store-1",
		VectorProfile: config.VectorProfile{VectorDimension: 2},
	}
	cm.On("GetIndexConfig", "catalog").Return(indexConfig, nil)

	// store returns without resolving a vector for the unknown id
	store.On("BulkQuery", "store-1", mock.AnythingOfType("*docstore.BulkQuery"), docstore.QueryTypeDocument).Return(nil)

	w := performScoresRequest(h, "catalog", `{"vector":[1,2],"ids":["ghost"]}`)
	assert.Equal(t, http.StatusOK, w.Code)

	var response ScoresResponse
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(t, err)
	assert.Len(t, response.Scores, 1)
	assert.Equal(t, "ghost", response.Scores[0].Id)
	assert.Equal(t, float32(0), response.Scores[0].Score)
	time.Sleep(10 * time.Millisecond)
}
