package document

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Meesho/BharatMLStack/iris/internal/config"
	"github.com/Meesho/BharatMLStack/iris/internal/config/structs"
	"github.com/Meesho/BharatMLStack/iris/internal/repositories"
	"github.com/Meesho/BharatMLStack/iris/internal/repositories/distributedcache"
	"github.com/Meesho/BharatMLStack/iris/internal/repositories/docstore"
	"github.com/Meesho/BharatMLStack/iris/internal/repositories/inmemorycache"
	"github.com/Meesho/BharatMLStack/iris/internal/repositories/vector"
	"github.com/Meesho/BharatMLStack/iris/pkg/metric"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

var (
	v1        *HandlerV1
	once      sync.Once
	appConfig structs.Configs
)

type HandlerV1 struct {
	configManager   config.Manager
	documentStore   docstore.Store
	inMemoryCache   inmemorycache.Database
	distributeCache distributedcache.Database
}

const (
	RequestTypeDocumentFetch  = "document_fetch"
	RequestTypeDocumentScores = "document_scores"
)

func InitV1Handler() Handler {
	if v1 == nil {
		once.Do(func() {
			appConfig = structs.GetAppConfig().Configs
			v1 = &HandlerV1{
				configManager:   config.NewManager(config.DefaultVersion),
				documentStore:   docstore.NewRepository(docstore.DefaultVersion),
				inMemoryCache:   inmemorycache.NewRepository(inmemorycache.DefaultVersion),
				distributeCache: distributedcache.NewRepository(distributedcache.DefaultVersion),
			}
		})
	}
	return v1
}

func (h *HandlerV1) Fetch(ctx *gin.Context) {
	start := time.Now()
	index := ctx.Param("name")

	var request FetchRequest
	if err := ctx.BindJSON(&request); err != nil {
		log.Error().Msgf("DocumentFetch Request Failed: Error binding fetch request for index %s: %v", index, err)
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if appConfig.AppEnv == "staging" {
		index = modifyStagingFetchRequest(index)
	}

	commonMetricTags := getTags(index, RequestTypeDocumentFetch)
	metric.Incr("document_fetch_request", commonMetricTags)
	log.Debug().Msgf("FetchRequest for index %s: %+v", index, request)

	indexConfig, err := h.configManager.GetIndexConfig(index)
	if err != nil {
		metric.Incr("document_fetch_request_5xx", commonMetricTags)
		log.Error().Msgf("DocumentFetch Request Failed: Error getting index config for %s: %v", index, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !indexConfig.Enabled {
		metric.Incr("document_fetch_request_4xx", commonMetricTags)
		ctx.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("index %s is not enabled", index)})
		return
	}
	if isValid, msg := validateFetchRequest(&request); !isValid {
		metric.Incr("document_fetch_request_4xx", commonMetricTags)
		log.Debug().Msgf("DocumentFetch Request Failed: Invalid request body, validation failed at %s", msg)
		ctx.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	expectedLength := len(request.Ids)
	cacheKeys := GetCacheKeysForFetchRequest(&request, index, indexConfig.DocStoreReadVersion)

	err = h.documentStore.BulkQuery(indexConfig.StoreId, &docstore.BulkQuery{
		CacheKeys: cacheKeys,
		Index:     index,
		Version:   indexConfig.DocStoreReadVersion,
	}, docstore.QueryTypeDocument)
	if err != nil {
		metric.Incr("document_fetch_request_5xx", commonMetricTags)
		log.Error().Msgf("DocumentFetch Request Failed: Error fetching documents from store, err: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "error fetching documents from store"})
		return
	}

	// Warm the vector tiers the scores path reads
	go func() {
		if indexConfig.DocumentRetrievalDistributedConfig.Enabled {
			h.distributeCache.MSetVectors(cacheKeys, nil, cacheKeys, indexConfig.DocumentRetrievalDistributedConfig.TTL, commonMetricTags)
		}
		if indexConfig.DocumentRetrievalInMemoryConfig.Enabled {
			h.inMemoryCache.MSetVectors(cacheKeys, nil, cacheKeys, indexConfig.DocumentRetrievalInMemoryConfig.TTL, commonMetricTags)
		}
	}()

	metric.Timing("document_fetch_request_latency", time.Since(start), commonMetricTags)
	ctx.JSON(http.StatusOK, &FetchResponse{
		Index:     index,
		Documents: generateResponseDocuments(cacheKeys, expectedLength),
	})
}

func (h *HandlerV1) Scores(ctx *gin.Context) {
	startTime := time.Now()
	index := ctx.Param("name")

	var request ScoresRequest
	if err := ctx.BindJSON(&request); err != nil {
		log.Error().Msgf("DocumentScores Request Failed: Error binding scores request for index %s: %v", index, err)
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if appConfig.AppEnv == "staging" {
		index = modifyStagingScoresRequest(index, &request)
	}

	commonTags := getTags(index, RequestTypeDocumentScores)
	metric.Incr("document_scores_request", commonTags)
	log.Debug().Msgf("ScoresRequest for index %s: %+v", index, request)

	indexConfig, err := h.configManager.GetIndexConfig(index)
	if err != nil {
		metric.Incr("document_scores_request_5xx", commonTags)
		log.Error().Msgf("DocumentScores Request Failed: Error getting index config for %s: %v", index, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !indexConfig.Enabled {
		metric.Incr("document_scores_request_4xx", commonTags)
		ctx.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("index %s is not enabled", index)})
		return
	}
	if isValid, msg := validateScoresRequest(&request); !isValid {
		metric.Incr("document_scores_request_4xx", commonTags)
		log.Debug().Msgf("DocumentScores Request Failed: Invalid request body, validation failed at %s", msg)
		ctx.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}
	if uint64(len(request.Vector)) != indexConfig.VectorProfile.VectorDimension {
		metric.Incr("document_scores_request_4xx", commonTags)
		ctx.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("vector has dimension %d, expected %d", len(request.Vector), indexConfig.VectorProfile.VectorDimension)})
		return
	}

	expectedLength := len(request.Ids)
	responseMap := make(map[string]repositories.CandidateResponseStruct)
	foundCacheKeys := make(map[string]repositories.CacheStruct)
	cacheKeys := GetCacheKeysForScoresRequest(&request, index, indexConfig.DocStoreReadVersion)
	missingInMemoryCacheKeys := make(map[string]repositories.CacheStruct, len(cacheKeys))

	if indexConfig.DocumentRetrievalInMemoryConfig.Enabled {
		inMemResponseMap := h.inMemoryCache.MGet(cacheKeys, commonTags)
		missingInMemoryCacheKeys = processVectorCacheResponse(cacheKeys, request.Vector, inMemResponseMap, responseMap, commonTags, "in_memory", foundCacheKeys)
	}

	missingDistributedCacheKeys := make(map[string]repositories.CacheStruct, len(cacheKeys))
	if len(cacheKeys) > 0 && indexConfig.DocumentRetrievalDistributedConfig.Enabled {
		distResponseMap, err := h.distributeCache.MGet(cacheKeys, commonTags)
		if err != nil {
			metric.Incr("document_scores_request_5xx", commonTags)
			log.Error().Msgf("DocumentScores Request Failed: Error fetching vectors from distributed cache, err: %v", err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "error fetching vectors from distributed cache"})
			return
		}
		missingDistributedCacheKeys = processVectorCacheResponse(cacheKeys, request.Vector, distResponseMap, responseMap, commonTags, "distributed", foundCacheKeys)
	}

	if len(cacheKeys) > 0 {
		err := h.documentStore.BulkQuery(indexConfig.StoreId, &docstore.BulkQuery{
			CacheKeys: cacheKeys,
			Index:     index,
			Version:   indexConfig.DocStoreReadVersion,
		}, docstore.QueryTypeDocument)
		if err != nil {
			metric.Incr("document_scores_request_5xx", commonTags)
			log.Error().Msgf("DocumentScores Request Failed: Error fetching documents from store, err: %v", err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "error fetching documents from store"})
			return
		}
		for key, cacheStruct := range cacheKeys {
			score := CalculateDotProduct(request.Vector, cacheStruct.Vector)
			responseMap[key] = repositories.CandidateResponseStruct{
				Index:      cacheKeys[key].Index,
				Candidates: []*vector.SimilarCandidate{{Id: cacheStruct.DocumentId, Score: score}},
			}
		}
	}

	// Backfill both tiers with the vectors resolved this request
	go func() {
		if indexConfig.DocumentRetrievalDistributedConfig.Enabled && len(missingDistributedCacheKeys) > 0 {
			h.distributeCache.MSetVectors(cacheKeys, foundCacheKeys, missingDistributedCacheKeys, indexConfig.DocumentRetrievalDistributedConfig.TTL, commonTags)
		}
		if indexConfig.DocumentRetrievalInMemoryConfig.Enabled && len(missingInMemoryCacheKeys) > 0 {
			h.inMemoryCache.MSetVectors(cacheKeys, foundCacheKeys, missingInMemoryCacheKeys, indexConfig.DocumentRetrievalInMemoryConfig.TTL, commonTags)
		}
	}()

	metric.Timing("document_scores_request_latency", time.Since(startTime), commonTags)
	ctx.JSON(http.StatusOK, &ScoresResponse{
		Index:  index,
		Scores: generateResponseScores(responseMap, expectedLength),
	})
}

func generateResponseDocuments(cacheKeys map[string]repositories.CacheStruct, expectedLength int) []*DocumentRecord {
	records := make([]*DocumentRecord, expectedLength)
	for _, cacheStruct := range cacheKeys {
		record := &DocumentRecord{
			Id:       cacheStruct.DocumentId,
			Title:    cacheStruct.Title,
			ImageUrl: cacheStruct.ImageUrl,
			Vector:   cacheStruct.Vector,
		}
		for _, index := range cacheStruct.Index {
			records[index] = record
		}
	}
	return records
}

func generateResponseScores(responseMap map[string]repositories.CandidateResponseStruct, expectedLength int) []*CandidateScore {
	scores := make([]*CandidateScore, expectedLength)
	for _, v := range responseMap {
		if len(v.Candidates) == 0 {
			continue
		}
		for _, index := range v.Index {
			scores[index] = &CandidateScore{Id: v.Candidates[0].Id, Score: v.Candidates[0].Score}
		}
	}
	return scores
}

func CalculateDotProduct(queryVector []float32, documentVector []float32) float32 {
	if len(queryVector) != len(documentVector) {
		return 0
	}
	var dotProduct float32
	for i := range queryVector {
		dotProduct += queryVector[i] * documentVector[i]
	}
	return dotProduct
}

func getTags(index string, requestType string) []string {
	return []string{"index_name", index, "request_type", requestType}
}

func modifyStagingFetchRequest(index string) string {
	//replace requested index with the staging default index
	if appConfig.StagingDefaultIndex != "" {
		index = appConfig.StagingDefaultIndex
	}
	return index
}

func modifyStagingScoresRequest(index string, request *ScoresRequest) string {
	//replace requested index with the staging default index
	if appConfig.StagingDefaultIndex != "" {
		index = appConfig.StagingDefaultIndex
	}

	//if the query vector exists, pad or truncate it to the staging default dimension
	if len(request.Vector) > 0 && appConfig.StagingDefaultVectorDimension > 0 {
		if len(request.Vector) > appConfig.StagingDefaultVectorDimension {
			request.Vector = request.Vector[:appConfig.StagingDefaultVectorDimension]
		} else if len(request.Vector) < appConfig.StagingDefaultVectorDimension {
			request.Vector = append(request.Vector, make([]float32, appConfig.StagingDefaultVectorDimension-len(request.Vector))...)
		}
	}
	return index
}
