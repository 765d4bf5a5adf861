package search

import (
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Meesho/BharatMLStack/iris/internal/config"
	"github.com/Meesho/BharatMLStack/iris/internal/config/structs"
	"github.com/Meesho/BharatMLStack/iris/internal/repositories"
	"github.com/Meesho/BharatMLStack/iris/internal/repositories/distributedcache"
	"github.com/Meesho/BharatMLStack/iris/internal/repositories/docstore"
	"github.com/Meesho/BharatMLStack/iris/internal/repositories/inmemorycache"
	"github.com/Meesho/BharatMLStack/iris/internal/repositories/vector"
	"github.com/Meesho/BharatMLStack/iris/internal/skillset"
	"github.com/Meesho/BharatMLStack/iris/pkg/metric"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

type HandlerV1 struct {
	configManager    config.Manager
	documentStore    docstore.Store
	skillsetClient   skillset.Client
	inMemCache       inmemorycache.Database
	distributedCache distributedcache.Database
}

const (
	RequestTypeTexts       = "texts"
	RequestTypeVectors     = "vectors"
	RequestTypeDocumentIds = "document_ids"

	// textSourceField is the source field a query vectorizer skillset maps
	// its input from.
	textSourceField = "text"
)

var (
	appConfig structs.Configs

	limiterMu sync.RWMutex
	limiters  = make(map[string]*rate.Limiter)
)

func InitV1() Handler {
	if handlerV1 == nil {
		once.Do(func() {
			appConfig = structs.GetAppConfig().Configs
			handlerV1 = &HandlerV1{
				configManager:    config.NewManager(config.DefaultVersion),
				documentStore:    docstore.NewRepository(docstore.DefaultVersion),
				skillsetClient:   skillset.NewClient(skillset.DefaultVersion),
				inMemCache:       inmemorycache.NewRepository(inmemorycache.DefaultVersion),
				distributedCache: distributedcache.NewRepository(distributedcache.DefaultVersion),
			}
		})
	}
	return handlerV1
}

func (h *HandlerV1) Query(ctx *gin.Context) {
	startTime := time.Now()
	index := ctx.Param("name")

	var request QueryRequest
	if err := ctx.BindJSON(&request); err != nil {
		log.Error().Msgf("Search Request Failed: Error binding query request for index %s: %v", index, err)
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if appConfig.AppEnv == "staging" {
		index = modifyStagingQueryRequest(index, &request)
	}

	commonMetricTags := getTags(index, requestTypeOf(&request))
	metric.Incr("search_request", commonMetricTags)
	metric.Gauge("search_request_limit", float64(request.Limit), commonMetricTags)
	log.Debug().Msgf("QueryRequest for index %s: %+v", index, request)

	indexConfig, err := h.configManager.GetIndexConfig(index)
	if err != nil {
		metric.Incr("search_request_5xx", commonMetricTags)
		log.Error().Msgf("Search Request Failed: Error getting index config for %s: %v", index, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !indexConfig.Enabled {
		metric.Incr("search_request_4xx", commonMetricTags)
		ctx.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("index %s is not enabled", index)})
		return
	}
	if !allowRequest(index, indexConfig) {
		metric.Incr("search_request_throttled", commonMetricTags)
		ctx.JSON(http.StatusTooManyRequests, gin.H{"error": fmt.Sprintf("rate limit exceeded for index %s", index)})
		return
	}

	if isValid, msg := validateQueryRequest(&request); !isValid {
		metric.Incr("search_request_4xx", commonMetricTags)
		log.Debug().Msgf("Search Request Failed: Invalid request body, validation failed at %s", msg)
		ctx.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}
	if len(request.Texts) > 0 && !indexConfig.Vectorizer.Enabled {
		metric.Incr("search_request_4xx", commonMetricTags)
		ctx.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("index %s has no query vectorizer configured", index)})
		return
	}
	for i, queryVector := range request.Vectors {
		if uint64(len(queryVector)) != indexConfig.VectorProfile.VectorDimension {
			metric.Incr("search_request_4xx", commonMetricTags)
			ctx.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("vector at position %d has dimension %d, expected %d", i, len(queryVector), indexConfig.VectorProfile.VectorDimension)})
			return
		}
	}

	adaptedRequest := adaptQueryRequest(index, &request)
	if isValid, msg := validateFilters(adaptedRequest.Filters, indexConfig); !isValid {
		metric.Incr("search_request_4xx", commonMetricTags)
		ctx.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	response, err := h.RetrieveCandidates(adaptedRequest, indexConfig, commonMetricTags)
	if err != nil {
		metric.Incr("search_request_5xx", commonMetricTags)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	metric.Timing("search_latency", time.Since(startTime), commonMetricTags)
	ctx.JSON(http.StatusOK, response)
}

func (h *HandlerV1) RetrieveCandidates(request SearchStructRequest, indexConfig *config.Index, commonMetricTags []string) (*QueryResponse, error) {
	isDocumentIdsRequest := len(request.DocumentIds) > 0
	// Create Cache Keys
	var cacheKeys map[string]repositories.CacheStruct
	var expectedLength int
	switch {
	case len(request.Vectors) > 0:
		cacheKeys = GetCacheKeysForVectors(request, indexConfig.ReadVersion)
		expectedLength = len(request.Vectors)
	case len(request.Texts) > 0:
		cacheKeys = GetCacheKeysForTexts(request, indexConfig.ReadVersion)
		expectedLength = len(request.Texts)
	default:
		cacheKeys = GetCacheKeysForDocumentIds(request, indexConfig.ReadVersion)
		expectedLength = len(request.DocumentIds)
	}
	partialHitDisabled := indexConfig.VectorDbConfig.Params["partial_hit_disabled"] == "true"
	responseMap := make(map[string]repositories.CandidateResponseStruct)
	missingInMemoryCacheKeys := make(map[string]repositories.CacheStruct, len(cacheKeys))

	// Trigger InMemory Mget
	if indexConfig.InMemoryCachingEnabled {
		inMemResponseMap := h.inMemCache.MGet(cacheKeys, commonMetricTags)
		missingInMemoryCacheKeys = ProcessCacheResponse(cacheKeys, inMemResponseMap, responseMap, request.Limit, commonMetricTags, "in_memory", partialHitDisabled)
	}

	missingDistributedCacheKeys := make(map[string]repositories.CacheStruct, len(cacheKeys))
	// Trigger Distributed Mget
	if len(cacheKeys) > 0 && indexConfig.DistributedCachingEnabled {
		distResponseMap, err := h.distributedCache.MGet(cacheKeys, commonMetricTags)
		if err != nil {
			log.Error().Msgf("Search Request Failed: Error fetching candidates from distributed cache, err: %v", err)
			return nil, fmt.Errorf("error fetching candidates from distributed cache: %w", err)
		}
		missingDistributedCacheKeys = ProcessCacheResponse(cacheKeys, distResponseMap, responseMap, request.Limit, commonMetricTags, "distributed", partialHitDisabled)
	}

	if len(cacheKeys) > 0 {
		// Resolve search vectors for the queries the caches could not answer
		if isDocumentIdsRequest {
			err := h.documentStore.BulkQuery(indexConfig.StoreId, &docstore.BulkQuery{
				CacheKeys: cacheKeys,
				Index:     request.Index,
				Version:   indexConfig.DocStoreReadVersion,
			}, docstore.QueryTypeSearch)
			if err != nil {
				log.Error().Msgf("Search Request Failed: Error fetching search vectors from document store, err: %v", err)
				return nil, fmt.Errorf("error fetching search vectors from document store: %w", err)
			}
		} else if len(request.Texts) > 0 {
			if err := h.resolveTextVectors(indexConfig, cacheKeys); err != nil {
				return nil, err
			}
		}
		batchQueryRequest := buildVectorBatchQuery(request, indexConfig, cacheKeys, responseMap)
		if len(batchQueryRequest.RequestList) > 0 {
			batchQueryResponse, err := vector.GetRepository(indexConfig.VectorDbType).BatchQuery(batchQueryRequest, commonMetricTags)
			if err != nil {
				log.Error().Err(err).Msgf("Search Request Failed: Error fetching candidates from vectorDB: %s", indexConfig.VectorDbType)
				return nil, fmt.Errorf("error fetching candidates from vector db: %w", err)
			}

			// Fire shadow query asynchronously if configured
			if indexConfig.TestConfig.Percentage > 0 && rand.Intn(101) < indexConfig.TestConfig.Percentage {
				batchQueryRequest.Index = indexConfig.TestConfig.Index
				batchQueryRequest.Version = indexConfig.TestConfig.Version
				go vector.GetRepository(indexConfig.TestConfig.VectorDbType).BatchQuery(batchQueryRequest, commonMetricTags)
			}
			parseVectorDbResponse(cacheKeys, batchQueryResponse, responseMap, isDocumentIdsRequest)
		}
	}

	// Cache fresh results
	go func() {
		byteResponseMap := make(map[string][]byte, len(missingDistributedCacheKeys))
		if indexConfig.DistributedCachingEnabled && len(missingDistributedCacheKeys) > 0 {
			h.distributedCache.MSet(responseMap, missingDistributedCacheKeys, indexConfig.DistributedCacheTTLSeconds, byteResponseMap, commonMetricTags)
		}
		if indexConfig.InMemoryCachingEnabled && len(missingInMemoryCacheKeys) > 0 {
			h.inMemCache.MSet(responseMap, missingInMemoryCacheKeys, indexConfig.InMemoryCacheTTLSeconds, byteResponseMap, commonMetricTags)
		}
	}()

	return &QueryResponse{Index: request.Index, Results: generateResponse(request, responseMap, expectedLength)}, nil
}

// resolveTextVectors runs the remaining text queries through the index's
// vectorizer skillset.
func (h *HandlerV1) resolveTextVectors(indexConfig *config.Index, cacheKeys map[string]repositories.CacheStruct) error {
	for key, cacheStruct := range cacheKeys {
		enrichment, err := h.skillsetClient.Enrich(indexConfig.Vectorizer.Skillset, map[string]string{textSourceField: cacheStruct.Text})
		if err != nil {
			log.Error().Msgf("Search Request Failed: Error vectorizing text through skillset %s, err: %v", indexConfig.Vectorizer.Skillset, err)
			return fmt.Errorf("error vectorizing text through skillset %s: %w", indexConfig.Vectorizer.Skillset, err)
		}
		cacheStruct.SearchVector = enrichment.SearchVector
		cacheKeys[key] = cacheStruct
	}
	return nil
}

func generateResponse(request SearchStructRequest, responseMap map[string]repositories.CandidateResponseStruct, expectedLength int) []*QueryResult {
	ordered := make([][]*vector.SimilarCandidate, expectedLength)
	for _, v := range responseMap {
		for _, index := range v.Index {
			ordered[index] = v.Candidates
		}
	}
	results := make([]*QueryResult, expectedLength)
	for i := range results {
		result := &QueryResult{Candidates: adaptCandidates(ordered[i])}
		switch {
		case len(request.DocumentIds) > 0:
			result.DocumentId = request.DocumentIds[i]
		case len(request.Texts) > 0:
			result.Text = request.Texts[i]
		}
		results[i] = result
	}
	return results
}

func getTags(index string, requestType string) []string {
	return []string{"index_name", index, "request_type", requestType}
}

func requestTypeOf(request *QueryRequest) string {
	switch {
	case len(request.Texts) > 0:
		return RequestTypeTexts
	case len(request.Vectors) > 0:
		return RequestTypeVectors
	default:
		return RequestTypeDocumentIds
	}
}

func modifyStagingQueryRequest(index string, request *QueryRequest) string {
	//replace requested index with the staging default index
	if appConfig.StagingDefaultIndex != "" {
		index = appConfig.StagingDefaultIndex
	}

	//pad or truncate vectors to the staging default dimension
	if appConfig.StagingDefaultVectorDimension > 0 {
		for i, queryVector := range request.Vectors {
			if len(queryVector) > appConfig.StagingDefaultVectorDimension {
				request.Vectors[i] = queryVector[:appConfig.StagingDefaultVectorDimension]
			} else if len(queryVector) < appConfig.StagingDefaultVectorDimension {
				request.Vectors[i] = append(queryVector, make([]float32, appConfig.StagingDefaultVectorDimension-len(queryVector))...)
			}
		}
	}
	return index
}

func allowRequest(index string, indexConfig *config.Index) bool {
	if indexConfig.RateLimiter.RateLimit <= 0 {
		return true
	}
	limiterMu.RLock()
	limiter, ok := limiters[index]
	limiterMu.RUnlock()
	if !ok {
		limiterMu.Lock()
		if limiter, ok = limiters[index]; !ok {
			burst := indexConfig.RateLimiter.BurstLimit
			if burst <= 0 {
				burst = 1
			}
			limiter = rate.NewLimiter(rate.Limit(indexConfig.RateLimiter.RateLimit), burst)
			limiters[index] = limiter
		}
		limiterMu.Unlock()
	}
	return limiter.Allow()
}

// RefreshRateLimiters drops the cached limiter for an index whose rate
// limiter config changed so the next request rebuilds it from fresh config.
func RefreshRateLimiters(key, _, eventType string) error {
	index := extractRateLimiterKey(key)
	if index == "" {
		return nil
	}
	log.Info().Msgf("Rate limiter change detected for index %s, eventType %s", index, eventType)
	limiterMu.Lock()
	delete(limiters, index)
	limiterMu.Unlock()
	return nil
}

func extractRateLimiterKey(key string) string {
	parts := strings.Split(key, "/")
	if len(parts) < 5 {
		return ""
	}
	for _, part := range parts {
		if part == "rate-limit" || part == "burst-limit" {
			return parts[4]
		}
	}
	return ""
}
