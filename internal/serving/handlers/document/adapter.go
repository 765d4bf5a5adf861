package document

import (
	"github.com/Meesho/BharatMLStack/iris/internal/repositories"
	"github.com/Meesho/BharatMLStack/iris/internal/repositories/vector"
	"github.com/Meesho/BharatMLStack/iris/pkg/metric"
)

// processVectorCacheResponse scores cached document vectors against the query
// vector. Hits are deleted from cacheKeys and recorded in foundCacheKeys so
// the other tier can be backfilled without re-reading the store.
func processVectorCacheResponse(cacheKeys map[string]repositories.CacheStruct, queryVector []float32, cacheResp map[string][]byte, respMap map[string]repositories.CandidateResponseStruct, commonMetricTags []string, cacheType string, foundCacheKeys map[string]repositories.CacheStruct) map[string]repositories.CacheStruct {
	missingCacheKeys := make(map[string]repositories.CacheStruct, len(cacheKeys))
	for k := range cacheKeys {
		if raw, ok := cacheResp[k]; ok {
			documentVector := repositories.UnpackFloat16(raw)
			score := CalculateDotProduct(queryVector, documentVector)
			respMap[k] = repositories.CandidateResponseStruct{
				Index:      cacheKeys[k].Index,
				Candidates: []*vector.SimilarCandidate{{Id: cacheKeys[k].DocumentId, Score: score}},
			}
			foundCacheKeys[k] = repositories.CacheStruct{
				Index:      cacheKeys[k].Index,
				DocumentId: cacheKeys[k].DocumentId,
				Vector:     documentVector,
			}
			delete(cacheKeys, k)
			if cacheType == "in_memory" {
				metric.Incr("in_memory_document_cache_hit", commonMetricTags)
			} else {
				metric.Incr("distributed_document_cache_hit", commonMetricTags)
			}
		} else {
			missingCacheKeys[k] = cacheKeys[k]
			if cacheType == "in_memory" {
				metric.Incr("in_memory_document_cache_miss", commonMetricTags)
			} else {
				metric.Incr("distributed_document_cache_miss", commonMetricTags)
			}
		}
	}
	return missingCacheKeys
}
