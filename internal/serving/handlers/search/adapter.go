package search

import (
	"encoding/json"

	"github.com/Meesho/BharatMLStack/iris/internal/config"
	"github.com/Meesho/BharatMLStack/iris/internal/repositories"
	"github.com/Meesho/BharatMLStack/iris/internal/repositories/vector"
	"github.com/Meesho/BharatMLStack/iris/pkg/metric"
	"github.com/rs/zerolog/log"
)

// adaptQueryRequest folds the path index and global filters into the internal
// request form. Global filters apply to every query that carries no filter
// list of its own.
func adaptQueryRequest(index string, r *QueryRequest) SearchStructRequest {
	var numQueries int
	switch {
	case len(r.Texts) > 0:
		numQueries = len(r.Texts)
	case len(r.Vectors) > 0:
		numQueries = len(r.Vectors)
	default:
		numQueries = len(r.DocumentIds)
	}

	filters := make([][]*vector.Filter, numQueries)
	for i, queryFilters := range r.Filters {
		if i < numQueries {
			filters[i] = queryFilters
		}
	}
	if len(r.GlobalFilters) > 0 {
		for i := 0; i < numQueries; i++ {
			if filters[i] == nil {
				filters[i] = r.GlobalFilters
			}
		}
	}

	return SearchStructRequest{
		Index:       index,
		Texts:       r.Texts,
		Vectors:     r.Vectors,
		DocumentIds: r.DocumentIds,
		Limit:       r.Limit,
		Offset:      r.Offset,
		Filters:     filters,
		Select:      r.Select,
	}
}

// buildVectorBatchQuery builds the vector store batch from the keys that
// survived the cache tiers. Keys whose search vector could not be resolved
// short-circuit into an empty candidate list.
func buildVectorBatchQuery(request SearchStructRequest, indexConfig *config.Index, cacheKeys map[string]repositories.CacheStruct, responseMap map[string]repositories.CandidateResponseStruct) *vector.BatchQueryRequest {
	queries := make([]*vector.QueryDetails, 0, len(cacheKeys))
	for k, v := range cacheKeys {
		if len(v.SearchVector) == 0 {
			responseMap[k] = repositories.CandidateResponseStruct{
				Index:      v.Index,
				Candidates: []*vector.SimilarCandidate{},
			}
			continue
		}
		queries = append(queries, &vector.QueryDetails{
			CacheKey:        k,
			Embedding:       v.SearchVector,
			Offset:          request.Offset,
			CandidateLimit:  int32(request.Limit),
			Payload:         request.Select,
			SearchParams:    indexConfig.VectorDbConfig.Params,
			MetadataFilters: v.Filters,
		})
	}
	return &vector.BatchQueryRequest{
		Index:       request.Index,
		Version:     indexConfig.ReadVersion,
		RequestList: queries,
	}
}

func parseVectorDbResponse(keys map[string]repositories.CacheStruct, batchResp *vector.BatchQueryResponse, responseMap map[string]repositories.CandidateResponseStruct, isDocumentIdsRequest bool) {
	for key, candidates := range batchResp.SimilarCandidatesList {
		cands := make([]*vector.SimilarCandidate, 0, len(candidates))
		for _, c := range candidates {
			// a document queried by id is its own nearest neighbour
			if isDocumentIdsRequest && c.Id == keys[key].DocumentId {
				continue
			}
			cands = append(cands, c)
		}
		responseMap[key] = repositories.CandidateResponseStruct{
			Index:      keys[key].Index,
			Candidates: cands,
		}
	}
}

// ProcessCacheResponse decodes cached candidate lists, moving hits into resMap
// and returning the keys the tier missed. Hits are removed from keys so later
// tiers only see what is still unresolved. A cached list shorter than the
// requested limit counts as a miss unless partial hits are disabled for the
// index.
func ProcessCacheResponse(keys map[string]repositories.CacheStruct, cachedData map[string][]byte, resMap map[string]repositories.CandidateResponseStruct, limit int, commonMetricTags []string, cacheType string, partialHitDisabled bool) map[string]repositories.CacheStruct {
	missingCacheKeys := make(map[string]repositories.CacheStruct, len(keys))
	for k := range keys {
		if raw, ok := cachedData[k]; ok {
			var candidates []*vector.SimilarCandidate
			if err := json.Unmarshal(raw, &candidates); err != nil {
				log.Error().Err(err).Msg("failed to unmarshal cached candidates")
				continue
			}
			if !partialHitDisabled {
				if len(candidates) > 0 && len(candidates) < limit-1 {
					missingCacheKeys[k] = keys[k]
					if cacheType == "in_memory" {
						metric.Incr("in_memory_search_cache_partial_miss", commonMetricTags)
					} else {
						metric.Incr("distributed_search_cache_partial_miss", commonMetricTags)
					}
					continue
				}
			}
			if len(candidates) > limit {
				candidates = candidates[:limit:limit]
			}
			resMap[k] = repositories.CandidateResponseStruct{
				Index:      keys[k].Index,
				Candidates: candidates,
			}
			delete(keys, k)
			if cacheType == "in_memory" {
				metric.Incr("in_memory_search_cache_hit", commonMetricTags)
			} else {
				metric.Incr("distributed_search_cache_hit", commonMetricTags)
			}
		} else {
			missingCacheKeys[k] = keys[k]
			if cacheType == "in_memory" {
				metric.Incr("in_memory_search_cache_miss", commonMetricTags)
			} else {
				metric.Incr("distributed_search_cache_miss", commonMetricTags)
			}
		}
	}
	return missingCacheKeys
}

func adaptCandidates(candidates []*vector.SimilarCandidate) []Candidate {
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, Candidate{Id: c.Id, Score: c.Score, Payload: c.Payload})
	}
	return out
}
