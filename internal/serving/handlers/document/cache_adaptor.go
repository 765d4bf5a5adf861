package document

import (
	"strconv"
	"strings"

	"github.com/Meesho/BharatMLStack/iris/internal/repositories"
)

const (
	DocumentVector    = "dv"
	CacheVersion      = "V1"
	CacheKeySeparator = ":"
)

func GetCacheKeysForFetchRequest(request *FetchRequest, index string, version int) map[string]repositories.CacheStruct {
	cacheKeys := make(map[string]repositories.CacheStruct, len(request.Ids))
	for position, id := range request.Ids {
		key := buildDocumentCacheKey(DocumentVector, index, strconv.Itoa(version), id)
		if _, ok := cacheKeys[key]; ok {
			cacheStruct := cacheKeys[key]
			cacheStruct.Index = append(cacheStruct.Index, position)
			cacheKeys[key] = cacheStruct
		} else {
			cacheKeys[key] = repositories.CacheStruct{
				Index:      []int{position},
				DocumentId: id,
			}
		}
	}
	return cacheKeys
}

func GetCacheKeysForScoresRequest(request *ScoresRequest, index string, version int) map[string]repositories.CacheStruct {
	cacheKeys := make(map[string]repositories.CacheStruct, len(request.Ids))
	for position, id := range request.Ids {
		key := buildDocumentCacheKey(DocumentVector, index, strconv.Itoa(version), id)
		if _, ok := cacheKeys[key]; ok {
			cacheStruct := cacheKeys[key]
			cacheStruct.Index = append(cacheStruct.Index, position)
			cacheKeys[key] = cacheStruct
		} else {
			cacheKeys[key] = repositories.CacheStruct{
				Index:      []int{position},
				DocumentId: id,
			}
		}
	}
	return cacheKeys
}

// The fetch and scores paths share one key format so a fetch warms the
// vector tier the scores path reads.
func buildDocumentCacheKey(prefix, index, version, id string) string {
	var b strings.Builder
	// Pre-allocate capacity to avoid reallocations
	b.Grow(len(prefix) + len(index) + len(version) + len(id) + len(CacheVersion) + 8)
	b.WriteString(prefix)
	b.WriteString(CacheKeySeparator)
	b.WriteString(index)
	b.WriteString(CacheKeySeparator)
	b.WriteString(version)
	b.WriteString(CacheKeySeparator)
	b.WriteString(id)
	b.WriteString(CacheKeySeparator)
	b.WriteString(CacheVersion)
	return b.String()
}
