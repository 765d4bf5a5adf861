package inmemorycache

import (
	"github.com/Meesho/BharatMLStack/iris/internal/repositories"
)

type Database interface {
	MGet(keys map[string]repositories.CacheStruct, metricTags []string) map[string][]byte
	MSet(responseData map[string]repositories.CandidateResponseStruct, missingCacheKeys map[string]repositories.CacheStruct, ttl int, byteResponseMap map[string][]byte, metricTags []string)
	MSetVectors(cacheKeys map[string]repositories.CacheStruct, foundCacheKeys map[string]repositories.CacheStruct, missingCacheKeys map[string]repositories.CacheStruct, ttl int, metricTags []string)
}
