package inmemorycache

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/Meesho/BharatMLStack/iris/internal/repositories"
	"github.com/Meesho/BharatMLStack/iris/pkg/inmemorycache"
	"github.com/Meesho/BharatMLStack/iris/pkg/metric"
)

var (
	inMemoryDatabase Database
	once             sync.Once
)

type FreeCache struct {
	cache inmemorycache.InMemoryCache
}

func initFreeCache() Database {
	if inMemoryDatabase == nil {
		once.Do(func() {
			inmemorycache.Init(1)
			inMemoryDatabase = &FreeCache{
				cache: inmemorycache.Instance(),
			}
		})
	}
	return inMemoryDatabase
}

func (f *FreeCache) MGet(keys map[string]repositories.CacheStruct, metricTags []string) map[string][]byte {
	start := time.Now()
	hits := make(map[string][]byte)
	for key := range keys {
		metric.Incr("in_memory_cache_mget", metricTags)
		cached, err := f.cache.Get([]byte(key))
		if err == nil {
			hits[key] = cached
		}
	}
	metric.Timing("in_memory_cache_mget_latency", time.Since(start), metricTags)
	return hits
}

// MSet backfills candidate responses for the missing keys. byteResponseMap
// carries bytes already marshalled by the distributed tier so each key is
// marshalled at most once per request.
func (f *FreeCache) MSet(responseData map[string]repositories.CandidateResponseStruct, missingCacheKeys map[string]repositories.CacheStruct, ttl int, byteResponseMap map[string][]byte, metricTags []string) {
	start := time.Now()
	for key, value := range responseData {
		if _, ok := missingCacheKeys[key]; !ok {
			continue
		}
		metric.Incr("in_memory_cache_mset", metricTags)
		if byteResponseMap[key] != nil {
			f.cache.SetEx([]byte(key), byteResponseMap[key], ttl)
			continue
		}
		if data, err := json.Marshal(value.Candidates); err == nil {
			f.cache.SetEx([]byte(key), data, ttl)
		}
	}
	metric.Timing("in_memory_cache_mset_latency", time.Since(start), metricTags)
}

// MSetVectors backfills fp16-packed document vectors for the missing keys.
// cacheKeys holds vectors the request already had, foundCacheKeys the ones the
// document store resolved; where both carry a key the former wins.
func (f *FreeCache) MSetVectors(cacheKeys map[string]repositories.CacheStruct, foundCacheKeys map[string]repositories.CacheStruct, missingCacheKeys map[string]repositories.CacheStruct, ttl int, metricTags []string) {
	start := time.Now()
	f.storeVectors(cacheKeys, missingCacheKeys, nil, ttl, metricTags)
	f.storeVectors(foundCacheKeys, missingCacheKeys, cacheKeys, ttl, metricTags)
	metric.Timing("in_memory_cache_mset_latency", time.Since(start), metricTags)
}

func (f *FreeCache) storeVectors(source, missing, already map[string]repositories.CacheStruct, ttl int, metricTags []string) {
	for key, cacheStruct := range source {
		if _, ok := missing[key]; !ok {
			continue
		}
		if _, ok := already[key]; ok {
			continue
		}
		metric.Incr("in_memory_cache_mset", metricTags)
		if len(cacheStruct.Vector) > 0 {
			f.cache.SetEx([]byte(key), repositories.PackFloat16(cacheStruct.Vector), ttl)
		}
	}
}
