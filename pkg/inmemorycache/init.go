package inmemorycache

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

var (
	namedInstances map[string]InMemoryCache
	instance       InMemoryCache
	once           sync.Once
	cacheOnce      sync.Once
)

type InMemoryCacheDetail struct {
	Name           string
	MemorySizeInMb int
}

const inMemoryCacheV1Name = "in_memory_cache_v1"

// Init initializes the default in-memory-cache, to be called from main.go
func Init(version int) {
	once.Do(func() {
		switch version {
		case 1:
			instance = newV1InMemoryCache(inMemoryCacheV1Name)
		default:
			log.Panic().Msgf("invalid version %d", version)
		}
	})
}

// InitV1 initializes the in-memory-cache with version 1
func InitV1() {
	Init(1)
}

// initNamedCaches guards the named-instance map. Only one of the multi-cache
// initializers may run, and only once.
func initNamedCaches(register func(map[string]InMemoryCache)) {
	if namedInstances != nil {
		log.Panic().Msg("namedInstances already initialized, use either InitMultiInMemoryCache or InitMultiInMemoryCacheWithConf")
	}
	cacheOnce.Do(func() {
		namedInstances = make(map[string]InMemoryCache)
		register(namedInstances)
	})
}

func requireUnusedName(caches map[string]InMemoryCache, cacheName string) {
	if _, exist := caches[cacheName]; exist {
		log.Panic().Msgf("in-memory cache %q registered twice, check the cache initialization lists", cacheName)
	}
}

// InitMultiInMemoryCache creates one cache per name, each sized from the
// IN_MEMORY_CACHE_SIZE_IN_BYTES env var.
func InitMultiInMemoryCache(cacheNames []string) {
	initNamedCaches(func(caches map[string]InMemoryCache) {
		for _, cacheName := range cacheNames {
			requireUnusedName(caches, cacheName)
			caches[cacheName] = newV1InMemoryCache(cacheName)
		}
	})
}

// InitMultiInMemoryCacheWithConf creates one cache per detail entry with the
// size the entry carries.
func InitMultiInMemoryCacheWithConf(cacheDetails []InMemoryCacheDetail) {
	initNamedCaches(func(caches map[string]InMemoryCache) {
		for _, cacheDetail := range cacheDetails {
			requireUnusedName(caches, cacheDetail.Name)
			caches[cacheDetail.Name] = newV1InMemoryCacheWithConf(cacheDetail.Name, cacheDetail.MemorySizeInMb)
		}
	})
}

// Instance returns the default cache. Init must have run first.
func Instance() InMemoryCache {
	if instance == nil {
		log.Panic().Msg("in-memory-cache not initialized, call Init first")
	}
	return instance
}

func InstanceByName(cacheName string) (InMemoryCache, error) {
	cache, exist := namedInstances[cacheName]
	if !exist {
		return nil, errors.New("in-memory-cache not initialized, call Init first")
	}
	return cache, nil
}

// SetMockInstance swaps the default cache, for tests that go through
// Instance() directly.
func SetMockInstance(mock InMemoryCache) {
	instance = mock
}
