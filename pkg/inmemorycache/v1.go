package inmemorycache

import (
	"fmt"
	"runtime/debug"
	"time"

	"github.com/Meesho/BharatMLStack/iris/pkg/metric"
	"github.com/coocood/freecache"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	metricUpdateInterval = 1 * time.Minute
	infiniteExpiry       = -1
)

type V1 struct {
	cacheName  string
	sizeInMb   int
	inMemCache *freecache.Cache
}

type V1Builder struct {
	v1 *V1
}

func newV1Builder(cacheName string) *V1Builder {
	if cacheName == "" {
		log.Panic().Msg("cache name cannot be empty")
	}
	return &V1Builder{
		v1: &V1{
			cacheName: cacheName,
		},
	}
}

func (b *V1Builder) withSizeInMB(sizeMB int) *V1Builder {
	if sizeMB <= 0 {
		log.Panic().Msgf("cache size must be positive, got %d MB", sizeMB)
	}
	b.v1.sizeInMb = sizeMB
	return b
}

func (b *V1Builder) build() (*V1, error) {
	if b.v1.cacheName == "" {
		return nil, fmt.Errorf("cache name is required")
	}
	if b.v1.sizeInMb <= 0 {
		return nil, fmt.Errorf("invalid cache size: %d MB", b.v1.sizeInMb)
	}
	b.v1.inMemCache = freecache.NewCache(b.v1.sizeInMb * 1024 * 1024)
	return b.v1, nil
}

// SizeInMb returns the configured cache size in megabytes.
func (v *V1) SizeInMb() int {
	return v.sizeInMb
}

// applyGCPercentage tunes the runtime GC from APP_GC_PERCENTAGE. A value of
// -1 leaves the runtime default alone.
func applyGCPercentage() {
	if !viper.IsSet(appGCPercentage) {
		log.Warn().Msg("env::APP_GC_PERCENTAGE is not set")
		return
	}
	if gcPercentage := viper.GetInt(appGCPercentage); gcPercentage != -1 {
		debug.SetGCPercent(gcPercentage)
	}
}

func newV1InMemoryCache(name string) InMemoryCache {
	if !viper.IsSet(inMemoryCacheSizeInBytes) {
		log.Panic().Msg("env::IN_MEMORY_CACHE_SIZE_IN_BYTES is not set")
	}
	sizeInBytes := viper.GetInt(inMemoryCacheSizeInBytes)

	cache := &V1{
		cacheName:  name,
		sizeInMb:   sizeInBytes / (1024 * 1024),
		inMemCache: freecache.NewCache(sizeInBytes),
	}

	applyGCPercentage()
	go cache.publishMetric()
	return cache
}

func newV1InMemoryCacheWithConf(name string, sizeInMb int) InMemoryCache {
	cache, err := newV1Builder(name).withSizeInMB(sizeInMb).build()
	if err != nil {
		log.Panic().Err(err).Msg("failed to build in-memory cache")
	}

	applyGCPercentage()
	go cache.publishMetric()
	return cache
}

func (v *V1) Get(key []byte) ([]byte, error) {
	return v.inMemCache.Get(key)
}

func (v *V1) Set(key, value []byte) error {
	return v.inMemCache.Set(key, value, infiniteExpiry)
}

func (v *V1) SetEx(key, value []byte, expiryInSec int) error {
	return v.inMemCache.Set(key, value, expiryInSec)
}

func (v *V1) Delete(key []byte) bool {
	return v.inMemCache.Del(key)
}

// publishMetric pushes the cache gauges every metricUpdateInterval.
func (v *V1) publishMetric() {
	ticker := time.NewTicker(metricUpdateInterval)
	defer ticker.Stop()
	tags := metric.BuildTag(metric.NewTag("cache_name", v.cacheName))
	for range ticker.C {
		metric.Gauge(HitRate, v.inMemCache.HitRate(), tags)
		metric.Gauge(ItemCount, float64(v.inMemCache.EntryCount()), tags)
		metric.Gauge(EvacuateCount, float64(v.inMemCache.EvacuateCount()), tags)
		metric.Gauge(ExpiryCount, float64(v.inMemCache.ExpiredCount()), tags)
	}
}
