package distributedcache

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/Meesho/BharatMLStack/iris/internal/repositories"
	"github.com/Meesho/BharatMLStack/iris/pkg/infra"
	"github.com/Meesho/BharatMLStack/iris/pkg/metric"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

var (
	cacheDB Database
	once    sync.Once
)

type RedisCache struct {
	client *redis.Client
}

func initRedisCache() Database {
	if cacheDB == nil {
		once.Do(func() {
			client, err := infra.GetRedisClient(appConfig.RedisId)
			if err != nil {
				metric.Incr("distributed_cache_redis_failure", []string{})
				log.Panic().Msgf("Redis client lookup failed: %v", err)
			}
			if err := client.Ping(context.Background()).Err(); err != nil {
				metric.Incr("distributed_cache_redis_failure", []string{})
				log.Panic().Msgf("Redis ping failed %v", err)
			}
			cacheDB = &RedisCache{
				client: client,
			}
		})
	}
	return cacheDB
}

func (r *RedisCache) MGet(keys map[string]repositories.CacheStruct, tags []string) (map[string][]byte, error) {
	startTime := time.Now()
	cacheKeyAndGenericResponse := make(map[string][]byte)
	keysSlice := make([]string, 0, len(keys))
	for k := range keys {
		keysSlice = append(keysSlice, k)
	}
	metric.Count("distributed_cache_mget", int64(len(keysSlice)), tags)
	cmd := r.client.MGet(context.Background(), keysSlice...)
	vals, err := cmd.Result()
	if err != nil {
		metric.Incr("distributed_cache_mget_failure", tags)
		log.Error().Msgf("Error fetching data from distributed cache for keys: %v, error: %v", keys, err)
		return cacheKeyAndGenericResponse, err
	}
	for i, val := range vals {
		if val != nil {
			cacheKeyAndGenericResponse[keysSlice[i]] = []byte(val.(string))
		}
	}
	metric.Timing("distributed_cache_mget_latency", time.Since(startTime), tags)
	return cacheKeyAndGenericResponse, nil
}

// MSet caches candidate responses for the missing keys as JSON, the same shape
// the API serves, and mirrors the marshalled bytes into byteResponseMap so the
// caller can backfill the in-memory tier without re-marshalling.
func (r *RedisCache) MSet(responseData map[string]repositories.CandidateResponseStruct, missingCacheKeys map[string]repositories.CacheStruct, ttl int, byteResponseMap map[string][]byte, tags []string) {
	startTime := time.Now()
	finalTTL := getFinalTTLWithJitter(ttl)
	pipe := r.client.Pipeline()
	count := 0
	for key, value := range responseData {
		if _, ok := missingCacheKeys[key]; !ok {
			continue
		}
		metric.Incr("distributed_cache_mset", tags)
		dataBytes, err := json.Marshal(value.Candidates)
		if err != nil {
			metric.Incr("distributed_cache_mset_failure", tags)
			log.Error().Msgf("Error during json marshalling for key %s: %v", key, err)
			continue
		}
		byteResponseMap[key] = dataBytes
		pipe.Set(context.Background(), key, dataBytes, time.Second*time.Duration(finalTTL))
		count++
	}
	_, err := pipe.Exec(context.Background())
	if err != nil {
		metric.Count("distributed_cache_mset_failure", int64(count), tags)
		log.Error().Msgf("Error while persisting data to redis: %v", err)
		return
	}
	metric.Timing("distributed_cache_mset_latency", time.Since(startTime), tags)
}

// MSetVectors caches document vectors fp16-packed for the missing keys.
// foundCacheKeys carries vectors resolved from the document store this request,
// cacheKeys the ones already in hand.
func (r *RedisCache) MSetVectors(cacheKeys map[string]repositories.CacheStruct, foundCacheKeys map[string]repositories.CacheStruct, missingCacheKeys map[string]repositories.CacheStruct, ttl int, tags []string) {
	startTime := time.Now()
	finalTTL := getFinalTTLWithJitter(ttl)
	pipe := r.client.Pipeline()
	count := 0
	for key, cacheStruct := range cacheKeys {
		if _, ok := missingCacheKeys[key]; !ok {
			continue
		}
		metric.Incr("distributed_cache_mset", tags)
		if len(cacheStruct.Vector) > 0 {
			pipe.Set(context.Background(), key, repositories.PackFloat16(cacheStruct.Vector), time.Second*time.Duration(finalTTL))
		}
		count++
	}
	for key, cacheStruct := range foundCacheKeys {
		if _, ok := missingCacheKeys[key]; !ok {
			continue
		}
		if _, ok := cacheKeys[key]; ok {
			continue
		}
		metric.Incr("distributed_cache_mset", tags)
		if len(cacheStruct.Vector) > 0 {
			pipe.Set(context.Background(), key, repositories.PackFloat16(cacheStruct.Vector), time.Second*time.Duration(finalTTL))
		}
		count++
	}
	_, err := pipe.Exec(context.Background())
	if err != nil {
		metric.Count("distributed_cache_mset_failure", int64(count), tags)
		log.Error().Msgf("Error while persisting data to redis: %v", err)
		return
	}
	metric.Timing("distributed_cache_mset_latency", time.Since(startTime), tags)
}

func getFinalTTLWithJitter(ttl int) int {
	jitterPercent := 10
	jitterRange := ttl * jitterPercent / 100
	jitter := rand.Intn(2*jitterRange+1) - jitterRange
	finalTTL := ttl + jitter

	if finalTTL < 1 {
		finalTTL = ttl
	}
	return finalTTL
}
