package infra

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	cacheRedisPrefix              = "CACHE_REDIS_"
	activeConfIdsSuffix           = "ACTIVE_CONF_IDS"
	redisAddrEnvSuffix            = "_ADDR"
	redisUsernameEnvSuffix        = "_USERNAME"
	redisPasswordEnvSuffix        = "_PASSWORD"
	redisDbEnvSuffix              = "_DB"
	redisMaxRetryEnvSuffix        = "_MAX_RETRY"
	redisDialTimeoutEnvSuffix     = "_DIAL_TIMEOUT_IN_MS"
	redisReadTimeoutEnvSuffix     = "_READ_TIMEOUT_IN_MS"
	redisWriteTimeoutEnvSuffix    = "_WRITE_TIMEOUT_IN_MS"
	redisPoolSizeEnvSuffix        = "_POOL_SIZE"
	redisMinIdleEnvSuffix         = "_MIN_IDLE_CONN"
	redisMaxIdleEnvSuffix         = "_MAX_IDLE_CONN"
	redisPoolTimeoutEnvSuffix     = "_POOL_TIMEOUT_IN_MS"
	redisConnMaxAgeEnvSuffix      = "_CONN_MAX_AGE_IN_MINUTES"
	redisDisableIdentityEnvSuffix = "_DISABLE_IDENTITY"
)

var (
	redisClients map[int]*redis.Client
	redisOnce    sync.Once
)

// InitRedis dials every redis instance listed in CACHE_REDIS_ACTIVE_CONF_IDS,
// each configured from CACHE_REDIS_{confId}_* environment variables.
func InitRedis() {
	redisOnce.Do(func() {
		activeConfIdsStr := viper.GetString(cacheRedisPrefix + activeConfIdsSuffix)
		if activeConfIdsStr == "" {
			return
		}
		activeIds := strings.Split(activeConfIdsStr, ",")
		redisClients = make(map[int]*redis.Client, len(activeIds))
		for _, confIdStr := range activeIds {
			opts, err := BuildRedisOptionsFromEnv(cacheRedisPrefix + confIdStr)
			if err != nil {
				log.Panic().Err(err).Msgf("Error building redis options for conf id %s", confIdStr)
			}
			confId, err := strconv.Atoi(confIdStr)
			if err != nil {
				log.Panic().Err(err).Msgf("Invalid redis conf id %s", confIdStr)
			}
			client := redis.NewClient(opts)
			if err := client.Ping(context.Background()).Err(); err != nil {
				log.Panic().Err(err).Msgf("Redis ping failed for conf id %d", confId)
			}
			redisClients[confId] = client
		}
	})
}

// GetRedisClient returns the client for the given conf id. InitRedis must run first.
func GetRedisClient(confId int) (*redis.Client, error) {
	client, ok := redisClients[confId]
	if !ok {
		return nil, errors.New("redis client not found for conf id " + strconv.Itoa(confId))
	}
	return client, nil
}

// BuildRedisOptionsFromEnv constructs redis options from environment variables
// with the given prefix. {envPrefix}_ADDR and {envPrefix}_DB are mandatory,
// auth, timeouts and pool settings are optional.
func BuildRedisOptionsFromEnv(envPrefix string) (*redis.Options, error) {
	if !viper.IsSet(envPrefix + redisAddrEnvSuffix) {
		return nil, errors.New(envPrefix + redisAddrEnvSuffix + " not set")
	}
	if !viper.IsSet(envPrefix + redisDbEnvSuffix) {
		return nil, errors.New(envPrefix + redisDbEnvSuffix + " not set")
	}
	redisOptions := redis.Options{
		Addr: viper.GetString(envPrefix + redisAddrEnvSuffix),
		DB:   viper.GetInt(envPrefix + redisDbEnvSuffix),
	}
	if viper.IsSet(envPrefix + redisUsernameEnvSuffix) {
		redisOptions.Username = viper.GetString(envPrefix + redisUsernameEnvSuffix)
	}
	if viper.IsSet(envPrefix + redisPasswordEnvSuffix) {
		redisOptions.Password = viper.GetString(envPrefix + redisPasswordEnvSuffix)
	}
	if viper.IsSet(envPrefix + redisMaxRetryEnvSuffix) {
		redisOptions.MaxRetries = viper.GetInt(envPrefix + redisMaxRetryEnvSuffix)
	}
	if viper.IsSet(envPrefix + redisDialTimeoutEnvSuffix) {
		redisOptions.DialTimeout = time.Duration(viper.GetInt(envPrefix+redisDialTimeoutEnvSuffix)) * time.Millisecond
	}
	if viper.IsSet(envPrefix + redisReadTimeoutEnvSuffix) {
		redisOptions.ReadTimeout = time.Duration(viper.GetInt(envPrefix+redisReadTimeoutEnvSuffix)) * time.Millisecond
	}
	if viper.IsSet(envPrefix + redisWriteTimeoutEnvSuffix) {
		redisOptions.WriteTimeout = time.Duration(viper.GetInt(envPrefix+redisWriteTimeoutEnvSuffix)) * time.Millisecond
	}
	if viper.IsSet(envPrefix + redisPoolSizeEnvSuffix) {
		redisOptions.PoolSize = viper.GetInt(envPrefix + redisPoolSizeEnvSuffix)
	}
	if viper.IsSet(envPrefix + redisMinIdleEnvSuffix) {
		redisOptions.MinIdleConns = viper.GetInt(envPrefix + redisMinIdleEnvSuffix)
	}
	if viper.IsSet(envPrefix + redisMaxIdleEnvSuffix) {
		redisOptions.MaxIdleConns = viper.GetInt(envPrefix + redisMaxIdleEnvSuffix)
	}
	if viper.IsSet(envPrefix + redisPoolTimeoutEnvSuffix) {
		redisOptions.PoolTimeout = time.Duration(viper.GetInt(envPrefix+redisPoolTimeoutEnvSuffix)) * time.Millisecond
	}
	if viper.IsSet(envPrefix + redisConnMaxAgeEnvSuffix) {
		redisOptions.ConnMaxLifetime = time.Duration(viper.GetInt(envPrefix+redisConnMaxAgeEnvSuffix)) * time.Minute
	}
	if viper.IsSet(envPrefix + redisDisableIdentityEnvSuffix) {
		redisOptions.DisableIndentity = viper.GetBool(envPrefix + redisDisableIdentityEnvSuffix)
	}
	return &redisOptions, nil
}
