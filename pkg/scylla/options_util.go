package scylla

import (
	"errors"
	"strings"
	"time"

	"github.com/gocql/gocql"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	contactPointsSuffix          = "_CONTACT_POINTS"
	portSuffix                   = "_PORT"
	keyspaceSuffix               = "_KEYSPACE"
	timeoutSuffix                = "_TIMEOUT_IN_MS"
	connectTimeoutSuffix         = "_CONNECT_TIMEOUT_IN_MS"
	numConnsSuffix               = "_NUM_CONNS"
	maxPreparedStmtsSuffix       = "_MAX_PREPARED_STATEMENTS"
	maxRoutingKeyInfoSuffix      = "_MAX_ROUTING_KEY_INFO"
	pageSizeSuffix               = "_PAGE_SIZE"
	maxWaitSchemaAgreementSuffix = "_MAX_WAIT_SCHEMA_AGREEMENT"
	reconnectIntervalSuffix      = "_RECONNECT_INTERVAL"
	writeCoalesceWaitTimeSuffix  = "_WRITE_COALESCE_WAIT_TIME"
	usernameSuffix               = "_USERNAME"
	passwordSuffix               = "_PASSWORD"
)

// BuildClusterConfigFromEnv assembles a gocql cluster config from viper-bound
// environment variables named <envPrefix> + suffix. Contact points, port, and
// keyspace are mandatory; every other setting falls back to the gocql default
// when its variable is absent. Duration variables carry their unit in the
// suffix (_IN_MS etc.) to avoid unit confusion.
func BuildClusterConfigFromEnv(envPrefix string) (*gocql.ClusterConfig, error) {
	log.Debug().Msgf("building scylla cluster config from env, env prefix - %s", envPrefix)

	contactPoints, err := requireSetting(envPrefix + contactPointsSuffix)
	if err != nil {
		return nil, err
	}
	cfg := gocql.NewCluster(strings.Split(contactPoints, ",")...)

	if _, err := requireSetting(envPrefix + portSuffix); err != nil {
		return nil, err
	}
	cfg.Port = viper.GetInt(envPrefix + portSuffix)

	keyspace, err := requireSetting(envPrefix + keyspaceSuffix)
	if err != nil {
		return nil, err
	}
	cfg.Keyspace = keyspace

	applyTunables(cfg, envPrefix)
	applyAuth(cfg, envPrefix)
	return cfg, nil
}

func requireSetting(key string) (string, error) {
	if !viper.IsSet(key) {
		return "", errors.New(key + " not set")
	}
	return viper.GetString(key), nil
}

func applyTunables(cfg *gocql.ClusterConfig, envPrefix string) {
	setInt := func(suffix string, dst *int) {
		if key := envPrefix + suffix; viper.IsSet(key) {
			*dst = viper.GetInt(key)
		}
	}
	setDuration := func(suffix string, unit time.Duration, dst *time.Duration) {
		if key := envPrefix + suffix; viper.IsSet(key) {
			*dst = time.Duration(viper.GetInt(key)) * unit
		}
	}
	setDuration(timeoutSuffix, time.Millisecond, &cfg.Timeout)
	setDuration(connectTimeoutSuffix, time.Millisecond, &cfg.ConnectTimeout)
	setInt(numConnsSuffix, &cfg.NumConns)
	setInt(maxPreparedStmtsSuffix, &cfg.MaxPreparedStmts)
	setInt(maxRoutingKeyInfoSuffix, &cfg.MaxRoutingKeyInfo)
	setInt(pageSizeSuffix, &cfg.PageSize)
	setDuration(maxWaitSchemaAgreementSuffix, time.Second, &cfg.MaxWaitSchemaAgreement)
	setDuration(reconnectIntervalSuffix, time.Second, &cfg.ReconnectInterval)
	setDuration(writeCoalesceWaitTimeSuffix, time.Microsecond, &cfg.WriteCoalesceWaitTime)
}

func applyAuth(cfg *gocql.ClusterConfig, envPrefix string) {
	if viper.IsSet(envPrefix+usernameSuffix) && viper.IsSet(envPrefix+passwordSuffix) {
		cfg.Authenticator = gocql.PasswordAuthenticator{
			Username: viper.GetString(envPrefix + usernameSuffix),
			Password: viper.GetString(envPrefix + passwordSuffix),
		}
	}
}
