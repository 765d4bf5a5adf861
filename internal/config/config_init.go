package config

import (
	"log"
	"strings"

	"github.com/Meesho/BharatMLStack/iris/internal/config/structs"
	"github.com/Meesho/BharatMLStack/iris/pkg/config"
	"github.com/spf13/viper"
)

func InitConfig(appConfig *structs.AppConfig) {
	config.InitEnv()
	cfg, ok := appConfig.GetStaticConfig().(*structs.Configs)
	if !ok {
		log.Fatal("Failed to cast static config to *Configs")
	}
	bindEnvVars()
	if err := viper.Unmarshal(cfg); err != nil {
		log.Fatalf("Failed to unmarshal config from environment: %v", err)
	}
}

// bindEnvVars registers each flat config key against its SCREAMING_SNAKE
// environment variable so viper.Unmarshal picks up values set only via env.
func bindEnvVars() {
	for _, key := range []string{
		"app_name",
		"app_env",
		"auth_tokens",
		"collection_metric_enabled",
		"collection_metric_publish",
		"document_consumer_kafka_ids",
		"document_consumer_sequence_kafka_ids",
		"realtime_consumer_kafka_ids",
		"realtime_producer_kafka_id",
		"realtime_delta_producer_kafka_id",
		"realtime_delta_consumer_kafka_id",
		"etcd_username",
		"etcd_password",
		"etcd_server",
		"etcd_watcher_enabled",
		"redis_id",
		"run_state_consumer",
		"run_state_producer",
		"port",
		"staging_default_index",
		"staging_default_vector_dimension",
		"storage_document_store_count",
	} {
		viper.BindEnv(key, strings.ToUpper(key))
	}
}
