package structs

var (
	appConfig AppConfig
)

type AppConfig struct {
	Configs        Configs
	DynamicConfigs DynamicConfigs
}

func (cfg *AppConfig) GetStaticConfig() interface{} {
	return &cfg.Configs
}

func (cfg *AppConfig) GetDynamicConfig() interface{} {
	return &cfg.DynamicConfigs
}
func GetAppConfig() *AppConfig {
	return &appConfig
}

type Configs struct {
	AppName                          string `mapstructure:"app_name"`
	AppEnv                           string `mapstructure:"app_env"`
	AuthTokens                       string `mapstructure:"auth_tokens"`
	CollectionMetricEnabled          bool   `mapstructure:"collection_metric_enabled"`
	CollectionMetricPublish          int    `mapstructure:"collection_metric_publish"`
	DocumentConsumerKafkaIds         string `mapstructure:"document_consumer_kafka_ids"`
	DocumentConsumerSequenceKafkaIds string `mapstructure:"document_consumer_sequence_kafka_ids"`
	RealtimeConsumerKafkaIds         string `mapstructure:"realtime_consumer_kafka_ids"`
	RealtimeProducerKafkaId          int    `mapstructure:"realtime_producer_kafka_id"`
	RealTimeDeltaProducerKafkaId     int    `mapstructure:"realtime_delta_producer_kafka_id"`
	RealTimeDeltaConsumerKafkaId     int    `mapstructure:"realtime_delta_consumer_kafka_id"`
	EtcdUsername                     string `mapstructure:"etcd_username"`
	EtcdPassword                     string `mapstructure:"etcd_password"`
	EtcdServer                       string `mapstructure:"etcd_server"`
	EtcdWatcherEnabled               bool   `mapstructure:"etcd_watcher_enabled"`
	RedisId                          int    `mapstructure:"redis_id"`
	RunStateConsumer                 int    `mapstructure:"run_state_consumer"`
	RunStateProducer                 int    `mapstructure:"run_state_producer"`
	Port                             int    `mapstructure:"port"`
	StagingDefaultIndex              string `mapstructure:"staging_default_index"`
	StagingDefaultVectorDimension    int    `mapstructure:"staging_default_vector_dimension"`
	StorageDocumentStoreCount        int    `mapstructure:"storage_document_store_count"`
}

type DynamicConfigs struct {
}
