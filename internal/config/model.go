package config

import "github.com/Meesho/BharatMLStack/iris/internal/config/enums"

type Iris struct {
	DataSources                         map[string]DataSource
	Skillsets                           map[string]Skillset
	Indexes                             map[string]Index
	Indexers                            map[string]Indexer
	Storage                             Storage
	DefaultInMemoryCachingTTLSeconds    int
	DefaultDistributedCachingTTLSeconds int
}

type RateLimiter struct {
	RateLimit  int
	BurstLimit int
}

type DataSource struct {
	Container string
	Prefix    string
	BatchSize int
	Enabled   bool
}

type Skillset struct {
	ClientId       string
	Path           string
	ApiKey         string
	InputMappings  map[string]string
	OutputMappings map[string]string
	Dimension      uint64
	TimeoutInMs    int
	Enabled        bool
}

type Index struct {
	StoreId                            string
	KeyField                           string
	Payload                            map[string]Payload
	VectorProfile                      VectorProfile
	Vectorizer                         Vectorizer
	VectorDbType                       enums.VectorDbType
	VectorDbConfig                     VectorDbConfig
	ReadVersion                        int
	WriteVersion                       int
	DocStoreReadVersion                int
	DocStoreWriteVersion               int
	Enabled                            bool
	Onboarded                          bool
	RTPartition                        int
	RateLimiter                        RateLimiter
	InMemoryCachingEnabled             bool
	InMemoryCacheTTLSeconds            int
	DistributedCachingEnabled          bool
	DistributedCacheTTLSeconds         int
	DocumentRetrievalInMemoryConfig    Config
	DocumentRetrievalDistributedConfig Config
	BackupConfig                       BackupConfig
	TestConfig                         TestConfig
}

type Indexer struct {
	DataSource             string
	Skillset               string
	TargetIndex            string
	FieldMappings          map[string]string
	RunMode                enums.RunMode
	KafkaId                int
	FailureProducerKafkaId int
	TopicName              string
	NumberOfPartitions     int
	PartitionStates        map[string]int
	RunState               enums.RunState
	JobFrequency           string
	DocStoreEnabled        bool
	DocStoreTtl            int
	Enabled                bool
	RtDeltaProcessing      bool
}

type VectorProfile struct {
	DistanceMetric  string            `json:"distance_metric"`
	VectorDimension uint64            `json:"vector_dimension"`
	Params          map[string]string `json:"params"`
}

type Vectorizer struct {
	Skillset string `json:"skillset"`
	Enabled  bool   `json:"enabled"`
}

type Config struct {
	Enabled bool
	TTL     int
}

type BackupConfig struct {
	Enabled          bool
	RoutePercentage  int
	DualWriteEnabled bool
	Host             string
	Version          int
}

type TestConfig struct {
	VectorDbType enums.VectorDbType
	Percentage   int
	Index        string
	Version      int
}

type VectorDbConfig struct {
	ReadHost    string            `json:"read_host"`
	WriteHost   string            `json:"write_host"`
	Port        string            `json:"port"`
	Http2Config Http2Config       `json:"http2config"`
	Params      map[string]string `json:"params"`
}

type Http2Config struct {
	Deadline       int    `json:"deadline"`
	WriteDeadline  int    `json:"write_deadline"`
	KeepAliveTime  string `json:"keep_alive_time"`
	ThreadPoolSize string `json:"thread_pool_size"`
	IsPlainText    bool   `json:"is_plain_text"`
}

type Payload struct {
	FieldSchema  string `json:"field_schema"`
	DefaultValue string `json:"default_value"`
	Indexed      bool   `json:"indexed"`
}

type Storage struct {
	Stores      map[string]Data
	Frequencies string
}

type Data struct {
	ConfId         int    `json:"conf_id"`
	DocumentsTable string `json:"documents_table"`
	Db             string `json:"db"`
}
