package registry

import (
	"github.com/Meesho/BharatMLStack/iris/internal/config"
)

type CreateStoreRequest struct {
	ConfId         int    `json:"conf_id"`
	Db             string `json:"db"`
	DocumentsTable string `json:"documents_table"`
}

type CreateFrequencyRequest struct {
	Frequency string `json:"frequency"`
}

type RegisterDataSourceRequest struct {
	DataSource string `json:"data_source"`
	Container  string `json:"container"`
	Prefix     string `json:"prefix"`
	BatchSize  int    `json:"batch_size"`
}

type RegisterSkillsetRequest struct {
	Skillset       string            `json:"skillset"`
	ClientId       string            `json:"client_id"`
	Path           string            `json:"path"`
	ApiKey         string            `json:"api_key"`
	InputMappings  map[string]string `json:"input_mappings"`
	OutputMappings map[string]string `json:"output_mappings"`
	Dimension      uint64            `json:"dimension"`
	TimeoutInMs    int               `json:"timeout_in_ms"`
}

// ProbeSkillsetRequest describes an endpoint candidate plus the source fields
// to call it with. Probing happens before registration, so the full endpoint
// description is carried in the request instead of being looked up.
type ProbeSkillsetRequest struct {
	Skillset       string            `json:"skillset"`
	ClientId       string            `json:"client_id"`
	Path           string            `json:"path"`
	ApiKey         string            `json:"api_key"`
	InputMappings  map[string]string `json:"input_mappings"`
	OutputMappings map[string]string `json:"output_mappings"`
	Dimension      uint64            `json:"dimension"`
	TimeoutInMs    int               `json:"timeout_in_ms"`
	ProbeFields    map[string]string `json:"probe_fields"`
}

type ProbeSkillsetResponse struct {
	Dimension int `json:"dimension"`
}

type RegisterIndexRequest struct {
	Index                      string                    `json:"index"`
	StoreId                    string                    `json:"store_id"`
	KeyField                   string                    `json:"key_field"`
	Payload                    map[string]config.Payload `json:"payload"`
	VectorProfile              config.VectorProfile      `json:"vector_profile"`
	Vectorizer                 config.Vectorizer         `json:"vectorizer"`
	VectorDbConfig             config.VectorDbConfig     `json:"vector_db_config"`
	VectorDbType               string                    `json:"vector_db_type"`
	DistributedCachingEnabled  bool                      `json:"distributed_caching_enabled"`
	DistributedCacheTTLSeconds int                       `json:"distributed_cache_ttl_seconds"`
	InMemoryCachingEnabled     bool                      `json:"in_memory_caching_enabled"`
	InMemoryCacheTTLSeconds    int                       `json:"in_memory_cache_ttl_seconds"`
	RtPartition                int                       `json:"rt_partition"`
	RateLimiter                config.RateLimiter        `json:"rate_limiter"`
}

type RegisterIndexerRequest struct {
	Indexer                string            `json:"indexer"`
	DataSource             string            `json:"data_source"`
	Skillset               string            `json:"skillset"`
	TargetIndex            string            `json:"target_index"`
	FieldMappings          map[string]string `json:"field_mappings"`
	RunMode                string            `json:"run_mode"`
	KafkaId                int               `json:"kafka_id"`
	FailureProducerKafkaId int               `json:"failure_producer_kafka_id"`
	TopicName              string            `json:"topic_name"`
	NumberOfPartitions     int               `json:"number_of_partitions"`
	JobFrequency           string            `json:"job_frequency"`
	DocStoreEnabled        bool              `json:"doc_store_enabled"`
	DocStoreTtl            int               `json:"doc_store_ttl"`
}

// StageDocumentsRequest carries raw source documents to upload into a data
// source's staging area. Every document needs a document_id field, the rest
// is free-form source metadata.
type StageDocumentsRequest struct {
	Documents []map[string]string `json:"documents"`
}

type StageDocumentsResponse struct {
	Staged  int `json:"staged"`
	Skipped int `json:"skipped"`
}
