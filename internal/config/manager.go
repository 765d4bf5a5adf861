package config

import (
	"github.com/Meesho/BharatMLStack/iris/internal/config/enums"
)

type Manager interface {
	GetIrisConfig() (*Iris, error)
	GetIndexes() (map[string]Index, error)
	GetDataSourceConfig(dataSource string) (*DataSource, error)
	GetSkillsetConfig(skillset string) (*Skillset, error)
	GetIndexConfig(index string) (*Index, error)
	GetIndexerConfig(indexer string) (*Indexer, error)
	GetIndexersByFrequency(frequency string) (map[string]Indexer, error)
	GetStoreConfig(storeId string) (*Data, error)
	SetIndexOnboarded(index string, onboarded bool) error
	UpdateRunState(indexer string, runState enums.RunState) error
	UpdateIndexReadVersion(index string, version int) error
	UpdateIndexWriteVersion(index string, version int) error
	UpdateDocStoreReadVersion(index string, version int) error
	UpdateDocStoreWriteVersion(index string, version int) error
	RegisterStore(confId int, db string, documentsTable string) error
	RegisterFrequency(frequency string) error
	RegisterDataSource(dataSource string, container string, prefix string, batchSize int) error
	RegisterSkillset(string, string, string, string, map[string]string, map[string]string, uint64, int) error
	RegisterIndex(string, string, string, map[string]Payload, VectorProfile, Vectorizer, VectorDbConfig, string, bool, int, bool, int, int, RateLimiter) error
	RegisterIndexer(string, string, string, string, map[string]string, string, int, int, string, int, string, bool, int) error
	ResetPartitionStates(indexer string) error
	UpdatePartitionState(indexer string, partition string, state int) error
	GetRateLimiters() map[int]RateLimiter
	UpdateRateLimiter(index string, burstLimit int, rateLimit int) error
	RegisterWatchPathCallbackWithEvent(path string, callback func(key, value, eventType string) error) error
	UpdateVectorDbConfig(index string, vectorDbConfig VectorDbConfig) error
}
