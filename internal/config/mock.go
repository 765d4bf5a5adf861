package config

import (
	"github.com/Meesho/BharatMLStack/iris/internal/config/enums"
	"github.com/stretchr/testify/mock"
)

type MockConfigManager struct {
	mock.Mock
}

// Ensure MockConfigManager implements Manager interface
var _ Manager = (*MockConfigManager)(nil)

func (m *MockConfigManager) GetIrisConfig() (*Iris, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Iris), args.Error(1)
}

func (m *MockConfigManager) GetIndexes() (map[string]Index, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]Index), args.Error(1)
}

func (m *MockConfigManager) GetDataSourceConfig(dataSource string) (*DataSource, error) {
	args := m.Called(dataSource)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*DataSource), args.Error(1)
}

func (m *MockConfigManager) GetSkillsetConfig(skillset string) (*Skillset, error) {
	args := m.Called(skillset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Skillset), args.Error(1)
}

func (m *MockConfigManager) GetIndexConfig(index string) (*Index, error) {
	args := m.Called(index)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Index), args.Error(1)
}

func (m *MockConfigManager) GetIndexerConfig(indexer string) (*Indexer, error) {
	args := m.Called(indexer)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Indexer), args.Error(1)
}

func (m *MockConfigManager) GetIndexersByFrequency(frequency string) (map[string]Indexer, error) {
	args := m.Called(frequency)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]Indexer), args.Error(1)
}

func (m *MockConfigManager) GetStoreConfig(storeId string) (*Data, error) {
	args := m.Called(storeId)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Data), args.Error(1)
}

func (m *MockConfigManager) SetIndexOnboarded(index string, onboarded bool) error {
	args := m.Called(index, onboarded)
	return args.Error(0)
}

func (m *MockConfigManager) UpdateRunState(indexer string, runState enums.RunState) error {
	args := m.Called(indexer, runState)
	return args.Error(0)
}

func (m *MockConfigManager) UpdateIndexReadVersion(index string, version int) error {
	args := m.Called(index, version)
	return args.Error(0)
}

func (m *MockConfigManager) UpdateIndexWriteVersion(index string, version int) error {
	args := m.Called(index, version)
	return args.Error(0)
}

func (m *MockConfigManager) UpdateDocStoreReadVersion(index string, version int) error {
	args := m.Called(index, version)
	return args.Error(0)
}

func (m *MockConfigManager) UpdateDocStoreWriteVersion(index string, version int) error {
	args := m.Called(index, version)
	return args.Error(0)
}

func (m *MockConfigManager) RegisterStore(confId int, db, documentsTable string) error {
	args := m.Called(confId, db, documentsTable)
	return args.Error(0)
}

func (m *MockConfigManager) RegisterFrequency(frequency string) error {
	args := m.Called(frequency)
	return args.Error(0)
}

func (m *MockConfigManager) RegisterDataSource(dataSource, container, prefix string, batchSize int) error {
	args := m.Called(dataSource, container, prefix, batchSize)
	return args.Error(0)
}

func (m *MockConfigManager) RegisterSkillset(skillset, clientId, path, apiKey string, inputMappings, outputMappings map[string]string, dimension uint64, timeoutInMs int) error {
	args := m.Called(skillset, clientId, path, apiKey, inputMappings, outputMappings, dimension, timeoutInMs)
	return args.Error(0)
}

func (m *MockConfigManager) RegisterIndex(index, storeId, keyField string, payload map[string]Payload, vectorProfile VectorProfile, vectorizer Vectorizer, vectorDbConfig VectorDbConfig, vectorDbType string, distributedCacheEnabled bool, distributedCacheTtl int, inMemoryCacheEnabled bool, inMemoryCacheTtl int, rtPartition int, rateLimiter RateLimiter) error {
	args := m.Called(index, storeId, keyField, payload, vectorProfile, vectorizer, vectorDbConfig, vectorDbType, distributedCacheEnabled, distributedCacheTtl, inMemoryCacheEnabled, inMemoryCacheTtl, rtPartition, rateLimiter)
	return args.Error(0)
}

func (m *MockConfigManager) RegisterIndexer(indexer, dataSource, skillset, targetIndex string, fieldMappings map[string]string, runMode string, kafkaId int, failureProducerKafkaId int, topicName string, numberOfPartitions int, jobFrequency string, docStoreEnabled bool, docStoreTtl int) error {
	args := m.Called(indexer, dataSource, skillset, targetIndex, fieldMappings, runMode, kafkaId, failureProducerKafkaId, topicName, numberOfPartitions, jobFrequency, docStoreEnabled, docStoreTtl)
	return args.Error(0)
}

func (m *MockConfigManager) ResetPartitionStates(indexer string) error {
	args := m.Called(indexer)
	return args.Error(0)
}

func (m *MockConfigManager) UpdatePartitionState(indexer, partition string, state int) error {
	args := m.Called(indexer, partition, state)
	return args.Error(0)
}

func (m *MockConfigManager) GetRateLimiters() map[int]RateLimiter {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(map[int]RateLimiter)
}

func (m *MockConfigManager) RegisterWatchPathCallbackWithEvent(path string, callback func(key, value, eventType string) error) error {
	args := m.Called(path, callback)
	return args.Error(0)
}

func (m *MockConfigManager) UpdateVectorDbConfig(index string, vectorDbConfig VectorDbConfig) error {
	args := m.Called(index, vectorDbConfig)
	return args.Error(0)
}

func (m *MockConfigManager) UpdateRateLimiter(index string, burstLimit int, rateLimit int) error {
	args := m.Called(index, burstLimit, rateLimit)
	return args.Error(0)
}
