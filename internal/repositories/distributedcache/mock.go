package distributedcache

import (
	"github.com/Meesho/BharatMLStack/iris/internal/repositories"
	"github.com/stretchr/testify/mock"
)

type MockDistributedCacheClient struct {
	mock.Mock
}

func (m *MockDistributedCacheClient) MGet(keys map[string]repositories.CacheStruct, metricTags []string) (map[string][]byte, error) {
	args := m.Called(keys, metricTags)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string][]byte), args.Error(1)
}

func (m *MockDistributedCacheClient) MSet(responseData map[string]repositories.CandidateResponseStruct, missingCacheKeys map[string]repositories.CacheStruct, ttl int, byteResponseMap map[string][]byte, metricTags []string) {
	m.Called(responseData, missingCacheKeys, ttl, byteResponseMap, metricTags)
}

func (m *MockDistributedCacheClient) MSetVectors(cacheKeys map[string]repositories.CacheStruct, foundCacheKeys map[string]repositories.CacheStruct, missingCacheKeys map[string]repositories.CacheStruct, ttl int, metricTags []string) {
	m.Called(cacheKeys, foundCacheKeys, missingCacheKeys, ttl, metricTags)
}
