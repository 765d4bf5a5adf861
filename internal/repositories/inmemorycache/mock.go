package inmemorycache

import (
	"github.com/Meesho/BharatMLStack/iris/internal/repositories"
	"github.com/stretchr/testify/mock"
)

type MockInMemoryCacheClient struct {
	mock.Mock
}

func (m *MockInMemoryCacheClient) MGet(keys map[string]repositories.CacheStruct, metricTags []string) map[string][]byte {
	args := m.Called(keys, metricTags)
	if args.Get(0) == nil {
		return map[string][]byte{}
	}
	return args.Get(0).(map[string][]byte)
}

func (m *MockInMemoryCacheClient) MSet(responseData map[string]repositories.CandidateResponseStruct, missingCacheKeys map[string]repositories.CacheStruct, ttl int, byteResponseMap map[string][]byte, metricTags []string) {
	m.Called(responseData, missingCacheKeys, ttl, byteResponseMap, metricTags)
}

func (m *MockInMemoryCacheClient) MSetVectors(cacheKeys map[string]repositories.CacheStruct, foundCacheKeys map[string]repositories.CacheStruct, missingCacheKeys map[string]repositories.CacheStruct, ttl int, metricTags []string) {
	m.Called(cacheKeys, foundCacheKeys, missingCacheKeys, ttl, metricTags)
}
