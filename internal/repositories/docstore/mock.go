package docstore

import "github.com/stretchr/testify/mock"

type MockStore struct {
	mock.Mock
}

func (m *MockStore) BulkQuery(storeId string, bulkQuery *BulkQuery, queryType string) error {
	args := m.Called(storeId, bulkQuery, queryType)
	return args.Error(0)
}

func (m *MockStore) BulkQueryConsumer(storeId string, bulkQuery *BulkQuery) (map[string]map[string]interface{}, error) {
	args := m.Called(storeId, bulkQuery)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]map[string]interface{}), args.Error(1)
}

func (m *MockStore) Persist(storeId string, ttl int, payload Payload) error {
	args := m.Called(storeId, ttl, payload)
	return args.Error(0)
}
