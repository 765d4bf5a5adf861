package etcd

import (
	"github.com/stretchr/testify/mock"
)

// MockEtcd mocks the Etcd interface for tests. The unexported hydration
// methods are no-ops, registry code never reaches them.
type MockEtcd struct {
	mock.Mock
}

var _ Etcd = (*MockEtcd)(nil)

func (m *MockEtcd) GetConfigInstance() interface{} {
	args := m.Called()
	return args.Get(0)
}

func (m *MockEtcd) SetValue(path string, value interface{}) error {
	args := m.Called(path, value)
	return args.Error(0)
}

func (m *MockEtcd) SetValues(paths map[string]interface{}) error {
	args := m.Called(paths)
	return args.Error(0)
}

func (m *MockEtcd) CreateNode(path string, value interface{}) error {
	args := m.Called(path, value)
	return args.Error(0)
}

func (m *MockEtcd) CreateNodes(paths map[string]interface{}) error {
	args := m.Called(paths)
	return args.Error(0)
}

func (m *MockEtcd) IsNodeExist(path string) (bool, error) {
	args := m.Called(path)
	return args.Bool(0), args.Error(1)
}

func (m *MockEtcd) IsLeafNodeExist(path string) (bool, error) {
	args := m.Called(path)
	return args.Bool(0), args.Error(1)
}

func (m *MockEtcd) RegisterWatchPathCallbackWithEvent(path string, callback func(key, value, eventType string) error) error {
	args := m.Called(path, callback)
	return args.Error(0)
}

func (m *MockEtcd) updateConfig(config interface{}) error {
	return nil
}

func (m *MockEtcd) handleStruct(dataMap, metaMap *map[string]string, output interface{}, prefix string) error {
	return nil
}

func (m *MockEtcd) handleMap(dataMap, metaMap *map[string]string, output interface{}, prefix string) error {
	return nil
}
