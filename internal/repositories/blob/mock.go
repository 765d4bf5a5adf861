package blob

import (
	"github.com/stretchr/testify/mock"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Upload(container, key string, body []byte) error {
	args := m.Called(container, key, body)
	return args.Error(0)
}

func (m *MockStore) Exists(container, key string) (bool, error) {
	args := m.Called(container, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) List(container, prefix string) ([]string, error) {
	args := m.Called(container, prefix)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockStore) Download(container, key string) ([]byte, error) {
	args := m.Called(container, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}
