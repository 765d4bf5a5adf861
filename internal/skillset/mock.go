package skillset

import (
	"github.com/Meesho/BharatMLStack/iris/internal/config"
	"github.com/stretchr/testify/mock"
)

type MockClient struct {
	mock.Mock
}

func (m *MockClient) Enrich(skillset string, source map[string]string) (*Enrichment, error) {
	args := m.Called(skillset, source)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Enrichment), args.Error(1)
}

func (m *MockClient) EnrichWith(skillset string, conf *config.Skillset, source map[string]string) (*Enrichment, error) {
	args := m.Called(skillset, conf, source)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Enrichment), args.Error(1)
}
