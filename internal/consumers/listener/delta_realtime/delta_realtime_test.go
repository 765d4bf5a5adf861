package delta_realtime

import (
	"errors"
	"testing"

	"github.com/Meesho/BharatMLStack/iris/internal/config"
	"github.com/Meesho/BharatMLStack/iris/internal/consumers/handler/indexer"
	"github.com/Meesho/BharatMLStack/iris/internal/consumers/listener/realtime"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func newTestDeltaConsumer(configManager config.Manager) *RealTimeDeltaConsumer {
	consumer := &RealTimeDeltaConsumer{
		configManager:  configManager,
		rateLimiters:   make(map[int]*rate.Limiter),
		partitionChans: make([]chan partitionJob, 256),
	}
	for p := 0; p < 256; p++ {
		consumer.partitionChans[p] = make(chan partitionJob, 10)
	}
	return consumer
}

func TestExtractRateLimiterKey_RateLimit(t *testing.T) {
	r := &RealTimeDeltaConsumer{}

	// key format: /config/<app>/indexes/<index>/rate-limiter/rate-limit
	key := "/config/iris/indexes/products/rate-limiter/rate-limit"
	assert.Equal(t, "products", r.extractRateLimiterKey(key))
}

func TestExtractRateLimiterKey_BurstLimit(t *testing.T) {
	r := &RealTimeDeltaConsumer{}
	key := "/config/iris/indexes/products/rate-limiter/burst-limit"
	assert.Equal(t, "products", r.extractRateLimiterKey(key))
}

func TestExtractRateLimiterKey_NoMatch(t *testing.T) {
	r := &RealTimeDeltaConsumer{}
	key := "/config/iris/indexes/products/rate-limiter/something-else"
	assert.Empty(t, r.extractRateLimiterKey(key))
}

func TestProcessDeltaEvent_GroupsByPartition(t *testing.T) {
	mockConfig := &config.MockConfigManager{}
	mockConfig.On("GetIndexConfig", "products").Return(&config.Index{
		RTPartition: 3, ReadVersion: 2, WriteVersion: 2,
	}, nil)

	r := newTestDeltaConsumer(mockConfig)
	events := []realtime.DeltaEvent{
		{Index: "products", Version: 2, Id: "p1", Vectors: []float32{1, 2}, EventType: "UPSERT", TopicPartition: kafka.TopicPartition{Offset: 5}},
		{Index: "products", Version: 2, Id: "p2", EventType: "DELETE", TopicPartition: kafka.TopicPartition{Offset: 7}},
	}

	err := r.ProcessDeltaEvent(events, nil)
	assert.NoError(t, err)

	job := <-r.partitionChans[3]
	assert.Equal(t, 3, job.partition)
	assert.Len(t, job.event.Data[indexer.Upsert], 1)
	assert.Len(t, job.event.Data[indexer.Delete], 1)
	assert.Equal(t, "p1", job.event.Data[indexer.Upsert][0].Id)
	assert.Equal(t, kafka.Offset(7), job.commitOffset.Offset)
	assert.Equal(t, kafka.Offset(5), job.seekOffset.Offset)
}

func TestProcessDeltaEvent_SkipsEmptyVectorUpsert(t *testing.T) {
	mockConfig := &config.MockConfigManager{}

	r := newTestDeltaConsumer(mockConfig)
	events := []realtime.DeltaEvent{
		{Index: "products", Version: 2, Id: "p1", EventType: "UPSERT"},
	}

	err := r.ProcessDeltaEvent(events, nil)
	assert.NoError(t, err)
	assert.Empty(t, r.partitionChans[0])
	mockConfig.AssertNotCalled(t, "GetIndexConfig", "products")
}

func TestProcessDeltaEvent_ConfigError(t *testing.T) {
	mockConfig := &config.MockConfigManager{}
	mockConfig.On("GetIndexConfig", "missing").Return(nil, errors.New("index not found"))

	r := newTestDeltaConsumer(mockConfig)
	events := []realtime.DeltaEvent{
		{Index: "missing", Version: 2, Id: "p1", EventType: "DELETE"},
	}

	err := r.ProcessDeltaEvent(events, nil)
	assert.Error(t, err)
}

func TestRefreshRateLimiters_UpdatesLimiter(t *testing.T) {
	mockConfig := &config.MockConfigManager{}
	mockConfig.On("GetIndexConfig", "products").Return(&config.Index{
		RTPartition: 3,
		RateLimiter: config.RateLimiter{RateLimit: 10, BurstLimit: 5},
	}, nil)
	mockConfig.On("GetRateLimiters").Return(map[int]config.RateLimiter{
		3: {RateLimit: 10, BurstLimit: 5},
	})

	r := newTestDeltaConsumer(mockConfig)
	err := r.RefreshRateLimiters("/config/iris/indexes/products/rate-limiter/rate-limit", "10", "PUT")
	assert.NoError(t, err)
	limiter, ok := r.rateLimiters[3]
	assert.True(t, ok)
	assert.Equal(t, 5, limiter.Burst())
}

func TestRefreshRateLimiters_DeleteEventIgnored(t *testing.T) {
	mockConfig := &config.MockConfigManager{}
	mockConfig.On("GetIndexConfig", "products").Return(&config.Index{RTPartition: 3}, nil)

	r := newTestDeltaConsumer(mockConfig)
	err := r.RefreshRateLimiters("/config/iris/indexes/products/rate-limiter/rate-limit", "", "DELETE")
	assert.NoError(t, err)
	assert.Empty(t, r.rateLimiters)
}

func TestRefreshRateLimiters_UnassignedPartition(t *testing.T) {
	mockConfig := &config.MockConfigManager{}
	mockConfig.On("GetIndexConfig", "products").Return(&config.Index{RTPartition: 0}, nil)
	mockConfig.On("GetRateLimiters").Return(map[int]config.RateLimiter{})

	r := newTestDeltaConsumer(mockConfig)
	err := r.RefreshRateLimiters("/config/iris/indexes/products/rate-limiter/burst-limit", "", "PUT")
	assert.NoError(t, err)
	assert.Empty(t, r.rateLimiters)
}

func TestRefreshRateLimiters_IrrelevantKeyIgnored(t *testing.T) {
	mockConfig := &config.MockConfigManager{}

	r := newTestDeltaConsumer(mockConfig)
	err := r.RefreshRateLimiters("/config/iris/indexes/products/enabled", "true", "PUT")
	assert.NoError(t, err)
	mockConfig.AssertNotCalled(t, "GetIndexConfig", "products")
}
