package delta_realtime

import (
	"github.com/Meesho/BharatMLStack/iris/internal/consumers/listener/realtime"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// Consumer drains normalized delta events with manual offset control.
// RefreshRateLimiters is registered as an etcd watch callback so limiter
// changes land without a restart.
type Consumer interface {
	Process(events []realtime.DeltaEvent, c *kafka.Consumer) error
	RefreshRateLimiters(key, value, eventType string) error
}
