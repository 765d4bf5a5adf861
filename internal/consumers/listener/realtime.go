package listener

import (
	"encoding/json"

	"github.com/Meesho/BharatMLStack/iris/internal/consumers/listener/realtime"
	skafka "github.com/Meesho/BharatMLStack/iris/pkg/kafka"
	"github.com/Meesho/BharatMLStack/iris/pkg/metric"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/rs/zerolog/log"
)

// ConsumeRealtimeEvents is the poll callback for the realtime source topic.
func ConsumeRealtimeEvents(msgs []*kafka.Message, c *kafka.Consumer) error {
	rtConsumer := realtime.NewConsumer(realtime.DefaultVersion)
	if err := rtConsumer.Process(decodeRealtimeEvents(msgs)); err != nil {
		log.Error().Msgf("Error in processing Realtime Event %v", err)
		return err
	}
	return nil
}

func decodeRealtimeEvents(msgs []*kafka.Message) []realtime.Event {
	events := make([]realtime.Event, 0, len(msgs))
	for _, record := range skafka.MessagesToRecordStrings(msgs) {
		log.Debug().Msgf("Received message: %s and %s", record.Key, record.Value)
		var event realtime.Event
		if err := json.Unmarshal([]byte(record.Value), &event); err != nil {
			log.Error().Msgf("Error in Unmarshalling %s", err)
			continue
		}
		metric.Incr("realtime_consumer_event", []string{"type", event.Type, "indexer_name", event.Indexer})
		events = append(events, event)
	}
	return events
}
