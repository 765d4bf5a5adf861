package listener

import (
	"encoding/json"

	"github.com/Meesho/BharatMLStack/iris/internal/consumers/listener/delta_realtime"
	"github.com/Meesho/BharatMLStack/iris/internal/consumers/listener/realtime"
	skafka "github.com/Meesho/BharatMLStack/iris/pkg/kafka"
	"github.com/Meesho/BharatMLStack/iris/pkg/metric"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/rs/zerolog/log"
)

// ConsumeRealTimeDeltaEvents is the poll callback for the delta topic. Offsets
// are committed by the partition workers, not here, so a failed batch can be
// seeked back and replayed.
func ConsumeRealTimeDeltaEvents(msgs []*kafka.Message, c *kafka.Consumer) error {
	deltaRtConsumer := delta_realtime.NewConsumer(delta_realtime.DefaultVersion)
	if err := deltaRtConsumer.Process(decodeDeltaEvents(msgs), c); err != nil {
		log.Error().Msgf("Error in processing RealTimeDelta Event %v", err)
		return err
	}
	return nil
}

func decodeDeltaEvents(msgs []*kafka.Message) []realtime.DeltaEvent {
	events := make([]realtime.DeltaEvent, 0, len(msgs))
	for _, record := range skafka.MessagesToRecordStrings(msgs) {
		var event realtime.DeltaEvent
		if err := json.Unmarshal([]byte(record.Value), &event); err != nil {
			log.Error().Msgf("Error in Unmarshalling %s", err)
			continue
		}
		event.TopicPartition = record.TopicPartition
		metric.Incr("realtime_delta_consumer_event", []string{"type", event.EventType, "index_name", event.Index})
		events = append(events, event)
	}
	return events
}
