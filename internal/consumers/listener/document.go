package listener

import (
	"encoding/json"

	"github.com/Meesho/BharatMLStack/iris/internal/consumers/listener/document"
	skafka "github.com/Meesho/BharatMLStack/iris/pkg/kafka"
	"github.com/Meesho/BharatMLStack/iris/pkg/metric"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/rs/zerolog/log"
)

func ProcessDocumentEvents(msgs []*kafka.Message, c *kafka.Consumer) error {
	documentConsumer := document.NewConsumer(document.DefaultVersion)
	var events []document.Event

	for _, r := range skafka.MessagesToRecordBytes(msgs) {
		var event document.Event
		err := json.Unmarshal(r.Value, &event)
		if err != nil {
			log.Error().Msgf("Error in JSON deserialization: %s", err)
			continue
		}

		metric.Incr("document_consumer_event", []string{"type", "document",
			"indexer_name", event.Indexer,
			"operation", string(event.Operation)})
		events = append(events, event)
	}

	err := documentConsumer.Process(events)
	if err != nil {
		log.Error().Msgf("Error in processing Document Event %v", err)
		return err
	}
	return nil
}

func ProcessDocumentEventsInSequence(msgs []*kafka.Message, c *kafka.Consumer) error {
	documentConsumer := document.NewConsumer(document.DefaultVersion)
	var events []document.Event

	for _, r := range skafka.MessagesToRecordBytes(msgs) {
		var event document.Event
		err := json.Unmarshal(r.Value, &event)
		if err != nil {
			log.Error().Msgf("Error in JSON deserialization: %s", err)
			continue
		}
		events = append(events, event)
	}
	err := documentConsumer.ProcessInSequence(events)
	if err != nil {
		log.Error().Msgf("Error in processing Document Event %v", err)
		return err
	}
	return nil
}
