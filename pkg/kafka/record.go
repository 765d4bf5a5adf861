package kafka

import (
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// ConsumerRecord holds a single consumed message with typed key and value.
type ConsumerRecord[K any, V any] struct {
	Key            K
	Value          V
	TopicPartition kafka.TopicPartition
}

func toRecords[V any](msgs []*kafka.Message, value func([]byte) V) []ConsumerRecord[string, V] {
	out := make([]ConsumerRecord[string, V], 0, len(msgs))
	for _, m := range msgs {
		key := ""
		if m.Key != nil {
			key = string(m.Key)
		}
		out = append(out, ConsumerRecord[string, V]{
			Key:            key,
			Value:          value(m.Value),
			TopicPartition: m.TopicPartition,
		})
	}
	return out
}

// MessagesToRecordBytes converts raw Kafka messages to byte-valued records,
// as consumed by the document listener. A nil payload becomes an empty slice.
func MessagesToRecordBytes(msgs []*kafka.Message) []ConsumerRecord[string, []byte] {
	return toRecords(msgs, func(v []byte) []byte {
		if v == nil {
			return []byte{}
		}
		return v
	})
}

// MessagesToRecordStrings converts raw Kafka messages to string-valued
// records, as consumed by the realtime and delta listeners.
func MessagesToRecordStrings(msgs []*kafka.Message) []ConsumerRecord[string, string] {
	return toRecords(msgs, func(v []byte) string {
		return string(v)
	})
}
