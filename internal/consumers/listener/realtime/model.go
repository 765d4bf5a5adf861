package realtime

import "github.com/confluentinc/confluent-kafka-go/v2/kafka"

type Operation string

const (
	add           Operation = "ADD"
	delete        Operation = "DELETE"
	upsertPayload Operation = "UPSERT_PAYLOAD"
)

type Event struct {
	Timestamp int    `json:"timestamp"`
	Type      string `json:"type"`
	Indexer   string `json:"indexer"`
	Data      []Data `json:"data"`
}

type Data struct {
	Id        string            `json:"id"`
	Operation Operation         `json:"operation"`
	Fields    map[string]string `json:"fields"`
}

type DeltaEvent struct {
	Index          string
	Version        int
	Id             string
	Payload        map[string]interface{}
	Vectors        []float32
	EventType      string
	TopicPartition kafka.TopicPartition
}
