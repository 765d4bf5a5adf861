package runs

import "github.com/Meesho/BharatMLStack/iris/internal/config/enums"

type StartRunRequest struct {
	Indexer string `json:"indexer"`
}

type RunByFrequencyRequest struct {
	Frequency string `json:"frequency"`
}

type PromoteIndexRequest struct {
	Index string `json:"index"`
	Host  string `json:"host"`
}

type CollectionInfoRequest struct {
	Index string `json:"index"`
}

type StartRunResponse struct {
	Indexer            string        `json:"indexer"`
	Index              string        `json:"index"`
	Version            int           `json:"version"`
	RunMode            enums.RunMode `json:"run_mode"`
	KafkaId            int           `json:"kafka_id"`
	TopicName          string        `json:"topic_name"`
	NumberOfPartitions int           `json:"number_of_partitions"`
	Documents          int           `json:"documents"`
}

type RunByFrequencyResponse struct {
	Runs []StartRunResponse `json:"runs"`
}

type CollectionInfoResponse struct {
	Index               string  `json:"index"`
	Version             int     `json:"version"`
	Status              string  `json:"status"`
	PointsCount         float64 `json:"points_count"`
	IndexedVectorsCount float64 `json:"indexed_vectors_count"`
}

// DocumentEvent mirrors the payload the document consumers read off the
// indexer topic.
type DocumentEvent struct {
	Indexer    string            `json:"indexer"`
	DocumentId string            `json:"document_id"`
	Fields     map[string]string `json:"fields"`
	Operation  string            `json:"operation"`
	Version    int               `json:"version"`
	Partition  string            `json:"partition"`
}

const (
	addOperation    = "ADD"
	eofDocumentId   = "EOF"
	documentIdField = "document_id"
)
