package vector

import (
	"github.com/qdrant/go-client/qdrant"
)

// FilterOperator is the comparison applied to a payload field when
// narrowing a vector search.
type FilterOperator string

const (
	IN   FilterOperator = "IN"
	NIN  FilterOperator = "NIN"
	EX   FilterOperator = "EX"
	LT   FilterOperator = "LT"
	LTE  FilterOperator = "LTE"
	GT   FilterOperator = "GT"
	GTE  FilterOperator = "GTE"
	BTW  FilterOperator = "BTW"
	BTWE FilterOperator = "BTWE"
)

func (o FilterOperator) IsValid() bool {
	switch o {
	case IN, NIN, EX, LT, LTE, GT, GTE, BTW, BTWE:
		return true
	default:
		return false
	}
}

// Filter restricts search results to points whose payload field matches
// the operator. Values are carried as strings and converted using the
// index's payload schema before they reach the vector store.
type Filter struct {
	Field  string         `json:"field"`
	Op     FilterOperator `json:"op"`
	Values []string       `json:"values"`
}

type UpsertRequest struct {
	Data map[string][]Data
}

type Data struct {
	Id      string
	Payload map[string]interface{}
	Vectors []float32
}

type DeleteRequest struct {
	Data map[string][]Data
}

type UpsertPayloadRequest struct {
	Data map[string][]Data
}

// QueryDetails is one similarity query inside a batch. CacheKey doubles as
// the correlation id when the batch response is split back per query.
type QueryDetails struct {
	CacheKey        string
	Embedding       []float32
	Offset          int
	CandidateLimit  int32
	MetadataFilters []*Filter
	Payload         []string
	SearchParams    map[string]string
}

type BatchQueryRequest struct {
	Index       string
	Version     int
	RequestList []*QueryDetails
}

type BatchQueryResponse struct {
	SimilarCandidatesList map[string][]*SimilarCandidate
}

type SimilarCandidate struct {
	Id      string
	Score   float32
	Payload map[string]string
}

// CollectionInfoResponse is the collection health snapshot the admin surface
// reports, one per queried host.
type CollectionInfoResponse struct {
	Status              string
	IndexedVectorsCount float64
	PointsCount         float64
	PayloadPointsCount  []float64
}

type FilterCondition struct {
	Condition *qdrant.Condition
	IsNegated bool
}
