package search

import (
	"github.com/Meesho/BharatMLStack/iris/internal/repositories/vector"
)

// QueryRequest is the JSON body of a query call. Exactly one of Texts,
// Vectors or DocumentIds carries the queries.
type QueryRequest struct {
	Texts         []string           `json:"texts"`
	Vectors       [][]float32        `json:"vectors"`
	DocumentIds   []string           `json:"document_ids"`
	Limit         int                `json:"limit"`
	Offset        int                `json:"offset"`
	Filters       [][]*vector.Filter `json:"filters"`
	GlobalFilters []*vector.Filter   `json:"global_filters"`
	Select        []string           `json:"select"`
}

// SearchStructRequest is the internal form of a query after the index name,
// global filters and staging overrides are folded in.
type SearchStructRequest struct {
	Index       string
	Texts       []string
	Vectors     [][]float32
	DocumentIds []string
	Limit       int
	Offset      int
	Filters     [][]*vector.Filter
	Select      []string
}

type QueryResponse struct {
	Index   string         `json:"index"`
	Results []*QueryResult `json:"results"`
}

// QueryResult carries the candidates for one query, labelled with the
// document id or text that produced it so callers can correlate positions.
type QueryResult struct {
	DocumentId string      `json:"document_id,omitempty"`
	Text       string      `json:"text,omitempty"`
	Candidates []Candidate `json:"candidates"`
}

type Candidate struct {
	Id      string            `json:"id"`
	Score   float32           `json:"score"`
	Payload map[string]string `json:"payload,omitempty"`
}
