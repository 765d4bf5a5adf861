package repositories

import (
	"github.com/Meesho/BharatMLStack/iris/internal/repositories/vector"
)

// CacheStruct threads per-query state through the serving cache tiers. Index
// holds the positions of the query in the original request so duplicate keys
// collapse into one lookup.
type CacheStruct struct {
	Index        []int
	Text         string
	Vector       []float32
	SearchVector []float32
	DocumentId   string
	Title        string
	ImageUrl     string
	Filters      []*vector.Filter
}

type CandidateResponseStruct struct {
	Index      []int
	Candidates []*vector.SimilarCandidate
}
