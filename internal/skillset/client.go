package skillset

import "github.com/Meesho/BharatMLStack/iris/internal/config"

// Enrichment is the mapped output of a skillset call: the embedding vector,
// the vector used for search retrieval (falls back to Vector when the
// endpoint returns a single space) and any additional mapped document fields.
type Enrichment struct {
	Vector       []float32
	SearchVector []float32
	Fields       map[string]interface{}
}

type Client interface {
	// Enrich resolves the registered skillset and calls its endpoint with the
	// source fields mapped through the skillset's input mappings.
	Enrich(skillset string, source map[string]string) (*Enrichment, error)
	// EnrichWith calls the endpoint described by conf directly. Used by the
	// registration probe before a skillset exists in the registry.
	EnrichWith(skillset string, conf *config.Skillset, source map[string]string) (*Enrichment, error)
}
