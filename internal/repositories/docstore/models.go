package docstore

import "github.com/Meesho/BharatMLStack/iris/internal/repositories"

type BulkQuery struct {
	CacheKeys   map[string]repositories.CacheStruct `json:"cache_keys"`
	DocumentIds []string                            `json:"document_ids"`
	Index       string                              `json:"index"`
	Version     int                                 `json:"version"`
}

type Payload struct {
	DocumentId   string    `json:"document_id"`
	Title        string    `json:"title"`
	ImageUrl     string    `json:"image_url"`
	Vector       []float32 `json:"vector"`
	SearchVector []float32 `json:"search_vector"`
	Version      int       `json:"version"`
}
