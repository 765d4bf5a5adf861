package docstore

const (
	GenericRetrieveQuery = "SELECT %s FROM %s.%s WHERE %s = ? AND %s = ?"
	GenericPersistQuery  = "INSERT INTO %s.%s (%s) VALUES (%s) using TTL %v"
	DocumentId           = "document_id"
	Version              = "version"
	Title                = "title"
	ImageUrl             = "image_url"
	Vector               = "vector"
	SearchVector         = "search_vector"

	QueryTypeSearch   = "search"
	QueryTypeDocument = "document"
)

type Store interface {
	BulkQuery(storeId string, bulkQuery *BulkQuery, queryType string) error
	BulkQueryConsumer(storeId string, bulkQuery *BulkQuery) (map[string]map[string]interface{}, error)
	Persist(storeId string, ttl int, payload Payload) error
}
