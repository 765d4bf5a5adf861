package vector

type Database interface {
	CreateCollection(index string, version int) error
	BulkUpsert(upsertRequest UpsertRequest) error
	BulkDelete(deleteRequest DeleteRequest) error
	BulkUpsertPayload(upsertPayloadRequest UpsertPayloadRequest) error
	// BatchQuery - vector search query interface with bulk request support.
	// Supports filtering, fetching metadata/payload, search query params like hnsw_ef etc
	BatchQuery(bulkRequest *BatchQueryRequest, metricTags []string) (*BatchQueryResponse, error)
	DeleteCollection(index string, version int) error
	UpdateIndexingThreshold(index string, version int, indexingThreshold string) error
	GetCollectionInfo(index string, version int) (*CollectionInfoResponse, error)
	GetReadCollectionInfo(index string, version int) (*CollectionInfoResponse, error)
	RefreshClients(key, value, eventType string) error
	CreateFieldIndexes(index string, version int) error
}
