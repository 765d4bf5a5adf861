package indexer

// Handler applies grouped document events to a vector database. Events are
// grouped by type so each backend can batch upserts and deletes separately.
type Handler interface {
	Process(event Event) error
}
