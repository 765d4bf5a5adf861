package indexer

type EventType string

const (
	Upsert        EventType = "UPSERT"
	Delete        EventType = "DELETE"
	UpsertPayload EventType = "UPSERT_PAYLOAD"
)

type Event struct {
	Data map[EventType][]Data
}

// Data is one document destined for a specific collection version. Payload
// carries only the indexed fields; Vectors is empty for deletes and
// payload-only upserts.
type Data struct {
	Index   string
	Version int
	Id      string
	Payload map[string]interface{}
	Vectors []float32
}
