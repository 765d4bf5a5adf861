package document

type Operation string

const (
	add           Operation = "ADD"
	delete        Operation = "DELETE"
	upsertPayload Operation = "UPSERT_PAYLOAD"
)

// EOFDocumentId is the end-of-partition sentinel the dispatcher produces
// after the last document of a partition.
const EOFDocumentId = "EOF"

type Event struct {
	Indexer    string            `json:"indexer"`
	DocumentId string            `json:"document_id"`
	Fields     map[string]string `json:"fields"`
	Operation  Operation         `json:"operation"`
	Version    int               `json:"version"`
	Partition  string            `json:"partition"`
}
