package blob

// Store is the staging client for source document objects. Objects are
// addressed {container}/{key} on the backing blob HTTP endpoint.
type Store interface {
	Upload(container, key string, body []byte) error
	Exists(container, key string) (bool, error)
	List(container, prefix string) ([]string, error)
	Download(container, key string) ([]byte, error)
}
