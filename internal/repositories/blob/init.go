package blob

import (
	"sync"
)

var (
	blobStore      Store
	once           sync.Once
	DefaultVersion = 1
)

func NewRepository(version int) Store {
	switch version {
	case DefaultVersion:
		return initBlobStore()
	default:
		return nil
	}
}

func SetInstance(provider Store) {
	blobStore = provider
	once.Do(func() {}) // Marking the sync once as done
}
