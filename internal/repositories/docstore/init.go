package docstore

import (
	"sync"

	"github.com/Meesho/BharatMLStack/iris/internal/config/structs"
	"github.com/Meesho/BharatMLStack/iris/pkg/ds"
)

var (
	queryCache     *ds.SyncMap[string, string]
	documentStore  Store
	once           sync.Once
	DefaultVersion = 1
	appConfig      structs.Configs
	initOnce       sync.Once
)

func Init() {
	initOnce.Do(func() {
		appConfig = structs.GetAppConfig().Configs
	})
}

func NewRepository(version int) Store {
	switch version {
	case DefaultVersion:
		return initDocumentStore()
	default:
		return nil
	}
}

func SetInstance(provider Store) {
	documentStore = provider
	once.Do(func() {}) // Marking the sync once as done
}
