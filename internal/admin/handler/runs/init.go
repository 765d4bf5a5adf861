package runs

import (
	"sync"

	"github.com/Meesho/BharatMLStack/iris/internal/config/structs"
)

var (
	manager        Manager
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

func NewManager(version int) Manager {
	switch version {
	case DefaultVersion:
		return initRunManager()
	default:
		return nil
	}
}
