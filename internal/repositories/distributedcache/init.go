package distributedcache

import (
	"sync"

	"github.com/Meesho/BharatMLStack/iris/internal/config/structs"
)

const DefaultVersion = 1

var (
	appConfig structs.Configs
	initOnce  sync.Once
)

// Init captures the redis connection id before the first repository build.
func Init() {
	initOnce.Do(func() {
		appConfig = structs.GetAppConfig().Configs
	})
}

func NewRepository(version int) Database {
	switch version {
	case DefaultVersion:
		return initRedisCache()
	default:
		return nil
	}
}
