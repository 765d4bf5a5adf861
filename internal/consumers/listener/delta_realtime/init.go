package delta_realtime

import (
	"sync"

	"github.com/Meesho/BharatMLStack/iris/internal/config/structs"
)

const DefaultVersion = 1

var (
	appConfig structs.Configs
	initOnce  sync.Once
)

func Init() {
	initOnce.Do(func() {
		appConfig = structs.GetAppConfig().Configs
	})
}

func NewConsumer(version int) Consumer {
	switch version {
	case DefaultVersion:
		return newRealTimeDeltaConsumer()
	default:
		return nil
	}
}
