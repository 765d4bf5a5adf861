package config

import (
	"sync"

	"github.com/Meesho/BharatMLStack/iris/internal/config/structs"
)

const DefaultVersion = 1

var (
	manager  Manager
	once     sync.Once
	appName  string
	initOnce sync.Once
)

// Init captures the app name used to build etcd base paths. Must run after
// the env config is loaded.
func Init() {
	initOnce.Do(func() {
		appName = structs.GetAppConfig().Configs.AppName
	})
}

func NewManager(version int) Manager {
	switch version {
	case DefaultVersion:
		return initIrisManager()
	default:
		return nil
	}
}

// SetInstance pins the singleton, used by tests to inject a mock manager.
func SetInstance(provider Manager) {
	manager = provider
	once.Do(func() {})
}
