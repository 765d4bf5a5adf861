package etcd

import (
	"sync"

	"github.com/Meesho/BharatMLStack/iris/internal/config/structs"
	"github.com/rs/zerolog/log"
)

var (
	instances           map[string]Etcd
	appName             string
	etcdServers         string
	username            string
	password            string
	watcherEnabled      bool
	initOnce            sync.Once
	initOnceFromAppName sync.Once
)

func captureConnSettings(appConfig structs.Configs) {
	etcdServers = appConfig.EtcdServer
	username = appConfig.EtcdUsername
	password = appConfig.EtcdPassword
	watcherEnabled = appConfig.EtcdWatcherEnabled
}

// Init connects the default client under the app name from appConfig and
// hydrates config from etcd. To be called from main.go.
func Init(config interface{}, appConfig structs.Configs) {
	initOnce.Do(func() {
		appName = appConfig.AppName
		captureConnSettings(appConfig)
	})
	if instances == nil {
		instances = map[string]Etcd{appName: newV1Etcd(config)}
	}
}

// InitFromAppName is Init with an explicit app name, for deployables that
// watch a config tree registered under another name.
func InitFromAppName(config interface{}, AppName string, appConfig structs.Configs) {
	initOnceFromAppName.Do(func() {
		appName = AppName
		captureConnSettings(appConfig)
	})
	if instances == nil {
		instances = map[string]Etcd{appName: newV1EtcdFromAppName(config, appName)}
	}
}

// InitV1 pins the client wiring to schema v1.
func InitV1(config interface{}, appConfig structs.Configs) {
	Init(config, appConfig)
}

// Instance returns the client instances keyed by app name. Ensure that Init
// is called before calling this function.
func Instance() map[string]Etcd {
	if instances == nil {
		log.Panic().Msg("etcd client not initialized, call Init first")
	}
	return instances
}

// SetMockInstance swaps the instance map, for tests that go through
// Instance() directly.
func SetMockInstance(mock map[string]Etcd) {
	instances = mock
}
