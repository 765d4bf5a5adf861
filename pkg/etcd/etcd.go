package etcd

import "time"

const (
	configPath = "/config/"
	timeout    = 5 * time.Second
)

// Etcd is the dynamic-config facade over an etcd prefix. The hydrated config
// struct is kept in sync by the prefix watcher; registered callbacks fire after
// every successful re-hydration of a watched path.
type Etcd interface {
	GetConfigInstance() interface{}
	SetValue(path string, value interface{}) error
	SetValues(paths map[string]interface{}) error
	CreateNode(path string, value interface{}) error
	CreateNodes(paths map[string]interface{}) error
	IsNodeExist(path string) (bool, error)
	IsLeafNodeExist(path string) (bool, error)
	RegisterWatchPathCallbackWithEvent(path string, callback func(key, value, eventType string) error) error

	updateConfig(config interface{}) error
	handleStruct(dataMap, metaMap *map[string]string, output interface{}, prefix string) error
	handleMap(dataMap, metaMap *map[string]string, output interface{}, prefix string) error
}
