package registry

import "sync"

const DefaultVersion = 1

func NewHandler(version int) Manager {
	switch version {
	case DefaultVersion:
		return initRegistryHandler()
	default:
		return nil
	}
}

// ResetConfigForTests drops the singleton so the next NewHandler rebuilds it
// against freshly mocked dependencies.
func ResetConfigForTests() {
	once = sync.Once{}
	manager = nil
}
