package workflow

import (
	"sync"

	"github.com/Meesho/BharatMLStack/iris/internal/config/structs"
)

const DefaultVersion = 1

var (
	machine   StateMachine
	once      sync.Once
	appConfig structs.Configs
	initOnce  sync.Once
)

func Init() {
	initOnce.Do(func() {
		appConfig = structs.GetAppConfig().Configs
	})
}

func NewStateMachine(version int) StateMachine {
	switch version {
	case DefaultVersion:
		return initRunStateMachine()
	default:
		return nil
	}
}

// SetInstance pins the singleton, used by tests to inject a mock machine.
func SetInstance(provider StateMachine) {
	machine = provider
	once.Do(func() {})
}
