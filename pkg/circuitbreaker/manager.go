package circuitbreaker

import (
	"fmt"
	"sync"
)

// Manager hands out one manual breaker per key, all built from the same
// env-derived config.
type Manager interface {
	GetOrCreateManualCB(key string) (ManualCircuitBreaker, error)
}

type manager struct {
	breakers  sync.Map
	cbConfig  *Config
	envPrefix string
}

// NewManager reads the breaker config for envPrefix once; breakers created
// later share it.
func NewManager(envPrefix string) Manager {
	return &manager{
		envPrefix: envPrefix,
		cbConfig:  BuildConfig(envPrefix),
	}
}

func (m *manager) GetOrCreateManualCB(key string) (ManualCircuitBreaker, error) {
	if m.cbConfig == nil {
		return nil, fmt.Errorf("circuit breaker config is nil")
	}
	if existing, ok := m.breakers.Load(key); ok {
		return asManualCB(existing)
	}
	// LoadOrStore keeps the winner when two goroutines race on the same key.
	stored, _ := m.breakers.LoadOrStore(key, GetManualCircuitBreaker(m.cbConfig))
	return asManualCB(stored)
}

func asManualCB(v any) (ManualCircuitBreaker, error) {
	breaker, ok := v.(ManualCircuitBreaker)
	if !ok {
		return nil, fmt.Errorf("item in sync.Map is not a ManualCircuitBreaker")
	}
	return breaker, nil
}
