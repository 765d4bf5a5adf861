package ds

import "sync"

// SyncMap is a generic map guarded by a RWMutex. Reads take the shared lock,
// writes take the exclusive lock.
type SyncMap[K comparable, V any] struct {
	Map map[K]V
	mu  sync.RWMutex
}

func NewSyncMap[K comparable, V any]() *SyncMap[K, V] {
	return &SyncMap[K, V]{
		Map: make(map[K]V),
	}
}

func (s *SyncMap[K, V]) Set(key K, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Map[key] = value
}

func (s *SyncMap[K, V]) Get(key K) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.Map[key]
	return value, ok
}
