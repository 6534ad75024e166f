package repository

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
)

// Typed storage errors. Call sites decide fail-open vs fail-closed per error,
// instead of swallowing everything.
var (
	ErrNotFound    = errors.New("repository: key not found")
	ErrUnavailable = errors.New("repository: backend unavailable")
	ErrCorrupt     = errors.New("repository: corrupt record")
)

// KVStore is the narrow persistence contract shared by the rate-limit
// history, intent fingerprints, validation cache and analytics event log.
// Values are JSON-serialized under fixed namespaced keys.
type KVStore interface {
	Get(ctx context.Context, key string, out interface{}) error
	Set(ctx context.Context, key string, val interface{}) error
	Delete(ctx context.Context, key string) error
}

// MemoryStore is the in-process fallback used when Redis is not configured.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Get(ctx context.Context, key string, out interface{}) error {
	s.mu.RLock()
	raw, ok := s.data[key]
	s.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return ErrCorrupt
	}
	return nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, val interface{}) error {
	raw, err := json.Marshal(val)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.data[key] = raw
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
	return nil
}
