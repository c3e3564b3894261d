// Package cache stores computed feature rankings. A key is written at most
// once; later writers keep the first value.
package cache

import (
	"context"
	"sync"

	"churnboard/internal/explain"
)

// Memory is a process-local ranking cache.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*explain.Result
}

// NewMemory creates an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]*explain.Result)}
}

// Get returns the cached result for key, or false when absent.
func (m *Memory) Get(_ context.Context, key string) (*explain.Result, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res, ok := m.entries[key]
	return res, ok, nil
}

// SetIfAbsent stores res under key unless a value is already present.
// It reports whether res was stored.
func (m *Memory) SetIfAbsent(_ context.Context, key string, res *explain.Result) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[key]; ok {
		return false, nil
	}
	m.entries[key] = res
	return true, nil
}
