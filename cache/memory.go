package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// Memory is an in-process LRU cache. Entries are stored serialised so callers never
// share mutable values between requests.
type Memory struct {
	lru *lru.Cache
	now func() time.Time
	mu  sync.Mutex // serialises writes with the removal of expired entries
}

func NewMemory(size int) (*Memory, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("create lru cache: %w", err)
	}
	return &Memory{lru: c, now: time.Now}, nil
}

func (m *Memory) Get(_ context.Context, key string, dest any) (bool, error) {
	v, ok := m.lru.Get(key)
	if !ok {
		return false, nil
	}
	e := v.(memoryEntry)
	if !m.now().Before(e.expiresAt) {
		m.removeExpired(key)
		return false, nil
	}
	if err := json.Unmarshal(e.data, dest); err != nil {
		return false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return true, nil
}

func (m *Memory) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s for cache: %w", key, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lru.Add(key, memoryEntry{data: data, expiresAt: m.now().Add(ttl)})
	return nil
}

// removeExpired drops key only if the stored entry is still expired, so an entry
// written after the expired read survives.
func (m *Memory) removeExpired(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.lru.Peek(key); ok && !m.now().Before(v.(memoryEntry).expiresAt) {
		m.lru.Remove(key)
	}
}

func (m *Memory) Close() error {
	m.lru.Purge()
	return nil
}
