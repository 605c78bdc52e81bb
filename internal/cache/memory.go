package cache

import (
	"context"
	"sync"
	"time"

	"github.com/victornm/raboard/internal/domain"
)

// Entry is the single cached slot of one key.
type Entry struct {
	Key       string
	Snapshot  *domain.Snapshot
	ExpiresAt time.Time
}

// Memory is a process-local Store.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]Entry
	now     func() time.Time
}

// NewMemory creates an in-memory store. now defaults to time.Now.
func NewMemory(now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}

	return &Memory{
		entries: make(map[string]Entry),
		now:     now,
	}
}

func (m *Memory) Get(_ context.Context, key string) (*domain.Snapshot, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok || !m.now().Before(e.ExpiresAt) {
		return nil, false, nil
	}

	return e.Snapshot, true, nil
}

func (m *Memory) Put(_ context.Context, key string, s *domain.Snapshot, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = Entry{
		Key:       key,
		Snapshot:  s,
		ExpiresAt: m.now().Add(ttl),
	}

	return nil
}
