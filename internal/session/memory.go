package session

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	data    []byte
	expires time.Time
}

// MemoryStore is an in-process store with TTL expiry. It is the default
// backend for single-node deployments and tests; a background janitor sweeps
// expired entries so idle sessions do not accumulate.
type MemoryStore struct {
	ttl     time.Duration
	entries map[string]memoryEntry
	mu      sync.RWMutex
	stop    chan struct{}
	stopped sync.Once
}

// NewMemoryStore creates a memory store whose entries expire after ttl.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	s := &MemoryStore{
		ttl:     ttl,
		entries: make(map[string]memoryEntry),
		stop:    make(chan struct{}),
	}
	go s.janitor()
	return s
}

func (s *MemoryStore) janitor() {
	interval := s.ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sweep(time.Now())
		case <-s.stop:
			return
		}
	}
}

func (s *MemoryStore) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.entries {
		if now.After(e.expires) {
			delete(s.entries, id)
		}
	}
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, id string) ([]byte, error) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok || time.Now().After(e.expires) {
		return nil, ErrNotFound
	}
	out := make([]byte, len(e.data))
	copy(out, e.data)
	return out, nil
}

// Put implements Store.
func (s *MemoryStore) Put(ctx context.Context, id string, data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	s.mu.Lock()
	s.entries[id] = memoryEntry{data: cp, expires: time.Now().Add(s.ttl)}
	s.mu.Unlock()
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
	return nil
}

// Touch implements Store.
func (s *MemoryStore) Touch(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || time.Now().After(e.expires) {
		return ErrNotFound
	}
	e.expires = time.Now().Add(s.ttl)
	s.entries[id] = e
	return nil
}

// Close stops the janitor.
func (s *MemoryStore) Close() {
	s.stopped.Do(func() { close(s.stop) })
}
