package dedup

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

// memSet implements the consumer interface with an in-process map.
type memSet struct {
	mu      sync.Mutex
	sets    map[string]map[string]struct{}
	expires map[string]time.Duration
	err     error
}

func newMemSet() *memSet {
	return &memSet{sets: make(map[string]map[string]struct{}), expires: make(map[string]time.Duration)}
}

func (m *memSet) SAdd(_ context.Context, key, member string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	s, ok := m.sets[key]
	if !ok {
		s = make(map[string]struct{})
		m.sets[key] = s
	}
	if _, ok := s[member]; ok {
		return false, nil
	}
	s[member] = struct{}{}
	return true, nil
}

func (m *memSet) SIsMember(_ context.Context, key, member string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	_, ok := m.sets[key][member]
	return ok, nil
}

func (m *memSet) SCard(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	return int64(len(m.sets[key])), nil
}

func (m *memSet) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	delete(m.sets, key)
	delete(m.expires, key)
	return nil
}

func (m *memSet) Expire(_ context.Context, key string, ttl time.Duration, nx bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.expires[key]; ok && nx {
		return nil
	}
	m.expires[key] = ttl
	return nil
}

func newTestStore(t *testing.T) (*Store, *memSet) {
	t.Helper()
	ms := newMemSet()
	return New(ms, 0, nil, zap.NewNop()), ms
}
