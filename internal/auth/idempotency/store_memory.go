package idempotency

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value     string
	expiresAt time.Time
}

// InMemory is a process-local Store for single-instance and test use.
type InMemory struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	clock   func() time.Time
}

type InMemoryOption func(*InMemory)

func WithMemoryTTL(ttl time.Duration) InMemoryOption {
	return func(s *InMemory) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithClock(clock func() time.Time) InMemoryOption {
	return func(s *InMemory) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func NewInMemory(opts ...InMemoryOption) *InMemory {
	s := &InMemory{
		entries: make(map[string]entry),
		ttl:     DefaultTTL,
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemory) Begin(_ context.Context, scope, k string) (Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	name := key(scope, k)
	if e, ok := s.entries[name]; ok && now.Before(e.expiresAt) {
		if e.value == pendingMarker {
			return Attempt{}, ErrInFlight
		}
		return Attempt{Result: e.value}, nil
	}
	s.entries[name] = entry{value: pendingMarker, expiresAt: now.Add(s.ttl)}
	return Attempt{Started: true}, nil
}

func (s *InMemory) Complete(_ context.Context, scope, k, result string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key(scope, k)] = entry{value: result, expiresAt: s.clock().Add(s.ttl)}
	return nil
}

func (s *InMemory) Release(_ context.Context, scope, k string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key(scope, k))
	return nil
}
