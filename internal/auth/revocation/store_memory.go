package revocation

import (
	"context"
	"sync"
	"time"
)

// InMemory is a process-local revocation list for single-instance and test use.
type InMemory struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	now     func() time.Time
}

func NewInMemory() *InMemory {
	return &InMemory{revoked: make(map[string]time.Time), now: time.Now}
}

// WithClock returns the list with its time source replaced.
func (s *InMemory) WithClock(now func() time.Time) *InMemory {
	s.now = now
	return s
}

func (s *InMemory) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	if jti == "" {
		return nil
	}
	if err := validateTTL(ttl); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[jti] = s.now().Add(ttl)
	return nil
}

func (s *InMemory) IsRevoked(_ context.Context, jti string) (bool, error) {
	start := time.Now()
	defer func() { isRevokedDuration.Observe(time.Since(start).Seconds()) }()

	if jti == "" {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	expires, ok := s.revoked[jti]
	if !ok {
		return false, nil
	}
	if !s.now().Before(expires) {
		delete(s.revoked, jti)
		return false, nil
	}
	return true, nil
}
