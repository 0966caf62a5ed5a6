package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// pendingTTL bounds how long a crashed attempt blocks its key.
const pendingTTL = 2 * time.Minute

// Redis shares attempts across instances. Claiming is a single SETNX so two
// concurrent requests with the same key cannot both start.
type Redis struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedis(client redis.UniversalClient, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, ttl: ttl}
}

func (s *Redis) Begin(ctx context.Context, scope, k string) (Attempt, error) {
	name := key(scope, k)
	claimed, err := s.client.SetNX(ctx, name, pendingMarker, pendingTTL).Result()
	if err != nil {
		return Attempt{}, fmt.Errorf("claim idempotency key: %w", err)
	}
	if claimed {
		return Attempt{Started: true}, nil
	}
	value, err := s.client.Get(ctx, name).Result()
	if errors.Is(err, redis.Nil) {
		// Expired between SETNX and GET; the caller may retry.
		return Attempt{}, ErrInFlight
	}
	if err != nil {
		return Attempt{}, fmt.Errorf("read idempotency key: %w", err)
	}
	if value == pendingMarker {
		return Attempt{}, ErrInFlight
	}
	return Attempt{Result: value}, nil
}

func (s *Redis) Complete(ctx context.Context, scope, k, result string) error {
	if err := s.client.Set(ctx, key(scope, k), result, s.ttl).Err(); err != nil {
		return fmt.Errorf("complete idempotency key: %w", err)
	}
	return nil
}

func (s *Redis) Release(ctx context.Context, scope, k string) error {
	if err := s.client.Del(ctx, key(scope, k)).Err(); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}
