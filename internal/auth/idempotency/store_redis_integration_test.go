//go:build integration

package idempotency_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"bizreg/internal/auth/idempotency"
	"bizreg/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *idempotency.Redis
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.store = idempotency.NewRedis(s.redis.Client, time.Hour)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestLifecycle() {
	ctx := context.Background()

	att, err := s.store.Begin(ctx, "user-1", "k1")
	s.Require().NoError(err)
	s.True(att.Started)

	_, err = s.store.Begin(ctx, "user-1", "k1")
	s.ErrorIs(err, idempotency.ErrInFlight)

	ttl, err := s.redis.TTL(ctx, "idem:user-1:k1")
	s.Require().NoError(err)
	s.LessOrEqual(ttl, int64(120), "pending claims expire quickly")

	s.Require().NoError(s.store.Complete(ctx, "user-1", "k1", "draft-42"))
	att, err = s.store.Begin(ctx, "user-1", "k1")
	s.Require().NoError(err)
	s.False(att.Started)
	s.Equal("draft-42", att.Result)

	ttl, err = s.redis.TTL(ctx, "idem:user-1:k1")
	s.Require().NoError(err)
	s.Greater(ttl, int64(120))

	s.Require().NoError(s.store.Release(ctx, "user-1", "k1"))
	att, err = s.store.Begin(ctx, "user-1", "k1")
	s.Require().NoError(err)
	s.True(att.Started)
}

func (s *RedisStoreSuite) TestConcurrentClaimsStartOnce() {
	ctx := context.Background()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		started int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			att, err := s.store.Begin(ctx, "user-1", "race")
			if err == nil && att.Started {
				mu.Lock()
				started++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	s.Equal(1, started)
}
