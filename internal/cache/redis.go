package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ZanzyTHEbar/simdev/internal/resilience"
)

// RedisStore keeps responses in Redis so several servers share one cache.
// While Redis keeps failing the breaker turns every lookup into a miss.
type RedisStore struct {
	client  *redis.Client
	ttl     time.Duration
	prefix  string
	breaker *resilience.CircuitBreaker
}

// NewRedisStore creates a store whose keys live under prefix
func NewRedisStore(client *redis.Client, ttl time.Duration, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "simdev:cache:"
	}
	return &RedisStore{
		client: client,
		ttl:    ttl,
		prefix: prefix,
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			FailureThreshold: 5,
			RecoveryTimeout:  30 * time.Second,
		}),
	}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var data []byte
	found := false

	err := s.breaker.Call(func() error {
		var err error
		data, err = s.client.Get(ctx, s.prefix+key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		return nil, false, nil
	case err != nil:
		return nil, false, fmt.Errorf("redis cache get: %w", err)
	}
	return data, found, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, data []byte) error {
	err := s.breaker.Call(func() error {
		return s.client.Set(ctx, s.prefix+key, data, s.ttl).Err()
	})
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		return nil
	case err != nil:
		return fmt.Errorf("redis cache set: %w", err)
	}
	return nil
}

// Breaker exposes the circuit breaker state for health reporting
func (s *RedisStore) Breaker() *resilience.CircuitBreaker {
	return s.breaker
}

// Size is unknown for a shared store
func (s *RedisStore) Size() int {
	return -1
}
