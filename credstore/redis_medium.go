package credstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMediumUnavailable wraps backend failures from the Redis medium so the
// store can distinguish outage from absence.
var ErrMediumUnavailable = errors.New("medium unavailable")

// RedisMedium persists records in Redis. It suits deployments where several
// client instances share one credential cache, for example a fleet of
// headless workers authenticating as a single service account.
type RedisMedium struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisMedium wraps client with the given key prefix. ttl bounds record
// lifetime in Redis; zero disables expiry and leaves eviction entirely to the
// store's staleness ceiling.
func NewRedisMedium(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisMedium {
	if prefix == "" {
		prefix = "acr"
	}
	return &RedisMedium{redis: client, prefix: prefix, ttl: ttl}
}

func (m *RedisMedium) key(key string) string {
	return m.prefix + ":" + key
}

func (m *RedisMedium) Write(ctx context.Context, key string, data []byte) error {
	if err := m.redis.Set(ctx, m.key(key), data, m.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrMediumUnavailable, err)
	}
	return nil
}

func (m *RedisMedium) Read(ctx context.Context, key string) ([]byte, error) {
	data, err := m.redis.Get(ctx, m.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrMediumUnavailable, err)
	}
	return data, nil
}

func (m *RedisMedium) Erase(ctx context.Context, keys ...string) error {
	full := make([]string, len(keys))
	for i, key := range keys {
		full[i] = m.key(key)
	}
	if err := m.redis.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrMediumUnavailable, err)
	}
	return nil
}
