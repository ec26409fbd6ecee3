package dedup

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "seen:"

// sentinel value stored under the dedup key; only presence matters.
const sentinel = "1"

// Store is the expiring key-value store behind the gate. SetIfAbsent must be
// atomic: set the key with the TTL and report true only when it was not
// already present. The atomic primitive closes the check-then-set race two
// concurrent sightings of one URL would otherwise hit.
type Store interface {
	SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
}

// RedisStore backs the gate with Redis SET NX EX.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, key, value, ttl).Result()
}

// Gate suppresses repeat processing of a URL within the TTL window.
type Gate struct {
	store  Store
	ttl    time.Duration
	logger *slog.Logger
}

func NewGate(store Store, ttl time.Duration, logger *slog.Logger) *Gate {
	return &Gate{
		store:  store,
		ttl:    ttl,
		logger: logger.With("component", "dedup"),
	}
}

// ShouldProcess returns true on the first sighting of the URL within the TTL
// window and marks it seen. Later sightings return false until the record
// expires.
func (g *Gate) ShouldProcess(ctx context.Context, url string) (bool, error) {
	fresh, err := g.store.SetIfAbsent(ctx, keyPrefix+url, sentinel, g.ttl)
	if err != nil {
		return false, err
	}
	if !fresh {
		g.logger.Info("url already seen recently, skipping", "url", url)
	}
	return fresh, nil
}
