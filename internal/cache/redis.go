package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/raboard/internal/domain"
)

// Redis is a Store shared by every instance connected to the same redis. Expiry is left to redis.
type Redis struct {
	client redis.UniversalClient
	prefix string
}

func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	return &Redis{
		client: client,
		prefix: prefix,
	}
}

func (r *Redis) Get(ctx context.Context, key string) (*domain.Snapshot, bool, error) {
	b, err := r.client.Get(ctx, r.snapshotKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get snapshot: %w", err)
	}

	var s domain.Snapshot
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, false, fmt.Errorf("unmarshal snapshot: %w", err)
	}

	return &s, true, nil
}

func (r *Redis) Put(ctx context.Context, key string, s *domain.Snapshot, ttl time.Duration) error {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := r.client.Set(ctx, r.snapshotKey(key), b, ttl).Err(); err != nil {
		return fmt.Errorf("set snapshot: %w", err)
	}

	return nil
}

func (r *Redis) snapshotKey(game string) string {
	return fmt.Sprintf("%s:%s:snapshot", r.prefix, game)
}
