package persistence

import (
	"context"
	"time"

	pkgredis "github.com/angelmondragon/marketplace-checkout/pkg/redis"
)

type redisClient interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	GetBytes(ctx context.Context, key string) ([]byte, error)
	Del(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
	SnapshotKey(key string) string
}

// Redis stores snapshots under namespaced keys with a sliding TTL.
type Redis struct {
	client redisClient
	ttl    time.Duration
}

func NewRedis(client redisClient, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) Load(ctx context.Context, key string) ([]byte, error) {
	raw, err := r.client.GetBytes(ctx, r.client.SnapshotKey(key))
	if err != nil {
		if pkgredis.IsMissing(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return raw, nil
}

func (r *Redis) Save(ctx context.Context, key string, value []byte) error {
	return r.client.Set(ctx, r.client.SnapshotKey(key), value, r.ttl)
}

func (r *Redis) Clear(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.client.SnapshotKey(key))
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx)
}
