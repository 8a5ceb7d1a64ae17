package cache

import (
	"context"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/pkg/errors"
	redis "github.com/redis/go-redis/v9"
)

// Redisにカートを置く。複数台のBFFで同じスロットを共有できる。
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// DI
func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func (r *RedisCache) Load(ctx context.Context, key string) (model.Cart, error) {
	data, err := r.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, repo.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "cache: redis get")
	}
	return decode(data)
}

func (r *RedisCache) Save(ctx context.Context, key string, cart model.Cart) error {
	data, err := encode(cart)
	if err != nil {
		return err
	}
	if err := r.rdb.Set(ctx, key, data, r.ttl).Err(); err != nil {
		return errors.Wrap(err, "cache: redis set")
	}
	return nil
}

func (r *RedisCache) Clear(ctx context.Context, key string) error {
	if err := r.rdb.Del(ctx, key).Err(); err != nil {
		return errors.Wrap(err, "cache: redis del")
	}
	return nil
}

var _ repo.CartCache = (*RedisCache)(nil)
