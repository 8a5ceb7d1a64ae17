package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	redis "github.com/redis/go-redis/v9"
)

// トークンバケット。残量と最終補充時刻をハッシュに持ち、1回の呼び出しで補充と消費をまとめて行う。
var tokenBucketScript = redis.NewScript(`
	local key = KEYS[1]
	local capacity = tonumber(ARGV[1])
	local rate = tonumber(ARGV[2])
	local now = tonumber(ARGV[3])
	local requested = tonumber(ARGV[4])

	local info = redis.call("HMGET", key, "tokens", "last_refill")
	local tokens = tonumber(info[1])
	local last_refill = tonumber(info[2])

	if tokens == nil then
		tokens = capacity
		last_refill = now
	end

	local delta = math.max(0, now - last_refill)
	local filled_tokens = math.min(capacity, tokens + (delta / 1000 * rate))

	local allowed = 0
	if filled_tokens >= requested then
		filled_tokens = filled_tokens - requested
		allowed = 1
		redis.call("HMSET", key, "tokens", filled_tokens, "last_refill", now)
		redis.call("EXPIRE", key, math.ceil(capacity / rate) * 2)
	end

	return allowed
`)

// RedisLimiter は複数台のBFFで共有するレート制限
type RedisLimiter struct {
	rdb *redis.Client
	now func() time.Time
}

// DI
func NewRedisLimiter(rdb *redis.Client) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, now: time.Now}
}

// Allow は key のバケットから1つ取れたら true
func (l *RedisLimiter) Allow(ctx context.Context, key string, capacity int, rate float64) (bool, error) {
	keys := []string{fmt.Sprintf("rate_limit:%s", key)}
	args := []interface{}{capacity, rate, l.now().UnixMilli(), 1}

	res, err := tokenBucketScript.Run(ctx, l.rdb, keys, args...).Int64()
	if err != nil {
		return false, errors.Wrap(err, "ratelimit: run script")
	}
	return res == 1, nil
}
