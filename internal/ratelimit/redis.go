package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter implements Limiter using a Redis Lua script. The script
// checks the cap and increments in a single atomic evaluation, so a denied
// call never touches the counter even under concurrent same-identity
// requests across process instances.
type RedisLimiter struct {
	client    redis.UniversalClient
	namespace string
	script    *redis.Script
}

// NewRedisLimiter creates a Redis-backed limiter.
func NewRedisLimiter(client redis.UniversalClient, namespace string) *RedisLimiter {
	if namespace == "" {
		namespace = "deckgate"
	}

	// Guarded increment: INCRBY only when the result stays within the cap.
	luaScript := `
local cap = tonumber(ARGV[1])
local inc = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

local count = tonumber(redis.call('GET', KEYS[1]) or '0')
if count + inc > cap then
    return {0, count}
end

count = redis.call('INCRBY', KEYS[1], inc)
if redis.call('TTL', KEYS[1]) < 0 then
    redis.call('EXPIRE', KEYS[1], ttl)
end
return {1, count}
`
	return &RedisLimiter{
		client:    client,
		namespace: namespace,
		script:    redis.NewScript(luaScript),
	}
}

// CheckLimit atomically checks and increments the daily bucket.
func (l *RedisLimiter) CheckLimit(ctx context.Context, identityHash, routeKey string, dailyCap, increment int64) (Result, error) {
	now := time.Now()
	window := windowKey(now)
	resetAt := windowReset(now)

	// Hash tag keeps the bucket on one node in cluster mode.
	key := fmt.Sprintf("%s:rl:{%s}:%s:%s", l.namespace, identityHash, routeKey, window)

	// TTL outlives the window slightly so late readers still see the count.
	ttl := int64(time.Until(resetAt).Seconds()) + 60

	val, err := l.script.Run(ctx, l.client, []string{key}, dailyCap, increment, ttl).Result()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit script: %w", err)
	}

	results, ok := val.([]interface{})
	if !ok || len(results) != 2 {
		return Result{}, fmt.Errorf("unexpected rate limit script result: %v", val)
	}

	allowed, _ := results[0].(int64)
	current, _ := results[1].(int64)

	return Result{
		Allowed:   allowed == 1,
		Current:   current,
		Remaining: clampRemaining(dailyCap, current),
		ResetAt:   resetAt,
	}, nil
}

// Ping checks Redis connectivity.
func (l *RedisLimiter) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// Close is a no-op; the caller owns the shared client.
func (l *RedisLimiter) Close() error {
	return nil
}
