package ratelimit

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/povelc/portfolio/pkg/logger"
)

// slidingLogScript prunes, counts and conditionally records in one round trip.
// KEYS[1] key, ARGV[1] now ms, ARGV[2] exclusive cutoff, ARGV[3] limit,
// ARGV[4] member, ARGV[5] ttl ms.
var slidingLogScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[2])
local count = redis.call('ZCARD', KEYS[1])
if count >= tonumber(ARGV[3]) then
  return 0
end
redis.call('ZADD', KEYS[1], ARGV[1], ARGV[4])
redis.call('PEXPIRE', KEYS[1], ARGV[5])
return 1
`)

// RedisLimiter shares sliding logs between processes through Redis sorted sets.
type RedisLimiter struct {
	settings
	client redis.Scripter
	log    logger.Logger
}

// NewRedis creates a limiter backed by client.
func NewRedis(client redis.Scripter, log logger.Logger, opts ...Option) *RedisLimiter {
	s := defaults()
	for _, opt := range opts {
		opt(&s)
	}
	return &RedisLimiter{settings: s, client: client, log: log}
}

// Allow implements Limiter. Redis failures admit the request.
func (l *RedisLimiter) Allow(ctx context.Context, key string) bool {
	nowMs := l.now().UnixMilli()
	windowMs := l.window.Milliseconds()
	cutoff := "(" + strconv.FormatInt(nowMs-windowMs, 10)
	member := strconv.FormatInt(nowMs, 10) + "-" + uuid.NewString()

	res, err := slidingLogScript.Run(ctx, l.client, []string{l.keyPrefix + key},
		nowMs, cutoff, l.maxRequests, member, windowMs).Int()
	if err != nil {
		l.log.Warn(ctx, "rate limiter unavailable, admitting request",
			logger.String("key", key), logger.Error(err))
		return true
	}
	return res == 1
}
