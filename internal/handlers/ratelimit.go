package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisRateCounter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

func incrWithTTL(ctx context.Context, client redisRateCounter, key string, ttl time.Duration) (int64, error) {
	count, err := client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		_ = client.Expire(ctx, key, ttl).Err()
	}
	return count, nil
}

// LoginLimiter caps login attempts per client IP and email per hour.
// A nil *LoginLimiter allows everything.
type LoginLimiter struct {
	counter redisRateCounter
	perHour int
	clock   func() time.Time
}

// NewLoginLimiter returns nil when counter is nil or perHour is not positive.
func NewLoginLimiter(counter redisRateCounter, perHour int) *LoginLimiter {
	if counter == nil || perHour <= 0 {
		return nil
	}
	return &LoginLimiter{counter: counter, perHour: perHour, clock: time.Now}
}

// Allow records an attempt and reports whether it is within the limit.
// Counter failures allow the attempt.
func (l *LoginLimiter) Allow(ctx context.Context, ip, email string) bool {
	if l == nil {
		return true
	}
	key := "rate:login:" + ip + ":" + strings.ToLower(email) + ":" + l.clock().UTC().Format("2006010215")
	count, err := incrWithTTL(ctx, l.counter, key, time.Hour)
	if err != nil {
		LoggerFromContext(ctx).WarnContext(ctx, "login rate counter failed", "error", err)
		return true
	}
	return count <= int64(l.perHour)
}
