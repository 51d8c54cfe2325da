package rediscache

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// keyGrace keeps a window's counter around a little past the window end so a
// late INCR never lands on a fresh key.
const keyGrace = 10 * time.Second

// RateLimiter counts calls per bucket in fixed windows aligned to the clock.
// Keys look like "rl:<bucket>:<window start, UTC, 200601021504>".
type RateLimiter struct {
	c      *redis.Client
	window time.Duration
}

func NewRateLimiter(addr string) *RateLimiter {
	return NewRateLimiterWithClient(redis.NewClient(&redis.Options{Addr: addr}))
}

func NewRateLimiterWithClient(c *redis.Client) *RateLimiter {
	return &RateLimiter{c: c, window: time.Minute}
}

// WithWindow changes the window length; values under a second are ignored.
func (rl *RateLimiter) WithWindow(d time.Duration) *RateLimiter {
	if d >= time.Second {
		rl.window = d
	}
	return rl
}

func (rl *RateLimiter) Key(bucket string, at time.Time) string {
	return fmt.Sprintf("rl:%s:%s", bucket, at.UTC().Truncate(rl.window).Format("200601021504"))
}

// Allow counts one call for bucket in the window containing at and reports
// whether the count is within limit, and the count itself.
func (rl *RateLimiter) Allow(ctx context.Context, bucket string, limit int64, at time.Time) (bool, int64, error) {
	key := rl.Key(bucket, at)
	pipe := rl.c.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, rl.window+keyGrace)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, errors.Wrapf(err, "redis ratelimit %s", bucket)
	}
	n := incr.Val()
	return n <= limit, n, nil
}

func (rl *RateLimiter) Close() error {
	return rl.c.Close()
}
