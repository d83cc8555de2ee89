package redisclient

import (
	"context"
	"fmt"
	"time"
)

// WindowLimiter is a fixed-window counter shared by every API replica that
// talks to the same redis.
type WindowLimiter struct {
	client *Client
	prefix string
	limit  int
	window time.Duration
}

func (c *Client) NewWindowLimiter(prefix string, limit int, window time.Duration) *WindowLimiter {
	return &WindowLimiter{client: c, prefix: prefix, limit: limit, window: window}
}

// Allow counts one hit for key and reports whether it is within the limit.
// When it is not, retryAfter is the time left in the current window.
func (l *WindowLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	rkey := fmt.Sprintf("%s:%s", l.prefix, key)
	rdb := l.client.redisdb

	n, err := rdb.Incr(ctx, rkey).Result()
	if err != nil {
		return false, 0, err
	}

	// first hit opens the window
	if n == 1 {
		if err := rdb.Expire(ctx, rkey, l.window).Err(); err != nil {
			return false, 0, err
		}
	}

	if n <= int64(l.limit) {
		return true, 0, nil
	}

	ttl, err := rdb.PTTL(ctx, rkey).Result()
	if err != nil {
		return false, 0, err
	}
	if ttl < 0 {
		// the key lost its expiry; reopen the window instead of locking the caller out
		_ = rdb.Expire(ctx, rkey, l.window).Err()
		ttl = l.window
	}

	return false, ttl, nil
}
