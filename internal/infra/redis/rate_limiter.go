package redis

import (
	"context"
	"fmt"
	"time"
)

// RateLimiter is a fixed-window counter: first INCR in a window sets the
// expiry, requests beyond the limit inside the window are refused.
type RateLimiter struct {
	client RedisClient
}

func NewRateLimiter(client RedisClient) *RateLimiter {
	return &RateLimiter{client: client}
}

func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := r.client.Incr(ctx, key)
	if err != nil {
		return false, err
	}

	if count == 1 {
		err = r.client.Expire(ctx, key, window)
		if err != nil {
			return false, err
		}
	}

	if count > int64(limit) {
		return false, nil
	}

	return true, nil
}

// IntakeKey scopes the intake rate limit per caller identity.
func IntakeKey(userID string) string {
	return fmt.Sprintf("rate_limit:intake:%s", userID)
}
