package ratelimit

import (
	"context"
	"fmt"
	"strings"

	"github.com/courtsidehq/courtside/internal/config"
	redis "github.com/redis/go-redis/v9"
)

const keyCheckoutUser = "checkout:user:%s"

// CheckoutLimiter throttles subscription creation per identity user so a
// stuck client cannot mint customers at the billing provider in a loop.
// Without a redis address it stays disabled and admits everything.
type CheckoutLimiter struct {
	enabled bool
	bucket  *TokenBucket
	rate    float64
	burst   int
}

func NewCheckoutLimiter(cfg config.Config) *CheckoutLimiter {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return &CheckoutLimiter{}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
	})

	return &CheckoutLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		rate:    1,
		burst:   5,
	}
}

func (l *CheckoutLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *CheckoutLimiter) Allow(ctx context.Context, identityUserID string) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	key := fmt.Sprintf(keyCheckoutUser, strings.TrimSpace(identityUserID))
	return l.bucket.Allow(ctx, key, l.rate, l.burst)
}
