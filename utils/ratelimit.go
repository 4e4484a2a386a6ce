package utils

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RateLimiter keeps fixed-window daily and hourly counters in Redis.
// The check and the increment are separate round-trips, so concurrent
// callers can overshoot a cap slightly; the limiter is best-effort.
type RateLimiter struct {
	rdb *redis.Client
}

func NewRateLimiter(rdb *redis.Client) *RateLimiter {
	return &RateLimiter{rdb: rdb}
}

// HourlyLimit derives the hourly cap from a daily cap
func HourlyLimit(dailyLimit int) int {
	return (dailyLimit + 7) / 8
}

// CanSendEmail reports whether both the daily and hourly email counters are
// strictly below their caps. With no Redis configured the limiter is permissive.
func (rl *RateLimiter) CanSendEmail(ctx context.Context, dailyLimit int) (bool, error) {
	return rl.underLimits(ctx, "email", dailyLimit)
}

// IncrementEmailCount bumps both email counters and refreshes their expirations
func (rl *RateLimiter) IncrementEmailCount(ctx context.Context) error {
	return rl.increment(ctx, "email")
}

// CanScrape reports whether the per-source scraper counters are below cap
func (rl *RateLimiter) CanScrape(ctx context.Context, source string, dailyLimit int) (bool, error) {
	return rl.underLimits(ctx, "scrape:"+source, dailyLimit)
}

// IncrementScrapeCount bumps the per-source scraper counters
func (rl *RateLimiter) IncrementScrapeCount(ctx context.Context, source string) error {
	return rl.increment(ctx, "scrape:"+source)
}

// EmailsSentToday returns the current daily email counter value
func (rl *RateLimiter) EmailsSentToday(ctx context.Context) (int, error) {
	if rl.rdb == nil {
		return 0, nil
	}
	count, err := rl.rdb.Get(ctx, dailyKey("email")).Int()
	if err == redis.Nil {
		return 0, nil
	}
	return count, err
}

func (rl *RateLimiter) underLimits(ctx context.Context, resource string, dailyLimit int) (bool, error) {
	if rl.rdb == nil {
		return true, nil
	}

	daily, err := rl.rdb.Get(ctx, dailyKey(resource)).Int()
	if err != nil && err != redis.Nil {
		return false, fmt.Errorf("rate limit read failed: %w", err)
	}
	hourly, err := rl.rdb.Get(ctx, hourlyKey(resource)).Int()
	if err != nil && err != redis.Nil {
		return false, fmt.Errorf("rate limit read failed: %w", err)
	}

	return daily < dailyLimit && hourly < HourlyLimit(dailyLimit), nil
}

func (rl *RateLimiter) increment(ctx context.Context, resource string) error {
	if rl.rdb == nil {
		return nil
	}

	pipe := rl.rdb.TxPipeline()
	pipe.Incr(ctx, dailyKey(resource))
	pipe.Expire(ctx, dailyKey(resource), 24*time.Hour)
	pipe.Incr(ctx, hourlyKey(resource))
	pipe.Expire(ctx, hourlyKey(resource), time.Hour)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("rate limit increment failed: %w", err)
	}
	return nil
}

func dailyKey(resource string) string {
	return fmt.Sprintf("ratelimit:%s:daily:%s", resource, time.Now().UTC().Format("2006-01-02"))
}

func hourlyKey(resource string) string {
	return fmt.Sprintf("ratelimit:%s:hourly:%s", resource, time.Now().UTC().Format("2006-01-02-15"))
}
