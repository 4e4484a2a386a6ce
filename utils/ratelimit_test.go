package utils

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHourlyLimit(t *testing.T) {
	assert.Equal(t, 1, HourlyLimit(1))
	assert.Equal(t, 1, HourlyLimit(8))
	assert.Equal(t, 2, HourlyLimit(9))
	assert.Equal(t, 7, HourlyLimit(50))
	assert.Equal(t, 50, HourlyLimit(400))
}

func TestLimiterPermissiveWithoutRedis(t *testing.T) {
	limiter := NewRateLimiter(nil)
	ctx := context.Background()

	ok, err := limiter.CanSendEmail(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, limiter.IncrementEmailCount(ctx))

	ok, err = limiter.CanScrape(ctx, "serp", 1)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, limiter.IncrementScrapeCount(ctx, "serp"))

	count, err := limiter.EmailsSentToday(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
