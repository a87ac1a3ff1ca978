package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestTokenBucket_Allow(t *testing.T) {
	ctx := context.Background()
	bucket := NewTokenBucket(newTestClient(t), "test", 2, 0.001, time.Minute)

	allowed, tokens, err := bucket.Allow(ctx)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, float64(1), tokens)

	allowed, _, err = bucket.Allow(ctx)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, _, err = bucket.Allow(ctx)
	require.NoError(t, err)
	assert.False(t, allowed, "third token must be rejected")
}

func TestTokenBucket_WaitRefills(t *testing.T) {
	ctx := context.Background()
	bucket := NewTokenBucket(newTestClient(t), "test", 1, 20, time.Minute)

	require.NoError(t, bucket.Wait(ctx))

	start := time.Now()
	require.NoError(t, bucket.Wait(ctx))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestTokenBucket_WaitHonoursContext(t *testing.T) {
	bucket := NewPerMinute(newTestClient(t), SummaryKey, 1)
	require.NoError(t, bucket.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, bucket.Wait(ctx), context.DeadlineExceeded)
}
