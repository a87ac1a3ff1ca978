package wire

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/commit-digest/internal/config"
	"github.com/sevigo/commit-digest/internal/jobs"
)

func TestProcessorOptions(t *testing.T) {
	opts := ProcessorOptions(config.ProcessorConfig{
		PollInterval:       time.Second,
		MaxConcurrent:      3,
		JobTimeout:         time.Minute,
		CompletedRetention: 14,
	})
	assert.Equal(t, jobs.Options{
		PollInterval:  time.Second,
		MaxConcurrent: 3,
		JobTimeout:    time.Minute,
		RetentionDays: 14,
	}, opts)
}

func TestProvideLimiter(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{AI: config.AIConfig{RateLimitPerMinute: 2}}

	assert.Nil(t, provideLimiter(cfg, nil), "no redis means no limiter")

	client, cleanup, err := provideRedisClient(context.Background(), cfg, logger)
	require.NoError(t, err)
	assert.Nil(t, client)
	cleanup()

	mr := miniredis.RunT(t)
	cfg.Redis.Addr = mr.Addr()
	client, cleanup, err = provideRedisClient(context.Background(), cfg, logger)
	require.NoError(t, err)
	defer cleanup()

	limiter := provideLimiter(cfg, client)
	require.NotNil(t, limiter)
	require.NoError(t, limiter.Wait(context.Background()))

	cfg.AI.RateLimitPerMinute = 0
	assert.Nil(t, provideLimiter(cfg, client))
}
