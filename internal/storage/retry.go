package storage

import (
	"context"
	"time"
)

const (
	defaultWriteAttempts = 3
	defaultWriteDelay    = 200 * time.Millisecond
)

// withWriteRetry runs fn up to attempts times with a fixed delay between tries.
// Domain errors are returned immediately.
func withWriteRetry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil || isDomainError(err) {
			return err
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(delay):
		}
	}
	return err
}
