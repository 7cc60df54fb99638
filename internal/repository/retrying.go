package repository

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"math/rand"
	"net"
	"time"
)

// RetryConfig tunes the read-retry decorator.
type RetryConfig struct {
	MaxAttempts   int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	JitterFactor  float64
}

// DefaultRetryConfig returns the retry tuning used in production.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		BaseDelay:     100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
		JitterFactor:  0.1,
	}
}

// RetryingClient decorates a DataClient with retries on transient read
// failures. Writes are never retried here: a create or bulk mutation is
// not safely repeatable without idempotency keys, so write resilience is
// left to the caller.
type RetryingClient struct {
	inner DataClient
	cfg   RetryConfig
}

// NewRetryingClient wraps the client.
func NewRetryingClient(inner DataClient, cfg RetryConfig) *RetryingClient {
	if cfg.MaxAttempts <= 0 {
		cfg = DefaultRetryConfig()
	}
	return &RetryingClient{inner: inner, cfg: cfg}
}

// Select implements DataClient.
func (c *RetryingClient) Select(ctx context.Context, scope, table string, filter Filter, sortBy *Sort, page Pagination) ([]json.RawMessage, error) {
	var rows []json.RawMessage
	err := c.retryRead(ctx, func() error {
		var err error
		rows, err = c.inner.Select(ctx, scope, table, filter, sortBy, page)
		return err
	})
	return rows, err
}

// Count implements DataClient.
func (c *RetryingClient) Count(ctx context.Context, scope, table string, filter Filter) (int64, error) {
	var total int64
	err := c.retryRead(ctx, func() error {
		var err error
		total, err = c.inner.Count(ctx, scope, table, filter)
		return err
	})
	return total, err
}

// Distinct implements DataClient.
func (c *RetryingClient) Distinct(ctx context.Context, scope, table, column string, filter Filter) ([]string, error) {
	var values []string
	err := c.retryRead(ctx, func() error {
		var err error
		values, err = c.inner.Distinct(ctx, scope, table, column, filter)
		return err
	})
	return values, err
}

// Insert implements DataClient. Writes pass through untouched.
func (c *RetryingClient) Insert(ctx context.Context, scope, table string, record interface{}) (json.RawMessage, error) {
	return c.inner.Insert(ctx, scope, table, record)
}

// Update implements DataClient.
func (c *RetryingClient) Update(ctx context.Context, scope, table, id string, patch map[string]interface{}, guard Filter) (json.RawMessage, error) {
	return c.inner.Update(ctx, scope, table, id, patch, guard)
}

// Delete implements DataClient.
func (c *RetryingClient) Delete(ctx context.Context, scope, table, id string, guard Filter) error {
	return c.inner.Delete(ctx, scope, table, id, guard)
}

// BulkUpdate implements DataClient.
func (c *RetryingClient) BulkUpdate(ctx context.Context, scope, table string, ids []string, patch map[string]interface{}, guard Filter) (int, error) {
	return c.inner.BulkUpdate(ctx, scope, table, ids, patch, guard)
}

// BulkDelete implements DataClient.
func (c *RetryingClient) BulkDelete(ctx context.Context, scope, table string, ids []string, guard Filter) (int, error) {
	return c.inner.BulkDelete(ctx, scope, table, ids, guard)
}

func (c *RetryingClient) retryRead(ctx context.Context, op func() error) error {
	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(c.delay(attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		lastErr = op()
		if lastErr == nil || !isTransient(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

// delay computes exponential backoff with jitter so concurrent retries do
// not stampede.
func (c *RetryingClient) delay(attempt int) time.Duration {
	backoff := float64(c.cfg.BaseDelay) * math.Pow(c.cfg.BackoffFactor, float64(attempt-1))
	if backoff > float64(c.cfg.MaxDelay) {
		backoff = float64(c.cfg.MaxDelay)
	}
	jitter := backoff * c.cfg.JitterFactor * (rand.Float64()*2 - 1)
	return time.Duration(backoff + jitter)
}

// isTransient reports whether a read failure is worth repeating. Domain
// sentinels are final; network hiccups and timeouts are not.
func isTransient(err error) bool {
	if errors.Is(err, ErrNoRows) || errors.Is(err, ErrUniqueViolation) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
