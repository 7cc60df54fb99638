package repository_test

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backoffice-backend/internal/repository"
)

// flakyClient fails reads with a transient error a fixed number of times.
type flakyClient struct {
	repository.DataClient
	failures int
	calls    int
}

func (c *flakyClient) Select(ctx context.Context, scope, table string, filter repository.Filter, sortBy *repository.Sort, page repository.Pagination) ([]json.RawMessage, error) {
	c.calls++
	if c.calls <= c.failures {
		return nil, &net.OpError{Op: "read", Err: context.DeadlineExceeded}
	}
	return []json.RawMessage{json.RawMessage(`{"id":"r-1"}`)}, nil
}

func (c *flakyClient) Insert(ctx context.Context, scope, table string, record interface{}) (json.RawMessage, error) {
	c.calls++
	return nil, &net.OpError{Op: "write", Err: context.DeadlineExceeded}
}

func retryCfg() repository.RetryConfig {
	return repository.RetryConfig{
		MaxAttempts:   3,
		BaseDelay:     time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2.0,
		JitterFactor:  0.1,
	}
}

func TestRetryingClientRetriesTransientReads(t *testing.T) {
	flaky := &flakyClient{failures: 2}
	client := repository.NewRetryingClient(flaky, retryCfg())

	rows, err := client.Select(context.Background(), "company-1", "t", nil, nil, repository.Pagination{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, 3, flaky.calls)
}

func TestRetryingClientGivesUpAfterMaxAttempts(t *testing.T) {
	flaky := &flakyClient{failures: 10}
	client := repository.NewRetryingClient(flaky, retryCfg())

	_, err := client.Select(context.Background(), "company-1", "t", nil, nil, repository.Pagination{Limit: 1})
	require.Error(t, err)
	assert.Equal(t, 3, flaky.calls)
}

func TestRetryingClientNeverRetriesWrites(t *testing.T) {
	flaky := &flakyClient{failures: 10}
	client := repository.NewRetryingClient(flaky, retryCfg())

	_, err := client.Insert(context.Background(), "company-1", "t", map[string]string{"a": "b"})
	require.Error(t, err)
	assert.Equal(t, 1, flaky.calls, "writes are not idempotent and must pass through once")
}

func TestRetryingClientDoesNotRetryDomainSentinels(t *testing.T) {
	client := repository.NewRetryingClient(&sentinelClient{}, retryCfg())

	_, err := client.Count(context.Background(), "company-1", "t", nil)
	require.ErrorIs(t, err, repository.ErrNoRows)
}

type sentinelClient struct {
	repository.DataClient
	calls int
}

func (c *sentinelClient) Count(ctx context.Context, scope, table string, filter repository.Filter) (int64, error) {
	c.calls++
	if c.calls > 1 {
		panic("sentinel errors must not be retried")
	}
	return 0, repository.ErrNoRows
}
