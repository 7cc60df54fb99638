package client_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backoffice-backend/internal/domain"
	"backoffice-backend/pkg/client"
)

func TestLateResponseNeverOverwritesNewerFetch(t *testing.T) {
	store := client.NewEntityStore(func(p domain.AccountingPurpose) string { return p.ID })
	guard := client.NewRequestGuard()

	slowStarted := make(chan struct{})
	slowRelease := make(chan struct{})
	slowDone := make(chan bool, 1)

	// fetch A: slow, started first
	go func() {
		committed, err := client.FetchList(context.Background(), guard, store,
			func(ctx context.Context) ([]domain.AccountingPurpose, int64, error) {
				close(slowStarted)
				select {
				case <-slowRelease:
				case <-ctx.Done():
					return nil, 0, ctx.Err()
				}
				return []domain.AccountingPurpose{{ID: "from-A"}}, 1, nil
			})
		assert.NoError(t, err)
		slowDone <- committed
	}()
	<-slowStarted

	// fetch B: started second, resolves first
	committed, err := client.FetchList(context.Background(), guard, store,
		func(context.Context) ([]domain.AccountingPurpose, int64, error) {
			return []domain.AccountingPurpose{{ID: "from-B"}}, 1, nil
		})
	require.NoError(t, err)
	assert.True(t, committed)

	close(slowRelease)
	select {
	case committedA := <-slowDone:
		assert.False(t, committedA, "stale fetch must not commit")
	case <-time.After(2 * time.Second):
		t.Fatal("slow fetch never settled")
	}

	items := store.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "from-B", items[0].ID)
}

func TestCanceledFetchIsNoOpNotError(t *testing.T) {
	store := client.NewEntityStore(func(p domain.AccountingPurpose) string { return p.ID })
	guard := client.NewRequestGuard()

	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := client.FetchList(context.Background(), guard, store,
			func(ctx context.Context) ([]domain.AccountingPurpose, int64, error) {
				close(started)
				<-ctx.Done()
				return nil, 0, ctx.Err()
			})
		done <- err
	}()
	<-started

	guard.Abort()

	select {
	case err := <-done:
		assert.NoError(t, err, "cancellation is a no-op, not a failure")
	case <-time.After(2 * time.Second):
		t.Fatal("aborted fetch never settled")
	}
	assert.NoError(t, store.Err(client.OpFetch))
	assert.Empty(t, store.Items())
	assert.False(t, store.Loading(client.OpFetch), "aborted fetch must drop the loading flag")
}

func TestFetchLoadingFlagTracksTheFlight(t *testing.T) {
	store := client.NewEntityStore(func(p domain.AccountingPurpose) string { return p.ID })
	guard := client.NewRequestGuard()

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		committed, err := client.FetchList(context.Background(), guard, store,
			func(ctx context.Context) ([]domain.AccountingPurpose, int64, error) {
				close(started)
				<-release
				return []domain.AccountingPurpose{{ID: "p-1"}}, 1, nil
			})
		assert.NoError(t, err)
		assert.True(t, committed)
	}()
	<-started

	assert.True(t, store.Loading(client.OpFetch), "loading must be raised while the fetch is in flight")

	close(release)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("fetch never settled")
	}
	assert.False(t, store.Loading(client.OpFetch), "loading must be cleared after the commit")
}

func TestFailedFetchClearsLoadingAndRecordsError(t *testing.T) {
	store := client.NewEntityStore(func(p domain.AccountingPurpose) string { return p.ID })
	guard := client.NewRequestGuard()

	boom := assert.AnError
	committed, err := client.FetchList(context.Background(), guard, store,
		func(context.Context) ([]domain.AccountingPurpose, int64, error) {
			return nil, 0, boom
		})
	assert.False(t, committed)
	require.ErrorIs(t, err, boom)
	assert.False(t, store.Loading(client.OpFetch))
	assert.ErrorIs(t, store.Err(client.OpFetch), boom)
}

func TestSupersededFetchLeavesLoadingToTheNewerOne(t *testing.T) {
	store := client.NewEntityStore(func(p domain.AccountingPurpose) string { return p.ID })
	guard := client.NewRequestGuard()

	slowStarted := make(chan struct{})
	slowDone := make(chan struct{})
	go func() {
		defer close(slowDone)
		committed, err := client.FetchList(context.Background(), guard, store,
			func(ctx context.Context) ([]domain.AccountingPurpose, int64, error) {
				close(slowStarted)
				<-ctx.Done()
				return nil, 0, ctx.Err()
			})
		assert.NoError(t, err, "a superseded fetch is silent, never a pending-mutation error")
		assert.False(t, committed)
	}()
	<-slowStarted

	committed, err := client.FetchList(context.Background(), guard, store,
		func(context.Context) ([]domain.AccountingPurpose, int64, error) {
			return []domain.AccountingPurpose{{ID: "newer"}}, 1, nil
		})
	require.NoError(t, err)
	assert.True(t, committed)

	select {
	case <-slowDone:
	case <-time.After(2 * time.Second):
		t.Fatal("superseded fetch never settled")
	}
	assert.False(t, store.Loading(client.OpFetch))
	items := store.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "newer", items[0].ID)
}

func TestCommitIfRefusesStaleTokens(t *testing.T) {
	guard := client.NewRequestGuard()
	_, stale := guard.Begin(context.Background())
	guard.Begin(context.Background())

	ran := false
	assert.False(t, guard.CommitIf(stale, func() { ran = true }))
	assert.False(t, ran, "a stale token must never run its commit")
}
