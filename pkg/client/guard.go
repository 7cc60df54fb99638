package client

import (
	"context"
	"sync"
)

// RequestGuard serializes the visible outcome of overlapping list fetches.
// Every fetch takes a monotonic token and a context; starting a new fetch
// cancels the previous one, and only the fetch holding the latest token may
// commit its result. A fetch that lost the race is a no-op, not an error.
type RequestGuard struct {
	mu      sync.Mutex
	current uint64
	cancel  context.CancelFunc
}

// NewRequestGuard creates the guard.
func NewRequestGuard() *RequestGuard {
	return &RequestGuard{}
}

// Begin registers a new fetch: the previous in-flight fetch is canceled and
// a fresh context plus this fetch's token are returned.
func (g *RequestGuard) Begin(parent context.Context) (context.Context, uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancel != nil {
		g.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	g.cancel = cancel
	g.current++
	return ctx, g.current
}

// ShouldCommit reports whether the fetch holding token is still the latest.
func (g *RequestGuard) ShouldCommit(token uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return token == g.current
}

// CommitIf runs commit under the guard lock, but only while the fetch
// holding token is still the latest. Holding the lock closes the window in
// which a newer fetch could start and land between the check and the
// commit. It reports whether commit ran.
func (g *RequestGuard) CommitIf(token uint64, commit func()) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if token != g.current {
		return false
	}
	commit()
	return true
}

// release runs clear when the fetch holding token exits without a result
// and no newer fetch is in flight. The loading flag belongs to the newest
// fetch; a superseded fetch must leave it alone.
func (g *RequestGuard) release(token uint64, clear func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if token == g.current || g.cancel == nil {
		clear()
	}
}

// Abort cancels the in-flight fetch without starting a new one. The
// canceled fetch must treat the cancellation as a no-op.
func (g *RequestGuard) Abort() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}
	g.current++
}

// FetchList runs one guarded list fetch against the store: the result only
// lands if no newer fetch started while the call was in flight. The fetch
// loading flag is raised for the whole flight; unlike mutations, a second
// fetch supersedes the first instead of being rejected. It returns true
// when the result was committed.
func FetchList[T any](
	parent context.Context,
	guard *RequestGuard,
	store *EntityStore[T],
	call func(ctx context.Context) ([]T, int64, error),
) (bool, error) {
	ctx, token := guard.Begin(parent)
	store.markFetching()

	items, total, err := call(ctx)
	if err != nil {
		// A canceled fetch lost the race on purpose; stay silent.
		if ctx.Err() != nil {
			guard.release(token, func() { store.endOp(OpFetch, nil) })
			return false, nil
		}
		if !guard.CommitIf(token, func() { store.endOp(OpFetch, err) }) {
			guard.release(token, func() { store.endOp(OpFetch, nil) })
			return false, nil
		}
		return false, err
	}
	committed := guard.CommitIf(token, func() {
		store.Replace(items, total)
		store.endOp(OpFetch, nil)
	})
	if !committed {
		guard.release(token, func() { store.endOp(OpFetch, nil) })
	}
	return committed, nil
}
