package client

import (
	"context"

	apperrors "backoffice-backend/pkg/errors"
)

// ErrMutationPending is returned when a mutation of the same kind is
// already in flight. The caller retries after the current one settles.
var ErrMutationPending = apperrors.NewConflict("MUTATION_PENDING",
	"a mutation of this kind is already in flight")

// WithOptimisticUpdate runs one optimistic mutation against the store:
// snapshot, apply the expected effect synchronously, then issue the network
// call. On success commit reconciles the optimistic state with the server
// record; on failure the pre-mutation snapshot is restored exactly and the
// error is recorded under the operation kind.
//
// apply mutates the item slice to the expected post-mutation shape and
// returns it. commit receives the applied slice and the server record and
// returns the authoritative slice (for a create this is where the
// temporary id is replaced). Either may be nil when there is nothing to do.
func WithOptimisticUpdate[T any](
	ctx context.Context,
	store *EntityStore[T],
	op Op,
	apply func(items []T) []T,
	call func(ctx context.Context) (*T, error),
	commit func(items []T, result *T) []T,
) (*T, error) {
	if !store.beginOp(op) {
		return nil, ErrMutationPending
	}

	store.mu.Lock()
	snap := store.takeSnapshot()
	if apply != nil {
		store.items = apply(store.items)
	}
	store.mu.Unlock()

	result, err := call(ctx)
	if err != nil {
		store.mu.Lock()
		store.restoreSnapshot(snap)
		store.mu.Unlock()
		store.endOp(op, err)
		return nil, err
	}

	store.mu.Lock()
	if commit != nil {
		store.items = commit(store.items, result)
	}
	store.mu.Unlock()
	store.endOp(op, nil)
	return result, nil
}

// ReplaceByID returns a commit function that swaps the record whose id
// matches oldID with the server record. Use the temporary id for creates.
func ReplaceByID[T any](store *EntityStore[T], oldID string) func(items []T, result *T) []T {
	return func(items []T, result *T) []T {
		if result == nil {
			return items
		}
		for i := range items {
			if store.id(items[i]) == oldID {
				items[i] = *result
				return items
			}
		}
		return items
	}
}

// RemoveByID returns an apply function that filters out the record and
// decrements the cached total.
func RemoveByID[T any](store *EntityStore[T], id string) func(items []T) []T {
	return func(items []T) []T {
		out := items[:0]
		for _, item := range items {
			if store.id(item) != id {
				out = append(out, item)
			}
		}
		if len(out) < len(items) {
			store.total--
			delete(store.selected, id)
		}
		return out
	}
}

// PrependTemp returns an apply function that prepends an optimistic record
// carrying a temporary id and increments the cached total.
func PrependTemp[T any](store *EntityStore[T], temp T) func(items []T) []T {
	return func(items []T) []T {
		store.total++
		return append([]T{temp}, items...)
	}
}
