package client

import (
	"sync"
	"time"
)

// Op names one mutating operation kind. Loading and error state is tracked
// per kind so the UI can disable exactly the control that is in flight.
type Op string

const (
	OpFetch   Op = "fetch"
	OpCreate  Op = "create"
	OpUpdate  Op = "update"
	OpRemove  Op = "remove"
	OpConfirm Op = "confirm"
)

// EntityStore holds one resource's client-side state: the visible items,
// the selection, and per-operation loading flags and errors. All mutation
// is synchronous under one mutex; network calls happen outside it.
type EntityStore[T any] struct {
	mu        sync.Mutex
	items     []T
	total     int64
	selected  map[string]bool
	loading   map[Op]bool
	errs      map[Op]error
	filters   map[string]string
	lastFetch time.Time

	// id extracts the record identifier used for selection and matching.
	id func(T) string
}

// NewEntityStore creates an empty store. id must return the record's
// identifier; for optimistic creates it sees temporary ids too.
func NewEntityStore[T any](id func(T) string) *EntityStore[T] {
	return &EntityStore[T]{
		selected: make(map[string]bool),
		loading:  make(map[Op]bool),
		errs:     make(map[Op]error),
		filters:  make(map[string]string),
		id:       id,
	}
}

// Items returns a copy of the visible items.
func (s *EntityStore[T]) Items() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]T(nil), s.items...)
}

// Total returns the server-reported total for the current filter.
func (s *EntityStore[T]) Total() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// Replace swaps in a fresh page of items, usually after a committed fetch.
func (s *EntityStore[T]) Replace(items []T, total int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append([]T(nil), items...)
	s.total = total
	s.lastFetch = time.Now()
}

// Select marks a record selected.
func (s *EntityStore[T]) Select(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected[id] = true
}

// Deselect removes a record from the selection.
func (s *EntityStore[T]) Deselect(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.selected, id)
}

// SelectedIDs returns the selected record ids.
func (s *EntityStore[T]) SelectedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.selected))
	for id := range s.selected {
		ids = append(ids, id)
	}
	return ids
}

// ClearSelection empties the selection.
func (s *EntityStore[T]) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = make(map[string]bool)
}

// SetFilters records the active filter bag.
func (s *EntityStore[T]) SetFilters(filters map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = make(map[string]string, len(filters))
	for k, v := range filters {
		s.filters[k] = v
	}
}

// Filters returns a copy of the active filter bag.
func (s *EntityStore[T]) Filters() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.filters))
	for k, v := range s.filters {
		out[k] = v
	}
	return out
}

// Loading reports whether an operation of the given kind is in flight.
func (s *EntityStore[T]) Loading(op Op) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading[op]
}

// Err returns the last error of the given operation kind, or nil.
func (s *EntityStore[T]) Err(op Op) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errs[op]
}

// LastFetch returns when the store last committed a fetch.
func (s *EntityStore[T]) LastFetch() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastFetch
}

// snapshot captures items, total and selection for an exact rollback.
type snapshot[T any] struct {
	items    []T
	total    int64
	selected map[string]bool
}

func (s *EntityStore[T]) takeSnapshot() snapshot[T] {
	snap := snapshot[T]{
		items:    append([]T(nil), s.items...),
		total:    s.total,
		selected: make(map[string]bool, len(s.selected)),
	}
	for id := range s.selected {
		snap.selected[id] = true
	}
	return snap
}

func (s *EntityStore[T]) restoreSnapshot(snap snapshot[T]) {
	s.items = snap.items
	s.total = snap.total
	s.selected = snap.selected
}

// beginOp claims the per-kind loading flag. It returns false when an
// operation of the same kind is already in flight.
func (s *EntityStore[T]) beginOp(op Op) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loading[op] {
		return false
	}
	s.loading[op] = true
	s.errs[op] = nil
	return true
}

// markFetching raises the fetch loading flag. Unlike beginOp it tolerates
// overlap: a newer fetch takes over the flag instead of being rejected.
func (s *EntityStore[T]) markFetching() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading[OpFetch] = true
	s.errs[OpFetch] = nil
}

func (s *EntityStore[T]) endOp(op Op, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading[op] = false
	s.errs[op] = err
}
