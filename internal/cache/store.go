// Package cache implements the TTL read-cache that fronts the repository
// layer: a key -> (value, insertedAt, ttl) map with lazy expiry on read, a
// periodic sweep, max-size eviction and prefix-scoped invalidation.
//
// The TTL is the correctness backstop: the backing store can be mutated by
// other app instances or direct database edits, which explicit invalidation
// cannot observe. Invalidation on local mutations only keeps common paths
// fresh ahead of expiry.
package cache

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

type entry struct {
	value      interface{}
	insertedAt time.Time
	ttl        time.Duration
}

func (e entry) expired(now time.Time) bool {
	return now.Sub(e.insertedAt) >= e.ttl
}

// Options configures a Store.
type Options struct {
	// DefaultTTL is applied by Set; SetTTL overrides per entry.
	DefaultTTL time.Duration
	// CleanupInterval is the period of the background sweep.
	CleanupInterval time.Duration
	// MaxEntries bounds the map; 0 means unbounded.
	MaxEntries int
	Logger     *zap.Logger

	// now is the clock; tests substitute it.
	now func() time.Time
}

// Store is an in-process TTL cache owned by exactly one repository instance.
// It is explicitly constructed and explicitly closed; nothing here is a
// package-level singleton.
type Store struct {
	mu      sync.RWMutex
	items   map[string]entry
	opts    Options
	now     func() time.Time
	logger  *zap.Logger
	done    chan struct{}
	closeMu sync.Once
}

// New creates a Store and starts its sweep goroutine.
func New(opts Options) *Store {
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = 5 * time.Minute
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	nowFn := opts.now
	if nowFn == nil {
		nowFn = time.Now
	}
	s := &Store{
		items:  make(map[string]entry),
		opts:   opts,
		now:    nowFn,
		logger: opts.Logger,
		done:   make(chan struct{}),
	}
	go s.sweepLoop()
	return s
}

// Get returns the cached value for key if it exists and has not outlived its
// TTL. Expired entries are evicted on the spot, independent of the sweep.
func (s *Store) Get(key string) (interface{}, bool) {
	if key == "" {
		return nil, false
	}
	now := s.now()

	s.mu.RLock()
	e, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if e.expired(now) {
		s.mu.Lock()
		// Recheck under the write lock; a Set may have raced the eviction.
		if cur, ok := s.items[key]; ok && cur.expired(s.now()) {
			delete(s.items, key)
		}
		s.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

// Set stores value under key with the default TTL.
func (s *Store) Set(key string, value interface{}) {
	s.SetTTL(key, value, s.opts.DefaultTTL)
}

// SetTTL stores value under key with an entry-specific TTL. When the store is
// at capacity an eviction pass runs first: expired entries go first, then
// oldest-inserted entries until the store is back under budget.
func (s *Store) SetTTL(key string, value interface{}, ttl time.Duration) {
	if key == "" {
		return
	}
	if ttl <= 0 {
		ttl = s.opts.DefaultTTL
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.opts.MaxEntries > 0 && len(s.items) >= s.opts.MaxEntries {
		if _, exists := s.items[key]; !exists {
			s.evictLocked(len(s.items) + 1 - s.opts.MaxEntries)
		}
	}
	s.items[key] = entry{value: value, insertedAt: s.now(), ttl: ttl}
}

// Invalidate removes every entry whose key belongs to the given family and
// returns the number of entries removed. Matching is segment-aware, see
// matchesPrefix.
func (s *Store) Invalidate(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key := range s.items {
		if matchesPrefix(key, prefix) {
			delete(s.items, key)
			removed++
		}
	}
	return removed
}

// InvalidateAll clears the store.
func (s *Store) InvalidateAll() {
	s.mu.Lock()
	s.items = make(map[string]entry)
	s.mu.Unlock()
}

// Len returns the number of entries currently held, expired or not.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Close stops the sweep goroutine and clears the map. Safe to call more than
// once.
func (s *Store) Close() {
	s.closeMu.Do(func() {
		close(s.done)
	})
	s.InvalidateAll()
}

func (s *Store) sweepLoop() {
	ticker := time.NewTicker(s.opts.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep removes expired entries and re-enforces the size budget. A panic
// inside one pass must not kill the loop or leave the timer unscheduled.
func (s *Store) sweep() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("cache sweep failed", zap.Any("panic", r))
		}
	}()

	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, e := range s.items {
		if e.expired(now) {
			delete(s.items, key)
		}
	}
	if s.opts.MaxEntries > 0 && len(s.items) > s.opts.MaxEntries {
		s.evictLocked(len(s.items) - s.opts.MaxEntries)
	}
}

// evictLocked frees at least n slots. Expired entries are removed first;
// if that is not enough, oldest-inserted entries go until under budget.
// Caller holds the write lock.
func (s *Store) evictLocked(n int) {
	now := s.now()
	for key, e := range s.items {
		if n <= 0 {
			return
		}
		if e.expired(now) {
			delete(s.items, key)
			n--
		}
	}
	for n > 0 && len(s.items) > 0 {
		var oldestKey string
		var oldestAt time.Time
		for key, e := range s.items {
			if oldestKey == "" || e.insertedAt.Before(oldestAt) {
				oldestKey = key
				oldestAt = e.insertedAt
			}
		}
		delete(s.items, oldestKey)
		n--
	}
}
