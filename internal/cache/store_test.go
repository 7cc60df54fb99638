package cache

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock lets tests advance time without sleeping.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestStore(t *testing.T, clock *fakeClock, maxEntries int) *Store {
	t.Helper()
	s := New(Options{
		DefaultTTL:      5 * time.Minute,
		CleanupInterval: time.Hour, // sweeps are triggered manually in tests
		MaxEntries:      maxEntries,
		now:             clock.now,
	})
	t.Cleanup(s.Close)
	return s
}

func TestKeyDeterminism(t *testing.T) {
	params := map[string]interface{}{
		"company_id": "c1",
		"limit":      50,
		"offset":     100,
		"search":     "sales",
		"is_active":  true,
	}
	want := Key("list", params)
	require.NotEmpty(t, want)

	// Rebuild the bag in shuffled insertion orders; the key must not change.
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	for i := 0; i < 20; i++ {
		rand.Shuffle(len(keys), func(a, b int) { keys[a], keys[b] = keys[b], keys[a] })
		shuffled := make(map[string]interface{}, len(params))
		for _, k := range keys {
			shuffled[k] = params[k]
		}
		assert.Equal(t, want, Key("list", shuffled))
	}
}

func TestKeyFamiliesNeverCollide(t *testing.T) {
	params := map[string]interface{}{"id": "42"}
	assert.NotEqual(t, Key("detail", params), Key("code", params))
	assert.Empty(t, Key("", params))
}

func TestKeyUnserializableParams(t *testing.T) {
	key := Key("list", map[string]interface{}{"ch": make(chan int)})
	assert.Empty(t, key)

	// An empty key is silently uncacheable.
	clock := &fakeClock{t: time.Unix(1000, 0)}
	s := newTestStore(t, clock, 0)
	s.Set(key, "value")
	_, ok := s.Get(key)
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
}

func TestTTLExpiry(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	s := newTestStore(t, clock, 0)

	s.SetTTL("detail:1", "v", time.Minute)

	clock.advance(59 * time.Second)
	got, ok := s.Get("detail:1")
	require.True(t, ok)
	assert.Equal(t, "v", got)

	clock.advance(time.Second) // elapsed == TTL: entry is invalid
	_, ok = s.Get("detail:1")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len(), "lazy read should have evicted the entry")
}

func TestInvalidatePrefixIsSegmentScoped(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	s := newTestStore(t, clock, 0)

	s.Set(`list:{"company_id":"c1"}`, 1)
	s.Set(`list:{"company_id":"c2"}`, 2)
	// A detail key whose serialized suffix textually contains "list:".
	s.Set(`detail:{"note":"see list:{} for context"}`, 3)
	s.Set(`code:{"code":"list:"}`, 4)
	s.Set(`list-archive:{"company_id":"c1"}`, 5)

	removed := s.Invalidate("list:")
	assert.Equal(t, 2, removed)

	_, ok := s.Get(`detail:{"note":"see list:{} for context"}`)
	assert.True(t, ok)
	_, ok = s.Get(`code:{"code":"list:"}`)
	assert.True(t, ok)
	_, ok = s.Get(`list-archive:{"company_id":"c1"}`)
	assert.True(t, ok, "a longer family sharing a textual prefix must survive")
}

func TestInvalidateAll(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	s := newTestStore(t, clock, 0)
	s.Set("list:a", 1)
	s.Set("detail:b", 2)
	s.InvalidateAll()
	assert.Equal(t, 0, s.Len())
}

func TestEvictionPrefersExpiredThenOldest(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	s := newTestStore(t, clock, 3)

	s.SetTTL("a", 1, time.Minute)
	clock.advance(time.Second)
	s.SetTTL("b", 2, 10*time.Minute)
	clock.advance(time.Second)
	s.SetTTL("c", 3, 10*time.Minute)

	// "a" expires; the next insert at capacity must reclaim it first.
	clock.advance(2 * time.Minute)
	s.SetTTL("d", 4, 10*time.Minute)

	_, ok := s.Get("a")
	assert.False(t, ok)
	for _, key := range []string{"b", "c", "d"} {
		_, ok := s.Get(key)
		assert.True(t, ok, key)
	}

	// Nothing expired now: the oldest-inserted entry ("b") goes.
	s.SetTTL("e", 5, 10*time.Minute)
	_, ok = s.Get("b")
	assert.False(t, ok)
	_, ok = s.Get("c")
	assert.True(t, ok)
}

func TestSweepRemovesExpiredEntries(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	s := newTestStore(t, clock, 0)

	s.SetTTL("list:a", 1, time.Minute)
	s.SetTTL("list:b", 2, time.Hour)
	clock.advance(2 * time.Minute)

	s.sweep()
	assert.Equal(t, 1, s.Len())
	_, ok := s.Get("list:b")
	assert.True(t, ok)
}

func TestCloseIsIdempotentAndClears(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	s := New(Options{CleanupInterval: time.Millisecond, now: clock.now})
	s.Set("list:a", 1)
	s.Close()
	s.Close()
	assert.Equal(t, 0, s.Len())
}
