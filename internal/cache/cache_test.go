package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"aptprice/internal/core"
	"aptprice/internal/source"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newClockedCache[T any](size int, ttl time.Duration) (*LRUCache[T], *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[T](size, ttl)
	c.now = clock.Now
	return c, clock
}

func TestLRUCacheExpiry(t *testing.T) {
	c, clock := newClockedCache[string](10, time.Hour)
	c.Set("a", "1")

	if v, ok := c.Get("a"); !ok || v != "1" {
		t.Fatalf("expected hit, got %q %v", v, ok)
	}
	clock.Advance(59 * time.Minute)
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("expected hit before ttl")
	}
	clock.Advance(time.Minute)
	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected miss at ttl")
	}
	if c.Size() != 0 {
		t.Fatalf("expected expired entry removed, size=%d", c.Size())
	}
	st := c.Stats()
	if st.Hits != 2 || st.Misses != 1 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestLRUCacheEviction(t *testing.T) {
	c, _ := newClockedCache[int](2, time.Hour)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatalf("expected least recently used entry evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("expected recently used entry kept")
	}
	c.Delete("a")
	if c.Size() != 1 {
		t.Fatalf("expected size 1 after delete, got %d", c.Size())
	}
}

func TestManagerCleanNow(t *testing.T) {
	c, clock := newClockedCache[int](10, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	clock.Advance(2 * time.Minute)
	c.Set("c", 3)

	m := NewManager(nil)
	m.Register(c)
	if n := m.CleanNow(); n != 2 {
		t.Fatalf("expected 2 removed, got %d", n)
	}
	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop()
}

type countingFetcher struct {
	calls int32
	err   error
	items int
	delay time.Duration
}

func (f *countingFetcher) Fetch(_ context.Context, q core.TransactionQuery) (core.FetchResult, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return core.FetchResult{}, f.err
	}
	res := core.FetchResult{Query: q}
	for i := 0; i < f.items; i++ {
		res.Items = append(res.Items, core.RawItem{"aptNm": "A"})
	}
	return res, nil
}

var _ source.TransactionFetcher = (*countingFetcher)(nil)

func q(t *testing.T, region, ym, key string) core.TransactionQuery {
	t.Helper()
	query, err := core.NewQuery(region, ym, key)
	if err != nil {
		t.Fatalf("NewQuery: %v", err)
	}
	return query
}

func TestFetcherMemoizesByQuery(t *testing.T) {
	next := &countingFetcher{items: 1}
	lru, clock := newClockedCache[core.FetchResult](16, time.Hour)
	f := NewFetcher(next, lru, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := f.Fetch(ctx, q(t, "11680", "202310", "k1")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if next.calls != 1 {
		t.Fatalf("expected 1 upstream call, got %d", next.calls)
	}

	_, _ = f.Fetch(ctx, q(t, "11680", "202309", "k1"))
	_, _ = f.Fetch(ctx, q(t, "11650", "202310", "k1"))
	_, _ = f.Fetch(ctx, q(t, "11680", "202310", "k2"))
	if next.calls != 4 {
		t.Fatalf("expected distinct keys to miss, got %d calls", next.calls)
	}

	clock.Advance(time.Hour)
	_, _ = f.Fetch(ctx, q(t, "11680", "202310", "k1"))
	if next.calls != 5 {
		t.Fatalf("expected refetch after ttl, got %d calls", next.calls)
	}

	f.Invalidate(q(t, "11680", "202310", "k1"))
	_, _ = f.Fetch(ctx, q(t, "11680", "202310", "k1"))
	if next.calls != 6 {
		t.Fatalf("expected refetch after invalidate, got %d calls", next.calls)
	}
}

func TestFetcherCachesEmptyButNotErrors(t *testing.T) {
	ctx := context.Background()

	empty := &countingFetcher{}
	f := NewFetcher(empty, NewLRUCache[core.FetchResult](4, time.Hour), nil)
	for i := 0; i < 2; i++ {
		res, err := f.Fetch(ctx, q(t, "11680", "202310", "k"))
		if err != nil || !res.Empty() {
			t.Fatalf("expected empty result, got %v", err)
		}
	}
	if empty.calls != 1 {
		t.Fatalf("expected empty result cached, got %d calls", empty.calls)
	}

	failing := &countingFetcher{err: &core.FetchError{Kind: core.FetchTransport}}
	f = NewFetcher(failing, NewLRUCache[core.FetchResult](4, time.Hour), nil)
	for i := 0; i < 2; i++ {
		if _, err := f.Fetch(ctx, q(t, "11680", "202310", "k")); !errors.Is(err, core.ErrTransport) {
			t.Fatalf("expected transport error, got %v", err)
		}
	}
	if failing.calls != 2 {
		t.Fatalf("expected errors not cached, got %d calls", failing.calls)
	}
}

func TestFetcherCollapsesConcurrentCalls(t *testing.T) {
	next := &countingFetcher{items: 1, delay: 50 * time.Millisecond}
	f := NewFetcher(next, NewLRUCache[core.FetchResult](4, time.Hour), nil)
	query := q(t, "11680", "202310", "k")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.Fetch(context.Background(), query); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if calls := atomic.LoadInt32(&next.calls); calls < 1 || calls > 2 {
		t.Fatalf("expected concurrent calls collapsed, got %d", calls)
	}
}

func TestKeyHidesCredential(t *testing.T) {
	key := Key(q(t, "11680", "202310", "super-secret"))
	if strings.Contains(key, "super-secret") {
		t.Fatalf("cache key leaks credential: %s", key)
	}
	if !strings.HasPrefix(key, "11680|202310|") {
		t.Fatalf("unexpected key layout %s", key)
	}
	if Key(q(t, "11680", "202310", "")) != "11680|202310|anon" {
		t.Fatalf("unexpected anonymous key")
	}
}
