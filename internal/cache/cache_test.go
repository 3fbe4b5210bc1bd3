package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"HiTrade/internal/collector"
	"HiTrade/internal/model"
)

var rng = model.Lookback(time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC), 180)

type countingObserver struct {
	mu           sync.Mutex
	hits, misses int
}

func (o *countingObserver) CacheHit()  { o.mu.Lock(); o.hits++; o.mu.Unlock() }
func (o *countingObserver) CacheMiss() { o.mu.Lock(); o.misses++; o.mu.Unlock() }

func TestGetOrFetch_Idempotent(t *testing.T) {
	m := &collector.MockFetcher{}
	obs := &countingObserver{}
	c := New(m, time.Minute, obs)

	a, err := c.GetOrFetch(context.Background(), "TCS.NS", rng)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := c.GetOrFetch(context.Background(), "TCS.NS", rng)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Calls("TCS.NS") != 1 {
		t.Errorf("expected 1 upstream call, got %d", m.Calls("TCS.NS"))
	}
	if a.Len() != b.Len() {
		t.Error("cached series differs from fetched series")
	}
	if obs.hits != 1 || obs.misses != 1 {
		t.Errorf("expected 1 hit / 1 miss, got %d / %d", obs.hits, obs.misses)
	}
}

func TestGetOrFetch_KeyIncludesRange(t *testing.T) {
	m := &collector.MockFetcher{}
	c := New(m, 0, nil)
	other := model.Lookback(rng.End, 365)
	c.GetOrFetch(context.Background(), "TCS.NS", rng)
	c.GetOrFetch(context.Background(), "TCS.NS", other)
	if m.Calls("TCS.NS") != 2 {
		t.Errorf("different ranges must be fetched separately, got %d calls", m.Calls("TCS.NS"))
	}
	if c.Len() != 2 {
		t.Errorf("expected 2 entries, got %d", c.Len())
	}
}

func TestGetOrFetch_SingleFlight(t *testing.T) {
	m := &collector.MockFetcher{Delay: 50 * time.Millisecond}
	c := New(m, 0, nil)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.GetOrFetch(context.Background(), "INFY.NS", rng); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("unexpected error: %v", err)
	}
	if m.Calls("INFY.NS") != 1 {
		t.Errorf("expected concurrent misses to collapse into 1 fetch, got %d", m.Calls("INFY.NS"))
	}
}

func TestGetOrFetch_NegativeCacheTTL(t *testing.T) {
	m := &collector.MockFetcher{Bars: map[string][]model.PriceBar{"GONE.NS": nil}}
	c := New(m, time.Minute, nil)
	now := time.Date(2025, 6, 30, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if _, err := c.GetOrFetch(context.Background(), "GONE.NS", rng); !errors.Is(err, model.ErrDataUnavailable) {
			t.Fatalf("expected ErrDataUnavailable, got %v", err)
		}
	}
	if m.Calls("GONE.NS") != 1 {
		t.Errorf("empty result should be cached, got %d calls", m.Calls("GONE.NS"))
	}

	now = now.Add(2 * time.Minute)
	c.GetOrFetch(context.Background(), "GONE.NS", rng)
	if m.Calls("GONE.NS") != 2 {
		t.Errorf("expired negative entry should refetch, got %d calls", m.Calls("GONE.NS"))
	}
}

func TestGetOrFetch_TransportErrorNotCached(t *testing.T) {
	m := &collector.MockFetcher{Fail: map[string]error{"FLAKY.NS": errors.New("connection reset")}}
	c := New(m, 0, nil)
	c.GetOrFetch(context.Background(), "FLAKY.NS", rng)
	c.GetOrFetch(context.Background(), "FLAKY.NS", rng)
	if m.Calls("FLAKY.NS") != 2 {
		t.Errorf("transport errors must not be cached, got %d calls", m.Calls("FLAKY.NS"))
	}
	if c.Len() != 0 {
		t.Errorf("expected empty cache, got %d entries", c.Len())
	}
}

func TestGetOrFetch_CancelledFetchLeavesNoEntry(t *testing.T) {
	m := &collector.MockFetcher{Delay: 200 * time.Millisecond}
	c := New(m, 0, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.GetOrFetch(ctx, "SBIN.NS", rng); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	// Let the abandoned fetch observe its cancelled context.
	time.Sleep(250 * time.Millisecond)
	if c.Len() != 0 {
		t.Fatalf("cancelled fetch must not be cached, got %d entries", c.Len())
	}

	if _, err := c.GetOrFetch(context.Background(), "SBIN.NS", rng); err != nil {
		t.Fatalf("unexpected error after cancellation: %v", err)
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", c.Len())
	}
}

func TestSeriesCache_IsFetcher(t *testing.T) {
	var f collector.Fetcher = New(&collector.MockFetcher{}, 0, nil)
	if f.Name() != "cached-mock" {
		t.Errorf("unexpected name %q", f.Name())
	}
}
