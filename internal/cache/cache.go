// Package cache memoizes price history per (ticker, date range) for the lifetime of the process.
package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"HiTrade/internal/collector"
	"HiTrade/internal/logger"
	"HiTrade/internal/model"
)

// Observer receives cache hit/miss events. metrics.Metrics implements it.
type Observer interface {
	CacheHit()
	CacheMiss()
}

type entry struct {
	series   model.PriceSeries
	err      error
	storedAt time.Time
}

// SeriesCache wraps a Fetcher with get-or-fetch memoization.
// Concurrent misses for one key share a single upstream call. Entries are only written
// after a fetch completes, so a cancelled fetch never leaves a partial entry.
// The map grows without bound until Purge.
type SeriesCache struct {
	fetcher     collector.Fetcher
	negativeTTL time.Duration
	observer    Observer
	now         func() time.Time

	mu      sync.RWMutex
	entries map[string]entry
	group   singleflight.Group
}

// New creates a SeriesCache. negativeTTL bounds how long "no data" and malformed results
// are remembered; 0 keeps them for the whole session.
func New(fetcher collector.Fetcher, negativeTTL time.Duration, observer Observer) *SeriesCache {
	return &SeriesCache{
		fetcher:     fetcher,
		negativeTTL: negativeTTL,
		observer:    observer,
		now:         time.Now,
		entries:     make(map[string]entry),
	}
}

func (c *SeriesCache) Name() string { return "cached-" + c.fetcher.Name() }

// FetchHistory makes SeriesCache a drop-in collector.Fetcher.
func (c *SeriesCache) FetchHistory(ctx context.Context, ticker string, rng model.DateRange) (model.PriceSeries, error) {
	return c.GetOrFetch(ctx, ticker, rng)
}

// GetOrFetch returns the cached series for (ticker, rng) or retrieves and stores it.
func (c *SeriesCache) GetOrFetch(ctx context.Context, ticker string, rng model.DateRange) (model.PriceSeries, error) {
	key := ticker + "|" + rng.Key()
	if e, ok := c.lookup(key); ok {
		c.hit()
		return e.series, e.err
	}
	c.miss()

	// A shared fetch that failed only because the leader's context ended is retried
	// once under our own context.
	for attempt := 0; ; attempt++ {
		ch := c.group.DoChan(key, func() (interface{}, error) {
			if e, ok := c.lookup(key); ok {
				return e, nil
			}
			series, err := c.fetcher.FetchHistory(ctx, ticker, rng)
			e := entry{series: series, err: err, storedAt: c.now()}
			if cacheable(err) {
				c.mu.Lock()
				c.entries[key] = e
				c.mu.Unlock()
			}
			return e, nil
		})

		select {
		case <-ctx.Done():
			return model.PriceSeries{}, ctx.Err()
		case res := <-ch:
			e := res.Val.(entry)
			if isContextErr(e.err) && ctx.Err() == nil && attempt == 0 {
				logger.Debug("shared fetch cancelled by another caller, retrying", zap.String("ticker", ticker))
				continue
			}
			return e.series, e.err
		}
	}
}

func (c *SeriesCache) lookup(key string) (entry, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return entry{}, false
	}
	if e.err != nil && c.negativeTTL > 0 && c.now().Sub(e.storedAt) >= c.negativeTTL {
		c.mu.Lock()
		if cur, ok := c.entries[key]; ok && cur.storedAt.Equal(e.storedAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return entry{}, false
	}
	return e, true
}

// Len returns the number of cached entries, positive and negative.
func (c *SeriesCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Purge drops every entry.
func (c *SeriesCache) Purge() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
}

func (c *SeriesCache) hit() {
	if c.observer != nil {
		c.observer.CacheHit()
	}
}

func (c *SeriesCache) miss() {
	if c.observer != nil {
		c.observer.CacheMiss()
	}
}

// cacheable keeps successes and deterministic "empty" answers; transport failures,
// timeouts and cancellations are left uncached so the next scan retries them.
func cacheable(err error) bool {
	return err == nil || errors.Is(err, model.ErrDataUnavailable) || errors.Is(err, model.ErrMalformedData)
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
