package collector

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jpillora/backoff"
	"go.uber.org/zap"

	"HiTrade/internal/logger"
	"HiTrade/internal/model"
)

// newHTTPClient builds a client with optional proxy support.
func newHTTPClient(proxyURL string) *http.Client {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &http.Client{
		Timeout:   30 * time.Second,
		Transport: transport,
	}
}

// errRetryable marks responses worth another attempt (429 and 5xx).
var errRetryable = errors.New("retryable status")

// getWithRetry performs a GET and returns the body of a 200 response.
// 404 maps to model.ErrDataUnavailable. Transport errors, 429 and 5xx are retried with
// exponential backoff up to maxRetries extra attempts; the context bounds the whole loop.
func getWithRetry(ctx context.Context, client *http.Client, endpoint string, headers map[string]string, maxRetries int) ([]byte, error) {
	b := &backoff.Backoff{Min: 500 * time.Millisecond, Max: 8 * time.Second, Factor: 2, Jitter: true}
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			wait := b.Duration()
			logger.Debug("retrying fetch", zap.String("url", endpoint), zap.Int("attempt", attempt+1), zap.Duration("backoff", wait), zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		body, err := getOnce(ctx, client, endpoint, headers)
		if err == nil {
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		var netErr interface{ Timeout() bool }
		if !errors.Is(err, errRetryable) && !errors.As(err, &netErr) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("all %d attempts failed: %w", maxRetries+1, lastErr)
}

func getOnce(ctx context.Context, client *http.Client, endpoint string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: status 404", model.ErrDataUnavailable)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", errRetryable, resp.StatusCode)
	default:
		return nil, fmt.Errorf("status %d, body: %s", resp.StatusCode, truncate(string(body), 200))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// MockFetcher returns deterministic synthetic history for development and testing.
// Each ticker gets its own reproducible random walk.
type MockFetcher struct {
	// Bars overrides the generated history per ticker.
	Bars map[string][]model.PriceBar
	// Fail makes FetchHistory return the given error for a ticker.
	Fail map[string]error
	// Delay simulates network latency; it honours context cancellation.
	Delay time.Duration

	mu    sync.Mutex
	calls map[string]int
	total atomic.Int64
}

func (m *MockFetcher) Name() string { return "mock" }

// Calls returns how many times a ticker was fetched.
func (m *MockFetcher) Calls(ticker string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[ticker]
}

// TotalCalls returns the number of FetchHistory invocations.
func (m *MockFetcher) TotalCalls() int { return int(m.total.Load()) }

func (m *MockFetcher) FetchHistory(ctx context.Context, ticker string, rng model.DateRange) (model.PriceSeries, error) {
	m.total.Add(1)
	m.mu.Lock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[ticker]++
	m.mu.Unlock()

	if m.Delay > 0 {
		select {
		case <-ctx.Done():
			return model.PriceSeries{}, ctx.Err()
		case <-time.After(m.Delay):
		}
	}
	if err, ok := m.Fail[ticker]; ok {
		return model.PriceSeries{}, err
	}
	if bars, ok := m.Bars[ticker]; ok {
		series := model.NewPriceSeries(ticker, bars)
		if series.Empty() {
			return series, fmt.Errorf("mock %s: %w", ticker, model.ErrDataUnavailable)
		}
		return series, nil
	}
	return model.NewPriceSeries(ticker, generateMockBars(ticker, rng)), nil
}

// generateMockBars walks a seeded price path over the weekdays of rng.
func generateMockBars(ticker string, rng model.DateRange) []model.PriceBar {
	h := fnv.New64a()
	h.Write([]byte(ticker))
	seed := h.Sum64()

	price := 50 + float64(seed%4000)
	drift := (float64((seed>>16)%200) - 100) / 100000 // ±0.1% per day
	var bars []model.PriceBar
	i := 0
	for d := rng.Start; !d.After(rng.End); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		wave := 0.01 * math.Sin(float64(i)/5+float64(seed%7))
		open := price
		price = math.Max(1, price*(1+drift+wave/4))
		high := math.Max(open, price) * 1.008
		low := math.Min(open, price) * 0.992
		bars = append(bars, model.PriceBar{Date: d, Open: open, High: high, Low: low, Close: price, Volume: 1e5})
		i++
	}
	return bars
}
