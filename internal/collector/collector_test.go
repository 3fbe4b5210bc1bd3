package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"HiTrade/internal/model"
)

var testRange = model.DateRange{
	Start: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
}

const chartOK = `{"chart":{"result":[{"timestamp":[1736150400,1736236800,1736323200],
"indicators":{"quote":[{"open":[100,null,102],"high":[105,null,106],"low":[99,null,101],
"close":[104,null,105],"volume":[1000,null,1200]}]}}],"error":null}}`

func newYahoo(t *testing.T, handler http.HandlerFunc) *YahooFetcher {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	f := NewYahooFetcher("", 1)
	f.BaseURL = srv.URL
	return f
}

func TestYahooFetcher_ParsesAndSkipsNullBars(t *testing.T) {
	var gotPath string
	f := newYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path + "?" + r.URL.RawQuery
		fmt.Fprint(w, chartOK)
	})
	series, err := f.FetchHistory(context.Background(), "INFY.NS", testRange)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if series.Len() != 2 {
		t.Fatalf("expected 2 bars after dropping null bar, got %d", series.Len())
	}
	if series.Last().Close != 105 {
		t.Errorf("expected last close 105, got %v", series.Last().Close)
	}
	if !strings.Contains(gotPath, "/v8/finance/chart/INFY.NS") || !strings.Contains(gotPath, "interval=1d") {
		t.Errorf("unexpected request %q", gotPath)
	}
	if !strings.Contains(gotPath, fmt.Sprintf("period1=%d", testRange.Start.Unix())) {
		t.Errorf("expected period1 in %q", gotPath)
	}
}

func TestYahooFetcher_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"not found", http.StatusNotFound, `{}`, model.ErrDataUnavailable},
		{"api error", http.StatusOK, `{"chart":{"result":null,"error":{"code":"Not Found","description":"delisted"}}}`, model.ErrDataUnavailable},
		{"empty result", http.StatusOK, `{"chart":{"result":[],"error":null}}`, model.ErrDataUnavailable},
		{"bad json", http.StatusOK, `<html>`, model.ErrMalformedData},
	}
	for _, tt := range tests {
		f := newYahoo(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			fmt.Fprint(w, tt.body)
		})
		_, err := f.FetchHistory(context.Background(), "BAD.NS", testRange)
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.wantErr, err)
		}
	}
}

func TestYahooFetcher_RetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	f := newYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, chartOK)
	})
	if _, err := f.FetchHistory(context.Background(), "TCS.NS", testRange); err != nil {
		t.Fatalf("expected success after retry, got %v", err)
	}
	if hits.Load() != 2 {
		t.Errorf("expected 2 requests, got %d", hits.Load())
	}
}

func TestYahooFetcher_ContextCancelled(t *testing.T) {
	f := newYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := f.FetchHistory(ctx, "SLOW.NS", testRange)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestVsTraderFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Query().Get("from") != "2025-01-01" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		// Out of order on purpose; the series must come back ascending.
		fmt.Fprint(w, `[{"timestamp":1736236800,"open":10,"high":11,"low":9,"close":10.5},
			{"timestamp":1736150400,"open":9,"high":10,"low":8,"close":9.5}]`)
	}))
	defer srv.Close()

	f := NewVsTraderFetcher(srv.URL, "key", "", 0)
	series, err := f.FetchHistory(context.Background(), "SBIN.NS", testRange)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if series.Len() != 2 || series.Bars[0].Close != 9.5 {
		t.Errorf("expected ascending bars, got %+v", series.Bars)
	}
}

func TestMockFetcher_Deterministic(t *testing.T) {
	m := &MockFetcher{}
	a, err := m.FetchHistory(context.Background(), "RELIANCE.NS", testRange)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _ := m.FetchHistory(context.Background(), "RELIANCE.NS", testRange)
	if a.Len() == 0 || a.Len() != b.Len() || a.Last().Close != b.Last().Close {
		t.Error("mock history should be reproducible per ticker")
	}
	for _, bar := range a.Bars {
		if !bar.Valid() {
			t.Fatalf("mock produced invalid bar %+v", bar)
		}
	}
	if m.Calls("RELIANCE.NS") != 2 || m.TotalCalls() != 2 {
		t.Errorf("expected 2 calls, got %d/%d", m.Calls("RELIANCE.NS"), m.TotalCalls())
	}
}

func TestMockFetcher_Failures(t *testing.T) {
	boom := errors.New("boom")
	m := &MockFetcher{
		Fail: map[string]error{"X.NS": boom},
		Bars: map[string][]model.PriceBar{"EMPTY.NS": nil},
	}
	if _, err := m.FetchHistory(context.Background(), "X.NS", testRange); !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
	if _, err := m.FetchHistory(context.Background(), "EMPTY.NS", testRange); !errors.Is(err, model.ErrDataUnavailable) {
		t.Errorf("expected ErrDataUnavailable, got %v", err)
	}
}
