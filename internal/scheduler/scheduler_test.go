package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"HiTrade/internal/collector"
	"HiTrade/internal/model"
	"HiTrade/internal/scanner"
	"HiTrade/internal/universe"
)

type recordingSender struct {
	mu   sync.Mutex
	msgs []string
	err  error
}

func (r *recordingSender) SendWithRetry(_ context.Context, text string, _ int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, text)
	return r.err
}

func newTestScheduler(t *testing.T, fetcher collector.Fetcher) (*Scheduler, *recordingSender) {
	t.Helper()
	sender := &recordingSender{}
	sc := scanner.New(fetcher, scanner.Options{Workers: 4, FetchTimeout: time.Second})
	s := NewScheduler(context.Background(), sc, sender, universe.DefaultTickers, model.ScanRequest{Capital: 25000, RiskPct: 2}, 180)
	s.now = func() time.Time { return time.Date(2025, 6, 30, 16, 0, 0, 0, time.UTC) }
	return s, sender
}

func TestRegister(t *testing.T) {
	s, _ := newTestScheduler(t, &collector.MockFetcher{})
	if err := s.Register("0 45 15 * * 1-5"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Register("not a cron"); err == nil {
		t.Error("expected error for invalid cron expression")
	}
	if len(s.Cron.Entries()) != 1 {
		t.Errorf("expected 1 entry, got %d", len(s.Cron.Entries()))
	}
}

func TestRunScanNow_SendsDigest(t *testing.T) {
	m := &collector.MockFetcher{}
	s, sender := newTestScheduler(t, m)
	s.RunScanNow()

	if len(sender.msgs) != 1 || !strings.Contains(sender.msgs[0], "HiTrade Scan") {
		t.Fatalf("expected one scan digest, got %v", sender.msgs)
	}
	if m.TotalCalls() != 15 {
		t.Errorf("bluechip segment should scan 15 tickers, fetched %d", m.TotalCalls())
	}
}

func TestRunScan_UnknownSegment(t *testing.T) {
	s, _ := newTestScheduler(t, &collector.MockFetcher{})
	if _, err := s.RunScan(context.Background(), "Penny Stock"); !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestRunScan_RefusesOverlap(t *testing.T) {
	s, _ := newTestScheduler(t, &collector.MockFetcher{})
	s.running.Store(true)
	if _, err := s.RunScan(context.Background(), universe.SegmentAll); !errors.Is(err, errScanRunning) {
		t.Errorf("expected errScanRunning, got %v", err)
	}
}

func TestHandleCommand(t *testing.T) {
	m := &collector.MockFetcher{Bars: map[string][]model.PriceBar{"NEWLIST.NS": nil}}
	s, _ := newTestScheduler(t, m)
	ctx := context.Background()

	tests := []struct {
		command string
		want    string
	}{
		{"/help", "Available commands"},
		{"hello", "Available commands"},
		{"/academy", "HiTrade Academy"},
		{"/analyze", "Usage: /analyze"},
		{"/analyze tcs", "<b>TCS</b>"},
		{"/analyze@HiTradeBot INFY", "<b>INFY</b>"},
		{"/analyze newlist", "data unavailable"},
		{"/scan midcap", "| midcap |"},
		{"/scan smallcap", "scan failed"},
	}
	for _, tt := range tests {
		got := s.HandleCommand(ctx, tt.command)
		if !strings.Contains(got, tt.want) {
			t.Errorf("%q: expected reply containing %q, got:\n%s", tt.command, tt.want, got)
		}
	}
	if m.Calls("TCS.NS") != 1 {
		t.Errorf("expected /analyze tcs to fetch TCS.NS once, got %d", m.Calls("TCS.NS"))
	}
}

func TestScheduledScan_ReportsFailure(t *testing.T) {
	s, sender := newTestScheduler(t, &collector.MockFetcher{})
	s.Segment = "bogus"
	s.RunScanNow()
	if len(sender.msgs) != 1 || !strings.Contains(sender.msgs[0], "scheduled scan failed") {
		t.Errorf("expected failure notice, got %v", sender.msgs)
	}
}
