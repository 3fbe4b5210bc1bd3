// Package scanner runs the fetch → indicators → sizing pipeline over a ticker list.
package scanner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"HiTrade/internal/calculator"
	"HiTrade/internal/collector"
	"HiTrade/internal/logger"
	"HiTrade/internal/model"
	"HiTrade/internal/strategy"
)

const (
	outcomeQualified = "qualified"
	outcomeRejected  = "rejected"
)

// Observer receives scan lifecycle events. metrics.Metrics implements it.
type Observer interface {
	ScanStarted()
	ScanFinished(d time.Duration, qualifying int)
	TickerDone(outcome string, d time.Duration)
}

type noopObserver struct{}

func (noopObserver) ScanStarted()                     {}
func (noopObserver) ScanFinished(time.Duration, int)  {}
func (noopObserver) TickerDone(string, time.Duration) {}

// Progress is reported once per finished ticker.
type Progress struct {
	Done      int    `json:"done"`
	Total     int    `json:"total"`
	Ticker    string `json:"ticker"`
	Qualified bool   `json:"qualified"`
	Reason    string `json:"reason,omitempty"` // set when the ticker was skipped
}

// ProgressFunc is called serially, never concurrently, in completion order.
type ProgressFunc func(Progress)

// Options tunes a Scanner.
type Options struct {
	Workers      int
	FetchTimeout time.Duration
	StopMultiple float64
	Observer     Observer
}

// Scanner evaluates tickers concurrently on a bounded worker pool.
type Scanner struct {
	fetcher      collector.Fetcher
	evaluator    strategy.Evaluator
	workers      int
	fetchTimeout time.Duration
	observer     Observer
}

// New creates a Scanner. The fetcher is usually a cache.SeriesCache.
func New(fetcher collector.Fetcher, opts Options) *Scanner {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 15 * time.Second
	}
	var obs Observer = noopObserver{}
	if opts.Observer != nil {
		obs = opts.Observer
	}
	return &Scanner{
		fetcher:      fetcher,
		evaluator:    strategy.NewEvaluator(opts.StopMultiple),
		workers:      opts.Workers,
		fetchTimeout: opts.FetchTimeout,
		observer:     obs,
	}
}

type outcome struct {
	rec model.TradeRecommendation
	err error
}

// Scan evaluates every ticker and returns the qualifying ones in input order.
// A failing ticker is recorded in Skipped and never aborts the scan; only invalid
// input or cancellation of ctx make Scan return an error.
func (s *Scanner) Scan(ctx context.Context, tickers []string, req model.ScanRequest, rng model.DateRange, onProgress ProgressFunc) (*model.ScanReport, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	report := &model.ScanReport{
		ID:        uuid.NewString(),
		Request:   req,
		Range:     rng,
		Total:     len(tickers),
		StartedAt: time.Now(),
	}
	s.observer.ScanStarted()
	logger.Info("scan started",
		zap.String("scan_id", report.ID),
		zap.Int("tickers", len(tickers)),
		zap.Float64("capital", req.Capital),
		zap.Float64("risk_pct", req.RiskPct),
		zap.String("range", rng.Key()))

	outcomes := make([]outcome, len(tickers))
	var (
		progressMu sync.Mutex
		done       int
	)

	g := new(errgroup.Group)
	g.SetLimit(s.workers)
	for i, ticker := range tickers {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			o := s.scanOne(ctx, ticker, req, rng)
			outcomes[i] = o

			progressMu.Lock()
			done++
			if onProgress != nil {
				p := Progress{Done: done, Total: len(tickers), Ticker: ticker, Qualified: o.err == nil && o.rec.Qualifies}
				if o.err != nil {
					p.Reason = model.SkipReason(o.err)
				}
				onProgress(p)
			}
			progressMu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		logger.Warn("scan cancelled", zap.String("scan_id", report.ID), zap.Int("done", done), zap.Int("total", len(tickers)))
		return nil, fmt.Errorf("scan %s: %w", report.ID, err)
	}

	report.Processed = done
	report.Qualifying = make([]model.TradeRecommendation, 0)
	for i, o := range outcomes {
		switch {
		case o.err != nil:
			report.Skipped = append(report.Skipped, model.Skip{
				Ticker: tickers[i],
				Reason: model.SkipReason(o.err),
				Detail: o.err.Error(),
			})
		case o.rec.Qualifies:
			report.Qualifying = append(report.Qualifying, o.rec)
		}
	}
	report.Duration = time.Since(report.StartedAt)
	s.observer.ScanFinished(report.Duration, len(report.Qualifying))

	logger.Info("scan finished",
		zap.String("scan_id", report.ID),
		zap.Int("qualifying", len(report.Qualifying)),
		zap.Int("skipped", len(report.Skipped)),
		zap.Duration("took", report.Duration))
	return report, nil
}

func (s *Scanner) scanOne(ctx context.Context, ticker string, req model.ScanRequest, rng model.DateRange) outcome {
	start := time.Now()
	rec, _, err := s.evaluateTicker(ctx, ticker, req, rng)

	label := outcomeRejected
	switch {
	case err != nil:
		label = model.SkipReason(err)
		if ctx.Err() == nil {
			logger.Warn("ticker skipped", zap.String("ticker", ticker), zap.String("reason", label), zap.Error(err))
		}
	case rec.Qualifies:
		label = outcomeQualified
	}
	s.observer.TickerDone(label, time.Since(start))
	return outcome{rec: rec, err: err}
}

// evaluateTicker fetches under a per-ticker timeout, then computes and evaluates.
func (s *Scanner) evaluateTicker(ctx context.Context, ticker string, req model.ScanRequest, rng model.DateRange) (model.TradeRecommendation, *model.IndicatorSeries, error) {
	fctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	series, err := s.fetcher.FetchHistory(fctx, ticker, rng)
	if err != nil {
		return model.TradeRecommendation{}, nil, err
	}
	ind, err := calculator.Compute(series)
	if err != nil {
		return model.TradeRecommendation{}, nil, err
	}
	if series.Len() < calculator.MinBars {
		return model.TradeRecommendation{}, ind, fmt.Errorf("%s has %d bars, need %d: %w",
			ticker, series.Len(), calculator.MinBars, model.ErrInsufficientHistory)
	}
	rec, err := s.evaluator.Evaluate(ind.Latest(), req)
	if err != nil {
		return model.TradeRecommendation{}, ind, err
	}
	return rec, ind, nil
}

// Analyze evaluates a single ticker. Unlike Scan, every failure is returned to the caller.
func (s *Scanner) Analyze(ctx context.Context, ticker string, req model.ScanRequest, rng model.DateRange) (*model.Analysis, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	rec, ind, err := s.evaluateTicker(ctx, ticker, req, rng)
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", ticker, err)
	}
	return &model.Analysis{
		Recommendation: rec,
		Request:        req,
		Range:          rng,
		Series:         ind,
	}, nil
}
