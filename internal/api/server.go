// Package api serves the dashboard's JSON endpoints and the WebSocket scan stream.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"HiTrade/internal/academy"
	"HiTrade/internal/config"
	"HiTrade/internal/logger"
	"HiTrade/internal/model"
	"HiTrade/internal/scanner"
	"HiTrade/internal/universe"
)

// Server holds the dependencies of the HTTP handlers.
type Server struct {
	scanner  *scanner.Scanner
	universe universe.Universe
	defaults model.ScanRequest
	lookback int
	metrics  http.Handler
	started  time.Time
	now      func() time.Time
}

// NewServer creates a Server. metricsHandler may be nil to disable /metrics.
func NewServer(sc *scanner.Scanner, u universe.Universe, defaults model.ScanRequest, lookbackDays int, metricsHandler http.Handler) *Server {
	return &Server{
		scanner:  sc,
		universe: u,
		defaults: defaults,
		lookback: lookbackDays,
		metrics:  metricsHandler,
		started:  time.Now(),
		now:      time.Now,
	}
}

// Routes registers all HTTP routes on a new mux.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	mux.HandleFunc("GET /api/v1/universe", s.handleUniverse)
	mux.HandleFunc("GET /api/v1/scan", s.handleScan)
	mux.HandleFunc("GET /api/v1/analyze", s.handleAnalyze)
	mux.HandleFunc("GET /api/v1/academy", s.handleAcademy)
	mux.HandleFunc("GET /ws/scan", s.handleScanWS)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}
	return withCORS(mux)
}

// withCORS sets CORS headers and answers preflight requests.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"tickers":  len(s.universe.Tickers),
		"fallback": s.universe.Fallback,
		"uptime":   time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleUniverse(w http.ResponseWriter, r *http.Request) {
	segment := r.URL.Query().Get("segment")
	if segment == "" {
		segment = universe.SegmentAll
	}
	tickers, err := universe.Segment(s.universe.Tickers, segment)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"segment":  segment,
		"segments": universe.Segments,
		"tickers":  tickers,
		"source":   s.universe.Source,
		"fallback": s.universe.Fallback,
	})
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	params, err := s.parseScanParams(r)
	if err != nil {
		writeError(w, err)
		return
	}
	report, err := s.scanner.Scan(r.Context(), params.tickers, params.req, params.rng, nil)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scanResponse{Segment: params.segment, ScanReport: report})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ticker := strings.TrimSpace(q.Get("ticker"))
	if ticker == "" {
		writeError(w, fmt.Errorf("%w: ticker is required", model.ErrInvalidInput))
		return
	}
	req, rng, err := s.parseRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	a, err := s.scanner.Analyze(r.Context(), strings.ToUpper(ticker), req, rng)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newAnalysisResponse(a))
}

func (s *Server) handleAcademy(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, academy.Lessons())
}

type scanParams struct {
	segment string
	tickers []string
	req     model.ScanRequest
	rng     model.DateRange
}

func (s *Server) parseScanParams(r *http.Request) (scanParams, error) {
	segment := r.URL.Query().Get("segment")
	if segment == "" {
		segment = universe.SegmentBluechip
	}
	tickers, err := universe.Segment(s.universe.Tickers, segment)
	if err != nil {
		return scanParams{}, err
	}
	req, rng, err := s.parseRequest(r)
	if err != nil {
		return scanParams{}, err
	}
	return scanParams{segment: segment, tickers: tickers, req: req, rng: rng}, nil
}

// parseRequest builds a ScanRequest and date range from query parameters,
// falling back to the configured defaults.
func (s *Server) parseRequest(r *http.Request) (model.ScanRequest, model.DateRange, error) {
	q := r.URL.Query()
	req := s.defaults
	for name, dst := range map[string]*float64{"capital": &req.Capital, "risk_pct": &req.RiskPct, "max_price": &req.MaxPrice} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return model.ScanRequest{}, model.DateRange{}, fmt.Errorf("%w: %s=%q is not a number", model.ErrInvalidInput, name, v)
		}
		*dst = f
	}
	if err := req.Validate(); err != nil {
		return model.ScanRequest{}, model.DateRange{}, err
	}

	days := s.lookback
	if v := q.Get("lookback_days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < config.MinLookbackDays || n > config.MaxLookbackDays {
			return model.ScanRequest{}, model.DateRange{}, fmt.Errorf("%w: lookback_days must be an integer in [%d, %d]",
				model.ErrInvalidInput, config.MinLookbackDays, config.MaxLookbackDays)
		}
		days = n
	}
	return req, model.Lookback(s.now(), days), nil
}

// statusFor maps an engine error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrInsufficientHistory):
		return http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrDataUnavailable):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= 500 {
		logger.Warn("request failed", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, map[string]string{
		"error":  err.Error(),
		"reason": model.SkipReason(err),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("encode response", zap.Error(err))
	}
}

type scanResponse struct {
	Segment string `json:"segment"`
	*model.ScanReport
}

// chartPoint is one bar with its indicators; undefined values encode as null.
type chartPoint struct {
	Date    string   `json:"date"`
	Open    float64  `json:"open"`
	High    float64  `json:"high"`
	Low     float64  `json:"low"`
	Close   float64  `json:"close"`
	Volume  float64  `json:"volume"`
	EMAFast *float64 `json:"ema_fast"`
	EMASlow *float64 `json:"ema_slow"`
	ATR     *float64 `json:"atr"`
}

type analysisResponse struct {
	*model.Analysis
	Explanation string       `json:"explanation"`
	Chart       []chartPoint `json:"chart"`
}

func newAnalysisResponse(a *model.Analysis) analysisResponse {
	resp := analysisResponse{
		Analysis:    a,
		Explanation: academy.Explain(a.Recommendation, a.Request),
	}
	if ind := a.Series; ind != nil {
		resp.Chart = make([]chartPoint, len(ind.Bars))
		for i, b := range ind.Bars {
			resp.Chart[i] = chartPoint{
				Date:    b.Date.Format("2006-01-02"),
				Open:    b.Open,
				High:    b.High,
				Low:     b.Low,
				Close:   b.Close,
				Volume:  b.Volume,
				EMAFast: nullable(ind.EMAFast[i]),
				EMASlow: nullable(ind.EMASlow[i]),
				ATR:     nullable(ind.ATR[i]),
			}
		}
	}
	return resp
}

func nullable(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
