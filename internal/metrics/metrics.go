// Package metrics exposes Prometheus instrumentation for scans, fetches and the series cache.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ScansTotal       prometheus.Counter
	ScanDuration     prometheus.Histogram
	TickersTotal     *prometheus.CounterVec // labels: outcome
	QualifyingLast   prometheus.Gauge
	TickerDuration   prometheus.Histogram
	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter
}

// NewMetrics registers and returns all collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ScansTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hitrade_scans_total",
			Help: "Universe scans started",
		}),
		ScanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hitrade_scan_duration_seconds",
			Help:    "Wall time of a universe scan",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		TickersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hitrade_scan_tickers_total",
			Help: "Tickers processed by outcome (qualified, rejected or a skip reason)",
		}, []string{"outcome"}),
		QualifyingLast: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hitrade_scan_qualifying_last",
			Help: "Qualifying tickers found by the most recent scan",
		}),
		TickerDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hitrade_ticker_duration_seconds",
			Help:    "Fetch + compute + evaluate latency per ticker",
			Buckets: prometheus.DefBuckets,
		}),
		CacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hitrade_series_cache_hits_total",
			Help: "Series cache hits",
		}),
		CacheMissesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hitrade_series_cache_misses_total",
			Help: "Series cache misses",
		}),
	}
	m.registry.MustRegister(
		m.ScansTotal, m.ScanDuration, m.TickersTotal, m.QualifyingLast,
		m.TickerDuration, m.CacheHitsTotal, m.CacheMissesTotal,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) CacheHit() {
	if m != nil {
		m.CacheHitsTotal.Inc()
	}
}

func (m *Metrics) CacheMiss() {
	if m != nil {
		m.CacheMissesTotal.Inc()
	}
}

func (m *Metrics) ScanStarted() {
	if m != nil {
		m.ScansTotal.Inc()
	}
}

func (m *Metrics) ScanFinished(d time.Duration, qualifying int) {
	if m != nil {
		m.ScanDuration.Observe(d.Seconds())
		m.QualifyingLast.Set(float64(qualifying))
	}
}

func (m *Metrics) TickerDone(outcome string, d time.Duration) {
	if m != nil {
		m.TickersTotal.WithLabelValues(outcome).Inc()
		m.TickerDuration.Observe(d.Seconds())
	}
}
