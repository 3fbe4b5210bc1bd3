package model

import (
	"math"
	"time"
)

// IndicatorSeries holds per-bar indicator values aligned with Bars.
// Undefined values (no prior close, ATR warm-up) are NaN.
type IndicatorSeries struct {
	Ticker    string
	Bars      []PriceBar
	EMAFast   []float64
	EMASlow   []float64
	TrueRange []float64
	ATR       []float64
}

// IndicatorSnapshot is the latest row of an IndicatorSeries.
type IndicatorSnapshot struct {
	Ticker   string
	Date     time.Time
	Close    float64
	EMAFast  float64
	EMASlow  float64
	ATR      float64
	ATRReady bool
}

// Latest returns the snapshot of the last bar. ATRReady is false while ATR is still warming up.
func (s *IndicatorSeries) Latest() IndicatorSnapshot {
	n := len(s.Bars)
	if n == 0 {
		return IndicatorSnapshot{Ticker: s.Ticker, ATR: math.NaN(), EMAFast: math.NaN(), EMASlow: math.NaN()}
	}
	last := n - 1
	atr := s.ATR[last]
	return IndicatorSnapshot{
		Ticker:   s.Ticker,
		Date:     s.Bars[last].Date,
		Close:    s.Bars[last].Close,
		EMAFast:  s.EMAFast[last],
		EMASlow:  s.EMASlow[last],
		ATR:      atr,
		ATRReady: !math.IsNaN(atr),
	}
}
