package calculator

import (
	"fmt"

	"HiTrade/internal/model"
)

const (
	FastSpan  = 9
	SlowSpan  = 21
	ATRWindow = 14

	// MinBars is the shortest history for which ATR is defined on the last bar.
	MinBars = ATRWindow + 1
)

// Compute derives EMA(9), EMA(21), true range and ATR(14) from a price series.
// The input is not modified.
func Compute(series model.PriceSeries) (*model.IndicatorSeries, error) {
	if series.Empty() {
		return nil, fmt.Errorf("compute %s: %w", series.Ticker, model.ErrDataUnavailable)
	}
	closes := series.Closes()
	tr := TrueRange(series.Bars)

	bars := make([]model.PriceBar, len(series.Bars))
	copy(bars, series.Bars)

	return &model.IndicatorSeries{
		Ticker:    series.Ticker,
		Bars:      bars,
		EMAFast:   EMA(closes, FastSpan),
		EMASlow:   EMA(closes, SlowSpan),
		TrueRange: tr,
		ATR:       ATR(tr, ATRWindow),
	}, nil
}
