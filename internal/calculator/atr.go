package calculator

import (
	"math"

	"github.com/markcheno/go-talib"

	"HiTrade/internal/model"
)

// TrueRange returns max(high-low, |high-prevClose|, |low-prevClose|) per bar.
// Index 0 has no previous close and is NaN.
func TrueRange(bars []model.PriceBar) []float64 {
	tr := make([]float64, len(bars))
	if len(bars) == 0 {
		return tr
	}
	tr[0] = math.NaN()
	for i := 1; i < len(bars); i++ {
		prev := bars[i-1].Close
		h, l := bars[i].High, bars[i].Low
		tr[i] = math.Max(h-l, math.Max(math.Abs(h-prev), math.Abs(l-prev)))
	}
	return tr
}

// ATR returns the simple rolling mean of true range over `window` values.
// tr[0] must be the undefined first bar, so the first defined ATR is at index `window`.
func ATR(tr []float64, window int) []float64 {
	out := make([]float64, len(tr))
	for i := range out {
		out[i] = math.NaN()
	}
	if window <= 0 || len(tr)-1 < window {
		return out
	}
	sma := talib.Sma(tr[1:], window)
	for j := window - 1; j < len(sma); j++ {
		out[j+1] = sma[j]
	}
	return out
}
