package model

import (
	"fmt"
	"math"
	"sort"
	"time"
)

const dateLayout = "2006-01-02"

// PriceBar represents a single daily candlestick bar.
type PriceBar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Valid reports whether all prices are positive, finite and inside the high/low envelope.
func (b PriceBar) Valid() bool {
	for _, p := range []float64{b.Open, b.High, b.Low, b.Close} {
		if p <= 0 || math.IsNaN(p) || math.IsInf(p, 0) {
			return false
		}
	}
	if b.High < math.Max(math.Max(b.Open, b.Close), b.Low) {
		return false
	}
	if b.Low > math.Min(math.Min(b.Open, b.Close), b.High) {
		return false
	}
	return true
}

// PriceSeries holds the daily history of one ticker, ascending by date.
// Bars are never mutated after construction; derived values live in IndicatorSeries.
type PriceSeries struct {
	Ticker    string     `json:"ticker"`
	Bars      []PriceBar `json:"bars"`
	FetchedAt time.Time  `json:"fetched_at"`
}

// NewPriceSeries builds a series from raw bars: invalid bars are dropped, bars are
// sorted by date and duplicate dates keep the last occurrence.
func NewPriceSeries(ticker string, raw []PriceBar) PriceSeries {
	valid := make([]PriceBar, 0, len(raw))
	for _, b := range raw {
		if b.Valid() {
			valid = append(valid, b)
		}
	}
	sort.SliceStable(valid, func(i, j int) bool { return valid[i].Date.Before(valid[j].Date) })

	bars := make([]PriceBar, 0, len(valid))
	for _, b := range valid {
		n := len(bars)
		if n > 0 && sameDay(bars[n-1].Date, b.Date) {
			bars[n-1] = b
			continue
		}
		bars = append(bars, b)
	}
	return PriceSeries{Ticker: ticker, Bars: bars, FetchedAt: time.Now()}
}

// Len returns the number of bars.
func (s PriceSeries) Len() int { return len(s.Bars) }

// Empty reports whether the series has no bars.
func (s PriceSeries) Empty() bool { return len(s.Bars) == 0 }

// Closes returns the close prices in series order.
func (s PriceSeries) Closes() []float64 {
	closes := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		closes[i] = b.Close
	}
	return closes
}

// Last returns the most recent bar. The series must not be empty.
func (s PriceSeries) Last() PriceBar { return s.Bars[len(s.Bars)-1] }

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// DateRange is an inclusive range of calendar days.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Lookback returns the range covering `days` calendar days ending on `end`.
func Lookback(end time.Time, days int) DateRange {
	y, m, d := end.Date()
	endDay := time.Date(y, m, d, 0, 0, 0, 0, end.Location())
	return DateRange{Start: endDay.AddDate(0, 0, -days), End: endDay}
}

// Key renders the range as "YYYY-MM-DD..YYYY-MM-DD".
func (r DateRange) Key() string {
	return fmt.Sprintf("%s..%s", r.Start.Format(dateLayout), r.End.Format(dateLayout))
}

// Days returns the number of calendar days spanned.
func (r DateRange) Days() int {
	return int(r.End.Sub(r.Start).Hours() / 24)
}
