package calculator

import (
	"errors"
	"math"
	"testing"
	"time"

	"HiTrade/internal/model"
)

func makeBars(closes ...float64) []model.PriceBar {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]model.PriceBar, len(closes))
	for i, c := range closes {
		bars[i] = model.PriceBar{
			Date:  start.AddDate(0, 0, i),
			Open:  c,
			High:  c + 1,
			Low:   c - 1,
			Close: c,
		}
	}
	return bars
}

func constantSeries(n int, v float64) model.PriceSeries {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = v
	}
	return model.NewPriceSeries("CONST.NS", makeBars(closes...))
}

func TestEMA_ConstantSeries(t *testing.T) {
	ind, err := Compute(constantSeries(40, 250))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range ind.Bars {
		if ind.EMAFast[i] != 250 || ind.EMASlow[i] != 250 {
			t.Fatalf("bar %d: expected both EMAs = 250, got fast=%v slow=%v", i, ind.EMAFast[i], ind.EMASlow[i])
		}
	}
}

func TestEMA_Recurrence(t *testing.T) {
	got := EMA([]float64{10, 20, 30}, 3) // alpha = 0.5
	want := []float64{10, 15, 22.5}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("ema[%d]: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestEMA_SeededByFirstClose(t *testing.T) {
	got := EMA([]float64{42}, 21)
	if got[0] != 42 {
		t.Errorf("expected seed 42, got %v", got[0])
	}
}

func TestTrueRange(t *testing.T) {
	bars := []model.PriceBar{
		{Open: 10, High: 11, Low: 9, Close: 10},
		{Open: 14, High: 15, Low: 13, Close: 14}, // gap up: |15-10| = 5
		{Open: 8, High: 9, Low: 7, Close: 8},     // gap down: |7-14| = 7
		{Open: 8, High: 12, Low: 7, Close: 9},    // range: 12-7 = 5
	}
	tr := TrueRange(bars)
	if !math.IsNaN(tr[0]) {
		t.Errorf("expected NaN on first bar, got %v", tr[0])
	}
	want := []float64{5, 7, 5}
	for i, w := range want {
		if tr[i+1] != w {
			t.Errorf("tr[%d]: expected %v, got %v", i+1, w, tr[i+1])
		}
	}
}

func TestATR_Boundary(t *testing.T) {
	tests := []struct {
		bars        int
		firstDefine int // -1 means never
	}{
		{1, -1},
		{14, -1},
		{15, 14},
		{30, 14},
	}
	for _, tt := range tests {
		ind, err := Compute(constantSeries(tt.bars, 100))
		if err != nil {
			t.Fatalf("%d bars: unexpected error: %v", tt.bars, err)
		}
		for i, v := range ind.ATR {
			defined := !math.IsNaN(v)
			shouldBe := tt.firstDefine >= 0 && i >= tt.firstDefine
			if defined != shouldBe {
				t.Errorf("%d bars, index %d: defined=%v, expected %v", tt.bars, i, defined, shouldBe)
			}
		}
		snap := ind.Latest()
		if snap.ATRReady != (tt.firstDefine >= 0) {
			t.Errorf("%d bars: ATRReady=%v", tt.bars, snap.ATRReady)
		}
	}
}

func TestATR_RollingMean(t *testing.T) {
	// Closes alternate so every true range is known: high-low = 2, gaps = 1 or 3.
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100
		if i%2 == 1 {
			closes[i] = 102
		}
	}
	bars := makeBars(closes...)
	tr := TrueRange(bars)
	atr := ATR(tr, ATRWindow)
	for i := ATRWindow; i < len(bars); i++ {
		sum := 0.0
		for j := i - ATRWindow + 1; j <= i; j++ {
			sum += tr[j]
		}
		want := sum / ATRWindow
		if math.Abs(atr[i]-want) > 1e-9 {
			t.Errorf("atr[%d]: expected %.6f, got %.6f", i, want, atr[i])
		}
	}
}

func TestCompute_Empty(t *testing.T) {
	_, err := Compute(model.PriceSeries{Ticker: "NONE.NS"})
	if !errors.Is(err, model.ErrDataUnavailable) {
		t.Fatalf("expected ErrDataUnavailable, got %v", err)
	}
}

func TestCompute_DoesNotMutateInput(t *testing.T) {
	series := constantSeries(20, 50)
	before := series.Bars[5]
	ind, _ := Compute(series)
	ind.Bars[5].Close = 999
	if series.Bars[5] != before {
		t.Error("compute output aliases the input series")
	}
}
