package model

import (
	"fmt"
	"math"
	"time"
)

// ScanRequest carries the sizing parameters of one scan or analysis.
// It is built once per invocation and passed by value.
type ScanRequest struct {
	Capital  float64 `json:"capital"`
	RiskPct  float64 `json:"risk_pct"`
	MaxPrice float64 `json:"max_price,omitempty"` // 0 means Capital
}

// Validate rejects non-positive capital or risk, risk above 100% and non-finite values.
func (r ScanRequest) Validate() error {
	for name, v := range map[string]float64{"capital": r.Capital, "risk_pct": r.RiskPct, "max_price": r.MaxPrice} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s must be finite", ErrInvalidInput, name)
		}
	}
	if r.Capital <= 0 {
		return fmt.Errorf("%w: capital must be positive, got %v", ErrInvalidInput, r.Capital)
	}
	if r.RiskPct <= 0 || r.RiskPct > 100 {
		return fmt.Errorf("%w: risk_pct must be in (0, 100], got %v", ErrInvalidInput, r.RiskPct)
	}
	if r.MaxPrice < 0 {
		return fmt.Errorf("%w: max_price must not be negative, got %v", ErrInvalidInput, r.MaxPrice)
	}
	return nil
}

// PriceCeiling returns MaxPrice, defaulting to Capital.
func (r ScanRequest) PriceCeiling() float64 {
	if r.MaxPrice > 0 {
		return r.MaxPrice
	}
	return r.Capital
}

// TradeRecommendation is the sizing output for one ticker.
type TradeRecommendation struct {
	Ticker       string  `json:"ticker"`
	Price        float64 `json:"price"`
	Qualifies    bool    `json:"qualifies"`
	StopLoss     float64 `json:"stop_loss"`
	RiskPerShare float64 `json:"risk_per_share"`
	SafeQuantity int64   `json:"safe_quantity"`
	RiskAmount   float64 `json:"risk_amount"`
	// Sized is false when risk per share is not positive; SafeQuantity is then 0 by definition.
	Sized   bool    `json:"sized"`
	EMAFast float64 `json:"ema_fast"`
	EMASlow float64 `json:"ema_slow"`
	ATR     float64 `json:"atr"`
}

// Skip records a ticker that produced no recommendation.
type Skip struct {
	Ticker string `json:"ticker"`
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

// ScanReport is the result of scanning a ticker list.
type ScanReport struct {
	ID         string                `json:"id"`
	Request    ScanRequest           `json:"request"`
	Range      DateRange             `json:"range"`
	Total      int                   `json:"total"`
	Processed  int                   `json:"processed"`
	Qualifying []TradeRecommendation `json:"qualifying"`
	Skipped    []Skip                `json:"skipped"`
	StartedAt  time.Time             `json:"started_at"`
	Duration   time.Duration         `json:"duration"`
}

// Analysis is the single-ticker view: recommendation plus chart series.
type Analysis struct {
	Recommendation TradeRecommendation `json:"recommendation"`
	Request        ScanRequest         `json:"request"`
	Range          DateRange           `json:"range"`
	Series         *IndicatorSeries    `json:"-"`
}
