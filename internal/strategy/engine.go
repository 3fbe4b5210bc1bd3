package strategy

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"HiTrade/internal/model"
)

var maxQuantity = decimal.NewFromInt(math.MaxInt64)

// DefaultStopMultiple places the stop two ATR units below the current price.
const DefaultStopMultiple = 2.0

// Disclaimer is shown next to every recommendation.
const Disclaimer = "Signal = 9 EMA above 21 EMA and price within budget. " +
	"This is a trend + affordability filter, not a complete trading strategy. " +
	"It ignores fundamentals, liquidity, news and exit timing."

// Evaluator turns an indicator snapshot into a sized trade recommendation.
type Evaluator struct {
	StopMultiple float64
}

// NewEvaluator creates an Evaluator; a non-positive multiple falls back to DefaultStopMultiple.
func NewEvaluator(stopMultiple float64) Evaluator {
	if stopMultiple <= 0 || math.IsNaN(stopMultiple) || math.IsInf(stopMultiple, 0) {
		stopMultiple = DefaultStopMultiple
	}
	return Evaluator{StopMultiple: stopMultiple}
}

// Evaluate applies the default 2×ATR evaluator.
func Evaluate(snap model.IndicatorSnapshot, req model.ScanRequest) (model.TradeRecommendation, error) {
	return NewEvaluator(DefaultStopMultiple).Evaluate(snap, req)
}

// Evaluate decides whether the ticker qualifies and how many shares fit the risk budget.
// It refuses to size when ATR is undefined instead of treating it as zero.
func (e Evaluator) Evaluate(snap model.IndicatorSnapshot, req model.ScanRequest) (model.TradeRecommendation, error) {
	if err := req.Validate(); err != nil {
		return model.TradeRecommendation{}, err
	}
	if !snap.ATRReady || !finite(snap.ATR, snap.Close, snap.EMAFast, snap.EMASlow) {
		return model.TradeRecommendation{}, fmt.Errorf("evaluate %s: %w", snap.Ticker, model.ErrInsufficientHistory)
	}

	multiple := e.StopMultiple
	if multiple <= 0 {
		multiple = DefaultStopMultiple
	}

	price := decimal.NewFromFloat(snap.Close)
	stop := price.Sub(decimal.NewFromFloat(snap.ATR).Mul(decimal.NewFromFloat(multiple)))
	riskPerShare := price.Sub(stop)
	riskAmount := decimal.NewFromFloat(req.Capital).
		Mul(decimal.NewFromFloat(req.RiskPct)).
		Div(decimal.NewFromInt(100))

	var qty int64
	sized := riskPerShare.IsPositive()
	if sized {
		shares := riskAmount.Div(riskPerShare).Floor()
		if shares.GreaterThan(maxQuantity) {
			return model.TradeRecommendation{}, fmt.Errorf("evaluate %s: safe quantity %s exceeds int64: %w",
				snap.Ticker, shares.String(), model.ErrInvalidInput)
		}
		qty = max(shares.IntPart(), 0)
	}

	return model.TradeRecommendation{
		Ticker:       snap.Ticker,
		Price:        snap.Close,
		Qualifies:    snap.EMAFast > snap.EMASlow && snap.Close <= req.PriceCeiling(),
		StopLoss:     stop.InexactFloat64(),
		RiskPerShare: riskPerShare.InexactFloat64(),
		SafeQuantity: qty,
		RiskAmount:   riskAmount.InexactFloat64(),
		Sized:        sized,
		EMAFast:      snap.EMAFast,
		EMASlow:      snap.EMASlow,
		ATR:          snap.ATR,
	}, nil
}

func finite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
