// Package academy holds the static trading lessons and the sizing explanation
// shown next to single-ticker analyses.
package academy

import (
	"fmt"
	"strings"

	"HiTrade/internal/model"
	"HiTrade/internal/strategy"
)

// Level grades a lesson.
type Level string

const (
	Beginner     Level = "BEGINNER"
	Intermediate Level = "INTERMEDIATE"
	Advanced     Level = "ADVANCED"
)

// Lesson is one academy module.
type Lesson struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Level   Level    `json:"level"`
	Summary string   `json:"summary"`
	Points  []string `json:"points"`
}

var lessons = []Lesson{
	{
		ID:      "basics",
		Title:   "Module 1: The Basics",
		Level:   Beginner,
		Summary: "How the stock market works, what shares are, and how a first trade is placed.",
		Points: []string{
			"A share is a slice of ownership in a listed company; its price is set by buyers and sellers on the exchange.",
			"NSE symbols carry the .NS suffix on most market data sources, e.g. RELIANCE.NS.",
			"A daily bar records the open, high, low and close price of one trading session.",
		},
	},
	{
		ID:      "risk",
		Title:   "Module 2: Risk Logic",
		Level:   Intermediate,
		Summary: `The math behind the "Safe Quantity" calculator and why 2% risk is the golden rule.`,
		Points: []string{
			"Risk amount = Capital × Risk% ÷ 100. With ₹25,000 and 2% you accept losing at most ₹500 on one trade.",
			"Stop loss = Price − 2 × ATR. The stop sits two typical daily moves below the entry.",
			"Risk per share = Price − Stop loss.",
			"Safe quantity = floor(Risk amount ÷ Risk per share). Even if price falls to the stop, the loss stays within the risk amount.",
			"A safe quantity of 0 means one share already risks more than the budget allows.",
		},
	},
	{
		ID:      "technicals",
		Title:   "Module 3: Technicals",
		Level:   Advanced,
		Summary: "Reading EMA crossovers and measuring volatility with ATR.",
		Points: []string{
			"EMA(9) and EMA(21) are exponential moving averages of the close; recent prices weigh more.",
			"When EMA(9) is above EMA(21) the short-term trend is up. That is the only trend test the scanner applies.",
			"True range is the largest of high − low, |high − previous close| and |low − previous close|.",
			"ATR(14) is the 14-day average of true range. It needs 15 bars of history before it is defined.",
		},
	},
	{
		ID:      "limits",
		Title:   "Module 4: What the Scanner Does Not Do",
		Level:   Beginner,
		Summary: strategy.Disclaimer,
		Points: []string{
			"A qualifying ticker is a candidate for research, not an instruction to buy.",
			"Nothing is ranked; results keep the order of the universe file.",
			"Orders are never placed and positions are never tracked.",
		},
	},
}

// Lessons returns every lesson in display order.
func Lessons() []Lesson {
	out := make([]Lesson, len(lessons))
	copy(out, lessons)
	return out
}

// Find looks a lesson up by id, ignoring case.
func Find(id string) (Lesson, bool) {
	for _, l := range lessons {
		if strings.EqualFold(l.ID, id) {
			return l, true
		}
	}
	return Lesson{}, false
}

// Explain answers "why only N shares?" for a recommendation, showing the formula
// with the actual numbers plugged in.
func Explain(rec model.TradeRecommendation, req model.ScanRequest) string {
	if !rec.Sized {
		return fmt.Sprintf("ATR is zero for %s, so no stop distance exists and no quantity can be sized.", rec.Ticker)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Even if %s drops to the stop loss of ₹%.2f (%.3g× ATR below the price), ",
		rec.Ticker, rec.StopLoss, rec.RiskPerShare/rec.ATR)
	fmt.Fprintf(&b, "the total loss stays within ₹%.2f (%.4g%% of ₹%.0f).\n", rec.RiskAmount, req.RiskPct, req.Capital)
	b.WriteString("Qty = (Capital × Risk%) ÷ (Entry − StopLoss)\n")
	fmt.Fprintf(&b, "Qty = %.0f ÷ %.2f ≈ %d", rec.RiskAmount, rec.RiskPerShare, rec.SafeQuantity)
	return b.String()
}
