package notifier

import (
	"fmt"
	"html"
	"sort"
	"strings"

	"HiTrade/internal/academy"
	"HiTrade/internal/model"
	"HiTrade/internal/strategy"
)

// displayTicker strips the exchange suffix for display.
func displayTicker(t string) string {
	if i := strings.LastIndexByte(t, '.'); i > 0 {
		return t[:i]
	}
	return t
}

// FormatScanReport formats a finished scan into a Telegram message.
func FormatScanReport(report *model.ScanReport, segment string) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("⚡ <b>HiTrade Scan</b> | %s | %s\n", html.EscapeString(segment), report.Range.End.Format("2006-01-02")))
	b.WriteString(fmt.Sprintf("Capital ₹%.0f | Risk %.4g%% (₹%.0f)\n\n",
		report.Request.Capital, report.Request.RiskPct, report.Request.Capital*report.Request.RiskPct/100))

	if len(report.Qualifying) == 0 {
		b.WriteString("No ticker passed the trend and budget filter.\n")
	} else {
		b.WriteString(fmt.Sprintf("🟢 <b>%d qualifying</b> of %d scanned:\n", len(report.Qualifying), report.Total))
		for _, r := range report.Qualifying {
			b.WriteString(fmt.Sprintf("• <b>%s</b> ₹%.1f | Qty %d | SL ₹%.1f\n",
				html.EscapeString(displayTicker(r.Ticker)), r.Price, r.SafeQuantity, r.StopLoss))
		}
	}

	if len(report.Skipped) > 0 {
		counts := map[string]int{}
		for _, s := range report.Skipped {
			counts[s.Reason]++
		}
		reasons := make([]string, 0, len(counts))
		for r, n := range counts {
			reasons = append(reasons, fmt.Sprintf("%s %d", r, n))
		}
		sort.Strings(reasons)
		b.WriteString(fmt.Sprintf("\n⚠️ Skipped %d: %s\n", len(report.Skipped), strings.Join(reasons, ", ")))
	}

	b.WriteString(fmt.Sprintf("\n<i>%s</i>", html.EscapeString(strategy.Disclaimer)))
	return b.String()
}

// FormatAnalysis formats a single-ticker analysis.
func FormatAnalysis(a *model.Analysis) string {
	r := a.Recommendation
	var b strings.Builder

	verdict := "🔴 NO SIGNAL"
	if r.Qualifies {
		verdict = "🟢 SIGNAL"
	}
	b.WriteString(fmt.Sprintf("🔎 <b>%s</b> | %s\n\n", html.EscapeString(displayTicker(r.Ticker)), verdict))
	b.WriteString(fmt.Sprintf("Price: ₹%.2f\n", r.Price))
	b.WriteString(fmt.Sprintf("EMA9: %.2f | EMA21: %.2f\n", r.EMAFast, r.EMASlow))
	b.WriteString(fmt.Sprintf("ATR14: %.2f\n", r.ATR))
	b.WriteString(fmt.Sprintf("Stop loss: ₹%.2f\n", r.StopLoss))
	b.WriteString(fmt.Sprintf("Safe quantity: <b>%d</b>\n\n", r.SafeQuantity))
	b.WriteString(fmt.Sprintf("💡 <b>Why only %d shares?</b>\n", r.SafeQuantity))
	b.WriteString(html.EscapeString(academy.Explain(r, a.Request)))
	b.WriteString(fmt.Sprintf("\n\n<i>%s</i>", html.EscapeString(strategy.Disclaimer)))
	return b.String()
}

// FormatLessons lists the academy modules.
func FormatLessons(lessons []academy.Lesson) string {
	var b strings.Builder
	b.WriteString("🎓 <b>HiTrade Academy</b>\n")
	for _, l := range lessons {
		b.WriteString(fmt.Sprintf("\n<b>%s</b> [%s]\n%s\n", html.EscapeString(l.Title), l.Level, html.EscapeString(l.Summary)))
		for _, p := range l.Points {
			b.WriteString("  • " + html.EscapeString(p) + "\n")
		}
	}
	return b.String()
}

// FormatError renders a command failure.
func FormatError(action string, err error) string {
	return fmt.Sprintf("❌ %s failed: %s", html.EscapeString(action), html.EscapeString(err.Error()))
}
