// Package console renders scan reports and analyses for the terminal.
package console

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"HiTrade/internal/academy"
	"HiTrade/internal/model"
	"HiTrade/internal/strategy"
)

var (
	primaryColor = lipgloss.Color("#00D4FF")
	buyColor     = lipgloss.Color("#00FFA3")
	stopColor    = lipgloss.Color("#FF0055")
	mutedColor   = lipgloss.Color("#8899A6")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffffff")).
			Background(primaryColor).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(primaryColor).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	mutedStyle  = lipgloss.NewStyle().Foreground(mutedColor)

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(0, 1)
)

const (
	colQty  = 2
	colStop = 3
)

// RenderScan writes the qualifying table and a skip summary.
func RenderScan(w io.Writer, report *model.ScanReport, segment string) {
	title := titleStyle.Render(fmt.Sprintf("HiTrade Scan · %s · %s", segment, report.Range.End.Format("2006-01-02")))
	summary := mutedStyle.Render(fmt.Sprintf("capital ₹%.0f · risk %.4g%% · %d/%d qualifying · %s",
		report.Request.Capital, report.Request.RiskPct, len(report.Qualifying), report.Total, report.Duration.Round(time.Millisecond)))

	var body string
	if len(report.Qualifying) == 0 {
		body = mutedStyle.Render("No ticker passed the trend and budget filter.")
	} else {
		rows := make([][]string, len(report.Qualifying))
		for i, r := range report.Qualifying {
			rows[i] = []string{
				r.Ticker,
				fmt.Sprintf("%.2f", r.Price),
				fmt.Sprintf("%d", r.SafeQuantity),
				fmt.Sprintf("%.2f", r.StopLoss),
				fmt.Sprintf("%.2f", r.ATR),
				fmt.Sprintf("%.0f ÷ %.2f", r.RiskAmount, r.RiskPerShare),
			}
		}
		t := table.New().
			Border(lipgloss.RoundedBorder()).
			BorderStyle(lipgloss.NewStyle().Foreground(mutedColor)).
			Headers("TICKER", "PRICE", "SAFE QTY", "STOP LOSS", "ATR", "RISK ÷ VOL").
			Rows(rows...).
			StyleFunc(func(row, col int) lipgloss.Style {
				switch {
				case row == table.HeaderRow:
					return headerStyle
				case col == colQty:
					return cellStyle.Foreground(buyColor).Bold(true)
				case col == colStop:
					return cellStyle.Foreground(stopColor)
				default:
					return cellStyle
				}
			})
		body = t.String()
	}

	parts := []string{title, summary, body}
	if len(report.Skipped) > 0 {
		parts = append(parts, mutedStyle.Render(skipSummary(report.Skipped)))
	}
	parts = append(parts, mutedStyle.Render(strategy.Disclaimer))
	fmt.Fprintln(w, lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func skipSummary(skipped []model.Skip) string {
	byReason := map[string][]string{}
	for _, s := range skipped {
		byReason[s.Reason] = append(byReason[s.Reason], s.Ticker)
	}
	reasons := make([]string, 0, len(byReason))
	for r := range byReason {
		reasons = append(reasons, r)
	}
	sort.Strings(reasons)
	var b strings.Builder
	fmt.Fprintf(&b, "skipped %d:", len(skipped))
	for _, r := range reasons {
		fmt.Fprintf(&b, "\n  %s: %s", r, strings.Join(byReason[r], ", "))
	}
	return b.String()
}

// RenderAnalysis writes a metrics card plus the sizing explanation.
func RenderAnalysis(w io.Writer, a *model.Analysis) {
	r := a.Recommendation
	verdict := lipgloss.NewStyle().Bold(true).Foreground(stopColor).Render("NO SIGNAL")
	if r.Qualifies {
		verdict = lipgloss.NewStyle().Bold(true).Foreground(buyColor).Render("STRONG BUY")
	}

	metric := func(label, value string, color lipgloss.Color) string {
		return lipgloss.JoinVertical(lipgloss.Left,
			mutedStyle.Render(label),
			lipgloss.NewStyle().Bold(true).Foreground(color).Render(value))
	}
	metrics := lipgloss.JoinHorizontal(lipgloss.Top,
		cardStyle.Render(metric("PRICE", fmt.Sprintf("₹%.2f", r.Price), lipgloss.Color("#ffffff"))),
		cardStyle.Render(metric("STOP LOSS", fmt.Sprintf("₹%.2f", r.StopLoss), stopColor)),
		cardStyle.Render(metric("SAFE QUANTITY", fmt.Sprintf("%d units", r.SafeQuantity), buyColor)),
	)
	indicators := mutedStyle.Render(fmt.Sprintf("EMA9 %.2f · EMA21 %.2f · ATR14 %.2f · %s",
		r.EMAFast, r.EMASlow, r.ATR, a.Range.Key()))

	fmt.Fprintln(w, lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(r.Ticker)+" "+verdict,
		metrics,
		indicators,
		cardStyle.Render(academy.Explain(r, a.Request)),
		mutedStyle.Render(strategy.Disclaimer),
	))
}
