// Package universe resolves the list of tickers a scan runs over.
package universe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"HiTrade/internal/logger"
	"HiTrade/internal/model"
)

// DefaultTickers is used when no catalog can be read.
var DefaultTickers = []string{
	"RELIANCE.NS", "TCS.NS", "HDFCBANK.NS", "INFY.NS", "ICICIBANK.NS",
	"HINDUNILVR.NS", "ITC.NS", "SBIN.NS", "BHARTIARTL.NS", "KOTAKBANK.NS",
	"LT.NS", "AXISBANK.NS", "ASIANPAINT.NS", "MARUTI.NS", "TATAMOTORS.NS",
	"SUNPHARMA.NS", "TITAN.NS", "ULTRACEMCO.NS", "WIPRO.NS", "NTPC.NS",
}

// Segment names.
const (
	SegmentBluechip = "bluechip"
	SegmentMidcap   = "midcap"
	SegmentPenny    = "penny"
	SegmentAll      = "all"
)

// segmentSize is the width of the bluechip and midcap slices.
const segmentSize = 15

// Segments lists the accepted segment names in display order.
var Segments = []string{SegmentBluechip, SegmentMidcap, SegmentPenny, SegmentAll}

// Universe is a resolved ticker list and where it came from.
type Universe struct {
	Tickers  []string `json:"tickers"`
	Source   string   `json:"source"`
	Fallback bool     `json:"fallback"`
}

// Load reads the catalog at path (.csv reference file or .db SQLite catalog) and
// appends suffix to every symbol. Any failure falls back to DefaultTickers.
func Load(ctx context.Context, path, suffix string) Universe {
	equities, err := readCatalog(ctx, path)
	if err == nil && len(equities) == 0 {
		err = fmt.Errorf("catalog %s is empty", path)
	}
	if err != nil {
		logger.Warn("universe unavailable, using default tickers",
			zap.String("path", path), zap.Int("tickers", len(DefaultTickers)), zap.Error(err))
		return Universe{Tickers: append([]string(nil), DefaultTickers...), Source: "default", Fallback: true}
	}

	symbols := make([]string, len(equities))
	for i, e := range equities {
		symbols[i] = e.Symbol
	}
	tickers := WithSuffix(symbols, suffix)
	logger.Info("universe loaded", zap.String("path", path), zap.Int("tickers", len(tickers)))
	return Universe{Tickers: tickers, Source: path}
}

func readCatalog(ctx context.Context, path string) ([]Equity, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		// OpenCatalog would create a missing file.
		if _, err := os.Stat(path); err != nil {
			return nil, err
		}
		cat, err := OpenCatalog(path)
		if err != nil {
			return nil, err
		}
		defer cat.Close()
		return cat.Equities(ctx)
	default:
		return LoadCSV(path)
	}
}

// WithSuffix normalizes symbols to upper case, appends the market suffix where
// missing and drops blanks and duplicates, keeping first-seen order.
func WithSuffix(symbols []string, suffix string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if suffix != "" && !strings.HasSuffix(s, strings.ToUpper(suffix)) {
			s += strings.ToUpper(suffix)
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Segment slices tickers by catalog position: bluechip is the first 15, midcap the
// next 15, penny everything after. Short lists yield short or empty segments.
func Segment(tickers []string, name string) ([]string, error) {
	lo, hi := 0, len(tickers)
	switch strings.ToLower(strings.TrimSpace(name)) {
	case SegmentBluechip:
		hi = segmentSize
	case SegmentMidcap:
		lo, hi = segmentSize, 2*segmentSize
	case SegmentPenny:
		lo = 2 * segmentSize
	case SegmentAll, "":
	default:
		return nil, fmt.Errorf("segment %q (want one of %s): %w", name, strings.Join(Segments, ", "), model.ErrInvalidInput)
	}
	lo, hi = min(lo, len(tickers)), min(hi, len(tickers))
	return append([]string(nil), tickers[lo:hi]...), nil
}
