package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"HiTrade/internal/model"
)

const yahooBaseURL = "https://query1.finance.yahoo.com"

// YahooFetcher implements Fetcher using the Yahoo Finance chart API.
type YahooFetcher struct {
	BaseURL    string
	Client     *http.Client
	MaxRetries int
	SymbolMap  map[string]string // maps internal symbol to Yahoo ticker
}

// NewYahooFetcher creates a new Yahoo Finance fetcher.
func NewYahooFetcher(proxyURL string, maxRetries int) *YahooFetcher {
	return &YahooFetcher{
		BaseURL:    yahooBaseURL,
		Client:     newHTTPClient(proxyURL),
		MaxRetries: maxRetries,
		SymbolMap: map[string]string{
			"NIFTY50":   "^NSEI",
			"BANKNIFTY": "^NSEBANK",
			"SENSEX":    "^BSESN",
		},
	}
}

func (f *YahooFetcher) Name() string { return "yahoo" }

func (f *YahooFetcher) yahooSymbol(symbol string) string {
	if mapped, ok := f.SymbolMap[symbol]; ok {
		return mapped
	}
	return symbol
}

// yahooChart is the response structure from Yahoo Finance chart API.
// Null quote values (holidays, halted sessions) decode to nil pointers.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func at(vals []*float64, i int) (float64, bool) {
	if i >= len(vals) || vals[i] == nil {
		return 0, false
	}
	return *vals[i], true
}

// FetchHistory downloads daily bars for the inclusive date range.
func (f *YahooFetcher) FetchHistory(ctx context.Context, ticker string, rng model.DateRange) (model.PriceSeries, error) {
	// period2 is exclusive on Yahoo's side.
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&period1=%d&period2=%d",
		f.BaseURL, url.PathEscape(f.yahooSymbol(ticker)), rng.Start.Unix(), rng.End.AddDate(0, 0, 1).Unix())

	body, err := getWithRetry(ctx, f.Client, u, map[string]string{"User-Agent": "Mozilla/5.0"}, f.MaxRetries)
	if err != nil {
		return model.PriceSeries{}, fmt.Errorf("yahoo %s: %w", ticker, err)
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return model.PriceSeries{}, fmt.Errorf("yahoo %s: %w: %v", ticker, model.ErrMalformedData, err)
	}
	if chart.Chart.Error != nil {
		return model.PriceSeries{}, fmt.Errorf("yahoo %s: %w: %s", ticker, model.ErrDataUnavailable, chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 {
		return model.PriceSeries{}, fmt.Errorf("yahoo %s: %w: no data returned", ticker, model.ErrDataUnavailable)
	}

	result := chart.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return model.PriceSeries{}, fmt.Errorf("yahoo %s: %w: missing quote block", ticker, model.ErrMalformedData)
	}
	quote := result.Indicators.Quote[0]
	raw := make([]model.PriceBar, 0, len(result.Timestamp))

	for i, ts := range result.Timestamp {
		o, ok1 := at(quote.Open, i)
		h, ok2 := at(quote.High, i)
		l, ok3 := at(quote.Low, i)
		c, ok4 := at(quote.Close, i)
		if !ok1 || !ok2 || !ok3 || !ok4 {
			continue // null bar
		}
		v, _ := at(quote.Volume, i)
		raw = append(raw, model.PriceBar{
			Date:   time.Unix(ts, 0).UTC(),
			Open:   o,
			High:   h,
			Low:    l,
			Close:  c,
			Volume: v,
		})
	}

	series := model.NewPriceSeries(ticker, raw)
	if series.Empty() {
		return series, fmt.Errorf("yahoo %s: %w: all bars null or invalid", ticker, model.ErrDataUnavailable)
	}
	return series, nil
}
