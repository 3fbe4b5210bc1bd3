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

// VsTraderFetcher implements Fetcher using the vstrader REST API.
type VsTraderFetcher struct {
	BaseURL    string
	APIKey     string
	Client     *http.Client
	MaxRetries int
}

// NewVsTraderFetcher creates a new fetcher with optional proxy support.
func NewVsTraderFetcher(baseURL, apiKey, proxyURL string, maxRetries int) *VsTraderFetcher {
	return &VsTraderFetcher{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		Client:     newHTTPClient(proxyURL),
		MaxRetries: maxRetries,
	}
}

func (f *VsTraderFetcher) Name() string { return "vstrader" }

// vsBar is the expected JSON shape from the vstrader API.
type vsBar struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

func (f *VsTraderFetcher) FetchHistory(ctx context.Context, ticker string, rng model.DateRange) (model.PriceSeries, error) {
	q := url.Values{}
	q.Set("symbol", ticker)
	q.Set("from", rng.Start.Format("2006-01-02"))
	q.Set("to", rng.End.Format("2006-01-02"))
	endpoint := fmt.Sprintf("%s/api/v1/bars/daily?%s", f.BaseURL, q.Encode())

	headers := map[string]string{}
	if f.APIKey != "" {
		headers["Authorization"] = "Bearer " + f.APIKey
	}
	body, err := getWithRetry(ctx, f.Client, endpoint, headers, f.MaxRetries)
	if err != nil {
		return model.PriceSeries{}, fmt.Errorf("vstrader %s: %w", ticker, err)
	}

	var vsBars []vsBar
	if err := json.Unmarshal(body, &vsBars); err != nil {
		return model.PriceSeries{}, fmt.Errorf("vstrader %s: %w: %v", ticker, model.ErrMalformedData, err)
	}
	raw := make([]model.PriceBar, len(vsBars))
	for i, vb := range vsBars {
		raw[i] = model.PriceBar{
			Date:   time.Unix(vb.Timestamp, 0).UTC(),
			Open:   vb.Open,
			High:   vb.High,
			Low:    vb.Low,
			Close:  vb.Close,
			Volume: vb.Volume,
		}
	}
	series := model.NewPriceSeries(ticker, raw)
	if series.Empty() {
		return series, fmt.Errorf("vstrader %s: %w", ticker, model.ErrDataUnavailable)
	}
	return series, nil
}
