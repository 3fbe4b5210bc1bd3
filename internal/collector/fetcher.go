package collector

import (
	"context"

	"HiTrade/internal/model"
)

// Fetcher retrieves daily price history.
// Implementations return model.ErrDataUnavailable when the provider has no bars for the
// ticker and model.ErrMalformedData when the payload cannot be decoded; other errors are
// transport failures. Implementations must be safe for concurrent use.
type Fetcher interface {
	FetchHistory(ctx context.Context, ticker string, rng model.DateRange) (model.PriceSeries, error)
	Name() string
}
