package model

import (
	"context"
	"errors"
)

var (
	// ErrDataUnavailable means retrieval produced no bars (unknown ticker, closed market, empty response).
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrMalformedData means the provider answered but the payload could not be used.
	ErrMalformedData = errors.New("malformed data")
	// ErrInsufficientHistory means the series is too short for ATR to be defined.
	ErrInsufficientHistory = errors.New("insufficient history")
	// ErrInvalidInput means a scan request failed validation.
	ErrInvalidInput = errors.New("invalid input")
)

// Skip reasons reported for tickers that produced no recommendation.
const (
	ReasonNoData              = "no_data"
	ReasonMalformed           = "malformed"
	ReasonInsufficientHistory = "insufficient_history"
	ReasonTimeout             = "timeout"
	ReasonCancelled           = "cancelled"
	ReasonFetchError          = "fetch_error"
	ReasonInvalidInput        = "invalid_input"
)

// SkipReason classifies a per-ticker error.
func SkipReason(err error) string {
	switch {
	case errors.Is(err, ErrDataUnavailable):
		return ReasonNoData
	case errors.Is(err, ErrMalformedData):
		return ReasonMalformed
	case errors.Is(err, ErrInsufficientHistory):
		return ReasonInsufficientHistory
	case errors.Is(err, ErrInvalidInput):
		return ReasonInvalidInput
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.Is(err, context.Canceled):
		return ReasonCancelled
	default:
		return ReasonFetchError
	}
}
