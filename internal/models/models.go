// Package models defines the core domain entities: market samples, sentiment
// reports, and pump alerts.
package models

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Validation errors surfaced to the command-facing caller. Upstream failures
// are wrapped with ErrUpstream and recovered locally instead.
var (
	ErrEmptySymbol     = errors.New("symbol must not be empty")
	ErrUnknownInterval = errors.New("unknown interval")
	ErrUpstream        = errors.New("transient upstream failure")
)

// Interval is a sampling period recognized by the futures data API.
type Interval string

const (
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval30m Interval = "30m"
	Interval1h  Interval = "1h"
	Interval2h  Interval = "2h"
	Interval4h  Interval = "4h"
	Interval6h  Interval = "6h"
	Interval12h Interval = "12h"
	Interval1d  Interval = "1d"
)

var validIntervals = map[Interval]bool{
	Interval5m: true, Interval15m: true, Interval30m: true,
	Interval1h: true, Interval2h: true, Interval4h: true,
	Interval6h: true, Interval12h: true, Interval1d: true,
}

// ParseInterval validates s against the closed interval enumeration.
func ParseInterval(s string) (Interval, error) {
	iv := Interval(s)
	if !validIntervals[iv] {
		return "", fmt.Errorf("%w: %q", ErrUnknownInterval, s)
	}
	return iv, nil
}

// RatioKind distinguishes the two long/short ratio endpoints.
type RatioKind string

const (
	RatioGlobalAccount RatioKind = "GLOBAL_ACCOUNT"
	RatioTaker         RatioKind = "TAKER"
)

// RatioSample is a long-volume / short-volume observation for one symbol.
// Ratio is nil when the upstream returned an empty sequence.
type RatioSample struct {
	Kind       RatioKind `json:"kind"`
	Symbol     string    `json:"symbol"`
	Interval   Interval  `json:"interval"`
	Ratio      *float64  `json:"ratio,omitempty"`
	CapturedAt time.Time `json:"captured_at"`
}

// OpenInterest is the outstanding contract count for a futures symbol.
type OpenInterest struct {
	Symbol     string    `json:"symbol"`
	Contracts  *float64  `json:"contracts,omitempty"`
	CapturedAt time.Time `json:"captured_at"`
}

// PriceSample is a single spot close price observation.
type PriceSample struct {
	Symbol     string    `json:"symbol"`
	ClosePrice float64   `json:"close_price"`
	CapturedAt time.Time `json:"captured_at"`
}

// ProbabilityReport is the fused long/short sentiment for (symbol, interval).
// Optional inputs are nil when the upstream had no data for them.
type ProbabilityReport struct {
	Symbol       string    `json:"symbol"`
	Interval     Interval  `json:"interval"`
	GlobalRatio  *float64  `json:"global_ratio,omitempty"`
	TakerRatio   *float64  `json:"taker_ratio,omitempty"`
	OpenInterest *float64  `json:"open_interest,omitempty"`
	LongPct      float64   `json:"long_pct"`
	ShortPct     float64   `json:"short_pct"`
	SpotDeltaPct *float64  `json:"spot_delta_pct,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Validate checks report field constraints.
func (r *ProbabilityReport) Validate() error {
	if r.Symbol == "" {
		return ErrEmptySymbol
	}
	if !validIntervals[r.Interval] {
		return fmt.Errorf("%w: %q", ErrUnknownInterval, r.Interval)
	}
	if r.LongPct < 0 || r.LongPct > 100 {
		return errors.New("long pct must be between 0 and 100")
	}
	if math.Abs(r.LongPct+r.ShortPct-100) > 0.01 {
		return errors.New("long pct + short pct must equal 100 within tolerance")
	}
	if r.GlobalRatio != nil && *r.GlobalRatio <= 0 {
		return errors.New("global ratio must be positive")
	}
	if r.TakerRatio != nil && *r.TakerRatio <= 0 {
		return errors.New("taker ratio must be positive")
	}
	if r.OpenInterest != nil && *r.OpenInterest < 0 {
		return errors.New("open interest must not be negative")
	}
	return nil
}

// PumpAlert records a short-horizon price spike above the configured threshold.
type PumpAlert struct {
	Symbol         string    `json:"symbol"`
	PctChange      float64   `json:"pct_change"`
	HorizonMinutes int       `json:"horizon_minutes"`
	DetectedAt     time.Time `json:"detected_at"`
}
