// Package report builds long/short sentiment reports for (symbol, interval)
// queries.
package report

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"futsentry/internal/fuse"
	"futsentry/internal/history"
	"futsentry/internal/logger"
	"futsentry/internal/models"
)

// MarketData is the upstream query surface the builder depends on.
type MarketData interface {
	GlobalLongShortRatio(ctx context.Context, symbol string, interval models.Interval) (models.RatioSample, error)
	TakerLongShortRatio(ctx context.Context, symbol string, interval models.Interval) (models.RatioSample, error)
	OpenInterest(ctx context.Context, symbol string) (models.OpenInterest, error)
}

// Builder assembles probability reports from market data and spot history.
type Builder struct {
	mdc     MarketData
	weights fuse.Weights
	prices  *history.Ring
}

// New creates a report builder. prices may be nil; the spot trend line is
// then omitted from all reports.
func New(mdc MarketData, weights fuse.Weights, prices *history.Ring) *Builder {
	return &Builder{mdc: mdc, weights: weights, prices: prices}
}

// Build validates the interval and assembles a report for symbol. The three
// upstream inputs are fetched concurrently; each failure is absorbed by
// treating that input as absent, so a report is returned even under total
// upstream failure (neutral 50/50). Only validation errors are returned.
func (b *Builder) Build(ctx context.Context, symbol, interval string) (models.ProbabilityReport, error) {
	if symbol == "" {
		return models.ProbabilityReport{}, models.ErrEmptySymbol
	}
	iv, err := models.ParseInterval(interval)
	if err != nil {
		return models.ProbabilityReport{}, err
	}

	var globalRatio, takerRatio, openInterest *float64

	g, fetchCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := b.mdc.GlobalLongShortRatio(fetchCtx, symbol, iv)
		if err != nil {
			logger.Warn("global ratio fetch failed for %s %s: %v", symbol, iv, err)
			return nil
		}
		globalRatio = s.Ratio
		return nil
	})
	g.Go(func() error {
		s, err := b.mdc.TakerLongShortRatio(fetchCtx, symbol, iv)
		if err != nil {
			logger.Warn("taker ratio fetch failed for %s %s: %v", symbol, iv, err)
			return nil
		}
		takerRatio = s.Ratio
		return nil
	})
	g.Go(func() error {
		oi, err := b.mdc.OpenInterest(fetchCtx, symbol)
		if err != nil {
			logger.Warn("open interest fetch failed for %s: %v", symbol, err)
			return nil
		}
		openInterest = oi.Contracts
		return nil
	})
	_ = g.Wait() // workers absorb their own errors

	longPct := fuse.Fuse(b.weights, globalRatio, takerRatio, openInterest)

	r := models.ProbabilityReport{
		Symbol:       symbol,
		Interval:     iv,
		GlobalRatio:  globalRatio,
		TakerRatio:   takerRatio,
		OpenInterest: openInterest,
		LongPct:      longPct,
		ShortPct:     math.Round((100-longPct)*100) / 100,
		CreatedAt:    time.Now(),
	}

	if b.prices != nil {
		if older, newer, ok := b.prices.LatestTwo(symbol); ok && older.ClosePrice > 0 {
			delta := (newer.ClosePrice - older.ClosePrice) / older.ClosePrice * 100
			r.SpotDeltaPct = &delta
		}
	}

	return r, nil
}

// FormatLine renders a report as a single plain-text line for composite
// messages and command replies.
func FormatLine(r models.ProbabilityReport) string {
	emoji := "📈"
	if r.LongPct < 50 {
		emoji = "📉"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s: long %.2f%% / short %.2f%%", emoji, r.Symbol, r.Interval, r.LongPct, r.ShortPct)

	var parts []string
	if r.GlobalRatio != nil {
		parts = append(parts, fmt.Sprintf("acct %.2f", *r.GlobalRatio))
	}
	if r.TakerRatio != nil {
		parts = append(parts, fmt.Sprintf("taker %.2f", *r.TakerRatio))
	}
	if r.OpenInterest != nil {
		parts = append(parts, fmt.Sprintf("OI %.0f", *r.OpenInterest))
	}
	if len(parts) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(parts, ", "))
	}
	if r.SpotDeltaPct != nil {
		fmt.Fprintf(&b, " spot %+.2f%%", *r.SpotDeltaPct)
	}
	return b.String()
}
