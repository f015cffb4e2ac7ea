// Package scheduler drives the periodic signal jobs: scheduled sentiment
// reports, the pump detector, and the spot price sampler. Jobs push composite
// messages to an injected sink and never know about the chat transport.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"futsentry/internal/binance"
	"futsentry/internal/history"
	"futsentry/internal/logger"
	"futsentry/internal/models"
	"futsentry/internal/report"
)

// Sink accepts a formatted message for the group channel.
type Sink interface {
	Send(ctx context.Context, text string) error
}

// MarketFeed is the slice of the market client the scheduled jobs need.
type MarketFeed interface {
	PriceChangePct(ctx context.Context, symbol string) (float64, bool, error)
	SpotPrice(ctx context.Context, symbol string) (models.PriceSample, error)
}

// Journal records emitted reports and alerts; it may be nil.
type Journal interface {
	RecordReport(r models.ProbabilityReport) error
	RecordAlert(a models.PumpAlert) error
}

// Config holds the calendar triggers and thresholds for the jobs.
type Config struct {
	Watchlist        []string
	PumpThresholdPct float64
	HourlyCron       string
	FourHourlyCron   string
	PumpInterval     time.Duration
	SampleInterval   time.Duration
}

// Runner owns the cron engine and the three job bodies.
type Runner struct {
	cfg     Config
	builder *report.Builder
	market  MarketFeed
	prices  *history.Ring
	sink    Sink
	journal Journal
	cron    *cron.Cron
}

// New creates a runner. sink and journal may be nil; jobs then only log.
func New(cfg Config, builder *report.Builder, market MarketFeed, prices *history.Ring, sink Sink, journal Journal) *Runner {
	return &Runner{
		cfg:     cfg,
		builder: builder,
		market:  market,
		prices:  prices,
		sink:    sink,
		journal: journal,
	}
}

// cronLogger adapts the process logger to the cron.Logger interface.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.Debug("cron: %s %v", msg, keysAndValues)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.Error("cron: %s: %v %v", msg, err, keysAndValues)
}

// Start registers the jobs and starts the cron engine. A trigger that fires
// while the same job is still running is dropped, not queued.
func (r *Runner) Start(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{})))

	if _, err := c.AddFunc(r.cfg.HourlyCron, func() { r.runScheduledReports(ctx, models.Interval1h) }); err != nil {
		return fmt.Errorf("registering hourly job: %w", err)
	}
	if _, err := c.AddFunc(r.cfg.FourHourlyCron, func() { r.runScheduledReports(ctx, models.Interval4h) }); err != nil {
		return fmt.Errorf("registering four-hourly job: %w", err)
	}
	if _, err := c.AddFunc(periodicSpec(r.cfg.PumpInterval), func() { r.runPumpScan(ctx) }); err != nil {
		return fmt.Errorf("registering pump job: %w", err)
	}
	if _, err := c.AddFunc(periodicSpec(r.cfg.SampleInterval), func() { r.runSampler(ctx) }); err != nil {
		return fmt.Errorf("registering sampler job: %w", err)
	}

	c.Start()
	r.cron = c
	logger.Info("Scheduler started (hourly %q, four-hourly %q, pump every %v, sample every %v, %d symbols)",
		r.cfg.HourlyCron, r.cfg.FourHourlyCron, r.cfg.PumpInterval, r.cfg.SampleInterval, len(r.cfg.Watchlist))
	return nil
}

// periodicSpec renders a period as a cron spec. Whole-minute periods that
// divide an hour become calendar-aligned entries (a 5-minute period fires at
// minute ≡ 0 mod 5); everything else falls back to a free-running interval.
func periodicSpec(d time.Duration) string {
	secs := int(d.Seconds())
	if secs >= 60 && secs%60 == 0 && 60%(secs/60) == 0 {
		return fmt.Sprintf("*/%d * * * *", secs/60)
	}
	return fmt.Sprintf("@every %ds", secs)
}

// Stop halts the cron engine; running jobs finish on their own.
func (r *Runner) Stop() {
	if r.cron != nil {
		<-r.cron.Stop().Done()
	}
}

// runScheduledReports builds one report per watchlist symbol in order and
// emits a single composite message. A per-symbol failure becomes an inline
// marker and never blocks the rest of the batch.
func (r *Runner) runScheduledReports(ctx context.Context, interval models.Interval) {
	start := time.Now()
	lines := make([]string, 0, len(r.cfg.Watchlist))
	reports := make([]models.ProbabilityReport, 0, len(r.cfg.Watchlist))

	for _, symbol := range r.cfg.Watchlist {
		if ctx.Err() != nil {
			logger.Info("Report batch for %s cancelled, discarding partial results", interval)
			return
		}
		rep, err := r.builder.Build(ctx, symbol, string(interval))
		if err != nil {
			logger.Warn("Report for %s %s failed: %v", symbol, interval, err)
			lines = append(lines, fmt.Sprintf("⚠️ %s %s: report unavailable", symbol, interval))
			continue
		}
		lines = append(lines, report.FormatLine(rep))
		reports = append(reports, rep)
	}

	if ctx.Err() != nil {
		return
	}

	text := fmt.Sprintf("🧭 Long/short sentiment (%s)\n\n%s", interval, strings.Join(lines, "\n"))
	r.emit(ctx, text)

	if r.journal != nil {
		for _, rep := range reports {
			if err := r.journal.RecordReport(rep); err != nil {
				logger.Warn("Failed to journal report for %s: %v", rep.Symbol, err)
			}
		}
	}
	logger.Info("Scheduled %s report batch done in %v (%d symbols)", interval, time.Since(start), len(r.cfg.Watchlist))
}

// runPumpScan checks the short-horizon price change of every watchlist
// symbol and emits one composite message when at least one symbol crossed
// the threshold. Per-symbol failures are logged and skipped.
func (r *Runner) runPumpScan(ctx context.Context) {
	var lines []string
	var alerts []models.PumpAlert

	for _, symbol := range r.cfg.Watchlist {
		if ctx.Err() != nil {
			logger.Info("Pump scan cancelled, discarding partial results")
			return
		}
		pct, ok, err := r.market.PriceChangePct(ctx, symbol)
		if err != nil {
			logger.Warn("Pump check for %s failed: %v", symbol, err)
			continue
		}
		if !ok || pct < r.cfg.PumpThresholdPct {
			continue
		}
		lines = append(lines, fmt.Sprintf("🚀 %s %+.2f%% in %dm", symbol, pct, binance.PumpHorizonMinutes))
		alerts = append(alerts, models.PumpAlert{
			Symbol:         symbol,
			PctChange:      pct,
			HorizonMinutes: binance.PumpHorizonMinutes,
			DetectedAt:     time.Now(),
		})
	}

	if len(lines) == 0 || ctx.Err() != nil {
		return
	}

	text := "⚡ Pump alert\n\n" + strings.Join(lines, "\n")
	r.emit(ctx, text)

	if r.journal != nil {
		for _, a := range alerts {
			if err := r.journal.RecordAlert(a); err != nil {
				logger.Warn("Failed to journal alert for %s: %v", a.Symbol, err)
			}
		}
	}
}

// runSampler refreshes the spot price history for every watched symbol.
func (r *Runner) runSampler(ctx context.Context) {
	for _, symbol := range r.cfg.Watchlist {
		if ctx.Err() != nil {
			return
		}
		sample, err := r.market.SpotPrice(ctx, symbol)
		if err != nil {
			logger.Warn("Spot sample for %s failed: %v", symbol, err)
			continue
		}
		if !r.prices.Append(symbol, sample) {
			logger.Debug("Dropped stale spot sample for %s", symbol)
		}
	}
}

// emit pushes text to the sink; a rejecting sink is logged and the message
// is dropped, never buffered across ticks.
func (r *Runner) emit(ctx context.Context, text string) {
	if r.sink == nil {
		logger.Debug("No sink configured, dropping message")
		return
	}
	if err := r.sink.Send(ctx, text); err != nil {
		logger.Error("Failed to send message to sink: %v", err)
	}
}
