// Package telegram provides the chat collaborator: a message sink for the
// group channel and a command listener that relays user queries to the
// signal engine.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"futsentry/internal/history"
	"futsentry/internal/logger"
	"futsentry/internal/models"
	"futsentry/internal/report"
)

const recentAlertLimit = 10

// ReportBuilder builds an on-demand sentiment report.
type ReportBuilder interface {
	Build(ctx context.Context, symbol, interval string) (models.ProbabilityReport, error)
}

// AlertSource serves the rolling journal of emitted pump alerts.
type AlertSource interface {
	RecentAlerts(limit int) ([]models.PumpAlert, error)
}

// Client handles Telegram messaging in both directions.
type Client struct {
	bot            *tgbotapi.BotAPI
	groupChatID    int64
	maxRetries     int
	retryDelayBase time.Duration

	builder ReportBuilder
	prices  *history.Ring
	alerts  AlertSource
}

// NewClient creates a new Telegram client. builder, prices, and alerts back
// the bot commands; any of them may be nil, disabling the matching command.
func NewClient(botToken, groupChatID string, maxRetries int, retryDelayBase time.Duration,
	builder ReportBuilder, prices *history.Ring, alerts AlertSource) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	chatID, err := strconv.ParseInt(groupChatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid group chat ID: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		groupChatID:    chatID,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
		builder:        builder,
		prices:         prices,
		alerts:         alerts,
	}, nil
}

// Send delivers text to the group channel with linear-backoff retry. It
// satisfies the scheduler's sink interface. The payload is escaped wholesale;
// composite messages carry no markup of their own.
func (c *Client) Send(ctx context.Context, text string) error {
	msg := tgbotapi.NewMessage(c.groupChatID, escapeMarkdownV2(text))
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := c.bot.Send(msg); err == nil {
			return nil
		} else {
			lastErr = err
		}
		time.Sleep(c.retryDelayBase * time.Duration(i+1))
	}
	return fmt.Errorf("failed after %d retries: %w", c.maxRetries, lastErr)
}

// ListenForCommands starts a goroutine that polls for Telegram updates and
// handles bot commands. It returns immediately; the goroutine stops when ctx
// is cancelled.
func (c *Client) ListenForCommands(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := c.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.bot.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message != nil && update.Message.IsCommand() {
					c.handleCommand(ctx, update.Message)
				}
			}
		}
	}()
}

func (c *Client) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "ping":
		c.reply(msg.Chat.ID, "Pong")
	case "ls":
		c.handleLongShort(ctx, msg)
	case "price":
		c.handlePrice(msg)
	case "recent":
		c.handleRecent(msg)
	}
}

// handleLongShort serves "/ls SYMBOL [INTERVAL]" with an on-demand report.
func (c *Client) handleLongShort(ctx context.Context, msg *tgbotapi.Message) {
	if c.builder == nil {
		return
	}
	args := strings.Fields(msg.CommandArguments())
	if len(args) < 1 {
		c.reply(msg.Chat.ID, "Usage: /ls SYMBOL [INTERVAL]")
		return
	}
	symbol := strings.ToUpper(args[0])
	interval := "1h"
	if len(args) > 1 {
		interval = args[1]
	}

	r, err := c.builder.Build(ctx, symbol, interval)
	if err != nil {
		// Only validation errors reach this surface; upstream failures
		// degrade to a neutral report inside the builder.
		c.reply(msg.Chat.ID, fmt.Sprintf("Cannot build report: %v", err))
		return
	}
	c.reply(msg.Chat.ID, report.FormatLine(r))
}

// handlePrice serves "/price SYMBOL" from the sampled spot history.
func (c *Client) handlePrice(msg *tgbotapi.Message) {
	if c.prices == nil {
		return
	}
	args := strings.Fields(msg.CommandArguments())
	if len(args) < 1 {
		c.reply(msg.Chat.ID, "Usage: /price SYMBOL")
		return
	}
	symbol := strings.ToUpper(args[0])

	older, newer, ok := c.prices.LatestTwo(symbol)
	if !ok {
		c.reply(msg.Chat.ID, fmt.Sprintf("No samples for %s yet, try again in a minute", symbol))
		return
	}
	delta := 0.0
	if older.ClosePrice > 0 {
		delta = (newer.ClosePrice - older.ClosePrice) / older.ClosePrice * 100
	}
	c.reply(msg.Chat.ID, fmt.Sprintf("%s $%.2f (%+.2f%% since last sample)", symbol, newer.ClosePrice, delta))
}

// handleRecent serves "/recent" from the alert journal.
func (c *Client) handleRecent(msg *tgbotapi.Message) {
	if c.alerts == nil {
		return
	}
	alerts, err := c.alerts.RecentAlerts(recentAlertLimit)
	if err != nil {
		logger.Error("Failed to read recent alerts: %v", err)
		c.reply(msg.Chat.ID, "Alert journal unavailable")
		return
	}
	if len(alerts) == 0 {
		c.reply(msg.Chat.ID, "No pump alerts recorded")
		return
	}
	c.reply(msg.Chat.ID, FormatRecentAlerts(alerts))
}

func (c *Client) reply(chatID int64, text string) {
	reply := tgbotapi.NewMessage(chatID, text)
	c.bot.Send(reply) //nolint:errcheck
}

// FormatRecentAlerts renders journaled alerts, newest first.
func FormatRecentAlerts(alerts []models.PumpAlert) string {
	var b strings.Builder
	b.WriteString("⚡ Recent pump alerts\n\n")
	for _, a := range alerts {
		fmt.Fprintf(&b, "%s %s %+.2f%% in %dm\n",
			a.DetectedAt.Format("2006-01-02 15:04"), a.Symbol, a.PctChange, a.HorizonMinutes)
	}
	return strings.TrimRight(b.String(), "\n")
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4) // pre-allocate with room for escapes
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
