package telegram

import (
	"strings"
	"testing"
	"time"

	"futsentry/internal/models"
)

func TestEscapeMarkdownV2(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello World", "Hello World"},
		{"BTCUSDT 1h: long 62.35%", "BTCUSDT 1h: long 62\\.35%"},
		{"spot +0.42%", "spot \\+0\\.42%"},
		{"Test*bold*", "Test\\*bold\\*"},
		{"[link](url)", "\\[link\\]\\(url\\)"},
		{"~strikethrough~", "\\~strikethrough\\~"},
		{"`code`", "\\`code\\`"},
		{">blockquote", "\\>blockquote"},
		{"=equal|pipe", "\\=equal\\|pipe"},
		{"{brace}", "\\{brace\\}"},
		{"end!", "end\\!"},
		{"", ""},
		{"_*[]()~`>#+-=|{}.!", "\\_\\*\\[\\]\\(\\)\\~\\`\\>\\#\\+\\-\\=\\|\\{\\}\\.\\!"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := escapeMarkdownV2(tt.input)
			if result != tt.expected {
				t.Errorf("escapeMarkdownV2(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestNewClient_InvalidChatID(t *testing.T) {
	// The bot token validation happens first (network call), so we use a
	// clearly invalid token and chat ID to exercise the error path.
	_, err := NewClient("", "not-a-number", 3, time.Second, nil, nil, nil)
	if err == nil {
		t.Error("Expected error for invalid client parameters, got nil")
	}
}

func TestFormatRecentAlerts(t *testing.T) {
	at := time.Date(2026, 9, 1, 14, 30, 0, 0, time.UTC)
	alerts := []models.PumpAlert{
		{Symbol: "BTCUSDT", PctChange: 2.67, HorizonMinutes: 5, DetectedAt: at},
		{Symbol: "SOLUSDT", PctChange: 4.10, HorizonMinutes: 5, DetectedAt: at.Add(-time.Hour)},
	}

	text := FormatRecentAlerts(alerts)
	for _, want := range []string{"BTCUSDT", "+2.67%", "SOLUSDT", "+4.10%", "in 5m", "2026-09-01 14:30"} {
		if !strings.Contains(text, want) {
			t.Errorf("formatted alerts %q missing %q", text, want)
		}
	}
	if strings.HasSuffix(text, "\n") {
		t.Error("formatted alerts should not end with a newline")
	}
}
