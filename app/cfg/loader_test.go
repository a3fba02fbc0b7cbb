package cfg

import (
	"testing"
	"time"
)

func TestGetVersion(t *testing.T) {
	if GetVersion() == "" {
		t.Error("GetVersion should never return empty string")
	}
}

func TestParseDefaults(t *testing.T) {
	cfg, err := parse([]string{"--reader-account", "reader@example.com", "--reader-password", "secret"})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if cfg == nil {
		t.Fatal("Expected configuration, got nil")
	}

	if cfg.ReaderAccount != "reader@example.com" {
		t.Errorf("Expected account 'reader@example.com', got '%s'", cfg.ReaderAccount)
	}
	if cfg.ReaderBaseURL != "https://www.inoreader.com" {
		t.Errorf("Expected default reader URL, got '%s'", cfg.ReaderBaseURL)
	}
	if cfg.Sink != SinkInline {
		t.Errorf("Expected sink '%s', got '%s'", SinkInline, cfg.Sink)
	}
	if cfg.PageSize != 100 {
		t.Errorf("Expected page size 100, got %d", cfg.PageSize)
	}
	if cfg.SummaryLength != 200 {
		t.Errorf("Expected summary length 200, got %d", cfg.SummaryLength)
	}
	if cfg.HTTPTimeout != 30*time.Second {
		t.Errorf("Expected HTTP timeout 30s, got %s", cfg.HTTPTimeout)
	}
	if cfg.FallbackCategory != "Uncategorized" {
		t.Errorf("Expected fallback category 'Uncategorized', got '%s'", cfg.FallbackCategory)
	}
	if cfg.FeedStatus != "approved" {
		t.Errorf("Expected feed status 'approved', got '%s'", cfg.FeedStatus)
	}
	if Get() != cfg {
		t.Error("Expected Get to return the last loaded configuration")
	}
}

func TestParseRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing password", []string{"--reader-account", "a"}},
		{"unknown sink", []string{"--reader-account", "a", "--reader-password", "b", "--sink", "kafka"}},
		{"zero page size", []string{"--reader-account", "a", "--reader-password", "b", "--page-size", "0"}},
		{"half gateway credentials", []string{"--reader-account", "a", "--reader-password", "b", "--gateway-client-id", "id"}},
		{"negative lookback", []string{"--reader-account", "a", "--reader-password", "b", "--item-lookback", "-1h"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parse(tt.args); err == nil {
				t.Errorf("Expected error for %s", tt.name)
			}
		})
	}
}
