package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("loading defaults should succeed: %v", err)
	}

	if cfg.Scheduler.Interval != 5*time.Minute {
		t.Fatalf("expected default interval 5m, got %s", cfg.Scheduler.Interval)
	}
	if cfg.Rebalance.BufferPct != 10 {
		t.Fatalf("expected default buffer 10%%, got %d", cfg.Rebalance.BufferPct)
	}
	if cfg.Rebalance.ThresholdMicro != 1_000_000 {
		t.Fatalf("expected default threshold 1,000,000, got %d", cfg.Rebalance.ThresholdMicro)
	}
	if cfg.Rebalance.FallbackWindow != 168*time.Hour {
		t.Fatalf("expected default fallback window 168h, got %s", cfg.Rebalance.FallbackWindow)
	}
	if cfg.LiFi.BaseURL != "https://li.quest/v1" {
		t.Fatalf("unexpected default lifi base url %s", cfg.LiFi.BaseURL)
	}
}

func TestValidateRejectsBadBuffer(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("loading defaults should succeed: %v", err)
	}

	cfg.Rebalance.BufferPct = 101
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "buffer_pct") {
		t.Fatalf("expected buffer_pct error, got %v", err)
	}
}

func TestValidateRejectsSameChainIDs(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("loading defaults should succeed: %v", err)
	}

	cfg.Chains.A.ChainID = 8453
	cfg.Chains.B.ChainID = 8453
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "chain_id") {
		t.Fatalf("expected chain id error, got %v", err)
	}
}

func TestValidateTelegramRequiresCredentials(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("loading defaults should succeed: %v", err)
	}

	cfg.Alerting.Telegram.Enabled = true
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "bot_token") {
		t.Fatalf("expected bot_token error, got %v", err)
	}
}

func TestResolveMaxPoints(t *testing.T) {
	cfg := &Config{Export: ExportConfig{MaxDataPoints: 500}}

	if got := cfg.ResolveMaxPoints(0); got != 500 {
		t.Fatalf("expected config default 500, got %d", got)
	}
	if got := cfg.ResolveMaxPoints(25); got != 25 {
		t.Fatalf("expected override 25, got %d", got)
	}
}
