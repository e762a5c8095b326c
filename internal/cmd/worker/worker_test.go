package worker

import (
	"flag"
	"testing"
	"time"
)

func TestParseConfig_ParsesDefaultsAndFlags(t *testing.T) {
	fs := flag.NewFlagSet("worker", flag.ContinueOnError)
	t.Setenv("STOREFRONT_WORKER_PORT", "9099")
	t.Setenv("STOREFRONT_REDIS_ADDR", "redis:6379")

	cfg, err := ParseConfig(fs, []string{"-data-dir", "state", "-poll-interval", "5s"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Port != 9099 {
		t.Fatalf("port = %d, want 9099", cfg.Port)
	}
	if cfg.RedisAddr != "redis:6379" {
		t.Fatalf("redis addr = %q, want %q", cfg.RedisAddr, "redis:6379")
	}
	if cfg.DataDir != "state" {
		t.Fatalf("data dir = %q, want %q", cfg.DataDir, "state")
	}
	if cfg.PollInterval != 5*time.Second {
		t.Fatalf("poll interval = %v, want %v", cfg.PollInterval, 5*time.Second)
	}
}

func TestParseConfig_Defaults(t *testing.T) {
	fs := flag.NewFlagSet("worker", flag.ContinueOnError)
	t.Setenv("STOREFRONT_WORKER_PORT", "")
	t.Setenv("STOREFRONT_DATA_DIR", "")
	t.Setenv("STOREFRONT_WORKER_POLL_INTERVAL", "")

	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Port != 8089 {
		t.Fatalf("port = %d, want 8089", cfg.Port)
	}
	if cfg.DataDir != "data" {
		t.Fatalf("data dir = %q, want %q", cfg.DataDir, "data")
	}
	if cfg.PollInterval != 30*time.Second {
		t.Fatalf("poll interval = %v, want %v", cfg.PollInterval, 30*time.Second)
	}
}
