package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Addr != ":8080" {
		t.Fatalf("addr = %q, want :8080", cfg.Server.Addr)
	}
	if cfg.Eta.Provider != "none" {
		t.Fatalf("eta provider = %q, want none", cfg.Eta.Provider)
	}
	if cfg.Monitor.WindowBefore != 15*time.Minute || cfg.Monitor.WindowAfter != 180*time.Minute {
		t.Fatalf("monitor window = %v/%v, want 15m/180m", cfg.Monitor.WindowBefore, cfg.Monitor.WindowAfter)
	}
	if cfg.Monitor.DedupWindow != 10*time.Minute {
		t.Fatalf("dedup window = %v, want 10m", cfg.Monitor.DedupWindow)
	}
	if cfg.WhatsApp.Enabled {
		t.Fatal("whatsapp dispatch enabled by default")
	}
	if cfg.IsProduction() {
		t.Fatal("default environment reported as production")
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("ETA_PROVIDER", "OSRM")
	t.Setenv("MONITOR_BATCH_SIZE", "50")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("MONITOR_SECRET", "m-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Eta.Provider != "osrm" {
		t.Fatalf("eta provider = %q, want osrm (lowercased)", cfg.Eta.Provider)
	}
	if cfg.Monitor.BatchSize != 50 {
		t.Fatalf("batch size = %d, want 50", cfg.Monitor.BatchSize)
	}
	if !cfg.IsProduction() {
		t.Fatal("production environment not detected")
	}
	if cfg.Secrets.Monitor != "m-secret" {
		t.Fatalf("monitor secret = %q", cfg.Secrets.Monitor)
	}
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	t.Setenv("ETA_PROVIDER", "waze")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unsupported provider")
	}
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("MONITOR_BATCH_SIZE", "not-a-number")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Monitor.BatchSize != 200 {
		t.Fatalf("batch size = %d, want fallback 200", cfg.Monitor.BatchSize)
	}
}
