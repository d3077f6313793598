package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadEnvConfig_Defaults(t *testing.T) {
	cfg, err := LoadEnvConfig()
	if err != nil {
		t.Fatalf("LoadEnvConfig: %v", err)
	}
	if cfg.FetchTimeout != 30*time.Second {
		t.Errorf("FetchTimeout = %v, want 30s", cfg.FetchTimeout)
	}
	if cfg.DialTimeout != 10*time.Second {
		t.Errorf("DialTimeout = %v, want 10s", cfg.DialTimeout)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 5s", cfg.ShutdownTimeout)
	}
	if cfg.MaxConnsPerListener != 256 {
		t.Errorf("MaxConnsPerListener = %d, want 256", cfg.MaxConnsPerListener)
	}
	if cfg.RosterCacheTTL != time.Minute {
		t.Errorf("RosterCacheTTL = %v, want 1m", cfg.RosterCacheTTL)
	}
	if cfg.UserAgent != "loopgate" {
		t.Errorf("UserAgent = %q", cfg.UserAgent)
	}
	if cfg.StateDir == "" {
		t.Error("StateDir should have a default")
	}
}

func TestLoadEnvConfig_Overrides(t *testing.T) {
	t.Setenv("LOOPGATE_STATE_DIR", "/tmp/loopgate-test")
	t.Setenv("LOOPGATE_FETCH_TIMEOUT", "90s")
	t.Setenv("LOOPGATE_MAX_CONNS_PER_LISTENER", "8")
	t.Setenv("LOOPGATE_SHUTDOWN_TIMEOUT", "2s")

	cfg, err := LoadEnvConfig()
	if err != nil {
		t.Fatalf("LoadEnvConfig: %v", err)
	}
	if cfg.StateDir != "/tmp/loopgate-test" {
		t.Errorf("StateDir = %q", cfg.StateDir)
	}
	if cfg.FetchTimeout != 90*time.Second {
		t.Errorf("FetchTimeout = %v, want 90s", cfg.FetchTimeout)
	}
	if cfg.MaxConnsPerListener != 8 {
		t.Errorf("MaxConnsPerListener = %d, want 8", cfg.MaxConnsPerListener)
	}
	if cfg.ShutdownTimeout != 2*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 2s", cfg.ShutdownTimeout)
	}
}

func TestLoadEnvConfig_InvalidValues(t *testing.T) {
	t.Setenv("LOOPGATE_DIAL_TIMEOUT", "soon")
	t.Setenv("LOOPGATE_MAX_CONNS_PER_LISTENER", "-1")

	_, err := LoadEnvConfig()
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "LOOPGATE_DIAL_TIMEOUT") {
		t.Errorf("error should name the bad duration: %v", err)
	}
	if !strings.Contains(msg, "LOOPGATE_MAX_CONNS_PER_LISTENER") {
		t.Errorf("error should name the non-positive limit: %v", err)
	}
}
