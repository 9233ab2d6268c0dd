package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_ENV", "missing")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Port)
	}
	if cfg.Session.MaxRetries != 2 {
		t.Errorf("max_retries = %d, want 2", cfg.Session.MaxRetries)
	}
	if cfg.Session.MeterInterval != 16*time.Millisecond {
		t.Errorf("meter_interval = %v", cfg.Session.MeterInterval)
	}
	if cfg.Rooms.JoinTemplate != "meeting-%s" {
		t.Errorf("join_template = %q", cfg.Rooms.JoinTemplate)
	}
	if cfg.Session.AllowLocalFallback {
		t.Error("local fallback must be opt-in")
	}
}

func TestLoadEnvAndFlags(t *testing.T) {
	t.Setenv("CONFIG_ENV", "missing")
	t.Setenv("CONSULT_SESSION_MAX_RETRIES", "4")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int("port", 8080, "")
	if err := fs.Parse([]string{"--port=9090"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(fs)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Port)
	}
	if cfg.Session.MaxRetries != 4 {
		t.Errorf("max_retries = %d, want 4", cfg.Session.MaxRetries)
	}
}
