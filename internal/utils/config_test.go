package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "cfg.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoadConfigFrom_Valid(t *testing.T) {
	p := writeConfig(t, `server:
  port: ":9090"
limits:
  max_payload_bytes: 1048576
raster:
  binary: /opt/poppler/bin/pdftoppm
  dpi: 300
  timeout_secs: 30
rate_limiter:
  user_limit: 10
  interval: 1m
`)
	cfg := LoadConfigFrom(p)
	if cfg.Server.Port != ":9090" {
		t.Fatalf("unexpected port: %q", cfg.Server.Port)
	}
	if cfg.Limits.MaxPayloadBytes != 1048576 {
		t.Fatalf("unexpected payload cap: %d", cfg.Limits.MaxPayloadBytes)
	}
	if cfg.Raster.Binary != "/opt/poppler/bin/pdftoppm" || cfg.Raster.DPI != 300 {
		t.Fatalf("unexpected raster config: %+v", cfg.Raster)
	}
	if cfg.RateLimiter.UserLimit != 10 || cfg.RateLimiter.Interval != time.Minute {
		t.Fatalf("unexpected rate limiter config: %+v", cfg.RateLimiter)
	}
}

func TestLoadConfigFrom_MissingFileUsesDefaults(t *testing.T) {
	cfg := LoadConfigFrom(filepath.Join(t.TempDir(), "absent.yaml"))
	if cfg.Server.Port != ":8080" {
		t.Fatalf("unexpected default port: %q", cfg.Server.Port)
	}
	if cfg.Limits.MaxPayloadBytes != 50*1024*1024 {
		t.Fatalf("unexpected default payload cap: %d", cfg.Limits.MaxPayloadBytes)
	}
	if cfg.Raster.Binary != "pdftoppm" || cfg.Raster.DPI != 150 || cfg.Raster.TimeoutSecs != 120 {
		t.Fatalf("unexpected raster defaults: %+v", cfg.Raster)
	}
}

func TestLoadConfigFrom_PartialFileKeepsDefaults(t *testing.T) {
	p := writeConfig(t, `raster:
  dpi: 96
`)
	cfg := LoadConfigFrom(p)
	if cfg.Raster.DPI != 96 {
		t.Fatalf("unexpected dpi: %d", cfg.Raster.DPI)
	}
	if cfg.Raster.Binary != "pdftoppm" {
		t.Fatalf("binary default lost: %q", cfg.Raster.Binary)
	}
	if cfg.Limits.MaxPayloadBytes != 50*1024*1024 {
		t.Fatalf("payload default lost: %d", cfg.Limits.MaxPayloadBytes)
	}
}

func TestLoadConfigFrom_PanicsOnInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		yml  string
	}{
		{name: "negative payload cap", yml: "limits:\n  max_payload_bytes: -1\n"},
		{name: "negative dpi", yml: "raster:\n  dpi: -10\n"},
		{name: "negative user limit", yml: "rate_limiter:\n  user_limit: -1\n"},
		{name: "not yaml", yml: "{{{"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := writeConfig(t, tc.yml)
			defer func() {
				if recover() == nil {
					t.Fatalf("expected panic")
				}
			}()
			_ = LoadConfigFrom(p)
		})
	}
}

func TestLoadConfig_UsesConfigPathEnv(t *testing.T) {
	p := writeConfig(t, `server:
  port: ":7001"
`)
	t.Setenv("CONFIG_PATH", p)
	cfg := LoadConfig()
	if cfg.Server.Port != ":7001" {
		t.Fatalf("expected CONFIG_PATH to be used, got %q", cfg.Server.Port)
	}
	if GetConfig().Server.Port != ":7001" {
		t.Fatalf("GetConfig must return the loaded config")
	}
}
