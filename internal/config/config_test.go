package config

import (
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("ENCRYPTION_KEY", strings.Repeat("k", 32))
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Engine.TickInterval != 30*time.Second {
		t.Fatalf("expected 30s tick, got %v", cfg.Engine.TickInterval)
	}
	if cfg.Engine.ProbeMaxAttempts != 1 {
		t.Fatalf("expected single probe attempt by default, got %d", cfg.Engine.ProbeMaxAttempts)
	}
	if cfg.Engine.ConnectionSyncInterval != 0 {
		t.Fatalf("periodic sync should be off by default, got %v", cfg.Engine.ConnectionSyncInterval)
	}
	if cfg.Server.Address() != "0.0.0.0:8080" {
		t.Fatalf("unexpected address %s", cfg.Server.Address())
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("ENGINE_TICK_INTERVAL", "5")
	t.Setenv("MARKET_DATA_TIMEOUT", "750ms")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, http://b.test,")
	t.Setenv("GATEWAY_RATE_LIMIT_RPS", "2.5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Engine.TickInterval != 5*time.Second {
		t.Fatalf("bare seconds should parse, got %v", cfg.Engine.TickInterval)
	}
	if cfg.Engine.MarketDataTimeout != 750*time.Millisecond {
		t.Fatalf("unexpected timeout %v", cfg.Engine.MarketDataTimeout)
	}
	if len(cfg.CORS.AllowedOrigins) != 2 || cfg.CORS.AllowedOrigins[1] != "http://b.test" {
		t.Fatalf("unexpected origins %v", cfg.CORS.AllowedOrigins)
	}
	if cfg.Gateway.RateLimitRPS != 2.5 {
		t.Fatalf("unexpected rps %v", cfg.Gateway.RateLimitRPS)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing jwt secret", map[string]string{"JWT_SECRET": ""}},
		{"short encryption key", map[string]string{"ENCRYPTION_KEY": "short"}},
		{"zero probe attempts", map[string]string{"PROBE_MAX_ATTEMPTS": "0"}},
		{"bad storage driver", map[string]string{"STORAGE_DRIVER": "postgres"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestGatewayVenues(t *testing.T) {
	setRequired(t)
	t.Setenv("GATEWAY_VENUES", "alpha=http://alpha.test, broken, beta = http://beta.test,=http://nameless.test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Gateway.Venues) != 2 {
		t.Fatalf("expected 2 venues, got %v", cfg.Gateway.Venues)
	}
	if cfg.Gateway.Venues["beta"] != "http://beta.test" {
		t.Fatalf("unexpected beta url %q", cfg.Gateway.Venues["beta"])
	}
}
