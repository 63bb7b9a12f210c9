package config

import "testing"

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")
	t.Setenv("ACCESS_KEY", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
	if cfg.AccessKey != "" {
		t.Fatalf("expected empty ACCESS_KEY when unset, got %q", cfg.AccessKey)
	}
}

func TestLoadDefaultsAndBools(t *testing.T) {
	t.Setenv("SESSION_TTL_HOURS", "")
	t.Setenv("FORECAST_TTL_SECONDS", "not-a-number")
	t.Setenv("STRICT_COMBOS", "true")
	t.Setenv("SECURE_COOKIES", "")

	cfg := Load()
	if cfg.SessionTTLHours != 24 {
		t.Fatalf("expected default session TTL 24h, got %d", cfg.SessionTTLHours)
	}
	if cfg.ForecastTTLSeconds != 60 {
		t.Fatalf("expected forecast TTL fallback 60s, got %d", cfg.ForecastTTLSeconds)
	}
	if !cfg.StrictCombos {
		t.Fatalf("expected STRICT_COMBOS=true to enable strict mode")
	}
	if cfg.SecureCookies {
		t.Fatalf("expected secure cookies off by default")
	}
}
