package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "ALLOWED_ORIGIN", "DATABASE_URL", "REDIS_ADDR", "REDIS_DB",
		"DEFAULT_OUTLET_ID", "SETTINGS_TTL_SECONDS", "AUTH_SECRET",
		"ACCESS_TOKEN_TTL_MINUTES", "MANAGER_PIN",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.AllowedOrigin != "http://127.0.0.1:3000" {
		t.Fatalf("unexpected default origin: %s", cfg.AllowedOrigin)
	}
	if cfg.OutletID != "outlet-pusat" {
		t.Fatalf("unexpected default outlet: %s", cfg.OutletID)
	}
	if cfg.SettingsTTLSeconds != 300 {
		t.Fatalf("expected default settings ttl 300, got %d", cfg.SettingsTTLSeconds)
	}
	if cfg.AccessTokenTTLMinutes != 480 {
		t.Fatalf("expected default token ttl 480, got %d", cfg.AccessTokenTTLMinutes)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("unexpected address: %s", cfg.Address())
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ALLOWED_ORIGIN", "https://pos.example.com")
	t.Setenv("DATABASE_URL", "postgres://laundri:rahasia@db:5432/laundripos")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("DEFAULT_OUTLET_ID", "outlet-timur")
	t.Setenv("SETTINGS_TTL_SECONDS", "60")
	t.Setenv("AUTH_SECRET", "  secret-with-spaces  ")
	t.Setenv("MANAGER_PIN", " 987123 ")

	cfg := Load()
	if cfg.Port != "9090" || cfg.AllowedOrigin != "https://pos.example.com" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.RedisDB != 2 || cfg.RedisAddr != "redis:6379" {
		t.Fatalf("unexpected redis config: %+v", cfg)
	}
	if cfg.OutletID != "outlet-timur" || cfg.SettingsTTLSeconds != 60 {
		t.Fatalf("unexpected outlet config: %+v", cfg)
	}
	if cfg.AuthSecret != "secret-with-spaces" {
		t.Fatalf("expected trimmed secret, got %q", cfg.AuthSecret)
	}
	if cfg.ManagerPIN != "987123" {
		t.Fatalf("expected trimmed pin, got %q", cfg.ManagerPIN)
	}
}

func TestLoadRejectsBadNumbers(t *testing.T) {
	t.Setenv("SETTINGS_TTL_SECONDS", "bukan-angka")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "-5")

	cfg := Load()
	if cfg.SettingsTTLSeconds != 300 {
		t.Fatalf("expected fallback ttl 300, got %d", cfg.SettingsTTLSeconds)
	}
	if cfg.AccessTokenTTLMinutes != 480 {
		t.Fatalf("expected fallback token ttl 480, got %d", cfg.AccessTokenTTLMinutes)
	}
}
