package config

import "testing"

func TestLoadReadsCriticalEnvKeys(t *testing.T) {
	t.Setenv("SKALD_DB_DSN", "host=localhost user=test dbname=test sslmode=disable")
	t.Setenv("SKALD_JWT_SIGNING_KEY", "supersecret")
	t.Setenv("SKALD_ENV", "development")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DBDSN == "" {
		t.Fatal("expected DB DSN to be set")
	}
	if cfg.JWTSigningKey != "supersecret" {
		t.Fatalf("unexpected jwt signing key: %q", cfg.JWTSigningKey)
	}
	if cfg.PreloadWindow.Seconds() != 60 {
		t.Fatalf("unexpected preload window default: %s", cfg.PreloadWindow)
	}
}

func TestLoadRejectsUnknownBackends(t *testing.T) {
	t.Setenv("SKALD_DB_DSN", "file::memory:?cache=shared")
	t.Setenv("SKALD_JWT_SIGNING_KEY", "supersecret")
	t.Setenv("SKALD_DB_BACKEND", "oracle")

	if _, err := Load(); err == nil {
		t.Fatal("expected config load to fail for unknown database backend")
	}

	t.Setenv("SKALD_DB_BACKEND", "sqlite")
	t.Setenv("SKALD_EVENT_MIRROR", "kafka")
	if _, err := Load(); err == nil {
		t.Fatal("expected config load to fail for unknown event mirror backend")
	}
}

func TestLoadProductionRequiresStrongSigningKey(t *testing.T) {
	t.Setenv("SKALD_DB_DSN", "host=localhost user=test dbname=test sslmode=disable")
	t.Setenv("SKALD_JWT_SIGNING_KEY", "short")
	t.Setenv("SKALD_ENV", "production")

	if _, err := Load(); err == nil {
		t.Fatal("expected production config load to fail with a short signing key")
	}

	t.Setenv("SKALD_JWT_SIGNING_KEY", "0123456789abcdef0123456789abcdef")
	if _, err := Load(); err != nil {
		t.Fatalf("expected production config load with strong key to succeed: %v", err)
	}
}
