package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Server.Port != "8080" {
		t.Errorf("expected port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Postgres.MaxConns != 15 {
		t.Errorf("expected max_conns 15, got %d", cfg.Postgres.MaxConns)
	}
	if cfg.Card.FeePercent != 2.9 || cfg.Card.FeeFixedCents != 30 {
		t.Errorf("expected card fee 2.9%% + 30, got %v + %d", cfg.Card.FeePercent, cfg.Card.FeeFixedCents)
	}
	if cfg.Instant.FeePercents["pix"] != 0.99 {
		t.Errorf("expected pix fee 0.99, got %v", cfg.Instant.FeePercents["pix"])
	}
	if cfg.Cache.TTL != 5*time.Minute {
		t.Errorf("expected cache ttl 5m, got %v", cfg.Cache.TTL)
	}
}

func TestLoadYAMLOverride(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "test.yaml")

	content := `
server:
  port: "9090"
  api_token: "tok"
card:
  webhook_secret: "whsec_x"
  fee_percent: 3.4
instant:
  fee_percents:
    pix: 1.19
logging:
  level: "debug"
`
	if err := os.WriteFile(yamlPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Defaults()
	if err := loadYAML(&cfg, yamlPath); err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Card.WebhookSecret != "whsec_x" {
		t.Errorf("expected webhook secret set, got %s", cfg.Card.WebhookSecret)
	}
	if cfg.Card.FeePercent != 3.4 {
		t.Errorf("expected card fee 3.4, got %v", cfg.Card.FeePercent)
	}
	if cfg.Instant.FeePercents["pix"] != 1.19 {
		t.Errorf("expected pix fee 1.19, got %v", cfg.Instant.FeePercents["pix"])
	}
	// Unchanged fields keep defaults
	if cfg.Postgres.MaxConns != 15 {
		t.Errorf("expected default max_conns, got %d", cfg.Postgres.MaxConns)
	}
}

func TestLoadYAMLMissing(t *testing.T) {
	cfg := Defaults()
	err := loadYAML(&cfg, "/nonexistent/path.yaml")
	if err != nil {
		t.Errorf("missing YAML should not error, got %v", err)
	}
}

func TestEnvOverride(t *testing.T) {
	cfg := Defaults()

	t.Setenv("BILLING_PORT", "7070")
	t.Setenv("DATABASE_URL", "postgres://test:test@db:5432/test")
	t.Setenv("BILLING_CARD_WEBHOOK_SECRET", "whsec_env")
	t.Setenv("BILLING_CARD_FEE_PERCENT", "3.25")
	t.Setenv("BILLING_SYNC_TIMEOUT", "10s")

	loadEnv(&cfg)

	if cfg.Server.Port != "7070" {
		t.Errorf("expected port 7070, got %s", cfg.Server.Port)
	}
	if cfg.Postgres.DSN != "postgres://test:test@db:5432/test" {
		t.Errorf("expected test DSN, got %s", cfg.Postgres.DSN)
	}
	if cfg.Card.WebhookSecret != "whsec_env" {
		t.Errorf("expected env webhook secret, got %s", cfg.Card.WebhookSecret)
	}
	if cfg.Card.FeePercent != 3.25 {
		t.Errorf("expected card fee 3.25, got %v", cfg.Card.FeePercent)
	}
	if cfg.Sync.Timeout != 10*time.Second {
		t.Errorf("expected sync timeout 10s, got %v", cfg.Sync.Timeout)
	}
}

func TestValidateRequired(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.DSN = ""
	if err := validate(&cfg); err == nil {
		t.Errorf("expected error for empty DSN")
	}

	cfg = Defaults()
	cfg.Card.FeePercent = -1
	if err := validate(&cfg); err == nil {
		t.Errorf("expected error for negative card fee")
	}

	cfg = Defaults()
	cfg.Instant.FeePercents["pix"] = -0.5
	if err := validate(&cfg); err == nil {
		t.Errorf("expected error for negative instant fee")
	}

	cfg = Defaults()
	cfg.Sync.Timeout = 0
	if err := validate(&cfg); err == nil {
		t.Errorf("expected error for zero sync timeout")
	}

	if err := validate(func() *Config { c := Defaults(); return &c }()); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}
