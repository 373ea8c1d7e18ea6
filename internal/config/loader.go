package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "billingd.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "BILLING_PORT")
	setString(&cfg.Server.APIToken, "BILLING_API_TOKEN")
	setString(&cfg.Server.AdminToken, "BILLING_ADMIN_TOKEN")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "BILLING_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "BILLING_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "BILLING_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "BILLING_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "BILLING_PG_HEALTH_CHECK")
	setString(&cfg.Logging.Level, "BILLING_LOG_LEVEL")
	setString(&cfg.Logging.Service, "BILLING_LOG_SERVICE")
	setString(&cfg.Card.WebhookSecret, "BILLING_CARD_WEBHOOK_SECRET")
	setString(&cfg.Card.APIBaseURL, "BILLING_CARD_API_URL")
	setString(&cfg.Card.APIKey, "BILLING_CARD_API_KEY")
	setDuration(&cfg.Card.APITimeout, "BILLING_CARD_API_TIMEOUT")
	setFloat64(&cfg.Card.FeePercent, "BILLING_CARD_FEE_PERCENT")
	setInt64(&cfg.Card.FeeFixedCents, "BILLING_CARD_FEE_FIXED_CENTS")
	setString(&cfg.Instant.WebhookSecret, "BILLING_INSTANT_WEBHOOK_SECRET")
	setString(&cfg.Instant.APIBaseURL, "BILLING_INSTANT_API_URL")
	setString(&cfg.Instant.APIKey, "BILLING_INSTANT_API_KEY")
	setDuration(&cfg.Instant.APITimeout, "BILLING_INSTANT_API_TIMEOUT")
	setString(&cfg.SMTP.Host, "BILLING_SMTP_HOST")
	setInt(&cfg.SMTP.Port, "BILLING_SMTP_PORT")
	setString(&cfg.SMTP.From, "BILLING_SMTP_FROM")
	setString(&cfg.SMTP.Password, "BILLING_SMTP_PASSWORD")
	setString(&cfg.SMTP.AdminEmail, "BILLING_ADMIN_EMAIL")
	setString(&cfg.SMTP.LoginURL, "BILLING_LOGIN_URL")
	setInt64(&cfg.Cache.MaxSizeMB, "BILLING_CACHE_SIZE_MB")
	setDuration(&cfg.Cache.TTL, "BILLING_CACHE_TTL")
	setDuration(&cfg.Sync.Timeout, "BILLING_SYNC_TIMEOUT")
	setString(&cfg.Plans.Path, "BILLING_PLANS_PATH")
	setString(&cfg.Telemetry.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setBool(&cfg.Telemetry.Insecure, "OTEL_EXPORTER_OTLP_INSECURE")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.Card.FeePercent < 0 || cfg.Card.FeeFixedCents < 0 {
		return errors.New("card fee rates must not be negative")
	}
	for method, pct := range cfg.Instant.FeePercents {
		if pct < 0 {
			return fmt.Errorf("instant.fee_percents.%s must not be negative", method)
		}
	}
	if cfg.Sync.Timeout <= 0 {
		return errors.New("sync.timeout must be positive")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
