// Package config loads the service configuration from the environment,
// with an optional YAML defaults file applied before the environment
// override, in the style of the rest of the ambient stack: explicit
// getEnv helpers and a Validate step the caller runs after Load.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the fully resolved, startup-validated service configuration.
type Config struct {
	Env                   string // dev, test, staging, prod
	HTTPAddr              string
	MetricsAddr           string
	DatabaseURL           string
	ApiKeyHashSecret      string
	WebhookSigningSecret  string
	AdminApiKey           string
	AllowedCORSOrigins    []string
	RateLimitPerMinute    int
	DebugLogging          bool
	AutoSchemaCreate      bool
	SigningKeySeedHex     string
	AnchorCommitFilePath  string
}

type yamlDefaults struct {
	Env                string   `yaml:"env"`
	HTTPAddr           string   `yaml:"http_addr"`
	MetricsAddr        string   `yaml:"metrics_addr"`
	RateLimitPerMinute int      `yaml:"rate_limit_per_minute"`
	DebugLogging       bool     `yaml:"debug_logging"`
	AutoSchemaCreate   bool     `yaml:"auto_schema_create"`
	AllowedCORSOrigins []string `yaml:"allowed_cors_origins"`
}

// Load resolves configuration from, in increasing precedence: compiled-in
// defaults, an optional YAML defaults file named by
// CONSENT_LEDGER_DEFAULTS_FILE, and then environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Env:                getEnv("ENV", "dev"),
		HTTPAddr:           ":8080",
		MetricsAddr:        ":9090",
		RateLimitPerMinute: 120,
		DebugLogging:       true,
		AutoSchemaCreate:   true,
	}

	if path := os.Getenv("CONSENT_LEDGER_DEFAULTS_FILE"); path != "" {
		if err := applyYAMLDefaults(cfg, path); err != nil {
			return nil, err
		}
	}

	cfg.Env = getEnv("ENV", cfg.Env)
	cfg.HTTPAddr = getEnv("HTTP_ADDR", cfg.HTTPAddr)
	cfg.MetricsAddr = getEnv("METRICS_ADDR", cfg.MetricsAddr)
	cfg.DatabaseURL = getEnv("DATABASE_URL", "")
	cfg.ApiKeyHashSecret = getEnv("API_KEY_HASH_SECRET", "")
	cfg.WebhookSigningSecret = getEnv("WEBHOOK_SIGNING_SECRET", "")
	cfg.AdminApiKey = getEnv("ADMIN_API_KEY", "")
	cfg.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", cfg.RateLimitPerMinute)
	cfg.DebugLogging = getEnvBool("DEBUG_LOGGING", cfg.DebugLogging)
	cfg.AutoSchemaCreate = getEnvBool("AUTO_SCHEMA_CREATE", cfg.AutoSchemaCreate)
	if origins := os.Getenv("ALLOWED_CORS_ORIGINS"); origins != "" {
		cfg.AllowedCORSOrigins = splitCSV(origins)
	}
	cfg.SigningKeySeedHex = getEnv("LEDGER_SIGNING_KEY_SEED_HEX", "")
	cfg.AnchorCommitFilePath = getEnv("ANCHOR_COMMIT_FILE_PATH", "anchor_commits.log")

	return cfg, nil
}

// Validate enforces the startup requirements that apply only in prod:
// a database URL, API-key hash secret, webhook signing secret, admin API
// key, allowed CORS origins, a positive rate limit, debug logging
// disabled, and auto-schema-create disabled.
func (c *Config) Validate() error {
	switch c.Env {
	case "dev", "test", "staging", "prod":
	default:
		return fmt.Errorf("config: ENV must be one of dev,test,staging,prod, got %q", c.Env)
	}

	if c.Env != "prod" {
		return nil
	}

	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.ApiKeyHashSecret == "" {
		missing = append(missing, "API_KEY_HASH_SECRET")
	}
	if c.WebhookSigningSecret == "" {
		missing = append(missing, "WEBHOOK_SIGNING_SECRET")
	}
	if c.AdminApiKey == "" {
		missing = append(missing, "ADMIN_API_KEY")
	}
	if len(c.AllowedCORSOrigins) == 0 {
		missing = append(missing, "ALLOWED_CORS_ORIGINS")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing required prod settings: %v", missing)
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("config: RATE_LIMIT_PER_MINUTE must be positive in prod")
	}
	if c.DebugLogging {
		return fmt.Errorf("config: DEBUG_LOGGING must be disabled in prod")
	}
	if c.AutoSchemaCreate {
		return fmt.Errorf("config: AUTO_SCHEMA_CREATE must be disabled in prod")
	}
	return nil
}

func applyYAMLDefaults(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read defaults file: %w", err)
	}
	var d yamlDefaults
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return fmt.Errorf("config: parse defaults file: %w", err)
	}
	if d.Env != "" {
		cfg.Env = d.Env
	}
	if d.HTTPAddr != "" {
		cfg.HTTPAddr = d.HTTPAddr
	}
	if d.MetricsAddr != "" {
		cfg.MetricsAddr = d.MetricsAddr
	}
	if d.RateLimitPerMinute != 0 {
		cfg.RateLimitPerMinute = d.RateLimitPerMinute
	}
	cfg.DebugLogging = d.DebugLogging
	cfg.AutoSchemaCreate = d.AutoSchemaCreate
	if len(d.AllowedCORSOrigins) > 0 {
		cfg.AllowedCORSOrigins = d.AllowedCORSOrigins
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func splitCSV(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
