// Package config loads service configuration from .env, an optional YAML file and the
// environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	yaml "gopkg.in/yaml.v3"
)

type Config struct {
	Port        string `yaml:"port"`
	DatabaseURL string `yaml:"databaseUrl"`
	DBMigrate   bool   `yaml:"dbMigrate"`
	RedisURL    string `yaml:"redisUrl"`

	RateRPS   float64 `yaml:"rateRps"`
	RateBurst int     `yaml:"rateBurst"`

	WebhookMaxAttempts int `yaml:"webhookMaxAttempts"`

	// AuthHMACSecret enables HS256 bearer tokens; empty means header identity only.
	AuthHMACSecret string `yaml:"authHmacSecret"`

	Solver SolverConfig `yaml:"solver"`

	LogFormat string `yaml:"logFormat"` // text, json
	LogLevel  string `yaml:"logLevel"`
}

// SolverConfig bounds what a single optimize request may ask for.
type SolverConfig struct {
	TimeBudgetMs  int `yaml:"timeBudgetMs"`
	MaxNodes      int `yaml:"maxNodes"`
	MaxOrders     int `yaml:"maxOrders"`
	MaxFacilities int `yaml:"maxFacilities"`
}

// TimeBudget returns the default per-request search budget.
func (c SolverConfig) TimeBudget() time.Duration {
	return time.Duration(c.TimeBudgetMs) * time.Millisecond
}

func Default() Config {
	return Config{
		Port:               "8080",
		DBMigrate:          true,
		RateRPS:            5,
		RateBurst:          10,
		WebhookMaxAttempts: 10,
		Solver: SolverConfig{
			TimeBudgetMs:  5000,
			MaxNodes:      50_000_000,
			MaxOrders:     20,
			MaxFacilities: 10,
		},
		LogFormat: "text",
		LogLevel:  "info",
	}
}

// Load builds the configuration. A missing .env file is not an error.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load config: read .env: %w", err)
	}

	cfg := Default()
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("load config: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("load config: parse %q: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.Getenv); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	setString := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) error {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}

	setString("PORT", &c.Port)
	setString("DATABASE_URL", &c.DatabaseURL)
	setString("REDIS_URL", &c.RedisURL)
	setString("AUTH_HMAC_SECRET", &c.AuthHMACSecret)
	setString("LOG_FORMAT", &c.LogFormat)
	setString("LOG_LEVEL", &c.LogLevel)

	if v := strings.TrimSpace(getenv("DB_MIGRATE")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("DB_MIGRATE: %w", err)
		}
		c.DBMigrate = b
	}
	if v := strings.TrimSpace(getenv("RATE_RPS")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("RATE_RPS: %w", err)
		}
		c.RateRPS = f
	}

	for key, dst := range map[string]*int{
		"RATE_BURST":            &c.RateBurst,
		"WEBHOOK_MAX_ATTEMPTS":  &c.WebhookMaxAttempts,
		"SOLVER_TIME_BUDGET_MS": &c.Solver.TimeBudgetMs,
		"SOLVER_MAX_NODES":      &c.Solver.MaxNodes,
		"MAX_ORDERS":            &c.Solver.MaxOrders,
		"MAX_FACILITIES":        &c.Solver.MaxFacilities,
	} {
		if err := setInt(key, dst); err != nil {
			return err
		}
	}
	return nil
}

func (c Config) Validate() error {
	if c.Port == "" {
		return errors.New("port must be set")
	}
	if c.RateRPS <= 0 || c.RateBurst <= 0 {
		return fmt.Errorf("rate limit must be positive (rps=%v burst=%d)", c.RateRPS, c.RateBurst)
	}
	if c.WebhookMaxAttempts <= 0 {
		return fmt.Errorf("webhookMaxAttempts must be > 0, got %d", c.WebhookMaxAttempts)
	}
	if c.Solver.TimeBudgetMs < 0 || c.Solver.MaxNodes < 0 {
		return errors.New("solver budgets must be >= 0")
	}
	if c.Solver.MaxOrders <= 0 || c.Solver.MaxFacilities <= 0 {
		return fmt.Errorf("solver size limits must be > 0 (maxOrders=%d maxFacilities=%d)", c.Solver.MaxOrders, c.Solver.MaxFacilities)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("logFormat must be text or json, got %q", c.LogFormat)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// NewLogger builds the service logger.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return l, fmt.Errorf("logLevel: %w", err)
	}
	return l, nil
}
