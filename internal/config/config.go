package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

const defaultDSN = "host=localhost user=postgres password=postgres dbname=flockkeeper port=5432 sslmode=disable"

type Config struct {
	HTTPPort          string
	DatabaseDSN       string
	JWTSecret         string
	CORSOrigins       string
	LogMode           string
	TokenTTL          time.Duration
	SideEffectTimeout time.Duration // budget for detached best-effort writes
}

// Load reads the environment, optionally seeded from envFile (or ./.env when
// envFile is empty), and validates the result.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
		}
	} else {
		// a missing .env is fine, the environment may carry everything
		_ = godotenv.Load()
	}

	tokenTTL, err := time.ParseDuration(getEnv("TOKEN_TTL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("TOKEN_TTL: %w", err)
	}
	effectTimeout, err := time.ParseDuration(getEnv("SIDE_EFFECT_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("SIDE_EFFECT_TIMEOUT: %w", err)
	}

	cfg := &Config{
		HTTPPort:          getEnv("HTTP_PORT", "8080"),
		DatabaseDSN:       getEnv("DATABASE_DSN", defaultDSN),
		JWTSecret:         getEnv("JWT_SECRET", ""),
		CORSOrigins:       getEnv("CORS_ALLOWED_ORIGINS", "*"),
		LogMode:           getEnv("LOG_MODE", "production"),
		TokenTTL:          tokenTTL,
		SideEffectTimeout: effectTimeout,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	switch {
	case c.HTTPPort == "":
		return errors.New("HTTP_PORT must not be empty")
	case c.DatabaseDSN == "":
		return errors.New("DATABASE_DSN must not be empty")
	case c.JWTSecret == "":
		return errors.New("JWT_SECRET must be provided")
	case len(c.JWTSecret) < 32:
		return errors.New("JWT_SECRET must be at least 32 characters")
	case c.TokenTTL <= 0:
		return errors.New("TOKEN_TTL must be positive")
	case c.SideEffectTimeout <= 0:
		return errors.New("SIDE_EFFECT_TIMEOUT must be positive")
	}
	return nil
}

// UsesDefaultDSN reports whether DATABASE_DSN fell back to the local default.
func (c *Config) UsesDefaultDSN() bool {
	return c.DatabaseDSN == defaultDSN
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
