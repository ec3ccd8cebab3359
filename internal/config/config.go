// Package config loads app configuration from the environment and an
// optional .env file using Viper.
package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// Addr is the address the HTTP server listens on (e.g. :8080).
	Addr string `mapstructure:"DOCUMENTA_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DOCUMENTA_PG_DSN"`
	// AuthSecret is the primary token signing secret. Required.
	AuthSecret string `mapstructure:"DOCUMENTA_AUTH_SECRET"`
	// AuthSecretLegacy is the previous signing secret, set only during a
	// rotation window so tokens signed before the rotation expire naturally.
	AuthSecretLegacy string `mapstructure:"DOCUMENTA_AUTH_SECRET_LEGACY"`
	// TokenTTL is the session token lifetime (e.g. "8h").
	TokenTTL string `mapstructure:"DOCUMENTA_TOKEN_TTL"`
	// Env is the deployment environment ("development", "production").
	Env string `mapstructure:"DOCUMENTA_ENV"`
	// RateBurst and RatePerSec bound per-IP request rates on the API.
	RateBurst  int `mapstructure:"DOCUMENTA_RATE_BURST"`
	RatePerSec int `mapstructure:"DOCUMENTA_RATE_PER_SEC"`
}

const minSecretLength = 16

// Load reads .env (if present), then builds and validates Config from the
// environment. Env vars override .env values.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // missing .env is fine (e.g. in CI)

	v.AutomaticEnv()

	v.SetDefault("DOCUMENTA_ADDR", ":8080")
	v.SetDefault("DOCUMENTA_PG_DSN", "")
	v.SetDefault("DOCUMENTA_AUTH_SECRET", "")
	v.SetDefault("DOCUMENTA_AUTH_SECRET_LEGACY", "")
	v.SetDefault("DOCUMENTA_TOKEN_TTL", "8h")
	v.SetDefault("DOCUMENTA_ENV", "development")
	v.SetDefault("DOCUMENTA_RATE_BURST", 20)
	v.SetDefault("DOCUMENTA_RATE_PER_SEC", 10)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.Addr == "" {
		return nil, errors.New("config: DOCUMENTA_ADDR must be set")
	}
	if len(cfg.AuthSecret) < minSecretLength {
		return nil, errors.New("config: DOCUMENTA_AUTH_SECRET must be at least 16 characters")
	}
	if cfg.AuthSecretLegacy != "" && len(cfg.AuthSecretLegacy) < minSecretLength {
		return nil, errors.New("config: DOCUMENTA_AUTH_SECRET_LEGACY must be at least 16 characters")
	}
	if cfg.RateBurst <= 0 || cfg.RatePerSec <= 0 {
		return nil, errors.New("config: rate limit values must be positive")
	}
	return &cfg, nil
}

// SessionTTL parses TokenTTL as a duration. Returns 8h if unset or invalid.
func (c *Config) SessionTTL() time.Duration {
	d, err := time.ParseDuration(c.TokenTTL)
	if err != nil || d <= 0 {
		return 8 * time.Hour
	}
	return d
}

// Production reports whether the deployment environment is production. The
// session cookie is only marked Secure there.
func (c *Config) Production() bool {
	return c.Env == "production"
}
