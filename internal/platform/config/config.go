// Copyright (c) 2026 1move Community. All rights reserved.

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis) via constructors.
  - Zero Hidden State: No global variables are used to store config.

This ensures the application is Twelve-Factor compliant by storing config in the env.
*/
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// # Configuration Schema

// Config holds all runtime configuration for the affiliate platform API server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`
	BaseURL     string `env:"BASE_URL"     envDefault:"http://localhost:8080"`

	// Relational Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// Key-Value Store (Redis) — shared login-throttle counters.
	// Optional: when empty, the process falls back to the in-memory throttle.
	RedisURL string `env:"REDIS_URL"`

	// Token signing. The secret is process-wide, loaded once at startup,
	// and never rotated during a process lifetime.
	JWTSecret      string        `env:"JWT_SECRET,required"`
	AccessTokenTTL time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"30m"`

	// Single-use token lifetimes
	VerificationCodeTTL time.Duration `env:"VERIFICATION_CODE_TTL" envDefault:"15m"`
	ResetTokenTTL       time.Duration `env:"RESET_TOKEN_TTL"       envDefault:"1h"`

	// Login throttling
	ThrottleWindow      time.Duration `env:"LOGIN_THROTTLE_WINDOW"       envDefault:"300s"`
	ThrottleMaxAttempts int           `env:"LOGIN_THROTTLE_MAX_ATTEMPTS" envDefault:"10"`

	// RequireVerifiedEmail controls whether an account must have a confirmed
	// email address before it can log in. This is an explicit policy switch:
	// there is no auto-verify fallback in any environment.
	RequireVerifiedEmail bool `env:"REQUIRE_VERIFIED_EMAIL" envDefault:"true"`

	// Bootstrap admin account, created at startup when both are set.
	AdminEmail    string `env:"ADMIN_EMAIL"`
	AdminPassword string `env:"ADMIN_PASSWORD"`

	// Cross-Origin Resource Sharing: exact origins allowed in addition to
	// the production domain, comma separated.
	ExtraOrigins []string `env:"EXTRA_ORIGINS" envSeparator:","`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if cfg.ThrottleMaxAttempts <= 0 {
		return nil, fmt.Errorf("config: LOGIN_THROTTLE_MAX_ATTEMPTS must be positive, got %d", cfg.ThrottleMaxAttempts)
	}

	return cfg, nil
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
