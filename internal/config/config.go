// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tillgate Contributors

// Package config loads tilld configuration from a YAML file, environment
// variables, and command-line flags, in that order of increasing precedence.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/tillgate/tilld/internal/auth"
)

// EnvPrefix is the prefix for environment variable overrides,
// e.g. TILLD_DATABASE_URL maps to the database.url key.
const EnvPrefix = "TILLD_"

// Config holds the full tilld runtime configuration.
type Config struct {
	Env         string    `koanf:"env"`
	ListenAddr  string    `koanf:"listen_addr"`
	MetricsAddr string    `koanf:"metrics_addr"`
	LogFormat   string    `koanf:"log_format"`
	Database    Database  `koanf:"database"`
	JWT         JWT       `koanf:"jwt"`
	Sessions    Sessions  `koanf:"sessions"`
	Hashing     Hashing   `koanf:"hashing"`
	RateLimit   RateLimit `koanf:"rate_limit"`
}

// Database holds connection settings.
type Database struct {
	URL string `koanf:"url"`
}

// JWT holds access token signing settings. Secret, Issuer, and Audience
// have no defaults and must be provided.
type JWT struct {
	Secret    string        `koanf:"secret"`
	Issuer    string        `koanf:"issuer"`
	Audience  string        `koanf:"audience"`
	AccessTTL time.Duration `koanf:"access_ttl"`
}

// Sessions holds refresh and reset token lifetimes.
type Sessions struct {
	RefreshTTL time.Duration `koanf:"refresh_ttl"`
	ResetTTL   time.Duration `koanf:"reset_ttl"`
}

// Hashing holds password hashing settings.
type Hashing struct {
	Iterations int `koanf:"iterations"`
}

// RateLimit holds the fixed-window limiter settings for auth endpoints.
type RateLimit struct {
	Window time.Duration `koanf:"window"`
	Max    int           `koanf:"max"`
}

// Default returns the configuration defaults. Signing settings are
// deliberately absent; Validate rejects a config without them.
func Default() Config {
	return Config{
		Env:         "development",
		ListenAddr:  ":8080",
		MetricsAddr: ":9090",
		LogFormat:   "json",
		JWT: JWT{
			AccessTTL: auth.AccessTokenTTL,
		},
		Sessions: Sessions{
			RefreshTTL: auth.RefreshTokenTTL,
			ResetTTL:   auth.ResetTokenTTL,
		},
		Hashing: Hashing{
			Iterations: auth.DefaultIterations,
		},
		RateLimit: RateLimit{
			Window: auth.DefaultRateLimitWindow,
			Max:    auth.DefaultRateLimitMax,
		},
	}
}

// Load builds a Config from the given YAML file (optional), TILLD_*
// environment variables, and flags. A missing file is ignored so that
// env-only deployments work; any other read error is fatal.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if !os.IsNotExist(err) {
				return nil, oops.Code("CONFIG_LOAD_FAILED").
					With("path", path).
					Wrap(err)
			}
		}
	}

	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil)
	if err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "env").Wrap(err)
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("operation", "unmarshal config").Wrap(err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that required settings are present and sane.
func (c *Config) Validate() error {
	missing := oops.Code(auth.CodeConfigMissing)
	switch {
	case c.Database.URL == "":
		return missing.Errorf("database.url must be set")
	case c.JWT.Secret == "":
		return missing.Errorf("jwt.secret must be set")
	case c.JWT.Issuer == "":
		return missing.Errorf("jwt.issuer must be set")
	case c.JWT.Audience == "":
		return missing.Errorf("jwt.audience must be set")
	}

	invalid := oops.Code(auth.CodeInvalidInput)
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return invalid.Errorf("log_format must be 'json' or 'text', got %q", c.LogFormat)
	}
	if c.JWT.AccessTTL <= 0 {
		return invalid.Errorf("jwt.access_ttl must be positive, got %s", c.JWT.AccessTTL)
	}
	if c.Sessions.RefreshTTL <= 0 {
		return invalid.Errorf("sessions.refresh_ttl must be positive, got %s", c.Sessions.RefreshTTL)
	}
	if c.Sessions.ResetTTL <= 0 {
		return invalid.Errorf("sessions.reset_ttl must be positive, got %s", c.Sessions.ResetTTL)
	}
	if c.Hashing.Iterations < auth.MinIterations {
		return invalid.Errorf("hashing.iterations must be at least %d, got %d", auth.MinIterations, c.Hashing.Iterations)
	}
	if c.RateLimit.Window <= 0 || c.RateLimit.Max <= 0 {
		return invalid.Errorf("rate_limit.window and rate_limit.max must be positive")
	}
	return nil
}

// Production reports whether the config targets a production environment.
// Non-production deployments expose development conveniences such as
// returning password reset tokens in API responses.
func (c *Config) Production() bool {
	return strings.EqualFold(c.Env, "production")
}
