// Package config loads classver settings from the environment and purge
// properties from YAML files.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"

	"github.com/roach88/classver/internal/txn"
	"github.com/roach88/classver/internal/versioning"
)

// Config holds process settings. Command-line flags override it.
type Config struct {
	// DB is the path of the SQLite history database.
	DB string `env:"CLASSVER_DB" envDefault:"classver.db"`

	// ObjectPrefix prefixes every object name.
	ObjectPrefix string `env:"CLASSVER_OBJECT_PREFIX" envDefault:"class:"`

	// UseClassSubDir places documents under "classification/".
	UseClassSubDir bool `env:"CLASSVER_USE_CLASS_SUBDIR" envDefault:"false"`

	// Actor is recorded as the author of every revision.
	Actor string `env:"CLASSVER_ACTOR" envDefault:"classver"`

	// Properties is an optional YAML file of purge properties.
	Properties string `env:"CLASSVER_PROPERTIES"`

	// CommitMode is "node" or "object".
	CommitMode string `env:"CLASSVER_COMMIT_MODE" envDefault:"node"`
}

// ParseEnv loads a Config from environment variables and validates it.
func ParseEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field values that env parsing cannot.
func (c Config) Validate() error {
	if c.DB == "" {
		return fmt.Errorf("config: database path is empty")
	}
	if _, err := txn.ParseMode(c.CommitMode); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Mode returns the parsed commit mode. Call Validate first.
func (c Config) Mode() txn.Mode {
	m, _ := txn.ParseMode(c.CommitMode)
	return m
}

// ManagerOptions maps the storage settings onto versioning options.
func (c Config) ManagerOptions() versioning.Options {
	return versioning.Options{
		Prefix:         c.ObjectPrefix,
		UseClassSubDir: c.UseClassSubDir,
		Actor:          c.Actor,
	}
}
