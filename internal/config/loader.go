package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment contract.
const (
	EnvPrefix     = "LAPRANK_"
	EnvConfigPath = "LAPRANK_CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if LAPRANK_CONFIG is set
//  3. env (prefix LAPRANK_)
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)
	k := koanf.New(".")

	if path := os.Getenv(EnvConfigPath); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// LAPRANK_QUEUE_SIZE -> queue_size; underscores are kept to match the flat koanf tags.
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case strings.TrimSpace(c.AuthorityLogin) == "" || strings.TrimSpace(c.AuthorityCode) == "":
		return fmt.Errorf("%w: %w", ErrInvalidConfig, ErrMissingCredentials)
	case strings.TrimSpace(c.AuthorityURL) == "":
		return fmt.Errorf("%w: authority_url must not be empty", ErrInvalidConfig)
	case c.WindowTop < 0 || c.WindowSize <= c.WindowTop:
		return fmt.Errorf("%w: window_size (%d) must exceed window_top (%d)", ErrInvalidConfig, c.WindowSize, c.WindowTop)
	case c.RecordLimit < 1 || c.DisplayLimit < 1:
		return fmt.Errorf("%w: record_limit and display_limit must be positive", ErrInvalidConfig)
	case c.EventQueueSize < 1:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.SnapshotIntervalSeconds < 1:
		return fmt.Errorf("%w: snapshot_interval_s must be positive", ErrInvalidConfig)
	}
	return nil
}
