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

const (
	envPrefix  = "POVELC_"
	envFileVar = "POVELC_CONFIG"
)

var listKeys = map[string]struct{}{ //nolint:gochecknoglobals // lookup table
	"allowed_origins": {},
}

// splitList turns "a, b,,c" into [a b c].
func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if POVELC_CONFIG is set
//  3. env (prefix POVELC_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv(envFileVar); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// POVELC_RATE_LIMIT_WINDOW -> rate_limit_window (flat keys).
	// List keys take comma-separated values.
	envProvider := env.ProviderWithValue(envPrefix, ".", func(key, value string) (string, interface{}) {
		key = strings.TrimPrefix(strings.ToLower(key), strings.ToLower(envPrefix))
		if _, ok := listKeys[key]; ok {
			return key, splitList(value)
		}
		return key, value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
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

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return invalid("addr must not be empty")
	}
	if c.APIKey == "" {
		return invalid("api_key must not be empty")
	}
	if c.DisplayScores < 1 {
		return invalid("display_scores must be positive")
	}
	if c.MaxScores < c.DisplayScores {
		return invalid("max_scores (%d) must be >= display_scores (%d)", c.MaxScores, c.DisplayScores)
	}
	if c.SubmitQueueSize < 1 {
		return invalid("submit_queue_size must be positive")
	}
	if c.RateLimitMaxRequests < 1 || c.RateLimitWindow <= 0 {
		return invalid("rate limit needs positive max requests and window")
	}
	if c.RequestTimeout <= 0 {
		return invalid("request_timeout must be positive")
	}

	switch c.StoreBackend {
	case BackendMemory:
	case BackendMongo:
		if c.MongoURI == "" || c.MongoDatabase == "" || c.MongoCollection == "" {
			return invalid("mongo store needs mongo_uri, mongo_database and mongo_collection")
		}
	default:
		return invalid("unknown store_backend %q", c.StoreBackend)
	}

	switch c.RateLimitBackend {
	case BackendMemory:
	case BackendRedis:
		if c.RedisAddr == "" {
			return invalid("redis rate limiter needs redis_addr")
		}
	default:
		return invalid("unknown rate_limit_backend %q", c.RateLimitBackend)
	}
	return nil
}
