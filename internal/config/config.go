// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers a YAML file and POVELC_* environment variables on top.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"time"
)

// Backend names.
const (
	BackendMemory = "memory"
	BackendMongo  = "mongo"
	BackendRedis  = "redis"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is json or console.
	LogFormat string `koanf:"log_format"`
	// LogFile enables a rotating file sink when set.
	LogFile      string `koanf:"log_file"`
	LogMaxSizeMB int    `koanf:"log_max_size_mb"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// APIKey is the shared secret for privileged operations.
	APIKey string `koanf:"api_key"`

	// AllowedOrigins lists browser origins that get CORS headers.
	AllowedOrigins []string `koanf:"allowed_origins"`

	// ExposeErrorDetails adds internal error text to 5xx bodies. Development only.
	ExposeErrorDetails bool `koanf:"expose_error_details"`

	// RequestTimeout bounds every API request.
	RequestTimeout time.Duration `koanf:"request_timeout"`

	// MaxScores is the retention capacity; DisplayScores the public list size.
	MaxScores     int `koanf:"max_scores"`
	DisplayScores int `koanf:"display_scores"`

	// SubmitQueueSize bounds the single-writer command queue.
	SubmitQueueSize int `koanf:"submit_queue_size"`

	RateLimitBackend     string        `koanf:"rate_limit_backend"`
	RateLimitMaxRequests int           `koanf:"rate_limit_max_requests"`
	RateLimitWindow      time.Duration `koanf:"rate_limit_window"`

	RedisAddr      string `koanf:"redis_addr"`
	RedisPassword  string `koanf:"redis_password"`
	RedisDB        int    `koanf:"redis_db"`
	RedisKeyPrefix string `koanf:"redis_key_prefix"`

	StoreBackend    string `koanf:"store_backend"`
	MongoURI        string `koanf:"mongo_uri"`
	MongoDatabase   string `koanf:"mongo_database"`
	MongoCollection string `koanf:"mongo_collection"`

	// Object storage holding the WebGL build. StorageEndpoint defaults to the
	// R2 endpoint derived from StorageAccountID.
	StorageEndpoint        string `koanf:"storage_endpoint"`
	StorageAccountID       string `koanf:"storage_account_id"`
	StorageAccessKeyID     string `koanf:"storage_access_key_id"`
	StorageSecretAccessKey string `koanf:"storage_secret_access_key"`
	StorageBucket          string `koanf:"storage_bucket"`
	StorageUseSSL          bool   `koanf:"storage_use_ssl"`

	AssetsPrefix     string        `koanf:"assets_prefix"`
	AssetCacheMaxAge time.Duration `koanf:"asset_cache_max_age"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:     "info",
		LogFormat:    "json",
		LogMaxSizeMB: 100,
		Addr:         ":9080",
		AllowedOrigins: []string{
			"http://localhost:3000",
			"http://localhost:5173",
			"https://povelc.com",
		},
		RequestTimeout:       10 * time.Second,
		MaxScores:            20,
		DisplayScores:        10,
		SubmitQueueSize:      1024,
		RateLimitBackend:     BackendMemory,
		RateLimitMaxRequests: 100,
		RateLimitWindow:      time.Minute,
		RedisKeyPrefix:       "povelc:ratelimit:",
		StoreBackend:         BackendMemory,
		MongoDatabase:        "portfolio",
		MongoCollection:      "leaderboard",
		StorageUseSSL:        true,
		AssetsPrefix:         "Build/",
		AssetCacheMaxAge:     time.Hour,
	}
}

// ResolvedStorageEndpoint returns the configured endpoint or the R2 endpoint of the account.
func (c *Config) ResolvedStorageEndpoint() string {
	if c.StorageEndpoint != "" {
		return c.StorageEndpoint
	}
	if c.StorageAccountID == "" {
		return ""
	}
	return c.StorageAccountID + ".r2.cloudflarestorage.com"
}

// StorageConfigured reports whether the asset bucket can be reached.
func (c *Config) StorageConfigured() bool {
	return c.ResolvedStorageEndpoint() != "" && c.StorageAccessKeyID != "" &&
		c.StorageSecretAccessKey != "" && c.StorageBucket != ""
}
