package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix scopes environment overrides, e.g. SIDPOL_STORE_DRIVER -> store.driver.
const EnvPrefix = "SIDPOL_"

type Config struct {
	Log     LogConfig     `koanf:"log"`
	Data    DataConfig    `koanf:"data"`
	Store   StoreConfig   `koanf:"store"`
	Server  ServerConfig  `koanf:"server"`
	Limits  LimitsConfig  `koanf:"limits"`
	Acquire AcquireConfig `koanf:"acquire"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, console
}

type DataConfig struct {
	Dir          string        `koanf:"dir"`
	AllowedDirs  []string      `koanf:"allowed_dirs"`
	Pattern      string        `koanf:"pattern"`
	CacheTTL     time.Duration `koanf:"cache_ttl"`
	CleanupEvery time.Duration `koanf:"cleanup_every"`
}

type StoreConfig struct {
	Driver    string `koanf:"driver"` // sqlite, postgres
	DSN       string `koanf:"dsn"`
	EnableSQL bool   `koanf:"enable_sql"`
}

type ServerConfig struct {
	HTTPAddr string `koanf:"http_addr"`
	Stdio    bool   `koanf:"stdio"`
}

type LimitsConfig struct {
	MaxConcurrentRequests int           `koanf:"max_concurrent_requests"`
	MaxCachedDatasets     int           `koanf:"max_cached_datasets"`
	OperationTimeout      time.Duration `koanf:"operation_timeout"`
	MaxQueryRows          int           `koanf:"max_query_rows"`
}

type AcquireConfig struct {
	PageURL   string        `koanf:"page_url"`
	Timeout   time.Duration `koanf:"timeout"`
	UserAgent string        `koanf:"user_agent"`
}

// Load builds the configuration from defaults, an optional YAML file, an
// optional .env file and SIDPOL_* environment variables, in that order.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Defaults
	_ = k.Set("log.level", "info")
	_ = k.Set("log.format", "json")
	_ = k.Set("data.dir", "data")
	_ = k.Set("data.pattern", DefaultSourcePattern)
	_ = k.Set("data.cache_ttl", DefaultDatasetIdleTTL)
	_ = k.Set("data.cleanup_every", DefaultDatasetCleanupPeriod)
	_ = k.Set("store.driver", DefaultStoreDriver)
	_ = k.Set("store.dsn", DefaultStoreDSN)
	_ = k.Set("store.enable_sql", false)
	_ = k.Set("server.http_addr", DefaultHTTPAddr)
	_ = k.Set("server.stdio", false)
	_ = k.Set("limits.max_concurrent_requests", DefaultMaxConcurrentRequests)
	_ = k.Set("limits.max_cached_datasets", DefaultMaxCachedDatasets)
	_ = k.Set("limits.operation_timeout", DefaultOperationTimeout)
	_ = k.Set("limits.max_query_rows", DefaultMaxQueryRows)
	_ = k.Set("acquire.page_url", DefaultDatasetPageURL)
	_ = k.Set("acquire.timeout", DefaultDownloadTimeout)
	_ = k.Set("acquire.user_agent", DefaultUserAgent)

	// 1. Load from file
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// 2. .env is optional; a missing file is not an error.
	_ = godotenv.Load()

	// 3. Load from ENV (SIDPOL_STORE_DRIVER -> store.driver)
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Data.AllowedDirs) == 0 && cfg.Data.Dir != "" {
		cfg.Data.AllowedDirs = []string{cfg.Data.Dir}
	}
	return &cfg, nil
}

// envKey maps SIDPOL_DATA_CACHE_TTL to data.cache_ttl: only the first
// underscore separates the section from the key.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, rest, ok := strings.Cut(s, "_")
	if !ok {
		return s
	}
	return section + "." + rest
}
