// Package config loads tarfetch settings from a YAML file, TARFETCH_
// environment variables and command line flags, in increasing order of
// precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/adamwoolhether/tarfetch/client/stage"
	"github.com/adamwoolhether/tarfetch/retry"
)

// EnvPrefix prefixes every environment variable, e.g. TARFETCH_FETCH_RETRIES.
const EnvPrefix = "TARFETCH"

// Config is the complete tarfetch configuration.
type Config struct {
	// CacheRoot is where imported artifacts are stored.
	CacheRoot string `mapstructure:"cache_root" validate:"required"`
	// StagingDir holds in-progress downloads. Defaults to <cache_root>/_staging.
	StagingDir string        `mapstructure:"staging_dir"`
	Fetch      FetchConfig   `mapstructure:"fetch"`
	Logging    LoggingConfig `mapstructure:"logging"`
	Metrics    MetricsConfig `mapstructure:"metrics"`
}

// FetchConfig controls transfers and retries.
type FetchConfig struct {
	// Retries is the total number of attempts per artifact; 0 means one.
	Retries       int           `mapstructure:"retries" validate:"gte=0"`
	BackoffFactor float64       `mapstructure:"backoff_factor" validate:"gte=1"`
	MinDelay      time.Duration `mapstructure:"min_delay" validate:"gte=0"`
	MaxDelay      time.Duration `mapstructure:"max_delay" validate:"gtefield=MinDelay"`
	Timeout       time.Duration `mapstructure:"timeout" validate:"gt=0"`
	// MaxArtifactSize is a human readable size such as "512MiB"; empty
	// means unlimited.
	MaxArtifactSize string          `mapstructure:"max_artifact_size"`
	Algorithm       string          `mapstructure:"algorithm" validate:"oneof=sha1 sha256 sha512 blake3"`
	UserAgent       string          `mapstructure:"user_agent"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig throttles requests per host. Zero RPS disables it.
type RateLimitConfig struct {
	RPS   int `mapstructure:"rps" validate:"gte=0"`
	Burst int `mapstructure:"burst" validate:"gte=0"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

type MetricsConfig struct {
	// Addr serves Prometheus metrics when set, e.g. ":9090".
	Addr string `mapstructure:"addr" validate:"omitempty,hostname_port"`
}

// Default returns the configuration used when nothing overrides it. The
// retry settings spread three attempts over about a minute.
func Default() Config {
	return Config{
		Fetch: FetchConfig{
			Retries:       retry.DefaultPolicy.Retries,
			BackoffFactor: retry.DefaultPolicy.Factor,
			MinDelay:      retry.DefaultPolicy.MinDelay,
			MaxDelay:      retry.DefaultPolicy.MaxDelay,
			Timeout:       5 * time.Minute,
			Algorithm:     string(stage.DefaultAlgorithm),
			UserAgent:     "tarfetch",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// flagKeys maps command line flag names onto configuration keys.
var flagKeys = map[string]string{
	"cache-root":   "cache_root",
	"staging-dir":  "staging_dir",
	"retries":      "fetch.retries",
	"timeout":      "fetch.timeout",
	"max-size":     "fetch.max_artifact_size",
	"algorithm":    "fetch.algorithm",
	"user-agent":   "fetch.user_agent",
	"rate-limit":   "fetch.rate_limit.rps",
	"log-level":    "logging.level",
	"log-format":   "logging.format",
	"metrics-addr": "metrics.addr",
}

// Load reads the configuration. path may be empty, in which case only
// defaults, the environment and flags apply; a named file that does not
// exist is an error. flags may be nil; only flags the user set override
// lower layers.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("binding flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}

	cfg.applyDefaults()

	if err := Validate(cfg); err != nil {
		return Config{}, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("cache_root", d.CacheRoot)
	v.SetDefault("staging_dir", d.StagingDir)
	v.SetDefault("fetch.retries", d.Fetch.Retries)
	v.SetDefault("fetch.backoff_factor", d.Fetch.BackoffFactor)
	v.SetDefault("fetch.min_delay", d.Fetch.MinDelay)
	v.SetDefault("fetch.max_delay", d.Fetch.MaxDelay)
	v.SetDefault("fetch.timeout", d.Fetch.Timeout)
	v.SetDefault("fetch.max_artifact_size", d.Fetch.MaxArtifactSize)
	v.SetDefault("fetch.algorithm", d.Fetch.Algorithm)
	v.SetDefault("fetch.user_agent", d.Fetch.UserAgent)
	v.SetDefault("fetch.rate_limit.rps", d.Fetch.RateLimit.RPS)
	v.SetDefault("fetch.rate_limit.burst", d.Fetch.RateLimit.Burst)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("metrics.addr", d.Metrics.Addr)
}

func (c *Config) applyDefaults() {
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	c.Logging.Format = strings.ToLower(c.Logging.Format)
	c.Fetch.Algorithm = strings.ToLower(c.Fetch.Algorithm)

	if c.CacheRoot != "" {
		c.CacheRoot = expandHome(c.CacheRoot)
	}
	if c.StagingDir == "" && c.CacheRoot != "" {
		c.StagingDir = filepath.Join(c.CacheRoot, "_staging")
	}
	if c.Fetch.RateLimit.RPS > 0 && c.Fetch.RateLimit.Burst == 0 {
		c.Fetch.RateLimit.Burst = c.Fetch.RateLimit.RPS
	}
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}

	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

// Policy returns the retry policy described by the fetch settings.
func (c Config) Policy() retry.Policy {
	return retry.Policy{
		Retries:  c.Fetch.Retries,
		Factor:   c.Fetch.BackoffFactor,
		MinDelay: c.Fetch.MinDelay,
		MaxDelay: c.Fetch.MaxDelay,
	}
}

// MaxArtifactBytes parses fetch.max_artifact_size. Zero means unlimited.
func (c Config) MaxArtifactBytes() (int64, error) {
	if c.Fetch.MaxArtifactSize == "" {
		return 0, nil
	}

	n, err := humanize.ParseBytes(c.Fetch.MaxArtifactSize)
	if err != nil {
		return 0, err
	}
	if n > 1<<62 {
		return 0, errors.New("size out of range")
	}

	return int64(n), nil
}

// Algorithm returns the configured digest algorithm.
func (c Config) Algorithm() stage.Algorithm {
	return stage.Algorithm(c.Fetch.Algorithm)
}
