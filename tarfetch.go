// Package tarfetch builds a fetch.Fetcher wired from configuration: an
// HTTP client with timeout, user agent and per-host throttle, the retry
// policy, and a content-addressed store under the cache root.
package tarfetch

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/adamwoolhether/tarfetch/client"
	"github.com/adamwoolhether/tarfetch/config"
	"github.com/adamwoolhether/tarfetch/fetch"
	"github.com/adamwoolhether/tarfetch/internal/store"
)

// New builds a Fetcher from cfg. opts are applied after the configured
// ones and so take precedence.
func New(cfg config.Config, logger *slog.Logger, opts ...fetch.Option) (*fetch.Fetcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	c, err := NewClient(cfg, logger)
	if err != nil {
		return nil, err
	}

	st, err := store.New(cfg.CacheRoot, logger)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	maxSize, err := cfg.MaxArtifactBytes()
	if err != nil {
		return nil, fmt.Errorf("parsing max artifact size: %w", err)
	}

	base := []fetch.Option{
		fetch.WithLogger(logger),
		fetch.WithClient(c),
		fetch.WithImporter(st),
		fetch.WithStagingRoot(cfg.StagingDir),
		fetch.WithPolicy(cfg.Policy()),
		fetch.WithAlgorithm(cfg.Algorithm()),
		fetch.WithMaxSize(maxSize),
	}

	return fetch.New(append(base, opts...)...)
}

// NewClient builds the transfer client described by cfg.
func NewClient(cfg config.Config, logger *slog.Logger) (*client.Client, error) {
	baseTransport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: time.Minute,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       90 * time.Second,
	}

	opts := []client.Option{
		client.WithTransport(baseTransport),
		client.WithTimeout(cfg.Fetch.Timeout),
		client.WithLogger(logger),
	}
	if cfg.Fetch.UserAgent != "" {
		opts = append(opts, client.WithUserAgent(cfg.Fetch.UserAgent))
	}
	if cfg.Fetch.RateLimit.RPS > 0 {
		opts = append(opts, client.WithThrottle(cfg.Fetch.RateLimit.RPS, cfg.Fetch.RateLimit.Burst))
	}

	c, err := client.Build(opts...)
	if err != nil {
		return nil, fmt.Errorf("building client: %w", err)
	}

	return c, nil
}
