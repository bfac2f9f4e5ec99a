// Package client implements a single artifact transfer attempt: one
// outbound GET whose body is hashed and staged on disk.
package client

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/adamwoolhether/tarfetch/client/stage"
	"github.com/adamwoolhether/tarfetch/client/throttle"
)

// Client wraps the std-lib *http.Client
// It sets a default *http.Client and *http.Transport, which
// can be customized via optional funcs.
type Client struct {
	c      *http.Client
	logger *slog.Logger
}

func Build(optFns ...Option) (*Client, error) {
	client := &Client{
		c:      &http.Client{},
		logger: slog.Default(),
	}

	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying client option: %w", err)
		}
	}

	if opts.client != nil {
		client.c = opts.client
	}

	if opts.logger != nil {
		client.logger = opts.logger
	}

	if opts.timeout != nil {
		client.c.Timeout = *opts.timeout
	}

	if opts.noFollowRedirects {
		client.c.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	var transport http.RoundTripper
	switch {
	case opts.rt != nil:
		transport = opts.rt
	case opts.client != nil && opts.client.Transport != nil:
		transport = opts.client.Transport
	default:
		transport = http.DefaultTransport
	}
	if opts.userAgent != "" {
		transport = userAgent{value: opts.userAgent, base: transport}
	}
	if opts.throttle != nil {
		rt, err := throttle.NewRoundTripper(opts.throttle.RPS, opts.throttle.Burst, func() *slog.Logger { return client.logger }, transport)
		if err != nil {
			return nil, fmt.Errorf("configuring throttle: %w", err)
		}
		transport = rt
	}
	client.c.Transport = transport

	return client, nil
}

// Attempt issues one GET for rawURL, applying cred unmodified, and streams
// a 2xx body into stagingPath. The returned error can be classified with
// [Retryable]: ErrTransport when no response arrived, an
// *UnexpectedStatusError for non-2xx statuses, or a stage error.
//
// Attempt removes nothing but its own temp file; a committed stagingPath
// belongs to the caller.
func (c *Client) Attempt(ctx context.Context, rawURL string, cred Credential, stagingPath string, opts ...stage.Option) (Receipt, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Receipt{}, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Receipt{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Receipt{}, fmt.Errorf("instantiating request: %w", err)
	}
	if cred != nil {
		cred.Apply(req)
	}

	resp, err := c.c.Do(req)
	if err != nil {
		return Receipt{}, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	discardBody := true
	defer func() {
		if discardBody {
			if _, err := io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainSize)); err != nil {
				c.logger.Debug("failed to discard unused body", "error", err)
			}
		}
		if err := resp.Body.Close(); err != nil {
			c.logger.Error("failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, err := io.ReadAll(io.LimitReader(resp.Body, maxErrBodySize))
		if err != nil {
			b = []byte("unable to read body")
		}

		return Receipt{Status: resp.StatusCode}, newStatusError(resp.StatusCode, string(b))
	}

	receipt, err := stage.Stage(ctx, resp.Body, resp.ContentLength, stagingPath, c.logger, opts...)
	if err != nil {
		discardBody = false
		return Receipt{Status: resp.StatusCode}, fmt.Errorf("staging body: %w", err)
	}

	return Receipt{Status: resp.StatusCode, Receipt: receipt}, nil
}
