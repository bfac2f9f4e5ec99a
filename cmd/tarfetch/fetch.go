package main

import (
	"context"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/adamwoolhether/tarfetch"
	"github.com/adamwoolhether/tarfetch/client"
	"github.com/adamwoolhether/tarfetch/config"
	"github.com/adamwoolhether/tarfetch/fetch"
	"github.com/adamwoolhether/tarfetch/internal/logger"
	"github.com/adamwoolhether/tarfetch/metrics"
)

func newFetchCmd(stdout, stderr io.Writer) *cobra.Command {
	var (
		digests     []string
		token       string
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "fetch URL...",
		Short: "Download, verify and import one or more archives",
		Long: `Download each URL, verify it against the matching --digest (given in the
same order as the URLs; omit or pass "" to trust the download), and import it
into the content-addressed store under the cache root.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(digests) > len(args) {
				return fmt.Errorf("got %d digests for %d urls", len(digests), len(args))
			}

			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(configPath, cmd.Flags())
			if err != nil {
				return err
			}

			log := logger.New(stderr, cfg.Logging.Level, cfg.Logging.Format)

			var opts []fetch.Option
			if cfg.Metrics.Addr != "" {
				reg := prometheus.NewRegistry()
				opts = append(opts, fetch.WithMetrics(metrics.New(reg)))

				srvCtx, stopServer := context.WithCancel(cmd.Context())
				srvDone := make(chan struct{})
				go func() {
					defer close(srvDone)
					if err := metrics.NewServer(cfg.Metrics.Addr, reg, metrics.WithServerLogger(log)).Run(srvCtx); err != nil {
						log.Error("metrics server", "addr", cfg.Metrics.Addr, "error", err)
					}
				}()
				defer func() {
					stopServer()
					<-srvDone
				}()
			}

			f, err := tarfetch.New(cfg, log, opts...)
			if err != nil {
				return err
			}
			defer f.Close()

			var cred client.Credential
			if token != "" {
				cred = client.Bearer(token)
			}

			return runFetch(cmd.Context(), f, stdout, args, digests, cred, concurrency)
		},
	}

	cmd.Flags().StringSliceVar(&digests, "digest", nil, "expected digest per URL, in URL order")
	cmd.Flags().StringVar(&token, "token", "", "bearer token sent with every request")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "maximum concurrent downloads")
	cmd.Flags().Int("retries", 0, "total attempts per archive")
	cmd.Flags().Duration("timeout", 0, "timeout per attempt")
	cmd.Flags().String("max-size", "", "reject archives larger than this, e.g. 256MiB")
	cmd.Flags().String("algorithm", "", "digest algorithm: sha1, sha256, sha512 or blake3")
	cmd.Flags().String("user-agent", "", "User-Agent header")
	cmd.Flags().Int("rate-limit", 0, "maximum requests per second per host")
	cmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address")

	return cmd
}

func runFetch(ctx context.Context, f *fetch.Fetcher, out io.Writer, urls, digests []string, cred client.Credential, concurrency int) error {
	batch := f.NewBatch(concurrency)

	pending := make([]*fetch.Pending, len(urls))
	for i, u := range urls {
		req := fetch.Request{URL: u, Credential: cred}
		if i < len(digests) {
			req.Digest = digests[i]
		}
		pending[i] = batch.Go(ctx, req)
	}

	for _, p := range pending {
		res, err := p.Result()
		if err != nil {
			fmt.Fprintf(out, "FAIL %s %s: %v\n", p.Request().URL, fetch.KindOf(err), err)
			continue
		}
		fmt.Fprintf(out, "%s %s %s\n", res.Digest, res.Path, res.ResolvedURL)
	}

	return batch.Wait()
}
