package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/adamwoolhether/tarfetch/client"
	"github.com/adamwoolhether/tarfetch/client/stage"
	"github.com/adamwoolhether/tarfetch/inflight"
	"github.com/adamwoolhether/tarfetch/retry"
)

const defaultTimeout = 5 * time.Minute

// Fetcher runs deduplicated fetch pipelines.
type Fetcher struct {
	client      *client.Client
	importer    Importer
	dirs        DirPreparer
	remover     Remover
	policy      retry.Policy
	stagingRoot string
	algorithm   stage.Algorithm
	stageOpts   []stage.Option
	logger      *slog.Logger
	tracer      trace.Tracer
	metrics     Metrics

	group inflight.Group[Result]

	// lifetime bounds every pipeline; Close cancels it.
	lifetime context.Context
	cancel   context.CancelFunc

	mu      sync.Mutex
	closed  bool
	running sync.WaitGroup
}

// New builds a Fetcher. [WithImporter] is required.
func New(optFns ...Option) (*Fetcher, error) {
	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying fetch option: %w", err)
		}
	}

	if opts.importer == nil {
		return nil, errors.New("an importer is required")
	}

	f := &Fetcher{
		importer:    opts.importer,
		dirs:        osFS{},
		remover:     osFS{},
		policy:      retry.DefaultPolicy,
		stagingRoot: filepath.Join(os.TempDir(), "tarfetch"),
		algorithm:   stage.DefaultAlgorithm,
		logger:      slog.Default(),
		tracer:      noop.NewTracerProvider().Tracer("no-op tracer"),
		metrics:     nopMetrics{},
	}

	if opts.logger != nil {
		f.logger = opts.logger
	}
	if opts.tracer != nil {
		f.tracer = opts.tracer
	}
	if opts.metrics != nil {
		f.metrics = opts.metrics
	}
	if opts.policy != nil {
		f.policy = *opts.policy
	}
	if opts.dirs != nil {
		f.dirs = opts.dirs
	}
	if opts.remover != nil {
		f.remover = opts.remover
	}
	if opts.stagingRoot != "" {
		f.stagingRoot = opts.stagingRoot
	}
	if opts.algorithm != "" {
		f.algorithm = opts.algorithm
	}

	f.client = opts.client
	if f.client == nil {
		c, err := client.Build(client.WithTimeout(defaultTimeout), client.WithLogger(f.logger))
		if err != nil {
			return nil, fmt.Errorf("building client: %w", err)
		}
		f.client = c
	}

	if opts.maxSize > 0 {
		f.stageOpts = append(f.stageOpts, stage.WithMaxSize(opts.maxSize))
	}
	if opts.mode != 0 {
		f.stageOpts = append(f.stageOpts, stage.WithFileMode(opts.mode))
	}
	if opts.progress {
		f.stageOpts = append(f.stageOpts, stage.WithProgress())
	}

	f.group.Logger = f.logger
	f.lifetime, f.cancel = context.WithCancel(context.Background())

	return f, nil
}

// Fetch retrieves req.URL, verifies it against req.Digest and imports it.
//
// A call for a URL whose pipeline is already running waits for that
// pipeline and receives its result, successful or not. When the import
// fails, the returned Result still carries what the importer reported
// plus the resolved URL and digest, alongside an ErrImport error. The pipeline is not
// bound to ctx: when ctx ends, Fetch returns ctx.Err() but the pipeline
// carries on for the remaining callers until it finishes or the Fetcher
// is closed.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (Result, error) {
	if req.URL == "" {
		return Result{}, fmt.Errorf("%w: empty url", ErrInvalidRequest)
	}
	if req.Algorithm != "" {
		if _, err := req.Algorithm.New(); err != nil {
			return Result{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
	}

	f.mu.Lock()
	closed := f.closed
	f.mu.Unlock()
	if closed {
		return Result{}, ErrClosed
	}

	req = req.clone()

	res, out, err := f.group.Do(ctx, req.URL, func(ctx context.Context) (Result, error) {
		return f.run(ctx, req)
	})
	if out.Shared {
		res.Shared = true
		if !out.Owner {
			f.metrics.IncShared()
		}
	}
	res.Metadata = res.Metadata.Clone()

	return res, err
}

// Close cancels every running pipeline and waits for their cleanup.
// Subsequent Fetch calls fail with ErrClosed.
func (f *Fetcher) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()

	f.cancel()
	f.running.Wait()

	return nil
}

// run binds a pipeline to the Fetcher's lifetime.
func (f *Fetcher) run(ctx context.Context, req Request) (Result, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return Result{}, ErrClosed
	}
	f.running.Add(1)
	f.mu.Unlock()
	defer f.running.Done()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(f.lifetime, cancel)
	defer stop()

	return f.pipeline(ctx, req)
}

func (f *Fetcher) pipeline(ctx context.Context, req Request) (res Result, err error) {
	logger := f.logger.With("fetch_id", uuid.NewString(), "url", req.URL)

	ctx, span := f.tracer.Start(ctx, "fetch.pipeline")
	span.SetAttributes(attribute.String("url", req.URL))
	defer span.End()

	alg := req.Algorithm
	if alg == "" {
		alg = f.algorithm
	}

	state := StatePreparing
	transition := func(next State) {
		logger.Debug("pipeline transition", "from", state, "to", next)
		state = next
	}

	stagingPath, err := StagingPath(f.stagingRoot, req.URL)
	if err != nil {
		return Result{}, err
	}

	start := time.Now()
	var attempts int
	defer func() {
		transition(StateCleanup)
		if rmErr := f.remover.RemoveAll(stagingPath); rmErr != nil {
			logger.Warn("removing staging file", "path", stagingPath, "error", rmErr)
		}
		transition(StateDone)

		f.metrics.ObservePipeline(outcome(err), attempts, time.Since(start))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	logger.Debug("staging", "path", stagingPath, "digest", req.Digest)
	if err := f.dirs.EnsureDir(filepath.Dir(stagingPath)); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrDirectoryPrep, err)
	}

	transition(StateFetching)
	receipt, err := f.transfer(ctx, logger, req, alg, stagingPath, &attempts)
	if err != nil {
		return Result{}, err
	}
	f.metrics.AddBytes(receipt.Size)

	transition(StateVerifying)
	if err := receipt.Verify(req.Digest); err != nil {
		logger.Error("digest check failed", "path", stagingPath, "expected", req.Digest, "actual", receipt.Digest)
		return Result{}, fmt.Errorf("verifying %s from %s: %w", stagingPath, req.URL, err)
	}

	transition(StateHandoff)
	res, err = f.importer.Import(ctx, stagingPath, req.Metadata.Clone(), receipt.Digest)
	res.ResolvedURL = req.URL
	res.From = req.URL
	res.Digest = receipt.Digest
	res.Algorithm = receipt.Algorithm
	res.Attempts = attempts
	if res.Size == 0 {
		res.Size = receipt.Size
	}
	if res.Metadata == nil {
		res.Metadata = req.Metadata.Clone()
	}
	if err != nil {
		return res, fmt.Errorf("%w: %w", ErrImport, err)
	}

	return res, nil
}

// transfer makes up to policy.Attempts() attempts to stage req.URL.
func (f *Fetcher) transfer(ctx context.Context, logger *slog.Logger, req Request, alg stage.Algorithm, stagingPath string, attempts *int) (client.Receipt, error) {
	opts := append([]stage.Option{stage.WithAlgorithm(alg)}, f.stageOpts...)

	attempt := func(ctx context.Context, n int) (client.Receipt, error) {
		*attempts = n
		logger.Info("fetch attempt", "attempt", n, "at", time.Now().Format(time.TimeOnly))

		ctx, span := f.tracer.Start(ctx, "fetch.attempt")
		span.SetAttributes(attribute.Int("attempt", n))
		defer span.End()

		start := time.Now()
		receipt, err := f.client.Attempt(ctx, req.URL, req.Credential, stagingPath, opts...)
		f.metrics.ObserveAttempt(outcome(err), time.Since(start))
		if receipt.Status != 0 {
			span.SetAttributes(attribute.Int("http.status_code", receipt.Status))
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.Error("fetch failed", "attempt", n, "status", receipt.Status, "error", err)
			return receipt, err
		}

		logger.Debug("digest", "digest", receipt.Digest, "algorithm", receipt.Algorithm, "size", receipt.Size)
		return receipt, nil
	}

	notify := func(n int, err error, delay time.Duration) {
		logger.Warn("will retry", "attempt", n, "delay", delay, "error", err)
	}

	return retry.Do(ctx, f.policy, client.Retryable, attempt, notify)
}
