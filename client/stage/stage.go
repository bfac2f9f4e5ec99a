package stage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Stage streams body into destPath through a hashing Sink. The bytes land
// in a temp file next to destPath which is renamed into place only after
// the whole body was read, so a failed or cancelled transfer never leaves
// a file at destPath. contentLength < 0 means unknown.
func Stage(ctx context.Context, body io.Reader, contentLength int64, destPath string, logger *slog.Logger, optFns ...Option) (Receipt, error) {
	opts := defaultOptions()
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return Receipt{}, fmt.Errorf("applying option: %w", err)
		}
	}

	if logger == nil {
		logger = slog.Default()
	}

	if opts.maxSize > 0 && contentLength > opts.maxSize {
		return Receipt{}, &Error{
			Err:    ErrTooLarge,
			Detail: fmt.Sprintf("content length %d exceeds limit %d bytes", contentLength, opts.maxSize),
		}
	}

	file, err := CreateAtomic(destPath, opts.mode)
	if err != nil {
		return Receipt{}, err
	}
	defer func() {
		if err := file.Discard(); err != nil {
			logger.Error("discarding temp file", "path", file.TempName(), "error", err)
		}
	}()

	var writer io.Writer = file
	if opts.progress {
		writer = &progressWriter{
			w:         writer,
			logger:    logger,
			total:     contentLength,
			startTime: time.Now(),
		}
	}

	sink, err := NewSink(writer, opts.algorithm, opts.maxSize)
	if err != nil {
		return Receipt{}, err
	}

	n, err := sink.ReadFrom(&contextReader{ctx: ctx, r: body})
	if err != nil {
		// Only our own ctx cancels. A transport timeout also wraps
		// context.DeadlineExceeded but is a source read failure.
		if ctx.Err() != nil {
			return Receipt{}, fmt.Errorf("%w: %w", ErrCancelled, err)
		}

		return Receipt{}, fmt.Errorf("copying body: %w", err)
	}

	if contentLength >= 0 && n != contentLength {
		return Receipt{}, &Error{
			Err:    ErrContentLengthMismatch,
			Detail: fmt.Sprintf("expected %d bytes, got %d", contentLength, n),
		}
	}

	if err := file.Commit(); err != nil {
		return Receipt{}, err
	}

	receipt := sink.Receipt()
	logger.Debug("staged", "path", destPath, "digest", receipt.Digest, "algorithm", receipt.Algorithm, "size", receipt.Size)

	return receipt, nil
}

// contextReader stops a copy loop as soon as ctx is done, even when the
// underlying reader would keep delivering buffered bytes.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *contextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}

	return cr.r.Read(p)
}
