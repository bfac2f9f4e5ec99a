// Package store keeps imported artifacts in a content-addressed directory
// tree: <root>/<digest[:2]>/<digest>.tgz with a JSON metadata sidecar.
package store

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/adamwoolhether/tarfetch/client/stage"
	"github.com/adamwoolhether/tarfetch/fetch"
)

const lockRetryDelay = 50 * time.Millisecond

// ErrInvalidDigest indicates a digest that cannot name a store entry.
var ErrInvalidDigest = errors.New("invalid digest")

// Store is a fetch.Importer backed by the local filesystem. Imports of
// the same digest are serialized across processes with a lock file.
type Store struct {
	root   string
	logger *slog.Logger
}

// New opens the store rooted at root, creating it if needed.
func New(root string, logger *slog.Logger) (*Store, error) {
	if root == "" {
		return nil, errors.New("store root must not be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating store root: %w", err)
	}

	return &Store{root: root, logger: logger}, nil
}

// Path returns where the artifact with digest is, or would be, stored.
func (s *Store) Path(digest string) (string, error) {
	if len(digest) < 4 {
		return "", fmt.Errorf("%w: %q", ErrInvalidDigest, digest)
	}
	if _, err := hex.DecodeString(digest); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDigest, digest)
	}

	return filepath.Join(s.root, digest[:2], digest+".tgz"), nil
}

// Has reports whether an artifact with digest was imported.
func (s *Store) Has(digest string) bool {
	p, err := s.Path(digest)
	if err != nil {
		return false
	}

	_, err = os.Stat(p)
	return err == nil
}

// Import moves the staged file into the store. An artifact that already
// exists is kept; its content is the same by construction.
func (s *Store) Import(ctx context.Context, stagingPath string, metadata fetch.Metadata, digest string) (fetch.Result, error) {
	dst, err := s.Path(digest)
	if err != nil {
		return fetch.Result{}, err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fetch.Result{}, fmt.Errorf("creating store directory: %w", err)
	}

	lock := flock.New(dst + ".lock")
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fetch.Result{}, fmt.Errorf("locking %s: %w", dst, err)
	}
	if locked {
		defer func() {
			if err := lock.Unlock(); err != nil {
				s.logger.Warn("releasing store lock", "path", lock.Path(), "error", err)
			}
		}()
	}

	if _, err := os.Stat(dst); err == nil {
		s.logger.Debug("already stored", "digest", digest, "path", dst)
	} else if err := s.move(stagingPath, dst); err != nil {
		return fetch.Result{}, err
	}

	if err := s.writeMetadata(dst, metadata); err != nil {
		return fetch.Result{}, err
	}

	info, err := os.Stat(dst)
	if err != nil {
		return fetch.Result{}, fmt.Errorf("stat %s: %w", dst, err)
	}

	s.logger.Info("imported", "digest", digest, "path", dst, "size", info.Size())

	return fetch.Result{
		Path:     dst,
		Size:     info.Size(),
		Metadata: metadata,
	}, nil
}

// move renames src to dst, copying when they are on different devices.
func (s *Store) move(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening staged file: %w", err)
	}
	defer in.Close()

	out, err := stage.CreateAtomic(dst, 0o644)
	if err != nil {
		return err
	}
	defer s.discard(out)

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copying staged file: %w", err)
	}

	return out.Commit()
}

func (s *Store) writeMetadata(dst string, metadata fetch.Metadata) error {
	if len(metadata) == 0 {
		return nil
	}

	b, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}

	path := dst[:len(dst)-len(filepath.Ext(dst))] + ".json"
	f, err := stage.CreateAtomic(path, 0o644)
	if err != nil {
		return err
	}
	defer s.discard(f)

	if _, err := f.Write(b); err != nil {
		return fmt.Errorf("writing metadata: %w", err)
	}

	return f.Commit()
}

// discard drops an uncommitted temp file; after Commit it is a no-op.
func (s *Store) discard(f *stage.AtomicFile) {
	if err := f.Discard(); err != nil {
		s.logger.Warn("discarding temp file", "path", f.TempName(), "error", err)
	}
}

// Metadata returns the metadata recorded for digest, if any.
func (s *Store) Metadata(digest string) (fetch.Metadata, error) {
	dst, err := s.Path(digest)
	if err != nil {
		return nil, err
	}

	b, err := os.ReadFile(dst[:len(dst)-len(".tgz")] + ".json")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var m fetch.Metadata
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decoding metadata: %w", err)
	}

	return m, nil
}
