package stage

import (
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
)

// defaultBufferSize is the only read-side buffering a Sink performs.
const defaultBufferSize = 32 << 10 // 32KB

// Sink is an io.ReaderFrom that feeds every chunk it reads into a digest
// and writes the same chunk to dst, in order and exactly once. Reading
// waits on each write, so dst applies backpressure to the source.
type Sink struct {
	dst     io.Writer
	alg     Algorithm
	hash    hash.Hash
	maxSize int64
	buf     []byte
	written int64
	failed  bool
}

// NewSink returns a Sink writing to dst. A maxSize <= 0 disables the
// size limit.
func NewSink(dst io.Writer, alg Algorithm, maxSize int64) (*Sink, error) {
	if dst == nil {
		return nil, errors.New("destination must not be nil")
	}

	h, err := alg.New()
	if err != nil {
		return nil, err
	}

	return &Sink{
		dst:     dst,
		alg:     alg,
		hash:    h,
		maxSize: maxSize,
		buf:     make([]byte, defaultBufferSize),
	}, nil
}

// ReadFrom consumes src until EOF. Once it returns an error the digest
// is abandoned and Digest returns "".
func (s *Sink) ReadFrom(src io.Reader) (int64, error) {
	var n int64
	for {
		nr, er := src.Read(s.buf)
		if nr > 0 {
			if s.maxSize > 0 && s.written+int64(nr) > s.maxSize {
				s.failed = true
				return n, &Error{
					Err:    ErrTooLarge,
					Detail: fmt.Sprintf("limit %d bytes", s.maxSize),
				}
			}

			chunk := s.buf[:nr]
			s.hash.Write(chunk)

			nw, ew := s.dst.Write(chunk)
			if ew == nil && nw != nr {
				ew = io.ErrShortWrite
			}
			n += int64(nw)
			s.written += int64(nw)
			if ew != nil {
				s.failed = true
				return n, fmt.Errorf("%w: %w", ErrStagingIO, ew)
			}
		}

		if er == io.EOF {
			return n, nil
		}
		if er != nil {
			s.failed = true
			return n, fmt.Errorf("%w: %w", ErrSourceRead, er)
		}
	}
}

// Digest returns the lowercase hex digest of everything consumed so far.
func (s *Sink) Digest() string {
	if s.failed {
		return ""
	}

	return hex.EncodeToString(s.hash.Sum(nil))
}

// Written returns the number of bytes written to the destination.
func (s *Sink) Written() int64 { return s.written }

// Receipt summarizes the completed stream.
func (s *Sink) Receipt() Receipt {
	return Receipt{Digest: s.Digest(), Algorithm: s.alg, Size: s.written}
}
