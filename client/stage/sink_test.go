package stage

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/zeebo/blake3"
)

type failingWriter struct {
	after int
	n     int
}

func (w *failingWriter) Write(p []byte) (int, error) {
	if w.n+len(p) > w.after {
		return 0, errors.New("disk full")
	}
	w.n += len(p)
	return len(p), nil
}

func TestSink_DigestMatchesContent(t *testing.T) {
	body := bytes.Repeat([]byte("tarball-bytes-"), 10_000)
	sum := sha1.Sum(body)
	expDigest := hex.EncodeToString(sum[:])

	var dst bytes.Buffer
	sink, err := NewSink(&dst, SHA1, 0)
	if err != nil {
		t.Fatalf("creating sink: %v", err)
	}

	n, err := sink.ReadFrom(bytes.NewReader(body))
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if n != int64(len(body)) {
		t.Errorf("expected %d bytes, got %d", len(body), n)
	}
	if !bytes.Equal(dst.Bytes(), body) {
		t.Error("destination bytes differ from source")
	}
	if got := sink.Digest(); got != expDigest {
		t.Errorf("digest mismatch; got %s, want %s", got, expDigest)
	}
}

func TestSink_OneByteReadsKeepOrder(t *testing.T) {
	body := []byte("abcdefghijklmnopqrstuvwxyz")

	var dst bytes.Buffer
	sink, err := NewSink(&dst, SHA1, 0)
	if err != nil {
		t.Fatalf("creating sink: %v", err)
	}

	if _, err := sink.ReadFrom(iotest.OneByteReader(bytes.NewReader(body))); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	sum := sha1.Sum(body)
	if got, want := sink.Digest(), hex.EncodeToString(sum[:]); got != want {
		t.Errorf("digest mismatch; got %s, want %s", got, want)
	}
	if dst.String() != string(body) {
		t.Errorf("got %q, want %q", dst.String(), body)
	}
}

func TestSink_Blake3(t *testing.T) {
	body := []byte("blake3 content")

	sink, err := NewSink(io.Discard, BLAKE3, 0)
	if err != nil {
		t.Fatalf("creating sink: %v", err)
	}
	if _, err := sink.ReadFrom(bytes.NewReader(body)); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	sum := blake3.Sum256(body)
	if got, want := sink.Digest(), hex.EncodeToString(sum[:]); got != want {
		t.Errorf("digest mismatch; got %s, want %s", got, want)
	}
}

func TestSink_WriteErrorAbandonsDigest(t *testing.T) {
	body := bytes.Repeat([]byte("x"), 100_000)

	sink, err := NewSink(&failingWriter{after: 50_000}, SHA1, 0)
	if err != nil {
		t.Fatalf("creating sink: %v", err)
	}

	_, err = sink.ReadFrom(bytes.NewReader(body))
	if !errors.Is(err, ErrStagingIO) {
		t.Fatalf("expected ErrStagingIO, got: %v", err)
	}
	if errors.Is(err, ErrSourceRead) {
		t.Error("write failure must not be reported as a read failure")
	}
	if got := sink.Digest(); got != "" {
		t.Errorf("expected empty digest after failure, got %s", got)
	}
}

func TestSink_ReadError(t *testing.T) {
	src := io.MultiReader(strings.NewReader("partial"), iotest.ErrReader(io.ErrUnexpectedEOF))

	var dst bytes.Buffer
	sink, err := NewSink(&dst, SHA1, 0)
	if err != nil {
		t.Fatalf("creating sink: %v", err)
	}

	_, err = sink.ReadFrom(src)
	if !errors.Is(err, ErrSourceRead) {
		t.Fatalf("expected ErrSourceRead, got: %v", err)
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("expected wrapped io.ErrUnexpectedEOF, got: %v", err)
	}
	if dst.String() != "partial" {
		t.Errorf("expected bytes read before the failure to be written, got %q", dst.String())
	}
}

func TestSink_MaxSize(t *testing.T) {
	testCases := []struct {
		name    string
		size    int
		maxSize int64
		expErr  error
	}{
		{name: "Under limit", size: 10, maxSize: 11},
		{name: "At limit", size: 10, maxSize: 10},
		{name: "Over limit", size: 11, maxSize: 10, expErr: ErrTooLarge},
		{name: "Unlimited", size: 100_000, maxSize: 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sink, err := NewSink(io.Discard, SHA256, tc.maxSize)
			if err != nil {
				t.Fatalf("creating sink: %v", err)
			}

			_, err = sink.ReadFrom(bytes.NewReader(make([]byte, tc.size)))
			if tc.expErr != nil {
				if !errors.Is(err, tc.expErr) {
					t.Errorf("exp err %v; got: %v", tc.expErr, err)
				}
				return
			}
			if err != nil {
				t.Errorf("exp nil err, got: %v", err)
			}
		})
	}
}

func TestNewSink_Validation(t *testing.T) {
	if _, err := NewSink(nil, SHA1, 0); err == nil {
		t.Error("expected error for nil destination")
	}
	if _, err := NewSink(io.Discard, Algorithm("md4"), 0); !errors.Is(err, ErrUnknownAlgorithm) {
		t.Errorf("expected ErrUnknownAlgorithm, got: %v", err)
	}
}
