package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(t.Context())
	return stdout.String(), err
}

func TestFetchCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte("hello"))
	}))
	defer srv.Close()

	root := t.TempDir()
	url := srv.URL + "/hello/-/hello-1.0.0.tgz"

	out, err := runCLI(t, "fetch",
		"--cache-root", root,
		"--token", "s3cret",
		"--digest", "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d",
		url,
	)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	stored := filepath.Join(root, "aa", "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d.tgz")
	want := "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d " + stored + " " + url + "\n"
	if out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
	if b, err := os.ReadFile(stored); err != nil || string(b) != "hello" {
		t.Errorf("stored content = %q, err %v", b, err)
	}
}

func TestFetchCommand_Failure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	out, err := runCLI(t, "fetch", "--cache-root", t.TempDir(), srv.URL+"/missing.tgz")
	if err == nil {
		t.Fatal("expected error for missing archive")
	}
	if !strings.HasPrefix(out, "FAIL "+srv.URL+"/missing.tgz client:") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestFetchCommand_TooManyDigests(t *testing.T) {
	_, err := runCLI(t, "fetch", "--cache-root", t.TempDir(), "--digest", "a,b", "http://example.com/a.tgz")
	if err == nil || !strings.Contains(err.Error(), "2 digests for 1 urls") {
		t.Errorf("expected digest count error, got: %v", err)
	}
}

func TestFetchCommand_RequiresCacheRoot(t *testing.T) {
	t.Setenv("TARFETCH_CACHE_ROOT", "")

	if _, err := runCLI(t, "fetch", "http://example.com/a.tgz"); err == nil || !strings.Contains(err.Error(), "cache_root") {
		t.Errorf("expected cache_root validation error, got: %v", err)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if out != "tarfetch dev (none)\n" {
		t.Errorf("output = %q", out)
	}
}
