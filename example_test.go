package tarfetch_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"

	"github.com/adamwoolhether/tarfetch"
	"github.com/adamwoolhether/tarfetch/config"
	"github.com/adamwoolhether/tarfetch/fetch"
)

func ExampleNew() {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "hello")
	}))
	defer ts.Close()

	root, err := os.MkdirTemp("", "tarfetch-example")
	if err != nil {
		fmt.Println("temp dir error:", err)
		return
	}
	defer os.RemoveAll(root)

	cfg := config.Default()
	cfg.CacheRoot = root
	cfg.StagingDir = filepath.Join(root, "_staging")

	f, err := tarfetch.New(cfg, nil)
	if err != nil {
		fmt.Println("build error:", err)
		return
	}
	defer f.Close()

	res, err := f.Fetch(context.Background(), fetch.Request{
		URL:    ts.URL + "/hello/-/hello-1.0.0.tgz",
		Digest: "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d",
	})
	if err != nil {
		fmt.Println("fetch error:", err)
		return
	}

	rel, _ := filepath.Rel(root, res.Path)
	fmt.Println(res.Digest, res.Size, res.Attempts)
	fmt.Println(filepath.ToSlash(rel))
	// Output:
	// aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d 5 1
	// aa/aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d.tgz
}
