// Command tarfetch downloads package archives into a content-addressed
// cache, verifying each against an expected digest.
//
//	tarfetch fetch --cache-root ~/.cache/tarfetch \
//		--digest 5b8a3a7765dfe001261dde915589e782f8c94d1e \
//		https://registry.npmjs.org/left-pad/-/left-pad-1.3.0.tgz
//
// Every setting can also come from a YAML file (--config) or a TARFETCH_
// environment variable, e.g. TARFETCH_FETCH_RETRIES=5.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Build-time variables injected via ldflags
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
