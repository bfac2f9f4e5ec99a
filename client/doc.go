// Package client provides the transfer layer of tarfetch: a configurable
// HTTP client built on [net/http] that performs single artifact transfer
// attempts.
//
// # Building a Client
//
// Use [Build] to create a [Client] with functional options:
//
//	c, err := client.Build(
//		client.WithTimeout(5 * time.Minute),
//		client.WithUserAgent("tarfetch/1.0"),
//		client.WithThrottle(10, 5),
//	)
//
// # Attempting a Transfer
//
// [Client.Attempt] performs exactly one GET and stages a 2xx body on disk
// while hashing it:
//
//	receipt, err := c.Attempt(ctx, artifactURL, client.Bearer(token), stagingPath,
//		stage.WithAlgorithm(stage.SHA256),
//	)
//	if err != nil && client.Retryable(err) {
//		// try again later
//	}
//
// Attempt never retries; see [github.com/adamwoolhether/tarfetch/retry]
// and [github.com/adamwoolhether/tarfetch/fetch] for the full pipeline.
package client
