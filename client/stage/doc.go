// Package stage streams HTTP response bodies to disk while computing a
// content digest, with write-then-rename finalization and optional
// progress reporting.
//
// # Staging a Body
//
// [Stage] writes the body to a temporary file alongside the destination
// path, hashing every byte as it is written, then atomically renames it
// on success:
//
//	receipt, err := stage.Stage(ctx, resp.Body, resp.ContentLength, stagingPath, logger,
//		stage.WithAlgorithm(stage.SHA256),
//		stage.WithMaxSize(512<<20),
//	)
//
// On any error the temporary file is removed and nothing appears at the
// destination path.
//
// # Memory
//
// Bytes move from the reader to the digest and the file through a single
// fixed-size buffer, so a slow disk paces the network read and memory use
// does not grow with the artifact. [WithMaxSize] bounds the artifact itself.
//
// Most callers should use the higher-level
// [github.com/adamwoolhether/tarfetch/client] package, which invokes
// Stage from [client.Client.Attempt].
package stage
