// Package fetch retrieves remote package archives into a local store.
//
// A [Fetcher] runs one pipeline per artifact URL:
//
//	Preparing -> Fetching -> Verifying -> Handoff -> Cleanup -> Done
//
// Preparing creates the staging directory. Fetching makes up to
// [retry.Policy.Attempts] transfer attempts, retrying only failures that may
// be transient. Verifying compares the observed digest with the expected one.
// Handoff passes the staged file to an [Importer]. Cleanup removes the
// staging file whatever the outcome.
//
// Concurrent [Fetcher.Fetch] calls for the same URL share a single pipeline
// and all receive its result:
//
//	f, err := fetch.New(
//		fetch.WithStagingRoot("/var/cache/tarfetch/_staging"),
//		fetch.WithImporter(importer),
//	)
//	if err != nil {
//		return err
//	}
//	defer f.Close()
//
//	res, err := f.Fetch(ctx, fetch.Request{
//		URL:    "https://registry.npmjs.org/left-pad/-/left-pad-1.3.0.tgz",
//		Digest: "5b8a3a7765dfe001261dde915589e782f8c94d1e",
//	})
//
// Errors can be classified with [KindOf] or matched with [errors.Is]
// against the sentinels re-exported here.
package fetch
