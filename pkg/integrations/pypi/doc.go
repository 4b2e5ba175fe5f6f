// Package pypi provides an HTTP client for indexes that serve the PyPI JSON
// API.
//
// # Usage
//
//	client := pypi.NewClient(backend, pypi.DefaultIndexURL, time.Hour, nil)
//
//	project, err := client.FetchProject(ctx, "fastapi", false)
//	release, err := client.FetchRelease(ctx, "fastapi", "0.110.0")
//
// [Client.FetchProject] returns every release with its files, hashes,
// Requires-Python and yank status. [Client.FetchRelease] returns the
// requires_dist list of one release. When the index did not extract
// dependency metadata, [ReleaseMetadata.RequiresDist] is nil and callers
// fall back to [Client.FetchCoreMetadata] (PEP 658) or to downloading the
// distribution with [Client.Download].
//
// # Caching
//
// Project listings change when new versions are published and are cached
// with the TTL given to [NewClient]. Release metadata and core metadata
// files are immutable once published and are cached without expiry.
package pypi
