// Package lock persists a resolution as a TOML lock file.
//
// A lock records one [Package] per resolved name, sorted by name, plus a
// [Metadata] header carrying the fingerprint of the project declaration it
// was produced from. Locking the same input twice yields byte-identical
// files, and [Parse] of [Marshal] output reproduces the lock exactly.
//
//	[metadata]
//	lock_version = "1"
//	content_hash = "sha256:9f86d0..."
//	strategy = "all"
//	groups = ["default", "dev"]
//
//	[[package]]
//	name = "requests"
//	version = "2.31.0"
//	groups = ["default"]
//	dependencies = ["certifi>=2017.4.17", "idna<4,>=2.5"]
//
//	[[package.files]]
//	file = "requests-2.31.0-py3-none-any.whl"
//	hash = "sha256:58cd2187..."
//
// Files are written atomically. Malformed files are reported as
// [errors.ErrCodeCorruptLock].
package lock
