// Package project reads and edits a Python project declaration
// (pyproject.toml).
//
// A [Project] exposes the direct requirements of each dependency group:
//
//   - "default": [project] dependencies
//   - one group per [project.optional-dependencies] table key
//   - one group per [tool.pdm.dev-dependencies] table key
//
// together with requires-python, the configured package indexes
// ([[tool.pdm.source]]) and whether pre-releases are allowed. [Fingerprint]
// hashes everything that influences a resolution, which is what a lock
// records to detect that it has gone stale.
//
// [Project.Add] and [Project.Remove] edit the declaration in place: only the
// affected array is rewritten, so comments and layout elsewhere survive.
//
// Every malformed field is reported with [errors.ErrCodeInvalidProject]
// and names the offending key, e.g. "project.dependencies[2]".
package project
