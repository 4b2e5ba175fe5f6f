// Package pkg provides the core libraries of pylock, a Python dependency
// resolver and lock manager.
//
// # Overview
//
// pylock turns the requirements declared in pyproject.toml into a lock file
// of exact versions and file hashes, and makes an interpreter's environment
// match that lock. The pkg directory is organized by concern:
//
//  1. Standards: [pep440] versions and specifiers, [pep508] requirements,
//     markers and environments
//  2. Metadata: [provider] answers "which releases exist" and "what does a
//     release require", backed by [integrations/pypi], [cache] and [build]
//  3. Resolution: [resolve] searches for one release per name satisfying
//     every reachable requirement
//  4. Artifacts: [lock] reads and writes the lock file, [io] the graph JSON
//     format, [render] draws the graph
//  5. Environments: [envsync] inspects an interpreter, plans and executes
//     the changes that make it match a lock
//  6. Projects: [project] reads and edits pyproject.toml
//
// # Architecture
//
// The data flow of "pylock lock" followed by "pylock sync":
//
//	pyproject.toml
//	     ↓
//	[project] (requirements per group, fingerprint)
//	     ↓
//	[resolve] ← [provider] ← index + [cache]
//	     ↓
//	[lock] (pylock.lock)
//	     ↓
//	[envsync] (plan against installed, execute with pip)
//
// # Quick Start
//
//	p, _ := project.Load("pyproject.toml")
//	roots, _ := p.Requirements(p.Groups()...)
//
//	store, _ := cache.NewFileCache(dir)
//	index := provider.NewPyPI(store, p.Sources)
//
//	g, err := resolve.New(index, resolve.Options{Env: pep508.ForPython("3.12")}).
//	    Resolve(ctx, roots)
//	if err != nil {
//	    return err // *resolve.ConflictError names the clashing requirements
//	}
//	_, err = lock.Write(p.LockPath(), g, p.Fingerprint(), lock.Options{})
//
// # Errors
//
// Every package reports failures with codes from [errors], so callers can
// branch on the kind of failure without matching strings.
//
// [pep440]: https://pkg.go.dev/github.com/matzehuels/pylock/pkg/pep440
// [pep508]: https://pkg.go.dev/github.com/matzehuels/pylock/pkg/pep508
// [provider]: https://pkg.go.dev/github.com/matzehuels/pylock/pkg/provider
// [integrations/pypi]: https://pkg.go.dev/github.com/matzehuels/pylock/pkg/integrations/pypi
// [cache]: https://pkg.go.dev/github.com/matzehuels/pylock/pkg/cache
// [build]: https://pkg.go.dev/github.com/matzehuels/pylock/pkg/build
// [resolve]: https://pkg.go.dev/github.com/matzehuels/pylock/pkg/resolve
// [lock]: https://pkg.go.dev/github.com/matzehuels/pylock/pkg/lock
// [io]: https://pkg.go.dev/github.com/matzehuels/pylock/pkg/io
// [render]: https://pkg.go.dev/github.com/matzehuels/pylock/pkg/render
// [envsync]: https://pkg.go.dev/github.com/matzehuels/pylock/pkg/envsync
// [project]: https://pkg.go.dev/github.com/matzehuels/pylock/pkg/project
// [errors]: https://pkg.go.dev/github.com/matzehuels/pylock/pkg/errors
package pkg
