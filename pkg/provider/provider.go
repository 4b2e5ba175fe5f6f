// Package provider supplies the resolver with release listings and
// per-release requirements.
//
// [Provider] is the capability set the resolver depends on. [PyPI] is the
// production implementation backed by one or more package indexes, a
// persistent metadata cache and a build backend for source-only releases.
// Package providertest holds a deterministic in-memory implementation for
// tests.
package provider

import (
	"context"
	"errors"
	"strings"

	pkgerrors "github.com/matzehuels/pylock/pkg/errors"
	"github.com/matzehuels/pylock/pkg/pep440"
	"github.com/matzehuels/pylock/pkg/pep508"
)

// ErrNotFound is wrapped by errors for projects no index knows.
var ErrNotFound = errors.New("project not found")

// Provider answers the two questions the resolver asks.
type Provider interface {
	// Versions returns the releases of a project, newest first. Each call
	// returns a fresh slice the caller may modify.
	Versions(ctx context.Context, name string) ([]Release, error)
	// Requirements returns the requirements of one release that apply in
	// env when the given extras are requested.
	Requirements(ctx context.Context, name string, version pep440.Version, extras []string, env pep508.Environment) ([]pep508.Requirement, error)
}

// Prefetcher is implemented by providers that can warm version listings
// for several names concurrently.
type Prefetcher interface {
	Prefetch(ctx context.Context, names []string)
}

// Release is one published version of a project.
type Release struct {
	Name           string
	Version        pep440.Version
	RequiresPython string // raw specifier, empty when unrestricted
	Yanked         bool
	Source         string // name of the index that served it
	Files          []File

	raw string // version spelling used by the index
}

// File is a distribution file of a release.
type File struct {
	Name string
	URL  string
	Hash string // "sha256:<hex>", empty when the index published none
}

// Hashes returns the non-empty file hashes in file order.
func (r Release) Hashes() []string {
	var out []string
	for _, f := range r.Files {
		if f.Hash != "" {
			out = append(out, f.Hash)
		}
	}
	return out
}

// SupportsPython reports whether the release's Requires-Python admits the
// interpreter version. Unparsable constraints are treated as unrestricted,
// the way installers do.
func (r Release) SupportsPython(python pep440.Version) bool {
	if r.RequiresPython == "" || python.IsZero() {
		return true
	}
	spec, err := pep440.ParseSpecifierSet(normalizeRequiresPython(r.RequiresPython))
	if err != nil {
		return true
	}
	return spec.Contains(python)
}

// normalizeRequiresPython drops spaces some uploads put between operator
// and version, e.g. ">= 3.6".
func normalizeRequiresPython(s string) string {
	return strings.ReplaceAll(s, " ", "")
}

// Unavailable wraps cause as a METADATA_UNAVAILABLE error for name.
func Unavailable(name string, cause error) error {
	return pkgerrors.Wrap(pkgerrors.ErrCodeMetadataUnavailable, cause, "no index could provide metadata for %s", name)
}
