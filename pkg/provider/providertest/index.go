// Package providertest provides a deterministic in-memory provider for
// resolver tests.
//
// Fixtures name a release and list its requirements:
//
//	idx := providertest.New(map[string][]string{
//	    "foo 1.0": {"bar==1.0"},
//	    "foo 2.0": {"bar==2.0"},
//	    "bar 1.0": nil,
//	    "bar 2.0": nil,
//	})
package providertest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/matzehuels/pylock/pkg/pep440"
	"github.com/matzehuels/pylock/pkg/pep508"
	"github.com/matzehuels/pylock/pkg/provider"
)

type release struct {
	version        pep440.Version
	requires       []pep508.Requirement
	requiresPython string
	yanked         bool
}

// Index is an in-memory [provider.Provider]. It is safe for concurrent use
// and counts the calls it receives.
type Index struct {
	mu       sync.Mutex
	projects map[string][]*release
	calls    map[string]int
}

// New builds an index from "name version" -> requirement fixtures. It
// panics on malformed fixtures.
func New(fixtures map[string][]string) *Index {
	ix := &Index{projects: map[string][]*release{}, calls: map[string]int{}}
	for key, reqs := range fixtures {
		ix.Add(key, reqs...)
	}
	return ix
}

// Add registers a release. Adding the same release twice replaces it.
func (ix *Index) Add(nameVersion string, requires ...string) *Index {
	name, v := split(nameVersion)
	r := &release{version: v}
	for _, text := range requires {
		r.requires = append(r.requires, pep508.MustParseRequirement(text))
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	rs := slices.DeleteFunc(ix.projects[name], func(x *release) bool { return x.version.Equal(v) })
	ix.projects[name] = append(rs, r)
	return ix
}

// Yank marks a release as yanked.
func (ix *Index) Yank(nameVersion string) *Index {
	ix.update(nameVersion, func(r *release) { r.yanked = true })
	return ix
}

// RequiresPython sets the Requires-Python of a release.
func (ix *Index) RequiresPython(nameVersion, spec string) *Index {
	ix.update(nameVersion, func(r *release) { r.requiresPython = spec })
	return ix
}

func (ix *Index) update(nameVersion string, fn func(*release)) {
	name, v := split(nameVersion)
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for _, r := range ix.projects[name] {
		if r.version.Equal(v) {
			fn(r)
			return
		}
	}
	panic("providertest: unknown release " + nameVersion)
}

// Calls returns how often kind ("versions" or "requirements") was asked
// for name.
func (ix *Index) Calls(kind, name string) int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.calls[kind+":"+pep508.CanonicalName(name)]
}

// Versions implements provider.Provider.
func (ix *Index) Versions(ctx context.Context, name string) ([]provider.Release, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name = pep508.CanonicalName(name)
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.calls["versions:"+name]++

	rs, ok := ix.projects[name]
	if !ok {
		return nil, provider.Unavailable(name, provider.ErrNotFound)
	}
	out := make([]provider.Release, 0, len(rs))
	for _, r := range rs {
		out = append(out, provider.Release{
			Name:           name,
			Version:        r.version,
			RequiresPython: r.requiresPython,
			Yanked:         r.yanked,
			Source:         "test",
			Files:          []provider.File{fixtureFile(name, r.version)},
		})
	}
	slices.SortFunc(out, func(a, b provider.Release) int { return b.Version.Compare(a.Version) })
	return out, nil
}

// Requirements implements provider.Provider.
func (ix *Index) Requirements(ctx context.Context, name string, version pep440.Version, extras []string, env pep508.Environment) ([]pep508.Requirement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name = pep508.CanonicalName(name)
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.calls["requirements:"+name]++

	for _, r := range ix.projects[name] {
		if r.version.Equal(version) {
			return pep508.Filter(r.requires, env, extras), nil
		}
	}
	return nil, provider.Unavailable(name+" "+version.String(), provider.ErrNotFound)
}

func fixtureFile(name string, v pep440.Version) provider.File {
	file := fmt.Sprintf("%s-%s-py3-none-any.whl", strings.ReplaceAll(name, "-", "_"), v)
	sum := sha256.Sum256([]byte(file))
	return provider.File{
		Name: file,
		URL:  "https://files.test/" + file,
		Hash: "sha256:" + hex.EncodeToString(sum[:]),
	}
}

func split(nameVersion string) (string, pep440.Version) {
	fields := strings.Fields(nameVersion)
	if len(fields) != 2 {
		panic("providertest: fixture must be \"name version\": " + nameVersion)
	}
	return pep508.CanonicalName(fields[0]), pep440.MustParse(fields[1])
}

var _ provider.Provider = (*Index)(nil)
