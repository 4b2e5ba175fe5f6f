package lock

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	pkgerrors "github.com/matzehuels/pylock/pkg/errors"
	"github.com/matzehuels/pylock/pkg/fsutil"
	"github.com/matzehuels/pylock/pkg/pep440"
	"github.com/matzehuels/pylock/pkg/pep508"
	"github.com/matzehuels/pylock/pkg/resolve"
)

// Version is the lock format version this package writes.
const Version = "1"

// DefaultFilename is the lock file name inside a project.
const DefaultFilename = "pylock.lock"

// DefaultGroup holds the project's main dependencies.
const DefaultGroup = "default"

const header = "# This file is @generated by pylock.\n# It is not intended for manual editing.\n\n"

// Strategies accepted by the lock command.
const (
	StrategyAll   = "all"
	StrategyReuse = "reuse"
	StrategyEager = "eager"
)

// Lock is the parsed content of a lock file.
type Lock struct {
	Metadata Metadata  `toml:"metadata"`
	Packages []Package `toml:"package"`
}

// Metadata is the lock header.
type Metadata struct {
	LockVersion    string   `toml:"lock_version"`
	ContentHash    string   `toml:"content_hash"`
	Strategy       string   `toml:"strategy"`
	Groups         []string `toml:"groups"`
	RequiresPython string   `toml:"requires_python,omitempty"`
}

// Package is one locked release.
type Package struct {
	Name           string         `toml:"name"`
	Version        pep440.Version `toml:"version"`
	Groups         []string       `toml:"groups"`
	Extras         []string       `toml:"extras,omitempty"`
	Marker         string         `toml:"marker,omitempty"`
	RequiresPython string         `toml:"requires_python,omitempty"`
	Source         string         `toml:"source,omitempty"`
	Dependencies   []string       `toml:"dependencies,omitempty"`
	Files          []File         `toml:"files,omitempty"`
}

// File is a distribution file of a locked release.
type File struct {
	Name string `toml:"file"`
	URL  string `toml:"url,omitempty"`
	Hash string `toml:"hash,omitempty"`
}

// Options describes the context a graph was resolved in.
type Options struct {
	Strategy       string
	Groups         map[string][]string // group -> names the project requires in it
	RequiresPython string
}

// FromGraph converts a resolution into a lock. Each package lists the
// groups whose direct requirements reach it. Without groups every package
// belongs to [DefaultGroup].
func FromGraph(g *resolve.Graph, fingerprint string, opts Options) *Lock {
	strategy := opts.Strategy
	if strategy == "" {
		strategy = StrategyAll
	}
	groups := opts.Groups
	if len(groups) == 0 {
		groups = map[string][]string{DefaultGroup: g.Roots()}
	}

	member := map[string][]string{}
	names := make([]string, 0, len(groups))
	for group := range groups {
		names = append(names, group)
	}
	slices.Sort(names)
	for _, group := range names {
		for _, name := range g.Reachable(groups[group]) {
			member[name] = append(member[name], group)
		}
	}

	l := &Lock{Metadata: Metadata{
		LockVersion:    Version,
		ContentHash:    fingerprint,
		Strategy:       strategy,
		Groups:         names,
		RequiresPython: opts.RequiresPython,
	}}
	for _, c := range g.Candidates() {
		p := Package{
			Name:           c.Name,
			Version:        c.Version,
			Groups:         member[c.Name],
			Extras:         nilIfEmpty(c.Extras),
			Marker:         g.Marker(c.Name).String(),
			RequiresPython: c.RequiresPython,
			Source:         c.Source,
		}
		if len(p.Groups) == 0 {
			p.Groups = []string{DefaultGroup}
		}
		for _, e := range g.Dependencies(c.Name) {
			dep := e.Requirement.String()
			if !slices.Contains(p.Dependencies, dep) {
				p.Dependencies = append(p.Dependencies, dep)
			}
		}
		for _, f := range c.Files {
			p.Files = append(p.Files, File{Name: f.Name, URL: f.URL, Hash: f.Hash})
		}
		l.Packages = append(l.Packages, p)
	}
	return l
}

func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return slices.Clone(s)
}

// Marshal encodes l. Packages are sorted by name first, so the output only
// depends on the lock's content.
func Marshal(l *Lock) ([]byte, error) {
	out := *l
	out.Packages = slices.Clone(l.Packages)
	slices.SortFunc(out.Packages, func(a, b Package) int { return strings.Compare(a.Name, b.Name) })

	var buf bytes.Buffer
	buf.WriteString(header)
	enc := toml.NewEncoder(&buf)
	enc.Indent = ""
	if err := enc.Encode(out); err != nil {
		return nil, fmt.Errorf("encode lock: %w", err)
	}
	return buf.Bytes(), nil
}

// Parse decodes and validates a lock file.
func Parse(data []byte) (*Lock, error) {
	var l Lock
	if _, err := toml.Decode(string(data), &l); err != nil {
		return nil, corrupt(err, "invalid TOML")
	}
	if err := l.validate(); err != nil {
		return nil, err
	}
	return &l, nil
}

func corrupt(cause error, format string, args ...any) error {
	if cause == nil {
		return pkgerrors.New(pkgerrors.ErrCodeCorruptLock, format, args...)
	}
	return pkgerrors.Wrap(pkgerrors.ErrCodeCorruptLock, cause, format, args...)
}

func (l *Lock) validate() error {
	switch {
	case l.Metadata.LockVersion == "":
		return corrupt(nil, "metadata.lock_version is missing")
	case l.Metadata.LockVersion != Version:
		return corrupt(nil, "unsupported lock_version %q (want %q)", l.Metadata.LockVersion, Version)
	case l.Metadata.ContentHash != "" && !strings.HasPrefix(l.Metadata.ContentHash, "sha256:"):
		return corrupt(nil, "metadata.content_hash must start with sha256:")
	}
	seen := map[string]bool{}
	for i, p := range l.Packages {
		if p.Name == "" {
			return corrupt(nil, "package[%d]: name is missing", i)
		}
		if p.Name != pep508.CanonicalName(p.Name) {
			return corrupt(nil, "package[%d]: name %q is not normalized", i, p.Name)
		}
		if seen[p.Name] {
			return corrupt(nil, "package %s is listed twice", p.Name)
		}
		seen[p.Name] = true
		if p.Version.IsZero() {
			return corrupt(nil, "package %s: version is missing", p.Name)
		}
		if p.Marker != "" {
			if _, err := pep508.ParseMarker(p.Marker); err != nil {
				return corrupt(err, "package %s: marker", p.Name)
			}
		}
		for _, d := range p.Dependencies {
			if _, err := pep508.ParseRequirement(d); err != nil {
				return corrupt(err, "package %s: dependency", p.Name)
			}
		}
		for _, f := range p.Files {
			if f.Hash != "" && !strings.HasPrefix(f.Hash, "sha256:") {
				return corrupt(nil, "package %s: file %s has unsupported hash %q", p.Name, f.Name, f.Hash)
			}
		}
	}
	return nil
}

// Read loads a lock file. A missing file is reported as
// [errors.ErrCodeLockNotFound].
func Read(path string) (*Lock, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, pkgerrors.Wrap(pkgerrors.ErrCodeLockNotFound, err, "no lock file at %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	l, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return l, nil
}

// Save writes l to path atomically.
func Save(path string, l *Lock) error {
	data, err := Marshal(l)
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(path, data, 0o644)
}

// Write converts g with [FromGraph] and saves it to path.
func Write(path string, g *resolve.Graph, fingerprint string, opts Options) (*Lock, error) {
	l := FromGraph(g, fingerprint, opts)
	if err := Save(path, l); err != nil {
		return nil, err
	}
	return l, nil
}

// Fingerprint returns the content hash of the project the lock was made
// from.
func (l *Lock) Fingerprint() string { return l.Metadata.ContentHash }

// IsStale reports whether the lock was produced from a different project
// declaration than the one with the given fingerprint.
func (l *Lock) IsStale(fingerprint string) bool { return l.Metadata.ContentHash != fingerprint }

// Package returns the entry for name.
func (l *Lock) Package(name string) (Package, bool) {
	name = pep508.CanonicalName(name)
	for _, p := range l.Packages {
		if p.Name == name {
			return p, true
		}
	}
	return Package{}, false
}

// Versions maps every locked name to its version.
func (l *Lock) Versions() map[string]pep440.Version {
	out := make(map[string]pep440.Version, len(l.Packages))
	for _, p := range l.Packages {
		out[p.Name] = p.Version
	}
	return out
}

// InGroups returns the packages belonging to any of groups, sorted by name.
func (l *Lock) InGroups(groups []string) []Package {
	var out []Package
	for _, p := range l.Packages {
		if slices.ContainsFunc(p.Groups, func(g string) bool { return slices.Contains(groups, g) }) {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b Package) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Select returns the packages in any of groups whose marker holds in env,
// sorted by name.
func (l *Lock) Select(groups []string, env pep508.Environment) ([]Package, error) {
	var out []Package
	for _, p := range l.InGroups(groups) {
		if p.Marker != "" {
			m, err := pep508.ParseMarker(p.Marker)
			if err != nil {
				return nil, corrupt(err, "package %s: marker", p.Name)
			}
			if !m.Evaluate(env, nil) {
				continue
			}
		}
		out = append(out, p)
	}
	return out, nil
}

// Graph rebuilds the resolution graph recorded in the lock. roots are the
// project's direct requirements.
func (l *Lock) Graph(roots []pep508.Requirement) (*resolve.Graph, error) {
	cands := make([]resolve.Candidate, 0, len(l.Packages))
	var edges []resolve.Edge
	for _, p := range l.Packages {
		c := resolve.Candidate{
			Name:           p.Name,
			Version:        p.Version,
			Extras:         p.Extras,
			RequiresPython: p.RequiresPython,
			Source:         p.Source,
		}
		cands = append(cands, c)
		for _, d := range p.Dependencies {
			req, err := pep508.ParseRequirement(d)
			if err != nil {
				return nil, corrupt(err, "package %s: dependency", p.Name)
			}
			edges = append(edges, resolve.Edge{Parent: p.Name, ParentVersion: p.Version, Requirement: req})
		}
	}
	var names []string
	for _, r := range roots {
		edges = append(edges, resolve.Edge{Requirement: r})
		names = append(names, r.Name)
	}
	return resolve.NewGraph(cands, edges, names), nil
}

// Hashes returns the file hashes of p.
func (p Package) Hashes() []string {
	var out []string
	for _, f := range p.Files {
		if f.Hash != "" {
			out = append(out, f.Hash)
		}
	}
	return out
}
