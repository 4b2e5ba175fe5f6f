package resolve

import (
	"strings"

	"github.com/matzehuels/pylock/pkg/pep440"
	"github.com/matzehuels/pylock/pkg/pep508"
	"github.com/matzehuels/pylock/pkg/provider"
)

// Candidate is a release chosen for a name, together with the union of
// extras requested of it.
type Candidate struct {
	Name           string
	Version        pep440.Version
	Extras         []string
	RequiresPython string
	Source         string
	Yanked         bool
	Files          []provider.File
}

func candidateFrom(r provider.Release) Candidate {
	return Candidate{
		Name:           r.Name,
		Version:        r.Version,
		RequiresPython: r.RequiresPython,
		Source:         r.Source,
		Yanked:         r.Yanked,
		Files:          r.Files,
	}
}

// String returns "name[extras]==version".
func (c Candidate) String() string {
	var b strings.Builder
	b.WriteString(c.Name)
	if len(c.Extras) > 0 {
		b.WriteString("[" + strings.Join(c.Extras, ",") + "]")
	}
	b.WriteString("==")
	b.WriteString(c.Version.String())
	return b.String()
}

// Hashes returns the file hashes of the candidate.
func (c Candidate) Hashes() []string {
	return provider.Release{Files: c.Files}.Hashes()
}

// Edge is a requirement and the candidate that declared it. Parent is
// empty for requirements of the project itself.
type Edge struct {
	Parent        string
	ParentVersion pep440.Version
	Requirement   pep508.Requirement
}

// Target returns the name the edge points at.
func (e Edge) Target() string { return e.Requirement.Name }

// IsRoot reports whether the project itself declared the requirement.
func (e Edge) IsRoot() bool { return e.Parent == "" }

func (e Edge) key() string { return e.Parent + "\x00" + e.Requirement.String() }

// String describes the edge for conflict reports.
func (e Edge) String() string {
	if e.IsRoot() {
		return "project requires " + e.Requirement.String()
	}
	return e.Parent + " " + e.ParentVersion.String() + " requires " + e.Requirement.String()
}

func edgesFrom(parent string, version pep440.Version, reqs []pep508.Requirement) []Edge {
	out := make([]Edge, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, Edge{Parent: parent, ParentVersion: version, Requirement: r})
	}
	return out
}
