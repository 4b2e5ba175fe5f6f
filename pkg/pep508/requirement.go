package pep508

import (
	"slices"
	"strings"

	"deps.dev/util/pypi"

	"github.com/matzehuels/pylock/pkg/pep440"
)

// Requirement is a named demand for a distribution: a version specifier,
// the extras to enable, and a marker gating whether it applies at all.
// Requirements are values; tightening a constraint produces a new one.
type Requirement struct {
	Name      string              // canonical (PEP 503) name
	Extras    []string            // canonical extra names, sorted
	Specifier pep440.SpecifierSet // empty means any version
	Marker    *Marker             // nil means always applies
}

// CanonicalName normalizes a distribution or extra name per PEP 503.
func CanonicalName(name string) string {
	return pypi.CanonPackageName(name)
}

// ParseRequirement parses a PEP 508 requirement string such as
// `requests[socks]>=2.8.1,<3; python_version >= "3.8"`. Direct URL
// references are rejected. See Parser for a memoizing variant.
func ParseRequirement(text string) (Requirement, error) {
	return parseRequirement(text, ParseMarker)
}

func parseRequirement(text string, parseMarker func(string) (*Marker, error)) (Requirement, error) {
	head, _, _ := strings.Cut(text, ";")
	if strings.Contains(head, "@") {
		return Requirement{}, &ParseError{Input: text, Reason: "direct URL references are not supported"}
	}
	d, err := pypi.ParseDependency(text)
	if err != nil {
		return Requirement{}, &ParseError{Input: text, Reason: err.Error()}
	}
	if d.Name == "" {
		return Requirement{}, &ParseError{Input: text, Reason: "missing distribution name"}
	}
	req := Requirement{Name: d.Name}
	if d.Extras != "" {
		for _, e := range strings.Split(d.Extras, ",") {
			e = strings.TrimSpace(e)
			if e == "" {
				return Requirement{}, &ParseError{Input: text, Reason: "empty extra name"}
			}
			req.Extras = append(req.Extras, CanonicalName(e))
		}
		req.Extras = normalizeExtras(req.Extras)
	}
	if d.Constraint != "" {
		req.Specifier, err = pep440.ParseSpecifierSet(d.Constraint)
		if err != nil {
			return Requirement{}, &ParseError{Input: text, Reason: err.Error()}
		}
	}
	if d.Environment != "" {
		req.Marker, err = parseMarker(d.Environment)
		if err != nil {
			return Requirement{}, &ParseError{Input: text, Reason: err.Error()}
		}
	}
	return req, nil
}

// FromDependency converts a dependency split by the core metadata parser
// back into a Requirement.
func FromDependency(d pypi.Dependency) (Requirement, error) {
	var b strings.Builder
	b.WriteString(d.Name)
	if d.Extras != "" {
		b.WriteString("[" + d.Extras + "]")
	}
	if d.Constraint != "" {
		b.WriteString(" " + d.Constraint)
	}
	if d.Environment != "" {
		b.WriteString("; " + d.Environment)
	}
	return ParseRequirement(b.String())
}

// MustParseRequirement is like ParseRequirement but panics on error.
func MustParseRequirement(text string) Requirement {
	r, err := ParseRequirement(text)
	if err != nil {
		panic(err)
	}
	return r
}

func normalizeExtras(extras []string) []string {
	slices.Sort(extras)
	return slices.Compact(extras)
}

func (r Requirement) clone() Requirement {
	r.Extras = slices.Clone(r.Extras)
	return r
}

// String renders the requirement in normalized PEP 508 form.
func (r Requirement) String() string {
	var b strings.Builder
	b.WriteString(r.Name)
	if len(r.Extras) > 0 {
		b.WriteByte('[')
		b.WriteString(strings.Join(r.Extras, ","))
		b.WriteByte(']')
	}
	b.WriteString(r.Specifier.String())
	if r.Marker != nil {
		b.WriteString("; ")
		b.WriteString(r.Marker.String())
	}
	return b.String()
}

// MarshalText implements encoding.TextMarshaler.
func (r Requirement) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Requirement) UnmarshalText(text []byte) error {
	parsed, err := ParseRequirement(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Applies reports whether the requirement is active in env for a
// dependent that was requested with the given extras.
func (r Requirement) Applies(env Environment, extras []string) bool {
	return r.Marker.Evaluate(env, extras)
}

// SatisfiedBy reports whether v satisfies the version specifier. The
// pre-release gate is the caller's concern; this only checks the clauses.
func (r Requirement) SatisfiedBy(v pep440.Version) bool {
	return r.Specifier.Contains(v)
}

// WithExtras returns a copy with extras added.
func (r Requirement) WithExtras(extras ...string) Requirement {
	out := r.clone()
	for _, e := range extras {
		out.Extras = append(out.Extras, CanonicalName(e))
	}
	out.Extras = normalizeExtras(out.Extras)
	return out
}

// Filter returns the requirements that apply in env for the given extras,
// preserving order. This is how a candidate's declared dependencies become
// the edges the resolver follows.
func Filter(reqs []Requirement, env Environment, extras []string) []Requirement {
	var out []Requirement
	for _, r := range reqs {
		if r.Applies(env, extras) {
			out = append(out, r)
		}
	}
	return out
}
