package pep440

import (
	"slices"
	"strings"
)

// Operator is a version comparison operator.
type Operator string

// Supported operators, longest first so that parsing can match prefixes.
const (
	OpArbitrary  Operator = "==="
	OpCompatible Operator = "~="
	OpEqual      Operator = "=="
	OpNotEqual   Operator = "!="
	OpLessEq     Operator = "<="
	OpGreaterEq  Operator = ">="
	OpLess       Operator = "<"
	OpGreater    Operator = ">"
)

var operators = []Operator{
	OpArbitrary, OpCompatible, OpEqual, OpNotEqual,
	OpLessEq, OpGreaterEq, OpLess, OpGreater,
}

// Specifier is a single operator and version, such as ">=1.0" or "==2.*".
type Specifier struct {
	Op       Operator
	Version  Version
	Wildcard bool   // "==1.2.*" or "!=1.2.*"
	raw      string // version text as written, used by ===
}

// ParseSpecifier parses a single specifier clause.
func ParseSpecifier(text string) (Specifier, error) {
	s := strings.TrimSpace(text)
	var op Operator
	for _, candidate := range operators {
		if strings.HasPrefix(s, string(candidate)) {
			op = candidate
			break
		}
	}
	if op == "" {
		return Specifier{}, &ParseError{Input: text, Reason: "missing comparison operator"}
	}
	rest := strings.TrimSpace(s[len(op):])
	if rest == "" {
		return Specifier{}, &ParseError{Input: text, Reason: "missing version after operator"}
	}
	spec := Specifier{Op: op, raw: rest}
	if op == OpArbitrary {
		// === compares strings; the version may not be PEP 440 at all.
		if v, err := Parse(rest); err == nil {
			spec.Version = v
		}
		return spec, nil
	}
	if trimmed, ok := strings.CutSuffix(rest, ".*"); ok {
		if op != OpEqual && op != OpNotEqual {
			return Specifier{}, &ParseError{Input: text, Reason: "wildcard only allowed with == and !="}
		}
		spec.Wildcard = true
		rest = trimmed
	}
	v, err := Parse(rest)
	if err != nil {
		return Specifier{}, &ParseError{Input: text, Reason: "invalid version " + quote(rest)}
	}
	if spec.Wildcard && (v.phase != phaseNone || v.post >= 0 || v.dev >= 0 || len(v.local) > 0) {
		return Specifier{}, &ParseError{Input: text, Reason: "wildcard requires a release-only prefix"}
	}
	if len(v.local) > 0 && op != OpEqual && op != OpNotEqual {
		return Specifier{}, &ParseError{Input: text, Reason: "local versions only allowed with == and !="}
	}
	if op == OpCompatible && len(v.release) < 2 {
		return Specifier{}, &ParseError{Input: text, Reason: "~= requires at least two release segments"}
	}
	spec.Version = v
	return spec, nil
}

func quote(s string) string { return "\"" + s + "\"" }

// String returns the normalized clause.
func (s Specifier) String() string {
	if s.Op == OpArbitrary {
		return string(s.Op) + s.raw
	}
	out := string(s.Op) + s.Version.String()
	if s.Wildcard {
		out += ".*"
	}
	return out
}

// PrereleaseRequested reports whether the clause names a pre-release,
// which opts its set into pre-release matching.
func (s Specifier) PrereleaseRequested() bool {
	if s.Op == OpNotEqual || s.Version.IsZero() {
		return false
	}
	return s.Version.IsPrerelease()
}

// Contains reports whether v satisfies the clause, without applying the
// pre-release gate.
func (s Specifier) Contains(v Version) bool {
	switch s.Op {
	case OpArbitrary:
		return strings.EqualFold(v.String(), s.raw)
	case OpEqual:
		return s.equal(v)
	case OpNotEqual:
		return !s.equal(v)
	case OpCompatible:
		prefix := Specifier{Op: OpEqual, Version: s.Version.Base(), Wildcard: true}
		prefix.Version.release = s.Version.release[:len(s.Version.release)-1]
		return Compare(v.Public(), s.Version) >= 0 && prefix.equal(v)
	case OpLessEq:
		return Compare(v.Public(), s.Version) <= 0
	case OpGreaterEq:
		return Compare(v.Public(), s.Version) >= 0
	case OpLess:
		if Compare(v.Public(), s.Version) >= 0 {
			return false
		}
		// <3.0 must not admit 3.0rc1.
		if !s.Version.IsPrerelease() && v.IsPrerelease() && v.Base().Equal(s.Version.Base()) {
			return false
		}
		return true
	case OpGreater:
		if Compare(v.Public(), s.Version) <= 0 {
			return false
		}
		// >3.0 must not admit 3.0.post1 or 3.0+local.
		if !s.Version.IsPostRelease() && v.IsPostRelease() && v.Base().Equal(s.Version.Base()) {
			return false
		}
		if len(v.local) > 0 && v.Base().Equal(s.Version.Base()) {
			return false
		}
		return true
	}
	return false
}

// equal implements == for both exact and prefix matching. The candidate's
// local segment only matters when the clause carries one.
func (s Specifier) equal(v Version) bool {
	if s.Wildcard {
		if v.epoch != s.Version.epoch {
			return false
		}
		for i, n := range s.Version.release {
			var got int
			if i < len(v.release) {
				got = v.release[i]
			}
			if got != n {
				return false
			}
		}
		return true
	}
	if len(s.Version.local) > 0 {
		return Compare(v, s.Version) == 0
	}
	return Compare(v.Public(), s.Version) == 0
}

// Matches reports whether v satisfies the clause. Pre-releases only match
// when allowPre is set or the clause itself names a pre-release.
func (s Specifier) Matches(v Version, allowPre bool) bool {
	if v.IsPrerelease() && !allowPre && !s.PrereleaseRequested() {
		return false
	}
	return s.Contains(v)
}

// SpecifierSet is a conjunction of specifiers. The empty set matches every
// version (subject to the pre-release gate).
type SpecifierSet struct {
	specs []Specifier
}

// ParseSpecifierSet parses a comma separated list of clauses, such as
// ">=1.0, <2.0". An empty string yields the empty set.
func ParseSpecifierSet(text string) (SpecifierSet, error) {
	var set SpecifierSet
	if strings.TrimSpace(text) == "" {
		return set, nil
	}
	for _, part := range strings.Split(text, ",") {
		spec, err := ParseSpecifier(part)
		if err != nil {
			if pe, ok := err.(*ParseError); ok {
				pe.Input = text
			}
			return SpecifierSet{}, err
		}
		set.specs = append(set.specs, spec)
	}
	set.normalize()
	return set, nil
}

// MustParseSpecifierSet is like ParseSpecifierSet but panics on error.
func MustParseSpecifierSet(text string) SpecifierSet {
	set, err := ParseSpecifierSet(text)
	if err != nil {
		panic(err)
	}
	return set
}

// NewSpecifierSet builds a set from already parsed clauses.
func NewSpecifierSet(specs ...Specifier) SpecifierSet {
	set := SpecifierSet{specs: slices.Clone(specs)}
	set.normalize()
	return set
}

// normalize sorts clauses by their string form and drops duplicates so
// that equivalent sets print and hash identically.
func (s *SpecifierSet) normalize() {
	slices.SortFunc(s.specs, func(a, b Specifier) int {
		return strings.Compare(a.String(), b.String())
	})
	s.specs = slices.CompactFunc(s.specs, func(a, b Specifier) bool {
		return a.String() == b.String()
	})
}

// Specifiers returns a copy of the clauses.
func (s SpecifierSet) Specifiers() []Specifier { return slices.Clone(s.specs) }

// Len returns the number of clauses.
func (s SpecifierSet) Len() int { return len(s.specs) }

// IsEmpty reports whether the set has no clauses.
func (s SpecifierSet) IsEmpty() bool { return len(s.specs) == 0 }

// String returns the clauses joined by commas in canonical order.
func (s SpecifierSet) String() string {
	parts := make([]string, len(s.specs))
	for i, spec := range s.specs {
		parts[i] = spec.String()
	}
	return strings.Join(parts, ",")
}

// MarshalText implements encoding.TextMarshaler.
func (s SpecifierSet) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *SpecifierSet) UnmarshalText(text []byte) error {
	parsed, err := ParseSpecifierSet(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// PrereleaseRequested reports whether any clause names a pre-release.
func (s SpecifierSet) PrereleaseRequested() bool {
	for _, spec := range s.specs {
		if spec.PrereleaseRequested() {
			return true
		}
	}
	return false
}

// Contains reports whether v satisfies every clause, ignoring the
// pre-release gate.
func (s SpecifierSet) Contains(v Version) bool {
	for _, spec := range s.specs {
		if !spec.Contains(v) {
			return false
		}
	}
	return true
}

// Matches reports whether v satisfies every clause. A pre-release only
// matches when allowPre is set or some clause names a pre-release.
func (s SpecifierSet) Matches(v Version, allowPre bool) bool {
	if v.IsPrerelease() && !allowPre && !s.PrereleaseRequested() {
		return false
	}
	return s.Contains(v)
}

// Intersect returns the conjunction of s and o. The result is never looser
// than either input.
func (s SpecifierSet) Intersect(o SpecifierSet) SpecifierSet {
	out := SpecifierSet{specs: make([]Specifier, 0, len(s.specs)+len(o.specs))}
	out.specs = append(out.specs, s.specs...)
	out.specs = append(out.specs, o.specs...)
	out.normalize()
	return out
}

// Filter returns the versions in vs that satisfy the set, in their
// original order. When allowPre is nil the default rule applies:
// pre-releases are dropped unless a clause names one or no final release
// satisfies the set. A non-nil allowPre forces the decision.
func (s SpecifierSet) Filter(vs []Version, allowPre *bool) []Version {
	if allowPre != nil {
		var out []Version
		for _, v := range vs {
			if s.Matches(v, *allowPre) {
				out = append(out, v)
			}
		}
		return out
	}
	requested := s.PrereleaseRequested()
	var stable, pre []Version
	for _, v := range vs {
		if !s.Contains(v) {
			continue
		}
		if v.IsPrerelease() && !requested {
			pre = append(pre, v)
			continue
		}
		stable = append(stable, v)
	}
	if len(stable) == 0 {
		return pre
	}
	return stable
}
