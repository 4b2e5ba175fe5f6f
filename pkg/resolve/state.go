package resolve

import (
	"maps"
	"slices"

	"github.com/matzehuels/pylock/pkg/pep440"
)

// criterion collects everything known about one name in a partial
// assignment.
type criterion struct {
	edges  []Edge
	spec   pep440.SpecifierSet // conjunction of every edge's specifier
	extras []string            // union of every edge's extras

	// incompatible versions were rejected under the current assignment.
	// blame holds the decisions those rejections depend on and causes the
	// conflicts that produced them.
	incompatible []pep440.Version
	blame        map[string]bool
	causes       []Conflict
}

func (c *criterion) clone() *criterion {
	out := *c
	out.edges = slices.Clone(c.edges)
	out.extras = slices.Clone(c.extras)
	out.incompatible = slices.Clone(c.incompatible)
	out.blame = maps.Clone(c.blame)
	out.causes = slices.Clone(c.causes)
	return &out
}

func (c *criterion) hasEdge(e Edge) bool {
	k := e.key()
	return slices.ContainsFunc(c.edges, func(x Edge) bool { return x.key() == k })
}

func (c *criterion) add(e Edge) {
	c.edges = append(c.edges, e)
	c.spec = c.spec.Intersect(e.Requirement.Specifier)
	c.extras = unionExtras(c.extras, e.Requirement.Extras)
}

func (c *criterion) isIncompatible(v pep440.Version) bool {
	return slices.ContainsFunc(c.incompatible, v.Equal)
}

func (c *criterion) reject(v pep440.Version, blame map[string]bool, causes []Conflict) {
	c.incompatible = append(c.incompatible, v)
	if c.blame == nil {
		c.blame = map[string]bool{}
	}
	for name := range blame {
		c.blame[name] = true
	}
	for _, cause := range causes {
		if !slices.ContainsFunc(c.causes, cause.equal) {
			c.causes = append(c.causes, cause)
		}
	}
}

// pinsExactly reports whether some edge names an exact version, which
// makes yanked releases eligible.
func (c *criterion) pinsExactly() bool {
	for _, e := range c.edges {
		for _, s := range e.Requirement.Specifier.Specifiers() {
			if s.Op == pep440.OpArbitrary || (s.Op == pep440.OpEqual && !s.Wildcard) {
				return true
			}
		}
	}
	return false
}

// state is a partial assignment. States are copy-on-write: clone shares
// criteria with the original until mutable is called for a name.
type state struct {
	criteria map[string]*criterion
	pins     map[string]Candidate
	merged   map[string][]string // extras whose requirements were merged for a pin
	owned    map[string]bool
}

func newState() *state {
	return &state{
		criteria: map[string]*criterion{},
		pins:     map[string]Candidate{},
		merged:   map[string][]string{},
		owned:    map[string]bool{},
	}
}

func (s *state) clone() *state {
	return &state{
		criteria: maps.Clone(s.criteria),
		pins:     maps.Clone(s.pins),
		merged:   maps.Clone(s.merged),
		owned:    map[string]bool{},
	}
}

// mutable returns the criterion for name, creating it or copying it out
// of a shared state as needed.
func (s *state) mutable(name string) *criterion {
	c, ok := s.criteria[name]
	switch {
	case !ok:
		c = &criterion{}
	case !s.owned[name]:
		c = c.clone()
	default:
		return c
	}
	s.criteria[name] = c
	s.owned[name] = true
	return c
}

// unresolved returns the names without a pin, sorted.
func (s *state) unresolved() []string {
	var out []string
	for name := range s.criteria {
		if _, ok := s.pins[name]; !ok {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}

// culprits returns the decisions that made e part of the assignment: its
// parent and, when the parent pulled e in through an extra, whoever asked
// for extras of the parent.
func (s *state) culprits(e Edge, into map[string]bool) {
	if e.IsRoot() {
		return
	}
	into[e.Parent] = true
	if !e.Requirement.Marker.MentionsExtra() {
		return
	}
	if pc, ok := s.criteria[e.Parent]; ok {
		for _, pe := range pc.edges {
			if len(pe.Requirement.Extras) > 0 && !pe.IsRoot() && pe.Parent != e.Parent {
				into[pe.Parent] = true
			}
		}
	}
}

func unionExtras(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	out := append(slices.Clone(a), b...)
	slices.Sort(out)
	return slices.Compact(out)
}

func subset(a, b []string) bool {
	for _, x := range a {
		if !slices.Contains(b, x) {
			return false
		}
	}
	return true
}
