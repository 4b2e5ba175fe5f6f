package resolve

import (
	"slices"
	"strings"

	"github.com/matzehuels/pylock/pkg/errors"
	"github.com/matzehuels/pylock/pkg/pep440"
)

// Conflict is a set of requirements on one name that no release satisfies
// together. When Pinned is set, the conflict is between an already chosen
// version and a requirement that excludes it.
type Conflict struct {
	Name   string
	Edges  []Edge
	Pinned pep440.Version
}

func (c Conflict) String() string {
	parts := make([]string, 0, len(c.Edges))
	for _, e := range c.Edges {
		parts = append(parts, e.String())
	}
	if !c.Pinned.IsZero() {
		return c.Name + " " + c.Pinned.String() + " was selected, but " + strings.Join(parts, " and ")
	}
	return "no version of " + c.Name + " satisfies: " + strings.Join(parts, "; ")
}

func (c Conflict) equal(o Conflict) bool { return c.String() == o.String() }

// ConflictError reports an impossible resolution.
type ConflictError struct {
	Conflicts []Conflict
}

func (e *ConflictError) Error() string {
	if len(e.Conflicts) == 1 {
		return "resolution impossible: " + e.Conflicts[0].String()
	}
	lines := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		lines = append(lines, "  "+c.String())
	}
	return "resolution impossible:\n" + strings.Join(lines, "\n")
}

// ErrorCode implements errors.Coder.
func (e *ConflictError) ErrorCode() errors.Code { return errors.ErrCodeResolutionImpossible }

// Requirements returns every edge named by the conflicts, de-duplicated.
func (e *ConflictError) Requirements() []Edge {
	var out []Edge
	seen := map[string]bool{}
	for _, c := range e.Conflicts {
		for _, edge := range c.Edges {
			if !seen[edge.key()] {
				seen[edge.key()] = true
				out = append(out, edge)
			}
		}
	}
	return out
}

func newConflictError(conflicts []Conflict) *ConflictError {
	var out []Conflict
	for _, c := range conflicts {
		if !slices.ContainsFunc(out, c.equal) {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b Conflict) int { return strings.Compare(a.String(), b.String()) })
	return &ConflictError{Conflicts: out}
}

// failure is a rejected merge: the conflicts found and the decisions they
// depend on.
type failure struct {
	culprits  map[string]bool
	conflicts []Conflict
}

// minimize drops edges, one at a time, while the rest still admits no
// release of name. The result is minimal: removing any remaining edge
// makes the set satisfiable.
func (s *search) minimize(name string, edges []Edge) []Edge {
	unsat := func(es []Edge) bool {
		c := &criterion{}
		for _, e := range es {
			c.add(e)
		}
		return len(s.admissible(name, c)) == 0
	}
	edges = slices.Clone(edges)
	sortEdges(edges)
	if !unsat(edges) {
		return edges
	}
	out := slices.Clone(edges)
	for i := 0; i < len(out); {
		trial := slices.Delete(slices.Clone(out), i, i+1)
		if len(trial) > 0 && unsat(trial) {
			out = trial
			continue
		}
		i++
	}
	return out
}

func sortEdges(edges []Edge) {
	slices.SortStableFunc(edges, func(a, b Edge) int {
		if c := strings.Compare(a.Parent, b.Parent); c != 0 {
			return c
		}
		return strings.Compare(a.Requirement.String(), b.Requirement.String())
	})
}
