package resolve

import (
	"slices"
	"strings"

	"github.com/matzehuels/pylock/pkg/pep508"
)

// Graph is a resolution result: exactly one candidate per name and the
// requirement edges between them. A Graph is immutable.
type Graph struct {
	nodes    map[string]Candidate
	outgoing map[string][]Edge // parent ("" for the project) -> edges
	incoming map[string][]Edge // target -> edges
	roots    []string
}

// NewGraph builds a graph from candidates and edges, for instance when
// reading one back from a lock. Edges pointing at or from unknown names are
// dropped. roots lists the names the project requires directly.
func NewGraph(candidates []Candidate, edges []Edge, roots []string) *Graph {
	g := &Graph{
		nodes:    make(map[string]Candidate, len(candidates)),
		outgoing: map[string][]Edge{},
		incoming: map[string][]Edge{},
	}
	for _, c := range candidates {
		g.nodes[c.Name] = c
	}
	seen := map[string]bool{}
	for _, e := range edges {
		if _, ok := g.nodes[e.Target()]; !ok {
			continue
		}
		if _, ok := g.nodes[e.Parent]; !ok && !e.IsRoot() {
			continue
		}
		if seen[e.key()] {
			continue
		}
		seen[e.key()] = true
		g.outgoing[e.Parent] = append(g.outgoing[e.Parent], e)
		g.incoming[e.Target()] = append(g.incoming[e.Target()], e)
	}
	for _, es := range g.outgoing {
		sortByTarget(es)
	}
	for _, es := range g.incoming {
		sortEdges(es)
	}
	for _, r := range roots {
		if _, ok := g.nodes[r]; ok && !slices.Contains(g.roots, r) {
			g.roots = append(g.roots, r)
		}
	}
	return g
}

func newGraph(st *state, roots []string) *Graph {
	cands := make([]Candidate, 0, len(st.pins))
	var edges []Edge
	for name, c := range st.pins {
		cands = append(cands, c)
		edges = append(edges, st.criteria[name].edges...)
	}
	return NewGraph(cands, edges, roots)
}

func sortByTarget(edges []Edge) {
	slices.SortStableFunc(edges, func(a, b Edge) int {
		if c := strings.Compare(a.Target(), b.Target()); c != 0 {
			return c
		}
		return strings.Compare(a.Requirement.String(), b.Requirement.String())
	})
}

// Len returns the number of pinned names.
func (g *Graph) Len() int { return len(g.nodes) }

// Names returns every pinned name, sorted.
func (g *Graph) Names() []string {
	out := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// Candidates returns every pinned candidate, sorted by name.
func (g *Graph) Candidates() []Candidate {
	out := make([]Candidate, 0, len(g.nodes))
	for _, name := range g.Names() {
		out = append(out, g.nodes[name])
	}
	return out
}

// Candidate returns the candidate pinned for name.
func (g *Graph) Candidate(name string) (Candidate, bool) {
	c, ok := g.nodes[pep508.CanonicalName(name)]
	return c, ok
}

// Roots returns the names the project requires directly, in declaration
// order.
func (g *Graph) Roots() []string { return slices.Clone(g.roots) }

// RootEdges returns the project's own requirements that were resolved.
func (g *Graph) RootEdges() []Edge { return slices.Clone(g.outgoing[""]) }

// Dependencies returns the edges declared by name, sorted by target.
func (g *Graph) Dependencies(name string) []Edge { return slices.Clone(g.outgoing[name]) }

// Dependents returns the edges pointing at name.
func (g *Graph) Dependents(name string) []Edge { return slices.Clone(g.incoming[name]) }

// Marker returns the condition under which name is needed: the OR of the
// markers on its incoming edges. Extra comparisons hold, since the edge
// was only followed because its extra was requested; the environment
// conditions next to them are kept.
func (g *Graph) Marker(name string) *pep508.Marker {
	edges := g.incoming[name]
	if len(edges) == 0 {
		return nil
	}
	markers := make([]*pep508.Marker, 0, len(edges))
	for _, e := range edges {
		markers = append(markers, e.Requirement.Marker.WithoutExtra())
	}
	return pep508.Or(markers...)
}

// Reachable returns the names reachable from the given starting names,
// including themselves, sorted.
func (g *Graph) Reachable(from []string) []string {
	seen := map[string]bool{}
	queue := make([]string, 0, len(from))
	for _, name := range from {
		name = pep508.CanonicalName(name)
		if _, ok := g.nodes[name]; ok && !seen[name] {
			seen[name] = true
			queue = append(queue, name)
		}
	}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		for _, e := range g.outgoing[name] {
			if !seen[e.Target()] {
				seen[e.Target()] = true
				queue = append(queue, e.Target())
			}
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// Unsatisfied returns the edges whose target's pinned version violates the
// edge's specifier. A graph produced by [Resolver.Resolve] has none.
func (g *Graph) Unsatisfied() []Edge {
	var out []Edge
	for _, name := range g.Names() {
		c := g.nodes[name]
		for _, e := range g.incoming[name] {
			if !e.Requirement.SatisfiedBy(c.Version) {
				out = append(out, e)
			}
		}
	}
	return out
}
