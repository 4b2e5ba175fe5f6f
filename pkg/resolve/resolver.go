package resolve

import (
	"context"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/matzehuels/pylock/pkg/errors"
	"github.com/matzehuels/pylock/pkg/observability"
	"github.com/matzehuels/pylock/pkg/pep440"
	"github.com/matzehuels/pylock/pkg/pep508"
	"github.com/matzehuels/pylock/pkg/provider"
)

// Resolver finds a consistent assignment of releases for a set of root
// requirements. A Resolver may be reused; each call to Resolve starts from
// a fresh search state but shares the provider.
type Resolver struct {
	provider provider.Provider
	opts     Options
}

// New creates a Resolver that queries p.
func New(p provider.Provider, opts Options) *Resolver {
	return &Resolver{provider: p, opts: opts.WithDefaults()}
}

// Resolve computes the resolution graph for roots. Root requirements whose
// markers do not hold in the target environment are ignored.
//
// Errors wrap [errors.ErrCodeResolutionImpossible] (as a [*ConflictError]),
// [errors.ErrCodeResolutionTooDeep], provider failures, or ctx.Err().
func (r *Resolver) Resolve(ctx context.Context, roots []pep508.Requirement) (*Graph, error) {
	hooks := observability.Resolver()
	hooks.OnResolveStart(ctx, len(roots))
	start := time.Now()
	r.opts.Logger.Debug("resolving", "roots", len(roots), "python", r.opts.Env.PythonFullVersion, "env", r.opts.Env.Key())

	s := &search{
		ctx:      ctx,
		provider: r.provider,
		opts:     r.opts,
		releases: map[string][]provider.Release{},
		requires: map[string][]pep508.Requirement{},
	}
	g, err := s.run(roots)

	pinned := 0
	if g != nil {
		pinned = g.Len()
	}
	hooks.OnResolveComplete(ctx, pinned, s.rounds, time.Since(start), err)
	if err != nil {
		s.opts.Logger.Debug("resolution failed", "rounds", s.rounds, "err", err)
		return nil, err
	}
	s.opts.Logger.Debug("resolved", "packages", pinned, "rounds", s.rounds, "elapsed", time.Since(start))
	return g, nil
}

// frame is a decision point: the state before name was pinned and the
// candidate chosen.
type frame struct {
	name      string
	before    *state
	candidate Candidate
}

// search holds one resolution run. releases and requires are the run's
// metadata cache; the provider is asked at most once per key.
type search struct {
	ctx      context.Context
	provider provider.Provider
	opts     Options

	roots    []string // directly required names in declaration order
	rounds   int
	releases map[string][]provider.Release
	requires map[string][]pep508.Requirement
}

func (s *search) run(roots []pep508.Requirement) (*Graph, error) {
	var rootEdges []Edge
	for _, req := range roots {
		if !req.Applies(s.opts.Env, nil) {
			continue
		}
		rootEdges = append(rootEdges, Edge{Requirement: req})
		if !slices.Contains(s.roots, req.Name) {
			s.roots = append(s.roots, req.Name)
		}
	}

	st := newState()
	fail, err := s.merge(st, rootEdges)
	if err != nil {
		return nil, err
	}
	if fail != nil {
		return nil, newConflictError(fail.conflicts)
	}

	hooks := observability.Resolver()
	var stack []frame
	for {
		if err := s.ctx.Err(); err != nil {
			return nil, err
		}
		s.rounds++
		if s.rounds > s.opts.MaxRounds {
			return nil, errors.New(errors.ErrCodeResolutionTooDeep, "gave up after %d rounds", s.opts.MaxRounds)
		}

		name, cands, err := s.next(st)
		if err != nil {
			return nil, err
		}
		if name == "" {
			return newGraph(st, s.roots), nil
		}

		pinned := false
		for _, c := range cands {
			next := st.clone()
			fail, err := s.pin(next, name, c)
			if err != nil {
				return nil, err
			}
			if fail == nil {
				stack = append(stack, frame{name: name, before: st, candidate: next.pins[name]})
				st = next
				hooks.OnPin(s.ctx, name, c.Version.String(), len(stack))
				s.opts.Logger.Debug("pinned", "name", name, "version", c.Version, "depth", len(stack))
				pinned = true
				break
			}
			delete(fail.culprits, name)
			st.mutable(name).reject(c.Version, fail.culprits, fail.conflicts)
			s.opts.Logger.Debug("rejected", "name", name, "version", c.Version)
		}
		if pinned {
			continue
		}

		culprits, conflicts := s.exhausted(st, name)
		i := len(stack) - 1
		for i >= 0 && !culprits[stack[i].name] {
			i--
		}
		if i < 0 {
			return nil, newConflictError(conflicts)
		}

		f := stack[i]
		hooks.OnBackjump(s.ctx, len(stack), i, slices.Sorted(maps.Keys(culprits)))
		s.opts.Logger.Debug("backjump", "from", name, "to", f.name, "depth", i)
		stack = stack[:i]
		st = f.before.clone()
		delete(culprits, f.name)
		st.mutable(f.name).reject(f.candidate.Version, culprits, conflicts)
	}
}

// next picks the unresolved name to decide: fewest candidates first, then
// names the project requires directly in declaration order, then by name.
// It returns "" when every name is pinned.
func (s *search) next(st *state) (string, []Candidate, error) {
	var (
		best      string
		bestCands []Candidate
	)
	for _, name := range st.unresolved() {
		cands, err := s.candidates(st, name)
		if err != nil {
			return "", nil, err
		}
		if best == "" || s.before(name, len(cands), best, len(bestCands)) {
			best, bestCands = name, cands
		}
	}
	return best, bestCands, nil
}

func (s *search) before(a string, na int, b string, nb int) bool {
	if na != nb {
		return na < nb
	}
	ra, rb := s.rootRank(a), s.rootRank(b)
	if ra != rb {
		return ra < rb
	}
	return a < b
}

func (s *search) rootRank(name string) int {
	if i := slices.Index(s.roots, name); i >= 0 {
		return i
	}
	return len(s.roots)
}

// candidates lists the releases still open for name under st, preferred
// version first and then newest first.
func (s *search) candidates(st *state, name string) ([]Candidate, error) {
	if _, err := s.versions(name); err != nil {
		return nil, err
	}
	crit := st.criteria[name]
	var out []Candidate
	for _, r := range s.admissible(name, crit) {
		if crit.isIncompatible(r.Version) {
			continue
		}
		c := candidateFrom(r)
		c.Extras = slices.Clone(crit.extras)
		out = append(out, c)
	}
	if pref, ok := s.opts.Preferred[name]; ok {
		if i := slices.IndexFunc(out, func(c Candidate) bool { return c.Version.Equal(pref) }); i > 0 {
			c := out[i]
			out = slices.Delete(out, i, i+1)
			out = slices.Insert(out, 0, c)
		}
	}
	return out, nil
}

// admissible filters the releases of name by crit's specifier, the target
// interpreter, yanking, and the pre-release rule. Rejections recorded on
// crit are not applied.
func (s *search) admissible(name string, crit *criterion) []provider.Release {
	rs := s.releases[name]
	exact := crit.pinsExactly()
	var (
		keep []provider.Release
		vs   []pep440.Version
	)
	for _, r := range rs {
		if r.Yanked && !exact {
			continue
		}
		if !r.SupportsPython(s.opts.Python) {
			continue
		}
		keep = append(keep, r)
		vs = append(vs, r.Version)
	}
	var allowPre *bool
	if s.opts.AllowPrereleases {
		allowPre = &s.opts.AllowPrereleases
	}
	ok := crit.spec.Filter(vs, allowPre)

	out := make([]provider.Release, 0, len(ok))
	j := 0
	for _, r := range keep {
		if j < len(ok) && r.Version.Equal(ok[j]) {
			out = append(out, r)
			j++
		}
	}
	return out
}

// pin assigns c to name in st and merges its requirements.
func (s *search) pin(st *state, name string, c Candidate) (*failure, error) {
	crit := st.mutable(name)
	c.Extras = slices.Clone(crit.extras)
	reqs, err := s.requirements(name, c.Version, c.Extras)
	if err != nil {
		return nil, err
	}
	st.pins[name] = c
	st.merged[name] = c.Extras
	return s.merge(st, edgesFrom(name, c.Version, reqs))
}

// merge adds edges to st. Requirements of pinned names that gain new
// extras are fetched and queued as well.
func (s *search) merge(st *state, edges []Edge) (*failure, error) {
	s.prefetch(st, edges)

	queue := slices.Clone(edges)
	for len(queue) > 0 {
		e := queue[0]
		queue = queue[1:]
		name := e.Target()

		if c, ok := st.criteria[name]; ok && c.hasEdge(e) {
			continue
		}
		crit := st.mutable(name)
		crit.add(e)

		if pin, ok := st.pins[name]; ok {
			if !e.Requirement.SatisfiedBy(pin.Version) {
				culprits := map[string]bool{name: true}
				st.culprits(e, culprits)
				return &failure{
					culprits:  culprits,
					conflicts: []Conflict{s.pinConflict(name, crit, e, pin.Version)},
				}, nil
			}
			if !subset(crit.extras, st.merged[name]) {
				reqs, err := s.requirements(name, pin.Version, crit.extras)
				if err != nil {
					return nil, err
				}
				pin.Extras = slices.Clone(crit.extras)
				st.pins[name] = pin
				st.merged[name] = pin.Extras
				queue = append(queue, edgesFrom(name, pin.Version, reqs)...)
			}
			continue
		}

		if _, err := s.versions(name); err != nil {
			return nil, err
		}
		if len(s.admissible(name, crit)) == 0 {
			culprits := map[string]bool{}
			for _, ce := range crit.edges {
				st.culprits(ce, culprits)
			}
			return &failure{
				culprits:  culprits,
				conflicts: []Conflict{{Name: name, Edges: s.minimize(name, crit.edges)}},
			}, nil
		}
	}
	return nil, nil
}

// pinConflict explains why e cannot accept the version pinned for name.
// When the edges on name admit no release at all, the conflict names those
// edges; otherwise it is between e and the pinned version.
func (s *search) pinConflict(name string, crit *criterion, e Edge, pinned pep440.Version) Conflict {
	if len(s.admissible(name, crit)) == 0 {
		return Conflict{Name: name, Edges: s.minimize(name, crit.edges)}
	}
	return Conflict{Name: name, Edges: []Edge{e}, Pinned: pinned}
}

// exhausted explains why name has no candidate left: the decisions behind
// its rejected versions and behind each of its edges.
func (s *search) exhausted(st *state, name string) (map[string]bool, []Conflict) {
	crit := st.criteria[name]
	culprits := maps.Clone(crit.blame)
	if culprits == nil {
		culprits = map[string]bool{}
	}
	for _, e := range crit.edges {
		st.culprits(e, culprits)
	}
	if len(crit.causes) > 0 {
		return culprits, slices.Clone(crit.causes)
	}
	return culprits, []Conflict{{Name: name, Edges: s.minimize(name, crit.edges)}}
}

// prefetch asks the provider to warm listings for names st has not seen.
func (s *search) prefetch(st *state, edges []Edge) {
	pf, ok := s.provider.(provider.Prefetcher)
	if !ok {
		return
	}
	var names []string
	for _, e := range edges {
		name := e.Target()
		if _, known := st.criteria[name]; known {
			continue
		}
		if _, fetched := s.releases[name]; fetched || slices.Contains(names, name) {
			continue
		}
		names = append(names, name)
	}
	if len(names) > 1 {
		pf.Prefetch(s.ctx, names)
	}
}

func (s *search) versions(name string) ([]provider.Release, error) {
	if rs, ok := s.releases[name]; ok {
		return rs, nil
	}
	rs, err := s.provider.Versions(s.ctx, name)
	if err != nil {
		return nil, err
	}
	s.releases[name] = rs
	return rs, nil
}

func (s *search) requirements(name string, v pep440.Version, extras []string) ([]pep508.Requirement, error) {
	key := name + "==" + v.String() + "[" + strings.Join(extras, ",") + "]"
	if reqs, ok := s.requires[key]; ok {
		return reqs, nil
	}
	reqs, err := s.provider.Requirements(s.ctx, name, v, extras, s.opts.Env)
	if err != nil {
		return nil, err
	}
	s.requires[key] = reqs
	return reqs, nil
}
