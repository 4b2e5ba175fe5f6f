package resolve

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	pkgerrors "github.com/matzehuels/pylock/pkg/errors"
	"github.com/matzehuels/pylock/pkg/observability"
	"github.com/matzehuels/pylock/pkg/pep440"
	"github.com/matzehuels/pylock/pkg/pep508"
	"github.com/matzehuels/pylock/pkg/provider"
	"github.com/matzehuels/pylock/pkg/provider/providertest"
)

var linux = pep508.Environment{
	OSName:            "posix",
	SysPlatform:       "linux",
	PlatformSystem:    "Linux",
	PythonVersion:     "3.12",
	PythonFullVersion: "3.12.0",
}

func roots(texts ...string) []pep508.Requirement {
	out := make([]pep508.Requirement, 0, len(texts))
	for _, t := range texts {
		out = append(out, pep508.MustParseRequirement(t))
	}
	return out
}

func resolve(t *testing.T, ix *providertest.Index, opts Options, rs ...string) (*Graph, error) {
	t.Helper()
	if opts.Env == (pep508.Environment{}) {
		opts.Env = linux
	}
	return New(ix, opts).Resolve(context.Background(), roots(rs...))
}

func pins(g *Graph) map[string]string {
	out := map[string]string{}
	for _, c := range g.Candidates() {
		out[c.Name] = c.Version.String()
	}
	return out
}

func mustResolve(t *testing.T, ix *providertest.Index, opts Options, rs ...string) *Graph {
	t.Helper()
	g, err := resolve(t, ix, opts, rs...)
	if err != nil {
		t.Fatalf("Resolve(%v): %v", rs, err)
	}
	if bad := g.Unsatisfied(); len(bad) > 0 {
		t.Fatalf("graph violates %v", bad)
	}
	return g
}

func TestResolveNewestSatisfying(t *testing.T) {
	ix := providertest.New(map[string][]string{
		"foo 1.0": {"bar==1.0"},
		"foo 2.0": {"bar==2.0"},
		"bar 1.0": nil,
		"bar 2.0": nil,
	})
	g := mustResolve(t, ix, Options{}, "foo>=1.0")
	if diff := cmp.Diff(map[string]string{"foo": "2.0", "bar": "2.0"}, pins(g)); diff != "" {
		t.Errorf("pins mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"foo"}, g.Roots()); diff != "" {
		t.Errorf("roots mismatch (-want +got):\n%s", diff)
	}
	deps := g.Dependencies("foo")
	if len(deps) != 1 || deps[0].Target() != "bar" {
		t.Errorf("Dependencies(foo) = %v", deps)
	}
}

func TestResolveConflictNamesBothConstraints(t *testing.T) {
	ix := providertest.New(map[string][]string{
		"foo 1.0": {"baz<2.0"},
		"bar 1.0": {"baz>=2.0"},
		"baz 1.0": nil,
		"baz 2.0": nil,
	})
	_, err := resolve(t, ix, Options{}, "foo", "bar")
	if !pkgerrors.Is(err, pkgerrors.ErrCodeResolutionImpossible) {
		t.Fatalf("err = %v, want RESOLUTION_IMPOSSIBLE", err)
	}
	var ce *ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("err is %T, want *ConflictError", err)
	}
	if len(ce.Conflicts) != 1 || ce.Conflicts[0].Name != "baz" {
		t.Fatalf("conflicts = %v", ce.Conflicts)
	}
	var got []string
	for _, e := range ce.Conflicts[0].Edges {
		got = append(got, e.String())
	}
	want := []string{"bar 1.0 requires baz>=2.0", "foo 1.0 requires baz<2.0"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("conflict edges mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveConflictNamesBothConstraintsAcrossVersions(t *testing.T) {
	ix := providertest.New(map[string][]string{
		"foo 1.0": {"baz<2.0"},
		"foo 2.0": {"baz<2.0"},
		"bar 1.0": {"baz>=2.0"},
		"bar 2.0": {"baz>=2.0"},
		"baz 1.0": nil,
		"baz 2.0": nil,
	})
	_, err := resolve(t, ix, Options{}, "foo", "bar")
	var ce *ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want *ConflictError", err)
	}
	got := map[string]bool{}
	for _, c := range ce.Conflicts {
		if c.Name != "baz" {
			t.Errorf("conflict on %q, want baz: %v", c.Name, c)
		}
		if !c.Pinned.IsZero() {
			t.Errorf("conflict %v blames a pinned version, want the constraints", c)
		}
	}
	for _, e := range ce.Requirements() {
		got[e.Parent+" "+e.Requirement.String()] = true
	}
	for _, want := range []string{"foo baz<2.0", "bar baz>=2.0"} {
		if !got[want] {
			t.Errorf("conflict does not name %q; got %v", want, ce.Requirements())
		}
	}
}

func TestPinnedConflictWhenConstraintsAreSatisfiable(t *testing.T) {
	ix := providertest.New(map[string][]string{
		"foo 1.0": {"baz<3.0"},
		"bar 1.0": {"baz>=2.0"},
		"baz 1.0": nil,
		"baz 2.0": nil,
	})
	st := newState()
	s := &search{
		ctx:      context.Background(),
		provider: ix,
		opts:     Options{Env: linux}.WithDefaults(),
		releases: map[string][]provider.Release{},
		requires: map[string][]pep508.Requirement{},
	}
	if _, err := s.versions("baz"); err != nil {
		t.Fatal(err)
	}
	crit := st.mutable("baz")
	first := Edge{Parent: "foo", ParentVersion: pep440.MustParse("1.0"), Requirement: pep508.MustParseRequirement("baz<3.0")}
	second := Edge{Parent: "bar", ParentVersion: pep440.MustParse("1.0"), Requirement: pep508.MustParseRequirement("baz>=2.0")}
	crit.add(first)
	crit.add(second)

	c := s.pinConflict("baz", crit, second, pep440.MustParse("1.0"))
	if c.Pinned.String() != "1.0" {
		t.Errorf("Pinned = %q, want 1.0", c.Pinned)
	}
	if len(c.Edges) != 1 || c.Edges[0].String() != "bar 1.0 requires baz>=2.0" {
		t.Errorf("Edges = %v", c.Edges)
	}
}

func TestConflictIsMinimal(t *testing.T) {
	ix := providertest.New(map[string][]string{
		"a 1.0":   {"pkg>=2.0"},
		"b 1.0":   {"pkg<2.0"},
		"c 1.0":   {"pkg>=0.5"},
		"pkg 1.0": nil,
		"pkg 2.0": nil,
	})
	_, err := resolve(t, ix, Options{}, "c", "a", "b")
	var ce *ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want *ConflictError", err)
	}
	var parents []string
	for _, e := range ce.Requirements() {
		parents = append(parents, e.Parent)
	}
	slices.Sort(parents)
	if diff := cmp.Diff([]string{"a", "b"}, parents); diff != "" {
		t.Errorf("conflict parents mismatch (-want +got):\n%s", diff)
	}
}

func TestRootConflict(t *testing.T) {
	ix := providertest.New(map[string][]string{"foo 1.0": nil, "foo 2.0": nil})
	_, err := resolve(t, ix, Options{}, "foo>=2", "foo<2")
	var ce *ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want *ConflictError", err)
	}
	if len(ce.Requirements()) != 2 || !ce.Requirements()[0].IsRoot() {
		t.Errorf("conflict = %v", ce)
	}
}

func TestNoMatchingVersion(t *testing.T) {
	ix := providertest.New(map[string][]string{"foo 1.0": nil})
	_, err := resolve(t, ix, Options{}, "foo>=5")
	if !pkgerrors.Is(err, pkgerrors.ErrCodeResolutionImpossible) {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(err.Error(), "no version of foo satisfies: project requires foo>=5") {
		t.Errorf("message = %q", err)
	}
}

func TestBackjumpSkipsUnrelatedDecisions(t *testing.T) {
	ix := providertest.New(map[string][]string{
		"a 2.0": {"x<2.0"},
		"a 1.0": nil,
		"b 2.0": nil,
		"b 1.0": nil,
		"c 3.0": {"x>=2.0"},
		"c 2.0": {"x>=2.0"},
		"c 1.0": {"x>=2.0"},
		"x 1.0": nil,
		"x 2.0": nil,
	})
	g := mustResolve(t, ix, Options{}, "a", "b", "c")
	want := map[string]string{"a": "1.0", "b": "2.0", "c": "3.0", "x": "2.0"}
	if diff := cmp.Diff(want, pins(g)); diff != "" {
		t.Errorf("pins mismatch (-want +got):\n%s", diff)
	}
	// b never contributed to the conflict, so b 1.0 is never tried.
	if n := ix.Calls("requirements", "b"); n != 1 {
		t.Errorf("b requirements fetched %d times, want 1", n)
	}
}

type pinRecorder struct {
	observability.NoopResolverHooks
	order []string
}

func (r *pinRecorder) OnPin(_ context.Context, name, _ string, _ int) {
	r.order = append(r.order, name)
}

func TestTieBreakOrder(t *testing.T) {
	rec := &pinRecorder{}
	observability.SetResolverHooks(rec)
	t.Cleanup(observability.Reset)

	ix := providertest.New(map[string][]string{
		"zeta 1.0":  {"beta", "alpha"},
		"gamma 1.0": nil,
		"delta 1.0": nil,
		"delta 2.0": nil,
		"alpha 1.0": nil,
		"beta 1.0":  nil,
	})
	mustResolve(t, ix, Options{}, "delta", "zeta", "gamma")
	// zeta and gamma each have one candidate and zeta is declared first;
	// alpha and beta are transitive and ordered by name; delta has two.
	want := []string{"zeta", "gamma", "alpha", "beta", "delta"}
	if diff := cmp.Diff(want, rec.order); diff != "" {
		t.Errorf("pin order mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveDeterministic(t *testing.T) {
	fixtures := map[string][]string{
		"web 1.0":      {"http>=1", "template", "log"},
		"http 1.0":     {"log<2"},
		"http 1.5":     {"log<3"},
		"template 3.1": {"markup>=2"},
		"markup 2.0":   nil,
		"markup 2.1":   nil,
		"log 1.0":      nil,
		"log 2.5":      nil,
		"log 3.0":      nil,
	}
	first := mustResolve(t, providertest.New(fixtures), Options{}, "web")
	for range 5 {
		again := mustResolve(t, providertest.New(fixtures), Options{}, "web")
		if diff := cmp.Diff(pins(first), pins(again)); diff != "" {
			t.Fatalf("resolution not deterministic (-first +again):\n%s", diff)
		}
	}
	if pins(first)["log"] != "2.5" {
		t.Errorf("log = %s, want 2.5", pins(first)["log"])
	}
}

func TestExtras(t *testing.T) {
	fixtures := map[string][]string{
		"foo 1.0": {"qux", `bar; extra == "x"`},
		"bar 1.0": nil,
		"qux 1.0": nil,
		"baz 1.0": {"foo[x]"},
	}

	g := mustResolve(t, providertest.New(fixtures), Options{}, "foo")
	if _, ok := g.Candidate("bar"); ok {
		t.Error("bar pulled in without the extra")
	}

	g = mustResolve(t, providertest.New(fixtures), Options{}, "foo[x]")
	if _, ok := g.Candidate("bar"); !ok {
		t.Error("foo[x] should pull in bar")
	}

	// foo is pinned before baz asks for its extra.
	g = mustResolve(t, providertest.New(fixtures), Options{}, "foo", "baz")
	if _, ok := g.Candidate("bar"); !ok {
		t.Error("extra requested after pinning should pull in bar")
	}
	foo, _ := g.Candidate("foo")
	if diff := cmp.Diff([]string{"x"}, foo.Extras); diff != "" {
		t.Errorf("foo extras mismatch (-want +got):\n%s", diff)
	}
	if g.Marker("bar") != nil {
		t.Errorf("extra-gated edge should be unconditional in the graph, got %v", g.Marker("bar"))
	}
}

func TestMarkers(t *testing.T) {
	ix := providertest.New(map[string][]string{
		"app 1.0":      {`colorama; sys_platform == "win32"`, `tomli; python_version < "3.11"`, "click"},
		"click 1.0":    nil,
		"colorama 1.0": nil,
		"tomli 1.0":    nil,
		"pywin32 1.0":  nil,
	})
	g := mustResolve(t, ix, Options{}, "app", `pywin32; sys_platform == "win32"`, `click; python_version >= "3.8"`)
	if diff := cmp.Diff([]string{"app", "click"}, g.Names()); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
	// click is needed unconditionally through app.
	if m := g.Marker("click"); m != nil {
		t.Errorf("Marker(click) = %v, want nil", m)
	}

	g = mustResolve(t, ix, Options{}, `click; python_version >= "3.8"`)
	if got := g.Marker("click").String(); got != `python_version >= "3.8"` {
		t.Errorf("Marker(click) = %q", got)
	}
}

func TestMarkerKeepsConditionsBesideExtra(t *testing.T) {
	ix := providertest.New(map[string][]string{
		"foo 1.0":     {`pywin32; extra == "win" and sys_platform == "linux"`},
		"pywin32 1.0": nil,
	})
	g := mustResolve(t, ix, Options{}, "foo[win]")
	if _, ok := g.Candidate("pywin32"); !ok {
		t.Fatal("foo[win] should pull in pywin32")
	}
	if got := g.Marker("pywin32").String(); got != `sys_platform == "linux"` {
		t.Errorf("Marker(pywin32) = %q, want the platform condition", got)
	}
}

func TestYankedAndRequiresPython(t *testing.T) {
	ix := providertest.New(map[string][]string{
		"pkg 1.0": nil,
		"pkg 2.0": nil,
		"pkg 3.0": nil,
	})
	ix.Yank("pkg 3.0").RequiresPython("pkg 2.0", ">=3.13")

	if got := pins(mustResolve(t, ix, Options{}, "pkg"))["pkg"]; got != "1.0" {
		t.Errorf("pkg = %s, want 1.0", got)
	}
	if got := pins(mustResolve(t, ix, Options{}, "pkg==3.0"))["pkg"]; got != "3.0" {
		t.Errorf("exact pin on a yanked release: pkg = %s, want 3.0", got)
	}
	py313 := Options{Python: pep440.MustParse("3.13.1")}
	if got := pins(mustResolve(t, ix, py313, "pkg"))["pkg"]; got != "2.0" {
		t.Errorf("python 3.13: pkg = %s, want 2.0", got)
	}
}

func TestPrereleases(t *testing.T) {
	ix := providertest.New(map[string][]string{
		"pkg 1.0":    nil,
		"pkg 2.0b1":  nil,
		"only 1.0a1": nil,
	})
	tests := []struct {
		req  string
		opts Options
		name string
		want string
	}{
		{"pkg", Options{}, "pkg", "1.0"},
		{"pkg>=2.0b1", Options{}, "pkg", "2.0b1"},
		{"pkg", Options{AllowPrereleases: true}, "pkg", "2.0b1"},
		{"only", Options{}, "only", "1.0a1"},
	}
	for _, tt := range tests {
		t.Run(tt.req, func(t *testing.T) {
			if got := pins(mustResolve(t, ix, tt.opts, tt.req))[tt.name]; got != tt.want {
				t.Errorf("%s = %s, want %s", tt.name, got, tt.want)
			}
		})
	}
}

func TestPreferredVersions(t *testing.T) {
	ix := providertest.New(map[string][]string{
		"pkg 1.0": nil,
		"pkg 2.0": nil,
		"pkg 3.0": nil,
	})
	opts := Options{Preferred: map[string]pep440.Version{"pkg": pep440.MustParse("2.0")}}
	if got := pins(mustResolve(t, ix, opts, "pkg"))["pkg"]; got != "2.0" {
		t.Errorf("pkg = %s, want preferred 2.0", got)
	}
	if got := pins(mustResolve(t, ix, opts, "pkg>2.0"))["pkg"]; got != "3.0" {
		t.Errorf("pkg = %s, want 3.0 when the preference is excluded", got)
	}
}

func TestUnknownProject(t *testing.T) {
	_, err := resolve(t, providertest.New(nil), Options{}, "nope")
	if !pkgerrors.Is(err, pkgerrors.ErrCodeMetadataUnavailable) {
		t.Errorf("err = %v, want METADATA_UNAVAILABLE", err)
	}
}

func TestCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ix := providertest.New(map[string][]string{"foo 1.0": nil})
	_, err := New(ix, Options{Env: linux}).Resolve(ctx, roots("foo"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestMaxRounds(t *testing.T) {
	ix := providertest.New(map[string][]string{"a 1.0": {"b"}, "b 1.0": nil})
	_, err := resolve(t, ix, Options{MaxRounds: 1}, "a")
	if !pkgerrors.Is(err, pkgerrors.ErrCodeResolutionTooDeep) {
		t.Errorf("err = %v, want RESOLUTION_TOO_DEEP", err)
	}
}

func TestGraphReachable(t *testing.T) {
	ix := providertest.New(map[string][]string{
		"app 1.0":    {"lib"},
		"lib 1.0":    nil,
		"pytest 8.0": {"pluggy"},
		"pluggy 1.0": nil,
	})
	g := mustResolve(t, ix, Options{}, "app", "pytest")
	if diff := cmp.Diff([]string{"app", "lib"}, g.Reachable([]string{"app"})); diff != "" {
		t.Errorf("Reachable(app) mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"pluggy", "pytest"}, g.Reachable([]string{"PyTest"})); diff != "" {
		t.Errorf("Reachable(pytest) mismatch (-want +got):\n%s", diff)
	}
	if deps := g.Dependents("lib"); len(deps) != 1 || deps[0].Parent != "app" {
		t.Errorf("Dependents(lib) = %v", deps)
	}
}
