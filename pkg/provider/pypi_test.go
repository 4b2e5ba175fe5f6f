package provider

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/pylock/pkg/build"
	"github.com/matzehuels/pylock/pkg/cache"
	"github.com/matzehuels/pylock/pkg/errors"
	"github.com/matzehuels/pylock/pkg/pep440"
	"github.com/matzehuels/pylock/pkg/pep508"
)

type fakeFile struct {
	name           string
	body           []byte
	requiresPython string
	yanked         bool
	metadata       string // PEP 658 body, empty when not served
}

type fakeRelease struct {
	requiresDist []string // nil is sent as JSON null
	files        []fakeFile
	hideFiles    bool // list files in the project listing only
}

type fakeIndex struct {
	server   *httptest.Server
	projects map[string]map[string]fakeRelease

	mu   sync.Mutex
	hits map[string]int
}

func newFakeIndex(t *testing.T, projects map[string]map[string]fakeRelease) *fakeIndex {
	t.Helper()
	idx := &fakeIndex{projects: projects, hits: map[string]int{}}

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			idx.mu.Lock()
			idx.hits[r.URL.Path]++
			idx.mu.Unlock()
			next.ServeHTTP(w, r)
		})
	})
	r.Get("/pypi/{name}/json", func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		p, ok := idx.projects[name]
		if !ok {
			http.NotFound(w, r)
			return
		}
		releases := map[string]any{}
		for v, rel := range p {
			releases[v] = idx.apiFiles(rel)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"info":     map[string]any{"name": name},
			"releases": releases,
		})
	})
	r.Get("/pypi/{name}/{version}/json", func(w http.ResponseWriter, r *http.Request) {
		name, version := chi.URLParam(r, "name"), chi.URLParam(r, "version")
		rel, ok := idx.projects[name][version]
		if !ok {
			http.NotFound(w, r)
			return
		}
		urls := idx.apiFiles(rel)
		if rel.hideFiles {
			urls = []map[string]any{}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"info": map[string]any{"name": name, "version": version, "requires_dist": rel.requiresDist},
			"urls": urls,
		})
	})
	r.Get("/files/{file}", func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "file")
		for _, p := range idx.projects {
			for _, rel := range p {
				for _, f := range rel.files {
					switch name {
					case f.name:
						_, _ = w.Write(f.body)
						return
					case f.name + ".metadata":
						if f.metadata != "" {
							_, _ = w.Write([]byte(f.metadata))
							return
						}
					}
				}
			}
		}
		http.NotFound(w, r)
	})
	idx.server = httptest.NewServer(r)
	t.Cleanup(idx.server.Close)
	return idx
}

func (idx *fakeIndex) apiFiles(rel fakeRelease) []map[string]any {
	var out []map[string]any
	for _, f := range rel.files {
		sum := sha256.Sum256(f.body)
		out = append(out, map[string]any{
			"filename":        f.name,
			"url":             idx.server.URL + "/files/" + f.name,
			"digests":         map[string]string{"sha256": hex.EncodeToString(sum[:])},
			"requires_python": f.requiresPython,
			"yanked":          f.yanked,
		})
	}
	return out
}

func (idx *fakeIndex) count(path string) int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.hits[path]
}

func (idx *fakeIndex) source(name string) Source {
	return Source{Name: name, URL: idx.server.URL + "/simple"}
}

func newTestPyPI(t *testing.T, store cache.Cache, sources []Source, opts ...Option) *PyPI {
	t.Helper()
	opts = append([]Option{WithRetry(1, time.Millisecond)}, opts...)
	return NewPyPI(store, sources, opts...)
}

func wheel(name string) fakeFile { return fakeFile{name: name, body: []byte("wheel:" + name)} }

var testEnv = pep508.Environment{PythonVersion: "3.12", PythonFullVersion: "3.12.0", SysPlatform: "linux"}

func TestPyPIVersions(t *testing.T) {
	idx := newFakeIndex(t, map[string]map[string]fakeRelease{
		"requests": {
			"2.31.0":  {files: []fakeFile{wheel("requests-2.31.0-py3-none-any.whl")}},
			"2.9.1":   {files: []fakeFile{{name: "requests-2.9.1.tar.gz", body: []byte("x"), yanked: true}}},
			"2.10.0":  {files: []fakeFile{{name: "requests-2.10.0.tar.gz", body: []byte("y"), requiresPython: ">=3.6"}}},
			"garbage": {files: []fakeFile{wheel("requests-garbage.whl")}},
			"0.1":     {},
		},
	})
	p := newTestPyPI(t, nil, []Source{idx.source("main")})
	ctx := context.Background()

	rs, err := p.Versions(ctx, "Requests")
	if err != nil {
		t.Fatalf("Versions: %v", err)
	}
	var got []string
	for _, r := range rs {
		got = append(got, r.Version.String())
	}
	if diff := cmp.Diff([]string{"2.31.0", "2.10.0", "2.9.1"}, got); diff != "" {
		t.Errorf("versions mismatch (-want +got):\n%s", diff)
	}
	if !rs[2].Yanked || rs[0].Yanked {
		t.Error("only 2.9.1 should be yanked")
	}
	if rs[1].RequiresPython != ">=3.6" {
		t.Errorf("RequiresPython = %q", rs[1].RequiresPython)
	}
	if rs[0].Source != "main" || len(rs[0].Hashes()) != 1 {
		t.Errorf("release = %+v", rs[0])
	}

	// Mutating the result must not leak into the memo.
	rs[0].Yanked = true
	again, _ := p.Versions(ctx, "requests")
	if again[0].Yanked {
		t.Error("Versions returned a shared slice")
	}
	if n := idx.count("/pypi/requests/json"); n != 1 {
		t.Errorf("listing fetched %d times, want 1", n)
	}
}

func TestPyPIUnknownProject(t *testing.T) {
	idx := newFakeIndex(t, map[string]map[string]fakeRelease{})
	p := newTestPyPI(t, nil, []Source{idx.source("main")})

	for range 2 {
		_, err := p.Versions(context.Background(), "nope")
		if !errors.Is(err, errors.ErrCodeMetadataUnavailable) {
			t.Fatalf("err = %v, want METADATA_UNAVAILABLE", err)
		}
	}
	if n := idx.count("/pypi/nope/json"); n != 1 {
		t.Errorf("unknown project fetched %d times, want 1", n)
	}
}

func TestPyPISourcesInOrder(t *testing.T) {
	private := newFakeIndex(t, map[string]map[string]fakeRelease{
		"internal-lib": {"1.0": {requiresDist: []string{}, files: []fakeFile{wheel("internal_lib-1.0-py3-none-any.whl")}}},
	})
	public := newFakeIndex(t, map[string]map[string]fakeRelease{
		"six": {"1.16.0": {requiresDist: []string{}, files: []fakeFile{wheel("six-1.16.0-py2.py3-none-any.whl")}}},
	})
	p := newTestPyPI(t, nil, []Source{private.source("private"), public.source("pypi")})
	ctx := context.Background()

	rs, err := p.Versions(ctx, "six")
	if err != nil || rs[0].Source != "pypi" {
		t.Fatalf("six: %+v, %v", rs, err)
	}
	rs, err = p.Versions(ctx, "internal-lib")
	if err != nil || rs[0].Source != "private" {
		t.Fatalf("internal-lib: %+v, %v", rs, err)
	}
	if _, err := p.Requirements(ctx, "six", pep440.MustParse("1.16.0"), nil, testEnv); err != nil {
		t.Fatalf("Requirements: %v", err)
	}
	if public.count("/pypi/six/1.16.0/json") != 1 || private.count("/pypi/six/1.16.0/json") != 0 {
		t.Error("release metadata should come from the index that listed it")
	}
}

func TestPyPIRequirementsFromJSON(t *testing.T) {
	idx := newFakeIndex(t, map[string]map[string]fakeRelease{
		"flask": {"2.0.0": {
			requiresDist: []string{
				"Werkzeug>=2.0",
				"click>=7.1.2",
				`asgiref>=3.2; extra == "async"`,
				`colorama; platform_system == "Windows"`,
			},
			files: []fakeFile{wheel("Flask-2.0.0-py3-none-any.whl")},
		}},
	})
	p := newTestPyPI(t, nil, []Source{idx.source("main")})
	v := pep440.MustParse("2.0.0")

	reqs, err := p.Requirements(context.Background(), "flask", v, nil, testEnv)
	if err != nil {
		t.Fatalf("Requirements: %v", err)
	}
	if diff := cmp.Diff([]string{"werkzeug", "click"}, names(reqs)); diff != "" {
		t.Errorf("requirements mismatch (-want +got):\n%s", diff)
	}

	reqs, _ = p.Requirements(context.Background(), "flask", v, []string{"async"}, testEnv)
	if len(reqs) != 3 {
		t.Errorf("with extra: %v", names(reqs))
	}
	if n := idx.count("/pypi/flask/2.0.0/json"); n != 1 {
		t.Errorf("release fetched %d times, want 1", n)
	}
}

func TestPyPIRequirementsFromCoreMetadata(t *testing.T) {
	whl := wheel("attrs-23.1.0-py3-none-any.whl")
	whl.metadata = "Metadata-Version: 2.1\nName: attrs\nVersion: 23.1.0\nRequires-Dist: importlib-metadata; python_version < \"3.8\"\nRequires-Dist: zope-interface; extra == \"tests\"\n"
	idx := newFakeIndex(t, map[string]map[string]fakeRelease{
		"attrs": {"23.1.0": {files: []fakeFile{whl}}},
	})
	p := newTestPyPI(t, nil, []Source{idx.source("main")})

	reqs, err := p.Requirements(context.Background(), "attrs", pep440.MustParse("23.1.0"), []string{"tests"}, testEnv)
	if err != nil {
		t.Fatalf("Requirements: %v", err)
	}
	if diff := cmp.Diff([]string{"zope-interface"}, names(reqs)); diff != "" {
		t.Errorf("requirements mismatch (-want +got):\n%s", diff)
	}
	if idx.count("/files/"+whl.name) != 0 {
		t.Error("wheel should not be downloaded when PEP 658 metadata exists")
	}
}

type stubBackend struct {
	calls int
	md    *build.Metadata
}

func (b *stubBackend) Metadata(_ context.Context, a build.Artifact) (*build.Metadata, error) {
	b.calls++
	if len(a.Data) == 0 {
		return nil, &build.Error{Artifact: a.String(), Err: build.ErrUnsupported}
	}
	return b.md, nil
}

func TestPyPIRequirementsFromSdist(t *testing.T) {
	idx := newFakeIndex(t, map[string]map[string]fakeRelease{
		"legacy": {"0.3": {files: []fakeFile{{name: "legacy-0.3.tar.gz", body: []byte("sdist")}}}},
	})
	backend := &stubBackend{md: &build.Metadata{
		Name:     "legacy",
		Version:  "0.3",
		Requires: []pep508.Requirement{pep508.MustParseRequirement("six>=1.0")},
	}}
	store, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	v := pep440.MustParse("0.3")

	p := newTestPyPI(t, store, []Source{idx.source("main")}, WithBuildBackend(backend))
	reqs, err := p.Requirements(ctx, "legacy", v, nil, testEnv)
	if err != nil {
		t.Fatalf("Requirements: %v", err)
	}
	if diff := cmp.Diff([]string{"six"}, names(reqs)); diff != "" {
		t.Errorf("requirements mismatch (-want +got):\n%s", diff)
	}

	// A second run reads the persisted metadata and never builds again.
	p = newTestPyPI(t, store, []Source{idx.source("main")}, WithBuildBackend(backend))
	if _, err := p.Requirements(ctx, "legacy", v, nil, testEnv); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if backend.calls != 1 {
		t.Errorf("backend called %d times, want 1", backend.calls)
	}
}

func TestPyPIBuildFailure(t *testing.T) {
	idx := newFakeIndex(t, map[string]map[string]fakeRelease{
		"broken": {"1.0": {files: []fakeFile{{name: "broken-1.0.tar.gz"}}}},
	})
	p := newTestPyPI(t, nil, []Source{idx.source("main")}, WithBuildBackend(&stubBackend{}))

	_, err := p.Requirements(context.Background(), "broken", pep440.MustParse("1.0"), nil, testEnv)
	if !errors.Is(err, errors.ErrCodeBuildBackendFailure) {
		t.Errorf("err = %v, want BUILD_BACKEND_FAILURE", err)
	}
}

func TestPyPIReleaseWithoutFiles(t *testing.T) {
	idx := newFakeIndex(t, map[string]map[string]fakeRelease{
		"ghost": {"1.0": {files: []fakeFile{wheel("ghost-1.0-py3-none-any.whl")}, hideFiles: true}},
	})
	p := newTestPyPI(t, nil, []Source{idx.source("main")})

	rs, err := p.Versions(context.Background(), "ghost")
	if err != nil || len(rs) != 1 {
		t.Fatalf("Versions = %v, %v", rs, err)
	}
	reqs, err := p.Requirements(context.Background(), "ghost", pep440.MustParse("1.0"), nil, testEnv)
	if !errors.Is(err, errors.ErrCodeMetadataUnavailable) {
		t.Errorf("Requirements = %v, %v; want METADATA_UNAVAILABLE", reqs, err)
	}
}

func TestPyPISharedParser(t *testing.T) {
	idx := newFakeIndex(t, map[string]map[string]fakeRelease{
		"flask": {"2.0.0": {
			requiresDist: []string{"Werkzeug>=2.0", "click>=7.1.2"},
			files:        []fakeFile{wheel("Flask-2.0.0-py3-none-any.whl")},
		}},
	})
	parser := pep508.NewParser(16)
	p := newTestPyPI(t, nil, []Source{idx.source("main")}, WithParser(parser))
	if _, err := p.Requirements(context.Background(), "flask", pep440.MustParse("2.0.0"), nil, testEnv); err != nil {
		t.Fatalf("Requirements: %v", err)
	}
	if parser.Len() != 2 {
		t.Errorf("parser holds %d requirements, want 2", parser.Len())
	}
}

func TestPyPIPrefetch(t *testing.T) {
	projects := map[string]map[string]fakeRelease{}
	for _, n := range []string{"a", "b", "c", "d"} {
		projects[n] = map[string]fakeRelease{"1.0": {files: []fakeFile{wheel(n + "-1.0-py3-none-any.whl")}}}
	}
	idx := newFakeIndex(t, projects)
	p := newTestPyPI(t, nil, []Source{idx.source("main")}, WithConcurrency(2))
	ctx := context.Background()

	p.Prefetch(ctx, []string{"a", "b", "c", "d", "a", "missing"})
	for _, n := range []string{"a", "b", "c", "d"} {
		if _, err := p.Versions(ctx, n); err != nil {
			t.Errorf("Versions(%s): %v", n, err)
		}
		if c := idx.count("/pypi/" + n + "/json"); c != 1 {
			t.Errorf("%s fetched %d times, want 1", n, c)
		}
	}
	if _, err := p.Versions(ctx, "missing"); err == nil {
		t.Error("prefetch failure should surface on Versions")
	}
}

func TestReleaseSupportsPython(t *testing.T) {
	py := pep440.MustParse("3.8.10")
	tests := []struct {
		spec string
		want bool
	}{
		{"", true},
		{">=3.6", true},
		{">= 3.9", false},
		{">=2.7, !=3.0.*, !=3.1.*", true},
		{"not a spec", true},
	}
	for _, tt := range tests {
		r := Release{RequiresPython: tt.spec}
		if got := r.SupportsPython(py); got != tt.want {
			t.Errorf("SupportsPython(%q) = %v, want %v", tt.spec, got, tt.want)
		}
	}
}

func names(reqs []pep508.Requirement) []string {
	var out []string
	for _, r := range reqs {
		out = append(out, r.Name)
	}
	return out
}
