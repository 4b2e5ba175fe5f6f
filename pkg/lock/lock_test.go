package lock

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/matzehuels/pylock/pkg/errors"
	"github.com/matzehuels/pylock/pkg/pep440"
	"github.com/matzehuels/pylock/pkg/pep508"
	"github.com/matzehuels/pylock/pkg/provider/providertest"
	"github.com/matzehuels/pylock/pkg/resolve"
)

const testHash = "sha256:2c26b46b68ffc68ff99b453c1d30413413422d706483bfa0f98a5e886266e7ae"

var linux = pep508.Environment{
	OSName:            "posix",
	SysPlatform:       "linux",
	PythonVersion:     "3.12",
	PythonFullVersion: "3.12.0",
}

func testGraph(t *testing.T) *resolve.Graph {
	t.Helper()
	ix := providertest.New(map[string][]string{
		"flask 3.0.0":    {"werkzeug>=3.0", "click>=8.1"},
		"werkzeug 3.0.1": nil,
		"click 8.1.7":    {`colorama; platform_system == "Windows"`},
		"pytest 8.0.0":   {"pluggy<2,>=1.3"},
		"pluggy 1.4.0":   nil,
	})
	roots := []pep508.Requirement{
		pep508.MustParseRequirement("flask>=3"),
		pep508.MustParseRequirement(`pytest; python_version >= "3.8"`),
	}
	g, err := resolve.New(ix, resolve.Options{Env: linux}).Resolve(context.Background(), roots)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	return g
}

func testLock(t *testing.T) *Lock {
	t.Helper()
	return FromGraph(testGraph(t), testHash, Options{
		Strategy: StrategyReuse,
		Groups: map[string][]string{
			"default": {"flask"},
			"dev":     {"pytest"},
		},
		RequiresPython: ">=3.9",
	})
}

func TestFromGraph(t *testing.T) {
	l := testLock(t)

	var names []string
	for _, p := range l.Packages {
		names = append(names, p.Name)
	}
	if diff := cmp.Diff([]string{"click", "flask", "pluggy", "pytest", "werkzeug"}, names); diff != "" {
		t.Errorf("packages mismatch (-want +got):\n%s", diff)
	}

	flask, _ := l.Package("Flask")
	if diff := cmp.Diff([]string{"click>=8.1", "werkzeug>=3.0"}, flask.Dependencies); diff != "" {
		t.Errorf("flask dependencies mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"default"}, flask.Groups); diff != "" {
		t.Errorf("flask groups mismatch (-want +got):\n%s", diff)
	}
	pluggy, _ := l.Package("pluggy")
	if diff := cmp.Diff([]string{"dev"}, pluggy.Groups); diff != "" {
		t.Errorf("pluggy groups mismatch (-want +got):\n%s", diff)
	}
	pytest, _ := l.Package("pytest")
	if pytest.Marker != `python_version >= "3.8"` {
		t.Errorf("pytest marker = %q", pytest.Marker)
	}
	if len(flask.Files) != 1 || !strings.HasPrefix(flask.Files[0].Hash, "sha256:") {
		t.Errorf("flask files = %+v", flask.Files)
	}
	if l.Metadata.Strategy != StrategyReuse || l.Fingerprint() != testHash {
		t.Errorf("metadata = %+v", l.Metadata)
	}
}

func TestRoundTrip(t *testing.T) {
	l := testLock(t)
	data, err := Marshal(l)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	back, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v\n%s", err, data)
	}
	if diff := cmp.Diff(l, back, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	if back.Fingerprint() != l.Fingerprint() {
		t.Error("fingerprint lost")
	}
}

func TestMarshalIsDeterministic(t *testing.T) {
	a, err := Marshal(testLock(t))
	if err != nil {
		t.Fatal(err)
	}
	b, err := Marshal(testLock(t))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Errorf("locking twice differs:\n%s\n---\n%s", a, b)
	}

	// Package order in memory does not matter.
	l := testLock(t)
	l.Packages[0], l.Packages[len(l.Packages)-1] = l.Packages[len(l.Packages)-1], l.Packages[0]
	c, _ := Marshal(l)
	if !bytes.Equal(a, c) {
		t.Error("output depends on package order")
	}
}

func TestWriteAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFilename)
	l, err := Write(path, testGraph(t), testHash, Options{})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	back, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if diff := cmp.Diff(l, back, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{DefaultGroup}, back.Metadata.Groups); diff != "" {
		t.Errorf("groups mismatch (-want +got):\n%s", diff)
	}
	if back.IsStale(testHash) || !back.IsStale("sha256:other") {
		t.Error("IsStale is wrong")
	}
}

func TestReadMissing(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "nope.lock"))
	if !errors.Is(err, errors.ErrCodeLockNotFound) {
		t.Errorf("err = %v, want LOCK_NOT_FOUND", err)
	}
}

func TestParseCorrupt(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not toml", "[metadata\nlock_version ="},
		{"no version", "[metadata]\ncontent_hash = \"sha256:x\"\n"},
		{"future version", "[metadata]\nlock_version = \"9\"\n"},
		{"bad hash prefix", "[metadata]\nlock_version = \"1\"\ncontent_hash = \"md5:x\"\n"},
		{"missing name", "[metadata]\nlock_version = \"1\"\n[[package]]\nversion = \"1.0\"\n"},
		{"bad package version", "[metadata]\nlock_version = \"1\"\n[[package]]\nname = \"a\"\nversion = \"not a version\"\n"},
		{"missing package version", "[metadata]\nlock_version = \"1\"\n[[package]]\nname = \"a\"\n"},
		{"duplicate", "[metadata]\nlock_version = \"1\"\n[[package]]\nname = \"a\"\nversion = \"1\"\n[[package]]\nname = \"a\"\nversion = \"2\"\n"},
		{"unnormalized name", "[metadata]\nlock_version = \"1\"\n[[package]]\nname = \"Foo_Bar\"\nversion = \"1\"\n"},
		{"bad dependency", "[metadata]\nlock_version = \"1\"\n[[package]]\nname = \"a\"\nversion = \"1\"\ndependencies = [\"b>=\"]\n"},
		{"bad marker", "[metadata]\nlock_version = \"1\"\n[[package]]\nname = \"a\"\nversion = \"1\"\nmarker = \"python_version >>\"\n"},
		{"bad file hash", "[metadata]\nlock_version = \"1\"\n[[package]]\nname = \"a\"\nversion = \"1\"\n[[package.files]]\nfile = \"a.whl\"\nhash = \"md5:abc\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			if !errors.Is(err, errors.ErrCodeCorruptLock) {
				t.Errorf("err = %v, want CORRUPT_LOCK", err)
			}
		})
	}
}

func TestReadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFilename)
	if err := os.WriteFile(path, []byte("garbage = ["), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Read(path); !errors.Is(err, errors.ErrCodeCorruptLock) {
		t.Errorf("err = %v, want CORRUPT_LOCK", err)
	}
}

func TestSelect(t *testing.T) {
	l := testLock(t)
	pkgs, err := l.Select([]string{"default"}, linux)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, p := range pkgs {
		names = append(names, p.Name)
	}
	if diff := cmp.Diff([]string{"click", "flask", "werkzeug"}, names); diff != "" {
		t.Errorf("default group mismatch (-want +got):\n%s", diff)
	}

	old := linux
	old.PythonVersion, old.PythonFullVersion = "3.7", "3.7.0"
	pkgs, _ = l.Select([]string{"dev"}, old)
	if len(pkgs) != 1 || pkgs[0].Name != "pluggy" {
		t.Errorf("dev group on 3.7 = %v", pkgs)
	}
}

func TestLockGraph(t *testing.T) {
	l := testLock(t)
	g, err := l.Graph([]pep508.Requirement{pep508.MustParseRequirement("flask>=3")})
	if err != nil {
		t.Fatal(err)
	}
	if g.Len() != len(l.Packages) {
		t.Errorf("Len = %d, want %d", g.Len(), len(l.Packages))
	}
	if diff := cmp.Diff([]string{"click", "flask", "werkzeug"}, g.Reachable(g.Roots())); diff != "" {
		t.Errorf("reachable mismatch (-want +got):\n%s", diff)
	}
	if bad := g.Unsatisfied(); len(bad) != 0 {
		t.Errorf("lock graph violates %v", bad)
	}
}

func TestDiff(t *testing.T) {
	mk := func(pairs ...string) *Lock {
		l := &Lock{}
		for i := 0; i < len(pairs); i += 2 {
			l.Packages = append(l.Packages, Package{Name: pairs[i], Version: pep440.MustParse(pairs[i+1])})
		}
		return l
	}
	old := mk("a", "1.0", "b", "2.0", "c", "1.0", "d", "1.0")
	updated := mk("a", "1.0", "b", "2.1", "c", "0.9", "e", "1.0")

	var got []string
	for _, c := range Diff(old, updated) {
		got = append(got, c.String())
	}
	want := []string{"~ b 2.0 -> 2.1", "~ c 1.0 -> 0.9", "- d 1.0", "+ e 1.0"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("diff mismatch (-want +got):\n%s", diff)
	}
	if got := Diff(nil, mk("a", "1")); len(got) != 1 || got[0].Kind != Added {
		t.Errorf("Diff(nil, ...) = %v", got)
	}
}

func TestExportRequirements(t *testing.T) {
	pkgs := []Package{
		{Name: "click", Version: pep440.MustParse("8.1.7"), Files: []File{{Name: "a.whl", Hash: "sha256:aa"}, {Name: "b.tar.gz", Hash: "sha256:bb"}}},
		{Name: "pywin32", Version: pep440.MustParse("306"), Marker: `sys_platform == "win32"`},
	}
	var buf bytes.Buffer
	if err := ExportRequirements(&buf, pkgs, true); err != nil {
		t.Fatal(err)
	}
	want := "# This file is @generated by pylock.\n" +
		"click==8.1.7 \\\n" +
		"    --hash=sha256:aa \\\n" +
		"    --hash=sha256:bb\n" +
		"pywin32==306 ; sys_platform == \"win32\"\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("export mismatch (-want +got):\n%s", diff)
	}
}
