package io

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/pylock/pkg/pep440"
	"github.com/matzehuels/pylock/pkg/pep508"
	"github.com/matzehuels/pylock/pkg/provider"
	"github.com/matzehuels/pylock/pkg/resolve"
)

func testGraph() *resolve.Graph {
	v := pep440.MustParse
	cands := []resolve.Candidate{
		{Name: "flask", Version: v("3.0.0"), Source: "pypi", RequiresPython: ">=3.8"},
		{Name: "click", Version: v("8.1.7"), Files: []provider.File{{Name: "click-8.1.7-py3-none-any.whl", Hash: "sha256:ab"}}},
		{Name: "requests", Version: v("2.32.3"), Extras: []string{"socks"}},
	}
	edges := []resolve.Edge{
		{Requirement: pep508.MustParseRequirement("flask>=3")},
		{Requirement: pep508.MustParseRequirement("requests[socks]")},
		{Parent: "flask", ParentVersion: v("3.0.0"), Requirement: pep508.MustParseRequirement("click>=8.1.3")},
	}
	return resolve.NewGraph(cands, edges, []string{"flask", "requests"})
}

func TestRoundTrip(t *testing.T) {
	var first bytes.Buffer
	if err := WriteJSON(testGraph(), &first); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	g, err := ReadJSON(bytes.NewReader(first.Bytes()))
	if err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	var second bytes.Buffer
	if err := WriteJSON(g, &second); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(first.String(), second.String()); diff != "" {
		t.Errorf("round trip mismatch (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"flask", "requests"}, g.Roots()); diff != "" {
		t.Errorf("Roots mismatch (-want +got):\n%s", diff)
	}
	if c, _ := g.Candidate("click"); len(c.Files) != 1 || c.Files[0].Hash != "sha256:ab" {
		t.Errorf("click files = %+v", c.Files)
	}
}

func TestExportImport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.json")
	if err := ExportJSON(testGraph(), path); err != nil {
		t.Fatalf("ExportJSON: %v", err)
	}
	g, err := ImportJSON(path)
	if err != nil {
		t.Fatalf("ImportJSON: %v", err)
	}
	if diff := cmp.Diff([]string{"click", "flask", "requests"}, g.Names()); diff != "" {
		t.Errorf("Names mismatch (-want +got):\n%s", diff)
	}
	if deps := g.Dependencies("flask"); len(deps) != 1 || deps[0].Target() != "click" {
		t.Errorf("flask deps = %v", deps)
	}
}

func TestReadJSONErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"malformed", `{`, "decode"},
		{"missing version", `{"nodes": [{"name": "a"}]}`, "name and version are required"},
		{"duplicate", `{"nodes": [{"name": "A", "version": "1"}, {"name": "a", "version": "2"}]}`, "duplicate"},
		{"bad root", `{"roots": ["a>="], "nodes": []}`, "root"},
		{"unknown parent", `{"nodes": [{"name": "a", "version": "1"}], "edges": [{"from": "b", "to": "a", "requirement": "a"}]}`, "unknown node b"},
		{"mismatched edge", `{"nodes": [{"name": "a", "version": "1"}, {"name": "b", "version": "1"}], "edges": [{"from": "a", "to": "b", "requirement": "c"}]}`, "does not name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadJSON(strings.NewReader(tt.doc))
			if err == nil {
				t.Fatal("ReadJSON succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err, tt.want)
			}
		})
	}
}
