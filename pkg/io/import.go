package io

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/matzehuels/pylock/pkg/pep508"
	"github.com/matzehuels/pylock/pkg/provider"
	"github.com/matzehuels/pylock/pkg/resolve"
)

// ReadJSON decodes a JSON graph from r.
//
// ReadJSON returns an error if the JSON is malformed, a node is missing
// its name or version or is listed twice, a requirement does not parse,
// or an edge references an unknown node or disagrees with its
// requirement's name. ReadJSON does not close r.
func ReadJSON(r io.Reader) (*resolve.Graph, error) {
	var data graph
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	known := map[string]bool{}
	cands := make([]resolve.Candidate, 0, len(data.Nodes))
	for i, n := range data.Nodes {
		if n.Name == "" || n.Version.IsZero() {
			return nil, fmt.Errorf("node %d: name and version are required", i)
		}
		name := pep508.CanonicalName(n.Name)
		if known[name] {
			return nil, fmt.Errorf("node %s: duplicate", name)
		}
		known[name] = true
		c := resolve.Candidate{
			Name:           name,
			Version:        n.Version,
			Extras:         n.Extras,
			RequiresPython: n.RequiresPython,
			Source:         n.Source,
			Yanked:         n.Yanked,
		}
		for _, f := range n.Files {
			c.Files = append(c.Files, provider.File{Name: f.Name, URL: f.URL, Hash: f.Hash})
		}
		cands = append(cands, c)
	}

	var edges []resolve.Edge
	var roots []string
	for _, text := range data.Roots {
		req, err := pep508.ParseRequirement(text)
		if err != nil {
			return nil, fmt.Errorf("root %q: %w", text, err)
		}
		edges = append(edges, resolve.Edge{Requirement: req})
		roots = append(roots, req.Name)
	}
	version := map[string]resolve.Candidate{}
	for _, c := range cands {
		version[c.Name] = c
	}
	for _, e := range data.Edges {
		req, err := pep508.ParseRequirement(e.Requirement)
		if err != nil {
			return nil, fmt.Errorf("edge %s->%s: %w", e.From, e.To, err)
		}
		from := pep508.CanonicalName(e.From)
		parent, ok := version[from]
		if !ok {
			return nil, fmt.Errorf("edge %s->%s: unknown node %s", e.From, e.To, e.From)
		}
		if !known[req.Name] || req.Name != pep508.CanonicalName(e.To) {
			return nil, fmt.Errorf("edge %s->%s: requirement %q does not name a known node %s", e.From, e.To, e.Requirement, e.To)
		}
		edges = append(edges, resolve.Edge{Parent: from, ParentVersion: parent.Version, Requirement: req})
	}
	return resolve.NewGraph(cands, edges, roots), nil
}

// ImportJSON reads a JSON file at path and returns the decoded graph.
func ImportJSON(path string) (*resolve.Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadJSON(f)
}
