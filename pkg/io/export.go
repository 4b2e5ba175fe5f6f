package io

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/matzehuels/pylock/pkg/fsutil"
	"github.com/matzehuels/pylock/pkg/pep440"
	"github.com/matzehuels/pylock/pkg/resolve"
)

type graph struct {
	Roots []string `json:"roots"`
	Nodes []node   `json:"nodes"`
	Edges []edge   `json:"edges"`
}

type node struct {
	Name           string         `json:"name"`
	Version        pep440.Version `json:"version"`
	Extras         []string       `json:"extras,omitempty"`
	RequiresPython string         `json:"requires_python,omitempty"`
	Source         string         `json:"source,omitempty"`
	Yanked         bool           `json:"yanked,omitempty"`
	Files          []file         `json:"files,omitempty"`
}

type file struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
	Hash string `json:"hash"`
}

type edge struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Requirement string `json:"requirement"`
}

// WriteJSON encodes a graph as indented JSON and writes it to w.
func WriteJSON(g *resolve.Graph, w io.Writer) error {
	out := graph{Roots: []string{}, Nodes: []node{}, Edges: []edge{}}
	for _, e := range g.RootEdges() {
		out.Roots = append(out.Roots, e.Requirement.String())
	}
	for _, c := range g.Candidates() {
		n := node{
			Name:           c.Name,
			Version:        c.Version,
			Extras:         c.Extras,
			RequiresPython: c.RequiresPython,
			Source:         c.Source,
			Yanked:         c.Yanked,
		}
		for _, f := range c.Files {
			n.Files = append(n.Files, file{Name: f.Name, URL: f.URL, Hash: f.Hash})
		}
		out.Nodes = append(out.Nodes, n)
		for _, e := range g.Dependencies(c.Name) {
			out.Edges = append(out.Edges, edge{From: c.Name, To: e.Target(), Requirement: e.Requirement.String()})
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// ExportJSON writes a graph to a JSON file at path, replacing it
// atomically.
func ExportJSON(g *resolve.Graph, path string) error {
	var buf bytes.Buffer
	if err := WriteJSON(g, &buf); err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
