// Package nodelink renders resolution graphs as node-link diagrams.
//
// # Usage
//
// Convert a graph to DOT, then render to SVG:
//
//	dot := nodelink.ToDOT(g, nodelink.Options{Project: "myapp"})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//
// # Layout
//
// The project sits at the top (rankdir=TB) and each pinned package is a
// rounded box labelled with its name and version. Edges point from the
// requiring package to the requirement. Requirements gated by an
// environment marker are drawn dashed; with [Options.Detailed] every edge
// is labelled with its specifier and marker.
//
// # Dependencies
//
// This package uses [github.com/goccy/go-graphviz] for in-process SVG
// rendering. PDF and PNG conversion requires librsvg (rsvg-convert).
package nodelink
