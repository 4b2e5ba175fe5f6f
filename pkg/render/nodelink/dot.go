package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/pylock/pkg/render"
	"github.com/matzehuels/pylock/pkg/resolve"
)

// Options configures node-link diagram rendering.
type Options struct {
	// Project labels the root node. Defaults to "project".
	Project string
	// Detailed labels edges with specifiers and markers and nodes with
	// their source index.
	Detailed bool
}

// rootID cannot collide with a canonical package name.
const rootID = "__project__"

// ToDOT converts a resolution graph to Graphviz DOT. Output only depends on
// the graph's content.
func ToDOT(g *resolve.Graph, opts Options) string {
	project := opts.Project
	if project == "" {
		project = "project"
	}

	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=24, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	fmt.Fprintf(&buf, "  %q [label=%q, fillcolor=lightgrey];\n", rootID, project)
	for _, c := range g.Candidates() {
		fmt.Fprintf(&buf, "  %q [%s];\n", c.Name, strings.Join(fmtAttrs(c, opts.Detailed), ", "))
	}

	buf.WriteString("\n")
	writeEdges(&buf, rootID, g.RootEdges(), opts.Detailed)
	for _, name := range g.Names() {
		writeEdges(&buf, name, g.Dependencies(name), opts.Detailed)
	}

	buf.WriteString("}\n")
	return buf.String()
}

func fmtAttrs(c resolve.Candidate, detailed bool) []string {
	label := c.Name + "\n" + c.Version.String()
	if len(c.Extras) > 0 {
		label = c.Name + "[" + strings.Join(c.Extras, ",") + "]\n" + c.Version.String()
	}
	if detailed && c.Source != "" {
		label += "\n(" + c.Source + ")"
	}
	attrs := []string{fmt.Sprintf("label=%q", label)}
	if c.Yanked {
		attrs = append(attrs, "fillcolor=mistyrose")
	}
	return attrs
}

func writeEdges(buf *bytes.Buffer, from string, edges []resolve.Edge, detailed bool) {
	for _, e := range edges {
		var attrs []string
		if e.Requirement.Marker != nil {
			attrs = append(attrs, "style=dashed")
		}
		if detailed {
			label := e.Requirement.Specifier.String()
			if e.Requirement.Marker != nil {
				label = strings.TrimSpace(label + "\n" + e.Requirement.Marker.String())
			}
			if label != "" {
				attrs = append(attrs, fmt.Sprintf("label=%q", label), "fontsize=14")
			}
		}
		if len(attrs) == 0 {
			fmt.Fprintf(buf, "  %q -> %q;\n", from, e.Target())
			continue
		}
		fmt.Fprintf(buf, "  %q -> %q [%s];\n", from, e.Target(), strings.Join(attrs, ", "))
	}
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
// Returns the SVG bytes ready for display or further conversion with
// [render.ToPDF] or [render.ToPNG].
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	newSvg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)

	return svgTagRe.ReplaceAll(svg, []byte(newSvg))
}

// RenderPDF renders a DOT graph as PDF via SVG conversion.
func RenderPDF(ctx context.Context, dot string) ([]byte, error) {
	svg, err := RenderSVG(ctx, dot)
	if err != nil {
		return nil, err
	}
	return render.ToPDF(ctx, svg)
}

// RenderPNG renders a DOT graph as PNG via SVG conversion.
func RenderPNG(ctx context.Context, dot string, scale float64) ([]byte, error) {
	svg, err := RenderSVG(ctx, dot)
	if err != nil {
		return nil, err
	}
	return render.ToPNG(ctx, svg, scale)
}
