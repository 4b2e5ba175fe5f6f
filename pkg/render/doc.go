// Package render turns resolution graphs into pictures.
//
// The [nodelink] subpackage produces Graphviz DOT and renders it to SVG
// in-process. [ToPDF] and [ToPNG] convert any SVG further using the
// external rsvg-convert tool (from librsvg):
//
//	dot := nodelink.ToDOT(g, nodelink.Options{})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//	pdf, err := render.ToPDF(ctx, svg)
//
// [nodelink]: github.com/matzehuels/pylock/pkg/render/nodelink
package render
