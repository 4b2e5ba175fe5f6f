package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	pkgerrors "github.com/matzehuels/pylock/pkg/errors"
	"github.com/matzehuels/pylock/pkg/fsutil"
	pkgio "github.com/matzehuels/pylock/pkg/io"
	"github.com/matzehuels/pylock/pkg/lock"
	"github.com/matzehuels/pylock/pkg/render/nodelink"
	"github.com/matzehuels/pylock/pkg/resolve"
)

// Graph output formats.
const (
	formatDOT  = "dot"
	formatJSON = "json"
	formatSVG  = "svg"
	formatPNG  = "png"
	formatPDF  = "pdf"
)

var graphFormats = []string{formatDOT, formatJSON, formatSVG, formatPNG, formatPDF}

// graphCommand creates the graph command.
func (c *CLI) graphCommand() *cobra.Command {
	var (
		format   string
		output   string
		detailed bool
		scale    float64
	)

	cmd := &cobra.Command{
		Use:   "graph [flags]",
		Short: "Draw the dependency graph",
		Long: `Draw the locked dependency graph. Without a lock file the project is
resolved first; nothing is written except the requested output.

Formats: dot, json, svg, png, pdf. PNG and PDF need rsvg-convert.`,
		Example: `  pylock graph | dot -Tsvg > deps.svg
  pylock graph --format svg -o deps.svg --detailed
  pylock graph --format json -o deps.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(graphFormats, format) {
				return pkgerrors.New(pkgerrors.ErrCodeInvalidInput, "unknown format %q (want one of %s)", format, joinNames(graphFormats))
			}
			ctx := cmd.Context()
			s, err := c.openSession(ctx)
			if err != nil {
				return err
			}
			g, err := s.graph(ctx)
			if err != nil {
				return err
			}
			data, err := renderGraph(ctx, g, format, nodelink.Options{Project: s.project.Name, Detailed: detailed}, scale)
			if err != nil {
				return err
			}
			if output == "" {
				return writeTo(c.Out, "stdout", data)
			}
			if err := fsutil.WriteFileAtomic(output, data, 0o644); err != nil {
				return err
			}
			printSuccess(c.Out, "Wrote %s graph of %s", format, plural(g.Len(), "package"))
			printFile(c.Out, output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", formatDOT, "output format: "+joinNames(graphFormats))
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "label edges with specifiers and markers")
	cmd.Flags().Float64Var(&scale, "scale", 2, "PNG scale factor")

	return cmd
}

// graph returns the locked graph, resolving when there is no lock.
func (s *session) graph(ctx context.Context) (*resolve.Graph, error) {
	roots, err := s.project.Requirements(s.project.Groups()...)
	if err != nil {
		return nil, err
	}
	l, err := lock.Read(s.lockPath())
	switch {
	case err == nil:
		if l.IsStale(s.project.Fingerprint()) {
			printWarning(s.cli.errOut(), "Lock is out of date with %s", relPath(s.project.Path))
		}
		return l.Graph(roots)
	case pkgerrors.Is(err, pkgerrors.ErrCodeLockNotFound):
		s.logger.Info("No lock file, resolving")
		return s.resolve(ctx, roots, nil)
	}
	return nil, err
}

func renderGraph(ctx context.Context, g *resolve.Graph, format string, opts nodelink.Options, scale float64) ([]byte, error) {
	if format == formatJSON {
		var buf bytes.Buffer
		if err := pkgio.WriteJSON(g, &buf); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	dot := nodelink.ToDOT(g, opts)
	switch format {
	case formatSVG:
		return nodelink.RenderSVG(ctx, dot)
	case formatPNG:
		return nodelink.RenderPNG(ctx, dot, scale)
	case formatPDF:
		return nodelink.RenderPDF(ctx, dot)
	}
	return []byte(dot), nil
}

// writeTo writes data to w, naming dest in errors.
func writeTo(w io.Writer, dest string, data []byte) error {
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}
	return nil
}
