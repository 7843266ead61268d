package render

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/treesearch/pkg/errors"
	"github.com/matzehuels/treesearch/pkg/tree"
)

// Output formats.
const (
	FormatNewick = "newick"
	FormatDOT    = "dot"
	FormatSVG    = "svg"
	FormatPDF    = "pdf"
	FormatPNG    = "png"
)

// Formats lists the supported output formats.
var Formats = []string{FormatNewick, FormatDOT, FormatSVG, FormatPDF, FormatPNG}

// ContentType returns the MIME type of format.
func ContentType(format string) string {
	switch format {
	case FormatSVG:
		return "image/svg+xml"
	case FormatPDF:
		return "application/pdf"
	case FormatPNG:
		return "image/png"
	case FormatDOT:
		return "text/vnd.graphviz"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Options configures tree drawing.
type Options struct {
	// Title is drawn above the tree when set.
	Title string

	// BranchLengths labels edges with their lengths when the tree has them.
	BranchLengths bool

	// Scale is the PNG resolution factor. Zero means 2.
	Scale float64
}

// ToDOT converts a tree to Graphviz DOT. Leaves are labelled with their
// taxa; internal nodes are drawn as points.
func ToDOT(t *tree.Tree, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph T {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  splines=ortho;\n")
	buf.WriteString("  ranksep=0.4;\n")
	buf.WriteString("  nodesep=0.15;\n")
	if opts.Title != "" {
		fmt.Fprintf(&buf, "  labelloc=t;\n  label=%q;\n", opts.Title)
	}
	buf.WriteString("  node [shape=plaintext, fontsize=14];\n")
	buf.WriteString("  edge [arrowhead=none];\n")
	buf.WriteString("\n")

	for _, id := range t.Postorder() {
		if taxon, ok := t.Taxon(id); ok {
			fmt.Fprintf(&buf, "  n%d [label=%q];\n", id, t.Taxa().Label(taxon))
		} else {
			fmt.Fprintf(&buf, "  n%d [shape=point, width=0.05];\n", id)
		}
	}

	buf.WriteString("\n")
	for _, id := range t.Postorder() {
		p := t.Parent(id)
		if p == tree.NoNode {
			continue
		}
		attrs := ""
		if l, ok := t.Length(id); ok && opts.BranchLengths {
			attrs = fmt.Sprintf(" [xlabel=%q]", strconv.FormatFloat(l, 'g', 4, 64))
		}
		fmt.Fprintf(&buf, "  n%d -> n%d%s;\n", p, id, attrs)
	}

	buf.WriteString("}\n")
	return buf.String()
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
// Returns the SVG bytes ready for display or further conversion with [ToPDF] or [ToPNG].
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

// normalizeViewBox replaces Graphviz's point-based svg header with one whose
// width and height match the viewBox, so the drawing scales in browsers.
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

	header := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(header))
}

// Render draws t in format.
func Render(ctx context.Context, t *tree.Tree, format string, opts Options) ([]byte, error) {
	format = strings.ToLower(format)
	switch format {
	case FormatNewick:
		return []byte(t.Newick() + "\n"), nil
	case FormatDOT:
		return []byte(ToDOT(t, opts)), nil
	case FormatSVG, FormatPDF, FormatPNG:
	default:
		return nil, errors.New(errors.ErrCodeInvalidInput, "invalid format %q (must be one of: %s)", format, strings.Join(Formats, ", "))
	}

	svg, err := RenderSVG(ctx, ToDOT(t, opts))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "render %s", format)
	}
	switch format {
	case FormatPDF:
		return ToPDF(ctx, svg)
	case FormatPNG:
		scale := opts.Scale
		if scale <= 0 {
			scale = 2
		}
		return ToPNG(ctx, svg, scale)
	}
	return svg, nil
}
