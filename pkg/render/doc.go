// Package render draws phylogenetic trees.
//
// # Overview
//
// A tree is first converted to Graphviz DOT with [ToDOT], laid out left to
// right with the taxa as plain-text leaves and internal nodes as points.
// The DOT source is then rendered:
//
//   - [RenderSVG] uses the embedded Graphviz (no external tools needed)
//   - [ToPDF] and [ToPNG] convert the SVG with the external rsvg-convert
//     tool from librsvg
//
//	dot := render.ToDOT(t, render.Options{Title: t.Name()})
//	svg, err := render.RenderSVG(ctx, dot)
//	png, err := render.ToPNG(svg, 2.0) // 2x scale
//
// [Render] bundles these steps behind a format name, which is what the CLI
// and the API use.
package render
