package cli

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/treesearch/pkg/errors"
	"github.com/matzehuels/treesearch/pkg/render"
	"github.com/matzehuels/treesearch/pkg/tree"
)

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	output  string  // output file path
	format  string  // svg, pdf, png, dot, newick; default from the output extension
	index   int     // 1-based tree index within the run or file
	lengths bool    // label edges with branch lengths
	rooted  bool    // treat file trees as rooted
	scale   float64 // PNG scale factor
}

// renderCommand creates the render command for drawing trees.
func (c *CLI) renderCommand() *cobra.Command {
	opts := renderOpts{index: 1, scale: 2}

	cmd := &cobra.Command{
		Use:   "render [run-id | trees.tre]",
		Short: "Draw a tree as SVG, PDF, PNG or DOT",
		Long: `Draw a tree as SVG, PDF, PNG or DOT.

The tree is taken from an archived run (by run ID) or from a Newick file.
Use --tree to pick which tree to draw. The format defaults to the extension of
--output, or svg. PDF and PNG output require rsvg-convert (librsvg).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runRender(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "output format: "+strings.Join(render.Formats, ", "))
	cmd.Flags().IntVarP(&opts.index, "tree", "t", opts.index, "which tree to draw (1-based)")
	cmd.Flags().BoolVar(&opts.lengths, "lengths", false, "label edges with branch lengths")
	cmd.Flags().BoolVar(&opts.rooted, "rooted", false, "treat file trees as rooted")
	cmd.Flags().Float64Var(&opts.scale, "scale", opts.scale, "PNG scale factor")

	return cmd
}

func (c *CLI) runRender(ctx context.Context, source string, opts renderOpts) error {
	name, t, err := c.loadTree(ctx, source, opts)
	if err != nil {
		return err
	}

	format := renderFormat(opts.format, opts.output)
	out, err := render.Render(ctx, t, format, render.Options{
		Title:         name,
		BranchLengths: opts.lengths,
		Scale:         opts.scale,
	})
	if err != nil {
		return err
	}
	if err := writeOutput(opts.output, out); err != nil {
		return err
	}
	if opts.output != "" {
		printSuccess("Rendered %s", name)
		printFile(opts.output)
	}
	return nil
}

// loadTree picks tree opts.index from an archived run or a Newick file.
func (c *CLI) loadTree(ctx context.Context, source string, opts renderOpts) (string, *tree.Tree, error) {
	var (
		names []string
		trees []*tree.Tree
	)
	if errors.ValidateRunID(source) == nil {
		runs, err := c.openStore(ctx)
		if err != nil {
			return "", nil, err
		}
		defer runs.Close()
		rec, err := runs.Get(ctx, source)
		if err != nil {
			return "", nil, err
		}
		col, _, err := rec.Collection()
		if err != nil {
			return "", nil, err
		}
		for _, t := range col.Trees {
			names = append(names, t.Name)
			trees = append(trees, t.Tree)
		}
	} else {
		text, err := readNewickArg(source)
		if err != nil {
			return "", nil, err
		}
		parsed, _, err := tree.ParseNewickBlock(text, nil, opts.rooted)
		if err != nil {
			return "", nil, err
		}
		for _, t := range parsed {
			names = append(names, t.Name())
			trees = append(trees, t)
		}
	}

	if opts.index < 1 || opts.index > len(trees) {
		return "", nil, errors.New(errors.ErrCodeInvalidInput, "tree %d out of range (source has %d)", opts.index, len(trees))
	}
	return names[opts.index-1], trees[opts.index-1], nil
}

// renderFormat picks the format from the flag, then the output extension.
func renderFormat(format, output string) string {
	if format != "" {
		return strings.ToLower(format)
	}
	switch ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(output)), "."); ext {
	case render.FormatSVG, render.FormatPDF, render.FormatPNG, render.FormatDOT:
		return ext
	case "gv":
		return render.FormatDOT
	case "tre", "nwk", "newick":
		return render.FormatNewick
	}
	return render.FormatSVG
}
