package cli

import (
	"context"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/treesearch/pkg/pipeline"
)

// scoreCommand creates the score command.
func (c *CLI) scoreCommand() *cobra.Command {
	var (
		genesPath string
		flags     searchFlags
	)

	cmd := &cobra.Command{
		Use:   "score [trees.tre]",
		Short: "Score trees against gene trees without searching",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			trees, err := readNewickArg(args[0])
			if err != nil {
				return err
			}
			genes, err := readNewickArg(genesPath)
			if err != nil {
				return err
			}
			opts, err := c.searchOptions(cmd, flags)
			if err != nil {
				return err
			}
			opts.GeneTrees = genes
			return c.runScore(cmd.Context(), opts, trees, flags.noCache)
		},
	}

	cmd.Flags().StringVar(&genesPath, "genes", "", "gene trees to score against (Newick file)")
	cmd.Flags().StringVar(&flags.criterion, "criterion", "", "criterion: concordance (default), split-distance")
	cmd.Flags().BoolVar(&flags.rooted, "rooted", false, "treat trees as rooted")
	cmd.Flags().BoolVar(&flags.noCache, "no-cache", false, "disable the score cache")
	_ = cmd.MarkFlagRequired("genes")

	return cmd
}

func (c *CLI) runScore(ctx context.Context, opts pipeline.Options, trees string, noCache bool) error {
	runner, cleanup, err := c.newRunner(ctx, backendOpts{noCache: noCache, noStore: true})
	if err != nil {
		return err
	}
	defer cleanup()

	opts.Logger = loggerFromContext(ctx)
	scored, dir, err := runner.Score(ctx, opts, trees)
	if err != nil {
		return err
	}

	rows := make([][]string, len(scored))
	for i, t := range scored {
		name := t.Name
		if name == "" {
			name = fmt.Sprintf("Tree %d", i+1)
		}
		rows[i] = []string{name, t.Score.String(), t.Tree.Newick()}
	}

	criterion := opts.Criterion
	if criterion == "" {
		criterion = pipeline.DefaultCriterion
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	tbl := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Tree", fmt.Sprintf("%s (%s)", criterion, dir), "Newick").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			if col == 1 {
				return StyleNumber
			}
			return lipgloss.NewStyle()
		})

	fmt.Println(tbl.Render())
	return nil
}
