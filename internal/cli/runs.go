package cli

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/treesearch/pkg/errors"
	"github.com/matzehuels/treesearch/pkg/score"
)

var errNoStore = errors.New(errors.ErrCodeUnsupported, "run archive is disabled (store backend %q)", "none")

// runsCommand creates the run archive command.
func (c *CLI) runsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Manage archived search runs",
	}

	cmd.AddCommand(c.runsListCommand())
	cmd.AddCommand(c.runsShowCommand())
	cmd.AddCommand(c.runsDeleteCommand())

	return cmd
}

// runsListCommand creates the "runs list" subcommand.
func (c *CLI) runsListCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List archived runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			runs, err := c.openStore(ctx)
			if err != nil {
				return err
			}
			defer runs.Close()

			recs, err := runs.List(ctx, limit)
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				printInfo("No archived runs")
				return nil
			}

			rows := make([][]string, len(recs))
			for i, r := range recs {
				rows[i] = []string{
					r.ID,
					r.CreatedAt.Local().Format("2006-01-02 15:04"),
					r.Direction + " " + r.Criterion,
					score.FromPtr(r.Best).String(),
					strconv.Itoa(len(r.Trees)),
					r.Status,
				}
			}

			headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
			tbl := table.New().
				Border(lipgloss.RoundedBorder()).
				BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
				Headers("ID", "Created", "Criterion", "Best", "Trees", "Status").
				Rows(rows...).
				StyleFunc(func(row, col int) lipgloss.Style {
					if row == -1 {
						return headerStyle
					}
					if col == 5 && recs[row].Status != "converged" {
						return StyleWarning
					}
					return lipgloss.NewStyle()
				})
			fmt.Println(tbl.Render())
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of runs to list")
	return cmd
}

// runsShowCommand creates the "runs show" subcommand.
func (c *CLI) runsShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show [run-id]",
		Short: "Show an archived run and print its trees",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			runs, err := c.openStore(ctx)
			if err != nil {
				return err
			}
			defer runs.Close()

			rec, err := runs.Get(ctx, args[0])
			if err != nil {
				return err
			}
			col, taxa, err := rec.Collection()
			if err != nil {
				return err
			}

			printKeyValue("Run", rec.ID)
			printKeyValue("Created", rec.CreatedAt.Local().Format("2006-01-02 15:04:05"))
			printKeyValue("Taxa", strconv.Itoa(taxa.Len()))
			printKeyValue("Gene trees", strconv.Itoa(len(rec.GeneTrees)))
			printKeyValue("Moves", rec.Moves)
			printRunStats(col.Stats)

			fmt.Print(col.Newick())
			return nil
		},
	}
}

// runsDeleteCommand creates the "runs delete" subcommand.
func (c *CLI) runsDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [run-id...]",
		Short: "Delete archived runs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			runs, err := c.openStore(ctx)
			if err != nil {
				return err
			}
			defer runs.Close()

			for _, id := range args {
				if err := runs.Delete(ctx, id); err != nil {
					return err
				}
				printSuccess("Deleted run %s", id)
			}
			return nil
		},
	}
}
