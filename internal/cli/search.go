package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/treesearch/pkg/errors"
	"github.com/matzehuels/treesearch/pkg/pipeline"
	"github.com/matzehuels/treesearch/pkg/score"
	"github.com/matzehuels/treesearch/pkg/search"
)

// searchFlags holds the command-line flags shared by search and resume.
type searchFlags struct {
	seed      string        // seed tree file or inline Newick
	criterion string        // optimality criterion
	direction string        // minimize|maximize, empty for the criterion's preference
	moves     string        // rearrangement strategy
	maxTrees  int           // retained-set bound
	replicate int           // independent searches from successive seeds
	rooted    bool          // treat trees as rooted
	timeout   time.Duration // stop the search after this long
	onCancel  string        // ask|keep|discard
	output    string        // output file for the Newick block
	noCache   bool          // disable the score cache
	noSave    bool          // do not archive the run
}

// searchCommand creates the search command.
func (c *CLI) searchCommand() *cobra.Command {
	var flags searchFlags

	cmd := &cobra.Command{
		Use:   "search [gene-trees.tre]",
		Short: "Search for the best trees given a set of gene trees",
		Long: `Search for the best trees given a set of gene trees.

The search starts from a seed tree (by default the first gene tree) and applies
rearrangements until no rearrangement improves the criterion. Every tree found
with the best score is kept, up to --max-trees.

Gene trees are read as a Newick block, one tree per ';'. Use '-' to read stdin.
The retained trees are written as Newick to stdout or --output, and the run is
archived so it can be resumed or drawn later.

With --replicates N the search is repeated from N seed trees (the seed, then
the gene trees in order) and the trees of every search are written together,
each named after the search it came from.

Press Ctrl+C to stop the search early.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOnCancel(flags.onCancel); err != nil {
				return err
			}
			genes, err := readNewickArg(args[0])
			if err != nil {
				return err
			}
			opts, err := c.searchOptions(cmd, flags)
			if err != nil {
				return err
			}
			opts.GeneTrees = genes
			return c.runSearch(cmd.Context(), opts, flags)
		},
	}

	c.addSearchFlags(cmd, &flags)
	cmd.Flags().StringVar(&flags.seed, "seed", "", "seed tree: Newick file or inline Newick (default: first gene tree)")
	cmd.Flags().StringVar(&flags.criterion, "criterion", "", "criterion: concordance (default), split-distance")
	cmd.Flags().StringVar(&flags.direction, "direction", "", "minimize or maximize (default: the criterion's preference)")
	cmd.Flags().StringVar(&flags.moves, "moves", "", "rearrangements: spr (default), nni")
	cmd.Flags().IntVar(&flags.maxTrees, "max-trees", 0, "maximum number of equally good trees to keep (default 100)")
	cmd.Flags().BoolVar(&flags.rooted, "rooted", false, "treat trees as rooted")
	cmd.Flags().IntVar(&flags.replicate, "replicates", 1, "number of searches from successive seed trees")
	cmd.Flags().BoolVar(&flags.noSave, "no-save", false, "do not archive the run")

	return cmd
}

// addSearchFlags registers the flags shared with resume.
func (c *CLI) addSearchFlags(cmd *cobra.Command, flags *searchFlags) {
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 0, "stop the search after this long (e.g. 10m)")
	cmd.Flags().StringVar(&flags.onCancel, "on-cancel", onCancelAsk, "what to do with the trees of a cancelled search: ask, keep, discard")
	cmd.Flags().BoolVar(&flags.noCache, "no-cache", false, "disable the score cache")
}

// searchOptions merges the config file with the flags set on cmd.
func (c *CLI) searchOptions(cmd *cobra.Command, flags searchFlags) (pipeline.Options, error) {
	cfg := c.config.Search
	opts := pipeline.Options{
		Criterion:      cfg.Criterion,
		Moves:          cfg.Moves,
		MaxTrees:       cfg.MaxTrees,
		Rooted:         cfg.Rooted,
		TimeoutSeconds: int(cfg.Timeout.Seconds()),
		ProgressEvery:  cfg.ProgressEvery,
	}
	if cfg.Direction != score.Unset {
		opts.Direction = cfg.Direction.String()
	}

	set := cmd.Flags().Changed
	if set("criterion") {
		opts.Criterion = flags.criterion
	}
	if set("direction") {
		opts.Direction = flags.direction
	}
	if set("moves") {
		opts.Moves = flags.moves
	}
	if set("max-trees") {
		opts.MaxTrees = flags.maxTrees
	}
	if set("rooted") {
		opts.Rooted = flags.rooted
	}
	if set("replicates") {
		opts.Replicates = flags.replicate
	}
	if set("timeout") {
		opts.TimeoutSeconds = int(flags.timeout.Seconds())
	}
	if flags.seed != "" {
		seed, err := readNewickArg(flags.seed)
		if err != nil {
			return opts, err
		}
		opts.Seed = seed
	}
	return opts, nil
}

// runSearch executes a search and reports its outcome.
func (c *CLI) runSearch(ctx context.Context, opts pipeline.Options, flags searchFlags) error {
	logger := loggerFromContext(ctx)

	runner, cleanup, err := c.newRunner(ctx, backendOpts{noCache: flags.noCache, noStore: flags.noSave})
	if err != nil {
		return err
	}
	defer cleanup()

	stop := c.attachProgress(ctx, &opts, flags)
	defer stop()

	prog := newProgress(logger)
	result, err := runner.Execute(ctx, opts)
	stop()
	if err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Search %s", result.Collection.Stats.Status))

	return c.report(result, flags.output)
}

// attachProgress wires the cancel decision and, on a terminal, a spinner
// showing search progress. The returned function stops the spinner.
func (c *CLI) attachProgress(ctx context.Context, opts *pipeline.Options, flags searchFlags) func() {
	opts.Logger = loggerFromContext(ctx)
	opts.OnCancel = flags.onCancel
	if flags.onCancel == onCancelAsk {
		opts.OnCancel = "keep"
	}

	stop := func() {}
	if isTerminal(os.Stderr) && opts.Logger.GetLevel() != LogDebug {
		sp := newSpinnerWithContext(ctx, "Searching...")
		sp.Start()
		stop = sp.Stop
		opts.Progress = func(p search.Progress) {
			sp.SetMessage(fmt.Sprintf("Searching: best %s, %d tree(s), tree %d move %d/%d, %d examined",
				p.Best, p.Retained, p.TreeIndex+1, p.MoveIndex+1, p.MoveCount, p.Examined))
		}
	}
	opts.Decide = decider(flags.onCancel, stop)
	return stop
}

// report prints the run outcome and writes the retained trees.
func (c *CLI) report(result *pipeline.Result, output string) error {
	stats := result.Collection.Stats
	printRunStats(stats)

	if len(result.Collection.Trees) > 0 {
		if err := writeOutput(output, []byte(result.Collection.Newick())); err != nil {
			return err
		}
		if output != "" {
			printFile(output)
		}
	}

	if result.RunID != "" {
		printKeyValue("Run", result.RunID)
		if stats.Status.Cancelled() && len(result.Collection.Trees) > 0 {
			printNextStep("Continue with", fmt.Sprintf("%s resume %s", appName, result.RunID))
		} else if len(result.Collection.Trees) > 0 {
			printNextStep("Draw with", fmt.Sprintf("%s render %s -o tree.svg", appName, result.RunID))
		}
	}
	return nil
}

// =============================================================================
// Input/Output Helpers
// =============================================================================

// readNewickArg reads Newick text from a file, from stdin for "-", or takes
// arg itself when it is inline Newick.
func readNewickArg(arg string) (string, error) {
	if arg == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", errors.Wrap(errors.ErrCodeInvalidInput, err, "read stdin")
		}
		return string(data), nil
	}
	if strings.HasPrefix(strings.TrimSpace(arg), "(") {
		return arg, nil
	}
	if err := errors.ValidatePath(arg); err != nil {
		return "", err
	}
	data, err := os.ReadFile(arg)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidInput, err, "read %s", arg)
	}
	return string(data), nil
}

// writeOutput writes data to path, or to stdout when path is empty.
func writeOutput(path string, data []byte) error {
	if path == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := errors.ValidatePath(path); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
