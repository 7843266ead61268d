package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/treesearch/pkg/pipeline"
)

// resumeCommand creates the resume command.
func (c *CLI) resumeCommand() *cobra.Command {
	var flags searchFlags

	cmd := &cobra.Command{
		Use:   "resume [run-id]",
		Short: "Continue an archived search from its retained trees",
		Long: `Continue an archived search from its retained trees.

The search restarts from the trees the run kept, with the criterion, moves,
direction and tree limit it was started with. Resuming a converged run finds
nothing new; resuming a cancelled run picks up where it stopped. The continued
run is archived under a new ID.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOnCancel(flags.onCancel); err != nil {
				return err
			}
			opts := pipeline.Options{
				TimeoutSeconds: int(flags.timeout.Seconds()),
				ProgressEvery:  c.config.Search.ProgressEvery,
			}
			return c.runResume(cmd.Context(), args[0], opts, flags)
		},
	}

	c.addSearchFlags(cmd, &flags)
	return cmd
}

func (c *CLI) runResume(ctx context.Context, id string, opts pipeline.Options, flags searchFlags) error {
	logger := loggerFromContext(ctx)

	runner, cleanup, err := c.newRunner(ctx, backendOpts{noCache: flags.noCache})
	if err != nil {
		return err
	}
	defer cleanup()
	if runner.Store == nil {
		return errNoStore
	}

	stop := c.attachProgress(ctx, &opts, flags)
	defer stop()

	prog := newProgress(logger)
	result, err := runner.Resume(ctx, id, opts)
	stop()
	if err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Resumed search %s", result.Collection.Stats.Status))

	return c.report(result, flags.output)
}
