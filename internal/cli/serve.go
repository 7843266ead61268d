package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/treesearch/pkg/api"
)

// serveCommand creates the serve command that runs the HTTP API.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr    string
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the search API over HTTP",
		Long: `Serve the search API over HTTP.

Searches run synchronously within the request; closing the connection cancels
the search. Runs are archived to the configured store.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if addr == "" {
				addr = c.config.Server.Addr
			}

			runner, cleanup, err := c.newRunner(ctx, backendOpts{noCache: noCache})
			if err != nil {
				return err
			}
			defer cleanup()
			if runner.Store == nil {
				printWarning("Run archive disabled; /v1/runs endpoints will answer 501")
			}

			return api.New(runner, c.Logger).Serve(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the score cache")

	return cmd
}
