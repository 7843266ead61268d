package cli

import (
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/treesearch/pkg/criteria"
	"github.com/matzehuels/treesearch/pkg/moves"
)

// completionScripts writes the completion script of each supported shell.
var completionScripts = map[string]func(root *cobra.Command, w io.Writer) error{
	"bash": func(root *cobra.Command, w io.Writer) error { return root.GenBashCompletionV2(w, true) },
	"zsh":  func(root *cobra.Command, w io.Writer) error { return root.GenZshCompletion(w) },
	"fish": func(root *cobra.Command, w io.Writer) error { return root.GenFishCompletion(w, true) },
	"powershell": func(root *cobra.Command, w io.Writer) error {
		return root.GenPowerShellCompletionWithDesc(w)
	},
}

// completionShells lists the shells of completionScripts in order.
func completionShells() []string {
	shells := make([]string, 0, len(completionScripts))
	for s := range completionScripts {
		shells = append(shells, s)
	}
	slices.Sort(shells)
	return shells
}

// completionCommand creates the completion command.
func (c *CLI) completionCommand() *cobra.Command {
	shells := completionShells()
	return &cobra.Command{
		Use:   "completion [" + strings.Join(shells, "|") + "]",
		Short: "Generate shell completion scripts",
		Long: `Generate a completion script for treesearch.

The script completes subcommands, flags and flag values such as
--criterion, --moves and --on-cancel. Load it for the current shell:

  bash:        source <(treesearch completion bash)
  zsh:         source <(treesearch completion zsh)
  fish:        treesearch completion fish | source
  powershell:  treesearch completion powershell | Out-String | Invoke-Expression

or write it to your shell's completion directory to load it in every session.`,
		DisableFlagsInUseLine: true,
		ValidArgs:             shells,
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return completionScripts[args[0]](cmd.Root(), cmd.OutOrStdout())
		},
	}
}

// registerFlagCompletions offers the known values of the search flags.
func registerFlagCompletions(cmd *cobra.Command) {
	fixed := func(values ...string) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			return values, cobra.ShellCompDirectiveNoFileComp
		}
	}
	for flag, values := range map[string][]string{
		"criterion": criteria.Names(),
		"moves":     moves.Names(),
		"direction": {"minimize", "maximize"},
		"on-cancel": {onCancelAsk, "keep", "discard"},
	} {
		if cmd.Flags().Lookup(flag) != nil {
			_ = cmd.RegisterFlagCompletionFunc(flag, fixed(values...))
		}
	}
}
