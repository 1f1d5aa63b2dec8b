package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/clusterscaler/cmd/clusterscaler/handlers"
)

// Once returns the once command.
func Once() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "once",
		Short: "Run a single reconcile tick",
		Long: `Once runs one reconcile tick, waits for the launches and terminations
it dispatched, and prints the decision.

Example:
  clusterscaler once -c cluster.yaml
  clusterscaler once -c cluster.yaml --json`,
	}
	addSessionFlags(cmd)
	cmd.Flags().Bool(flagJSON, false, "Print the decision as JSON")
	v := bindEnv(cmd.Flags())

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		return handlers.Once(cmd.Context(), sessionOptions(v), v.GetBool(flagJSON), cmd.OutOrStdout())
	}
	return cmd
}
