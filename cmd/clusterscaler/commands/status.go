package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/clusterscaler/cmd/clusterscaler/handlers"
)

// Status returns the status command.
func Status() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the state of a running daemon",
		Long: `Status prints per node type counts by status, targets, unsatisfied
demand and recent failures of a running daemon.

Example:
  clusterscaler status --addr scaler.internal:8080`,
	}
	addAddrFlag(cmd, "Address of the running daemon")
	cmd.Flags().Bool(flagJSON, false, "Print the summary as JSON")
	v := bindEnv(cmd.Flags())

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		return handlers.Status(cmd.Context(), v.GetString(flagAddr), v.GetBool(flagJSON), cmd.OutOrStdout())
	}
	return cmd
}
