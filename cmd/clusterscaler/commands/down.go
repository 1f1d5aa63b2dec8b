package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/clusterscaler/cmd/clusterscaler/handlers"
)

// Down returns the down command.
func Down() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Terminate the nodes of a cluster",
		Long: `Down terminates every worker node of the cluster, running each node
type's stop commands first. The head node is kept unless --all is given.

Stop a running daemon first, or it will launch the floor again.

Example:
  clusterscaler down -c cluster.yaml
  clusterscaler down -c cluster.yaml --all

WARNING: This operation is irreversible.`,
	}
	addSessionFlags(cmd)
	cmd.Flags().Bool(flagAll, false, "Terminate the head node too")
	v := bindEnv(cmd.Flags())

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		return handlers.Down(cmd.Context(), sessionOptions(v), v.GetBool(flagAll), cmd.OutOrStdout())
	}
	return cmd
}
