package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/clusterscaler/cmd/clusterscaler/handlers"
	"github.com/imamik/clusterscaler/internal/config"
)

// Validate returns the validate command.
func Validate() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a cluster configuration file",
		Long: `Validate checks the cluster document and its node type catalog without
contacting the provider.

Example:
  clusterscaler validate -c cluster.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Validate(configPath, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&configPath, flagConfig, "c", config.DefaultConfigFilename, "Path to cluster configuration file")

	return cmd
}
