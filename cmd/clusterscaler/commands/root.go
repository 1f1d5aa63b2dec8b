// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument parsing,
// flag binding, and validation. Command execution is delegated to handler
// functions in the handlers package. Every flag can also be set through a
// CLUSTERSCALER_* environment variable.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/clusterscaler/cmd/clusterscaler/handlers"
)

// Root returns the root command for the clusterscaler CLI.
func Root() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "clusterscaler",
		Short:         "Autoscale a cluster of nodes to its resource demand",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			debug, _ := cmd.Flags().GetBool(flagDebug)
			handlers.SetupLogging(debug)
		},
	}
	cmd.PersistentFlags().Bool(flagDebug, false, "Enable development logging")

	// Daemon
	cmd.AddCommand(Run())
	cmd.AddCommand(Once())
	cmd.AddCommand(Validate())
	cmd.AddCommand(Down())

	// Daemon clients
	cmd.AddCommand(Status())
	cmd.AddCommand(Scale())

	cmd.AddCommand(Version())

	return cmd
}
