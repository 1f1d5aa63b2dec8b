package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/clusterscaler/cmd/clusterscaler/handlers"
)

// Run returns the run command.
//
// The run command starts the reconcile loop together with the HTTP
// control surface that node agents report load to.
func Run() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the autoscaler daemon",
		Long: `Run starts the reconcile loop and the HTTP control surface.

Every update interval the daemon compares the nodes the provider reports
with the load the node agents report, launches nodes for unsatisfied
demand and terminates idle ones. It stops on SIGINT/SIGTERM, or after
max_failures consecutive failed ticks.

Endpoints:
  POST /v1/report     node agent load reports
  POST /v1/scale      manual scale requests
  GET  /v1/status     cluster summary
  POST /v1/reconcile  run a tick now
  GET  /metrics       Prometheus metrics
  GET  /healthz       liveness

Example:
  clusterscaler run -c cluster.yaml --addr :8080 --state-backend s3 --s3-bucket scaler-state`,
	}
	addSessionFlags(cmd)
	addAddrFlag(cmd, "Address the HTTP control surface listens on")
	v := bindEnv(cmd.Flags())

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		debug, _ := cmd.Flags().GetBool(flagDebug)
		return handlers.Run(cmd.Context(), handlers.RunOptions{
			Options: sessionOptions(v),
			Addr:    v.GetString(flagAddr),
			Debug:   debug,
		})
	}
	return cmd
}
