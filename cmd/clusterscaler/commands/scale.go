package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/imamik/clusterscaler/cmd/clusterscaler/handlers"
)

// Scale returns the scale command.
func Scale() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scale TYPE DELTA",
		Short: "Change the node floor of a node type",
		Long: `Scale shifts the floor of a worker node type on a running daemon by
DELTA, clamped to the type's min_workers and max_workers. A negative
DELTA also terminates that many of the least recently used nodes.
The floor lasts until the daemon restarts.

Example:
  clusterscaler scale worker.small 3
  clusterscaler scale worker.small -- -2`,
		Args: cobra.ExactArgs(2),
	}
	addAddrFlag(cmd, "Address of the running daemon")
	v := bindEnv(cmd.Flags())

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		delta, err := parseDelta(args[1])
		if err != nil {
			return err
		}
		return handlers.Scale(cmd.Context(), v.GetString(flagAddr), args[0], delta, cmd.OutOrStdout())
	}
	return cmd
}

func parseDelta(s string) (int, error) {
	delta, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid delta %q: must be a signed integer", s)
	}
	if delta == 0 {
		return 0, fmt.Errorf("invalid delta %q: must not be zero", s)
	}
	return delta, nil
}
