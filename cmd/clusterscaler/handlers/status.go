package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/imamik/clusterscaler/internal/api"
	"github.com/imamik/clusterscaler/internal/autoscaler"
)

// daemonClient is the part of the API client the status and scale
// commands use.
type daemonClient interface {
	Status(ctx context.Context) (autoscaler.Summary, error)
	Scale(ctx context.Context, nodeType string, delta int) (int, error)
}

// newDaemonClient creates a client for a running daemon - can be replaced in tests.
var newDaemonClient = func(addr string) daemonClient {
	return api.NewClient(addr)
}

// Status handles the status command.
//
// It fetches the summary of a running daemon and renders it as a styled
// table on a terminal, plain text otherwise, or JSON on request.
func Status(ctx context.Context, addr string, jsonOutput bool, w io.Writer) error {
	summary, err := newDaemonClient(addr).Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}
	if jsonOutput {
		return writeJSON(w, summary)
	}
	_, err = io.WriteString(w, renderSummary(summary, isInteractiveTTY()))
	return err
}

// Scale handles the scale command.
func Scale(ctx context.Context, addr, nodeType string, delta int, w io.Writer) error {
	floor, err := newDaemonClient(addr).Scale(ctx, nodeType, delta)
	if err != nil {
		return fmt.Errorf("failed to scale %s: %w", nodeType, err)
	}
	fmt.Fprintf(w, "Node type %s now keeps at least %d node(s)\n", nodeType, floor)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// isInteractiveTTY returns true when stdout is a terminal.
func isInteractiveTTY() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}
