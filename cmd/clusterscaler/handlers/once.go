package handlers

import (
	"context"
	"fmt"
	"io"
)

// Once handles the once command.
//
// It runs a single reconcile tick, waits for the launches and
// terminations it dispatched, and prints the decision. Nodes whose
// workflows finished after the tick are adopted from their status tags by
// the next session.
func Once(ctx context.Context, opts Options, jsonOutput bool, w io.Writer) error {
	s, err := openSession(ctx, opts)
	if err != nil {
		return err
	}
	defer s.Close()

	decision, err := s.reconciler.ReconcileOnce(ctx)
	if err != nil {
		return fmt.Errorf("reconcile failed: %w", err)
	}
	s.reconciler.Wait()

	if jsonOutput {
		return writeJSON(w, decision)
	}
	_, err = io.WriteString(w, renderDecision(s.cfg.ClusterName, decision, isInteractiveTTY()))
	return err
}
