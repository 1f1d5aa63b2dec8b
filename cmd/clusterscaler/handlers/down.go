package handlers

import (
	"context"
	"fmt"
	"io"

	"sigs.k8s.io/controller-runtime/pkg/log"
)

// Down handles the down command.
//
// It terminates every node of the cluster through the provider, running
// each type's stop commands first. The head node is kept unless
// includeHead is set.
func Down(ctx context.Context, opts Options, includeHead bool, w io.Writer) error {
	s, err := openSession(ctx, opts)
	if err != nil {
		return err
	}
	defer s.Close()

	log.FromContext(ctx).Info("tearing down cluster nodes", "cluster", s.cfg.ClusterName, "includeHead", includeHead)

	n, err := s.reconciler.TerminateAll(ctx, includeHead)
	if err != nil {
		return fmt.Errorf("down failed: %w", err)
	}
	fmt.Fprintf(w, "Terminated %d node(s) of cluster %s\n", n, s.cfg.ClusterName)
	return nil
}
