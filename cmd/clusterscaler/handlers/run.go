package handlers

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/imamik/clusterscaler/internal/api"
)

// RunOptions configures the daemon.
type RunOptions struct {
	Options
	Addr  string
	Debug bool
}

// Run handles the run command.
//
// It starts the reconcile loop and the HTTP control surface and blocks
// until ctx is cancelled or the loop gives up. In-flight workflows are
// cancelled on the way out.
func Run(ctx context.Context, opts RunOptions) error {
	s, err := openSession(ctx, opts.Options)
	if err != nil {
		return err
	}
	defer s.Close()

	logger := log.FromContext(ctx).WithValues("cluster", s.cfg.ClusterName)
	ctx = log.IntoContext(ctx, logger)
	logger.Info("starting clusterscaler", "provider", s.cfg.Provider.Type, "addr", opts.Addr, "nodeTypes", len(s.catalog.All()))

	server := api.NewServer(ctx, s.reconciler, api.Options{Addr: opts.Addr, Debug: opts.Debug})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.reconciler.Run(gctx); err != nil {
			return fmt.Errorf("reconcile loop failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return server.Run(gctx)
	})

	err = g.Wait()
	logger.Info("shutting down")
	return err
}
