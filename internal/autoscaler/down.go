package autoscaler

import (
	"context"
	"fmt"

	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/imamik/clusterscaler/internal/provider"
	"github.com/imamik/clusterscaler/internal/util/async"
	"github.com/imamik/clusterscaler/internal/util/labels"
)

// TerminateAll removes every node of the cluster the provider reports,
// running stop commands first. The head is kept unless includeHead is set.
// Removing the head also clears the saved snapshot. It returns how many
// nodes were removed.
func (r *Reconciler) TerminateAll(ctx context.Context, includeHead bool) (int, error) {
	logger := log.FromContext(ctx).WithValues("cluster", r.cfg.ClusterName)
	ctx = log.IntoContext(ctx, logger)

	nodes, err := r.provider.ListNodes(ctx, labels.ClusterFilter(r.cfg.ClusterName))
	if err != nil {
		return 0, fmt.Errorf("failed to list nodes: %w", err)
	}

	var tasks []async.Task
	var targets []provider.Node
	for _, n := range nodes {
		if n.Tags[labels.KeyRole] == labels.RoleHead && !includeHead {
			continue
		}
		targets = append(targets, n)
		spec := r.spec(n.Tags[labels.KeyNodeType])
		id := n.ID
		tasks = append(tasks, async.Task{
			Name: "terminate-" + id,
			Func: func(ctx context.Context) error {
				if err := r.launcher.Terminate(ctx, id, spec, ReasonDown); err != nil {
					return err
				}
				r.store.Remove(id)
				recordTermination(r.cfg.ClusterName, spec.Name, ReasonDown)
				return nil
			},
		})
	}

	logger.Info("terminating cluster nodes", "count", len(targets), "includeHead", includeHead)
	if err := async.RunParallel(ctx, tasks); err != nil {
		return 0, fmt.Errorf("failed to terminate nodes: %w", err)
	}
	if includeHead && r.persister != nil {
		if err := r.persister.Clear(ctx); err != nil {
			return len(targets), err
		}
	}
	return len(targets), nil
}
