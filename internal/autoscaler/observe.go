package autoscaler

import (
	"context"
	"fmt"
	"maps"
	"time"

	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/imamik/clusterscaler/internal/loadmetrics"
	"github.com/imamik/clusterscaler/internal/provider"
	"github.com/imamik/clusterscaler/internal/state"
	"github.com/imamik/clusterscaler/internal/util/labels"
)

// applyOutcomes writes the results of finished workflow steps to the store.
func (r *Reconciler) applyOutcomes(ctx context.Context, outs []outcome) {
	logger := log.FromContext(ctx)

	for _, o := range outs {
		switch o.kind {
		case outcomeCreated:
			if _, ok := r.store.Get(o.nodeID); ok {
				continue
			}
			r.store.Upsert(state.NodeRecord{
				ID:        o.nodeID,
				NodeType:  o.nodeType,
				Tags:      r.launcher.Tags(r.spec(o.nodeType)),
				Status:    state.StatusPending,
				CreatedAt: o.at,
			})

		case outcomeStatus:
			rec, ok := r.store.Get(o.nodeID)
			if !ok || rec.Status == state.StatusTerminating {
				continue
			}
			rec.Status = o.status
			r.store.Upsert(rec)
			if o.status == state.StatusUp {
				r.store.MarkHeartbeat(o.nodeID, o.at)
				r.store.MarkUsed(o.nodeID, o.at)
				r.collector.MarkActive(o.nodeID)
			}

		case outcomeFailed:
			rec, ok := r.store.Get(o.nodeID)
			if !ok {
				rec = state.NodeRecord{ID: o.nodeID, NodeType: o.nodeType, CreatedAt: o.at}
			}
			rec.Status = state.StatusTerminating
			rec.Reason = o.reason
			r.store.Upsert(rec)

		case outcomeTerminated:
			r.store.Remove(o.nodeID)
			logger.V(1).Info("node removed from state", "node", o.nodeID, "nodeType", o.nodeType)
		}
	}
}

// refresh reconciles the store with the provider's node list. Tracked
// nodes the provider no longer reports are dropped, unknown nodes of the
// cluster are adopted. Nodes with a workflow in flight are left alone: the
// provider may not list a node it has just created.
func (r *Reconciler) refresh(ctx context.Context, now time.Time, busy map[string]bool) error {
	logger := log.FromContext(ctx)

	nodes, err := r.provider.ListNodes(ctx, labels.ClusterFilter(r.cfg.ClusterName))
	if err != nil {
		return fmt.Errorf("failed to list nodes: %w", err)
	}
	seen := make(map[string]provider.Node, len(nodes))
	for _, n := range nodes {
		seen[n.ID] = n
	}

	for _, rec := range r.store.List() {
		if busy[rec.ID] {
			continue
		}
		n, ok := seen[rec.ID]
		if !ok || !n.Running {
			logger.Info("node no longer reported by provider, removing from state",
				"node", rec.ID, "nodeType", rec.NodeType, "status", rec.Status)
			r.store.Remove(rec.ID)
			continue
		}

		changed := false
		if !maps.Equal(rec.Tags, n.Tags) {
			rec.Tags = maps.Clone(n.Tags)
			changed = true
		}
		if rec.Status.Launching() {
			// Restored from a snapshot with no workflow to finish it.
			rec.Status = state.StatusTerminating
			rec.Reason = ReasonStaleLaunch
			changed = true
		}
		if changed {
			r.store.Upsert(rec)
		}
	}

	for _, n := range nodes {
		if busy[n.ID] || !n.Running {
			continue
		}
		if _, ok := r.store.Get(n.ID); ok {
			continue
		}
		r.adopt(ctx, n, now)
	}

	r.collector.Prune(func(id string) bool {
		if busy[id] {
			return true
		}
		_, ok := r.store.Get(id)
		return ok
	})
	return nil
}

// adopt starts tracking a node this session did not launch. Its status
// comes from the status tag; a node caught mid-launch is replaced.
func (r *Reconciler) adopt(ctx context.Context, n provider.Node, now time.Time) {
	status := state.StatusFromTag(n.Tags[labels.KeyStatus])
	rec := state.NodeRecord{
		ID:            n.ID,
		NodeType:      n.Tags[labels.KeyNodeType],
		Tags:          maps.Clone(n.Tags),
		Status:        status,
		CreatedAt:     now,
		LastHeartbeat: now,
	}
	switch {
	case status.Launching():
		rec.Status = state.StatusTerminating
		rec.Reason = ReasonStaleLaunch
	case n.Tags[labels.KeyStatus] == labels.StatusUpdateFailed:
		rec.Reason = ReasonLaunchFailed
	case status == state.StatusTerminating:
		rec.Reason = labels.StatusTerminating
	}
	r.store.Upsert(rec)
	if rec.Status == state.StatusUp {
		r.collector.MarkActive(n.ID)
	}
	log.FromContext(ctx).Info("adopted node", "node", n.ID, "nodeType", rec.NodeType, "status", rec.Status)
}

// mergeLoad copies heartbeats and usage from the collector into the store.
func (r *Reconciler) mergeLoad(snap loadmetrics.Snapshot) {
	for id, load := range snap.Nodes {
		if !load.LastHeartbeat.IsZero() {
			r.store.MarkHeartbeat(id, load.LastHeartbeat)
		}
		if !load.LastUsed.IsZero() {
			r.store.MarkUsed(id, load.LastUsed)
		}
	}
}

// updateIdle moves workers between Up and Idle. The head is never idle.
func (r *Reconciler) updateIdle(now time.Time) {
	timeout := time.Duration(r.cfg.IdleTimeoutMinutes) * time.Minute
	for _, rec := range r.store.List() {
		if rec.IsHead() || (rec.Status != state.StatusUp && rec.Status != state.StatusIdle) {
			continue
		}
		want := state.StatusUp
		if now.Sub(rec.LastActive()) >= timeout {
			want = state.StatusIdle
		}
		if rec.Status != want {
			rec.Status = want
			r.store.Upsert(rec)
		}
	}
}
