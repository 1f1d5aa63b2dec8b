package autoscaler

import (
	"context"
	"fmt"

	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/imamik/clusterscaler/internal/catalog"
	"github.com/imamik/clusterscaler/internal/launcher"
	"github.com/imamik/clusterscaler/internal/state"
	"github.com/imamik/clusterscaler/internal/util/async"
)

// dispatch hands the decision's actions to the worker pool. It never
// blocks on a workflow.
func (r *Reconciler) dispatch(ctx context.Context, d Decision) {
	workCtx := log.IntoContext(r.workCtx, log.FromContext(ctx))

	for _, a := range d.Actions {
		switch a.Kind {
		case ActionTerminate:
			r.dispatchTerminate(workCtx, a.NodeID, a.NodeType, a.Reason)
		case ActionLaunch:
			r.dispatchLaunch(workCtx, r.spec(a.NodeType), a.Count)
		}
	}
}

// dispatchLaunch splits count into create calls of at most max_launch_batch
// nodes. The nodes count as pending until the provider returns their ids.
func (r *Reconciler) dispatchLaunch(ctx context.Context, spec catalog.NodeTypeSpec, count int) {
	batch := max(1, r.timeouts.MaxLaunchBatch)
	for count > 0 {
		n := min(batch, count)
		count -= n

		r.mu.Lock()
		r.pending[spec.Name] += n
		r.mu.Unlock()

		ran := false
		r.pool.Go(ctx, async.Task{
			Name: fmt.Sprintf("launch-%s-%d", spec.Name, n),
			Func: func(ctx context.Context) error {
				ran = true
				return r.launch(ctx, spec, n)
			},
		}, func(_ string, _ error) {
			if !ran {
				// Cancelled while waiting for a slot.
				r.mu.Lock()
				r.pending[spec.Name] -= n
				r.mu.Unlock()
			}
		})
	}
}

// launch creates n nodes and starts a provisioning workflow per node.
func (r *Reconciler) launch(ctx context.Context, spec catalog.NodeTypeSpec, n int) error {
	ids, err := r.launcher.Create(ctx, spec, n)
	now := r.clock.Now()

	type started struct {
		id  string
		ctx context.Context
		wf  *workflow
	}
	var workflows []started

	r.mu.Lock()
	r.pending[spec.Name] -= n
	for _, id := range ids {
		wfCtx, cancel := context.WithCancel(ctx)
		wf := &workflow{nodeType: spec.Name, cancel: cancel, done: make(chan struct{})}
		r.workflows[id] = wf
		r.outcomes = append(r.outcomes, outcome{kind: outcomeCreated, nodeID: id, nodeType: spec.Name, at: now})
		workflows = append(workflows, started{id: id, ctx: wfCtx, wf: wf})
	}
	r.mu.Unlock()

	recordLaunch(r.cfg.ClusterName, spec.Name, len(ids))
	if err != nil {
		r.recordFailure(Failure{NodeType: spec.Name, Step: "create", Error: err.Error(), At: now})
		recordFailedUpdate(r.cfg.ClusterName, spec.Name, "create")
	}

	for _, s := range workflows {
		r.pool.Go(s.ctx, async.Task{
			Name: "provision-" + s.id,
			Func: func(ctx context.Context) error {
				return r.launcher.Provision(ctx, s.id, spec, func(status state.Status) {
					r.push(outcome{kind: outcomeStatus, nodeID: s.id, nodeType: spec.Name, status: status, at: r.clock.Now()})
				})
			},
		}, func(_ string, err error) {
			r.finishProvision(s.ctx, s.id, spec.Name, s.wf, err)
		})
	}
	return err
}

// finishProvision retires a provisioning workflow. A failure queues the node
// for termination; a workflow cancelled on purpose records nothing.
func (r *Reconciler) finishProvision(ctx context.Context, id, nodeType string, wf *workflow, err error) {
	now := r.clock.Now()
	failed := err != nil && ctx.Err() == nil

	r.mu.Lock()
	delete(r.workflows, id)
	if failed {
		r.outcomes = append(r.outcomes, outcome{kind: outcomeFailed, nodeID: id, nodeType: nodeType, reason: ReasonLaunchFailed, at: now})
	}
	r.mu.Unlock()

	wf.cancel()
	close(wf.done)

	if failed {
		step := launcher.Step(err)
		r.recordFailure(Failure{NodeID: id, NodeType: nodeType, Step: step, Error: err.Error(), At: now})
		recordFailedUpdate(r.cfg.ClusterName, nodeType, step)
	}
}

// dispatchTerminate removes a node. A provisioning workflow still running
// for it is cancelled first and stops at its next checkpoint.
func (r *Reconciler) dispatchTerminate(ctx context.Context, id, nodeType, reason string) {
	r.mu.Lock()
	r.terminating[id] = true
	wf := r.workflows[id]
	r.mu.Unlock()

	spec := r.spec(nodeType)
	r.pool.Go(ctx, async.Task{
		Name: "terminate-" + id,
		Func: func(ctx context.Context) error {
			if wf != nil {
				wf.cancel()
				select {
				case <-wf.done:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return r.launcher.Terminate(ctx, id, spec, reason)
		},
	}, func(_ string, err error) {
		now := r.clock.Now()
		r.mu.Lock()
		delete(r.terminating, id)
		if err == nil {
			r.outcomes = append(r.outcomes, outcome{kind: outcomeTerminated, nodeID: id, nodeType: nodeType, reason: reason, at: now})
		}
		r.mu.Unlock()

		if err != nil {
			r.recordFailure(Failure{NodeID: id, NodeType: nodeType, Step: launcher.Step(err), Error: err.Error(), At: now})
			recordFailedUpdate(r.cfg.ClusterName, nodeType, "terminate")
			return
		}
		recordTermination(r.cfg.ClusterName, nodeType, reason)
	})
}
