package autoscaler

import (
	"errors"
	"fmt"

	"github.com/imamik/clusterscaler/internal/state"
)

// ErrInvalidScale is returned by RequestScale for requests that can never
// be applied.
var ErrInvalidScale = errors.New("invalid scale request")

// RequestScale shifts the session floor of nodeType by delta, clamped to
// [min_workers, max_workers]. The first request starts from the type's
// current node count. A negative delta also terminates up to -delta of the
// least recently used surplus nodes on the next tick. The head type cannot
// be scaled.
func (r *Reconciler) RequestScale(nodeType string, delta int) (int, error) {
	spec, err := r.catalog.Resolve(nodeType)
	if err != nil {
		return 0, err
	}
	if spec.IsHead {
		return 0, fmt.Errorf("%w: the head node type %q is fixed at one node", ErrInvalidScale, nodeType)
	}
	if delta == 0 {
		return 0, fmt.Errorf("%w: delta must not be zero", ErrInvalidScale)
	}

	r.mu.Lock()
	base, ok := r.floors[nodeType]
	if !ok {
		base = r.countLocked(nodeType)
	}
	floor := min(max(base+delta, spec.MinWorkers), spec.MaxWorkers)
	r.floors[nodeType] = floor
	if delta < 0 {
		r.scaleDown[nodeType] += -delta
	}
	r.mu.Unlock()

	r.Trigger()
	return floor, nil
}

// Floors returns the manual floor overrides of this session.
func (r *Reconciler) Floors() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int, len(r.floors))
	for k, v := range r.floors {
		out[k] = v
	}
	return out
}

// countLocked counts active and in-flight nodes of a type. r.mu must be held.
func (r *Reconciler) countLocked(nodeType string) int {
	n := r.pending[nodeType]
	for id, wf := range r.workflows {
		if _, ok := r.store.Get(id); !ok && wf.nodeType == nodeType {
			n++
		}
	}
	for _, rec := range r.store.List() {
		if rec.NodeType == nodeType && rec.Status != state.StatusTerminating {
			n++
		}
	}
	return n
}
