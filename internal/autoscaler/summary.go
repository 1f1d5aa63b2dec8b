package autoscaler

import (
	"time"

	"github.com/imamik/clusterscaler/internal/state"
)

// TypeSummary is the state of one node type.
type TypeSummary struct {
	Name    string               `json:"name"`
	Head    bool                 `json:"head,omitempty"`
	Min     int                  `json:"min"`
	Max     int                  `json:"max"`
	Floor   int                  `json:"floor"`
	Target  int                  `json:"target"`
	Pending int                  `json:"pendingLaunches"`
	Counts  map[state.Status]int `json:"counts"`
}

// Summary is an operator-facing view of the reconciler.
type Summary struct {
	Cluster             string             `json:"cluster"`
	Provider            string             `json:"provider"`
	LastTick            time.Time          `json:"lastTick"`
	ConsecutiveFailures int                `json:"consecutiveFailures"`
	Types               []TypeSummary      `json:"types"`
	Nodes               []state.NodeRecord `json:"nodes"`
	Failures            []Failure          `json:"failures"`
	LastDecision        Decision           `json:"lastDecision"`
	Running             int                `json:"runningWorkflows"`
	Queued              int                `json:"queuedWorkflows"`
}

// Summary reports per-type counts by status, pending launches and the most
// recent failures, newest last.
func (r *Reconciler) Summary() Summary {
	nodes := r.store.List()
	running, queued := r.pool.Stats()

	r.mu.Lock()
	s := Summary{
		Cluster:             r.cfg.ClusterName,
		Provider:            r.cfg.Provider.Type,
		LastTick:            r.lastTick,
		ConsecutiveFailures: r.failedTicks,
		Nodes:               nodes,
		Failures:            append([]Failure(nil), r.failures...),
		LastDecision:        r.last,
		Running:             running,
		Queued:              queued,
	}
	pending := make(map[string]int, len(r.pending))
	for id, wf := range r.workflows {
		if _, ok := r.store.Get(id); !ok {
			pending[wf.nodeType]++
		}
	}
	for name, n := range r.pending {
		pending[name] += n
	}
	floors := make(map[string]int, len(r.floors))
	for k, v := range r.floors {
		floors[k] = v
	}
	r.mu.Unlock()

	for _, spec := range r.catalog.All() {
		ts := TypeSummary{
			Name:    spec.Name,
			Head:    spec.IsHead,
			Min:     spec.MinWorkers,
			Max:     spec.MaxWorkers,
			Floor:   spec.MinWorkers,
			Target:  s.LastDecision.Targets[spec.Name],
			Pending: pending[spec.Name],
			Counts:  make(map[state.Status]int),
		}
		if f, ok := floors[spec.Name]; ok && !spec.IsHead {
			ts.Floor = min(max(f, spec.MinWorkers), spec.MaxWorkers)
		}
		for _, rec := range nodes {
			if rec.NodeType == spec.Name {
				ts.Counts[rec.Status]++
			}
		}
		s.Types = append(s.Types, ts)
	}
	return s
}
