package autoscaler

import (
	"time"

	"github.com/imamik/clusterscaler/internal/resources"
)

// ActionKind is the kind of a scaling action.
type ActionKind string

const (
	ActionLaunch    ActionKind = "launch"
	ActionTerminate ActionKind = "terminate"
)

// Termination reasons.
const (
	ReasonUnknownType  = "unknown-node-type"
	ReasonMaxWorkers   = "max-workers"
	ReasonGlobalMax    = "global-max-workers"
	ReasonOutdated     = "outdated"
	ReasonIdle         = "idle"
	ReasonLostContact  = "lost-contact"
	ReasonLaunchFailed = "launch-failed"
	ReasonStaleLaunch  = "stale-launch"
	ReasonManual       = "manual-scale"
	ReasonDown         = "down"
)

// Action is one entry of a scaling decision. Launches carry a count,
// terminations a node id.
type Action struct {
	Kind     ActionKind `json:"kind"`
	NodeType string     `json:"nodeType"`
	Count    int        `json:"count,omitempty"`
	NodeID   string     `json:"nodeId,omitempty"`
	Reason   string     `json:"reason,omitempty"`
}

// Decision is the output of one tick.
type Decision struct {
	Actions    []Action           `json:"actions"`
	Targets    map[string]int     `json:"targets"`
	Pending    []resources.Demand `json:"pending,omitempty"`
	Infeasible []resources.Demand `json:"infeasible,omitempty"`
	Throttled  bool               `json:"throttled"`
}

// Empty reports whether the decision has no actions.
func (d Decision) Empty() bool {
	return len(d.Actions) == 0
}

// Launches returns the number of nodes the decision launches per type.
func (d Decision) Launches() map[string]int {
	out := make(map[string]int)
	for _, a := range d.Actions {
		if a.Kind == ActionLaunch {
			out[a.NodeType] += a.Count
		}
	}
	return out
}

// Terminations returns the ids the decision terminates.
func (d Decision) Terminations() []string {
	var out []string
	for _, a := range d.Actions {
		if a.Kind == ActionTerminate {
			out = append(out, a.NodeID)
		}
	}
	return out
}

// Failure is a node workflow that failed.
type Failure struct {
	NodeID   string    `json:"nodeId,omitempty"`
	NodeType string    `json:"nodeType"`
	Step     string    `json:"step"`
	Error    string    `json:"error"`
	At       time.Time `json:"at"`
}
