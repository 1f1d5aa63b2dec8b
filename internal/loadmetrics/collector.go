// Package loadmetrics ingests periodic usage and pending-demand reports from
// node agents and exposes them to the reconciler as a snapshot.
//
// Pending demand older than the freshness window is dropped from snapshots,
// so a node that died mid-report cannot hold phantom demand forever.
package loadmetrics

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/imamik/clusterscaler/internal/resources"
	"k8s.io/utils/clock"
)

// Report is one heartbeat from a node agent.
type Report struct {
	NodeID        string             `json:"node_id"`
	Usage         resources.Vector   `json:"usage"`
	PendingDemand []resources.Vector `json:"pending_demand"`
}

// Validate rejects negative or non-finite quantities in usage or demand.
func (r Report) Validate() error {
	if err := r.Usage.Validate(); err != nil {
		return fmt.Errorf("invalid usage: %w", err)
	}
	for i, d := range r.PendingDemand {
		if err := d.Validate(); err != nil {
			return fmt.Errorf("invalid pending demand %d: %w", i, err)
		}
	}
	return nil
}

// NodeLoad is the latest known load of one node.
type NodeLoad struct {
	Usage         resources.Vector
	LastHeartbeat time.Time
	// LastUsed is zero until the node reports non-zero usage.
	LastUsed time.Time
}

// Snapshot is the collector state handed to one reconciliation tick.
type Snapshot struct {
	Nodes  map[string]NodeLoad
	Demand []resources.Demand
}

type nodeState struct {
	load     NodeLoad
	demand   []resources.Vector
	demandAt time.Time
}

// Collector is safe for concurrent use.
type Collector struct {
	mu        sync.Mutex
	clock     clock.PassiveClock
	freshness time.Duration
	nodes     map[string]*nodeState
}

// NewCollector returns a collector that keeps pending demand for freshness.
func NewCollector(clk clock.PassiveClock, freshness time.Duration) *Collector {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Collector{clock: clk, freshness: freshness, nodes: make(map[string]*nodeState)}
}

// Report records a heartbeat. Non-zero usage marks the node as used.
// Invalid usage is recorded as none and invalid demand entries are dropped.
func (c *Collector) Report(r Report) {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.node(r.NodeID)
	n.load.LastHeartbeat = now
	n.load.Usage = resources.Vector{}
	if r.Usage.Validate() == nil {
		n.load.Usage = r.Usage.Clone()
		if !r.Usage.IsZero() {
			n.load.LastUsed = now
		}
	}
	n.demand = make([]resources.Vector, 0, len(r.PendingDemand))
	for _, d := range r.PendingDemand {
		if d.Validate() != nil {
			continue
		}
		n.demand = append(n.demand, d.Clone())
	}
	n.demandAt = now
}

// MarkActive treats the node as used now without a report, e.g. right after
// it was launched or adopted.
func (c *Collector) MarkActive(nodeID string) {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.node(nodeID).load.LastUsed = now
}

// Prune forgets nodes for which keep returns false.
func (c *Collector) Prune(keep func(nodeID string) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id := range c.nodes {
		if !keep(id) {
			delete(c.nodes, id)
		}
	}
}

// Snapshot returns per-node load and the aggregated fresh pending demand.
// Demand is ordered by node id and then report order, so identical inputs
// produce identical snapshots.
func (c *Collector) Snapshot() Snapshot {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]string, 0, len(c.nodes))
	for id := range c.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	snap := Snapshot{Nodes: make(map[string]NodeLoad, len(c.nodes))}
	var demand []resources.Vector
	for _, id := range ids {
		n := c.nodes[id]
		load := n.load
		load.Usage = load.Usage.Clone()
		snap.Nodes[id] = load

		if len(n.demand) == 0 {
			continue
		}
		if c.freshness > 0 && now.Sub(n.demandAt) > c.freshness {
			n.demand = nil
			continue
		}
		demand = append(demand, n.demand...)
	}
	snap.Demand = resources.Compact(demand)
	return snap
}

func (c *Collector) node(id string) *nodeState {
	n, ok := c.nodes[id]
	if !ok {
		n = &nodeState{}
		c.nodes[id] = n
	}
	return n
}
