package autoscaler

import (
	"context"
	"maps"
	"slices"
	"sort"
	"time"

	"github.com/go-logr/logr"
	"github.com/samber/lo"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/imamik/clusterscaler/internal/catalog"
	"github.com/imamik/clusterscaler/internal/resources"
	"github.com/imamik/clusterscaler/internal/scheduler"
	"github.com/imamik/clusterscaler/internal/state"
	"github.com/imamik/clusterscaler/internal/util/labels"
)

// plan is the planning view of one tick. It reads the store and the
// workflow bookkeeping once and decides on copies.
type plan struct {
	r       *Reconciler
	log     logr.Logger
	now     time.Time
	records []state.NodeRecord
	// doomed maps node ids picked for termination this tick to the reason.
	doomed map[string]string
	order  []string
	// pending counts requested nodes without ids yet, per type.
	pending map[string]int
	// unrecorded counts created nodes the store has not seen yet, per type.
	unrecorded map[string]int
	floors     map[string]int
	scaleDown  map[string]int
}

func (r *Reconciler) newPlan(ctx context.Context, now time.Time) *plan {
	p := &plan{
		r:          r,
		log:        log.FromContext(ctx),
		now:        now,
		records:    r.store.List(),
		doomed:     make(map[string]string),
		unrecorded: make(map[string]int),
	}

	r.mu.Lock()
	p.pending = maps.Clone(r.pending)
	p.floors = maps.Clone(r.floors)
	p.scaleDown = r.scaleDown
	r.scaleDown = make(map[string]int)
	for id, wf := range r.workflows {
		if _, ok := r.store.Get(id); !ok {
			p.unrecorded[wf.nodeType]++
		}
	}
	r.mu.Unlock()
	return p
}

func (p *plan) doom(rec state.NodeRecord, reason string) {
	if _, ok := p.doomed[rec.ID]; ok {
		return
	}
	p.doomed[rec.ID] = reason
	p.order = append(p.order, rec.ID)
}

// live returns records that count toward their type: not terminating and
// not picked for termination this tick.
func (p *plan) live() []state.NodeRecord {
	return lo.Filter(p.records, func(rec state.NodeRecord, _ int) bool {
		_, doomed := p.doomed[rec.ID]
		return rec.Status.Active() && !doomed
	})
}

// liveByType groups live records by node type, least recently used first.
func (p *plan) liveByType() map[string][]state.NodeRecord {
	groups := lo.GroupBy(p.live(), func(rec state.NodeRecord) string { return rec.NodeType })
	for _, recs := range groups {
		sortLRU(recs)
	}
	return groups
}

func sortLRU(recs []state.NodeRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		ai, aj := recs[i].LastActive(), recs[j].LastActive()
		if !ai.Equal(aj) {
			return ai.Before(aj)
		}
		return recs[i].ID < recs[j].ID
	})
}

func launching(rec state.NodeRecord) bool {
	return rec.Status.Launching()
}

func serving(rec state.NodeRecord) bool {
	return rec.Status == state.StatusUp || rec.Status == state.StatusIdle
}

// floor is min_workers raised by a manual scale override, capped at
// max_workers.
func (p *plan) floor(spec catalog.NodeTypeSpec) int {
	if spec.IsHead {
		return 1
	}
	return min(max(spec.MinWorkers, p.floors[spec.Name]), spec.MaxWorkers)
}

// enforceConstraints picks nodes of unknown types, nodes above their
// type's max_workers or the global worker cap, and workers launched from
// an outdated template. Least recently used nodes go first.
func (p *plan) enforceConstraints() {
	groups := p.liveByType()
	for _, name := range slices.Sorted(maps.Keys(groups)) {
		recs := groups[name]
		spec, err := p.r.catalog.Resolve(name)
		if err != nil {
			for _, rec := range recs {
				p.doom(rec, ReasonUnknownType)
			}
			continue
		}
		kept := recs[:0:0]
		for _, rec := range recs {
			hash := rec.Tags[labels.KeyLaunchHash]
			if !spec.IsHead && hash != "" && hash != spec.LaunchHash {
				p.doom(rec, ReasonOutdated)
				continue
			}
			kept = append(kept, rec)
		}
		for i := 0; i < len(kept)-spec.MaxWorkers; i++ {
			p.doom(kept[i], ReasonMaxWorkers)
		}
	}

	if limit := p.r.cfg.MaxWorkers; limit > 0 {
		workers := lo.Filter(p.live(), func(rec state.NodeRecord, _ int) bool { return !rec.IsHead() })
		sortLRU(workers)
		for i := 0; i < len(workers)-limit; i++ {
			p.doom(workers[i], ReasonGlobalMax)
		}
	}
}

// manualScaleDown terminates the surplus requested by negative manual
// scale deltas, never going below the type's floor. Nodes still launching
// are cancelled before serving nodes are touched.
func (p *plan) manualScaleDown() {
	if len(p.scaleDown) == 0 {
		return
	}
	groups := p.liveByType()
	for _, name := range slices.Sorted(maps.Keys(p.scaleDown)) {
		spec, err := p.r.catalog.Resolve(name)
		if err != nil {
			continue
		}
		recs := groups[name]
		surplus := len(recs) + p.pending[name] + p.unrecorded[name] - p.floor(spec)
		n := min(p.scaleDown[name], surplus)
		for _, pick := range []func(state.NodeRecord) bool{launching, serving} {
			for _, rec := range recs {
				if n <= 0 {
					break
				}
				if pick(rec) {
					p.doom(rec, ReasonManual)
					n--
				}
			}
		}
	}
}

// evictLostContact terminates serving workers whose last heartbeat is
// older than the heartbeat timeout. They are replaced by the scheduler.
func (p *plan) evictLostContact() {
	timeout := p.r.timeouts.HeartbeatTimeout
	if timeout <= 0 {
		return
	}
	for _, rec := range p.live() {
		if rec.IsHead() || !serving(rec) {
			continue
		}
		last := rec.LastHeartbeat
		if last.IsZero() {
			last = rec.CreatedAt
		}
		if p.now.Sub(last) > timeout {
			p.log.Info("node lost contact, replacing", "node", rec.ID, "lastHeartbeat", last)
			p.doom(rec, ReasonLostContact)
		}
	}
}

// evictIdle terminates idle workers, least recently used first, while the
// type keeps at least its floor of serving nodes.
func (p *plan) evictIdle() {
	groups := p.liveByType()
	for _, name := range slices.Sorted(maps.Keys(groups)) {
		spec, err := p.r.catalog.Resolve(name)
		if err != nil || spec.IsHead {
			continue
		}
		recs := groups[name]
		running := lo.CountBy(recs, serving)
		for _, rec := range recs {
			if running <= p.floor(spec) {
				break
			}
			if rec.Status == state.StatusIdle && !rec.IsHead() {
				p.doom(rec, ReasonIdle)
				running--
			}
		}
	}
}

// schedule runs the scheduler over live records and in-flight launches.
func (p *plan) schedule(demand []resources.Demand) scheduler.Result {
	var nodes []scheduler.Node
	for _, rec := range p.live() {
		nodes = append(nodes, scheduler.Node{NodeType: rec.NodeType, Launching: rec.Status.Launching()})
	}
	for _, counts := range []map[string]int{p.pending, p.unrecorded} {
		for _, name := range slices.Sorted(maps.Keys(counts)) {
			for range counts[name] {
				nodes = append(nodes, scheduler.Node{NodeType: name, Launching: true})
			}
		}
	}

	return scheduler.Schedule(scheduler.Input{
		Types:          p.r.catalog.All(),
		Nodes:          nodes,
		Demand:         demand,
		Floors:         p.floors,
		UpscalingSpeed: p.r.cfg.UpscalingSpeed,
		MaxWorkers:     p.r.cfg.MaxWorkers,
		TieBreak:       p.r.cfg.TieBreak,
	})
}

// decide turns the plan into the tick's decision and marks the doomed
// records Terminating in the store.
func (p *plan) decide(res scheduler.Result) Decision {
	logger := p.log

	d := Decision{
		Targets:    res.Targets,
		Pending:    res.Pending,
		Infeasible: res.Infeasible,
		Throttled:  res.Throttled,
	}

	head := p.r.catalog.HeadType()
	if res.Current[head.Name] == 0 {
		d.Actions = append(d.Actions, Action{Kind: ActionLaunch, NodeType: head.Name, Count: 1})
	}
	for _, spec := range p.r.catalog.Workers() {
		if n := res.Launch[spec.Name]; n > 0 {
			d.Actions = append(d.Actions, Action{Kind: ActionLaunch, NodeType: spec.Name, Count: n})
		}
	}

	for _, id := range p.order {
		rec, ok := p.r.store.Get(id)
		if !ok {
			continue
		}
		rec.Status = state.StatusTerminating
		rec.Reason = p.doomed[id]
		p.r.store.Upsert(rec)
	}

	p.r.mu.Lock()
	for _, rec := range p.r.store.List() {
		if rec.Status == state.StatusTerminating && !p.r.terminating[rec.ID] {
			d.Actions = append(d.Actions, Action{Kind: ActionTerminate, NodeType: rec.NodeType, NodeID: rec.ID, Reason: rec.Reason})
		}
	}
	p.r.mu.Unlock()

	for _, dem := range res.Infeasible {
		logger.Info("resource demand cannot be satisfied by any node type",
			"severity", "warning", "resources", dem.Resources.String(), "count", dem.Count)
	}
	for _, dem := range res.Pending {
		logger.V(1).Info("resource demand pending, node types at max_workers",
			"resources", dem.Resources.String(), "count", dem.Count)
	}
	if res.Throttled {
		logger.V(1).Info("upscaling throttled", "unthrottled", res.Unthrottled, "targets", res.Targets)
	}
	return d
}
