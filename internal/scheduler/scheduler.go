package scheduler

import (
	"math"
	"sort"

	"github.com/imamik/clusterscaler/internal/catalog"
	"github.com/imamik/clusterscaler/internal/config"
	"github.com/imamik/clusterscaler/internal/resources"
	"github.com/samber/lo"
)

// Node is a node counted toward its type's current count.
type Node struct {
	NodeType string
	// Launching is true until the node is Up. Launching nodes do not count
	// as running for the throttle, and their capacity absorbs demand.
	Launching bool
}

// Input is everything the scheduler looks at.
type Input struct {
	// Types in declaration order, head included.
	Types  []catalog.NodeTypeSpec
	Nodes  []Node
	Demand []resources.Demand
	// Floors raises min_workers per type for this session.
	Floors         map[string]int
	UpscalingSpeed float64
	// MaxWorkers caps the total number of worker nodes; 0 means unbounded.
	MaxWorkers int
	TieBreak   config.TieBreak
}

// Result is the scheduler's output for one tick.
type Result struct {
	// Targets holds the throttled target count per node type.
	Targets map[string]int
	// Current holds the counted nodes per type.
	Current map[string]int
	// Unthrottled holds the targets before the upscaling throttle.
	Unthrottled map[string]int
	// Pending is demand that fits a node type but exceeds max_workers.
	Pending []resources.Demand
	// Infeasible is demand that no worker type can ever hold.
	Infeasible []resources.Demand
	// Throttled is true when the upscaling cap reduced the increase.
	Throttled bool
	// Launch holds, per worker type, how many nodes to launch this tick.
	Launch map[string]int
}

type slot struct {
	nodeType string
	free     resources.Vector
}

type planner struct {
	in      Input
	types   map[string]catalog.NodeTypeSpec
	current map[string]int
	targets map[string]int
	slots   []slot
}

// Schedule computes target node counts. It does not mutate its input.
func Schedule(in Input) Result {
	p := &planner{
		in:      in,
		types:   make(map[string]catalog.NodeTypeSpec, len(in.Types)),
		current: make(map[string]int, len(in.Types)),
		targets: make(map[string]int, len(in.Types)),
	}
	for _, t := range in.Types {
		p.types[t.Name] = t
	}

	running := 0
	for _, n := range in.Nodes {
		p.current[n.NodeType]++
		if !n.Launching {
			running++
		}
		if t, ok := p.types[n.NodeType]; ok && n.Launching && !t.IsHead {
			p.slots = append(p.slots, slot{nodeType: t.Name, free: t.Resources.Clone()})
		}
	}

	for _, t := range in.Types {
		p.targets[t.Name] = max(p.floor(t), min(p.current[t.Name], t.MaxWorkers))
		if t.IsHead {
			p.targets[t.Name] = 1
			continue
		}
		for range p.floor(t) - p.current[t.Name] {
			p.slots = append(p.slots, slot{nodeType: t.Name, free: t.Resources.Clone()})
		}
	}
	p.enforceGlobalCap()

	res := Result{Current: p.current}
	for _, d := range in.Demand {
		pending, infeasible := p.place(d)
		if pending > 0 {
			res.Pending = append(res.Pending, resources.Demand{Resources: d.Resources.Clone(), Count: pending})
		}
		if infeasible > 0 {
			res.Infeasible = append(res.Infeasible, resources.Demand{Resources: d.Resources.Clone(), Count: infeasible})
		}
	}

	res.Unthrottled = cloneCounts(p.targets)
	res.Throttled = p.throttle(running)
	res.Targets = p.targets
	res.Launch = make(map[string]int)
	for _, t := range in.Types {
		if d := p.targets[t.Name] - p.current[t.Name]; d > 0 && !t.IsHead {
			res.Launch[t.Name] = d
		}
	}
	return res
}

func (p *planner) floor(t catalog.NodeTypeSpec) int {
	if t.IsHead {
		return 1
	}
	return min(max(t.MinWorkers, p.in.Floors[t.Name]), t.MaxWorkers)
}

// enforceGlobalCap trims floor-driven targets when min_workers alone exceed
// the global worker cap, dropping from the last declared type first.
func (p *planner) enforceGlobalCap() {
	if p.in.MaxWorkers <= 0 {
		return
	}
	excess := p.workerTotal() - p.in.MaxWorkers
	for i := len(p.in.Types) - 1; i >= 0 && excess > 0; i-- {
		t := p.in.Types[i]
		if t.IsHead {
			continue
		}
		cut := min(excess, p.targets[t.Name]-p.current[t.Name])
		if cut <= 0 {
			continue
		}
		p.targets[t.Name] -= cut
		excess -= cut
		p.dropSlots(t.Name, cut)
	}
}

func (p *planner) dropSlots(nodeType string, n int) {
	for i := len(p.slots) - 1; i >= 0 && n > 0; i-- {
		if p.slots[i].nodeType == nodeType {
			p.slots = append(p.slots[:i], p.slots[i+1:]...)
			n--
		}
	}
}

func (p *planner) workerTotal() int {
	return lo.SumBy(p.in.Types, func(t catalog.NodeTypeSpec) int {
		if t.IsHead {
			return 0
		}
		return p.targets[t.Name]
	})
}

// place assigns the units of d to existing slots and then to new nodes.
// It returns how many units stay pending and how many are infeasible.
func (p *planner) place(d resources.Demand) (pending, infeasible int) {
	remaining := d.Count
	if remaining <= 0 || d.Resources.IsZero() {
		return 0, 0
	}
	if d.Resources.Validate() != nil {
		return 0, remaining
	}

	for i := range p.slots {
		remaining -= p.fill(&p.slots[i], d.Resources, remaining)
		if remaining == 0 {
			return 0, 0
		}
	}

	candidates := p.candidates(d.Resources)
	if len(candidates) == 0 {
		return 0, remaining
	}

	for _, t := range candidates {
		if remaining == 0 {
			break
		}
		room := t.MaxWorkers - p.targets[t.Name]
		if p.in.MaxWorkers > 0 {
			room = min(room, p.in.MaxWorkers-p.workerTotal())
		}
		if room <= 0 {
			continue
		}
		needed := resources.NodesNeeded(t.Resources, d.Resources, remaining)
		add := min(needed, room)
		for range add {
			s := slot{nodeType: t.Name, free: t.Resources.Clone()}
			remaining -= p.fill(&s, d.Resources, remaining)
			p.slots = append(p.slots, s)
		}
		p.targets[t.Name] += add
	}
	return remaining, 0
}

// fill packs up to n copies of request into s and returns how many fit.
func (p *planner) fill(s *slot, request resources.Vector, n int) int {
	fits := min(resources.PerNode(s.free, request), n)
	for range fits {
		s.free.Sub(request)
	}
	return fits
}

// candidates returns the worker types able to hold request, cheapest first.
func (p *planner) candidates(request resources.Vector) []catalog.NodeTypeSpec {
	out := lo.Filter(p.in.Types, func(t catalog.NodeTypeSpec, _ int) bool {
		return !t.IsHead && t.Resources.Fits(request)
	})

	sort.SliceStable(out, func(i, j int) bool {
		ci, cj := effectiveCost(out[i]), effectiveCost(out[j])
		if ci != cj {
			return ci < cj
		}
		if p.in.TieBreak != config.TieBreakDeclarationOrder {
			gi := p.targets[out[i].Name] - p.current[out[i].Name]
			gj := p.targets[out[j].Name] - p.current[out[j].Name]
			if gi != gj {
				return gi < gj
			}
		}
		return out[i].Order < out[j].Order
	})
	return out
}

func effectiveCost(t catalog.NodeTypeSpec) float64 {
	if !t.HasCost {
		return math.Inf(1)
	}
	return t.Cost
}

// throttle caps the total increase at max(1, floor(speed * running)),
// scaling every type's increase down proportionally. Leftover units go to
// types in priority order.
func (p *planner) throttle(running int) bool {
	order := p.priority()
	increase := make(map[string]int, len(order))
	total := 0
	for _, t := range order {
		if d := p.targets[t.Name] - p.current[t.Name]; d > 0 {
			increase[t.Name] = d
			total += d
		}
	}

	limit := max(1, int(math.Floor(p.in.UpscalingSpeed*float64(running))))
	if total <= limit {
		return false
	}

	granted := make(map[string]int, len(increase))
	left := limit
	for _, t := range order {
		g := increase[t.Name] * limit / total
		granted[t.Name] = g
		left -= g
	}
	for left > 0 {
		progressed := false
		for _, t := range order {
			if left == 0 {
				break
			}
			if granted[t.Name] < increase[t.Name] {
				granted[t.Name]++
				left--
				progressed = true
			}
		}
		if !progressed {
			break
		}
	}

	for name, inc := range increase {
		p.targets[name] -= inc - granted[name]
	}
	return true
}

// priority orders worker types by cost, then declaration.
func (p *planner) priority() []catalog.NodeTypeSpec {
	out := lo.Filter(p.in.Types, func(t catalog.NodeTypeSpec, _ int) bool { return !t.IsHead })
	sort.SliceStable(out, func(i, j int) bool {
		ci, cj := effectiveCost(out[i]), effectiveCost(out[j])
		if ci != cj {
			return ci < cj
		}
		return out[i].Order < out[j].Order
	})
	return out
}

func cloneCounts(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
