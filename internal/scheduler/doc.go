// Package scheduler implements the resource demand scheduler: a pure,
// deterministic function from (current nodes, pending demand, node types)
// to target node counts per type.
//
// Targets start at each type's floor (min_workers, possibly raised by a
// manual override). Capacity of nodes that are still launching, and of
// nodes added to reach the floor, absorbs demand first. Remaining demand is
// packed onto the cheapest type that fits, capped at max_workers and the
// optional global worker cap. Finally the total increase is throttled to
// max(1, floor(upscaling_speed * running)) and scaled down proportionally
// in priority order.
package scheduler
