// Package autoscaler contains the cluster reconciler: the control loop that
// compares the declared node types and the reported resource demand with
// the nodes the provider actually runs, and launches or terminates nodes
// to close the gap.
//
// Every tick is level-triggered and runs observe, plan and dispatch:
//
//  1. apply the outcomes of finished workflows to the state store
//  2. refresh the store from the provider's node list, adopting unknown
//     nodes and dropping nodes that disappeared
//  3. merge load reports, mark idle nodes
//  4. pick nodes to terminate (unknown type, above max_workers, outdated
//     launch template, lost contact, idle, manual scale-down)
//  5. ask the scheduler for target counts and launch the deficit
//  6. dispatch launches and terminations to a bounded worker pool
//
// Only the tick writes the store. Workflows report back through a queue
// that the next tick drains, and in-flight launches are counted so a tick
// never launches the same deficit twice.
package autoscaler
