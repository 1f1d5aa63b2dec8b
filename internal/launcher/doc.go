// Package launcher runs the per-node workflows of the reconciler.
//
// Provision waits for a freshly created node to become reachable, then runs
// its setup commands followed by its start commands, strictly in declared
// order. Cancellation is honoured between commands, never mid-command. Any
// failure is final for the node: the caller tears it down and launches a
// replacement instead of retrying a half-configured machine.
//
// Terminate runs the stop commands best-effort and removes the node from
// the provider, retrying removal a bounded number of times.
package launcher
