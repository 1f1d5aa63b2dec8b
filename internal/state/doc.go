// Package state holds the cluster state store: the record of every known
// node's identity, node type, tags, lifecycle status and liveness timestamps.
//
// The reconciler is the only writer and mutates the store at tick
// boundaries. Readers (the API server, status rendering) may run
// concurrently and always receive copies, never a record that is half
// written. A [Persister] can save and restore snapshots so a restarted
// reconciler keeps its timestamps.
package state
