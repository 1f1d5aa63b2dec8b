// Package labels provides consistent tagging for cluster nodes.
//
// All tags use the clusterscaler.io domain prefix and follow a builder
// pattern for constructing tag sets with cluster name, role, node type,
// lifecycle status and launch hash. The same keys are used by every
// provider backend, so a restarted reconciler can adopt nodes it did not
// launch itself.
package labels
