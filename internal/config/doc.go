// Package config loads and validates the cluster document that drives the
// autoscaler.
//
// The [Config] struct is the fully merged ClusterConfig: node-type catalog,
// upscaling speed, idle timeout, provider descriptor and operational
// constants. It is loaded once per reconciliation session and treated as
// immutable afterwards; a changed document starts a new session.
//
// Validation failures are reported as [*ConfigError], which callers treat
// as fatal.
package config
