// Package async provides utilities for concurrent task execution.
//
// [RunParallel] runs a fixed set of tasks and collects their errors.
// [Pool] is a long-lived, bounded worker pool: submitting never blocks the
// caller, and at most the configured number of tasks run at once. The
// reconciler dispatches node launches and terminations through a Pool so
// provider API load and SSH fan-out stay capped.
package async
