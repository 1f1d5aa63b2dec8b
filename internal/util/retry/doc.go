// Package retry provides exponential backoff retry logic for transient failures.
//
// [WithExponentialBackoff] retries an operation with configurable max attempts,
// initial delay, and maximum delay. It backs every provider API call the
// reconciler makes, the reachability poll of freshly launched nodes, and the
// bounded termination retries of the node launcher.
package retry
