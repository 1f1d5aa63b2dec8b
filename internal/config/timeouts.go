package config

import (
	"os"
	"strconv"
	"time"
)

// Timeouts holds the operational constants resolved to durations.
// Document values are the base; environment variables override them.
type Timeouts struct {
	UpdateInterval        time.Duration // Reconcile tick interval
	HeartbeatTimeout      time.Duration // 0 disables heartbeat checks
	DemandFreshness       time.Duration // Age after which reported demand is dropped
	Reachable             time.Duration // Maximum wait for a new node to become reachable
	Command               time.Duration // Timeout of a single setup/start/stop command
	MaxLaunchBatch        int           // Maximum nodes per create call
	MaxConcurrentLaunches int           // Size of the dispatch pool
	MaxFailures           int           // Consecutive failed ticks before the loop stops
	TerminationRetries    int           // Provider remove retries before escalating
	RetryInitialDelay     time.Duration // Initial backoff for provider calls and reachability polls
	RetryMaxAttempts      int           // Attempts for transient provider errors
}

// LoadTimeouts resolves ops to durations and applies environment overrides.
// If an environment variable is not set or invalid, the document value is used.
//
// Environment Variables:
//   - CLUSTERSCALER_UPDATE_INTERVAL (duration)
//   - CLUSTERSCALER_HEARTBEAT_TIMEOUT (duration)
//   - CLUSTERSCALER_DEMAND_FRESHNESS (duration)
//   - CLUSTERSCALER_REACHABLE_TIMEOUT (duration)
//   - CLUSTERSCALER_COMMAND_TIMEOUT (duration)
//   - CLUSTERSCALER_MAX_LAUNCH_BATCH
//   - CLUSTERSCALER_MAX_CONCURRENT_LAUNCHES
//   - CLUSTERSCALER_MAX_FAILURES
//   - CLUSTERSCALER_TERMINATION_RETRIES
//   - CLUSTERSCALER_RETRY_INITIAL_DELAY (default: 1s)
//   - CLUSTERSCALER_RETRY_MAX_ATTEMPTS (default: 5)
func LoadTimeouts(ops Operations) *Timeouts {
	return &Timeouts{
		UpdateInterval:        parseDuration("CLUSTERSCALER_UPDATE_INTERVAL", seconds(ops.UpdateIntervalSeconds)),
		HeartbeatTimeout:      parseDuration("CLUSTERSCALER_HEARTBEAT_TIMEOUT", seconds(ops.HeartbeatTimeoutSeconds)),
		DemandFreshness:       parseDuration("CLUSTERSCALER_DEMAND_FRESHNESS", seconds(ops.DemandFreshnessSeconds)),
		Reachable:             parseDuration("CLUSTERSCALER_REACHABLE_TIMEOUT", seconds(ops.ReachableTimeoutSeconds)),
		Command:               parseDuration("CLUSTERSCALER_COMMAND_TIMEOUT", seconds(ops.CommandTimeoutSeconds)),
		MaxLaunchBatch:        parseInt("CLUSTERSCALER_MAX_LAUNCH_BATCH", ops.MaxLaunchBatch),
		MaxConcurrentLaunches: parseInt("CLUSTERSCALER_MAX_CONCURRENT_LAUNCHES", ops.MaxConcurrentLaunches),
		MaxFailures:           parseInt("CLUSTERSCALER_MAX_FAILURES", ops.MaxFailures),
		TerminationRetries:    parseInt("CLUSTERSCALER_TERMINATION_RETRIES", ops.TerminationRetries),
		RetryInitialDelay:     parseDuration("CLUSTERSCALER_RETRY_INITIAL_DELAY", 1*time.Second),
		RetryMaxAttempts:      parseInt("CLUSTERSCALER_RETRY_MAX_ATTEMPTS", 5),
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// parseDuration parses a duration from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}

	return d
}

// parseInt parses an integer from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseInt(envVar string, defaultVal int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return i
}
