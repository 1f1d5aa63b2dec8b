package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadTimeouts_FromOperations(t *testing.T) {
	t.Setenv("CLUSTERSCALER_UPDATE_INTERVAL", "")
	t.Setenv("CLUSTERSCALER_MAX_LAUNCH_BATCH", "")

	timeouts := LoadTimeouts(DefaultOperations())

	assert.Equal(t, 5*time.Second, timeouts.UpdateInterval)
	assert.Equal(t, time.Duration(0), timeouts.HeartbeatTimeout)
	assert.Equal(t, 30*time.Second, timeouts.DemandFreshness)
	assert.Equal(t, 10*time.Minute, timeouts.Reachable)
	assert.Equal(t, 30*time.Minute, timeouts.Command)
	assert.Equal(t, 5, timeouts.MaxLaunchBatch)
	assert.Equal(t, 10, timeouts.MaxConcurrentLaunches)
	assert.Equal(t, 5, timeouts.MaxFailures)
	assert.Equal(t, 3, timeouts.TerminationRetries)
}

func TestLoadTimeouts_EnvOverrides(t *testing.T) {
	t.Setenv("CLUSTERSCALER_UPDATE_INTERVAL", "250ms")
	t.Setenv("CLUSTERSCALER_MAX_LAUNCH_BATCH", "7")
	t.Setenv("CLUSTERSCALER_HEARTBEAT_TIMEOUT", "1m")

	timeouts := LoadTimeouts(DefaultOperations())

	assert.Equal(t, 250*time.Millisecond, timeouts.UpdateInterval)
	assert.Equal(t, 7, timeouts.MaxLaunchBatch)
	assert.Equal(t, time.Minute, timeouts.HeartbeatTimeout)
}

func TestLoadTimeouts_InvalidEnvFallsBack(t *testing.T) {
	t.Setenv("CLUSTERSCALER_UPDATE_INTERVAL", "soon")
	t.Setenv("CLUSTERSCALER_MAX_FAILURES", "many")

	timeouts := LoadTimeouts(DefaultOperations())

	assert.Equal(t, 5*time.Second, timeouts.UpdateInterval)
	assert.Equal(t, 5, timeouts.MaxFailures)
}
