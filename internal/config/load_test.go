package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
cluster_name: demo
upscaling_speed: 2
idle_timeout_minutes: 10
head_node_type: head
provider:
  type: fake
  seed: 3
available_node_types:
  worker.large:
    min_workers: 0
    max_workers: 4
    resources: {CPU: 16}
  head:
    resources: {CPU: 4}
    setup_commands: [echo head]
  worker.small:
    min_workers: 1
    max_workers: 10
    cost: 1
    resources: {CPU: 2, memory: 4}
    node_config:
      server_type: cx22
    setup_commands: [apt-get update]
    start_commands: [systemctl start agent]
    stop_commands: [systemctl stop agent]
operations:
  max_launch_batch: 2
`

func TestLoad_ValidConfig(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), DefaultConfigFilename)
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "demo", cfg.ClusterName)
	assert.Equal(t, 2.0, cfg.UpscalingSpeed)
	assert.Equal(t, 10, cfg.IdleTimeoutMinutes)
	assert.Equal(t, "fake", cfg.Provider.Type)
	assert.Equal(t, 3, cfg.Provider.Options["seed"])
	assert.Equal(t, TieBreakClosestToTarget, cfg.TieBreak)

	names := make([]string, 0, len(cfg.AvailableNodeTypes))
	for _, nt := range cfg.AvailableNodeTypes {
		names = append(names, nt.Name)
	}
	assert.Equal(t, []string{"worker.large", "head", "worker.small"}, names, "declaration order must be kept")

	small, ok := cfg.AvailableNodeTypes.Get("worker.small")
	require.True(t, ok)
	assert.Equal(t, 1, *small.MinWorkers)
	assert.Equal(t, 10, *small.MaxWorkers)
	assert.Equal(t, 1.0, *small.Cost)
	assert.Equal(t, 4.0, small.Resources["memory"])
	assert.Equal(t, []string{"systemctl stop agent"}, small.StopCommands)
	assert.Equal(t, "cx22", small.NodeConfig["server_type"])
}

func TestLoad_OperationDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := LoadFromBytes([]byte(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Operations.MaxLaunchBatch)
	assert.Equal(t, DefaultMaxConcurrentLaunches, cfg.Operations.MaxConcurrentLaunches)
	assert.Equal(t, DefaultMaxFailures, cfg.Operations.MaxFailures)
	assert.Equal(t, DefaultUpdateIntervalSeconds, cfg.Operations.UpdateIntervalSeconds)
	assert.Zero(t, cfg.Operations.HeartbeatTimeoutSeconds)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadFromBytes_InvalidYAML(t *testing.T) {
	t.Parallel()
	_, err := LoadFromBytes([]byte("cluster_name: [unclosed"))
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
}

func TestLoadFromBytes_NodeTypesMustBeMapping(t *testing.T) {
	t.Parallel()
	_, err := LoadFromBytes([]byte("available_node_types: [a, b]"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be a mapping")
}

func TestLoadFromBytes_ValidationFailureIsConfigError(t *testing.T) {
	t.Parallel()
	_, err := LoadFromBytes([]byte("cluster_name: demo\nupscaling_speed: 0\n"))
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
	assert.Contains(t, err.Error(), "upscaling_speed")
}

func TestMarshal_RoundTripKeepsOrder(t *testing.T) {
	t.Parallel()
	cfg, err := LoadFromBytes([]byte(sampleConfig))
	require.NoError(t, err)

	data, err := Marshal(cfg)
	require.NoError(t, err)

	again, err := LoadFromBytes(data)
	require.NoError(t, err)
	assert.Equal(t, cfg.AvailableNodeTypes, again.AvailableNodeTypes)
}

func TestProviderConfig_Decode(t *testing.T) {
	t.Parallel()
	type options struct {
		Token    string `mapstructure:"token"`
		Location string `mapstructure:"location"`
		Replicas int    `mapstructure:"replicas"`
	}

	p := ProviderConfig{Type: "hcloud", Options: map[string]any{
		"token":    "secret",
		"location": "fsn1",
		"replicas": "3",
	}}

	var opts options
	require.NoError(t, p.Decode(&opts))
	assert.Equal(t, options{Token: "secret", Location: "fsn1", Replicas: 3}, opts)
}

func TestProviderConfig_DecodeRejectsUnknownKeys(t *testing.T) {
	t.Parallel()
	p := ProviderConfig{Type: "hcloud", Options: map[string]any{"tokn": "typo"}}

	var opts struct {
		Token string `mapstructure:"token"`
	}
	err := p.Decode(&opts)
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
}
