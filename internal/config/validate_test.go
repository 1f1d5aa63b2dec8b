package config

import (
	"errors"
	"testing"

	"github.com/imamik/clusterscaler/internal/resources"
	"github.com/imamik/clusterscaler/internal/util/ptr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := Default()
	cfg.ClusterName = "demo"
	cfg.HeadNodeType = "head"
	cfg.Provider = ProviderConfig{Type: "fake"}
	cfg.AvailableNodeTypes = NodeTypes{
		{Name: "head", Resources: resources.Vector{"CPU": 4}},
		{Name: "worker", Resources: resources.Vector{"CPU": 2}, MinWorkers: ptr.To(1), MaxWorkers: ptr.To(5)},
	}
	return cfg
}

func TestValidate_Valid(t *testing.T) {
	t.Parallel()
	require.NoError(t, validConfig().Validate())
}

func TestValidate_Errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"missing cluster name", func(c *Config) { c.ClusterName = "" }, "cluster_name"},
		{"zero upscaling speed", func(c *Config) { c.UpscalingSpeed = 0 }, "upscaling_speed"},
		{"negative idle timeout", func(c *Config) { c.IdleTimeoutMinutes = -1 }, "idle_timeout_minutes"},
		{"negative global max", func(c *Config) { c.MaxWorkers = -1 }, "max_workers"},
		{"unknown tie break", func(c *Config) { c.TieBreak = "random" }, "tie_break"},
		{"missing provider", func(c *Config) { c.Provider.Type = "" }, "provider.type"},
		{"unknown provider", func(c *Config) { c.Provider.Type = "aws" }, "provider.type"},
		{"no node types", func(c *Config) { c.AvailableNodeTypes = nil }, "available_node_types"},
		{"missing head", func(c *Config) { c.HeadNodeType = "" }, "head_node_type"},
		{"unknown head", func(c *Config) { c.HeadNodeType = "nope" }, "head_node_type"},
		{"duplicate type", func(c *Config) {
			c.AvailableNodeTypes = append(c.AvailableNodeTypes, NodeTypeConfig{Name: "worker"})
		}, "available_node_types.worker"},
		{"negative resource", func(c *Config) {
			c.AvailableNodeTypes[1].Resources = resources.Vector{"CPU": -2}
		}, "available_node_types.worker.resources"},
		{"negative min", func(c *Config) { c.AvailableNodeTypes[1].MinWorkers = ptr.To(-1) }, "available_node_types.worker.min_workers"},
		{"max below min", func(c *Config) { c.AvailableNodeTypes[1].MaxWorkers = ptr.To(0) }, "available_node_types.worker.max_workers"},
		{"head min two", func(c *Config) { c.AvailableNodeTypes[0].MinWorkers = ptr.To(2) }, "available_node_types.head.min_workers"},
		{"head max zero", func(c *Config) { c.AvailableNodeTypes[0].MaxWorkers = ptr.To(0) }, "available_node_types.head.max_workers"},
		{"zero batch", func(c *Config) { c.Operations.MaxLaunchBatch = 0 }, "operations.max_launch_batch"},
		{"negative heartbeat", func(c *Config) { c.Operations.HeartbeatTimeoutSeconds = -1 }, "operations.heartbeat_timeout_seconds"},
		{"negative retries", func(c *Config) { c.Operations.TerminationRetries = -1 }, "operations.termination_retries"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)

			var ce *ConfigError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestValidate_HeadExplicitlyOne(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.AvailableNodeTypes[0].MinWorkers = ptr.To(1)
	cfg.AvailableNodeTypes[0].MaxWorkers = ptr.To(1)
	assert.NoError(t, cfg.Validate())
}

func TestConfigError_Message(t *testing.T) {
	t.Parallel()
	err := fieldError("cluster_name", "is required")
	assert.Equal(t, "invalid configuration: cluster_name: is required", err.Error())
	assert.Equal(t, "invalid configuration: boom", (&ConfigError{Err: errors.New("boom")}).Error())
}
