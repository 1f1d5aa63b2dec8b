package config

import (
	"fmt"

	"github.com/imamik/clusterscaler/internal/resources"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFilename is the default configuration filename.
const DefaultConfigFilename = "cluster.yaml"

// TieBreak selects between node types that satisfy a demand at equal cost.
type TieBreak string

const (
	// TieBreakClosestToTarget prefers the type whose current count is
	// closest to its target.
	TieBreakClosestToTarget TieBreak = "closest_to_target"
	// TieBreakDeclarationOrder prefers the type declared first.
	TieBreakDeclarationOrder TieBreak = "declaration_order"
)

// Config is the cluster document.
type Config struct {
	ClusterName        string         `yaml:"cluster_name"`
	UpscalingSpeed     float64        `yaml:"upscaling_speed"`
	IdleTimeoutMinutes int            `yaml:"idle_timeout_minutes"`
	MaxWorkers         int            `yaml:"max_workers,omitempty"` // 0 = unbounded
	TieBreak           TieBreak       `yaml:"tie_break,omitempty"`
	HeadNodeType       string         `yaml:"head_node_type"`
	Provider           ProviderConfig `yaml:"provider"`
	AvailableNodeTypes NodeTypes      `yaml:"available_node_types"`
	Operations         Operations     `yaml:"operations"`
}

// ProviderConfig selects the node provider. Options holds the
// provider-specific keys; backends decode them with [ProviderConfig.Decode].
type ProviderConfig struct {
	Type    string         `yaml:"type"`
	Options map[string]any `yaml:",inline"`
}

// NodeTypeConfig is one entry of available_node_types.
type NodeTypeConfig struct {
	Name          string           `yaml:"-"`
	Resources     resources.Vector `yaml:"resources"`
	NodeConfig    map[string]any   `yaml:"node_config,omitempty"`
	SetupCommands []string         `yaml:"setup_commands,omitempty"`
	StartCommands []string         `yaml:"start_commands,omitempty"`
	StopCommands  []string         `yaml:"stop_commands,omitempty"`
	MinWorkers    *int             `yaml:"min_workers,omitempty"`
	MaxWorkers    *int             `yaml:"max_workers,omitempty"`
	Cost          *float64         `yaml:"cost,omitempty"`
}

// NodeTypes keeps node types in declaration order, which the scheduler uses
// for first-fit selection.
type NodeTypes []NodeTypeConfig

// UnmarshalYAML decodes a mapping of name to node type, preserving order.
func (n *NodeTypes) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: available_node_types must be a mapping", value.Line)
	}
	out := make(NodeTypes, 0, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		var nt NodeTypeConfig
		if err := value.Content[i+1].Decode(&nt); err != nil {
			return fmt.Errorf("node type %q: %w", value.Content[i].Value, err)
		}
		nt.Name = value.Content[i].Value
		out = append(out, nt)
	}
	*n = out
	return nil
}

// MarshalYAML encodes node types back into an ordered mapping.
func (n NodeTypes) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, nt := range n {
		var val yaml.Node
		if err := val.Encode(nt); err != nil {
			return nil, err
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: nt.Name},
			&val,
		)
	}
	return node, nil
}

// Get returns the node type with the given name.
func (n NodeTypes) Get(name string) (NodeTypeConfig, bool) {
	for _, nt := range n {
		if nt.Name == name {
			return nt, true
		}
	}
	return NodeTypeConfig{}, false
}

// Operations holds the operational constants of the reconcile loop.
type Operations struct {
	UpdateIntervalSeconds   int `yaml:"update_interval_seconds"`
	MaxLaunchBatch          int `yaml:"max_launch_batch"`
	MaxConcurrentLaunches   int `yaml:"max_concurrent_launches"`
	MaxFailures             int `yaml:"max_failures"`
	HeartbeatTimeoutSeconds int `yaml:"heartbeat_timeout_seconds"` // 0 disables heartbeat checks
	DemandFreshnessSeconds  int `yaml:"demand_freshness_seconds"`
	ReachableTimeoutSeconds int `yaml:"reachable_timeout_seconds"`
	CommandTimeoutSeconds   int `yaml:"command_timeout_seconds"`
	TerminationRetries      int `yaml:"termination_retries"`
}
