package config

import (
	"math"
	"sort"
	"strings"
)

// Validate checks the document and returns a *ConfigError describing the
// first problem found.
func (c *Config) Validate() error {
	if c.ClusterName == "" {
		return fieldError("cluster_name", "is required")
	}
	if math.IsNaN(c.UpscalingSpeed) || math.IsInf(c.UpscalingSpeed, 0) || c.UpscalingSpeed <= 0 {
		return fieldError("upscaling_speed", "must be greater than 0, got %v", c.UpscalingSpeed)
	}
	if c.IdleTimeoutMinutes < 0 {
		return fieldError("idle_timeout_minutes", "must not be negative, got %d", c.IdleTimeoutMinutes)
	}
	if c.MaxWorkers < 0 {
		return fieldError("max_workers", "must not be negative, got %d", c.MaxWorkers)
	}
	switch c.TieBreak {
	case "", TieBreakClosestToTarget, TieBreakDeclarationOrder:
	default:
		return fieldError("tie_break", "unknown policy %q (valid: %s, %s)", c.TieBreak, TieBreakClosestToTarget, TieBreakDeclarationOrder)
	}

	if err := c.validateProvider(); err != nil {
		return err
	}
	if err := c.validateNodeTypes(); err != nil {
		return err
	}
	return c.Operations.validate()
}

func (c *Config) validateProvider() error {
	if c.Provider.Type == "" {
		return fieldError("provider.type", "is required")
	}
	if !ProviderTypes[c.Provider.Type] {
		valid := make([]string, 0, len(ProviderTypes))
		for t := range ProviderTypes {
			valid = append(valid, t)
		}
		sort.Strings(valid)
		return fieldError("provider.type", "unknown provider %q (valid: %s)", c.Provider.Type, strings.Join(valid, ", "))
	}
	return nil
}

func (c *Config) validateNodeTypes() error {
	if len(c.AvailableNodeTypes) == 0 {
		return fieldError("available_node_types", "at least one node type is required")
	}
	if c.HeadNodeType == "" {
		return fieldError("head_node_type", "is required")
	}

	seen := make(map[string]bool, len(c.AvailableNodeTypes))
	for _, nt := range c.AvailableNodeTypes {
		field := "available_node_types." + nt.Name
		if nt.Name == "" {
			return fieldError("available_node_types", "node type name must not be empty")
		}
		if seen[nt.Name] {
			return fieldError(field, "declared more than once")
		}
		seen[nt.Name] = true

		if err := nt.Resources.Validate(); err != nil {
			return &ConfigError{Field: field + ".resources", Err: err}
		}
		if nt.Cost != nil && (*nt.Cost < 0 || math.IsNaN(*nt.Cost)) {
			return fieldError(field+".cost", "must not be negative, got %v", *nt.Cost)
		}

		isHead := nt.Name == c.HeadNodeType
		if nt.MinWorkers != nil {
			if *nt.MinWorkers < 0 {
				return fieldError(field+".min_workers", "must not be negative, got %d", *nt.MinWorkers)
			}
			if isHead && *nt.MinWorkers != 1 {
				return fieldError(field+".min_workers", "head node type must have exactly 1 node, got %d", *nt.MinWorkers)
			}
		}
		if nt.MaxWorkers != nil {
			if isHead && *nt.MaxWorkers != 1 {
				return fieldError(field+".max_workers", "head node type must have exactly 1 node, got %d", *nt.MaxWorkers)
			}
			if *nt.MaxWorkers < nt.minWorkers() {
				return fieldError(field+".max_workers", "must be >= min_workers (%d), got %d", nt.minWorkers(), *nt.MaxWorkers)
			}
		}
	}

	if !seen[c.HeadNodeType] {
		return fieldError("head_node_type", "references unknown node type %q", c.HeadNodeType)
	}
	return nil
}

func (nt NodeTypeConfig) minWorkers() int {
	if nt.MinWorkers == nil {
		return 0
	}
	return *nt.MinWorkers
}

func (o Operations) validate() error {
	positive := []struct {
		field string
		value int
	}{
		{"update_interval_seconds", o.UpdateIntervalSeconds},
		{"max_launch_batch", o.MaxLaunchBatch},
		{"max_concurrent_launches", o.MaxConcurrentLaunches},
		{"max_failures", o.MaxFailures},
		{"demand_freshness_seconds", o.DemandFreshnessSeconds},
		{"reachable_timeout_seconds", o.ReachableTimeoutSeconds},
		{"command_timeout_seconds", o.CommandTimeoutSeconds},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return fieldError("operations."+p.field, "must be greater than 0, got %d", p.value)
		}
	}
	if o.HeartbeatTimeoutSeconds < 0 {
		return fieldError("operations.heartbeat_timeout_seconds", "must not be negative, got %d", o.HeartbeatTimeoutSeconds)
	}
	if o.TerminationRetries < 0 {
		return fieldError("operations.termination_retries", "must not be negative, got %d", o.TerminationRetries)
	}
	return nil
}
