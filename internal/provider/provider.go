package provider

import (
	"context"
	"time"
)

// Node is a node as reported by the provider.
type Node struct {
	ID   string
	Name string
	Tags map[string]string
	// Running is false for nodes the provider reports as stopping or gone.
	Running bool
	Address string
}

// LaunchRequest asks the provider to create Count nodes of one type.
type LaunchRequest struct {
	NodeType string
	// Template is the provider-opaque launch template (node_config).
	Template map[string]any
	Tags     map[string]string
	Count    int
}

// CommandResult is the outcome of a remote command.
type CommandResult struct {
	ExitCode int
	Output   string
}

// Provider is the capability set every backend implements.
type Provider interface {
	// ListNodes returns non-terminated nodes whose tags contain filter.
	ListNodes(ctx context.Context, filter map[string]string) ([]Node, error)
	// CreateNodes requests nodes and returns their ids. The nodes may not
	// be reachable yet.
	CreateNodes(ctx context.Context, req LaunchRequest) ([]string, error)
	// TerminateNode removes a node. Terminating a missing node succeeds.
	TerminateNode(ctx context.Context, id string) error
	// SetNodeTags merges tags into the node's tags.
	SetNodeTags(ctx context.Context, id string, tags map[string]string) error
	// RunCommand runs a shell command on the node. A non-zero exit code is
	// reported in the result, not as an error.
	RunCommand(ctx context.Context, id, command string, timeout time.Duration) (CommandResult, error)
	// IsRunning reports whether the node exists and is running.
	IsRunning(ctx context.Context, id string) (bool, error)
}
