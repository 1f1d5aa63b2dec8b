package provider

import (
	"context"
	"sync"
	"time"
)

// MockProvider is a mock implementation of Provider for testing.
type MockProvider struct {
	mu sync.Mutex

	// Configurable responses
	ListNodesFunc     func(ctx context.Context, filter map[string]string) ([]Node, error)
	CreateNodesFunc   func(ctx context.Context, req LaunchRequest) ([]string, error)
	TerminateNodeFunc func(ctx context.Context, id string) error
	SetNodeTagsFunc   func(ctx context.Context, id string, tags map[string]string) error
	RunCommandFunc    func(ctx context.Context, id, command string, timeout time.Duration) (CommandResult, error)
	IsRunningFunc     func(ctx context.Context, id string) (bool, error)

	// Call tracking
	ListNodesCalls     int
	CreateNodesCalls   []LaunchRequest
	TerminateNodeCalls []string
	SetNodeTagsCalls   []string
	RunCommandCalls    []string
	IsRunningCalls     []string
}

func (m *MockProvider) ListNodes(ctx context.Context, filter map[string]string) ([]Node, error) {
	m.mu.Lock()
	m.ListNodesCalls++
	m.mu.Unlock()

	if m.ListNodesFunc != nil {
		return m.ListNodesFunc(ctx, filter)
	}
	return nil, nil
}

func (m *MockProvider) CreateNodes(ctx context.Context, req LaunchRequest) ([]string, error) {
	m.mu.Lock()
	m.CreateNodesCalls = append(m.CreateNodesCalls, req)
	m.mu.Unlock()

	if m.CreateNodesFunc != nil {
		return m.CreateNodesFunc(ctx, req)
	}
	return []string{"node-1"}, nil
}

func (m *MockProvider) TerminateNode(ctx context.Context, id string) error {
	m.mu.Lock()
	m.TerminateNodeCalls = append(m.TerminateNodeCalls, id)
	m.mu.Unlock()

	if m.TerminateNodeFunc != nil {
		return m.TerminateNodeFunc(ctx, id)
	}
	return nil
}

func (m *MockProvider) SetNodeTags(ctx context.Context, id string, tags map[string]string) error {
	m.mu.Lock()
	m.SetNodeTagsCalls = append(m.SetNodeTagsCalls, id)
	m.mu.Unlock()

	if m.SetNodeTagsFunc != nil {
		return m.SetNodeTagsFunc(ctx, id, tags)
	}
	return nil
}

func (m *MockProvider) RunCommand(ctx context.Context, id, command string, timeout time.Duration) (CommandResult, error) {
	m.mu.Lock()
	m.RunCommandCalls = append(m.RunCommandCalls, command)
	m.mu.Unlock()

	if m.RunCommandFunc != nil {
		return m.RunCommandFunc(ctx, id, command, timeout)
	}
	return CommandResult{}, nil
}

func (m *MockProvider) IsRunning(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	m.IsRunningCalls = append(m.IsRunningCalls, id)
	m.mu.Unlock()

	if m.IsRunningFunc != nil {
		return m.IsRunningFunc(ctx, id)
	}
	return true, nil
}
