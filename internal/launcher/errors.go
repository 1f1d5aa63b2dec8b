package launcher

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// UnreachableError reports a node that never became reachable.
type UnreachableError struct {
	NodeID   string
	NodeType string
	Waited   time.Duration
	Err      error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("node %s (%s) not reachable after %s: %v", e.NodeID, e.NodeType, e.Waited, e.Err)
}

func (e *UnreachableError) Unwrap() error {
	return e.Err
}

// CommandError reports a setup, start or stop command that failed. ExitCode
// is -1 when the command could not be run at all.
type CommandError struct {
	NodeID   string
	NodeType string
	Step     string
	Index    int
	Command  string
	ExitCode int
	Output   string
	Err      error
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s command %d on node %s (%s) failed: %v", e.Step, e.Index, e.NodeID, e.NodeType, e.Err)
	}
	return fmt.Sprintf("%s command %d on node %s (%s) exited with code %d", e.Step, e.Index, e.NodeID, e.NodeType, e.ExitCode)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// TerminationError reports a node the provider failed to remove. The node
// record must be kept so the node is not lost.
type TerminationError struct {
	NodeID   string
	NodeType string
	Attempts int
	Err      error
}

func (e *TerminationError) Error() string {
	return fmt.Sprintf("failed to terminate node %s (%s) after %d attempts: %v", e.NodeID, e.NodeType, e.Attempts, e.Err)
}

func (e *TerminationError) Unwrap() error {
	return e.Err
}

// Step returns the workflow step an error happened in: "reachable",
// "setup", "start", "stop", "terminate", "cancelled" or "create".
func Step(err error) string {
	var unreachable *UnreachableError
	var command *CommandError
	var termination *TerminationError
	switch {
	case errors.As(err, &unreachable):
		return "reachable"
	case errors.As(err, &command):
		return command.Step
	case errors.As(err, &termination):
		return "terminate"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "create"
	}
}
