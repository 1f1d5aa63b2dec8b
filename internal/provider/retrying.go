package provider

import (
	"context"
	"time"

	"github.com/imamik/clusterscaler/internal/util/retry"
)

// Retrying retries transient errors with exponential backoff and escalates
// exhausted retries to *FatalError. Commands are never retried: a partially
// executed user script cannot be assumed idempotent.
type Retrying struct {
	next    Provider
	options []retry.Option
}

// WithRetries wraps p. attempts is the number of retries after the first
// call; initialDelay is the first backoff.
func WithRetries(p Provider, attempts int, initialDelay time.Duration) *Retrying {
	return &Retrying{
		next: p,
		options: []retry.Option{
			retry.WithMaxRetries(attempts),
			retry.WithInitialDelay(initialDelay),
			retry.WithMaxDelay(30 * time.Second),
			retry.WithRetryIf(IsTransient),
		},
	}
}

func (r *Retrying) ListNodes(ctx context.Context, filter map[string]string) ([]Node, error) {
	nodes, err := retry.WithResult(ctx, func() ([]Node, error) {
		return r.next.ListNodes(ctx, filter)
	}, r.options...)
	return nodes, escalate("list nodes", err)
}

func (r *Retrying) CreateNodes(ctx context.Context, req LaunchRequest) ([]string, error) {
	ids, err := retry.WithResult(ctx, func() ([]string, error) {
		return r.next.CreateNodes(ctx, req)
	}, r.options...)
	return ids, escalate("create nodes", err)
}

func (r *Retrying) TerminateNode(ctx context.Context, id string) error {
	err := retry.WithExponentialBackoff(ctx, func() error {
		return r.next.TerminateNode(ctx, id)
	}, r.options...)
	return escalate("terminate node "+id, err)
}

func (r *Retrying) SetNodeTags(ctx context.Context, id string, tags map[string]string) error {
	err := retry.WithExponentialBackoff(ctx, func() error {
		return r.next.SetNodeTags(ctx, id, tags)
	}, r.options...)
	return escalate("set tags on "+id, err)
}

func (r *Retrying) RunCommand(ctx context.Context, id, command string, timeout time.Duration) (CommandResult, error) {
	return r.next.RunCommand(ctx, id, command, timeout)
}

func (r *Retrying) IsRunning(ctx context.Context, id string) (bool, error) {
	running, err := retry.WithResult(ctx, func() (bool, error) {
		return r.next.IsRunning(ctx, id)
	}, r.options...)
	return running, escalate("check node "+id, err)
}

// escalate turns anything that is not already classified into a
// *FatalError. Not-found errors keep their identity.
func escalate(op string, err error) error {
	if err == nil || IsFatal(err) || IsNotFound(err) {
		return err
	}
	return Fatal(op, err)
}
