package provider

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimited caps the rate of provider API calls. Every call, including
// commands, waits for a token.
type RateLimited struct {
	next    Provider
	limiter *rate.Limiter
}

// WithRateLimit wraps p with a token bucket of qps calls per second and the
// given burst. A non-positive qps disables limiting.
func WithRateLimit(p Provider, qps float64, burst int) *RateLimited {
	limit := rate.Limit(qps)
	if qps <= 0 {
		limit = rate.Inf
	}
	return &RateLimited{next: p, limiter: rate.NewLimiter(limit, max(burst, 1))}
}

func (r *RateLimited) wait(ctx context.Context, op string) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return Transient(op, err)
	}
	return nil
}

func (r *RateLimited) ListNodes(ctx context.Context, filter map[string]string) ([]Node, error) {
	if err := r.wait(ctx, "list nodes"); err != nil {
		return nil, err
	}
	return r.next.ListNodes(ctx, filter)
}

func (r *RateLimited) CreateNodes(ctx context.Context, req LaunchRequest) ([]string, error) {
	if err := r.wait(ctx, "create nodes"); err != nil {
		return nil, err
	}
	return r.next.CreateNodes(ctx, req)
}

func (r *RateLimited) TerminateNode(ctx context.Context, id string) error {
	if err := r.wait(ctx, "terminate node"); err != nil {
		return err
	}
	return r.next.TerminateNode(ctx, id)
}

func (r *RateLimited) SetNodeTags(ctx context.Context, id string, tags map[string]string) error {
	if err := r.wait(ctx, "set tags"); err != nil {
		return err
	}
	return r.next.SetNodeTags(ctx, id, tags)
}

func (r *RateLimited) RunCommand(ctx context.Context, id, command string, timeout time.Duration) (CommandResult, error) {
	if err := r.wait(ctx, "run command"); err != nil {
		return CommandResult{}, err
	}
	return r.next.RunCommand(ctx, id, command, timeout)
}

func (r *RateLimited) IsRunning(ctx context.Context, id string) (bool, error) {
	if err := r.wait(ctx, "check node"); err != nil {
		return false, err
	}
	return r.next.IsRunning(ctx, id)
}
