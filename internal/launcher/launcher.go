package launcher

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/imamik/clusterscaler/internal/catalog"
	"github.com/imamik/clusterscaler/internal/provider"
	"github.com/imamik/clusterscaler/internal/state"
	"github.com/imamik/clusterscaler/internal/util/labels"
	"github.com/imamik/clusterscaler/internal/util/retry"
)

const (
	// DefaultProbeCommand is run once a node reports running, to confirm it
	// accepts commands.
	DefaultProbeCommand = "true"

	// maxOutput bounds the command output kept in errors and logs.
	maxOutput = 4096

	tagTimeout = 30 * time.Second
)

// errNotReady is returned by a reachability poll that should be repeated.
var errNotReady = errors.New("node not ready")

// Config controls the node workflows.
type Config struct {
	ClusterName      string
	ReachableTimeout time.Duration
	CommandTimeout   time.Duration
	// ProbeCommand is run to confirm reachability. Empty skips the probe.
	ProbeCommand       string
	PollInitialDelay   time.Duration
	PollMaxDelay       time.Duration
	TerminationRetries int
	RetryInitialDelay  time.Duration
}

// Launcher is safe for concurrent use. Every workflow runs on the caller's
// goroutine.
type Launcher struct {
	provider provider.Provider
	cfg      Config
}

// New returns a launcher driving p.
func New(p provider.Provider, cfg Config) *Launcher {
	if cfg.PollInitialDelay <= 0 {
		cfg.PollInitialDelay = time.Second
	}
	if cfg.PollMaxDelay <= 0 {
		cfg.PollMaxDelay = 15 * time.Second
	}
	if cfg.RetryInitialDelay <= 0 {
		cfg.RetryInitialDelay = time.Second
	}
	return &Launcher{provider: p, cfg: cfg}
}

// Tags returns the provider tags of a new node of type nt.
func (l *Launcher) Tags(nt catalog.NodeTypeSpec) map[string]string {
	role := labels.RoleWorker
	if nt.IsHead {
		role = labels.RoleHead
	}
	return labels.NewLabelBuilder(l.cfg.ClusterName).
		WithRole(role).
		WithNodeType(nt.Name).
		WithStatus(labels.StatusPending).
		WithLaunchHashIfSet(nt.LaunchHash).
		Build()
}

// Create requests count nodes of type nt. On a partial failure the ids of
// the nodes created so far are returned with the error.
func (l *Launcher) Create(ctx context.Context, nt catalog.NodeTypeSpec, count int) ([]string, error) {
	logger := log.FromContext(ctx)

	ids, err := l.provider.CreateNodes(ctx, provider.LaunchRequest{
		NodeType: nt.Name,
		Template: nt.LaunchTemplate,
		Tags:     l.Tags(nt),
		Count:    count,
	})
	if err != nil {
		logger.Error(err, "failed to create nodes", "nodeType", nt.Name, "requested", count, "created", len(ids))
		return ids, fmt.Errorf("failed to create %d %s nodes: %w", count, nt.Name, err)
	}
	logger.Info("created nodes", "nodeType", nt.Name, "count", len(ids), "ids", ids)
	return ids, nil
}

// StatusFunc receives the lifecycle transitions of a workflow.
type StatusFunc func(status state.Status)

// Provision brings a created node to Up: wait until it is reachable, then
// run setup commands and then start commands in order. onStatus is told
// about the Provisioning and Up transitions and may be nil.
//
// A cancelled ctx stops the workflow at the next checkpoint between
// commands and returns the context error.
func (l *Launcher) Provision(ctx context.Context, id string, nt catalog.NodeTypeSpec, onStatus StatusFunc) error {
	logger := log.FromContext(ctx).WithValues("node", id, "nodeType", nt.Name)
	ctx = log.IntoContext(ctx, logger)
	if onStatus == nil {
		onStatus = func(state.Status) {}
	}

	if err := l.waitReachable(ctx, id, nt); err != nil {
		return l.fail(ctx, id, err)
	}

	onStatus(state.StatusProvisioning)
	l.setStatus(ctx, id, labels.StatusProvisioning)
	logger.Info("node reachable, running commands", "setup", len(nt.SetupCommands), "start", len(nt.StartCommands))

	if err := l.runCommands(ctx, id, nt, "setup", nt.SetupCommands); err != nil {
		return l.fail(ctx, id, err)
	}
	if err := l.runCommands(ctx, id, nt, "start", nt.StartCommands); err != nil {
		return l.fail(ctx, id, err)
	}

	l.setStatus(ctx, id, labels.StatusUp)
	onStatus(state.StatusUp)
	logger.Info("node up")
	return nil
}

// Terminate runs the stop commands of nt best-effort and removes the node.
// Removal is retried TerminationRetries times; on exhaustion a
// *TerminationError is returned.
func (l *Launcher) Terminate(ctx context.Context, id string, nt catalog.NodeTypeSpec, reason string) error {
	logger := log.FromContext(ctx).WithValues("node", id, "nodeType", nt.Name)
	ctx = log.IntoContext(ctx, logger)
	logger.Info("terminating node", "reason", reason)

	l.setStatus(ctx, id, labels.StatusTerminating)

	for i, cmd := range nt.StopCommands {
		if ctx.Err() != nil {
			break
		}
		if err := l.run(ctx, id, nt, "stop", i, cmd); err != nil {
			logger.Error(err, "stop command failed, continuing", "step", "stop", "index", i)
		}
	}

	attempts := 0
	err := retry.WithExponentialBackoff(ctx, func() error {
		attempts++
		return l.provider.TerminateNode(ctx, id)
	},
		retry.WithMaxRetries(max(0, l.cfg.TerminationRetries)),
		retry.WithInitialDelay(l.cfg.RetryInitialDelay),
		retry.WithOnRetry(func(attempt int, delay time.Duration, err error) {
			logger.Info("retrying node removal", "attempt", attempt, "delay", delay, "error", err.Error())
		}),
	)
	if err != nil {
		termErr := &TerminationError{NodeID: id, NodeType: nt.Name, Attempts: attempts, Err: err}
		logger.Error(termErr, "node removal failed, keeping record", "step", "terminate")
		return termErr
	}
	logger.Info("node terminated")
	return nil
}

func (l *Launcher) waitReachable(ctx context.Context, id string, nt catalog.NodeTypeSpec) error {
	start := time.Now()
	waitCtx := ctx
	if l.cfg.ReachableTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.cfg.ReachableTimeout)
		defer cancel()
	}

	var last error
	err := retry.WithExponentialBackoff(waitCtx, func() error {
		last = l.probe(waitCtx, id)
		return last
	},
		retry.WithMaxRetries(math.MaxInt32),
		retry.WithInitialDelay(l.cfg.PollInitialDelay),
		retry.WithMaxDelay(l.cfg.PollMaxDelay),
	)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("waiting for node %s: %w", id, ctx.Err())
	}
	if last == nil {
		last = err
	}
	return &UnreachableError{NodeID: id, NodeType: nt.Name, Waited: time.Since(start).Round(time.Second), Err: last}
}

func (l *Launcher) probe(ctx context.Context, id string) error {
	running, err := l.provider.IsRunning(ctx, id)
	if err != nil {
		return err
	}
	if !running {
		return errNotReady
	}
	if l.cfg.ProbeCommand == "" {
		return nil
	}
	res, err := l.provider.RunCommand(ctx, id, l.cfg.ProbeCommand, l.cfg.CommandTimeout)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("%w: probe exited with code %d", errNotReady, res.ExitCode)
	}
	return nil
}

func (l *Launcher) runCommands(ctx context.Context, id string, nt catalog.NodeTypeSpec, step string, commands []string) error {
	for i, cmd := range commands {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("provisioning cancelled before %s command %d: %w", step, i, err)
		}
		if err := l.run(ctx, id, nt, step, i, cmd); err != nil {
			return err
		}
	}
	return nil
}

func (l *Launcher) run(ctx context.Context, id string, nt catalog.NodeTypeSpec, step string, index int, command string) error {
	log.FromContext(ctx).V(1).Info("running command", "step", step, "index", index)

	// A started command is never interrupted by cancellation, only by its
	// timeout. Callers check ctx between commands.
	cmdCtx := context.WithoutCancel(ctx)
	if l.cfg.CommandTimeout > 0 {
		var cancel context.CancelFunc
		cmdCtx, cancel = context.WithTimeout(cmdCtx, l.cfg.CommandTimeout)
		defer cancel()
	}

	res, err := l.provider.RunCommand(cmdCtx, id, command, l.cfg.CommandTimeout)
	if err != nil {
		return &CommandError{
			NodeID: id, NodeType: nt.Name, Step: step, Index: index, Command: command,
			ExitCode: -1, Output: tail(res.Output), Err: err,
		}
	}
	if res.ExitCode != 0 {
		return &CommandError{
			NodeID: id, NodeType: nt.Name, Step: step, Index: index, Command: command,
			ExitCode: res.ExitCode, Output: tail(res.Output),
		}
	}
	return nil
}

// fail logs a provisioning failure and marks the node update-failed. A
// cancelled workflow is not a failure; the node is being terminated.
func (l *Launcher) fail(ctx context.Context, id string, err error) error {
	logger := log.FromContext(ctx)
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		logger.Info("provisioning cancelled", "step", Step(err))
		return err
	}

	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		logger.Error(err, "node command failed",
			"step", cmdErr.Step,
			"index", cmdErr.Index,
			"exitCode", cmdErr.ExitCode,
			"output", cmdErr.Output,
		)
	} else {
		logger.Error(err, "node provisioning failed", "step", Step(err))
	}

	l.setStatus(ctx, id, labels.StatusUpdateFailed)
	return err
}

// setStatus mirrors a lifecycle transition onto the node's tags. Failures
// are logged only; the tag is informational for adoption after a restart.
func (l *Launcher) setStatus(ctx context.Context, id, status string) {
	tagCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), tagTimeout)
	defer cancel()
	if err := l.provider.SetNodeTags(tagCtx, id, map[string]string{labels.KeyStatus: status}); err != nil {
		log.FromContext(ctx).V(1).Info("failed to set status tag", "status", status, "error", err.Error())
	}
}

func tail(s string) string {
	if len(s) <= maxOutput {
		return s
	}
	return "..." + s[len(s)-maxOutput:]
}
