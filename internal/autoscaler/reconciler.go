package autoscaler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"k8s.io/utils/clock"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/imamik/clusterscaler/internal/catalog"
	"github.com/imamik/clusterscaler/internal/config"
	"github.com/imamik/clusterscaler/internal/launcher"
	"github.com/imamik/clusterscaler/internal/loadmetrics"
	"github.com/imamik/clusterscaler/internal/provider"
	"github.com/imamik/clusterscaler/internal/state"
	"github.com/imamik/clusterscaler/internal/util/async"
)

const (
	failureHistory        = 20
	defaultUpdateInterval = 5 * time.Second
)

// Options wires a Reconciler. Config, Catalog and Provider are required.
type Options struct {
	Config   *config.Config
	Catalog  *catalog.Catalog
	Provider provider.Provider

	// Store defaults to an empty in-memory store.
	Store *state.MemoryStore
	// Persister, when set, seeds the store on the first tick and receives a
	// snapshot after every tick.
	Persister state.Persister
	// Collector defaults to a collector on Clock.
	Collector *loadmetrics.Collector
	// Clock defaults to the real clock.
	Clock clock.WithTicker
	// Timeouts defaults to config.LoadTimeouts(Config.Operations).
	Timeouts *config.Timeouts
	// Launcher overrides the launcher built from Provider and Timeouts.
	Launcher *launcher.Launcher
}

type outcomeKind int

const (
	outcomeCreated outcomeKind = iota
	outcomeStatus
	outcomeFailed
	outcomeTerminated
)

// outcome is a workflow result waiting for the next tick.
type outcome struct {
	kind     outcomeKind
	nodeID   string
	nodeType string
	status   state.Status
	reason   string
	at       time.Time
}

// workflow is an in-flight provisioning workflow.
type workflow struct {
	nodeType string
	cancel   context.CancelFunc
	done     chan struct{}
}

// Reconciler is the cluster autoscaling control loop. ReconcileOnce, Run,
// RequestScale and Summary are safe for concurrent use; ticks never overlap.
type Reconciler struct {
	cfg       *config.Config
	catalog   *catalog.Catalog
	provider  provider.Provider
	store     *state.MemoryStore
	persister state.Persister
	collector *loadmetrics.Collector
	clock     clock.WithTicker
	timeouts  *config.Timeouts
	launcher  *launcher.Launcher
	pool      *async.Pool

	workCtx  context.Context
	stopWork context.CancelFunc
	kick     chan struct{}

	tickMu sync.Mutex
	seeded bool

	mu          sync.Mutex
	pending     map[string]int
	workflows   map[string]*workflow
	terminating map[string]bool
	outcomes    []outcome
	floors      map[string]int
	scaleDown   map[string]int
	failures    []Failure
	last        Decision
	lastTick    time.Time
	failedTicks int
}

// New builds a reconciler. It performs no I/O.
func New(opts Options) (*Reconciler, error) {
	if opts.Config == nil || opts.Catalog == nil || opts.Provider == nil {
		return nil, errors.New("config, catalog and provider are required")
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Timeouts == nil {
		opts.Timeouts = config.LoadTimeouts(opts.Config.Operations)
	}
	if opts.Store == nil {
		opts.Store = state.NewMemoryStore()
	}
	if opts.Collector == nil {
		opts.Collector = loadmetrics.NewCollector(opts.Clock, opts.Timeouts.DemandFreshness)
	}
	if opts.Launcher == nil {
		opts.Launcher = launcher.New(opts.Provider, launcher.Config{
			ClusterName:        opts.Config.ClusterName,
			ReachableTimeout:   opts.Timeouts.Reachable,
			CommandTimeout:     opts.Timeouts.Command,
			ProbeCommand:       launcher.DefaultProbeCommand,
			PollInitialDelay:   opts.Timeouts.RetryInitialDelay,
			TerminationRetries: opts.Timeouts.TerminationRetries,
			RetryInitialDelay:  opts.Timeouts.RetryInitialDelay,
		})
	}

	workCtx, stop := context.WithCancel(context.Background())
	return &Reconciler{
		cfg:         opts.Config,
		catalog:     opts.Catalog,
		provider:    opts.Provider,
		store:       opts.Store,
		persister:   opts.Persister,
		collector:   opts.Collector,
		clock:       opts.Clock,
		timeouts:    opts.Timeouts,
		launcher:    opts.Launcher,
		pool:        async.NewPool(opts.Timeouts.MaxConcurrentLaunches),
		workCtx:     workCtx,
		stopWork:    stop,
		kick:        make(chan struct{}, 1),
		pending:     make(map[string]int),
		workflows:   make(map[string]*workflow),
		terminating: make(map[string]bool),
		floors:      make(map[string]int),
		scaleDown:   make(map[string]int),
	}, nil
}

// Store returns the state store. Callers must treat it as read-only.
func (r *Reconciler) Store() *state.MemoryStore {
	return r.store
}

// Collector returns the load metrics collector that node reports go to.
func (r *Reconciler) Collector() *loadmetrics.Collector {
	return r.collector
}

// ReconcileOnce runs one tick: observe, plan and dispatch. Dispatched
// workflows keep running after it returns; use Wait to block on them.
func (r *Reconciler) ReconcileOnce(ctx context.Context) (Decision, error) {
	r.tickMu.Lock()
	defer r.tickMu.Unlock()

	logger := log.FromContext(ctx).WithValues("cluster", r.cfg.ClusterName)
	ctx = log.IntoContext(ctx, logger)

	start := r.clock.Now()
	decision, err := r.tick(ctx, start)
	duration := r.clock.Since(start).Seconds()

	r.mu.Lock()
	r.lastTick = start
	if err != nil {
		r.failedTicks++
	} else {
		r.failedTicks = 0
		r.last = decision
	}
	r.mu.Unlock()

	if err != nil {
		recordTick(r.cfg.ClusterName, "error", duration)
		return decision, err
	}
	recordTick(r.cfg.ClusterName, "success", duration)
	if !decision.Empty() {
		logger.Info("reconciled", "actions", len(decision.Actions), "launches", decision.Launches(), "terminations", len(decision.Terminations()))
	} else {
		logger.V(1).Info("reconciled, nothing to do")
	}
	return decision, nil
}

func (r *Reconciler) tick(ctx context.Context, now time.Time) (Decision, error) {
	if err := r.seed(ctx); err != nil {
		return Decision{}, err
	}

	outs, busy := r.drain()
	r.applyOutcomes(ctx, outs)
	if err := r.refresh(ctx, now, busy); err != nil {
		return Decision{}, err
	}

	snap := r.collector.Snapshot()
	r.mergeLoad(snap)
	r.updateIdle(now)

	p := r.newPlan(ctx, now)
	p.enforceConstraints()
	p.manualScaleDown()
	p.evictLostContact()
	p.evictIdle()
	res := p.schedule(snap.Demand)
	decision := p.decide(res)

	r.dispatch(ctx, decision)
	r.persist(ctx, now)
	r.observe(res)
	return decision, nil
}

// Trigger asks Run for an immediate tick. Requests coalesce.
func (r *Reconciler) Trigger() {
	select {
	case r.kick <- struct{}{}:
	default:
	}
}

// Run ticks every update interval until ctx is cancelled. It returns a
// configuration error at once and gives up after max_failures consecutive
// failed ticks.
func (r *Reconciler) Run(ctx context.Context) error {
	logger := log.FromContext(ctx).WithValues("cluster", r.cfg.ClusterName)

	interval := r.timeouts.UpdateInterval
	if interval <= 0 {
		interval = defaultUpdateInterval
	}
	ticker := r.clock.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("starting reconcile loop", "interval", interval, "provider", r.cfg.Provider.Type)
	failures := 0
	for {
		if _, err := r.ReconcileOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if config.IsConfigError(err) {
				return err
			}
			failures++
			logger.Error(err, "reconcile tick failed", "consecutiveFailures", failures, "maxFailures", r.timeouts.MaxFailures)
			if failures >= max(1, r.timeouts.MaxFailures) {
				return fmt.Errorf("stopping after %d consecutive failed ticks: %w", failures, err)
			}
		} else {
			failures = 0
		}

		select {
		case <-ctx.Done():
			logger.Info("reconcile loop stopped")
			return nil
		case <-ticker.C():
		case <-r.kick:
		}
	}
}

// Wait blocks until every dispatched workflow has finished.
func (r *Reconciler) Wait() {
	r.pool.Wait()
}

// Stop cancels in-flight workflows. Provisioning stops at the next
// checkpoint; the nodes are replaced or adopted by the next session.
func (r *Reconciler) Stop() {
	r.stopWork()
}

func (r *Reconciler) seed(ctx context.Context) error {
	if r.seeded || r.persister == nil {
		return nil
	}
	if err := state.Seed(ctx, r.store, r.persister); err != nil {
		return err
	}
	r.seeded = true
	log.FromContext(ctx).Info("restored state snapshot", "nodes", r.store.Len())
	return nil
}

func (r *Reconciler) persist(ctx context.Context, now time.Time) {
	if r.persister == nil {
		return
	}
	if err := r.persister.Save(ctx, r.store.Snapshot(r.cfg.ClusterName, now)); err != nil {
		log.FromContext(ctx).Error(err, "failed to save state snapshot")
	}
}

// drain takes the queued outcomes together with the ids that have a
// workflow in flight. Both are read under one lock so a workflow that
// finishes concurrently is seen either as busy or through its outcome.
func (r *Reconciler) drain() ([]outcome, map[string]bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	outs := r.outcomes
	r.outcomes = nil
	busy := make(map[string]bool, len(r.workflows)+len(r.terminating))
	for id := range r.workflows {
		busy[id] = true
	}
	for id := range r.terminating {
		busy[id] = true
	}
	return outs, busy
}

func (r *Reconciler) push(o outcome) {
	r.mu.Lock()
	r.outcomes = append(r.outcomes, o)
	r.mu.Unlock()
}

func (r *Reconciler) recordFailure(f Failure) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, f)
	if len(r.failures) > failureHistory {
		r.failures = r.failures[len(r.failures)-failureHistory:]
	}
}

// spec resolves a node type. Unknown types get a bare spec with no stop
// commands.
func (r *Reconciler) spec(nodeType string) catalog.NodeTypeSpec {
	spec, err := r.catalog.Resolve(nodeType)
	if err != nil {
		return catalog.NodeTypeSpec{Name: nodeType}
	}
	return spec
}
