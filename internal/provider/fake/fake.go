// Package fake is an in-memory node provider. It backs the "fake" provider
// type for dry runs and is the provider used by reconciler and launcher
// tests. Hooks let tests inject failures.
package fake

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/imamik/clusterscaler/internal/config"
	"github.com/imamik/clusterscaler/internal/provider"
	"github.com/imamik/clusterscaler/internal/util/labels"
)

// Options are the provider-specific keys of the "fake" provider type.
type Options struct {
	// ReachableAfter is the number of IsRunning polls that report false
	// before a new node becomes reachable.
	ReachableAfter int `mapstructure:"reachable_after"`
	// FailCommands lists substrings; commands containing one exit with 1.
	FailCommands []string `mapstructure:"fail_commands"`
}

type node struct {
	id       string
	tags     map[string]string
	polls    int
	commands []string
}

// Provider is safe for concurrent use.
type Provider struct {
	mu     sync.Mutex
	nodes  map[string]*node
	seq    int
	opts   Options
	counts map[string]int

	// OnCreate, when set, is called before nodes are created.
	OnCreate func(req provider.LaunchRequest) error
	// OnCommand, when set, decides the outcome of every command. It runs on
	// its own goroutine so RunCommand returns as soon as ctx is done.
	OnCommand func(id, command string) (provider.CommandResult, error)
	// OnTerminate, when set, is called before a node is removed.
	OnTerminate func(id string) error
	// OnList, when set, is called before nodes are listed.
	OnList func() error
}

var _ provider.Provider = (*Provider)(nil)

// New returns an empty fake provider.
func New(opts Options) *Provider {
	return &Provider{nodes: make(map[string]*node), opts: opts, counts: make(map[string]int)}
}

// Factory builds a fake provider from the cluster document.
func Factory(_ context.Context, cfg *config.Config) (provider.Provider, error) {
	var opts Options
	if err := cfg.Provider.Decode(&opts); err != nil {
		return nil, err
	}
	return New(opts), nil
}

func (p *Provider) ListNodes(_ context.Context, filter map[string]string) ([]provider.Node, error) {
	p.track("ListNodes")
	if p.OnList != nil {
		if err := p.OnList(); err != nil {
			return nil, err
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]provider.Node, 0, len(p.nodes))
	for _, n := range p.nodes {
		if labels.Matches(n.tags, filter) {
			out = append(out, p.view(n))
		}
	}
	sort.Slice(out, func(i, j int) bool { return idLess(out[i].ID, out[j].ID) })
	return out, nil
}

func (p *Provider) CreateNodes(_ context.Context, req provider.LaunchRequest) ([]string, error) {
	p.track("CreateNodes")
	if p.OnCreate != nil {
		if err := p.OnCreate(req); err != nil {
			return nil, err
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0, req.Count)
	for range req.Count {
		p.seq++
		id := fmt.Sprintf("fake-%d", p.seq)
		p.nodes[id] = &node{id: id, tags: cloneTags(req.Tags)}
		ids = append(ids, id)
	}
	return ids, nil
}

func (p *Provider) TerminateNode(_ context.Context, id string) error {
	p.track("TerminateNode")
	if p.OnTerminate != nil {
		if err := p.OnTerminate(id); err != nil {
			return err
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.nodes, id)
	return nil
}

func (p *Provider) SetNodeTags(_ context.Context, id string, tags map[string]string) error {
	p.track("SetNodeTags")
	p.mu.Lock()
	defer p.mu.Unlock()
	n, ok := p.nodes[id]
	if !ok {
		return fmt.Errorf("set tags on %s: %w", id, provider.ErrNotFound)
	}
	maps.Copy(n.tags, tags)
	return nil
}

func (p *Provider) RunCommand(ctx context.Context, id, command string, _ time.Duration) (provider.CommandResult, error) {
	p.track("RunCommand")
	if err := ctx.Err(); err != nil {
		return provider.CommandResult{}, err
	}

	p.mu.Lock()
	n, ok := p.nodes[id]
	if ok {
		n.commands = append(n.commands, command)
	}
	p.mu.Unlock()
	if !ok {
		return provider.CommandResult{}, fmt.Errorf("run command on %s: %w", id, provider.ErrNotFound)
	}

	if p.OnCommand != nil {
		type outcome struct {
			res provider.CommandResult
			err error
		}
		done := make(chan outcome, 1)
		go func() {
			res, err := p.OnCommand(id, command)
			done <- outcome{res, err}
		}()
		// Like a remote exec, a cancelled ctx abandons the running command.
		select {
		case o := <-done:
			return o.res, o.err
		case <-ctx.Done():
			return provider.CommandResult{}, ctx.Err()
		}
	}
	for _, fail := range p.opts.FailCommands {
		if fail != "" && strings.Contains(command, fail) {
			return provider.CommandResult{ExitCode: 1, Output: "command failed: " + command}, nil
		}
	}
	return provider.CommandResult{Output: "ok"}, nil
}

func (p *Provider) IsRunning(_ context.Context, id string) (bool, error) {
	p.track("IsRunning")
	p.mu.Lock()
	defer p.mu.Unlock()
	n, ok := p.nodes[id]
	if !ok {
		return false, nil
	}
	n.polls++
	return n.polls > p.opts.ReachableAfter, nil
}

// AddNode inserts a node directly, as if created outside the reconciler.
func (p *Provider) AddNode(tags map[string]string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	id := fmt.Sprintf("fake-%d", p.seq)
	p.nodes[id] = &node{id: id, tags: cloneTags(tags), polls: p.opts.ReachableAfter}
	return id
}

// Remove deletes a node behind the reconciler's back.
func (p *Provider) Remove(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.nodes, id)
}

// Node returns the provider view of one node.
func (p *Provider) Node(id string) (provider.Node, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n, ok := p.nodes[id]
	if !ok {
		return provider.Node{}, false
	}
	return p.view(n), true
}

// Count returns how many nodes exist, optionally only those matching filter.
func (p *Provider) Count(filter map[string]string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := 0
	for _, n := range p.nodes {
		if labels.Matches(n.tags, filter) {
			c++
		}
	}
	return c
}

// Commands returns the commands run on a node, in order.
func (p *Provider) Commands(id string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n, ok := p.nodes[id]; ok {
		return append([]string(nil), n.commands...)
	}
	return nil
}

// Calls returns how often a method was called.
func (p *Provider) Calls(method string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counts[method]
}

func (p *Provider) track(method string) {
	p.mu.Lock()
	p.counts[method]++
	p.mu.Unlock()
}

func (p *Provider) view(n *node) provider.Node {
	return provider.Node{
		ID:      n.id,
		Name:    n.id,
		Tags:    maps.Clone(n.tags),
		Running: true,
		Address: "127.0.0.1",
	}
}

func cloneTags(tags map[string]string) map[string]string {
	out := make(map[string]string, len(tags))
	maps.Copy(out, tags)
	return out
}

// idLess orders "fake-2" before "fake-10".
func idLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}
