// Package static is the node provider for a fixed pool of machines, such as
// bare-metal hosts. Creating a node allocates a free host from the pool and
// terminating it releases the host. Tags live in memory.
package static

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/mitchellh/mapstructure"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/imamik/clusterscaler/internal/config"
	"github.com/imamik/clusterscaler/internal/provider"
	"github.com/imamik/clusterscaler/internal/provider/sshrunner"
	"github.com/imamik/clusterscaler/internal/util/labels"
)

// Host is one machine of the pool.
type Host struct {
	Name    string `mapstructure:"name"`
	Address string `mapstructure:"address"`
}

// Options are the provider-specific keys of the "static" provider type.
type Options struct {
	Hosts []Host `mapstructure:"hosts"`

	sshrunner.Options `mapstructure:",squash"`
}

// hostTemplate is the node_config of a static node type. Hosts restricts
// the type to the named hosts; empty means any host.
type hostTemplate struct {
	Hosts []string `mapstructure:"hosts"`
}

// Runner runs commands on and probes a host.
type Runner interface {
	Run(ctx context.Context, host, command string, timeout time.Duration) (provider.CommandResult, error)
	Probe(ctx context.Context, host string) error
}

type allocation struct {
	tags map[string]string
}

// Provider is safe for concurrent use.
type Provider struct {
	runner Runner
	hosts  []Host

	mu        sync.Mutex
	allocated map[string]*allocation
}

var _ provider.Provider = (*Provider)(nil)

// New returns a provider over hosts. Hosts without a name are named after
// their address.
func New(runner Runner, hosts []Host) (*Provider, error) {
	seen := make(map[string]bool, len(hosts))
	pool := make([]Host, 0, len(hosts))
	for i, h := range hosts {
		if h.Address == "" {
			return nil, &config.ConfigError{Field: fmt.Sprintf("provider.hosts[%d].address", i), Err: fmt.Errorf("is required")}
		}
		if h.Name == "" {
			h.Name = h.Address
		}
		if seen[h.Name] {
			return nil, &config.ConfigError{Field: fmt.Sprintf("provider.hosts[%d].name", i), Err: fmt.Errorf("duplicate host %q", h.Name)}
		}
		seen[h.Name] = true
		pool = append(pool, h)
	}
	return &Provider{runner: runner, hosts: pool, allocated: make(map[string]*allocation)}, nil
}

// Factory builds the provider from the cluster document.
func Factory(_ context.Context, cfg *config.Config) (provider.Provider, error) {
	var opts Options
	if err := cfg.Provider.Decode(&opts); err != nil {
		return nil, err
	}
	if len(opts.Hosts) == 0 {
		return nil, &config.ConfigError{Field: "provider.hosts", Err: fmt.Errorf("at least one host is required")}
	}
	kp, err := sshrunner.LoadKey(opts.Options)
	if err != nil {
		return nil, err
	}
	return New(sshrunner.New(opts.Options, kp.PrivateKey), opts.Hosts)
}

func (p *Provider) ListNodes(_ context.Context, filter map[string]string) ([]provider.Node, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []provider.Node
	for _, h := range p.hosts {
		a, ok := p.allocated[h.Name]
		if !ok || !labels.Matches(a.tags, filter) {
			continue
		}
		out = append(out, provider.Node{
			ID:      h.Name,
			Name:    h.Name,
			Tags:    maps.Clone(a.tags),
			Running: true,
			Address: h.Address,
		})
	}
	return out, nil
}

// CreateNodes allocates free hosts in pool order. When the pool runs dry
// the hosts allocated so far are returned with an error.
func (p *Provider) CreateNodes(ctx context.Context, req provider.LaunchRequest) ([]string, error) {
	var tmpl hostTemplate
	if err := mapstructure.Decode(req.Template, &tmpl); err != nil {
		return nil, provider.Fatal("create nodes", fmt.Errorf("invalid node_config for %s: %w", req.NodeType, err))
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ids := make([]string, 0, req.Count)
	for _, h := range p.hosts {
		if len(ids) == req.Count {
			break
		}
		if _, taken := p.allocated[h.Name]; taken {
			continue
		}
		if len(tmpl.Hosts) > 0 && !slices.Contains(tmpl.Hosts, h.Name) {
			continue
		}
		p.allocated[h.Name] = &allocation{tags: maps.Clone(req.Tags)}
		ids = append(ids, h.Name)
		log.FromContext(ctx).V(1).Info("allocated host", "host", h.Name, "nodeType", req.NodeType)
	}
	if len(ids) < req.Count {
		return ids, fmt.Errorf("no free host for %s: allocated %d of %d", req.NodeType, len(ids), req.Count)
	}
	return ids, nil
}

func (p *Provider) TerminateNode(ctx context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.allocated[id]; ok {
		delete(p.allocated, id)
		log.FromContext(ctx).V(1).Info("released host", "host", id)
	}
	return nil
}

func (p *Provider) SetNodeTags(_ context.Context, id string, tags map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	a, ok := p.allocated[id]
	if !ok {
		return fmt.Errorf("set tags on %s: %w", id, provider.ErrNotFound)
	}
	maps.Copy(a.tags, tags)
	return nil
}

func (p *Provider) RunCommand(ctx context.Context, id, command string, timeout time.Duration) (provider.CommandResult, error) {
	addr, err := p.address(id)
	if err != nil {
		return provider.CommandResult{}, err
	}
	return p.runner.Run(ctx, addr, command, timeout)
}

// IsRunning reports whether the host is allocated and accepts SSH.
func (p *Provider) IsRunning(ctx context.Context, id string) (bool, error) {
	addr, err := p.address(id)
	if provider.IsNotFound(err) {
		return false, nil
	}
	if err := p.runner.Probe(ctx, addr); err != nil {
		log.FromContext(ctx).V(1).Info("host not reachable yet", "host", id, "error", err.Error())
		return false, nil
	}
	return true, nil
}

func (p *Provider) address(id string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.allocated[id]; !ok {
		return "", fmt.Errorf("host %s: %w", id, provider.ErrNotFound)
	}
	for _, h := range p.hosts {
		if h.Name == id {
			return h.Address, nil
		}
	}
	return "", fmt.Errorf("host %s: %w", id, provider.ErrNotFound)
}
