// Package docker is the node provider that runs cluster nodes as local
// containers. It is meant for development clusters on a single host.
//
// Container labels are fixed at creation, so tag updates are kept in an
// in-process overlay and merged into every listing.
package docker

import (
	"bytes"
	"context"
	"fmt"
	"maps"
	"math"
	"sync"
	"time"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/mitchellh/mapstructure"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/imamik/clusterscaler/internal/config"
	"github.com/imamik/clusterscaler/internal/provider"
	"github.com/imamik/clusterscaler/internal/util/labels"
	"github.com/imamik/clusterscaler/internal/util/naming"
)

// API is the subset of the Docker Engine client the provider uses.
type API interface {
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error)
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error)
	ContainerExecCreate(ctx context.Context, containerID string, options container.ExecOptions) (container.ExecCreateResponse, error)
	ContainerExecAttach(ctx context.Context, execID string, config container.ExecAttachOptions) (types.HijackedResponse, error)
	ContainerExecInspect(ctx context.Context, execID string) (container.ExecInspect, error)
}

// Options are the provider-specific keys of the "docker" provider type.
type Options struct {
	// Host overrides DOCKER_HOST.
	Host    string `mapstructure:"host"`
	Network string `mapstructure:"network"`
}

// containerTemplate is the node_config of a docker node type.
type containerTemplate struct {
	Image   string   `mapstructure:"image"`
	Command []string `mapstructure:"command"`
	Env     []string `mapstructure:"env"`
	Network string   `mapstructure:"network"`
	CPUs    float64  `mapstructure:"cpus"`
	// MemoryMB limits the container memory.
	MemoryMB int64 `mapstructure:"memory_mb"`
}

// Provider implements provider.Provider on a Docker Engine.
type Provider struct {
	api  API
	opts Options

	mu      sync.Mutex
	overlay map[string]map[string]string
}

var _ provider.Provider = (*Provider)(nil)

// New returns a provider using api.
func New(api API, opts Options) *Provider {
	return &Provider{api: api, opts: opts, overlay: make(map[string]map[string]string)}
}

// Factory builds the provider from the cluster document.
func Factory(_ context.Context, cfg *config.Config) (provider.Provider, error) {
	var opts Options
	if err := cfg.Provider.Decode(&opts); err != nil {
		return nil, err
	}
	clientOpts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if opts.Host != "" {
		clientOpts = append(clientOpts, client.WithHost(opts.Host))
	}
	cli, err := client.NewClientWithOpts(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to init docker client: %w", err)
	}
	return New(cli, opts), nil
}

func (p *Provider) ListNodes(ctx context.Context, filter map[string]string) ([]provider.Node, error) {
	args := filters.NewArgs()
	// Only the cluster label is pushed down; overlay tags may differ from
	// the container's creation labels.
	if cluster, ok := filter[labels.KeyCluster]; ok {
		args.Add("label", labels.KeyCluster+"="+cluster)
	}
	containers, err := p.api.ContainerList(ctx, container.ListOptions{All: true, Filters: args})
	if err != nil {
		return nil, classify("list containers", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	nodes := make([]provider.Node, 0, len(containers))
	for _, c := range containers {
		tags := maps.Clone(c.Labels)
		if tags == nil {
			tags = make(map[string]string)
		}
		maps.Copy(tags, p.overlay[c.ID])
		if !labels.Matches(tags, filter) {
			continue
		}
		nodes = append(nodes, provider.Node{
			ID:      c.ID,
			Name:    containerName(c.Names),
			Tags:    tags,
			Running: c.State == container.StateRunning || c.State == container.StateCreated || c.State == container.StateRestarting,
			Address: summaryAddress(c),
		})
	}
	return nodes, nil
}

func (p *Provider) CreateNodes(ctx context.Context, req provider.LaunchRequest) ([]string, error) {
	var tmpl containerTemplate
	if err := mapstructure.WeakDecode(req.Template, &tmpl); err != nil {
		return nil, provider.Fatal("create containers", fmt.Errorf("invalid node_config for %s: %w", req.NodeType, err))
	}
	if tmpl.Image == "" {
		return nil, provider.Fatal("create containers", fmt.Errorf("node_config.image is required for %s", req.NodeType))
	}
	if len(tmpl.Command) == 0 {
		tmpl.Command = []string{"sleep", "infinity"}
	}

	hostConfig := &container.HostConfig{
		NetworkMode: container.NetworkMode(firstNonEmpty(tmpl.Network, p.opts.Network)),
	}
	if tmpl.CPUs > 0 {
		hostConfig.NanoCPUs = int64(math.Round(tmpl.CPUs * 1e9))
	}
	if tmpl.MemoryMB > 0 {
		hostConfig.Memory = tmpl.MemoryMB * 1024 * 1024
	}

	cluster := req.Tags[labels.KeyCluster]
	ids := make([]string, 0, req.Count)
	for range req.Count {
		name := naming.Node(cluster, req.NodeType)
		resp, err := p.api.ContainerCreate(ctx, &container.Config{
			Hostname: name,
			Image:    tmpl.Image,
			Cmd:      tmpl.Command,
			Env:      tmpl.Env,
			Labels:   maps.Clone(req.Tags),
		}, hostConfig, nil, nil, name)
		if err != nil {
			return ids, classify("create container "+name, err)
		}
		if err := p.api.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
			_ = p.api.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true})
			return ids, classify("start container "+name, err)
		}
		ids = append(ids, resp.ID)
	}
	return ids, nil
}

func (p *Provider) TerminateNode(ctx context.Context, id string) error {
	err := p.api.ContainerRemove(ctx, id, container.RemoveOptions{Force: true, RemoveVolumes: true})
	if err != nil && !cerrdefs.IsNotFound(err) {
		return classify("remove container "+id, err)
	}
	p.mu.Lock()
	delete(p.overlay, id)
	p.mu.Unlock()
	return nil
}

func (p *Provider) SetNodeTags(ctx context.Context, id string, tags map[string]string) error {
	if _, err := p.api.ContainerInspect(ctx, id); err != nil {
		return classify("inspect container "+id, err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.overlay[id] == nil {
		p.overlay[id] = make(map[string]string, len(tags))
	}
	maps.Copy(p.overlay[id], tags)
	return nil
}

func (p *Provider) RunCommand(ctx context.Context, id, command string, timeout time.Duration) (provider.CommandResult, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	exec, err := p.api.ContainerExecCreate(ctx, id, container.ExecOptions{
		Cmd:          []string{"sh", "-c", command},
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return provider.CommandResult{}, classify("exec in "+id, err)
	}

	attach, err := p.api.ContainerExecAttach(ctx, exec.ID, container.ExecAttachOptions{})
	if err != nil {
		return provider.CommandResult{}, classify("attach to exec in "+id, err)
	}
	defer attach.Close()

	var output bytes.Buffer
	copied := make(chan error, 1)
	go func() {
		_, err := stdcopy.StdCopy(&output, &output, attach.Reader)
		copied <- err
	}()

	select {
	case <-ctx.Done():
		attach.Close()
		<-copied
		return provider.CommandResult{Output: output.String()}, fmt.Errorf("command in %s interrupted: %w", id, ctx.Err())
	case err := <-copied:
		if err != nil {
			return provider.CommandResult{Output: output.String()}, fmt.Errorf("failed to read exec output: %w", err)
		}
	}

	inspect, err := p.api.ContainerExecInspect(ctx, exec.ID)
	if err != nil {
		return provider.CommandResult{Output: output.String()}, classify("inspect exec in "+id, err)
	}
	return provider.CommandResult{ExitCode: inspect.ExitCode, Output: output.String()}, nil
}

func (p *Provider) IsRunning(ctx context.Context, id string) (bool, error) {
	info, err := p.api.ContainerInspect(ctx, id)
	if cerrdefs.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, classify("inspect container "+id, err)
	}
	return info.ContainerJSONBase != nil && info.State != nil && info.State.Running, nil
}

// classify maps engine errors onto the provider error taxonomy.
func classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case cerrdefs.IsNotFound(err):
		return fmt.Errorf("%s: %w", op, provider.ErrNotFound)
	case cerrdefs.IsUnavailable(err), cerrdefs.IsDeadlineExceeded(err), cerrdefs.IsConflict(err), client.IsErrConnectionFailed(err):
		return provider.Transient(op, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func containerName(names []string) string {
	if len(names) == 0 {
		return ""
	}
	name := names[0]
	if len(name) > 0 && name[0] == '/' {
		name = name[1:]
	}
	return name
}

func summaryAddress(c container.Summary) string {
	if c.NetworkSettings == nil {
		return ""
	}
	for _, ep := range c.NetworkSettings.Networks {
		if ep != nil && ep.IPAddress != "" {
			return ep.IPAddress
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
