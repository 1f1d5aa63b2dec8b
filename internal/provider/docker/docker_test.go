package docker

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/pkg/stdcopy"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/clusterscaler/internal/provider"
	"github.com/imamik/clusterscaler/internal/util/labels"
)

// fakeEngine is an in-memory Docker Engine.
type fakeEngine struct {
	mu         sync.Mutex
	containers map[string]*container.Summary
	configs    map[string]*container.HostConfig
	execs      map[string][]string
	seq        int

	// ExecResult decides the output and exit code of a command.
	ExecResult func(cmd []string) (string, int)
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		containers: make(map[string]*container.Summary),
		configs:    make(map[string]*container.HostConfig),
		execs:      make(map[string][]string),
	}
}

func (f *fakeEngine) ContainerCreate(_ context.Context, cfg *container.Config, hostConfig *container.HostConfig, _ *network.NetworkingConfig, _ *ocispec.Platform, name string) (container.CreateResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	id := fmt.Sprintf("c%d", f.seq)
	f.containers[id] = &container.Summary{ID: id, Names: []string{"/" + name}, Image: cfg.Image, Labels: cfg.Labels, State: container.StateCreated}
	f.configs[id] = hostConfig
	return container.CreateResponse{ID: id}, nil
}

func (f *fakeEngine) ContainerStart(_ context.Context, id string, _ container.StartOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.containers[id]
	if !ok {
		return cerrdefs.ErrNotFound
	}
	c.State = container.StateRunning
	return nil
}

func (f *fakeEngine) ContainerList(_ context.Context, opts container.ListOptions) ([]container.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []container.Summary
	for _, c := range f.containers {
		keep := true
		for _, kv := range opts.Filters.Get("label") {
			k, v, _ := strings.Cut(kv, "=")
			if c.Labels[k] != v {
				keep = false
			}
		}
		if keep {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeEngine) ContainerRemove(_ context.Context, id string, _ container.RemoveOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.containers[id]; !ok {
		return cerrdefs.ErrNotFound
	}
	delete(f.containers, id)
	return nil
}

func (f *fakeEngine) ContainerInspect(_ context.Context, id string) (container.InspectResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.containers[id]
	if !ok {
		return container.InspectResponse{}, cerrdefs.ErrNotFound
	}
	return container.InspectResponse{ContainerJSONBase: &container.ContainerJSONBase{
		ID:    id,
		State: &container.State{Status: c.State, Running: c.State == container.StateRunning},
	}}, nil
}

func (f *fakeEngine) ContainerExecCreate(_ context.Context, id string, opts container.ExecOptions) (container.ExecCreateResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.containers[id]; !ok {
		return container.ExecCreateResponse{}, cerrdefs.ErrNotFound
	}
	f.seq++
	execID := fmt.Sprintf("e%d", f.seq)
	f.execs[execID] = opts.Cmd
	return container.ExecCreateResponse{ID: execID}, nil
}

func (f *fakeEngine) result(execID string) (string, int) {
	f.mu.Lock()
	cmd := f.execs[execID]
	f.mu.Unlock()
	if f.ExecResult != nil {
		return f.ExecResult(cmd)
	}
	return "ok", 0
}

func (f *fakeEngine) ContainerExecAttach(_ context.Context, execID string, _ container.ExecAttachOptions) (types.HijackedResponse, error) {
	out, _ := f.result(execID)
	var buf bytes.Buffer
	_, _ = stdcopy.NewStdWriter(&buf, stdcopy.Stdout).Write([]byte(out))

	local, remote := net.Pipe()
	_ = remote.Close()
	return types.HijackedResponse{Conn: local, Reader: bufio.NewReader(&buf)}, nil
}

func (f *fakeEngine) ContainerExecInspect(_ context.Context, execID string) (container.ExecInspect, error) {
	_, code := f.result(execID)
	return container.ExecInspect{ExecID: execID, ExitCode: code}, nil
}

func TestProvider_Lifecycle(t *testing.T) {
	t.Parallel()
	engine := newFakeEngine()
	p := New(engine, Options{Network: "ray"})
	ctx := context.Background()

	tags := labels.NewLabelBuilder("demo").WithRole(labels.RoleWorker).WithNodeType("cpu").Build()
	ids, err := p.CreateNodes(ctx, provider.LaunchRequest{
		NodeType: "cpu",
		Template: map[string]any{"image": "rayproject/ray:2.9.0", "cpus": 1.5, "memory_mb": 512},
		Tags:     tags,
		Count:    2,
	})
	require.NoError(t, err)
	require.Len(t, ids, 2)

	hc := engine.configs[ids[0]]
	assert.Equal(t, int64(1_500_000_000), hc.NanoCPUs)
	assert.Equal(t, int64(512*1024*1024), hc.Memory)
	assert.Equal(t, container.NetworkMode("ray"), hc.NetworkMode)

	running, err := p.IsRunning(ctx, ids[0])
	require.NoError(t, err)
	assert.True(t, running)

	require.NoError(t, p.SetNodeTags(ctx, ids[0], map[string]string{labels.KeyStatus: labels.StatusUp}))

	up, err := p.ListNodes(ctx, map[string]string{labels.KeyCluster: "demo", labels.KeyStatus: labels.StatusUp})
	require.NoError(t, err)
	require.Len(t, up, 1, "overlay tags take part in filtering")
	assert.Equal(t, ids[0], up[0].ID)
	assert.Regexp(t, `^demo-cpu-`, up[0].Name)

	all, err := p.ListNodes(ctx, labels.ClusterFilter("demo"))
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, p.TerminateNode(ctx, ids[0]))
	require.NoError(t, p.TerminateNode(ctx, ids[0]), "removing a missing container succeeds")

	running, err = p.IsRunning(ctx, ids[0])
	require.NoError(t, err)
	assert.False(t, running)
	assert.True(t, provider.IsNotFound(p.SetNodeTags(ctx, ids[0], map[string]string{"a": "b"})))
}

func TestProvider_RunCommand(t *testing.T) {
	t.Parallel()
	engine := newFakeEngine()
	engine.ExecResult = func(cmd []string) (string, int) {
		if strings.Contains(cmd[len(cmd)-1], "fail") {
			return "boom\n", 7
		}
		return "started\n", 0
	}
	p := New(engine, Options{})
	ctx := context.Background()

	ids, err := p.CreateNodes(ctx, provider.LaunchRequest{NodeType: "cpu", Template: map[string]any{"image": "alpine"}, Count: 1})
	require.NoError(t, err)

	res, err := p.RunCommand(ctx, ids[0], "ray start", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, provider.CommandResult{ExitCode: 0, Output: "started\n"}, res)

	res, err = p.RunCommand(ctx, ids[0], "fail now", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 7, res.ExitCode)
	assert.Equal(t, "boom\n", res.Output)

	_, err = p.RunCommand(ctx, "missing", "true", time.Minute)
	assert.True(t, provider.IsNotFound(err))
}

func TestProvider_CreateNodes_RequiresImage(t *testing.T) {
	t.Parallel()
	p := New(newFakeEngine(), Options{})
	_, err := p.CreateNodes(context.Background(), provider.LaunchRequest{NodeType: "cpu", Template: map[string]any{}, Count: 1})
	require.Error(t, err)
	assert.True(t, provider.IsFatal(err))
}

func TestContainerName(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "demo-cpu-x", containerName([]string{"/demo-cpu-x"}))
	assert.Empty(t, containerName(nil))
}
