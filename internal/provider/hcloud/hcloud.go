// Package hcloud is the node provider for Hetzner Cloud. Nodes are servers,
// tags are server labels, and commands run over SSH.
package hcloud

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"maps"
	"os"
	"strconv"
	"time"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
	"github.com/mitchellh/mapstructure"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/imamik/clusterscaler/internal/config"
	hcloudapi "github.com/imamik/clusterscaler/internal/platform/hcloud"
	"github.com/imamik/clusterscaler/internal/provider"
	"github.com/imamik/clusterscaler/internal/provider/sshrunner"
	"github.com/imamik/clusterscaler/internal/util/labels"
	"github.com/imamik/clusterscaler/internal/util/naming"
)

const defaultImage = "ubuntu-24.04"

// Options are the provider-specific keys of the "hcloud" provider type.
type Options struct {
	// Token defaults to $HCLOUD_TOKEN.
	Token    string   `mapstructure:"token"`
	Location string   `mapstructure:"location"`
	Image    string   `mapstructure:"image"`
	SSHKeys  []string `mapstructure:"ssh_keys"`

	sshrunner.Options `mapstructure:",squash"`
}

// serverTemplate is the node_config of an hcloud node type.
type serverTemplate struct {
	ServerType string `mapstructure:"server_type"`
	Image      string `mapstructure:"image"`
	Location   string `mapstructure:"location"`
	UserData   string `mapstructure:"user_data"`
}

// CommandRunner runs a command on a host.
type CommandRunner interface {
	Run(ctx context.Context, host, command string, timeout time.Duration) (provider.CommandResult, error)
}

// Provider implements provider.Provider on Hetzner Cloud.
type Provider struct {
	client hcloudapi.ServerManager
	runner CommandRunner
	opts   Options
}

var _ provider.Provider = (*Provider)(nil)

// New returns a provider using client for the API and runner for commands.
func New(client hcloudapi.ServerManager, runner CommandRunner, opts Options) *Provider {
	if opts.Image == "" {
		opts.Image = defaultImage
	}
	return &Provider{client: client, runner: runner, opts: opts}
}

// Factory builds the provider from the cluster document. The SSH key at
// ssh_key_path is generated on first use and registered with the project.
func Factory(ctx context.Context, cfg *config.Config) (provider.Provider, error) {
	var opts Options
	if err := cfg.Provider.Decode(&opts); err != nil {
		return nil, err
	}
	if opts.Token == "" {
		opts.Token = os.Getenv("HCLOUD_TOKEN")
	}
	if opts.Token == "" {
		return nil, &config.ConfigError{Field: "provider.token", Err: fmt.Errorf("is required (or set HCLOUD_TOKEN)")}
	}

	kp, err := sshrunner.LoadKey(opts.Options)
	if err != nil {
		return nil, err
	}

	client := hcloudapi.NewRealClient(opts.Token)
	keyName, err := registerKey(ctx, client, cfg.ClusterName, string(kp.PublicKey))
	if err != nil {
		return nil, err
	}
	opts.SSHKeys = append(opts.SSHKeys, keyName)

	return New(client, sshrunner.New(opts.Options, kp.PrivateKey), opts), nil
}

// registerKey uploads the public key under a name derived from its content.
func registerKey(ctx context.Context, client hcloudapi.SSHKeyManager, cluster, publicKey string) (string, error) {
	sum := sha256.Sum256([]byte(publicKey))
	name := fmt.Sprintf("clusterscaler-%s-%s", cluster, hex.EncodeToString(sum[:])[:8])

	created, err := client.EnsureSSHKey(ctx, name, publicKey, labels.NewLabelBuilder(cluster).Build())
	if err != nil {
		return "", fmt.Errorf("failed to register ssh key: %w", err)
	}
	if created {
		log.FromContext(ctx).Info("registered ssh key", "name", name)
	}
	return name, nil
}

func (p *Provider) ListNodes(ctx context.Context, filter map[string]string) ([]provider.Node, error) {
	servers, err := p.client.GetServersByLabel(ctx, filter)
	if err != nil {
		return nil, classify("list servers", err)
	}
	nodes := make([]provider.Node, 0, len(servers))
	for _, s := range servers {
		nodes = append(nodes, toNode(s))
	}
	return nodes, nil
}

func (p *Provider) CreateNodes(ctx context.Context, req provider.LaunchRequest) ([]string, error) {
	var tmpl serverTemplate
	if err := mapstructure.WeakDecode(req.Template, &tmpl); err != nil {
		return nil, provider.Fatal("create servers", fmt.Errorf("invalid node_config for %s: %w", req.NodeType, err))
	}
	if tmpl.ServerType == "" {
		return nil, provider.Fatal("create servers", fmt.Errorf("node_config.server_type is required for %s", req.NodeType))
	}

	opts := hcloudapi.ServerCreateOpts{
		ServerType: tmpl.ServerType,
		Image:      firstNonEmpty(tmpl.Image, p.opts.Image),
		Location:   firstNonEmpty(tmpl.Location, p.opts.Location),
		SSHKeys:    p.opts.SSHKeys,
		Labels:     req.Tags,
		UserData:   tmpl.UserData,
	}

	cluster := req.Tags[labels.KeyCluster]
	ids := make([]string, 0, req.Count)
	for range req.Count {
		opts.Name = naming.Node(cluster, req.NodeType)
		server, err := p.client.CreateServer(ctx, opts)
		if err != nil {
			return ids, classify("create server "+opts.Name, err)
		}
		ids = append(ids, strconv.FormatInt(server.ID, 10))
	}
	return ids, nil
}

func (p *Provider) TerminateNode(ctx context.Context, id string) error {
	return classify("delete server "+id, p.client.DeleteServer(ctx, id))
}

func (p *Provider) SetNodeTags(ctx context.Context, id string, tags map[string]string) error {
	server, err := p.server(ctx, id)
	if err != nil {
		return err
	}
	merged := maps.Clone(server.Labels)
	if merged == nil {
		merged = make(map[string]string, len(tags))
	}
	maps.Copy(merged, tags)
	return classify("label server "+id, p.client.SetServerLabels(ctx, id, merged))
}

func (p *Provider) RunCommand(ctx context.Context, id, command string, timeout time.Duration) (provider.CommandResult, error) {
	server, err := p.server(ctx, id)
	if err != nil {
		return provider.CommandResult{}, err
	}
	return p.runner.Run(ctx, hcloudapi.ServerAddress(server), command, timeout)
}

func (p *Provider) IsRunning(ctx context.Context, id string) (bool, error) {
	server, err := p.client.GetServer(ctx, id)
	if err != nil {
		return false, classify("get server "+id, err)
	}
	return server != nil && server.Status == hcloud.ServerStatusRunning, nil
}

func (p *Provider) server(ctx context.Context, id string) (*hcloud.Server, error) {
	server, err := p.client.GetServer(ctx, id)
	if err != nil {
		return nil, classify("get server "+id, err)
	}
	if server == nil {
		return nil, fmt.Errorf("server %s: %w", id, provider.ErrNotFound)
	}
	return server, nil
}

func toNode(s *hcloud.Server) provider.Node {
	running := true
	switch s.Status {
	case hcloud.ServerStatusStopping, hcloud.ServerStatusOff, hcloud.ServerStatusDeleting:
		running = false
	}
	return provider.Node{
		ID:      strconv.FormatInt(s.ID, 10),
		Name:    s.Name,
		Tags:    maps.Clone(s.Labels),
		Running: running,
		Address: hcloudapi.ServerAddress(s),
	}
}

// classify maps API errors onto the provider error taxonomy.
func classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case hcloudapi.IsNotFound(err):
		return fmt.Errorf("%s: %w", op, provider.ErrNotFound)
	case hcloudapi.IsTransient(err):
		return provider.Transient(op, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

