// Package openstack is the node provider for OpenStack compute. Nodes are
// Nova servers, tags are server metadata, and commands run over SSH.
package openstack

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"maps"
	"os"
	"regexp"
	"slices"
	"time"

	"github.com/gophercloud/gophercloud"
	"github.com/gophercloud/gophercloud/openstack"
	"github.com/gophercloud/gophercloud/openstack/compute/v2/extensions/keypairs"
	"github.com/gophercloud/gophercloud/openstack/compute/v2/servers"
	"github.com/mitchellh/mapstructure"
	"github.com/samber/lo"

	"github.com/imamik/clusterscaler/internal/config"
	"github.com/imamik/clusterscaler/internal/provider"
	"github.com/imamik/clusterscaler/internal/provider/sshrunner"
	"github.com/imamik/clusterscaler/internal/util/labels"
	"github.com/imamik/clusterscaler/internal/util/naming"
)

// Options are the provider-specific keys of the "openstack" provider type.
// Credentials come from the usual OS_* environment variables.
type Options struct {
	// Region defaults to $OS_REGION_NAME.
	Region         string   `mapstructure:"region"`
	Image          string   `mapstructure:"image"`
	Networks       []string `mapstructure:"networks"`
	SecurityGroups []string `mapstructure:"security_groups"`

	sshrunner.Options `mapstructure:",squash"`
}

// serverTemplate is the node_config of an openstack node type.
type serverTemplate struct {
	Flavor         string   `mapstructure:"flavor"`
	Image          string   `mapstructure:"image"`
	Networks       []string `mapstructure:"networks"`
	SecurityGroups []string `mapstructure:"security_groups"`
	UserData       string   `mapstructure:"user_data"`
}

// CommandRunner runs a command on a host.
type CommandRunner interface {
	Run(ctx context.Context, host, command string, timeout time.Duration) (provider.CommandResult, error)
}

// Provider implements provider.Provider on OpenStack compute.
type Provider struct {
	client  *gophercloud.ServiceClient
	runner  CommandRunner
	opts    Options
	keyName string
}

var _ provider.Provider = (*Provider)(nil)

// New returns a provider using the compute client. keyName may be empty.
func New(client *gophercloud.ServiceClient, runner CommandRunner, opts Options, keyName string) *Provider {
	return &Provider{client: client, runner: runner, opts: opts, keyName: keyName}
}

// Factory builds the provider from the cluster document and environment.
func Factory(ctx context.Context, cfg *config.Config) (provider.Provider, error) {
	var opts Options
	if err := cfg.Provider.Decode(&opts); err != nil {
		return nil, err
	}
	if opts.Region == "" {
		opts.Region = os.Getenv("OS_REGION_NAME")
	}

	authOpts, err := openstack.AuthOptionsFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to get auth options from env: %w", err)
	}
	authOpts.AllowReauth = true
	pc, err := openstack.AuthenticatedClient(authOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to get authenticated client: %w", err)
	}
	pc.Context = ctx
	client, err := openstack.NewComputeV2(pc, gophercloud.EndpointOpts{Region: opts.Region})
	if err != nil {
		return nil, fmt.Errorf("failed to get compute client: %w", err)
	}

	kp, err := sshrunner.LoadKey(opts.Options)
	if err != nil {
		return nil, err
	}
	keyName, err := importKey(client, cfg.ClusterName, string(kp.PublicKey))
	if err != nil {
		return nil, err
	}
	return New(client, sshrunner.New(opts.Options, kp.PrivateKey), opts, keyName), nil
}

// importKey registers the public key as a Nova keypair named after its
// content. An existing keypair of that name is reused.
func importKey(client *gophercloud.ServiceClient, cluster, publicKey string) (string, error) {
	sum := sha256.Sum256([]byte(publicKey))
	name := fmt.Sprintf("clusterscaler-%s-%s", cluster, hex.EncodeToString(sum[:])[:8])

	_, err := keypairs.Create(client, keypairs.CreateOpts{Name: name, PublicKey: publicKey}).Extract()
	var conflict gophercloud.ErrDefault409
	if err != nil && !errors.As(err, &conflict) {
		return "", fmt.Errorf("failed to import keypair: %w", err)
	}
	return name, nil
}

func (p *Provider) ListNodes(_ context.Context, filter map[string]string) ([]provider.Node, error) {
	listOpts := servers.ListOpts{}
	if cluster, ok := filter[labels.KeyCluster]; ok {
		// Nova filters names by regular expression.
		listOpts.Name = "^" + regexp.QuoteMeta(cluster) + "-"
	}
	pages, err := servers.List(p.client, listOpts).AllPages()
	if err != nil {
		return nil, classify("list servers", err)
	}
	all, err := servers.ExtractServers(pages)
	if err != nil {
		return nil, fmt.Errorf("failed to extract servers: %w", err)
	}

	matching := lo.Filter(all, func(s servers.Server, _ int) bool {
		return labels.Matches(s.Metadata, filter)
	})
	return lo.Map(matching, func(s servers.Server, _ int) provider.Node {
		return toNode(&s)
	}), nil
}

func (p *Provider) CreateNodes(_ context.Context, req provider.LaunchRequest) ([]string, error) {
	var tmpl serverTemplate
	if err := mapstructure.WeakDecode(req.Template, &tmpl); err != nil {
		return nil, provider.Fatal("create servers", fmt.Errorf("invalid node_config for %s: %w", req.NodeType, err))
	}
	if tmpl.Flavor == "" {
		return nil, provider.Fatal("create servers", fmt.Errorf("node_config.flavor is required for %s", req.NodeType))
	}

	networks := lo.Map(lo.Ternary(len(tmpl.Networks) > 0, tmpl.Networks, p.opts.Networks), func(uuid string, _ int) servers.Network {
		return servers.Network{UUID: uuid}
	})
	cluster := req.Tags[labels.KeyCluster]

	ids := make([]string, 0, req.Count)
	for range req.Count {
		var builder servers.CreateOptsBuilder = servers.CreateOpts{
			Name:           naming.Node(cluster, req.NodeType),
			ImageRef:       lo.Ternary(tmpl.Image != "", tmpl.Image, p.opts.Image),
			FlavorRef:      tmpl.Flavor,
			Networks:       networks,
			SecurityGroups: lo.Ternary(len(tmpl.SecurityGroups) > 0, tmpl.SecurityGroups, p.opts.SecurityGroups),
			Metadata:       maps.Clone(req.Tags),
			UserData:       []byte(tmpl.UserData),
		}
		if p.keyName != "" {
			builder = keypairs.CreateOptsExt{CreateOptsBuilder: builder, KeyName: p.keyName}
		}
		server, err := servers.Create(p.client, builder).Extract()
		if err != nil {
			return ids, classify("create server", err)
		}
		ids = append(ids, server.ID)
	}
	return ids, nil
}

func (p *Provider) TerminateNode(_ context.Context, id string) error {
	err := servers.Delete(p.client, id).ExtractErr()
	if isNotFound(err) {
		return nil
	}
	return classify("delete server "+id, err)
}

func (p *Provider) SetNodeTags(_ context.Context, id string, tags map[string]string) error {
	_, err := servers.UpdateMetadata(p.client, id, servers.MetadataOpts(tags)).Extract()
	return classify("update metadata of "+id, err)
}

func (p *Provider) RunCommand(ctx context.Context, id, command string, timeout time.Duration) (provider.CommandResult, error) {
	server, err := servers.Get(p.client, id).Extract()
	if err != nil {
		return provider.CommandResult{}, classify("get server "+id, err)
	}
	return p.runner.Run(ctx, serverAddress(server), command, timeout)
}

func (p *Provider) IsRunning(_ context.Context, id string) (bool, error) {
	server, err := servers.Get(p.client, id).Extract()
	if isNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, classify("get server "+id, err)
	}
	return server.Status == "ACTIVE", nil
}

func toNode(s *servers.Server) provider.Node {
	return provider.Node{
		ID:      s.ID,
		Name:    s.Name,
		Tags:    maps.Clone(s.Metadata),
		Running: !lo.Contains([]string{"DELETED", "SOFT_DELETED", "SHUTOFF", "ERROR"}, s.Status),
		Address: serverAddress(s),
	}
}

// serverAddress returns the first IPv4 address of the server.
func serverAddress(s *servers.Server) string {
	if s.AccessIPv4 != "" {
		return s.AccessIPv4
	}
	for _, network := range slices.Sorted(maps.Keys(s.Addresses)) {
		entries, _ := s.Addresses[network].([]any)
		for _, e := range entries {
			entry, _ := e.(map[string]any)
			if version, _ := entry["version"].(float64); version == 4 {
				if addr, _ := entry["addr"].(string); addr != "" {
					return addr
				}
			}
		}
	}
	return ""
}

func isNotFound(err error) bool {
	var notFound gophercloud.ErrDefault404
	return errors.As(err, &notFound)
}

// classify maps API errors onto the provider error taxonomy.
func classify(op string, err error) error {
	var (
		tooMany     gophercloud.ErrDefault429
		unavailable gophercloud.ErrDefault503
		internal    gophercloud.ErrDefault500
		conflict    gophercloud.ErrDefault409
	)
	switch {
	case err == nil:
		return nil
	case isNotFound(err):
		return fmt.Errorf("%s: %w", op, provider.ErrNotFound)
	case errors.As(err, &tooMany), errors.As(err, &unavailable), errors.As(err, &internal), errors.As(err, &conflict):
		return provider.Transient(op, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
