package hcloud

import (
	"context"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// ServerCreateOpts holds all parameters for creating an HCloud server.
type ServerCreateOpts struct {
	Name       string
	ServerType string
	Image      string
	Location   string
	SSHKeys    []string
	Labels     map[string]string
	UserData   string
}

// ServerManager defines the server operations used by the node provider.
type ServerManager interface {
	// CreateServer creates a server and waits for the create action.
	CreateServer(ctx context.Context, opts ServerCreateOpts) (*hcloud.Server, error)
	// DeleteServer deletes a server by id or name. Missing servers succeed.
	DeleteServer(ctx context.Context, idOrName string) error
	// GetServer returns the server, or nil if it does not exist.
	GetServer(ctx context.Context, idOrName string) (*hcloud.Server, error)
	GetServersByLabel(ctx context.Context, labels map[string]string) ([]*hcloud.Server, error)
	// SetServerLabels replaces the server's labels.
	SetServerLabels(ctx context.Context, idOrName string, labels map[string]string) error
}

// SSHKeyManager registers the key nodes are provisioned with.
type SSHKeyManager interface {
	EnsureSSHKey(ctx context.Context, name, publicKey string, labels map[string]string) (bool, error)
}

// Client combines all interfaces.
type Client interface {
	ServerManager
	SSHKeyManager
}

var _ Client = (*RealClient)(nil)
