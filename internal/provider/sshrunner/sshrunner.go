// Package sshrunner runs node commands over SSH for providers whose nodes
// are plain machines: hcloud servers, OpenStack instances and static hosts.
package sshrunner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/imamik/clusterscaler/internal/platform/ssh"
	"github.com/imamik/clusterscaler/internal/provider"
	"github.com/imamik/clusterscaler/internal/util/keygen"
)

const (
	defaultUser    = "root"
	defaultKeyPath = "~/.ssh/clusterscaler_ed25519"
)

// Options are the SSH keys shared by machine-based provider blocks. They
// are squashed into each provider's own options.
type Options struct {
	User    string `mapstructure:"ssh_user"`
	Port    int    `mapstructure:"ssh_port"`
	KeyPath string `mapstructure:"ssh_key_path"`
}

// Runner executes commands on a host. It dials a fresh connection per
// command.
type Runner struct {
	opts Options
	key  []byte
}

// New returns a runner authenticating with privateKey.
func New(opts Options, privateKey []byte) *Runner {
	if opts.User == "" {
		opts.User = defaultUser
	}
	return &Runner{opts: opts, key: privateKey}
}

// LoadKey returns the key pair at opts.KeyPath, generating one on first use.
func LoadKey(opts Options) (*keygen.KeyPair, error) {
	path, err := expandHome(opts.KeyPath)
	if err != nil {
		return nil, err
	}
	kp, _, err := keygen.LoadOrGenerate(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load ssh key: %w", err)
	}
	return kp, nil
}

// Probe reports whether host accepts an SSH session.
func (r *Runner) Probe(ctx context.Context, host string) error {
	client, err := r.client(host)
	if err != nil {
		return err
	}
	return client.Probe(ctx)
}

// Run executes command on host. A non-zero exit is reported in the result.
func (r *Runner) Run(ctx context.Context, host, command string, timeout time.Duration) (provider.CommandResult, error) {
	client, err := r.client(host)
	if err != nil {
		return provider.CommandResult{}, err
	}
	res, err := client.Run(ctx, command, timeout)
	if err != nil {
		return provider.CommandResult{Output: res.Output}, err
	}
	return provider.CommandResult{ExitCode: res.ExitCode, Output: res.Output}, nil
}

func (r *Runner) client(host string) (*ssh.Client, error) {
	if host == "" {
		return nil, fmt.Errorf("node has no address yet")
	}
	return ssh.NewClient(&ssh.Config{
		Host:       host,
		Port:       r.opts.Port,
		User:       r.opts.User,
		PrivateKey: r.key,
		MaxRetries: 1,
		RetryDelay: time.Second,
	})
}

func expandHome(path string) (string, error) {
	if path == "" {
		path = defaultKeyPath
	}
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, path[2:]), nil
}
