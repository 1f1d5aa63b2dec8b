package hcloud

import (
	"context"
	"fmt"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// EnsureSSHKey uploads publicKey under name unless a key of that name
// exists already. It reports whether a key was created.
func (c *RealClient) EnsureSSHKey(ctx context.Context, name, publicKey string, labels map[string]string) (bool, error) {
	existing, _, err := c.client.SSHKey.GetByName(ctx, name)
	if err != nil {
		return false, fmt.Errorf("failed to look up ssh key %s: %w", name, err)
	}
	if existing != nil {
		return false, nil
	}

	_, _, err = c.client.SSHKey.Create(ctx, hcloud.SSHKeyCreateOpts{
		Name:      name,
		PublicKey: publicKey,
		Labels:    labels,
	})
	if IsAlreadyExists(err) {
		// Another reconciler of the same cluster won the race.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to create ssh key %s: %w", name, err)
	}
	return true, nil
}
