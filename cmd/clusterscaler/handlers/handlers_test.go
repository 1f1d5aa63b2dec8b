package handlers

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/imamik/clusterscaler/internal/config"
	"github.com/imamik/clusterscaler/internal/provider"
	"github.com/imamik/clusterscaler/internal/provider/fake"
	"github.com/imamik/clusterscaler/internal/util/labels"
)

const testDoc = `
cluster_name: cli-test
head_node_type: head
provider:
  type: fake
available_node_types:
  head:
    resources: {CPU: 2}
  cpu:
    resources: {CPU: 4}
    max_workers: 3
`

func writeConfig(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cluster.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	return path
}

// useProvider makes every session of the test use p. Tests calling it must
// not run in parallel.
func useProvider(t *testing.T, p *fake.Provider) {
	t.Helper()
	orig := newProviderRegistry
	t.Cleanup(func() { newProviderRegistry = orig })

	newProviderRegistry = func() *provider.Registry {
		reg := provider.NewRegistry()
		reg.Register("fake", func(context.Context, *config.Config) (provider.Provider, error) {
			return p, nil
		})
		return reg
	}
	t.Setenv("CLUSTERSCALER_RETRY_INITIAL_DELAY", "1ms")
}

func nodeTags(role, nodeType string) map[string]string {
	return labels.NewLabelBuilder("cli-test").
		WithRole(role).
		WithNodeType(nodeType).
		WithStatus(labels.StatusUp).
		Build()
}
