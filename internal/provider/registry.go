package provider

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/imamik/clusterscaler/internal/config"
)

// Factory builds a backend from the cluster document.
type Factory func(ctx context.Context, cfg *config.Config) (Provider, error)

// Registry maps provider.type values to factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory, replacing any previous one for name.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// Names lists registered provider types.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds the provider selected by cfg.Provider.Type.
func (r *Registry) New(ctx context.Context, cfg *config.Config) (Provider, error) {
	f, ok := r.factories[cfg.Provider.Type]
	if !ok {
		return nil, &config.ConfigError{
			Field: "provider.type",
			Err:   fmt.Errorf("provider %q is not available (registered: %s)", cfg.Provider.Type, strings.Join(r.Names(), ", ")),
		}
	}
	p, err := f(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s provider: %w", cfg.Provider.Type, err)
	}
	return p, nil
}
