// Package catalog provides the typed, validated view of the node types a
// cluster may run.
package catalog

import (
	"errors"
	"fmt"
	"math"

	"github.com/imamik/clusterscaler/internal/config"
	"github.com/imamik/clusterscaler/internal/resources"
	"github.com/imamik/clusterscaler/internal/util/ptr"
)

// Unbounded is the max_workers value of node types without an upper bound.
const Unbounded = math.MaxInt32

// ErrNotFound is returned by Resolve for unknown node types.
var ErrNotFound = errors.New("node type not found")

// NodeTypeSpec is a resolved node type.
type NodeTypeSpec struct {
	Name           string
	Resources      resources.Vector
	MinWorkers     int
	MaxWorkers     int
	Cost           float64
	HasCost        bool
	IsHead         bool
	LaunchTemplate map[string]any
	SetupCommands  []string
	StartCommands  []string
	StopCommands   []string
	LaunchHash     string
	// Order is the declaration index.
	Order int
}

// Catalog is immutable once built and safe for concurrent use.
type Catalog struct {
	types  []NodeTypeSpec
	byName map[string]int
	head   int
}

// New validates cfg and builds its catalog. Any violation is returned as a
// *config.ConfigError.
func New(cfg *config.Config) (*Catalog, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Catalog{
		types:  make([]NodeTypeSpec, 0, len(cfg.AvailableNodeTypes)),
		byName: make(map[string]int, len(cfg.AvailableNodeTypes)),
	}
	for i, nt := range cfg.AvailableNodeTypes {
		spec := NodeTypeSpec{
			Name:           nt.Name,
			Resources:      nt.Resources.Clone(),
			LaunchTemplate: nt.NodeConfig,
			SetupCommands:  append([]string(nil), nt.SetupCommands...),
			StartCommands:  append([]string(nil), nt.StartCommands...),
			StopCommands:   append([]string(nil), nt.StopCommands...),
			LaunchHash:     nt.LaunchHash(),
			Order:          i,
		}
		spec.MinWorkers = ptr.Deref(nt.MinWorkers, 0)
		spec.MaxWorkers = ptr.Deref(nt.MaxWorkers, Unbounded)
		spec.Cost, spec.HasCost = ptr.Deref(nt.Cost, 0), nt.Cost != nil
		if nt.Name == cfg.HeadNodeType {
			spec.IsHead = true
			spec.MinWorkers, spec.MaxWorkers = 1, 1
			c.head = i
		}
		c.byName[nt.Name] = i
		c.types = append(c.types, spec)
	}
	return c, nil
}

// Resolve returns the node type with the given name, or ErrNotFound.
func (c *Catalog) Resolve(name string) (NodeTypeSpec, error) {
	i, ok := c.byName[name]
	if !ok {
		return NodeTypeSpec{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return c.types[i], nil
}

// Has reports whether name is a known node type.
func (c *Catalog) Has(name string) bool {
	_, ok := c.byName[name]
	return ok
}

// All returns every node type in declaration order.
func (c *Catalog) All() []NodeTypeSpec {
	return append([]NodeTypeSpec(nil), c.types...)
}

// HeadType returns the head node type.
func (c *Catalog) HeadType() NodeTypeSpec {
	return c.types[c.head]
}

// Workers returns every non-head node type in declaration order.
func (c *Catalog) Workers() []NodeTypeSpec {
	out := make([]NodeTypeSpec, 0, len(c.types)-1)
	for _, t := range c.types {
		if !t.IsHead {
			out = append(out, t)
		}
	}
	return out
}
