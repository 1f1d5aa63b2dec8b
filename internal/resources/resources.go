// Package resources models resource vectors: named quantities such as CPU,
// memory or custom labels that nodes offer and workloads request.
package resources

import (
	"fmt"
	"maps"
	"math"
	"sort"
	"strings"
)

// Vector maps a resource name to a quantity.
type Vector map[string]float64

// Demand is a resource request repeated Count times.
type Demand struct {
	Resources Vector `json:"resources" yaml:"resources"`
	Count     int    `json:"count" yaml:"count"`
}

// Clone returns a copy of v.
func (v Vector) Clone() Vector {
	if v == nil {
		return Vector{}
	}
	return maps.Clone(v)
}

// IsZero reports whether every quantity in v is zero.
func (v Vector) IsZero() bool {
	for _, q := range v {
		if q != 0 {
			return false
		}
	}
	return true
}

// Fits reports whether request can be served out of v.
func (v Vector) Fits(request Vector) bool {
	for name, q := range request {
		if q <= 0 {
			continue
		}
		if v[name] < q {
			return false
		}
	}
	return true
}

// Sub subtracts request from v in place.
func (v Vector) Sub(request Vector) {
	for name, q := range request {
		v[name] -= q
	}
}

// Add adds other to v in place.
func (v Vector) Add(other Vector) {
	for name, q := range other {
		v[name] += q
	}
}

// Validate returns an error when any quantity is negative or not finite.
func (v Vector) Validate() error {
	for _, name := range v.Names() {
		q := v[name]
		if math.IsNaN(q) || math.IsInf(q, 0) || q < 0 {
			return fmt.Errorf("resource %q has invalid quantity %v", name, q)
		}
	}
	return nil
}

// Names returns the resource names of v in sorted order.
func (v Vector) Names() []string {
	names := make([]string, 0, len(v))
	for name := range v {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// String renders v deterministically, e.g. "{CPU: 2, GPU: 1}".
func (v Vector) String() string {
	parts := make([]string, 0, len(v))
	for _, name := range v.Names() {
		parts = append(parts, fmt.Sprintf("%s: %g", name, v[name]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// PerNode returns how many copies of request a single node with capacity
// can hold. A request with no positive quantity fits an unbounded number of
// times; math.MaxInt is returned in that case.
func PerNode(capacity, request Vector) int {
	perNode := math.MaxInt
	for name, q := range request {
		if q <= 0 {
			continue
		}
		n := int(math.Floor(capacity[name]/q + 1e-9))
		if n < perNode {
			perNode = n
		}
	}
	return perNode
}

// NodesNeeded returns how many nodes with capacity are needed to host count
// copies of request, or -1 if request does not fit a node at all.
func NodesNeeded(capacity, request Vector, count int) int {
	if count <= 0 {
		return 0
	}
	perNode := PerNode(capacity, request)
	if perNode <= 0 {
		return -1
	}
	if perNode == math.MaxInt {
		return 1
	}
	return (count + perNode - 1) / perNode
}

// Compact groups identical request vectors into Demand entries, preserving
// first-seen order.
func Compact(requests []Vector) []Demand {
	var out []Demand
	index := map[string]int{}
	for _, r := range requests {
		key := r.String()
		if i, ok := index[key]; ok {
			out[i].Count++
			continue
		}
		index[key] = len(out)
		out = append(out, Demand{Resources: r.Clone(), Count: 1})
	}
	return out
}
