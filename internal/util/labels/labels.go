package labels

import (
	"maps"
	"sort"
	"strings"
)

// Standard tag keys for cluster nodes.
const (
	// KeyCluster identifies which cluster a node belongs to
	KeyCluster = "clusterscaler.io/cluster"

	// KeyRole identifies the role of a node (head, worker)
	KeyRole = "clusterscaler.io/role"

	// KeyNodeType identifies the node type the node was launched as
	KeyNodeType = "clusterscaler.io/node-type"

	// KeyStatus mirrors the reconciler's lifecycle status onto the provider
	KeyStatus = "clusterscaler.io/status"

	// KeyLaunchHash records the hash of the launch template used for the node
	KeyLaunchHash = "clusterscaler.io/launch-hash"

	// KeyManagedBy identifies the management system
	KeyManagedBy = "clusterscaler.io/managed-by"
)

// Role values
const (
	RoleHead   = "head"
	RoleWorker = "worker"
)

// ManagedBy values
const (
	ManagedByClusterScaler = "clusterscaler"
)

// Status tag values.
const (
	StatusPending      = "pending"
	StatusProvisioning = "provisioning"
	StatusUp           = "up"
	StatusUpdateFailed = "update-failed"
	StatusTerminating  = "terminating"
)

// LabelBuilder provides a fluent interface for building node tag sets.
type LabelBuilder struct {
	labels map[string]string
}

// NewLabelBuilder creates a new label builder with the cluster name pre-set.
func NewLabelBuilder(clusterName string) *LabelBuilder {
	return &LabelBuilder{
		labels: map[string]string{
			KeyCluster:   clusterName,
			KeyManagedBy: ManagedByClusterScaler,
		},
	}
}

// WithRole adds a role label ("head" or "worker").
func (lb *LabelBuilder) WithRole(role string) *LabelBuilder {
	lb.labels[KeyRole] = role
	return lb
}

// WithNodeType adds the node type label.
func (lb *LabelBuilder) WithNodeType(nodeType string) *LabelBuilder {
	lb.labels[KeyNodeType] = nodeType
	return lb
}

// WithStatus sets the lifecycle status label.
func (lb *LabelBuilder) WithStatus(status string) *LabelBuilder {
	lb.labels[KeyStatus] = status
	return lb
}

// WithLaunchHashIfSet adds the launch hash label only if hash is non-empty.
func (lb *LabelBuilder) WithLaunchHashIfSet(hash string) *LabelBuilder {
	if hash != "" {
		lb.labels[KeyLaunchHash] = hash
	}
	return lb
}

// Merge adds all labels from the provided map.
func (lb *LabelBuilder) Merge(extra map[string]string) *LabelBuilder {
	maps.Copy(lb.labels, extra)
	return lb
}

// Build returns a copy of the labels map.
func (lb *LabelBuilder) Build() map[string]string {
	return maps.Clone(lb.labels)
}

// ClusterFilter returns the tag filter selecting every node of a cluster.
func ClusterFilter(clusterName string) map[string]string {
	return map[string]string{KeyCluster: clusterName}
}

// Matches reports whether tags contains every key/value pair of filter.
func Matches(tags, filter map[string]string) bool {
	for k, v := range filter {
		if got, ok := tags[k]; !ok || got != v {
			return false
		}
	}
	return true
}

// Selector renders filter as a label selector string ("k1=v1,k2=v2"),
// with keys sorted so the result is stable.
func Selector(filter map[string]string) string {
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+filter[k])
	}
	return strings.Join(parts, ",")
}
