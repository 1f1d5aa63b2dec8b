package state

import (
	"maps"
	"time"

	"github.com/imamik/clusterscaler/internal/util/labels"
)

// Status is the lifecycle status of a node.
type Status string

const (
	// StatusPending means the launch was requested and the node is not yet reachable.
	StatusPending Status = "pending"
	// StatusProvisioning means the node is reachable and running setup/start commands.
	StatusProvisioning Status = "provisioning"
	// StatusUp means the node is serving.
	StatusUp Status = "up"
	// StatusIdle means the node is up but has reported no usage for the idle timeout.
	StatusIdle Status = "idle"
	// StatusTerminating means termination was requested.
	StatusTerminating Status = "terminating"
)

// AllStatuses lists every status in lifecycle order.
func AllStatuses() []Status {
	return []Status{StatusPending, StatusProvisioning, StatusUp, StatusIdle, StatusTerminating}
}

// Launching reports whether the node has not reached Up yet.
func (s Status) Launching() bool {
	return s == StatusPending || s == StatusProvisioning
}

// Active reports whether the node counts toward its type's running count.
func (s Status) Active() bool {
	return s != StatusTerminating
}

// StatusFromTag maps a provider status tag back to a Status. Unknown or
// missing tags map to Up; update-failed maps to Terminating.
func StatusFromTag(tag string) Status {
	switch tag {
	case labels.StatusPending:
		return StatusPending
	case labels.StatusProvisioning:
		return StatusProvisioning
	case labels.StatusTerminating, labels.StatusUpdateFailed:
		return StatusTerminating
	default:
		return StatusUp
	}
}

// NodeRecord is the store's view of one node.
type NodeRecord struct {
	ID            string            `json:"id"`
	NodeType      string            `json:"nodeType"`
	Tags          map[string]string `json:"tags,omitempty"`
	Status        Status            `json:"status"`
	CreatedAt     time.Time         `json:"createdAt"`
	LastHeartbeat time.Time         `json:"lastHeartbeat,omitempty"`
	LastUsed      time.Time         `json:"lastUsed,omitempty"`
	// Reason records why the node entered Terminating.
	Reason string `json:"reason,omitempty"`
}

// IsHead reports whether the record is tagged as the head node.
func (r NodeRecord) IsHead() bool {
	return r.Tags[labels.KeyRole] == labels.RoleHead
}

// Clone returns a deep copy of r.
func (r NodeRecord) Clone() NodeRecord {
	r.Tags = maps.Clone(r.Tags)
	return r
}

// LastActive returns the most recent of LastUsed and CreatedAt. A node that
// never reported usage is considered active from its creation.
func (r NodeRecord) LastActive() time.Time {
	if r.LastUsed.After(r.CreatedAt) {
		return r.LastUsed
	}
	return r.CreatedAt
}
