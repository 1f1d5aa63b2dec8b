package state

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Store is the cluster state store.
type Store interface {
	// List returns copies of all records ordered by creation time, then id.
	List() []NodeRecord
	Get(id string) (NodeRecord, bool)
	Upsert(record NodeRecord)
	Remove(id string)
	MarkHeartbeat(id string, at time.Time)
	MarkUsed(id string, at time.Time)
}

// Snapshot is a point-in-time copy of the store.
type Snapshot struct {
	Cluster string       `json:"cluster"`
	Taken   time.Time    `json:"taken"`
	Nodes   []NodeRecord `json:"nodes"`
}

// ErrNoSnapshot is returned by a Persister when nothing was saved yet.
var ErrNoSnapshot = errors.New("no state snapshot found")

// Persister saves and loads store snapshots.
type Persister interface {
	Save(ctx context.Context, snap Snapshot) error
	Load(ctx context.Context) (Snapshot, error)
	// Clear removes the saved snapshot. Clearing nothing succeeds.
	Clear(ctx context.Context) error
}

// MemoryStore is an in-memory Store safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	nodes map[string]NodeRecord
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nodes: make(map[string]NodeRecord)}
}

func (s *MemoryStore) List() []NodeRecord {
	s.mu.RLock()
	out := make([]NodeRecord, 0, len(s.nodes))
	for _, r := range s.nodes {
		out = append(out, r.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *MemoryStore) Get(id string) (NodeRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.nodes[id]
	if !ok {
		return NodeRecord{}, false
	}
	return r.Clone(), true
}

// Upsert inserts or replaces a record. The node type of an existing record
// never changes.
func (s *MemoryStore) Upsert(record NodeRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.nodes[record.ID]; ok && existing.NodeType != "" {
		record.NodeType = existing.NodeType
	}
	s.nodes[record.ID] = record.Clone()
}

func (s *MemoryStore) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.nodes, id)
}

// MarkHeartbeat records a heartbeat for a known node. Unknown ids are ignored.
func (s *MemoryStore) MarkHeartbeat(id string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.nodes[id]; ok && at.After(r.LastHeartbeat) {
		r.LastHeartbeat = at
		s.nodes[id] = r
	}
}

// MarkUsed resets idleness of a known node. Unknown ids are ignored.
func (s *MemoryStore) MarkUsed(id string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.nodes[id]; ok && at.After(r.LastUsed) {
		r.LastUsed = at
		s.nodes[id] = r
	}
}

// Snapshot returns a copy of every record.
func (s *MemoryStore) Snapshot(cluster string, at time.Time) Snapshot {
	return Snapshot{Cluster: cluster, Taken: at, Nodes: s.List()}
}

// Restore replaces the store contents with snap.
func (s *MemoryStore) Restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes = make(map[string]NodeRecord, len(snap.Nodes))
	for _, r := range snap.Nodes {
		s.nodes[r.ID] = r.Clone()
	}
}

// Len returns the number of records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// Seed restores the store from p. A missing snapshot is not an error.
func Seed(ctx context.Context, s *MemoryStore, p Persister) error {
	snap, err := p.Load(ctx)
	if errors.Is(err, ErrNoSnapshot) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load state snapshot: %w", err)
	}
	s.Restore(snap)
	return nil
}
