// Package etcdstore persists cluster state snapshots in etcd, one JSON
// value per node under a cluster-scoped key prefix.
package etcdstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/imamik/clusterscaler/internal/state"
	"github.com/imamik/clusterscaler/internal/util/naming"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// Persister writes snapshots with a single transaction so readers never see
// a mix of two snapshots.
type Persister struct {
	kv      clientv3.KV
	cluster string
	prefix  string
}

var _ state.Persister = (*Persister)(nil)

// Dial connects to etcd.
func Dial(endpoints []string) (*clientv3.Client, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}
	return cli, nil
}

// New returns a persister for cluster.
func New(kv clientv3.KV, cluster string) *Persister {
	return &Persister{kv: kv, cluster: cluster, prefix: naming.StatePrefix(cluster)}
}

// Save replaces every stored node with the records in snap.
func (p *Persister) Save(ctx context.Context, snap state.Snapshot) error {
	ops := make([]clientv3.Op, 0, len(snap.Nodes)+1)
	ops = append(ops, clientv3.OpDelete(p.prefix, clientv3.WithPrefix()))
	for _, r := range snap.Nodes {
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("failed to encode node %s: %w", r.ID, err)
		}
		ops = append(ops, clientv3.OpPut(p.prefix+r.ID, string(data)))
	}

	if _, err := p.kv.Txn(ctx).Then(ops...).Commit(); err != nil {
		return fmt.Errorf("failed to save state snapshot: %w", err)
	}
	return nil
}

// Load reads every stored node. An empty prefix yields state.ErrNoSnapshot.
func (p *Persister) Load(ctx context.Context) (state.Snapshot, error) {
	resp, err := p.kv.Get(ctx, p.prefix, clientv3.WithPrefix())
	if err != nil {
		return state.Snapshot{}, fmt.Errorf("failed to load state snapshot: %w", err)
	}
	if len(resp.Kvs) == 0 {
		return state.Snapshot{}, state.ErrNoSnapshot
	}

	snap := state.Snapshot{Cluster: p.cluster, Nodes: make([]state.NodeRecord, 0, len(resp.Kvs))}
	for _, kv := range resp.Kvs {
		var r state.NodeRecord
		if err := json.Unmarshal(kv.Value, &r); err != nil {
			return state.Snapshot{}, fmt.Errorf("failed to decode %s: %w", kv.Key, err)
		}
		if r.ID == "" {
			r.ID = strings.TrimPrefix(string(kv.Key), p.prefix)
		}
		snap.Nodes = append(snap.Nodes, r)
	}
	return snap, nil
}

// Clear deletes every stored node of the cluster.
func (p *Persister) Clear(ctx context.Context) error {
	if _, err := p.kv.Txn(ctx).Then(clientv3.OpDelete(p.prefix, clientv3.WithPrefix())).Commit(); err != nil {
		return fmt.Errorf("failed to clear state snapshot: %w", err)
	}
	return nil
}
