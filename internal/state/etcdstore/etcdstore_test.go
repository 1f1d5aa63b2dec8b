package etcdstore

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/imamik/clusterscaler/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// fakeKV implements the parts of clientv3.KV the persister uses.
type fakeKV struct {
	clientv3.KV

	mu   sync.Mutex
	data map[string]string
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: map[string]string{}}
}

func inRange(key string, op clientv3.Op) bool {
	start, end := op.KeyBytes(), op.RangeBytes()
	if len(end) == 0 {
		return key == string(start)
	}
	return bytes.Compare([]byte(key), start) >= 0 && bytes.Compare([]byte(key), end) < 0
}

func (f *fakeKV) Get(_ context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	op := clientv3.OpGet(key, opts...)

	keys := make([]string, 0, len(f.data))
	for k := range f.data {
		if inRange(k, op) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	resp := &clientv3.GetResponse{}
	for _, k := range keys {
		resp.Kvs = append(resp.Kvs, &mvccpb.KeyValue{Key: []byte(k), Value: []byte(f.data[k])})
	}
	resp.Count = int64(len(resp.Kvs))
	return resp, nil
}

func (f *fakeKV) Txn(_ context.Context) clientv3.Txn {
	return &fakeTxn{kv: f}
}

type fakeTxn struct {
	kv  *fakeKV
	ops []clientv3.Op
}

func (t *fakeTxn) If(...clientv3.Cmp) clientv3.Txn { return t }
func (t *fakeTxn) Else(...clientv3.Op) clientv3.Txn { return t }

func (t *fakeTxn) Then(ops ...clientv3.Op) clientv3.Txn {
	t.ops = append(t.ops, ops...)
	return t
}

func (t *fakeTxn) Commit() (*clientv3.TxnResponse, error) {
	t.kv.mu.Lock()
	defer t.kv.mu.Unlock()
	for _, op := range t.ops {
		switch {
		case op.IsDelete():
			for k := range t.kv.data {
				if inRange(k, op) {
					delete(t.kv.data, k)
				}
			}
		case op.IsPut():
			t.kv.data[string(op.KeyBytes())] = string(op.ValueBytes())
		}
	}
	return &clientv3.TxnResponse{Succeeded: true}, nil
}

func TestPersister_SaveLoad(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kv := newFakeKV()
	kv.data["/clusterscaler/other/nodes/x"] = `{"id":"x"}`
	p := New(kv, "demo")

	created := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	first := state.Snapshot{Nodes: []state.NodeRecord{
		{ID: "a", NodeType: "worker", Status: state.StatusUp, CreatedAt: created},
		{ID: "b", NodeType: "worker", Status: state.StatusPending, CreatedAt: created},
	}}
	require.NoError(t, p.Save(ctx, first))

	second := state.Snapshot{Nodes: []state.NodeRecord{
		{ID: "b", NodeType: "worker", Status: state.StatusUp, CreatedAt: created},
	}}
	require.NoError(t, p.Save(ctx, second))

	got, err := p.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "demo", got.Cluster)
	require.Len(t, got.Nodes, 1)
	assert.Equal(t, "b", got.Nodes[0].ID)
	assert.Equal(t, state.StatusUp, got.Nodes[0].Status)
	assert.Contains(t, kv.data, "/clusterscaler/other/nodes/x", "other clusters are untouched")
}

func TestPersister_LoadEmpty(t *testing.T) {
	t.Parallel()
	_, err := New(newFakeKV(), "demo").Load(context.Background())
	assert.ErrorIs(t, err, state.ErrNoSnapshot)
}

func TestPersister_LoadCorrupt(t *testing.T) {
	t.Parallel()
	kv := newFakeKV()
	kv.data["/clusterscaler/demo/nodes/a"] = "{"
	_, err := New(kv, "demo").Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode")
}

func TestPersister_Clear(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kv := newFakeKV()
	kv.data["/clusterscaler/other/nodes/x"] = `{"id":"x"}`
	p := New(kv, "demo")

	require.NoError(t, p.Save(ctx, state.Snapshot{Nodes: []state.NodeRecord{{ID: "a", NodeType: "worker"}}}))
	require.NoError(t, p.Clear(ctx))

	_, err := p.Load(ctx)
	assert.ErrorIs(t, err, state.ErrNoSnapshot)
	assert.Contains(t, kv.data, "/clusterscaler/other/nodes/x")
}
