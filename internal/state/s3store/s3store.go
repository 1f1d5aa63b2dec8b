// Package s3store persists cluster state snapshots as a YAML object in an
// S3-compatible bucket.
package s3store

import (
	"context"
	"fmt"

	"github.com/imamik/clusterscaler/internal/platform/s3"
	"github.com/imamik/clusterscaler/internal/state"
	"github.com/imamik/clusterscaler/internal/util/naming"
	"sigs.k8s.io/yaml"
)

// ObjectStore is the subset of the S3 client the persister needs.
type ObjectStore interface {
	PutObject(ctx context.Context, bucket, key string, data []byte) error
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
	DeleteObject(ctx context.Context, bucket, key string) error
}

// BucketManager is the subset of the S3 client that prepares the bucket.
type BucketManager interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	CreateBucket(ctx context.Context, bucket string) error
}

// EnsureBucket creates bucket unless it exists.
func EnsureBucket(ctx context.Context, b BucketManager, bucket string) error {
	ok, err := b.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("failed to check state bucket %s: %w", bucket, err)
	}
	if ok {
		return nil
	}
	if err := b.CreateBucket(ctx, bucket); err != nil {
		return fmt.Errorf("failed to create state bucket %s: %w", bucket, err)
	}
	return nil
}

// Persister stores one snapshot object per cluster.
type Persister struct {
	objects ObjectStore
	bucket  string
	key     string
}

var _ state.Persister = (*Persister)(nil)

// New returns a persister writing to bucket under the cluster's state key.
func New(objects ObjectStore, bucket, cluster string) *Persister {
	return &Persister{objects: objects, bucket: bucket, key: naming.StateObject(cluster)}
}

// Save uploads snap.
func (p *Persister) Save(ctx context.Context, snap state.Snapshot) error {
	data, err := yaml.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode state snapshot: %w", err)
	}
	if err := p.objects.PutObject(ctx, p.bucket, p.key, data); err != nil {
		return fmt.Errorf("failed to save state snapshot: %w", err)
	}
	return nil
}

// Load downloads the last snapshot, or returns state.ErrNoSnapshot.
func (p *Persister) Load(ctx context.Context) (state.Snapshot, error) {
	data, err := p.objects.GetObject(ctx, p.bucket, p.key)
	if err != nil {
		if s3.IsNotFound(err) {
			return state.Snapshot{}, state.ErrNoSnapshot
		}
		return state.Snapshot{}, fmt.Errorf("failed to load state snapshot: %w", err)
	}

	var snap state.Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return state.Snapshot{}, fmt.Errorf("failed to decode state snapshot: %w", err)
	}
	return snap, nil
}

// Clear deletes the snapshot object.
func (p *Persister) Clear(ctx context.Context) error {
	if err := p.objects.DeleteObject(ctx, p.bucket, p.key); err != nil && !s3.IsNotFound(err) {
		return fmt.Errorf("failed to clear state snapshot: %w", err)
	}
	return nil
}
