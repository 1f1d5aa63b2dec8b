package handlers

import (
	"context"
	"errors"
	"sync"
	"testing"

	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/clusterscaler/internal/config"
	"github.com/imamik/clusterscaler/internal/platform/s3"
	"github.com/imamik/clusterscaler/internal/provider"
	"github.com/imamik/clusterscaler/internal/provider/fake"
	"github.com/imamik/clusterscaler/internal/state/s3store"
)

type memoryObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	buckets map[string]bool
}

func newMemoryObjects() *memoryObjects {
	return &memoryObjects{objects: make(map[string][]byte), buckets: make(map[string]bool)}
}

func (m *memoryObjects) BucketExists(_ context.Context, bucket string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buckets[bucket], nil
}

func (m *memoryObjects) CreateBucket(_ context.Context, bucket string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buckets[bucket] = true
	return nil
}

func (m *memoryObjects) DeleteObject(_ context.Context, bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, bucket+"/"+key)
	return nil
}

func (m *memoryObjects) PutObject(_ context.Context, bucket, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[bucket+"/"+key] = data
	return nil
}

func (m *memoryObjects) GetObject(_ context.Context, bucket, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[bucket+"/"+key]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return data, nil
}

func TestDefaultRegistry(t *testing.T) {
	t.Parallel()
	names := defaultRegistry().Names()
	for name := range config.ProviderTypes {
		assert.Contains(t, names, name)
	}
}

func TestOpenSession(t *testing.T) {
	useProvider(t, fake.New(fake.Options{}))
	ctx := context.Background()

	t.Run("no persistence", func(t *testing.T) {
		s, err := openSession(ctx, Options{ConfigPath: writeConfig(t, testDoc)})
		require.NoError(t, err)
		defer s.Close()
		assert.Equal(t, "cli-test", s.cfg.ClusterName)
		assert.NotNil(t, s.reconciler)
		assert.Len(t, s.catalog.All(), 2)
	})

	t.Run("missing config", func(t *testing.T) {
		_, err := openSession(ctx, Options{ConfigPath: "does-not-exist.yaml"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read config file")
	})

	t.Run("invalid config", func(t *testing.T) {
		_, err := openSession(ctx, Options{ConfigPath: writeConfig(t, "cluster_name: x\n")})
		require.Error(t, err)
		assert.True(t, config.IsConfigError(err))
	})

	t.Run("unregistered provider", func(t *testing.T) {
		orig := newProviderRegistry
		defer func() { newProviderRegistry = orig }()
		newProviderRegistry = provider.NewRegistry

		_, err := openSession(ctx, Options{ConfigPath: writeConfig(t, testDoc)})
		require.Error(t, err)
		assert.True(t, config.IsConfigError(err))
	})
}

func TestOpenPersister(t *testing.T) {
	origObjects := newObjectStore
	origEtcd := dialEtcd
	defer func() {
		newObjectStore = origObjects
		dialEtcd = origEtcd
	}()
	ctx := context.Background()

	var gotOpts s3.Options
	objects := newMemoryObjects()
	newObjectStore = func(_ context.Context, opts s3.Options) (objectStore, error) {
		gotOpts = opts
		return objects, nil
	}
	dialEtcd = func([]string) (etcdClient, error) {
		return nil, errors.New("connection refused")
	}

	tests := []struct {
		name    string
		opts    StateOptions
		wantNil bool
		wantErr string
	}{
		{name: "default", opts: StateOptions{}, wantNil: true},
		{name: "none", opts: StateOptions{Backend: StateNone}, wantNil: true},
		{name: "s3", opts: StateOptions{Backend: StateS3, Bucket: "state", Region: "eu-central-1", PathStyle: true}},
		{name: "s3 without bucket", opts: StateOptions{Backend: StateS3}, wantErr: "--s3-bucket is required"},
		{name: "etcd without endpoints", opts: StateOptions{Backend: StateEtcd}, wantErr: "--etcd-endpoints is required"},
		{name: "etcd unreachable", opts: StateOptions{Backend: StateEtcd, EtcdEndpoints: []string{"localhost:2379"}}, wantErr: "connection refused"},
		{name: "unknown", opts: StateOptions{Backend: "consul"}, wantErr: `unknown state backend "consul"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &session{}
			p, err := s.openPersister(ctx, "cli-test", tt.opts)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, p)
				return
			}
			assert.IsType(t, &s3store.Persister{}, p)
		})
	}

	assert.Equal(t, "eu-central-1", gotOpts.Region)
	assert.True(t, gotOpts.PathStyle)
	assert.True(t, objects.buckets["state"], "the state bucket is created on first use")
}

func TestOpenSession_PersistsToS3(t *testing.T) {
	useProvider(t, fake.New(fake.Options{}))
	origObjects := newObjectStore
	defer func() { newObjectStore = origObjects }()

	objects := newMemoryObjects()
	newObjectStore = func(context.Context, s3.Options) (objectStore, error) {
		return objects, nil
	}

	s, err := openSession(context.Background(), Options{
		ConfigPath: writeConfig(t, testDoc),
		State:      StateOptions{Backend: StateS3, Bucket: "state"},
	})
	require.NoError(t, err)
	_, err = s.reconciler.ReconcileOnce(context.Background())
	require.NoError(t, err)
	s.Close()

	objects.mu.Lock()
	defer objects.mu.Unlock()
	assert.Len(t, objects.objects, 1)
}
