// Package handlers implements the business logic of the CLI commands.
//
// Each exported function backs one cobra command from the commands
// package. Collaborators are built through package-level factory
// variables so tests can replace them.
package handlers

import (
	"context"
	"errors"
	"fmt"

	clientv3 "go.etcd.io/etcd/client/v3"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/imamik/clusterscaler/internal/autoscaler"
	"github.com/imamik/clusterscaler/internal/catalog"
	"github.com/imamik/clusterscaler/internal/config"
	"github.com/imamik/clusterscaler/internal/platform/s3"
	"github.com/imamik/clusterscaler/internal/provider"
	"github.com/imamik/clusterscaler/internal/provider/docker"
	"github.com/imamik/clusterscaler/internal/provider/fake"
	"github.com/imamik/clusterscaler/internal/provider/hcloud"
	"github.com/imamik/clusterscaler/internal/provider/kubernetes"
	"github.com/imamik/clusterscaler/internal/provider/openstack"
	"github.com/imamik/clusterscaler/internal/provider/static"
	"github.com/imamik/clusterscaler/internal/state"
	"github.com/imamik/clusterscaler/internal/state/etcdstore"
	"github.com/imamik/clusterscaler/internal/state/s3store"
)

// State backends selectable with --state-backend.
const (
	StateNone = "none"
	StateS3   = "s3"
	StateEtcd = "etcd"
)

// Default provider API limits.
const (
	DefaultProviderQPS   = 10.0
	DefaultProviderBurst = 20
)

// etcdClient is the part of *clientv3.Client the etcd persister needs.
type etcdClient interface {
	clientv3.KV
	Close() error
}

// objectStore is the part of the S3 client the s3 persister needs.
type objectStore interface {
	s3store.ObjectStore
	s3store.BucketManager
}

// Factory function variables - can be replaced in tests.
var (
	loadConfig = config.Load

	newProviderRegistry = defaultRegistry

	newObjectStore = func(ctx context.Context, opts s3.Options) (objectStore, error) {
		return s3.NewClient(ctx, opts)
	}

	dialEtcd = func(endpoints []string) (etcdClient, error) {
		return etcdstore.Dial(endpoints)
	}
)

// Options holds the settings that do not live in the cluster document.
type Options struct {
	ConfigPath    string
	ProviderQPS   float64
	ProviderBurst int
	State         StateOptions
}

// StateOptions selects where state snapshots are persisted.
type StateOptions struct {
	Backend       string
	Bucket        string
	Endpoint      string
	Region        string
	AccessKey     string
	SecretKey     string
	PathStyle     bool
	EtcdEndpoints []string
}

func defaultRegistry() *provider.Registry {
	reg := provider.NewRegistry()
	reg.Register("hcloud", hcloud.Factory)
	reg.Register("kubernetes", kubernetes.Factory)
	reg.Register("docker", docker.Factory)
	reg.Register("openstack", openstack.Factory)
	reg.Register("static", static.Factory)
	reg.Register("fake", fake.Factory)
	return reg
}

// session is a loaded cluster document with a reconciler wired to its
// provider and persister.
type session struct {
	cfg        *config.Config
	catalog    *catalog.Catalog
	reconciler *autoscaler.Reconciler
	closers    []func() error
}

func openSession(ctx context.Context, opts Options) (*session, error) {
	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	cat, err := catalog.New(cfg)
	if err != nil {
		return nil, err
	}

	backend, err := newProviderRegistry().New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	timeouts := config.LoadTimeouts(cfg.Operations)
	qps, burst := opts.ProviderQPS, opts.ProviderBurst
	if qps <= 0 {
		qps = DefaultProviderQPS
	}
	if burst <= 0 {
		burst = DefaultProviderBurst
	}
	p := provider.Wrap(backend, cfg.Provider.Type, qps, burst, timeouts.RetryMaxAttempts, timeouts.RetryInitialDelay)

	s := &session{cfg: cfg, catalog: cat}
	persister, err := s.openPersister(ctx, cfg.ClusterName, opts.State)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.reconciler, err = autoscaler.New(autoscaler.Options{
		Config:    cfg,
		Catalog:   cat,
		Provider:  p,
		Persister: persister,
		Timeouts:  timeouts,
	})
	if err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *session) openPersister(ctx context.Context, cluster string, opts StateOptions) (state.Persister, error) {
	switch opts.Backend {
	case "", StateNone:
		return nil, nil
	case StateS3:
		if opts.Bucket == "" {
			return nil, errors.New("--s3-bucket is required for the s3 state backend")
		}
		objects, err := newObjectStore(ctx, s3.Options{
			Endpoint:  opts.Endpoint,
			Region:    opts.Region,
			AccessKey: opts.AccessKey,
			SecretKey: opts.SecretKey,
			PathStyle: opts.PathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3store.EnsureBucket(ctx, objects, opts.Bucket); err != nil {
			return nil, err
		}
		log.FromContext(ctx).V(1).Info("persisting state in s3", "bucket", opts.Bucket)
		return s3store.New(objects, opts.Bucket, cluster), nil
	case StateEtcd:
		if len(opts.EtcdEndpoints) == 0 {
			return nil, errors.New("--etcd-endpoints is required for the etcd state backend")
		}
		cli, err := dialEtcd(opts.EtcdEndpoints)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, cli.Close)
		log.FromContext(ctx).V(1).Info("persisting state in etcd", "endpoints", opts.EtcdEndpoints)
		return etcdstore.New(cli, cluster), nil
	default:
		return nil, fmt.Errorf("unknown state backend %q (valid: %s, %s, %s)", opts.Backend, StateNone, StateS3, StateEtcd)
	}
}

// Close stops in-flight workflows and releases backend connections.
func (s *session) Close() {
	if s.reconciler != nil {
		s.reconciler.Stop()
		s.reconciler.Wait()
	}
	for _, c := range s.closers {
		_ = c()
	}
}
