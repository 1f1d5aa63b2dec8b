// Package kubernetes is the node provider that runs cluster nodes as pods.
// Pod labels carry the node tags and commands run through the exec
// subresource.
package kubernetes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	k8slabels "k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/tools/remotecommand"
	"k8s.io/client-go/util/exec"
	ctrlconfig "sigs.k8s.io/controller-runtime/pkg/client/config"

	"github.com/imamik/clusterscaler/internal/config"
	"github.com/imamik/clusterscaler/internal/provider"
	"github.com/imamik/clusterscaler/internal/util/labels"
	"github.com/imamik/clusterscaler/internal/util/naming"
)

const (
	defaultNamespace = "default"
	defaultContainer = "node"
)

// Options are the provider-specific keys of the "kubernetes" provider type.
type Options struct {
	Namespace string `mapstructure:"namespace"`
	// Kubeconfig is a path. When empty the in-cluster or default
	// kubeconfig is used.
	Kubeconfig string `mapstructure:"kubeconfig"`
	// Container is the container commands are executed in.
	Container string `mapstructure:"container"`
}

// Executor runs a command inside a pod container.
type Executor interface {
	Exec(ctx context.Context, namespace, pod, container string, command []string) (provider.CommandResult, error)
}

// Provider implements provider.Provider on a Kubernetes namespace.
type Provider struct {
	client kubernetes.Interface
	exec   Executor
	opts   Options
}

var _ provider.Provider = (*Provider)(nil)

// New returns a provider operating on pods through client.
func New(client kubernetes.Interface, executor Executor, opts Options) *Provider {
	if opts.Namespace == "" {
		opts.Namespace = defaultNamespace
	}
	if opts.Container == "" {
		opts.Container = defaultContainer
	}
	return &Provider{client: client, exec: executor, opts: opts}
}

// Factory builds the provider from the cluster document.
func Factory(_ context.Context, cfg *config.Config) (provider.Provider, error) {
	var opts Options
	if err := cfg.Provider.Decode(&opts); err != nil {
		return nil, err
	}

	restConfig, err := restConfig(opts.Kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("failed to load kubeconfig: %w", err)
	}
	client, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes client: %w", err)
	}
	return New(client, &SPDYExecutor{Client: client, Config: restConfig}, opts), nil
}

func restConfig(path string) (*rest.Config, error) {
	if path != "" {
		return clientcmd.BuildConfigFromFlags("", path)
	}
	return ctrlconfig.GetConfig()
}

func (p *Provider) ListNodes(ctx context.Context, filter map[string]string) ([]provider.Node, error) {
	pods, err := p.client.CoreV1().Pods(p.opts.Namespace).List(ctx, metav1.ListOptions{
		LabelSelector: k8slabels.SelectorFromSet(filter).String(),
	})
	if err != nil {
		return nil, classify("list pods", err)
	}
	nodes := make([]provider.Node, 0, len(pods.Items))
	for i := range pods.Items {
		pod := &pods.Items[i]
		nodes = append(nodes, provider.Node{
			ID:      pod.Name,
			Name:    pod.Name,
			Tags:    maps.Clone(pod.Labels),
			Running: pod.DeletionTimestamp == nil && pod.Status.Phase != corev1.PodSucceeded && pod.Status.Phase != corev1.PodFailed,
			Address: pod.Status.PodIP,
		})
	}
	return nodes, nil
}

func (p *Provider) CreateNodes(ctx context.Context, req provider.LaunchRequest) ([]string, error) {
	spec, err := podSpec(req.Template)
	if err != nil {
		return nil, provider.Fatal("create pods", fmt.Errorf("invalid node_config for %s: %w", req.NodeType, err))
	}

	cluster := req.Tags[labels.KeyCluster]
	ids := make([]string, 0, req.Count)
	for range req.Count {
		pod := &corev1.Pod{
			ObjectMeta: metav1.ObjectMeta{
				Name:      naming.Node(cluster, req.NodeType),
				Namespace: p.opts.Namespace,
				Labels:    maps.Clone(req.Tags),
			},
			Spec: *spec.DeepCopy(),
		}
		created, err := p.client.CoreV1().Pods(p.opts.Namespace).Create(ctx, pod, metav1.CreateOptions{})
		if err != nil {
			return ids, classify("create pod "+pod.Name, err)
		}
		ids = append(ids, created.Name)
	}
	return ids, nil
}

func (p *Provider) TerminateNode(ctx context.Context, id string) error {
	err := p.client.CoreV1().Pods(p.opts.Namespace).Delete(ctx, id, metav1.DeleteOptions{})
	if apierrors.IsNotFound(err) {
		return nil
	}
	return classify("delete pod "+id, err)
}

func (p *Provider) SetNodeTags(ctx context.Context, id string, tags map[string]string) error {
	patch, err := json.Marshal(map[string]any{"metadata": map[string]any{"labels": tags}})
	if err != nil {
		return err
	}
	_, err = p.client.CoreV1().Pods(p.opts.Namespace).Patch(ctx, id, types.MergePatchType, patch, metav1.PatchOptions{})
	return classify("label pod "+id, err)
}

func (p *Provider) RunCommand(ctx context.Context, id, command string, timeout time.Duration) (provider.CommandResult, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return p.exec.Exec(ctx, p.opts.Namespace, id, p.opts.Container, []string{"sh", "-c", command})
}

func (p *Provider) IsRunning(ctx context.Context, id string) (bool, error) {
	pod, err := p.client.CoreV1().Pods(p.opts.Namespace).Get(ctx, id, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, classify("get pod "+id, err)
	}
	if pod.Status.Phase != corev1.PodRunning {
		return false, nil
	}
	for _, c := range pod.Status.Conditions {
		if c.Type == corev1.PodReady {
			return c.Status == corev1.ConditionTrue, nil
		}
	}
	return false, nil
}

// podSpec decodes a node_config map into a PodSpec.
func podSpec(template map[string]any) (*corev1.PodSpec, error) {
	raw, err := json.Marshal(template)
	if err != nil {
		return nil, err
	}
	var spec corev1.PodSpec
	if err := json.Unmarshal(raw, &spec); err != nil {
		return nil, err
	}
	if len(spec.Containers) == 0 {
		return nil, errors.New("pod spec has no containers")
	}
	return &spec, nil
}

// classify maps API errors onto the provider error taxonomy.
func classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case apierrors.IsNotFound(err):
		return fmt.Errorf("%s: %w", op, provider.ErrNotFound)
	case apierrors.IsTooManyRequests(err), apierrors.IsServerTimeout(err), apierrors.IsTimeout(err),
		apierrors.IsServiceUnavailable(err), apierrors.IsConflict(err), apierrors.IsInternalError(err):
		return provider.Transient(op, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// SPDYExecutor runs commands through the pods/exec subresource.
type SPDYExecutor struct {
	Client kubernetes.Interface
	Config *rest.Config
}

// Exec implements Executor.
func (e *SPDYExecutor) Exec(ctx context.Context, namespace, pod, container string, command []string) (provider.CommandResult, error) {
	req := e.Client.CoreV1().RESTClient().Post().
		Resource("pods").
		Namespace(namespace).
		Name(pod).
		SubResource("exec").
		VersionedParams(&corev1.PodExecOptions{
			Container: container,
			Command:   command,
			Stdout:    true,
			Stderr:    true,
		}, scheme.ParameterCodec)

	executor, err := remotecommand.NewSPDYExecutor(e.Config, "POST", req.URL())
	if err != nil {
		return provider.CommandResult{}, fmt.Errorf("failed to create executor: %w", err)
	}

	var output bytes.Buffer
	err = executor.StreamWithContext(ctx, remotecommand.StreamOptions{Stdout: &output, Stderr: &output})
	var exitErr exec.CodeExitError
	switch {
	case err == nil:
		return provider.CommandResult{Output: output.String()}, nil
	case errors.As(err, &exitErr):
		return provider.CommandResult{ExitCode: exitErr.ExitStatus(), Output: output.String()}, nil
	default:
		return provider.CommandResult{Output: output.String()}, fmt.Errorf("exec in %s/%s failed: %w", namespace, pod, err)
	}
}
