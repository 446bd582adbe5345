package cluster

import (
	"context"
	"strings"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/toyamagu-2021/gitops-sync-controller/internal/gitops"
)

// Interface is the narrow cluster API surface used by the state reader and
// the sync executor: typed get/create/update/delete on (kind, namespace,
// name) with optimistic-concurrency semantics supplied by the server.
type Interface interface {
	Get(ctx context.Context, ref gitops.ResourceRef) (*unstructured.Unstructured, error)
	Create(ctx context.Context, obj *unstructured.Unstructured) (*unstructured.Unstructured, error)
	Update(ctx context.Context, obj *unstructured.Unstructured) (*unstructured.Unstructured, error)
	Delete(ctx context.Context, ref gitops.ResourceRef) error
}

// Client wraps a dynamic Kubernetes client. The dynamic client is shared
// read/write across all applications' reader and executor stages.
type Client struct {
	dyn dynamic.Interface
}

// New builds a client from a kubeconfig path. An empty path falls back to
// the default loading rules (KUBECONFIG, ~/.kube/config, in-cluster).
func New(kubeconfig string) (*Client, error) {
	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	if kubeconfig != "" {
		loadingRules.ExplicitPath = kubeconfig
	}

	restConfig, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
		loadingRules, &clientcmd.ConfigOverrides{},
	).ClientConfig()
	if err != nil {
		return nil, err
	}

	dyn, err := dynamic.NewForConfig(restConfig)
	if err != nil {
		return nil, err
	}

	return &Client{dyn: dyn}, nil
}

// NewWithDynamic wraps an existing dynamic client (for testing).
func NewWithDynamic(dyn dynamic.Interface) *Client {
	return &Client{dyn: dyn}
}

func (c *Client) Get(ctx context.Context, ref gitops.ResourceRef) (*unstructured.Unstructured, error) {
	return c.resource(ref).Get(ctx, ref.Name, metav1.GetOptions{})
}

func (c *Client) Create(ctx context.Context, obj *unstructured.Unstructured) (*unstructured.Unstructured, error) {
	return c.resource(gitops.RefFor(obj)).Create(ctx, obj, metav1.CreateOptions{})
}

func (c *Client) Update(ctx context.Context, obj *unstructured.Unstructured) (*unstructured.Unstructured, error) {
	return c.resource(gitops.RefFor(obj)).Update(ctx, obj, metav1.UpdateOptions{})
}

func (c *Client) Delete(ctx context.Context, ref gitops.ResourceRef) error {
	return c.resource(ref).Delete(ctx, ref.Name, metav1.DeleteOptions{})
}

func (c *Client) resource(ref gitops.ResourceRef) dynamic.ResourceInterface {
	gvr := ResourceFor(ref.APIVersion, ref.Kind)
	if gitops.IsClusterScoped(ref.Kind) {
		return c.dyn.Resource(gvr)
	}
	return c.dyn.Resource(gvr).Namespace(ref.Namespace)
}

// irregularPlurals covers kinds whose lowercase plural is not kind+"s".
var irregularPlurals = map[string]string{
	"Ingress":           "ingresses",
	"IngressClass":      "ingressclasses",
	"NetworkPolicy":     "networkpolicies",
	"Endpoints":         "endpoints",
	"PodSecurityPolicy": "podsecuritypolicies",
	"StorageClass":      "storageclasses",
	"PriorityClass":     "priorityclasses",
}

// ResourceFor maps apiVersion/kind to the GroupVersionResource used by the
// dynamic client. Kinds outside the irregular table pluralize as lowercase
// kind + "s".
func ResourceFor(apiVersion, kind string) schema.GroupVersionResource {
	gv, err := schema.ParseGroupVersion(apiVersion)
	if err != nil {
		gv = schema.GroupVersion{Version: apiVersion}
	}

	resource, ok := irregularPlurals[kind]
	if !ok {
		resource = strings.ToLower(kind) + "s"
	}
	return gv.WithResource(resource)
}

var _ Interface = (*Client)(nil)
