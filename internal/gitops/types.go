package gitops

import (
	"fmt"
	"strings"
	"time"

	"github.com/argoproj/gitops-engine/pkg/utils/kube"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// SyncPolicy controls whether an application reconciles on a schedule or
// only on an explicit trigger.
type SyncPolicy string

const (
	SyncPolicyManual    SyncPolicy = "manual"
	SyncPolicyAutomatic SyncPolicy = "automatic"
)

// SyncStatus is the application-level sync state.
type SyncStatus string

const (
	SyncStatusUnknown   SyncStatus = "Unknown"
	SyncStatusSynced    SyncStatus = "Synced"
	SyncStatusOutOfSync SyncStatus = "OutOfSync"
	SyncStatusSyncing   SyncStatus = "Syncing"
	SyncStatusFailed    SyncStatus = "Failed"
)

// PatchOp is the operation a single patch performs against the cluster.
type PatchOp string

const (
	PatchOpCreate PatchOp = "Create"
	PatchOpUpdate PatchOp = "Update"
	PatchOpDelete PatchOp = "Delete"
)

// Stage names used in SyncResult to identify where a pass failed.
const (
	StageFetch = "fetch"
	StageRead  = "read"
	StageDiff  = "diff"
	StageApply = "apply"
)

// ApplicationConfig is the operator-provided configuration for one
// registered application.
type ApplicationConfig struct {
	Name                string     `json:"name"`
	RepoURL             string     `json:"repoURL"`
	RepoPath            string     `json:"repoPath"`
	Revision            string     `json:"revision"`
	TargetNamespace     string     `json:"targetNamespace"`
	SyncPolicy          SyncPolicy `json:"syncPolicy"`
	PollIntervalSeconds int        `json:"pollIntervalSeconds"`
	RetryBound          int        `json:"retryBound"`
	HistoryDepth        int        `json:"historyDepth"`
}

// Defaults applied at registration time.
const (
	DefaultRevision            = "main"
	DefaultPollIntervalSeconds = 180
	DefaultRetryBound          = 3
	DefaultHistoryDepth        = 20
)

// ApplyDefaults fills zero-valued optional fields.
func (c *ApplicationConfig) ApplyDefaults() {
	if c.Revision == "" {
		c.Revision = DefaultRevision
	}
	if c.SyncPolicy == "" {
		c.SyncPolicy = SyncPolicyAutomatic
	}
	if c.PollIntervalSeconds <= 0 {
		c.PollIntervalSeconds = DefaultPollIntervalSeconds
	}
	if c.RetryBound <= 0 {
		c.RetryBound = DefaultRetryBound
	}
	if c.HistoryDepth <= 0 {
		c.HistoryDepth = DefaultHistoryDepth
	}
}

// Validate checks required fields and enum values.
func (c *ApplicationConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("application name is required")
	}
	if c.RepoURL == "" {
		return fmt.Errorf("repoURL is required")
	}
	switch c.SyncPolicy {
	case SyncPolicyManual, SyncPolicyAutomatic, "":
	default:
		return fmt.Errorf("syncPolicy must be %q or %q", SyncPolicyManual, SyncPolicyAutomatic)
	}
	return nil
}

// Application is a registered application plus its current controller state.
// Mutated only by the reconciliation loop.
type Application struct {
	Config           ApplicationConfig `json:"config"`
	Status           SyncStatus        `json:"status"`
	LastSeenRevision string            `json:"lastSeenRevision,omitempty"`
	LastSyncedAt     *time.Time        `json:"lastSyncedAt,omitempty"`
}

// Name returns the application identifier.
func (a *Application) Name() string {
	return a.Config.Name
}

// PollInterval returns the configured poll interval as a duration.
func (a *Application) PollInterval() time.Duration {
	return time.Duration(a.Config.PollIntervalSeconds) * time.Second
}

// DeepCopy returns an independent snapshot of the application.
func (a *Application) DeepCopy() *Application {
	out := *a
	if a.LastSyncedAt != nil {
		t := *a.LastSyncedAt
		out.LastSyncedAt = &t
	}
	return &out
}

// ResourceRef identifies one cluster resource.
type ResourceRef struct {
	APIVersion string `json:"apiVersion"`
	Kind       string `json:"kind"`
	Namespace  string `json:"namespace,omitempty"`
	Name       string `json:"name"`
}

// RefFor builds a ResourceRef from a manifest.
func RefFor(obj *unstructured.Unstructured) ResourceRef {
	return ResourceRef{
		APIVersion: obj.GetAPIVersion(),
		Kind:       obj.GetKind(),
		Namespace:  obj.GetNamespace(),
		Name:       obj.GetName(),
	}
}

// Key returns the diffing key for this reference.
func (r ResourceRef) Key() kube.ResourceKey {
	group := ""
	if i := strings.Index(r.APIVersion, "/"); i >= 0 {
		group = r.APIVersion[:i]
	}
	return kube.ResourceKey{Group: group, Kind: r.Kind, Namespace: r.Namespace, Name: r.Name}
}

func (r ResourceRef) String() string {
	if r.Namespace == "" {
		return fmt.Sprintf("%s/%s", r.Kind, r.Name)
	}
	return fmt.Sprintf("%s/%s/%s", r.Kind, r.Namespace, r.Name)
}

// DesiredState is the manifest set fetched at one revision. Immutable once
// built; superseded by a newer fetch, never mutated in place.
type DesiredState struct {
	Revision  string
	Resources []*unstructured.Unstructured
}

// Refs returns references for every resource in declaration order.
func (d *DesiredState) Refs() []ResourceRef {
	refs := make([]ResourceRef, 0, len(d.Resources))
	for _, obj := range d.Resources {
		refs = append(refs, RefFor(obj))
	}
	return refs
}

// LiveState is a read-only snapshot of cluster state taken at reconciliation
// time. A reference absent from Resources means the resource does not exist.
type LiveState struct {
	Resources map[kube.ResourceKey]*unstructured.Unstructured
}

// Patch is one resource operation derived from a single revision's diff.
type Patch struct {
	Op       PatchOp
	Ref      ResourceRef
	Body     *unstructured.Unstructured
	Revision string
}

// PatchResult records one applied patch inside a SyncResult.
type PatchResult struct {
	Op  PatchOp     `json:"op"`
	Ref ResourceRef `json:"ref"`
}

// SyncFailure records one failed patch or stage with enough context for an
// operator to diagnose without re-running the pass.
type SyncFailure struct {
	Ref     *ResourceRef `json:"ref,omitempty"`
	Message string       `json:"message"`
}

// SyncResult is the outcome of one reconciliation pass.
type SyncResult struct {
	Revision   string        `json:"revision"`
	Phase      SyncStatus    `json:"phase"`
	Stage      string        `json:"stage,omitempty"`
	Applied    []PatchResult `json:"applied,omitempty"`
	Failures   []SyncFailure `json:"failures,omitempty"`
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt"`
}

// Succeeded reports whether the pass converged fully.
func (r *SyncResult) Succeeded() bool {
	return r.Phase == SyncStatusSynced
}

// clusterScopedKinds covers the kinds this controller manages that live
// outside any namespace.
var clusterScopedKinds = map[string]bool{
	"Namespace":                true,
	"Node":                     true,
	"PersistentVolume":         true,
	"ClusterRole":              true,
	"ClusterRoleBinding":       true,
	"CustomResourceDefinition": true,
	"StorageClass":             true,
	"PriorityClass":            true,
}

// IsClusterScoped reports whether the kind is cluster-scoped.
func IsClusterScoped(kind string) bool {
	return clusterScopedKinds[kind]
}
