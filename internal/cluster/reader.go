package cluster

import (
	"context"

	"github.com/argoproj/gitops-engine/pkg/utils/kube"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/toyamagu-2021/gitops-sync-controller/internal/errors"
	"github.com/toyamagu-2021/gitops-sync-controller/internal/gitops"
)

// Reader queries the live cluster for the current state of tracked
// resources.
type Reader struct {
	client Interface
}

func NewReader(client Interface) *Reader {
	return &Reader{client: client}
}

// Read queries the cluster for every reference. A missing resource is
// represented by absence in the snapshot, not by an error, so the diff
// engine can classify it as "to create". Any other API failure aborts the
// whole pass as cluster unreachable.
func (r *Reader) Read(ctx context.Context, refs []gitops.ResourceRef) (*gitops.LiveState, error) {
	live := &gitops.LiveState{
		Resources: make(map[kube.ResourceKey]*unstructured.Unstructured, len(refs)),
	}

	for _, ref := range refs {
		obj, err := r.client.Get(ctx, ref)
		if apierrors.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, errors.NewClusterUnreachableError("failed to read live state", err, map[string]interface{}{
				"resource": ref.String(),
			})
		}
		live.Resources[ref.Key()] = obj
	}

	return live, nil
}
