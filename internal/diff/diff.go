package diff

import (
	"sort"

	"github.com/argoproj/gitops-engine/pkg/utils/kube"
	"k8s.io/apimachinery/pkg/api/equality"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/toyamagu-2021/gitops-sync-controller/internal/gitops"
)

// kindRank orders creates and updates: namespaces and policy first, then
// config sources, then workloads and routing. Unknown kinds sort after the
// table. Deletes are issued in reverse of this order.
var kindRank = map[string]int{
	"Namespace":                0,
	"CustomResourceDefinition": 1,
	"NetworkPolicy":            2,
	"ResourceQuota":            3,
	"LimitRange":               4,
	"ServiceAccount":           5,
	"Secret":                   6,
	"ConfigMap":                7,
	"StorageClass":             8,
	"PersistentVolume":         9,
	"PersistentVolumeClaim":    10,
	"ClusterRole":              11,
	"ClusterRoleBinding":       12,
	"Role":                     13,
	"RoleBinding":              14,
	"Service":                  15,
	"DaemonSet":                16,
	"Pod":                      17,
	"ReplicaSet":               18,
	"Deployment":               19,
	"StatefulSet":              20,
	"Job":                      21,
	"CronJob":                  22,
	"Ingress":                  23,
}

const unknownKindRank = 100

func rankOf(kind string) int {
	if rank, ok := kindRank[kind]; ok {
		return rank
	}
	return unknownKindRank
}

// Calculate computes the ordered patch sequence converging live state onto
// desired state. Deletes are produced only for members of the prior-applied
// set that are no longer desired, never for unrelated cluster resources.
// The result is deterministic for identical (desired, live, prior) inputs:
// creates and updates sort by kind rank with declaration order breaking
// ties, deletes come last in reverse rank with reverse prior order breaking
// ties.
func Calculate(desired *gitops.DesiredState, live *gitops.LiveState, prior []gitops.ResourceRef) []gitops.Patch {
	type ranked struct {
		patch gitops.Patch
		rank  int
		pos   int
	}

	desiredKeys := make(map[kube.ResourceKey]bool, len(desired.Resources))
	var upserts []ranked

	for pos, obj := range desired.Resources {
		key := kube.GetResourceKey(obj)
		desiredKeys[key] = true

		liveObj := live.Resources[key]
		var op gitops.PatchOp
		switch {
		case liveObj == nil:
			op = gitops.PatchOpCreate
		case !bodiesEqual(obj, liveObj):
			op = gitops.PatchOpUpdate
		default:
			continue
		}

		upserts = append(upserts, ranked{
			patch: gitops.Patch{
				Op:       op,
				Ref:      gitops.RefFor(obj),
				Body:     obj,
				Revision: desired.Revision,
			},
			rank: rankOf(obj.GetKind()),
			pos:  pos,
		})
	}

	sort.SliceStable(upserts, func(i, j int) bool {
		if upserts[i].rank != upserts[j].rank {
			return upserts[i].rank < upserts[j].rank
		}
		return upserts[i].pos < upserts[j].pos
	})

	var deletes []ranked
	for pos, ref := range prior {
		key := ref.Key()
		if desiredKeys[key] {
			continue
		}
		if live.Resources[key] == nil {
			// Already gone from the cluster; nothing to delete.
			continue
		}
		deletes = append(deletes, ranked{
			patch: gitops.Patch{
				Op:       gitops.PatchOpDelete,
				Ref:      ref,
				Revision: desired.Revision,
			},
			rank: rankOf(ref.Kind),
			pos:  pos,
		})
	}

	sort.SliceStable(deletes, func(i, j int) bool {
		if deletes[i].rank != deletes[j].rank {
			return deletes[i].rank > deletes[j].rank
		}
		return deletes[i].pos > deletes[j].pos
	})

	patches := make([]gitops.Patch, 0, len(upserts)+len(deletes))
	for _, u := range upserts {
		patches = append(patches, u.patch)
	}
	for _, d := range deletes {
		patches = append(patches, d.patch)
	}
	return patches
}

// bodiesEqual compares the operator-controlled portion of two resource
// bodies, ignoring status and server-populated metadata.
func bodiesEqual(desired, live *unstructured.Unstructured) bool {
	return equality.Semantic.DeepEqual(normalize(desired), normalize(live))
}

var serverMetadataFields = []string{
	"resourceVersion",
	"uid",
	"generation",
	"creationTimestamp",
	"managedFields",
	"selfLink",
	"ownerReferences",
	"finalizers",
}

func normalize(obj *unstructured.Unstructured) map[string]interface{} {
	out := obj.DeepCopy().Object
	delete(out, "status")

	if metadata, ok := out["metadata"].(map[string]interface{}); ok {
		for _, field := range serverMetadataFields {
			delete(metadata, field)
		}
		if annotations, ok := metadata["annotations"].(map[string]interface{}); ok && len(annotations) == 0 {
			delete(metadata, "annotations")
		}
		if labels, ok := metadata["labels"].(map[string]interface{}); ok && len(labels) == 0 {
			delete(metadata, "labels")
		}
	}

	return out
}
