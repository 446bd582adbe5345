package watcher

import (
	"context"
	"fmt"

	"github.com/argoproj/gitops-engine/pkg/utils/kube"
	"github.com/toyamagu-2021/gitops-sync-controller/internal/errors"
	"github.com/toyamagu-2021/gitops-sync-controller/internal/gitops"
	"github.com/toyamagu-2021/gitops-sync-controller/internal/logging"
)

// Source is the manifest store access port: resolve a revision pointer to a
// commit, and read the manifest tree at that commit.
type Source interface {
	// Head resolves the revision pointer (branch, tag, or commit hash) to a
	// concrete commit hash.
	Head(ctx context.Context, repoURL, revision string) (string, error)
	// Manifests returns the raw manifest documents under path at the given
	// commit, in deterministic (file name) order.
	Manifests(ctx context.Context, repoURL, commit, path string) ([][]byte, error)
}

// Watcher polls the manifest store for one application at a time and builds
// desired-state snapshots.
type Watcher struct {
	source Source
}

func New(source Source) *Watcher {
	return &Watcher{source: source}
}

// Poll fetches the manifest set at the latest revision for the application's
// configured path. Returns nil when the resolved commit equals the
// application's last-seen revision. Any failure is a fetch error; the caller
// must not advance the last-seen revision, so the next poll retries.
func (w *Watcher) Poll(ctx context.Context, app *gitops.Application) (*gitops.DesiredState, error) {
	cfg := app.Config

	commit, err := w.source.Head(ctx, cfg.RepoURL, cfg.Revision)
	if err != nil {
		return nil, errors.NewFetchError("failed to resolve revision", err, map[string]interface{}{
			"repo":     cfg.RepoURL,
			"revision": cfg.Revision,
		})
	}

	if commit == app.LastSeenRevision {
		logging.WithApp(app.Name()).WithField("commit", commit).Debug("Revision unchanged, nothing to fetch")
		return nil, nil
	}

	docs, err := w.source.Manifests(ctx, cfg.RepoURL, commit, cfg.RepoPath)
	if err != nil {
		return nil, errors.NewFetchError("failed to read manifests", err, map[string]interface{}{
			"repo":   cfg.RepoURL,
			"commit": commit,
			"path":   cfg.RepoPath,
		})
	}

	desired := &gitops.DesiredState{Revision: commit}
	for i, doc := range docs {
		objs, err := kube.SplitYAML(doc)
		if err != nil {
			return nil, errors.NewFetchError("malformed manifest content", err, map[string]interface{}{
				"repo":     cfg.RepoURL,
				"commit":   commit,
				"document": i,
			})
		}
		for _, obj := range objs {
			if obj.GetKind() == "" || obj.GetName() == "" {
				return nil, errors.NewFetchError("manifest missing kind or name", nil, map[string]interface{}{
					"repo":   cfg.RepoURL,
					"commit": commit,
					"object": fmt.Sprintf("%v", obj.Object),
				})
			}
			// Namespaced resources without an explicit namespace land in the
			// application's target namespace.
			if obj.GetNamespace() == "" && !gitops.IsClusterScoped(obj.GetKind()) {
				obj.SetNamespace(cfg.TargetNamespace)
			}
			desired.Resources = append(desired.Resources, obj)
		}
	}

	logging.WithApp(app.Name()).WithField("commit", commit).
		WithField("resources", len(desired.Resources)).Debug("Fetched desired state")
	return desired, nil
}
