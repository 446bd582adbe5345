package executor

import (
	"context"
	"time"

	apierrors "k8s.io/apimachinery/pkg/api/errors"

	"github.com/toyamagu-2021/gitops-sync-controller/internal/cluster"
	"github.com/toyamagu-2021/gitops-sync-controller/internal/errors"
	"github.com/toyamagu-2021/gitops-sync-controller/internal/gitops"
	"github.com/toyamagu-2021/gitops-sync-controller/internal/logging"
	"github.com/toyamagu-2021/gitops-sync-controller/internal/metrics"
)

const defaultBaseBackoff = 500 * time.Millisecond

// Executor applies patch sequences to the cluster, respecting ordering and
// the application's retry policy.
type Executor struct {
	client      cluster.Interface
	baseBackoff time.Duration
}

func New(client cluster.Interface) *Executor {
	return &Executor{client: client, baseBackoff: defaultBaseBackoff}
}

// NewWithBackoff overrides the base backoff (for testing).
func NewWithBackoff(client cluster.Interface, base time.Duration) *Executor {
	return &Executor{client: client, baseBackoff: base}
}

// Apply executes the patches strictly in the order produced by the diff
// engine. Transient failures (conflict, server timeout) retry with
// exponential backoff up to the application's retry bound; any other
// failure, or an exhausted bound, aborts the remaining patches. The result
// records exactly which patches succeeded before the abort point.
func (e *Executor) Apply(ctx context.Context, app *gitops.Application, revision string, patches []gitops.Patch) *gitops.SyncResult {
	log := logging.WithApp(app.Name()).WithField("revision", revision)
	result := &gitops.SyncResult{
		Revision:  revision,
		Phase:     gitops.SyncStatusSynced,
		StartedAt: time.Now(),
	}

	for i, patch := range patches {
		if err := e.applyOne(ctx, app.Config.RetryBound, patch); err != nil {
			log.WithField("resource", patch.Ref.String()).WithError(err).Error("Patch failed, aborting pass")
			ref := patch.Ref
			result.Phase = gitops.SyncStatusFailed
			result.Stage = gitops.StageApply
			result.Failures = append(result.Failures, gitops.SyncFailure{
				Ref:     &ref,
				Message: err.Error(),
			})
			log.WithField("remaining", len(patches)-i-1).Debug("Skipping remaining patches")
			break
		}
		metrics.ObservePatch(string(patch.Op))
		result.Applied = append(result.Applied, gitops.PatchResult{Op: patch.Op, Ref: patch.Ref})
	}

	result.FinishedAt = time.Now()
	return result
}

func (e *Executor) applyOne(ctx context.Context, retryBound int, patch gitops.Patch) error {
	if retryBound <= 0 {
		retryBound = gitops.DefaultRetryBound
	}

	var lastErr error
	for attempt := 0; attempt < retryBound; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, e.baseBackoff<<(attempt-1)); err != nil {
				return errors.NewTimeoutError("apply stage cancelled during backoff", err)
			}
		}

		err := e.execute(ctx, patch)
		if err == nil {
			return nil
		}

		if !isTransient(err) {
			return errors.NewRejectedError("cluster rejected patch", err, map[string]interface{}{
				"op":       string(patch.Op),
				"resource": patch.Ref.String(),
			})
		}
		lastErr = err
	}

	return errors.NewConflictError("retry bound exhausted", lastErr, map[string]interface{}{
		"op":       string(patch.Op),
		"resource": patch.Ref.String(),
		"attempts": retryBound,
	})
}

func (e *Executor) execute(ctx context.Context, patch gitops.Patch) error {
	switch patch.Op {
	case gitops.PatchOpCreate:
		_, err := e.client.Create(ctx, patch.Body)
		if apierrors.IsAlreadyExists(err) {
			// Raced with an external creation; converge via update instead.
			return e.update(ctx, patch)
		}
		return err
	case gitops.PatchOpUpdate:
		return e.update(ctx, patch)
	case gitops.PatchOpDelete:
		err := e.client.Delete(ctx, patch.Ref)
		if apierrors.IsNotFound(err) {
			return nil
		}
		return err
	default:
		return errors.NewInternalError("unknown patch operation", nil)
	}
}

// update carries the live resourceVersion so the server can detect
// conflicting writers.
func (e *Executor) update(ctx context.Context, patch gitops.Patch) error {
	current, err := e.client.Get(ctx, patch.Ref)
	if apierrors.IsNotFound(err) {
		_, err = e.client.Create(ctx, patch.Body)
		return err
	}
	if err != nil {
		return err
	}

	body := patch.Body.DeepCopy()
	body.SetResourceVersion(current.GetResourceVersion())
	_, err = e.client.Update(ctx, body)
	return err
}

func isTransient(err error) bool {
	return apierrors.IsConflict(err) ||
		apierrors.IsServerTimeout(err) ||
		apierrors.IsTimeout(err) ||
		apierrors.IsTooManyRequests(err)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
