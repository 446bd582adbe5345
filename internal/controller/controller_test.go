package controller

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	apperrors "github.com/toyamagu-2021/gitops-sync-controller/internal/errors"
	"github.com/toyamagu-2021/gitops-sync-controller/internal/gitops"
	"github.com/toyamagu-2021/gitops-sync-controller/internal/store"
)

type stubPoller struct {
	mu      sync.Mutex
	desired *gitops.DesiredState
	err     error
	block   chan struct{}
	count   int
}

func (p *stubPoller) Poll(ctx context.Context, app *gitops.Application) (*gitops.DesiredState, error) {
	p.mu.Lock()
	p.count++
	desired, err, block := p.desired, p.err, p.block
	p.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return desired, err
}

func (p *stubPoller) set(desired *gitops.DesiredState, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.desired, p.err = desired, err
}

func (p *stubPoller) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

type stubReader struct {
	mu   sync.Mutex
	live *gitops.LiveState
	err  error
}

func (r *stubReader) Read(ctx context.Context, refs []gitops.ResourceRef) (*gitops.LiveState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	if r.live != nil {
		return r.live, nil
	}
	return &gitops.LiveState{Resources: nil}, nil
}

// stubApplier reports every patch as applied, or replays a canned result.
type stubApplier struct {
	mu     sync.Mutex
	result *gitops.SyncResult
}

func (a *stubApplier) Apply(ctx context.Context, app *gitops.Application, revision string, patches []gitops.Patch) *gitops.SyncResult {
	a.mu.Lock()
	canned := a.result
	a.mu.Unlock()
	if canned != nil {
		out := *canned
		out.Revision = revision
		out.FinishedAt = time.Now()
		return &out
	}

	result := &gitops.SyncResult{Revision: revision, Phase: gitops.SyncStatusSynced}
	for _, p := range patches {
		result.Applied = append(result.Applied, gitops.PatchResult{Op: p.Op, Ref: p.Ref})
	}
	result.FinishedAt = time.Now()
	return result
}

func configMap(name string) *unstructured.Unstructured {
	return &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": "v1",
		"kind":       "ConfigMap",
		"metadata": map[string]interface{}{
			"name":      name,
			"namespace": "default",
		},
		"data": map[string]interface{}{"key": "v1"},
	}}
}

func manualConfig(name string) gitops.ApplicationConfig {
	return gitops.ApplicationConfig{
		Name:                name,
		RepoURL:             "https://example.com/manifests.git",
		SyncPolicy:          gitops.SyncPolicyManual,
		PollIntervalSeconds: 3600,
	}
}

func newTestController(t *testing.T, poller Poller, reader Reader, applier Applier) (*Controller, store.StateStore) {
	t.Helper()
	st := store.NewMemoryStore()
	ctrl := New(poller, reader, applier, st, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		ctrl.Wait()
	})
	require.NoError(t, ctrl.Start(ctx))
	return ctrl, st
}

func waitForStatus(t *testing.T, ctrl *Controller, name string, want gitops.SyncStatus) *gitops.Application {
	t.Helper()
	var app *gitops.Application
	require.Eventually(t, func() bool {
		got, err := ctrl.Get(context.Background(), name)
		if err != nil {
			return false
		}
		app = got
		return got.Status == want
	}, 3*time.Second, 10*time.Millisecond, "application never reached status %s", want)
	return app
}

func TestController_Register_Validation(t *testing.T) {
	ctrl, _ := newTestController(t, &stubPoller{}, &stubReader{}, &stubApplier{})
	ctx := context.Background()

	_, err := ctrl.Register(ctx, gitops.ApplicationConfig{RepoURL: "https://example.com/r.git"})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidationError(err))

	_, err = ctrl.Register(ctx, gitops.ApplicationConfig{Name: "guestbook"})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidationError(err))

	_, err = ctrl.Register(ctx, manualConfig("guestbook"))
	require.NoError(t, err)

	_, err = ctrl.Register(ctx, manualConfig("guestbook"))
	require.Error(t, err)
	assert.True(t, apperrors.IsValidationError(err))
}

func TestController_Register_AppliesDefaults(t *testing.T) {
	ctrl, st := newTestController(t, &stubPoller{}, &stubReader{}, &stubApplier{})

	app, err := ctrl.Register(context.Background(), gitops.ApplicationConfig{
		Name:       "guestbook",
		RepoURL:    "https://example.com/r.git",
		SyncPolicy: gitops.SyncPolicyManual,
	})
	require.NoError(t, err)

	assert.Equal(t, gitops.DefaultRevision, app.Config.Revision)
	assert.Equal(t, gitops.DefaultRetryBound, app.Config.RetryBound)
	assert.Equal(t, gitops.DefaultHistoryDepth, app.Config.HistoryDepth)
	assert.Equal(t, gitops.SyncStatusUnknown, app.Status)

	persisted, err := st.ListApplications()
	require.NoError(t, err)
	require.Len(t, persisted, 1)
	assert.Equal(t, "guestbook", persisted[0].Name())
}

func TestController_TriggerSync_Converges(t *testing.T) {
	poller := &stubPoller{}
	poller.set(&gitops.DesiredState{
		Revision:  "abc123",
		Resources: []*unstructured.Unstructured{configMap("cfg")},
	}, nil)
	ctrl, _ := newTestController(t, poller, &stubReader{}, &stubApplier{})
	ctx := context.Background()

	_, err := ctrl.Register(ctx, manualConfig("guestbook"))
	require.NoError(t, err)

	_, coalesced, err := ctrl.TriggerSync(ctx, "guestbook")
	require.NoError(t, err)
	assert.False(t, coalesced)

	app := waitForStatus(t, ctrl, "guestbook", gitops.SyncStatusSynced)
	assert.Equal(t, "abc123", app.LastSeenRevision)
	require.NotNil(t, app.LastSyncedAt)

	history, err := ctrl.History(ctx, "guestbook", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "abc123", history[0].Revision)
	require.Len(t, history[0].Applied, 1)
	assert.Equal(t, gitops.PatchOpCreate, history[0].Applied[0].Op)
}

func TestController_FetchFailureKeepsPriorStatus(t *testing.T) {
	poller := &stubPoller{}
	poller.set(&gitops.DesiredState{
		Revision:  "abc123",
		Resources: []*unstructured.Unstructured{configMap("cfg")},
	}, nil)
	ctrl, _ := newTestController(t, poller, &stubReader{}, &stubApplier{})
	ctx := context.Background()

	_, err := ctrl.Register(ctx, manualConfig("guestbook"))
	require.NoError(t, err)

	_, _, err = ctrl.TriggerSync(ctx, "guestbook")
	require.NoError(t, err)
	waitForStatus(t, ctrl, "guestbook", gitops.SyncStatusSynced)

	poller.set(nil, apperrors.NewFetchError("remote unreachable", nil, nil))
	_, _, err = ctrl.TriggerSync(ctx, "guestbook")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return poller.calls() >= 2 }, 3*time.Second, 10*time.Millisecond)

	// The failed fetch neither flips the status nor adds a history entry.
	app := waitForStatus(t, ctrl, "guestbook", gitops.SyncStatusSynced)
	assert.Equal(t, "abc123", app.LastSeenRevision)

	history, err := ctrl.History(ctx, "guestbook", 0)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestController_UnchangedRevisionIsNoOp(t *testing.T) {
	poller := &stubPoller{}
	ctrl, _ := newTestController(t, poller, &stubReader{}, &stubApplier{})
	ctx := context.Background()

	_, err := ctrl.Register(ctx, manualConfig("guestbook"))
	require.NoError(t, err)

	_, _, err = ctrl.TriggerSync(ctx, "guestbook")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return poller.calls() >= 1 }, 3*time.Second, 10*time.Millisecond)

	app := waitForStatus(t, ctrl, "guestbook", gitops.SyncStatusUnknown)
	assert.Empty(t, app.LastSeenRevision)

	history, err := ctrl.History(ctx, "guestbook", 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestController_ReadFailureRecordsStage(t *testing.T) {
	poller := &stubPoller{}
	poller.set(&gitops.DesiredState{
		Revision:  "abc123",
		Resources: []*unstructured.Unstructured{configMap("cfg")},
	}, nil)
	reader := &stubReader{err: apperrors.NewClusterUnreachableError("connection refused", nil, nil)}
	ctrl, _ := newTestController(t, poller, reader, &stubApplier{})
	ctx := context.Background()

	_, err := ctrl.Register(ctx, manualConfig("guestbook"))
	require.NoError(t, err)

	_, _, err = ctrl.TriggerSync(ctx, "guestbook")
	require.NoError(t, err)

	waitForStatus(t, ctrl, "guestbook", gitops.SyncStatusFailed)

	history, err := ctrl.History(ctx, "guestbook", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, gitops.StageRead, history[0].Stage)
	require.Len(t, history[0].Failures, 1)
	assert.Contains(t, history[0].Failures[0].Message, "connection refused")
}

func TestController_PartialApplyIsOutOfSync(t *testing.T) {
	poller := &stubPoller{}
	poller.set(&gitops.DesiredState{
		Revision:  "abc123",
		Resources: []*unstructured.Unstructured{configMap("first"), configMap("second")},
	}, nil)
	applier := &stubApplier{result: &gitops.SyncResult{
		Phase: gitops.SyncStatusFailed,
		Stage: gitops.StageApply,
		Applied: []gitops.PatchResult{{
			Op:  gitops.PatchOpCreate,
			Ref: gitops.ResourceRef{APIVersion: "v1", Kind: "ConfigMap", Namespace: "default", Name: "first"},
		}},
		Failures: []gitops.SyncFailure{{
			Ref:     &gitops.ResourceRef{APIVersion: "v1", Kind: "ConfigMap", Namespace: "default", Name: "second"},
			Message: "admission webhook denied",
		}},
	}}
	ctrl, st := newTestController(t, poller, &stubReader{}, applier)
	ctx := context.Background()

	_, err := ctrl.Register(ctx, manualConfig("guestbook"))
	require.NoError(t, err)

	_, _, err = ctrl.TriggerSync(ctx, "guestbook")
	require.NoError(t, err)

	app := waitForStatus(t, ctrl, "guestbook", gitops.SyncStatusOutOfSync)
	assert.Empty(t, app.LastSeenRevision, "a partial pass must not advance the revision")

	// Only the applied prefix joins the managed set.
	set, err := st.AppliedSet("guestbook")
	require.NoError(t, err)
	require.Len(t, set, 1)
	assert.Equal(t, "first", set[0].Name)
}

func TestController_TriggerSync_CoalescedWhileSyncing(t *testing.T) {
	release := make(chan struct{})
	poller := &stubPoller{block: release}
	poller.set(&gitops.DesiredState{
		Revision:  "abc123",
		Resources: []*unstructured.Unstructured{configMap("cfg")},
	}, nil)
	ctrl, _ := newTestController(t, poller, &stubReader{}, &stubApplier{})
	ctx := context.Background()

	_, err := ctrl.Register(ctx, manualConfig("guestbook"))
	require.NoError(t, err)

	_, coalesced, err := ctrl.TriggerSync(ctx, "guestbook")
	require.NoError(t, err)
	assert.False(t, coalesced)

	waitForStatus(t, ctrl, "guestbook", gitops.SyncStatusSyncing)

	_, coalesced, err = ctrl.TriggerSync(ctx, "guestbook")
	require.NoError(t, err)
	assert.True(t, coalesced, "trigger during an in-flight pass must coalesce")

	close(release)
	waitForStatus(t, ctrl, "guestbook", gitops.SyncStatusSynced)
	assert.Equal(t, 1, poller.calls())
}

func TestController_AutomaticPolicyPollsOnTimer(t *testing.T) {
	poller := &stubPoller{}
	poller.set(&gitops.DesiredState{
		Revision:  "abc123",
		Resources: []*unstructured.Unstructured{configMap("cfg")},
	}, nil)
	ctrl, _ := newTestController(t, poller, &stubReader{}, &stubApplier{})

	_, err := ctrl.Register(context.Background(), gitops.ApplicationConfig{
		Name:                "guestbook",
		RepoURL:             "https://example.com/r.git",
		SyncPolicy:          gitops.SyncPolicyAutomatic,
		PollIntervalSeconds: 1,
	})
	require.NoError(t, err)

	// No trigger; the jittered timer drives the pass.
	waitForStatus(t, ctrl, "guestbook", gitops.SyncStatusSynced)
}

func TestController_Deregister(t *testing.T) {
	ctrl, st := newTestController(t, &stubPoller{}, &stubReader{}, &stubApplier{})
	ctx := context.Background()

	_, err := ctrl.Register(ctx, manualConfig("guestbook"))
	require.NoError(t, err)

	require.NoError(t, ctrl.Deregister(ctx, "guestbook"))

	_, err = ctrl.Get(ctx, "guestbook")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFoundError(err))

	persisted, err := st.ListApplications()
	require.NoError(t, err)
	assert.Empty(t, persisted)

	err = ctrl.Deregister(ctx, "guestbook")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFoundError(err))
}

func TestController_Start_RestoresPersistedApplications(t *testing.T) {
	st := store.NewMemoryStore()
	cfg := manualConfig("guestbook")
	cfg.ApplyDefaults()
	require.NoError(t, st.SaveApplication(&gitops.Application{
		Config: cfg,
		Status: gitops.SyncStatusSyncing,
	}))

	ctrl := New(&stubPoller{}, &stubReader{}, &stubApplier{}, st, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		ctrl.Wait()
	})
	require.NoError(t, ctrl.Start(ctx))

	app, err := ctrl.Get(ctx, "guestbook")
	require.NoError(t, err)
	// An interrupted pass never survives a restart as Syncing.
	assert.Equal(t, gitops.SyncStatusUnknown, app.Status)
}
