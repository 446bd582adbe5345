package controller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/argoproj/gitops-engine/pkg/utils/kube"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/toyamagu-2021/gitops-sync-controller/internal/diff"
	"github.com/toyamagu-2021/gitops-sync-controller/internal/errors"
	"github.com/toyamagu-2021/gitops-sync-controller/internal/gitops"
	"github.com/toyamagu-2021/gitops-sync-controller/internal/logging"
	"github.com/toyamagu-2021/gitops-sync-controller/internal/metrics"
	"github.com/toyamagu-2021/gitops-sync-controller/internal/store"
)

// Poller is the manifest store watcher port.
type Poller interface {
	Poll(ctx context.Context, app *gitops.Application) (*gitops.DesiredState, error)
}

// Reader is the cluster state reader port.
type Reader interface {
	Read(ctx context.Context, refs []gitops.ResourceRef) (*gitops.LiveState, error)
}

// Applier is the sync executor port.
type Applier interface {
	Apply(ctx context.Context, app *gitops.Application, revision string, patches []gitops.Patch) *gitops.SyncResult
}

// Options holds controller-wide tuning. Zero values pick the defaults.
type Options struct {
	FetchTimeout time.Duration
	ReadTimeout  time.Duration
	ApplyTimeout time.Duration
	JitterFactor float64
}

func (o *Options) applyDefaults() {
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 30 * time.Second
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = 30 * time.Second
	}
	if o.ApplyTimeout <= 0 {
		o.ApplyTimeout = 60 * time.Second
	}
	if o.JitterFactor <= 0 {
		o.JitterFactor = 0.1
	}
}

// Controller runs one reconciliation loop per registered application. Within
// a loop, passes execute strictly sequentially; across applications, loops
// run concurrently and share only the cluster client and the state store.
type Controller struct {
	poller  Poller
	reader  Reader
	applier Applier
	store   store.StateStore
	opts    Options

	mu      sync.Mutex
	ctx     context.Context
	entries map[string]*appEntry
	wg      sync.WaitGroup
}

// appEntry owns one application's loop state. The trigger channel carries
// manual sync requests; passes are serialized because only the loop
// goroutine reconciles.
type appEntry struct {
	mu      sync.Mutex
	app     *gitops.Application
	cancel  context.CancelFunc
	trigger chan struct{}
	syncing atomic.Bool
}

func (e *appEntry) snapshot() *gitops.Application {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.app.DeepCopy()
}

func (e *appEntry) mutate(fn func(app *gitops.Application)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.app)
}

func New(poller Poller, reader Reader, applier Applier, st store.StateStore, opts Options) *Controller {
	opts.applyDefaults()
	return &Controller{
		poller:  poller,
		reader:  reader,
		applier: applier,
		store:   st,
		opts:    opts,
		entries: make(map[string]*appEntry),
	}
}

// Start launches loops for every persisted application and accepts
// registrations until ctx is cancelled.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx != nil {
		return errors.NewInternalError("controller already started", nil)
	}
	c.ctx = ctx

	apps, err := c.store.ListApplications()
	if err != nil {
		return errors.NewInternalError("failed to load persisted applications", err)
	}
	for _, app := range apps {
		// A process restart interrupts any in-flight pass; the next pass
		// re-evaluates from scratch.
		if app.Status == gitops.SyncStatusSyncing {
			app.Status = gitops.SyncStatusUnknown
		}
		c.launchLocked(app)
		logging.WithApp(app.Name()).Info("Restored persisted application")
	}
	return nil
}

// Wait blocks until all application loops have exited.
func (c *Controller) Wait() {
	c.wg.Wait()
}

func (c *Controller) launchLocked(app *gitops.Application) *appEntry {
	runCtx, cancel := context.WithCancel(c.ctx)
	entry := &appEntry{
		app:     app,
		cancel:  cancel,
		trigger: make(chan struct{}, 1),
	}
	c.entries[app.Name()] = entry
	c.wg.Add(1)
	go c.run(runCtx, entry)
	return entry
}

func (c *Controller) Register(ctx context.Context, cfg gitops.ApplicationConfig) (*gitops.Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.NewValidationError(err.Error(), map[string]interface{}{"name": cfg.Name})
	}
	cfg.ApplyDefaults()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx == nil {
		return nil, errors.NewInternalError("controller not started", nil)
	}
	if _, exists := c.entries[cfg.Name]; exists {
		return nil, errors.NewValidationError("application already registered", map[string]interface{}{"name": cfg.Name})
	}

	app := &gitops.Application{Config: cfg, Status: gitops.SyncStatusUnknown}
	if err := c.store.SaveApplication(app); err != nil {
		return nil, errors.NewInternalError("failed to persist application", err)
	}

	entry := c.launchLocked(app)
	logging.WithApp(cfg.Name).WithField("repo", cfg.RepoURL).Info("Registered application")
	return entry.snapshot(), nil
}

func (c *Controller) Deregister(ctx context.Context, name string) error {
	c.mu.Lock()
	entry, ok := c.entries[name]
	if ok {
		delete(c.entries, name)
	}
	c.mu.Unlock()

	if !ok {
		return errors.NewNotFoundError("application not found", map[string]interface{}{"name": name})
	}

	entry.cancel()
	if err := c.store.DeleteApplication(name); err != nil {
		return errors.NewInternalError("failed to delete application state", err)
	}
	logging.WithApp(name).Info("Deregistered application")
	return nil
}

func (c *Controller) Get(ctx context.Context, name string) (*gitops.Application, error) {
	entry, err := c.entry(name)
	if err != nil {
		return nil, err
	}
	return entry.snapshot(), nil
}

func (c *Controller) List(ctx context.Context) ([]*gitops.Application, error) {
	c.mu.Lock()
	entries := make([]*appEntry, 0, len(c.entries))
	for _, entry := range c.entries {
		entries = append(entries, entry)
	}
	c.mu.Unlock()

	apps := make([]*gitops.Application, 0, len(entries))
	for _, entry := range entries {
		apps = append(apps, entry.snapshot())
	}
	return apps, nil
}

// TriggerSync requests an out-of-band pass. Triggers that arrive while a
// pass is Syncing are coalesced into a no-op: the in-flight pass already
// covers the latest known revision.
func (c *Controller) TriggerSync(ctx context.Context, name string) (*gitops.Application, bool, error) {
	entry, err := c.entry(name)
	if err != nil {
		return nil, false, err
	}

	if entry.syncing.Load() {
		return entry.snapshot(), true, nil
	}

	select {
	case entry.trigger <- struct{}{}:
		return entry.snapshot(), false, nil
	default:
		// A trigger is already pending; this one is redundant.
		return entry.snapshot(), true, nil
	}
}

func (c *Controller) History(ctx context.Context, name string, limit int) ([]gitops.SyncResult, error) {
	if _, err := c.entry(name); err != nil {
		return nil, err
	}
	results, err := c.store.History(name, limit)
	if err != nil {
		return nil, errors.NewInternalError("failed to load sync history", err)
	}
	return results, nil
}

func (c *Controller) DesiredManifests(ctx context.Context, name string) (*gitops.DesiredState, error) {
	entry, err := c.entry(name)
	if err != nil {
		return nil, err
	}

	app := entry.snapshot()
	app.LastSeenRevision = ""

	fctx, cancel := context.WithTimeout(ctx, c.opts.FetchTimeout)
	defer cancel()
	return c.poller.Poll(fctx, app)
}

func (c *Controller) entry(name string) (*appEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[name]
	if !ok {
		return nil, errors.NewNotFoundError("application not found", map[string]interface{}{"name": name})
	}
	return entry, nil
}

// run is one application's loop: jittered periodic polling for automatic
// policy, manual triggers for both policies.
func (c *Controller) run(ctx context.Context, entry *appEntry) {
	defer c.wg.Done()

	for {
		interval := wait.Jitter(entry.snapshot().PollInterval(), c.opts.JitterFactor)
		timer := time.NewTimer(interval)

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-entry.trigger:
			timer.Stop()
			c.reconcile(ctx, entry)
		case <-timer.C:
			if entry.snapshot().Config.SyncPolicy == gitops.SyncPolicyAutomatic {
				c.reconcile(ctx, entry)
			}
		}
	}
}

// reconcile executes one pass: fetch, read, diff, apply. Stage failures
// short-circuit with the failing stage recorded; fetch failures additionally
// keep the prior status so the next poll retries the same revision.
func (c *Controller) reconcile(ctx context.Context, entry *appEntry) {
	entry.syncing.Store(true)
	defer entry.syncing.Store(false)

	start := time.Now()
	app := entry.snapshot()
	log := logging.WithApp(app.Name())

	prev := app.Status
	entry.mutate(func(a *gitops.Application) { a.Status = gitops.SyncStatusSyncing })

	fctx, cancel := context.WithTimeout(ctx, c.opts.FetchTimeout)
	desired, err := c.poller.Poll(fctx, app)
	cancel()
	if err != nil {
		log.WithError(err).Warn("Manifest fetch failed, will retry next poll")
		entry.mutate(func(a *gitops.Application) { a.Status = prev })
		metrics.ObservePass(app.Name(), metrics.StatusError, time.Since(start).Seconds())
		return
	}
	if desired == nil {
		entry.mutate(func(a *gitops.Application) { a.Status = prev })
		metrics.ObservePass(app.Name(), metrics.StatusNoOp, time.Since(start).Seconds())
		return
	}

	prior, err := c.store.AppliedSet(app.Name())
	if err != nil {
		c.finishFailed(entry, start, desired.Revision, gitops.StageRead,
			errors.NewInternalError("failed to load applied set", err))
		return
	}

	rctx, cancel := context.WithTimeout(ctx, c.opts.ReadTimeout)
	live, err := c.reader.Read(rctx, unionRefs(desired.Refs(), prior))
	cancel()
	if err != nil {
		c.finishFailed(entry, start, desired.Revision, gitops.StageRead, err)
		return
	}

	patches := diff.Calculate(desired, live, prior)
	if len(patches) == 0 {
		log.WithField("revision", desired.Revision).Debug("Already converged")
		c.finishResult(entry, desired.Refs(), &gitops.SyncResult{
			Revision:   desired.Revision,
			Phase:      gitops.SyncStatusSynced,
			StartedAt:  start,
			FinishedAt: time.Now(),
		})
		return
	}

	log.WithField("revision", desired.Revision).WithField("patches", len(patches)).Info("Applying patches")
	actx, cancel := context.WithTimeout(ctx, c.opts.ApplyTimeout)
	result := c.applier.Apply(actx, app, desired.Revision, patches)
	cancel()
	result.StartedAt = start

	// A fully-converged pass owns exactly the desired set; a partial pass
	// folds what it managed to apply into the prior set.
	nextSet := desired.Refs()
	if !result.Succeeded() {
		nextSet = nextAppliedSet(prior, result.Applied)
	}
	c.finishResult(entry, nextSet, result)
}

func (c *Controller) finishFailed(entry *appEntry, start time.Time, revision, stage string, cause error) {
	result := &gitops.SyncResult{
		Revision:   revision,
		Phase:      gitops.SyncStatusFailed,
		Stage:      stage,
		Failures:   []gitops.SyncFailure{{Message: cause.Error()}},
		StartedAt:  start,
		FinishedAt: time.Now(),
	}
	logging.WithApp(entry.snapshot().Name()).WithField("stage", stage).WithError(cause).Error("Reconciliation pass failed")
	c.finishResult(entry, nil, result)
}

// finishResult records the pass outcome: status transition, applied-set
// maintenance, bounded history, persistence, metrics.
func (c *Controller) finishResult(entry *appEntry, prior []gitops.ResourceRef, result *gitops.SyncResult) {
	app := entry.snapshot()
	log := logging.WithApp(app.Name())

	status := gitops.SyncStatusFailed
	metricStatus := metrics.StatusError
	switch {
	case result.Succeeded():
		status = gitops.SyncStatusSynced
		metricStatus = metrics.StatusSuccess
	case len(result.Applied) > 0:
		// Partial convergence, not a silent full failure.
		status = gitops.SyncStatusOutOfSync
	}

	if len(result.Applied) > 0 || result.Succeeded() {
		if err := c.store.SaveAppliedSet(app.Name(), nextAppliedSet(prior, result.Applied)); err != nil {
			log.WithError(err).Error("Failed to persist applied set")
		}
	}

	now := result.FinishedAt
	entry.mutate(func(a *gitops.Application) {
		a.Status = status
		if result.Succeeded() {
			a.LastSeenRevision = result.Revision
			a.LastSyncedAt = &now
		}
	})

	if err := c.store.RecordResult(app.Name(), *result, app.Config.HistoryDepth); err != nil {
		log.WithError(err).Error("Failed to record sync result")
	}
	if err := c.store.SaveApplication(entry.snapshot()); err != nil {
		log.WithError(err).Error("Failed to persist application")
	}

	metrics.ObservePass(app.Name(), metricStatus, result.FinishedAt.Sub(result.StartedAt).Seconds())
	log.WithField("revision", result.Revision).WithField("status", string(status)).Info("Reconciliation pass finished")
}

// nextAppliedSet folds the applied patches into the prior-applied set:
// creates and updates join it, deletes leave it.
func nextAppliedSet(prior []gitops.ResourceRef, applied []gitops.PatchResult) []gitops.ResourceRef {
	seen := make(map[kube.ResourceKey]bool, len(prior))
	next := make([]gitops.ResourceRef, 0, len(prior)+len(applied))
	for _, ref := range prior {
		seen[ref.Key()] = true
		next = append(next, ref)
	}

	for _, p := range applied {
		key := p.Ref.Key()
		if p.Op == gitops.PatchOpDelete {
			for i, ref := range next {
				if ref.Key() == key {
					next = append(next[:i], next[i+1:]...)
					break
				}
			}
			continue
		}
		if !seen[key] {
			seen[key] = true
			next = append(next, p.Ref)
		}
	}
	return next
}

func unionRefs(desired, prior []gitops.ResourceRef) []gitops.ResourceRef {
	seen := make(map[kube.ResourceKey]bool, len(desired))
	out := make([]gitops.ResourceRef, 0, len(desired)+len(prior))
	for _, ref := range desired {
		seen[ref.Key()] = true
		out = append(out, ref)
	}
	for _, ref := range prior {
		if !seen[ref.Key()] {
			seen[ref.Key()] = true
			out = append(out, ref)
		}
	}
	return out
}
