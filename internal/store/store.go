package store

import (
	"sync"

	"github.com/toyamagu-2021/gitops-sync-controller/internal/gitops"
)

// StateStore persists controller state that must survive a pass: application
// registrations (including last-seen revision), the prior-applied resource
// set used for delete classification, and bounded sync history.
type StateStore interface {
	SaveApplication(app *gitops.Application) error
	DeleteApplication(name string) error
	ListApplications() ([]*gitops.Application, error)
	RecordResult(appName string, result gitops.SyncResult, historyDepth int) error
	History(appName string, limit int) ([]gitops.SyncResult, error)
	SaveAppliedSet(appName string, refs []gitops.ResourceRef) error
	AppliedSet(appName string) ([]gitops.ResourceRef, error)
	Close() error
}

// In-memory implementation for fallback
type MemoryStore struct {
	mu      sync.RWMutex
	apps    map[string]*gitops.Application
	history map[string][]gitops.SyncResult // newest first
	applied map[string][]gitops.ResourceRef
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		apps:    make(map[string]*gitops.Application),
		history: make(map[string][]gitops.SyncResult),
		applied: make(map[string][]gitops.ResourceRef),
	}
}

func (s *MemoryStore) SaveApplication(app *gitops.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apps[app.Name()] = app.DeepCopy()
	return nil
}

func (s *MemoryStore) DeleteApplication(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.apps, name)
	delete(s.history, name)
	delete(s.applied, name)
	return nil
}

func (s *MemoryStore) ListApplications() ([]*gitops.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	apps := make([]*gitops.Application, 0, len(s.apps))
	for _, app := range s.apps {
		apps = append(apps, app.DeepCopy())
	}
	return apps, nil
}

func (s *MemoryStore) RecordResult(appName string, result gitops.SyncResult, historyDepth int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := append([]gitops.SyncResult{result}, s.history[appName]...)
	if historyDepth > 0 && len(entries) > historyDepth {
		entries = entries[:historyDepth]
	}
	s.history[appName] = entries
	return nil
}

func (s *MemoryStore) History(appName string, limit int) ([]gitops.SyncResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.history[appName]
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	out := make([]gitops.SyncResult, len(entries))
	copy(out, entries)
	return out, nil
}

func (s *MemoryStore) SaveAppliedSet(appName string, refs []gitops.ResourceRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]gitops.ResourceRef, len(refs))
	copy(out, refs)
	s.applied[appName] = out
	return nil
}

func (s *MemoryStore) AppliedSet(appName string) ([]gitops.ResourceRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	refs := s.applied[appName]
	out := make([]gitops.ResourceRef, len(refs))
	copy(out, refs)
	return out, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
