package watcher

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/toyamagu-2021/gitops-sync-controller/internal/errors"
	"github.com/toyamagu-2021/gitops-sync-controller/internal/gitops"
)

type stubSource struct {
	head      string
	headErr   error
	manifests [][]byte
	fetchErr  error
}

func (s *stubSource) Head(ctx context.Context, repoURL, revision string) (string, error) {
	return s.head, s.headErr
}

func (s *stubSource) Manifests(ctx context.Context, repoURL, commit, path string) ([][]byte, error) {
	return s.manifests, s.fetchErr
}

func newTestApp(lastSeen string) *gitops.Application {
	cfg := gitops.ApplicationConfig{
		Name:            "guestbook",
		RepoURL:         "https://example.com/manifests.git",
		RepoPath:        "apps/guestbook",
		TargetNamespace: "default",
	}
	cfg.ApplyDefaults()
	return &gitops.Application{Config: cfg, LastSeenRevision: lastSeen}
}

func TestWatcher_Poll_NewRevision(t *testing.T) {
	source := &stubSource{
		head: "abc123",
		manifests: [][]byte{
			[]byte("apiVersion: v1\nkind: ConfigMap\nmetadata:\n  name: cfg\ndata:\n  key: v1\n"),
			[]byte("apiVersion: apps/v1\nkind: Deployment\nmetadata:\n  name: app\nspec:\n  replicas: 1\n"),
		},
	}
	w := New(source)

	desired, err := w.Poll(context.Background(), newTestApp(""))
	require.NoError(t, err)
	require.NotNil(t, desired)

	assert.Equal(t, "abc123", desired.Revision)
	require.Len(t, desired.Resources, 2)
	assert.Equal(t, "ConfigMap", desired.Resources[0].GetKind())
	assert.Equal(t, "Deployment", desired.Resources[1].GetKind())

	// Namespaced resources without a namespace pick up the target namespace
	assert.Equal(t, "default", desired.Resources[0].GetNamespace())
	assert.Equal(t, "default", desired.Resources[1].GetNamespace())
}

func TestWatcher_Poll_UnchangedRevision(t *testing.T) {
	source := &stubSource{head: "abc123"}
	w := New(source)

	desired, err := w.Poll(context.Background(), newTestApp("abc123"))
	require.NoError(t, err)
	assert.Nil(t, desired)
}

func TestWatcher_Poll_MultiDocumentFile(t *testing.T) {
	source := &stubSource{
		head: "abc123",
		manifests: [][]byte{
			[]byte("apiVersion: v1\nkind: ConfigMap\nmetadata:\n  name: one\n---\napiVersion: v1\nkind: ConfigMap\nmetadata:\n  name: two\n"),
		},
	}
	w := New(source)

	desired, err := w.Poll(context.Background(), newTestApp(""))
	require.NoError(t, err)
	require.Len(t, desired.Resources, 2)
	assert.Equal(t, "one", desired.Resources[0].GetName())
	assert.Equal(t, "two", desired.Resources[1].GetName())
}

func TestWatcher_Poll_ClusterScopedKeepsEmptyNamespace(t *testing.T) {
	source := &stubSource{
		head: "abc123",
		manifests: [][]byte{
			[]byte("apiVersion: v1\nkind: Namespace\nmetadata:\n  name: prod\n"),
		},
	}
	w := New(source)

	desired, err := w.Poll(context.Background(), newTestApp(""))
	require.NoError(t, err)
	require.Len(t, desired.Resources, 1)
	assert.Empty(t, desired.Resources[0].GetNamespace())
}

func TestWatcher_Poll_HeadFailure(t *testing.T) {
	source := &stubSource{headErr: errors.New("connection refused")}
	w := New(source)

	desired, err := w.Poll(context.Background(), newTestApp(""))
	assert.Nil(t, desired)
	require.Error(t, err)
	assert.True(t, apperrors.IsFetchError(err))
}

func TestWatcher_Poll_MalformedManifest(t *testing.T) {
	source := &stubSource{
		head:      "abc123",
		manifests: [][]byte{[]byte("kind: [not: valid: yaml")},
	}
	w := New(source)

	app := newTestApp("")
	desired, err := w.Poll(context.Background(), app)
	assert.Nil(t, desired)
	require.Error(t, err)
	assert.True(t, apperrors.IsFetchError(err))

	// Fetch failures must not advance the last-seen revision
	assert.Empty(t, app.LastSeenRevision)
}

func TestWatcher_Poll_MissingKind(t *testing.T) {
	source := &stubSource{
		head:      "abc123",
		manifests: [][]byte{[]byte("metadata:\n  name: cfg\n")},
	}
	w := New(source)

	_, err := w.Poll(context.Background(), newTestApp(""))
	require.Error(t, err)
	assert.True(t, apperrors.IsFetchError(err))
}
