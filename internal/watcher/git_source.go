package watcher

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	git "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/storage/memory"
)

// GitSource reads manifests from a git repository. Change detection goes
// through a remote ref listing so an unchanged repository costs one
// round-trip; the manifest tree is materialized with an in-memory clone only
// when the commit moved.
type GitSource struct{}

func NewGitSource() *GitSource {
	return &GitSource{}
}

// Head resolves revision against the remote: branch ref first, then tag ref,
// then the literal hash.
func (s *GitSource) Head(ctx context.Context, repoURL, revision string) (string, error) {
	rem := git.NewRemote(memory.NewStorage(), &gitconfig.RemoteConfig{
		Name: "origin",
		URLs: []string{repoURL},
	})

	refs, err := rem.ListContext(ctx, &git.ListOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to list remote refs: %w", err)
	}

	branchRef := plumbing.NewBranchReferenceName(revision)
	tagRef := plumbing.NewTagReferenceName(revision)
	for _, ref := range refs {
		if ref.Name() == branchRef || ref.Name() == tagRef {
			return ref.Hash().String(), nil
		}
	}

	if plumbing.IsHash(revision) {
		return revision, nil
	}

	return "", fmt.Errorf("revision %q not found in %q", revision, repoURL)
}

// Manifests clones the repository into memory, checks out the commit, and
// returns the content of every .yaml/.yml file under dir sorted by path.
func (s *GitSource) Manifests(ctx context.Context, repoURL, commit, dir string) ([][]byte, error) {
	fs := memfs.New()
	repo, err := git.CloneContext(ctx, memory.NewStorage(), fs, &git.CloneOptions{
		URL: repoURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to clone %q: %w", repoURL, err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to open worktree: %w", err)
	}
	if err := wt.Checkout(&git.CheckoutOptions{Hash: plumbing.NewHash(commit)}); err != nil {
		return nil, fmt.Errorf("failed to checkout %s: %w", commit, err)
	}

	files, err := collectManifestFiles(fs, path.Clean(dir))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	docs := make([][]byte, 0, len(files))
	for _, file := range files {
		data, err := util.ReadFile(fs, file)
		if err != nil {
			return nil, fmt.Errorf("failed to read %q: %w", file, err)
		}
		docs = append(docs, data)
	}
	return docs, nil
}

func collectManifestFiles(fs billy.Filesystem, dir string) ([]string, error) {
	entries, err := fs.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest dir %q: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		full := path.Join(dir, entry.Name())
		if entry.IsDir() {
			nested, err := collectManifestFiles(fs, full)
			if err != nil {
				return nil, err
			}
			files = append(files, nested...)
			continue
		}
		if strings.HasSuffix(entry.Name(), ".yaml") || strings.HasSuffix(entry.Name(), ".yml") {
			files = append(files, full)
		}
	}
	return files, nil
}

var _ Source = (*GitSource)(nil)
