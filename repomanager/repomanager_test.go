package repomanager

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/repolex-dev/repolex/rdfstore"
	"github.com/repolex-dev/repolex/repostore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUpstream(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a"), 0o644))
	_, err = wt.Add("a.go")
	require.NoError(t, err)
	_, err = wt.Commit("init", &git.CommitOptions{
		Author: &object.Signature{Name: "Ada", Email: "ada@example.com", When: time.Now().UTC()},
	})
	require.NoError(t, err)
	return dir
}

// newUpstreamWithTags builds a repository with three version tags on the
// same commit, out of creation order, covering the scenario-1 assertion
// that Add discovers and descending-sorts every release tag.
func newUpstreamWithTags(t *testing.T) string {
	t.Helper()
	dir := newUpstream(t)
	repo, err := git.PlainOpen(dir)
	require.NoError(t, err)
	head, err := repo.Head()
	require.NoError(t, err)
	for _, tag := range []string{"v2", "v1", "v3"} {
		_, err := repo.CreateTag(tag, head.Hash(), nil)
		require.NoError(t, err)
	}
	return dir
}

func TestAddDiscoversReleasesDescendingAndReady(t *testing.T) {
	upstream := newUpstreamWithTags(t)
	mgr := newManager(t)

	added, err := mgr.Add(context.Background(), "acme", "lib", upstream)
	require.NoError(t, err)
	assert.Equal(t, StatusReady, added.Status)
	assert.Equal(t, []string{"v3", "v2", "v1"}, added.Releases)

	shown, err := mgr.Show(context.Background(), "acme", "lib")
	require.NoError(t, err)
	assert.Equal(t, StatusReady, shown.Status)
	assert.Equal(t, []string{"v3", "v2", "v1"}, shown.Releases)
}

func newManager(t *testing.T) *Manager {
	t.Helper()
	store, err := rdfstore.Open(filepath.Join(t.TempDir(), "s.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	repoStore, err := repostore.New(t.TempDir())
	require.NoError(t, err)
	return New(store, repoStore, nil)
}

func TestAddThenShowRoundTrips(t *testing.T) {
	upstream := newUpstream(t)
	mgr := newManager(t)

	added, err := mgr.Add(context.Background(), "acme", "widgets", upstream)
	require.NoError(t, err)
	assert.Equal(t, upstream, added.CloneURL)

	shown, err := mgr.Show(context.Background(), "acme", "widgets")
	require.NoError(t, err)
	assert.Equal(t, "acme", shown.Org)
	assert.Equal(t, "widgets", shown.Name)
}

func TestAddWithoutCloneURLOrForgeFails(t *testing.T) {
	mgr := newManager(t)
	_, err := mgr.Add(context.Background(), "acme", "widgets", "")
	assert.Error(t, err)
}

func TestListReflectsMultipleRepositories(t *testing.T) {
	upstream := newUpstream(t)
	mgr := newManager(t)
	_, err := mgr.Add(context.Background(), "acme", "widgets", upstream)
	require.NoError(t, err)
	_, err = mgr.Add(context.Background(), "acme", "gizmos", upstream)
	require.NoError(t, err)

	repos, err := mgr.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, repos, 2)
}

func TestRemoveDropsRegistryEntry(t *testing.T) {
	upstream := newUpstream(t)
	mgr := newManager(t)
	_, err := mgr.Add(context.Background(), "acme", "widgets", upstream)
	require.NoError(t, err)

	require.NoError(t, mgr.Remove(context.Background(), "acme", "widgets"))

	_, err = mgr.Show(context.Background(), "acme", "widgets")
	assert.Error(t, err)
}
