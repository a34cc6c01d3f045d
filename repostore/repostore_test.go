package repostore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
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

func TestCloneAndCheckoutProducesWorktree(t *testing.T) {
	upstream := newUpstream(t)
	root := t.TempDir()

	store, err := New(root)
	require.NoError(t, err)

	_, err = store.Clone(upstream, "acme", "widgets")
	require.NoError(t, err)

	dir, err := store.Checkout("acme", "widgets", "v1", "HEAD")
	require.NoError(t, err)

	_, statErr := os.Stat(filepath.Join(dir, "a.go"))
	assert.NoError(t, statErr)

	versions, err := store.ListVersions("acme", "widgets")
	require.NoError(t, err)
	assert.Contains(t, versions, "v1")
}

func TestCheckoutReplacesPriorWorktree(t *testing.T) {
	upstream := newUpstream(t)
	root := t.TempDir()
	store, err := New(root)
	require.NoError(t, err)
	_, err = store.Clone(upstream, "acme", "widgets")
	require.NoError(t, err)

	_, err = store.Checkout("acme", "widgets", "v1", "HEAD")
	require.NoError(t, err)
	dir, err := store.Checkout("acme", "widgets", "v1", "HEAD")
	require.NoError(t, err)

	_, statErr := os.Stat(filepath.Join(dir, "a.go"))
	assert.NoError(t, statErr)
}

func TestPruneRemovesVersionButKeepsClone(t *testing.T) {
	upstream := newUpstream(t)
	root := t.TempDir()
	store, err := New(root)
	require.NoError(t, err)
	_, err = store.Clone(upstream, "acme", "widgets")
	require.NoError(t, err)
	_, err = store.Checkout("acme", "widgets", "v1", "HEAD")
	require.NoError(t, err)

	require.NoError(t, store.Prune("acme", "widgets", "v1"))

	versions, err := store.ListVersions("acme", "widgets")
	require.NoError(t, err)
	assert.NotContains(t, versions, "v1")

	gitDir, err := store.GitDir("acme", "widgets")
	require.NoError(t, err)
	_, statErr := os.Stat(gitDir)
	assert.NoError(t, statErr)
}

func TestRemoveRepositoryDeletesEverything(t *testing.T) {
	upstream := newUpstream(t)
	root := t.TempDir()
	store, err := New(root)
	require.NoError(t, err)
	_, err = store.Clone(upstream, "acme", "widgets")
	require.NoError(t, err)

	require.NoError(t, store.RemoveRepository("acme", "widgets"))

	base, err := store.VersionDir("acme", "widgets", "v1")
	require.NoError(t, err)
	_, statErr := os.Stat(filepath.Dir(base))
	assert.True(t, os.IsNotExist(statErr))
}
