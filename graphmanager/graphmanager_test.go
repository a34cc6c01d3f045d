package graphmanager

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/repolex-dev/repolex/graphbuilder"
	"github.com/repolex-dev/repolex/ontology"
	"github.com/repolex-dev/repolex/rdfstore"
	"github.com/repolex-dev/repolex/repostore"
	"github.com/repolex-dev/repolex/schema"
	"github.com/repolex-dev/repolex/sourceparse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeWidget(t *testing.T, root, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "core"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "core", "create.go"), []byte(body), 0o644))
}

const widgetV1 = `package core

func Create(name string) *Widget {
	return &Widget{Name: name}
}

type Widget struct {
	Name string
}
`

func newUpstreamRepo(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	writeWidget(t, dir, body)
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add(".")
	require.NoError(t, err)
	_, err = wt.Commit("import", &git.CommitOptions{
		Author: &object.Signature{Name: "Ada", Email: "ada@example.com", When: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	})
	require.NoError(t, err)
	return dir
}

func newTestManager(t *testing.T) (*Manager, rdfstore.Store, *repostore.Store) {
	t.Helper()
	store, err := rdfstore.Open(filepath.Join(t.TempDir(), "s.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	repoStore, err := repostore.New(t.TempDir())
	require.NoError(t, err)
	builder := graphbuilder.New(store, sourceparse.NewGoSourceParser(), nil)
	return New(store, repoStore, builder), store, repoStore
}

func TestAddTransitionsAbsentToReady(t *testing.T) {
	upstream := newUpstreamRepo(t, widgetV1)
	mgr, store, repoStore := newTestManager(t)

	gitRepo, err := repoStore.Clone(upstream, "acme", "widgets")
	require.NoError(t, err)

	assert.Equal(t, StateAbsent, mgr.State("acme", "widgets", "v1"))

	res, err := mgr.Add(context.Background(), "acme", "widgets", "v1", "HEAD", "", gitRepo)
	require.NoError(t, err)
	assert.Equal(t, 1, res.FunctionCount)
	assert.Equal(t, StateReady, mgr.State("acme", "widgets", "v1"))

	implGraph, err := schema.ImplementationsGraph("acme", "widgets", "v1")
	require.NoError(t, err)
	graphs, err := store.ListGraphs(context.Background(), "")
	require.NoError(t, err)
	assert.Contains(t, graphs, implGraph)
}

func TestAddRejectsWhenNotAbsent(t *testing.T) {
	upstream := newUpstreamRepo(t, widgetV1)
	mgr, _, repoStore := newTestManager(t)
	gitRepo, err := repoStore.Clone(upstream, "acme", "widgets")
	require.NoError(t, err)

	_, err = mgr.Add(context.Background(), "acme", "widgets", "v1", "HEAD", "", gitRepo)
	require.NoError(t, err)

	_, err = mgr.Add(context.Background(), "acme", "widgets", "v1", "HEAD", "", gitRepo)
	assert.Error(t, err)
}

func TestAddRollsBackToAbsentOnCheckoutFailure(t *testing.T) {
	upstream := newUpstreamRepo(t, widgetV1)
	mgr, _, repoStore := newTestManager(t)
	gitRepo, err := repoStore.Clone(upstream, "acme", "widgets")
	require.NoError(t, err)

	_, err = mgr.Add(context.Background(), "acme", "widgets", "v1", "does-not-exist", "", gitRepo)
	assert.Error(t, err)
	assert.Equal(t, StateAbsent, mgr.State("acme", "widgets", "v1"))
}

func TestUpdatePerformsNuclearRebuild(t *testing.T) {
	upstream := newUpstreamRepo(t, widgetV1)
	mgr, store, repoStore := newTestManager(t)
	gitRepo, err := repoStore.Clone(upstream, "acme", "widgets")
	require.NoError(t, err)

	_, err = mgr.Add(context.Background(), "acme", "widgets", "v1", "HEAD", "", gitRepo)
	require.NoError(t, err)

	res, err := mgr.Update(context.Background(), "acme", "widgets", "v1", "HEAD", "", gitRepo)
	require.NoError(t, err)
	assert.Equal(t, 1, res.FunctionCount)
	assert.Equal(t, StateReady, mgr.State("acme", "widgets", "v1"))

	implGraph, err := schema.ImplementationsGraph("acme", "widgets", "v1")
	require.NoError(t, err)
	graphs, err := store.ListGraphs(context.Background(), "")
	require.NoError(t, err)
	assert.Contains(t, graphs, implGraph)
}

func TestRemoveDropsEveryGraphTheRepositoryOwns(t *testing.T) {
	upstream := newUpstreamRepo(t, widgetV1)
	mgr, store, repoStore := newTestManager(t)
	gitRepo, err := repoStore.Clone(upstream, "acme", "widgets")
	require.NoError(t, err)

	_, err = mgr.Add(context.Background(), "acme", "widgets", "v1", "HEAD", "", gitRepo)
	require.NoError(t, err)

	require.NoError(t, mgr.Remove(context.Background(), "acme", "widgets"))

	prefix, err := schema.RepoGraphPrefix("acme", "widgets")
	require.NoError(t, err)
	graphs, err := store.ListGraphs(context.Background(), prefix)
	require.NoError(t, err)
	assert.Empty(t, graphs)
	assert.Equal(t, StateAbsent, mgr.State("acme", "widgets", "v1"))
}

func stableExistsInVersions(t *testing.T, store rdfstore.Store, org, repo, qualifiedName string) []string {
	t.Helper()
	stableGraph, err := schema.StableFunctionsGraph(org, repo)
	require.NoError(t, err)
	stableURI, err := schema.StableEntityURI(org, repo, qualifiedName)
	require.NoError(t, err)

	q := fmt.Sprintf(`SELECT ?v WHERE { GRAPH <%s> { <%s> <%s> ?v } }`, stableGraph, stableURI, ontology.PredExistsInVersion)
	res, err := store.Query(context.Background(), q, 5*time.Second)
	require.NoError(t, err)

	var versions []string
	for _, row := range res.Rows {
		versions = append(versions, row["v"])
	}
	return versions
}

func TestRemoveVersionDeletesEntityWhenLastVersionRemoved(t *testing.T) {
	upstream := newUpstreamRepo(t, widgetV1)
	mgr, store, repoStore := newTestManager(t)
	gitRepo, err := repoStore.Clone(upstream, "acme", "widgets")
	require.NoError(t, err)

	_, err = mgr.Add(context.Background(), "acme", "widgets", "v1", "HEAD", "", gitRepo)
	require.NoError(t, err)
	assert.Equal(t, []string{"v1"}, stableExistsInVersions(t, store, "acme", "widgets", "core.Create"))

	require.NoError(t, mgr.RemoveVersion(context.Background(), "acme", "widgets", "v1"))

	assert.Empty(t, stableExistsInVersions(t, store, "acme", "widgets", "core.Create"))
	assert.Equal(t, StateAbsent, mgr.State("acme", "widgets", "v1"))

	implGraph, err := schema.ImplementationsGraph("acme", "widgets", "v1")
	require.NoError(t, err)
	graphs, err := store.ListGraphs(context.Background(), "")
	require.NoError(t, err)
	assert.NotContains(t, graphs, implGraph)
}

func TestRemoveVersionKeepsEntityStillPresentInOtherVersions(t *testing.T) {
	upstream := newUpstreamRepo(t, widgetV1)
	mgr, store, repoStore := newTestManager(t)
	gitRepo, err := repoStore.Clone(upstream, "acme", "widgets")
	require.NoError(t, err)

	_, err = mgr.Add(context.Background(), "acme", "widgets", "v1", "HEAD", "", gitRepo)
	require.NoError(t, err)
	_, err = mgr.Add(context.Background(), "acme", "widgets", "v2", "HEAD", "v1", gitRepo)
	require.NoError(t, err)

	versions := stableExistsInVersions(t, store, "acme", "widgets", "core.Create")
	assert.ElementsMatch(t, []string{"v1", "v2"}, versions)

	require.NoError(t, mgr.RemoveVersion(context.Background(), "acme", "widgets", "v1"))

	assert.Equal(t, []string{"v2"}, stableExistsInVersions(t, store, "acme", "widgets", "core.Create"))
	assert.Equal(t, StateAbsent, mgr.State("acme", "widgets", "v1"))
	assert.Equal(t, StateReady, mgr.State("acme", "widgets", "v2"))
}

func TestListEnumeratesOwnedGraphs(t *testing.T) {
	upstream := newUpstreamRepo(t, widgetV1)
	mgr, _, repoStore := newTestManager(t)
	gitRepo, err := repoStore.Clone(upstream, "acme", "widgets")
	require.NoError(t, err)

	_, err = mgr.Add(context.Background(), "acme", "widgets", "v1", "HEAD", "", gitRepo)
	require.NoError(t, err)

	graphs, err := mgr.List(context.Background(), "acme", "widgets")
	require.NoError(t, err)
	assert.NotEmpty(t, graphs)
}
