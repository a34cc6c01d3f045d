package rdfstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/repolex-dev/repolex/rerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "store.db")
	s, err := Open(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// TestAcquireWriterReturnsOnCancelWithoutOrphaningToken holds the writer
// token in one goroutine, lets a second AcquireWriter call time out
// against a contended token, and then confirms the token is still
// acquirable afterward -- a cancelled waiter must never leave the store
// permanently locked for every later writer.
func TestAcquireWriterReturnsOnCancelWithoutOrphaningToken(t *testing.T) {
	s := newTestStore(t)

	release, err := s.AcquireWriter(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = s.AcquireWriter(ctx)
	require.Error(t, err)

	release()

	release2, err := s.AcquireWriter(context.Background())
	require.NoError(t, err, "writer token must still be acquirable after a cancelled waiter")
	release2()
}

func TestUpsertAndQuerySelectCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	graph := "https://graphs.repolex.dev/repo/acme/lib/functions/stable"
	err := s.UpsertGraph(ctx, graph, []Triple{
		{Subject: "function:acme/lib/create", Predicate: "a", Object: "woc:Function"},
		{Subject: "function:acme/lib/make", Predicate: "a", Object: "woc:Function"},
	})
	require.NoError(t, err)

	res, err := s.Query(ctx, `SELECT (COUNT(*) AS ?n) WHERE { GRAPH <`+graph+`> { ?f a woc:Function } }`, time.Second)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "2", res.Rows[0]["n"])
}

func TestAppendIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	graph := "https://graphs.repolex.dev/repo/acme/lib/git/commits"
	triple := Triple{Subject: "commit:acme/lib/abc123", Predicate: "git:sha", Object: "abc123", ObjectIsLiteral: true}

	require.NoError(t, s.AppendToGraph(ctx, graph, []Triple{triple}))
	require.NoError(t, s.AppendToGraph(ctx, graph, []Triple{triple}))

	graphs, err := s.ListGraphs(ctx, "")
	require.NoError(t, err)
	assert.Contains(t, graphs, graph)

	snap := s.current.Load()
	assert.Len(t, snap.graphs[graph], 1)
}

func TestUpsertReplacesAtomically(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	graph := "https://graphs.repolex.dev/repo/acme/lib/functions/implementations/v2"

	require.NoError(t, s.UpsertGraph(ctx, graph, []Triple{
		{Subject: "function:acme/lib/create#v2", Predicate: "line:start", Object: "10", ObjectIsLiteral: true},
	}))
	require.NoError(t, s.UpsertGraph(ctx, graph, []Triple{
		{Subject: "function:acme/lib/create#v2", Predicate: "line:start", Object: "99", ObjectIsLiteral: true},
	}))

	snap := s.current.Load()
	require.Len(t, snap.graphs[graph], 1)
	assert.Equal(t, "99", snap.graphs[graph][0].Object)
}

func TestDropGraphRemovesImplementationTriples(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	graph := "https://graphs.repolex.dev/repo/acme/lib/functions/implementations/v1"
	require.NoError(t, s.UpsertGraph(ctx, graph, []Triple{
		{Subject: "function:acme/lib/create#v1", Predicate: "a", Object: "woc:FunctionImplementation"},
	}))
	require.NoError(t, s.DropGraph(ctx, graph))

	graphs, err := s.ListGraphs(ctx, "")
	require.NoError(t, err)
	assert.NotContains(t, graphs, graph)

	// dropping again is a no-op
	require.NoError(t, s.DropGraph(ctx, graph))
}

func TestQueryRejectsUpdateForms(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.Query(ctx, `DELETE WHERE { GRAPH <g> { ?s ?p ?o } }`, time.Second)
	require.Error(t, err)
	assert.Equal(t, rerrors.Security, rerrors.KindOf(err))
}

func TestQueryAsk(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	graph := "https://graphs.repolex.dev/repo/acme/lib/functions/stable"
	require.NoError(t, s.UpsertGraph(ctx, graph, []Triple{
		{Subject: "function:acme/lib/create", Predicate: "a", Object: "woc:Function"},
	}))

	res, err := s.Query(ctx, `ASK { GRAPH <`+graph+`> { ?f a woc:Function } }`, time.Second)
	require.NoError(t, err)
	assert.True(t, res.Boolean)
}

func TestQueryConstruct(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	graph := "https://graphs.repolex.dev/repo/acme/lib/functions/stable"
	require.NoError(t, s.UpsertGraph(ctx, graph, []Triple{
		{Subject: "function:acme/lib/create", Predicate: "a", Object: "woc:Function"},
	}))

	res, err := s.Query(ctx, `CONSTRUCT { ?f a ?type } WHERE { GRAPH <`+graph+`> { ?f a ?type } }`, time.Second)
	require.NoError(t, err)
	require.Len(t, res.ConstructTriples, 1)
	assert.Equal(t, "function:acme/lib/create", res.ConstructTriples[0].Subject)
}
