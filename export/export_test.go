package export

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/repolex-dev/repolex/graphbuilder"
	"github.com/repolex-dev/repolex/rdfstore"
	"github.com/repolex-dev/repolex/sourceparse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func seedStore(t *testing.T) rdfstore.Store {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "lib"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "lib", "make.go"), []byte(`package lib

// make builds one widget.
func make(name string) *Widget {
	return &Widget{Name: name}
}

type Widget struct {
	Name string
}
`), 0o644))

	repo, err := git.PlainInit(root, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add(".")
	require.NoError(t, err)
	_, err = wt.Commit("import", &git.CommitOptions{
		Author: &object.Signature{Name: "Ada", Email: "ada@example.com", When: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	})
	require.NoError(t, err)

	store, err := rdfstore.Open(filepath.Join(t.TempDir(), "s.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	b := graphbuilder.New(store, sourceparse.NewGoSourceParser(), nil)
	_, err = b.Build(context.Background(), graphbuilder.BuildInput{
		Org: "acme", Repo: "lib", Version: "v2", CheckoutRoot: root, GitRepository: repo,
	})
	require.NoError(t, err)
	return store
}

func TestCompactEmitsHeaderFunctionAndFooter(t *testing.T) {
	store := seedStore(t)
	exp := New(store, 50)

	var buf bytes.Buffer
	require.NoError(t, exp.Compact(context.Background(), "acme", "lib", "v2", &buf))

	lines := bytes.Split(bytes.TrimRight(buf.Bytes(), "\n"), []byte("\n"))
	require.Len(t, lines, 4)

	header := gjson.ParseBytes(lines[0])
	assert.Equal(t, "header", header.Get("type").String())
	assert.Equal(t, "acme/lib", header.Get("repo").String())
	assert.Equal(t, "v2", header.Get("release").String())

	strs := gjson.ParseBytes(lines[1])
	assert.Equal(t, "strings", strs.Get("type").String())
	assert.True(t, strs.Get("values").IsArray())

	fn := gjson.ParseBytes(lines[2])
	assert.Equal(t, "function", fn.Get("type").String())
	assert.Equal(t, "make", fn.Get("n").String())
	assert.Equal(t, "small", fn.Get("refactor").String())
	// "f" references the strings table rather than embedding the path.
	values := strs.Get("values").Array()
	fileID := int(fn.Get("f").Int())
	require.True(t, fileID >= 0 && fileID < len(values))
	assert.Equal(t, filepath.Join("lib", "make.go"), values[fileID].String())

	footer := gjson.ParseBytes(lines[3])
	assert.Equal(t, "footer", footer.Get("type").String())
	assert.Equal(t, int64(1), footer.Get("stats.functions_exported").Int())
}

func TestCompactBatchSizeOfOneStillPaginatesCorrectly(t *testing.T) {
	store := seedStore(t)
	exp := New(store, 1)

	var buf bytes.Buffer
	require.NoError(t, exp.Compact(context.Background(), "acme", "lib", "v2", &buf))
	assert.Contains(t, buf.String(), `"n":"make"`)
}

func TestOutlineRendersModuleThenFunctionWithDocstring(t *testing.T) {
	store := seedStore(t)
	exp := New(store, 50)

	var buf bytes.Buffer
	require.NoError(t, exp.Outline(context.Background(), "acme", "lib", "v2", &buf))
	assert.Contains(t, buf.String(), "make:")
}

func TestCompactToFileOnUnknownVersionYieldsEmptyExport(t *testing.T) {
	store := seedStore(t)
	exp := New(store, 50)

	dest := filepath.Join(t.TempDir(), "out.jsonl")
	require.NoError(t, exp.CompactToFile(context.Background(), "acme", "lib", "does-not-exist", dest))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	lines := bytes.Split(bytes.TrimRight(data, "\n"), []byte("\n"))
	require.Len(t, lines, 3)
	footer := gjson.ParseBytes(lines[2])
	assert.Equal(t, int64(0), footer.Get("stats.functions_exported").Int())
}
