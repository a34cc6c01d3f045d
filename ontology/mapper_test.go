package ontology

import (
	"testing"

	"github.com/repolex-dev/repolex/sourceparse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapFunctionStableTripleNeverMentionsVersion(t *testing.T) {
	ctx := VersionContext{Org: "acme", Repo: "widgets", Version: "v1.0.0"}
	fn := &sourceparse.FunctionEntity{
		QualifiedName: "core.create.Create",
		ModulePath:    "core.create",
		File:          "core/create.go",
		StartLine:     3,
		EndLine:       7,
		BodyLines:     4,
		Calls:         []string{"validate"},
		Category:      "function",
		RefactorScore: "small",
	}

	stable, impl, err := MapFunction(ctx, fn, nil)
	require.NoError(t, err)

	for _, tr := range stable {
		assert.NotContains(t, tr.Subject, "v1.0.0")
		assert.NotContains(t, tr.Object, "v1.0.0")
	}

	var sawImpl bool
	for _, tr := range impl {
		if tr.Predicate == PredBelongsToVer {
			sawImpl = true
			assert.Equal(t, "v1.0.0", tr.Object)
		}
	}
	assert.True(t, sawImpl)
}

func TestMapFunctionResolvesCallsWhenResolverMatches(t *testing.T) {
	ctx := VersionContext{Org: "acme", Repo: "widgets", Version: "v1.0.0"}
	fn := &sourceparse.FunctionEntity{
		QualifiedName: "core.create.Create",
		ModulePath:    "core.create",
		Calls:         []string{"validate", "unknown"},
	}
	resolve := func(name string) (string, bool) {
		if name == "validate" {
			return "function:acme/widgets/core.create.validate", true
		}
		return "", false
	}

	_, impl, err := MapFunction(ctx, fn, resolve)
	require.NoError(t, err)

	var calls []string
	for _, tr := range impl {
		if tr.Predicate == PredCalls {
			calls = append(calls, tr.Object)
		}
	}
	assert.Equal(t, []string{"function:acme/widgets/core.create.validate"}, calls)
}

func TestMapFunctionOmitsCallsWithoutResolver(t *testing.T) {
	ctx := VersionContext{Org: "acme", Repo: "widgets", Version: "v1.0.0"}
	fn := &sourceparse.FunctionEntity{
		QualifiedName: "core.create.Create",
		Calls:         []string{"validate"},
	}

	_, impl, err := MapFunction(ctx, fn, nil)
	require.NoError(t, err)
	for _, tr := range impl {
		assert.NotEqual(t, PredCalls, tr.Predicate)
	}
}

func TestMapClassEmitsParentAndMethodTriples(t *testing.T) {
	ctx := VersionContext{Org: "acme", Repo: "widgets", Version: "v1.0.0"}
	cls := &sourceparse.ClassEntity{
		QualifiedName: "core.create.Widget",
		ModulePath:    "core.create",
		ParentClasses: []string{"Base"},
		Methods:       []string{"core.create.Widget.Validate"},
	}

	stable, impl, err := MapClass(ctx, cls, "simple")
	require.NoError(t, err)

	var sawParent, sawMethod bool
	for _, tr := range stable {
		if tr.Predicate == PredParentClass && tr.Object == "Base" {
			sawParent = true
		}
	}
	for _, tr := range impl {
		if tr.Predicate == PredHasMethod {
			sawMethod = true
		}
	}
	assert.True(t, sawParent)
	assert.True(t, sawMethod)
}

func TestMapModuleCarriesCounts(t *testing.T) {
	ctx := VersionContext{Org: "acme", Repo: "widgets", Version: "v1.0.0"}
	mod := &sourceparse.ModuleEntity{
		DottedPath: "core.create",
		File:       "core/create.go",
	}

	triples, err := MapModule(ctx, mod, 2, 1)
	require.NoError(t, err)

	found := map[string]string{}
	for _, tr := range triples {
		found[tr.Predicate] = tr.Object
	}
	assert.Equal(t, "2", found[PredFunctionCount])
	assert.Equal(t, "1", found[PredClassCount])
}

func TestMapFunctionRejectsInvalidIdentifier(t *testing.T) {
	ctx := VersionContext{Org: "acme", Repo: "widgets", Version: "v1.0.0"}
	fn := &sourceparse.FunctionEntity{QualifiedName: "../escape"}
	_, _, err := MapFunction(ctx, fn, nil)
	assert.Error(t, err)
}
