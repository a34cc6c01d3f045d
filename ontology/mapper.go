// Package ontology implements the Ontology Mapper (component D of
// spec.md section 4.4): a pure function from a ParsedEntity plus version
// context to the RDF triples that represent it. The mapper never talks
// to the store; Graph Builder (component G) is the only caller and the
// only component that decides which graph each triple set is written
// into.
package ontology

import (
	"fmt"
	"strings"

	"github.com/repolex-dev/repolex/rdfstore"
	"github.com/repolex-dev/repolex/schema"
	"github.com/repolex-dev/repolex/sourceparse"
)

// Predicates under the shared code ontology (schema.OntologyCode).
const (
	PredType            = "a" // rdf:type shorthand, consistent with the SPARQL engine's "a" handling
	PredCanonicalName   = "code:canonicalName"
	PredSignature       = "code:signature"
	PredDocstring       = "code:docstring"
	PredDefinedInFile   = "code:definedInFile"
	PredStartLine       = "code:startLine"
	PredEndLine         = "code:endLine"
	PredBelongsToVer    = "code:belongsToVersion"
	PredImplementsFunc  = "code:implementsFunction"
	PredImplementsClass = "code:implementsClass"
	PredExistsInVersion = "code:existsInVersion"
	PredFirstSeenVer    = "code:firstSeenVersion"
	PredModulePath      = "code:modulePath"
	PredParentClass     = "code:parentClass"
	PredHasMethod       = "code:hasMethod"
	PredCategory        = "code:category"
	PredRefactorScore   = "code:refactorScore"
	PredCalls           = "code:calls"
	PredFunctionCount   = "code:functionCount"
	PredClassCount      = "code:classCount"
)

// Type URIs.
const (
	TypeFunction     = "woc:Function"
	TypeFunctionImpl = "woc:FunctionImplementation"
	TypeClass        = "woc:Class"
	TypeClassImpl    = "woc:ClassImplementation"
	TypeModule       = "woc:Module"
)

// VersionContext carries the (org, repo, version) a ParsedEntity is being
// mapped for.
type VersionContext struct {
	Org     string
	Repo    string
	Version string
}

// CallResolver resolves a syntactically-called name to the stable URI of
// another function in the same repository, when it can be resolved
// unambiguously. It is supplied by Graph Builder, which alone has the
// whole-repository view the mapper itself does not hold; the mapper
// remains a pure function of (entity, ctx, resolver outputs).
type CallResolver func(calledName string) (stableURI string, ok bool)

// MapFunction emits the stable-graph and implementation-graph triples
// for one parsed function, per spec.md invariants 1-3.
func MapFunction(ctx VersionContext, fn *sourceparse.FunctionEntity, resolve CallResolver) (stable, impl []rdfstore.Triple, err error) {
	stableURI, err := schema.StableEntityURI(ctx.Org, ctx.Repo, fn.QualifiedName)
	if err != nil {
		return nil, nil, err
	}
	implURI, err := schema.ImplementationURI(ctx.Org, ctx.Repo, fn.QualifiedName, ctx.Version)
	if err != nil {
		return nil, nil, err
	}

	stable = []rdfstore.Triple{
		{Subject: stableURI, Predicate: PredType, Object: TypeFunction},
		{Subject: stableURI, Predicate: PredCanonicalName, Object: fn.QualifiedName, ObjectIsLiteral: true},
		{Subject: stableURI, Predicate: PredModulePath, Object: fn.ModulePath, ObjectIsLiteral: true},
		{Subject: stableURI, Predicate: PredExistsInVersion, Object: ctx.Version, ObjectIsLiteral: true},
	}

	impl = []rdfstore.Triple{
		{Subject: implURI, Predicate: PredType, Object: TypeFunctionImpl},
		{Subject: implURI, Predicate: PredImplementsFunc, Object: stableURI},
		{Subject: implURI, Predicate: PredBelongsToVer, Object: ctx.Version, ObjectIsLiteral: true},
		{Subject: implURI, Predicate: PredSignature, Object: SignatureText(fn), ObjectIsLiteral: true},
		{Subject: implURI, Predicate: PredDocstring, Object: fn.Docstring, ObjectIsLiteral: true},
		{Subject: implURI, Predicate: PredDefinedInFile, Object: fn.File, ObjectIsLiteral: true},
		{Subject: implURI, Predicate: PredStartLine, Object: fmt.Sprint(fn.StartLine), ObjectIsLiteral: true},
		{Subject: implURI, Predicate: PredEndLine, Object: fmt.Sprint(fn.EndLine), ObjectIsLiteral: true},
		{Subject: implURI, Predicate: PredCategory, Object: fn.Category, ObjectIsLiteral: true},
		{Subject: implURI, Predicate: PredRefactorScore, Object: fn.RefactorScore, ObjectIsLiteral: true},
	}

	// Open Question 2: materialize calls edges only when they resolve to
	// a stable URI; otherwise omit, per spec.md section 9.
	if resolve != nil {
		for _, called := range fn.Calls {
			if target, ok := resolve(called); ok {
				impl = append(impl, rdfstore.Triple{Subject: implURI, Predicate: PredCalls, Object: target})
			}
		}
	}

	return stable, impl, nil
}

// MapClass emits the stable-graph and implementation-graph triples for
// one parsed class/type. methodCount drives the refactor score, which
// Graph Builder computes and passes in (spec.md section 4.3).
func MapClass(ctx VersionContext, cls *sourceparse.ClassEntity, refactorScore string) (stable, impl []rdfstore.Triple, err error) {
	stableURI, err := schema.StableEntityURI(ctx.Org, ctx.Repo, cls.QualifiedName)
	if err != nil {
		return nil, nil, err
	}
	implURI, err := schema.ImplementationURI(ctx.Org, ctx.Repo, cls.QualifiedName, ctx.Version)
	if err != nil {
		return nil, nil, err
	}

	stable = []rdfstore.Triple{
		{Subject: stableURI, Predicate: PredType, Object: TypeClass},
		{Subject: stableURI, Predicate: PredCanonicalName, Object: cls.QualifiedName, ObjectIsLiteral: true},
		{Subject: stableURI, Predicate: PredModulePath, Object: cls.ModulePath, ObjectIsLiteral: true},
		{Subject: stableURI, Predicate: PredExistsInVersion, Object: ctx.Version, ObjectIsLiteral: true},
	}
	for _, parent := range cls.ParentClasses {
		stable = append(stable, rdfstore.Triple{Subject: stableURI, Predicate: PredParentClass, Object: parent, ObjectIsLiteral: true})
	}

	impl = []rdfstore.Triple{
		{Subject: implURI, Predicate: PredType, Object: TypeClassImpl},
		{Subject: implURI, Predicate: PredImplementsClass, Object: stableURI},
		{Subject: implURI, Predicate: PredBelongsToVer, Object: ctx.Version, ObjectIsLiteral: true},
		{Subject: implURI, Predicate: PredDocstring, Object: cls.Docstring, ObjectIsLiteral: true},
		{Subject: implURI, Predicate: PredDefinedInFile, Object: cls.File, ObjectIsLiteral: true},
		{Subject: implURI, Predicate: PredStartLine, Object: fmt.Sprint(cls.StartLine), ObjectIsLiteral: true},
		{Subject: implURI, Predicate: PredEndLine, Object: fmt.Sprint(cls.EndLine), ObjectIsLiteral: true},
		{Subject: implURI, Predicate: PredRefactorScore, Object: refactorScore, ObjectIsLiteral: true},
		// Reuses PredSignature to carry the class's method set, so a
		// class's change-event diff keys off the same predicate a
		// function's does: a method added or removed is this entity's
		// equivalent of a signature change.
		{Subject: implURI, Predicate: PredSignature, Object: strings.Join(cls.Methods, ","), ObjectIsLiteral: true},
	}
	for _, method := range cls.Methods {
		impl = append(impl, rdfstore.Triple{Subject: implURI, Predicate: PredHasMethod, Object: method, ObjectIsLiteral: true})
	}

	return stable, impl, nil
}

// MapModule emits the version-scoped triples describing one module
// (source file), including the function/class counts the builder
// derived, per the Module entity definition in spec.md section 3.
func MapModule(ctx VersionContext, mod *sourceparse.ModuleEntity, functionCount, classCount int) ([]rdfstore.Triple, error) {
	uri, err := schema.ModuleURI(ctx.Org, ctx.Repo, mod.DottedPath, ctx.Version)
	if err != nil {
		return nil, err
	}
	return []rdfstore.Triple{
		{Subject: uri, Predicate: PredType, Object: TypeModule},
		{Subject: uri, Predicate: PredCanonicalName, Object: mod.DottedPath, ObjectIsLiteral: true},
		{Subject: uri, Predicate: PredDefinedInFile, Object: mod.File, ObjectIsLiteral: true},
		{Subject: uri, Predicate: PredBelongsToVer, Object: ctx.Version, ObjectIsLiteral: true},
		{Subject: uri, Predicate: PredFunctionCount, Object: fmt.Sprint(functionCount), ObjectIsLiteral: true},
		{Subject: uri, Predicate: PredClassCount, Object: fmt.Sprint(classCount), ObjectIsLiteral: true},
	}, nil
}

// SignatureText renders a best-effort function signature string from its
// parsed parameters and return type, the text stored on
// FunctionImplementation per spec.md section 3. Exported so callers
// diffing two versions' signatures (Graph Builder) render them exactly
// the way they were persisted.
func SignatureText(fn *sourceparse.FunctionEntity) string {
	parts := make([]string, 0, len(fn.Parameters))
	for _, p := range fn.Parameters {
		if p.Name != "" {
			parts = append(parts, p.Name+" "+p.TypeText)
		} else {
			parts = append(parts, p.TypeText)
		}
	}
	sig := fn.QualifiedName + "(" + strings.Join(parts, ", ") + ")"
	if fn.ReturnType != "" {
		sig += " " + fn.ReturnType
	}
	return sig
}
