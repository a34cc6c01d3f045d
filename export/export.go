// Package export implements the Exporters (component K of spec.md
// section 4.11): the outline and compact streaming artifact producers
// that read a version's graphs via the store's own SPARQL engine and
// never mutate it. A failed export aborts and removes its partial
// output file; it never leaves the store itself in a different state,
// since exports are read-only by construction.
package export

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/repolex-dev/repolex/ontology"
	"github.com/repolex-dev/repolex/rdfstore"
	"github.com/repolex-dev/repolex/refactor"
	"github.com/repolex-dev/repolex/rerrors"
	"github.com/repolex-dev/repolex/schema"
)

// DefaultBatchSize is the default SPARQL page size named in spec.md
// section 4.11.
const DefaultBatchSize = 50

// Exporter reads a version's graphs and renders outline/compact
// artifacts. Besides the Store and batch size it holds one string table
// that every call on the same Exporter shares and grows, so a compact
// export's strings record lists every path this Exporter has interned
// so far, not only the exported version's. Calls are mutex-safe against
// each other and only read the store, so they can run concurrently with
// an ingestion in progress against the same store.
type Exporter struct {
	Store     rdfstore.Store
	BatchSize int

	strings *stringTable
}

// New constructs an Exporter. batchSize <= 0 uses DefaultBatchSize.
func New(store rdfstore.Store, batchSize int) *Exporter {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Exporter{Store: store, BatchSize: batchSize, strings: newStringTable()}
}

// entityRow is one subject's triples grouped by predicate. Multi-valued
// predicates (code:hasMethod, code:parentClass) keep every value; every
// other predicate's first value is what callers read.
type entityRow map[string][]string

func (r entityRow) first(pred string) string {
	if vs := r[pred]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

func (r entityRow) typeOf() string { return r.first(ontology.PredType) }

// functionEntity, classEntity, moduleEntity are the export-package's own
// read-side projections assembled from entityRow, independent of the
// write-side sourceparse.*Entity types the ingestion pipeline uses.
// ModulePathID and FileID reference the Exporter's string table rather
// than embedding the (often long, often repeated) path directly.
type functionEntity struct {
	Name, Signature, Category, Refactor string
	ModulePathID, FileID                int
	StartLine, EndLine                  int
}

type classEntity struct {
	Name, Inherits, Category, Refactor string
	ModulePathID                       int
	Methods                            int
}

type moduleEntity struct {
	Name, Category string
	FileID         int
	FunctionCount  int
}

// readGraphs fetches the stable graph (indexed by stable URI) and one
// version's implementation and files graphs (indexed by their own
// subject), streaming each graph in BatchSize-row pages rather than one
// unbounded query, per spec.md section 4.11.
func (e *Exporter) readGraphs(ctx context.Context, org, repo, version string) (stable, impl, files map[string]entityRow, err error) {
	stableGraph, err := schema.StableFunctionsGraph(org, repo)
	if err != nil {
		return nil, nil, nil, err
	}
	implGraph, err := schema.ImplementationsGraph(org, repo, version)
	if err != nil {
		return nil, nil, nil, err
	}
	filesGraph, err := schema.FilesGraph(org, repo, version)
	if err != nil {
		return nil, nil, nil, err
	}

	stable, err = e.streamGraph(ctx, stableGraph)
	if err != nil {
		return nil, nil, nil, err
	}
	impl, err = e.streamGraph(ctx, implGraph)
	if err != nil {
		return nil, nil, nil, err
	}
	files, err = e.streamGraph(ctx, filesGraph)
	if err != nil {
		return nil, nil, nil, err
	}
	return stable, impl, files, nil
}

// streamGraph pages through a graph's triples BatchSize rows at a time
// and groups them by subject. Pagination rests on the store's bbolt
// snapshot being key-sorted, which gives successive LIMIT/OFFSET calls a
// stable cursor even though the SPARQL subset has no ORDER BY clause of
// its own.
func (e *Exporter) streamGraph(ctx context.Context, graphURI string) (map[string]entityRow, error) {
	rows := map[string]entityRow{}
	offset := 0
	for {
		q := "SELECT ?s ?p ?o WHERE { GRAPH <" + graphURI + "> { ?s ?p ?o } } LIMIT " +
			strconv.Itoa(e.BatchSize) + " OFFSET " + strconv.Itoa(offset)
		res, err := e.Store.Query(ctx, q, 30*time.Second)
		if err != nil {
			return nil, rerrors.Wrap(rerrors.Export, err, "stream graph "+graphURI)
		}
		if len(res.Rows) == 0 {
			return rows, nil
		}
		for _, row := range res.Rows {
			subj := row["s"]
			r, ok := rows[subj]
			if !ok {
				r = entityRow{}
				rows[subj] = r
			}
			r[row["p"]] = append(r[row["p"]], row["o"])
		}
		offset += len(res.Rows)
		if len(res.Rows) < e.BatchSize {
			return rows, nil
		}
	}
}

// collect assembles functions, classes (reading cross-references into
// stable), and modules from the three graphs, sorted by subject URI for
// deterministic emission order.
func (e *Exporter) collect(stable, impl, files map[string]entityRow) (funcs []functionEntity, classes []classEntity, modules []moduleEntity) {
	for _, uri := range sortedKeys(impl) {
		row := impl[uri]
		switch row.typeOf() {
		case ontology.TypeFunctionImpl:
			stableURI := row.first(ontology.PredImplementsFunc)
			st := stable[stableURI]
			qualified := st.first(ontology.PredCanonicalName)
			start, _ := strconv.Atoi(row.first(ontology.PredStartLine))
			end, _ := strconv.Atoi(row.first(ontology.PredEndLine))
			funcs = append(funcs, functionEntity{
				Name:         shortName(qualified),
				ModulePathID: e.strings.id(st.first(ontology.PredModulePath)),
				Signature:    row.first(ontology.PredSignature),
				FileID:       e.strings.id(row.first(ontology.PredDefinedInFile)),
				Category:     row.first(ontology.PredCategory),
				Refactor:     row.first(ontology.PredRefactorScore),
				StartLine:    start,
				EndLine:      end,
			})
		case ontology.TypeClassImpl:
			stableURI := row.first(ontology.PredImplementsClass)
			st := stable[stableURI]
			qualified := st.first(ontology.PredCanonicalName)
			classes = append(classes, classEntity{
				Name:         shortName(qualified),
				ModulePathID: e.strings.id(st.first(ontology.PredModulePath)),
				Inherits:     joinNonEmpty(st[ontology.PredParentClass]),
				Category:     "class",
				Refactor:     row.first(ontology.PredRefactorScore),
				Methods:      len(row[ontology.PredHasMethod]),
			})
		}
	}

	for _, uri := range sortedKeys(files) {
		row := files[uri]
		if row.typeOf() != ontology.TypeModule {
			continue
		}
		count, _ := strconv.Atoi(row.first(ontology.PredFunctionCount))
		modules = append(modules, moduleEntity{
			Name:          row.first(ontology.PredCanonicalName),
			FileID:        e.strings.id(row.first(ontology.PredDefinedInFile)),
			Category:      refactor.Module(count),
			FunctionCount: count,
		})
	}

	return funcs, classes, modules
}

func sortedKeys(m map[string]entityRow) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func joinNonEmpty(vs []string) string {
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		if v != "" {
			out = append(out, v)
		}
	}
	sort.Strings(out)
	result := ""
	for i, v := range out {
		if i > 0 {
			result += ","
		}
		result += v
	}
	return result
}

// shortName returns the last dotted segment of a qualified name, the
// same convention the Graph Builder's call resolver uses.
func shortName(qualified string) string {
	for i := len(qualified) - 1; i >= 0; i-- {
		if qualified[i] == '.' {
			return qualified[i+1:]
		}
	}
	return qualified
}
