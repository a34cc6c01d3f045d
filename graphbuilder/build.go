// Package graphbuilder implements the Graph Builder (component G of
// spec.md section 4.7): it orchestrates the Source Parser, Ontology
// Mapper, Git Intelligence Extractor, and Change Event Generator into
// the single pipeline that turns one checked-out repository version
// into graph data.
package graphbuilder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/repolex-dev/repolex/changeevent"
	"github.com/repolex-dev/repolex/gitintel"
	"github.com/repolex-dev/repolex/ontology"
	"github.com/repolex-dev/repolex/progress"
	"github.com/repolex-dev/repolex/rdfstore"
	"github.com/repolex-dev/repolex/refactor"
	"github.com/repolex-dev/repolex/rerrors"
	"github.com/repolex-dev/repolex/schema"
	"github.com/repolex-dev/repolex/sourceparse"
	"github.com/sirupsen/logrus"
)

// BuildInput describes one version-ingestion request.
type BuildInput struct {
	Org           string
	Repo          string
	Version       string
	PriorVersion  string // "" if this is the repository's first ingested version
	CheckoutRoot  string
	GitRepository *git.Repository // nil skips git intelligence extraction and commit attribution
	Progress      progress.Observer
	ParseOptions  sourceparse.Options // max_file_size_mb / max_concurrent_parsers from config
}

// Result summarizes one build for callers (CLI progress reporting, logs).
type Result struct {
	FunctionCount    int
	ClassCount       int
	ModuleCount      int
	Warnings         []sourceparse.Warning
	ChangeEvents     []changeevent.Event
	DuplicatesLogged int
}

// Builder runs the ingestion pipeline against a Store and a Parser.
type Builder struct {
	Store  rdfstore.Store
	Parser sourceparse.Parser
	Log    *logrus.Entry
}

// New constructs a Builder. log may be nil, in which case the standard
// logger is used.
func New(store rdfstore.Store, parser sourceparse.Parser, log *logrus.Entry) *Builder {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Builder{Store: store, Parser: parser, Log: log}
}

// Build runs the full algorithm from spec.md section 4.7:
//  1. parse the checkout and mint every entity's URIs
//  2. widen the stable graph (append, never replace: identity never
//     regresses once observed)
//  3. replace the version-scoped implementation, files, and meta graphs
//     wholesale for this version
//  4. extract git intelligence and append it to the repository's git
//     graphs
//  5. if a prior version is known, diff the two versions' stable
//     identity sets and append the resulting change events
func (b *Builder) Build(ctx context.Context, in BuildInput) (*Result, error) {
	reporter := progress.NewReporter("parse", 0, in.Progress)
	reporter.Report("starting parse of " + in.CheckoutRoot)

	entities, warnings, err := b.Parser.Parse(ctx, in.CheckoutRoot, in.ParseOptions)
	if err != nil {
		return nil, rerrors.Wrap(rerrors.Source, err, "start parse")
	}

	var funcs []*sourceparse.FunctionEntity
	var classes []*sourceparse.ClassEntity
	var modules []*sourceparse.ModuleEntity
	var warnList []sourceparse.Warning

	done := false
	for !done {
		select {
		case e, ok := <-entities:
			if !ok {
				entities = nil
				break
			}
			switch e.Variant {
			case sourceparse.VariantFunction:
				funcs = append(funcs, e.Function)
			case sourceparse.VariantClass:
				classes = append(classes, e.Class)
			case sourceparse.VariantModule:
				modules = append(modules, e.Module)
			}
		case w, ok := <-warnings:
			if !ok {
				warnings = nil
				break
			}
			warnList = append(warnList, w)
		}
		if entities == nil && warnings == nil {
			done = true
		}
	}

	funcs, classes, dupCount := dedupe(funcs, classes, b.Log)
	reporter.Stage = "map"
	reporter.Report("mapping ontology triples")

	resolver := buildCallResolver(in.Org, in.Repo, funcs)

	ctxVer := ontology.VersionContext{Org: in.Org, Repo: in.Repo, Version: in.Version}

	var stableTriples, implTriples []rdfstore.Triple
	for _, fn := range funcs {
		stable, impl, mErr := ontology.MapFunction(ctxVer, fn, resolver)
		if mErr != nil {
			return nil, mErr
		}
		stableTriples = append(stableTriples, stable...)
		implTriples = append(implTriples, impl...)
	}

	methodCounts := map[string]int{}
	for _, cls := range classes {
		methodCounts[cls.QualifiedName] = len(cls.Methods)
	}
	for _, cls := range classes {
		score := refactor.Class(methodCounts[cls.QualifiedName])
		stable, impl, mErr := ontology.MapClass(ctxVer, cls, score)
		if mErr != nil {
			return nil, mErr
		}
		stableTriples = append(stableTriples, stable...)
		implTriples = append(implTriples, impl...)
	}

	funcCountByModule := map[string]int{}
	classCountByModule := map[string]int{}
	for _, fn := range funcs {
		funcCountByModule[fn.ModulePath]++
	}
	for _, cls := range classes {
		classCountByModule[cls.ModulePath]++
	}

	var fileTriples []rdfstore.Triple
	for _, mod := range modules {
		triples, mErr := ontology.MapModule(ctxVer, mod, funcCountByModule[mod.DottedPath], classCountByModule[mod.DottedPath])
		if mErr != nil {
			return nil, mErr
		}
		fileTriples = append(fileTriples, triples...)
	}

	reporter.Stage = "widen_stable"
	reporter.Report("widening stable graph")
	stableGraph, err := schema.StableFunctionsGraph(in.Org, in.Repo)
	if err != nil {
		return nil, err
	}
	if err := b.Store.AppendToGraph(ctx, stableGraph, stableTriples); err != nil {
		return nil, rerrors.Wrap(rerrors.Store, err, "widen stable graph")
	}

	implGraph, err := schema.ImplementationsGraph(in.Org, in.Repo, in.Version)
	if err != nil {
		return nil, err
	}
	if err := b.Store.UpsertGraph(ctx, implGraph, implTriples); err != nil {
		return nil, rerrors.Wrap(rerrors.Store, err, "replace implementations graph")
	}

	filesGraph, err := schema.FilesGraph(in.Org, in.Repo, in.Version)
	if err != nil {
		return nil, err
	}
	if err := b.Store.UpsertGraph(ctx, filesGraph, fileTriples); err != nil {
		return nil, rerrors.Wrap(rerrors.Store, err, "replace files graph")
	}

	metaGraph, err := schema.MetaGraph(in.Org, in.Repo, in.Version)
	if err != nil {
		return nil, err
	}
	if err := b.Store.UpsertGraph(ctx, metaGraph, metaTriples(in.Version, warnList)); err != nil {
		return nil, rerrors.Wrap(rerrors.Store, err, "replace meta graph")
	}

	if in.GitRepository != nil {
		reporter.Stage = "git_intelligence"
		reporter.Report("extracting git intelligence")
		if err := b.extractGit(ctx, in, funcs); err != nil {
			return nil, err
		}
	}

	var events []changeevent.Event
	if in.PriorVersion != "" {
		reporter.Stage = "change_events"
		reporter.Report("diffing against " + in.PriorVersion)
		events, err = b.generateChangeEvents(ctx, in, funcs, classes)
		if err != nil {
			return nil, err
		}
	}
	reporter.Stage = "done"
	reporter.Report("build complete")

	return &Result{
		FunctionCount:    len(funcs),
		ClassCount:       len(classes),
		ModuleCount:      len(modules),
		Warnings:         warnList,
		ChangeEvents:     events,
		DuplicatesLogged: dupCount,
	}, nil
}

// dedupe applies the tie-break rule named in spec.md section 4.7: when
// two entities share the same (module path, qualified name) identity
// key, the one parsed first wins and the duplicate is logged, never
// silently dropped without a trace.
func dedupe(funcs []*sourceparse.FunctionEntity, classes []*sourceparse.ClassEntity, log *logrus.Entry) ([]*sourceparse.FunctionEntity, []*sourceparse.ClassEntity, int) {
	seenFn := map[string]bool{}
	var outFn []*sourceparse.FunctionEntity
	dupCount := 0
	for _, fn := range funcs {
		key := fn.ModulePath + "\x00" + fn.QualifiedName
		if seenFn[key] {
			dupCount++
			log.WithField("qualified_name", fn.QualifiedName).Warn("duplicate function identity, keeping first-parsed")
			continue
		}
		seenFn[key] = true
		outFn = append(outFn, fn)
	}

	seenCls := map[string]bool{}
	var outCls []*sourceparse.ClassEntity
	for _, cls := range classes {
		key := cls.ModulePath + "\x00" + cls.QualifiedName
		if seenCls[key] {
			dupCount++
			log.WithField("qualified_name", cls.QualifiedName).Warn("duplicate class identity, keeping first-parsed")
			continue
		}
		seenCls[key] = true
		outCls = append(outCls, cls)
	}

	return outFn, outCls, dupCount
}

// buildCallResolver maps a bare called name to the one function it
// resolves to unambiguously. A name matched by more than one function in
// this parse batch is left unresolved rather than guessed at, per
// Open Question 2's decision recorded in SPEC_FULL.md.
func buildCallResolver(org, repo string, funcs []*sourceparse.FunctionEntity) ontology.CallResolver {
	byShortName := map[string][]*sourceparse.FunctionEntity{}
	for _, fn := range funcs {
		short := shortName(fn.QualifiedName)
		byShortName[short] = append(byShortName[short], fn)
	}
	return func(called string) (string, bool) {
		short := shortName(called)
		candidates := byShortName[short]
		if len(candidates) != 1 {
			return "", false
		}
		uri, err := schema.StableEntityURI(org, repo, candidates[0].QualifiedName)
		if err != nil {
			return "", false
		}
		return uri, true
	}
}

func shortName(qualified string) string {
	for i := len(qualified) - 1; i >= 0; i-- {
		if qualified[i] == '.' {
			return qualified[i+1:]
		}
	}
	return qualified
}

func metaTriples(version string, warnings []sourceparse.Warning) []rdfstore.Triple {
	triples := []rdfstore.Triple{
		{Subject: "meta:" + version, Predicate: "meta:warningCount", Object: fmt.Sprint(len(warnings)), ObjectIsLiteral: true},
		{Subject: "meta:" + version, Predicate: "meta:ingestedAt", Object: time.Now().UTC().Format(time.RFC3339), ObjectIsLiteral: true},
	}
	for _, w := range warnings {
		triples = append(triples, rdfstore.Triple{Subject: "meta:" + version, Predicate: "meta:warning", Object: w.File + ": " + w.Message, ObjectIsLiteral: true})
	}
	return triples
}

func (b *Builder) extractGit(ctx context.Context, in BuildInput, funcs []*sourceparse.FunctionEntity) error {
	byFile := map[string][]string{}
	for _, fn := range funcs {
		uri, err := schema.StableEntityURI(in.Org, in.Repo, fn.QualifiedName)
		if err != nil {
			continue
		}
		byFile[fn.File] = append(byFile[fn.File], uri)
	}
	resolve := func(files []string) []string {
		var out []string
		for _, f := range files {
			out = append(out, byFile[f]...)
		}
		return out
	}

	ex, err := gitintel.ExtractAll(in.GitRepository, in.Org, in.Repo, resolve)
	if err != nil {
		return err
	}

	commitsGraph, err := schema.CommitsGraph(in.Org, in.Repo)
	if err != nil {
		return err
	}
	if err := b.Store.AppendToGraph(ctx, commitsGraph, ex.Commits); err != nil {
		return rerrors.Wrap(rerrors.Store, err, "append commits graph")
	}

	devGraph, err := schema.DevelopersGraph(in.Org, in.Repo)
	if err != nil {
		return err
	}
	if err := b.Store.UpsertGraph(ctx, devGraph, ex.Developers); err != nil {
		return rerrors.Wrap(rerrors.Store, err, "replace developers graph")
	}

	branchGraph, err := schema.BranchesGraph(in.Org, in.Repo)
	if err != nil {
		return err
	}
	if err := b.Store.UpsertGraph(ctx, branchGraph, ex.Branches); err != nil {
		return rerrors.Wrap(rerrors.Store, err, "replace branches graph")
	}

	tagGraph, err := schema.TagsGraph(in.Org, in.Repo)
	if err != nil {
		return err
	}
	if err := b.Store.UpsertGraph(ctx, tagGraph, ex.Tags); err != nil {
		return rerrors.Wrap(rerrors.Store, err, "replace tags graph")
	}

	return nil
}

func (b *Builder) generateChangeEvents(ctx context.Context, in BuildInput, funcs []*sourceparse.FunctionEntity, classes []*sourceparse.ClassEntity) ([]changeevent.Event, error) {
	priorImplGraph, err := schema.ImplementationsGraph(in.Org, in.Repo, in.PriorVersion)
	if err != nil {
		return nil, err
	}

	from, err := readPriorSnapshots(ctx, b.Store, priorImplGraph)
	if err != nil {
		return nil, err
	}

	to := map[string]changeevent.Snapshot{}
	for _, fn := range funcs {
		uri, err := schema.StableEntityURI(in.Org, in.Repo, fn.QualifiedName)
		if err != nil {
			continue
		}
		to[uri] = changeevent.Snapshot{StableURI: uri, File: fn.File, Signature: ontology.SignatureText(fn), BodyLines: fn.BodyLines}
	}
	for _, cls := range classes {
		uri, err := schema.StableEntityURI(in.Org, in.Repo, cls.QualifiedName)
		if err != nil {
			continue
		}
		to[uri] = changeevent.Snapshot{StableURI: uri, File: cls.File, Signature: strings.Join(cls.Methods, ","), BodyLines: cls.EndLine - cls.StartLine}
	}

	events := changeevent.Diff(from, to, in.PriorVersion, in.Version, "")
	b.attachCommitSHAs(in, from, to, events)

	eventsGraph, err := schema.EventsGraph(in.Org, in.Repo)
	if err != nil {
		return nil, err
	}
	var triples []rdfstore.Triple
	for _, ev := range events {
		ts, tErr := changeevent.ToTriples(in.Org, in.Repo, ev)
		if tErr != nil {
			return nil, tErr
		}
		triples = append(triples, ts...)
	}
	if err := b.Store.AppendToGraph(ctx, eventsGraph, triples); err != nil {
		return nil, rerrors.Wrap(rerrors.Store, err, "append events graph")
	}

	return events, nil
}

// attachCommitSHAs fills in each event's best-effort commit attribution:
// the most recent commit in the version being ingested that touched the
// entity's file, per spec.md section 4.6. Events mutate in place. A
// removed entity has no file in the new version's tree, so its
// attribution falls back to the file it last lived in. Resolution is
// cached per file since several entities in the same file share a
// commit.
func (b *Builder) attachCommitSHAs(in BuildInput, from, to map[string]changeevent.Snapshot, events []changeevent.Event) {
	if in.GitRepository == nil {
		return
	}
	shaByFile := map[string]string{}
	for i := range events {
		file := to[events[i].StableURI].File
		if file == "" {
			file = from[events[i].StableURI].File
		}
		if file == "" {
			continue
		}
		sha, cached := shaByFile[file]
		if !cached {
			sha, _ = gitintel.LastCommitTouching(in.GitRepository, file)
			shaByFile[file] = sha
		}
		events[i].CommitSHA = sha
	}
}

// readPriorSnapshots reconstructs a version's per-entity Snapshot set by
// querying the store's own SPARQL engine over the prior version's
// implementation and files graphs, so Graph Builder never needs a second,
// private read path into the store.
func readPriorSnapshots(ctx context.Context, store rdfstore.Store, implGraph string) (map[string]changeevent.Snapshot, error) {
	implRows, err := queryGraph(ctx, store, implGraph)
	if err != nil {
		return nil, err
	}

	snaps := map[string]changeevent.Snapshot{}
	bySubject := map[string]map[string]string{}
	for _, row := range implRows {
		subj := row["s"]
		m, ok := bySubject[subj]
		if !ok {
			m = map[string]string{}
			bySubject[subj] = m
		}
		m[row["p"]] = row["o"]
	}

	for _, preds := range bySubject {
		stableURI := preds[ontology.PredImplementsFunc]
		if stableURI == "" {
			stableURI = preds[ontology.PredImplementsClass]
		}
		if stableURI == "" {
			continue
		}
		bodyLines := 0
		if end, eok := preds[ontology.PredEndLine]; eok {
			if start, sok := preds[ontology.PredStartLine]; sok {
				bodyLines = atoiSafe(end) - atoiSafe(start)
			}
		}
		snaps[stableURI] = changeevent.Snapshot{
			StableURI: stableURI,
			File:      preds[ontology.PredDefinedInFile],
			Signature: preds[ontology.PredSignature],
			BodyLines: bodyLines,
		}
	}

	return snaps, nil
}

func atoiSafe(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}

func queryGraph(ctx context.Context, store rdfstore.Store, graphURI string) ([]map[string]string, error) {
	q := fmt.Sprintf("SELECT ?s ?p ?o WHERE { GRAPH <%s> { ?s ?p ?o } }", graphURI)
	res, err := store.Query(ctx, q, 30*time.Second)
	if err != nil {
		return nil, err
	}
	return res.Rows, nil
}
