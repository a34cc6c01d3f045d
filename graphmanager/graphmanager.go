// Package graphmanager implements Graph Manager (component J of spec.md
// section 4.10): the add/remove/update/list/show lifecycle for a
// repository's graph data, built around the absent -> building -> ready
// state machine. Every graph write underneath Graph Manager goes through
// the Store's own atomic UpsertGraph/AppendToGraph calls, so no single
// graph is ever seen half-written, but a reader can see some of a
// building version's graphs before the rest are written. Version-scoped
// graphs of a build that fails are dropped, never left half-populated.
package graphmanager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/repolex-dev/repolex/graphbuilder"
	"github.com/repolex-dev/repolex/metrics"
	"github.com/repolex-dev/repolex/ontology"
	"github.com/repolex-dev/repolex/progress"
	"github.com/repolex-dev/repolex/rdfstore"
	"github.com/repolex-dev/repolex/repostore"
	"github.com/repolex-dev/repolex/rerrors"
	"github.com/repolex-dev/repolex/schema"
	"github.com/repolex-dev/repolex/sourceparse"
)

// State is a (org, repo, version) graph's lifecycle state.
type State string

const (
	StateAbsent   State = "absent"
	StateBuilding State = "building"
	StateReady    State = "ready"
)

// Manager implements the graph lifecycle on top of Graph Builder.
type Manager struct {
	Store     rdfstore.Store
	RepoStore *repostore.Store
	Builder   *graphbuilder.Builder
	Progress     progress.Observer   // optional; shared across every build this Manager runs
	ParseOptions sourceparse.Options // max_file_size_mb / max_concurrent_parsers from config, shared across every build
	Metrics      *metrics.Collectors // optional; nil is a valid no-op receiver

	mu     sync.Mutex
	states map[string]State
}

// New constructs a Manager.
func New(store rdfstore.Store, repoStore *repostore.Store, builder *graphbuilder.Builder) *Manager {
	return &Manager{Store: store, RepoStore: repoStore, Builder: builder, states: map[string]State{}}
}

func stateKey(org, repo, version string) string { return org + "/" + repo + "/" + version }

// State reports the current lifecycle state for (org, repo, version).
// Unknown keys report StateAbsent.
func (m *Manager) State(org, repo, version string) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[stateKey(org, repo, version)]
	if !ok {
		return StateAbsent
	}
	return s
}

func (m *Manager) setState(org, repo, version string, s State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[stateKey(org, repo, version)] = s
}

// Add builds a new version's graph from scratch. It fails if the version
// is already building or ready; use Update to rebuild a ready version.
func (m *Manager) Add(ctx context.Context, org, repo, version, ref, priorVersion string, gitRepo *git.Repository) (*graphbuilder.Result, error) {
	if m.State(org, repo, version) != StateAbsent {
		return nil, rerrors.New(rerrors.Validation, fmt.Sprintf("graph %s/%s/%s is not absent", org, repo, version))
	}
	return m.build(ctx, org, repo, version, ref, priorVersion, gitRepo)
}

// Update performs the nuclear rebuild named in spec.md section 4.10:
// the version's existing implementation/files/meta graphs are dropped
// unconditionally, the checkout is refreshed, and the full build runs
// again as if for the first time. No partial state from the old build is
// reused.
func (m *Manager) Update(ctx context.Context, org, repo, version, ref, priorVersion string, gitRepo *git.Repository) (*graphbuilder.Result, error) {
	if err := m.dropVersionGraphs(ctx, org, repo, version); err != nil {
		return nil, err
	}
	m.setState(org, repo, version, StateAbsent)
	return m.build(ctx, org, repo, version, ref, priorVersion, gitRepo)
}

func (m *Manager) build(ctx context.Context, org, repo, version, ref, priorVersion string, gitRepo *git.Repository) (*graphbuilder.Result, error) {
	m.setState(org, repo, version, StateBuilding)
	start := time.Now()

	root, err := m.RepoStore.Checkout(org, repo, version, ref)
	if err != nil {
		m.rollback(ctx, org, repo, version)
		m.Metrics.RecordIngestRun("failed")
		return nil, err
	}

	res, err := m.Builder.Build(ctx, graphbuilder.BuildInput{
		Org: org, Repo: repo, Version: version, PriorVersion: priorVersion,
		CheckoutRoot: root, GitRepository: gitRepo, Progress: m.Progress,
		ParseOptions: m.ParseOptions,
	})
	if err != nil {
		m.rollback(ctx, org, repo, version)
		m.Metrics.RecordIngestRun("failed")
		return nil, err
	}

	m.setState(org, repo, version, StateReady)
	m.Metrics.ObserveStage("build", time.Since(start))
	m.Metrics.RecordIngestRun("ready")
	return res, nil
}

// rollback drops whatever version-scoped graphs a failed build may have
// partially written and returns the state to absent. The repository-wide
// graphs are left as-is: the stable and commits graphs are append-only
// and idempotent, and the developers, branches and tags graphs are
// replaced wholesale by every build, so a retried build rewrites them
// rather than needing them rolled back.
func (m *Manager) rollback(ctx context.Context, org, repo, version string) {
	_ = m.dropVersionGraphs(ctx, org, repo, version)
	m.setState(org, repo, version, StateAbsent)
}

func (m *Manager) dropVersionGraphs(ctx context.Context, org, repo, version string) error {
	implGraph, err := schema.ImplementationsGraph(org, repo, version)
	if err != nil {
		return err
	}
	filesGraph, err := schema.FilesGraph(org, repo, version)
	if err != nil {
		return err
	}
	metaGraph, err := schema.MetaGraph(org, repo, version)
	if err != nil {
		return err
	}
	for _, g := range []string{implGraph, filesGraph, metaGraph} {
		if err := m.Store.DropGraph(ctx, g); err != nil {
			return err
		}
	}
	return nil
}

// Remove tears down every graph a repository owns: every version-scoped
// graph plus the repository-wide stable, git, evolution, and events
// graphs, found via the prefix every one of them is minted under.
func (m *Manager) Remove(ctx context.Context, org, repo string) error {
	prefix, err := schema.RepoGraphPrefix(org, repo)
	if err != nil {
		return err
	}
	graphs, err := m.Store.ListGraphs(ctx, prefix)
	if err != nil {
		return err
	}
	for _, g := range graphs {
		if err := m.Store.DropGraph(ctx, g); err != nil {
			return err
		}
	}

	m.mu.Lock()
	for key := range m.states {
		if hasRepoPrefix(key, org, repo) {
			delete(m.states, key)
		}
	}
	m.mu.Unlock()
	return nil
}

// RemoveVersion tears down one version's graphs and narrows the
// repository's stable entities to exclude that version, per spec.md section
// 4.10: dropping a version drops only that version's scoped graphs, and
// every stable entity's existsInVersion set is rewritten to exclude it.
// A stable entity left with no remaining existsInVersion triple is
// removed outright rather than kept as a dangling identity.
func (m *Manager) RemoveVersion(ctx context.Context, org, repo, version string) error {
	if err := m.rewriteStableGraphWithoutVersion(ctx, org, repo, version); err != nil {
		return err
	}
	if err := m.dropVersionGraphs(ctx, org, repo, version); err != nil {
		return err
	}
	if err := m.RepoStore.Prune(org, repo, version); err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.states, stateKey(org, repo, version))
	m.mu.Unlock()
	return nil
}

func (m *Manager) rewriteStableGraphWithoutVersion(ctx context.Context, org, repo, version string) error {
	stableGraph, err := schema.StableFunctionsGraph(org, repo)
	if err != nil {
		return err
	}

	q := fmt.Sprintf("SELECT ?s ?p ?o WHERE { GRAPH <%s> { ?s ?p ?o } }", stableGraph)
	res, err := m.Store.Query(ctx, q, 30*time.Second)
	if err != nil {
		return err
	}

	bySubject := map[string][]rdfstore.Triple{}
	var order []string
	for _, row := range res.Rows {
		t := rdfstore.Triple{
			Subject:         row["s"],
			Predicate:       row["p"],
			Object:          row["o"],
			ObjectIsLiteral: row["p"] != ontology.PredType,
		}
		if _, seen := bySubject[t.Subject]; !seen {
			order = append(order, t.Subject)
		}
		bySubject[t.Subject] = append(bySubject[t.Subject], t)
	}

	kept := make([]rdfstore.Triple, 0, len(res.Rows))
	for _, subject := range order {
		triples := bySubject[subject]

		remaining := make([]rdfstore.Triple, 0, len(triples))
		existsElsewhere := false
		for _, t := range triples {
			if t.Predicate == ontology.PredExistsInVersion && t.Object == version {
				continue // drop this entity's membership in the removed version
			}
			if t.Predicate == ontology.PredExistsInVersion {
				existsElsewhere = true
			}
			remaining = append(remaining, t)
		}

		if !existsElsewhere {
			continue // no version still claims this entity; drop it entirely
		}
		kept = append(kept, remaining...)
	}

	return m.Store.UpsertGraph(ctx, stableGraph, kept)
}

func hasRepoPrefix(key, org, repo string) bool {
	prefix := org + "/" + repo + "/"
	return len(key) >= len(prefix) && key[:len(prefix)] == prefix
}

// List enumerates every graph URI a repository currently owns.
func (m *Manager) List(ctx context.Context, org, repo string) ([]string, error) {
	prefix, err := schema.RepoGraphPrefix(org, repo)
	if err != nil {
		return nil, err
	}
	return m.Store.ListGraphs(ctx, prefix)
}

// Show reports the lifecycle state of one specific version's graph.
func (m *Manager) Show(org, repo, version string) State {
	return m.State(org, repo, version)
}
