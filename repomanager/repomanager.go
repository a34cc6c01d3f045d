// Package repomanager implements Repo Manager (component I of spec.md
// section 4.9): the add/update/remove/list/show lifecycle for tracked
// repositories, independent of graph state. A repository can be added
// and its clone kept current without any graph ever being built from it
// (that is Graph Manager's job, component J).
package repomanager

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/repolex-dev/repolex/metrics"
	"github.com/repolex-dev/repolex/rdfstore"
	"github.com/repolex-dev/repolex/repostore"
	"github.com/repolex-dev/repolex/rerrors"
	"github.com/repolex-dev/repolex/schema"
)

// Predicates in the shared repository registry graph.
const (
	PredCloneURL      = "repo:cloneUrl"
	PredDefaultBranch = "repo:defaultBranch"
	PredAddedAt       = "repo:addedAt"
	PredOrg           = "repo:org"
	PredName          = "repo:name"
	PredStatus        = "repo:status"
	PredRelease       = "repo:release"
)

// Status values for Repository.Status, per spec.md section 3's
// Repository status enum.
const (
	StatusReady      = "ready"
	StatusProcessing = "processing"
	StatusError      = "error"
)

// Forge resolves remote repository metadata. Satisfied by forge.Client;
// declared locally so this package does not depend on a concrete forge
// SDK, only the shape it needs.
type Forge interface {
	RepoInfo(org, repoName string) (cloneURL, defaultBranch string, err error)
}

// Manager implements the repository lifecycle.
type Manager struct {
	Store     rdfstore.Store
	RepoStore *repostore.Store
	Forge     Forge                // nil is valid: CloneURL must then be supplied explicitly to Add
	Metrics   *metrics.Collectors  // optional; nil is a valid no-op receiver
}

// New constructs a Manager.
func New(store rdfstore.Store, repoStore *repostore.Store, forge Forge) *Manager {
	return &Manager{Store: store, RepoStore: repoStore, Forge: forge}
}

// Repository is the registry entry returned by Show and List, per
// spec.md section 3: an (org, name) pair with its discovered releases,
// an on-disk checkout root (owned by repostore, not duplicated here),
// and a status that tracks whether Add/Update last left it usable.
type Repository struct {
	Org           string
	Name          string
	CloneURL      string
	DefaultBranch string
	AddedAt       string
	Status        string
	Releases      []string // version tags, newest first
}

// Add registers a new repository and clones it. cloneURL may be empty, in
// which case it is resolved via Forge; if both are empty/nil, Add fails
// with a Validation error. The registry entry is written as "processing"
// before the clone is attempted and flipped to "ready" (releases
// populated from discovered version tags) or "error" once the clone
// settles, per spec.md section 3's status enum.
func (m *Manager) Add(ctx context.Context, org, repoName, cloneURL string) (*Repository, error) {
	defaultBranch := ""
	if cloneURL == "" {
		if m.Forge == nil {
			return nil, rerrors.New(rerrors.Validation, "cloneURL not provided and no forge client configured")
		}
		url, branch, err := m.Forge.RepoInfo(org, repoName)
		if err != nil {
			return nil, err
		}
		cloneURL, defaultBranch = url, branch
	}

	repo := &Repository{
		Org: org, Name: repoName, CloneURL: cloneURL, DefaultBranch: defaultBranch,
		AddedAt: time.Now().UTC().Format(time.RFC3339), Status: StatusProcessing,
	}
	if err := m.writeRegistry(ctx, repo); err != nil {
		return nil, err
	}

	uri, err := schema.RepositoryURI(org, repoName)
	if err != nil {
		return nil, err
	}

	gitRepo, cloneErr := m.RepoStore.Clone(cloneURL, org, repoName)
	if cloneErr != nil {
		m.replaceFields(ctx, uri, map[string][]string{PredStatus: {StatusError}})
		return nil, cloneErr
	}

	releases, err := discoverReleases(gitRepo)
	if err != nil {
		m.replaceFields(ctx, uri, map[string][]string{PredStatus: {StatusError}})
		return nil, err
	}
	repo.Releases = releases
	repo.Status = StatusReady

	if err := m.replaceFields(ctx, uri, map[string][]string{
		PredStatus:  {StatusReady},
		PredRelease: releases,
	}); err != nil {
		return nil, err
	}

	if repos, err := m.List(ctx); err == nil {
		m.Metrics.SetRepositoriesTracked(len(repos))
	}
	return repo, nil
}

// discoverReleases lists a repository's version tags the way
// gitintel's extractTags reads them (github.com/go-git/go-git/v5's
// Tags() plumbing iterator), sorted newest first. Components of a tag
// name that parse as integers sort numerically against each other so
// "v10" sorts above "v2"; everything else falls back to a plain string
// comparison, since no semantic-versioning library appears anywhere in
// the retrieved example corpus.
func discoverReleases(repo *git.Repository) ([]string, error) {
	iter, err := repo.Tags()
	if err != nil {
		return nil, rerrors.Wrap(rerrors.Git, err, "list version tags")
	}
	defer iter.Close()

	var tags []string
	if err := iter.ForEach(func(ref *plumbing.Reference) error {
		tags = append(tags, ref.Name().Short())
		return nil
	}); err != nil {
		return nil, rerrors.Wrap(rerrors.Git, err, "iterate version tags")
	}

	sort.Slice(tags, func(i, j int) bool { return tagLess(tags[j], tags[i]) })
	return tags, nil
}

// tagLess reports whether a sorts before b using a natural comparison:
// runs of digits compare numerically, everything else compares as text.
func tagLess(a, b string) bool {
	ai, bi := splitNatural(a), splitNatural(b)
	for i := 0; i < len(ai) && i < len(bi); i++ {
		if ai[i] == bi[i] {
			continue
		}
		an, aErr := strconv.Atoi(ai[i])
		bn, bErr := strconv.Atoi(bi[i])
		if aErr == nil && bErr == nil {
			return an < bn
		}
		return ai[i] < bi[i]
	}
	return len(ai) < len(bi)
}

// splitNatural splits s into alternating runs of digits and non-digits.
func splitNatural(s string) []string {
	var parts []string
	var cur strings.Builder
	var curIsDigit bool
	for i, r := range s {
		isDigit := r >= '0' && r <= '9'
		if i > 0 && isDigit != curIsDigit {
			parts = append(parts, cur.String())
			cur.Reset()
		}
		cur.WriteRune(r)
		curIsDigit = isDigit
	}
	if cur.Len() > 0 {
		parts = append(parts, cur.String())
	}
	return parts
}

// Update re-fetches a repository's remote refs and refreshes its
// discovered release list, without touching any version checkout or
// graph data. Status moves processing -> ready on success, or ->
// error if the fetch or tag discovery fails, per spec.md section 3.
func (m *Manager) Update(ctx context.Context, org, repoName string) error {
	uri, err := schema.RepositoryURI(org, repoName)
	if err != nil {
		return err
	}
	m.replaceFields(ctx, uri, map[string][]string{PredStatus: {StatusProcessing}})

	gitRepo, err := m.RepoStore.Fetch(org, repoName)
	if err != nil {
		m.replaceFields(ctx, uri, map[string][]string{PredStatus: {StatusError}})
		return err
	}

	releases, err := discoverReleases(gitRepo)
	if err != nil {
		m.replaceFields(ctx, uri, map[string][]string{PredStatus: {StatusError}})
		return err
	}

	return m.replaceFields(ctx, uri, map[string][]string{
		PredStatus:  {StatusReady},
		PredRelease: releases,
	})
}

// Remove deletes a repository's on-disk presence and its registry entry.
// It does not touch any graph the repository may still own; Graph
// Manager's remove operation is responsible for that (spec.md section
// 4.10's ordering: graphs are torn down before the repository record).
func (m *Manager) Remove(ctx context.Context, org, repoName string) error {
	if err := m.RepoStore.RemoveRepository(org, repoName); err != nil {
		return err
	}
	uri, err := schema.RepositoryURI(org, repoName)
	if err != nil {
		return err
	}
	return m.dropRegistryEntry(ctx, uri)
}

// Show returns the registry entry for one repository, or a NotFound-style
// Validation error if it is not tracked.
func (m *Manager) Show(ctx context.Context, org, repoName string) (*Repository, error) {
	repos, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range repos {
		if r.Org == org && r.Name == repoName {
			return r, nil
		}
	}
	return nil, rerrors.New(rerrors.Validation, fmt.Sprintf("repository %s/%s is not tracked", org, repoName))
}

// List enumerates every tracked repository.
func (m *Manager) List(ctx context.Context) ([]*Repository, error) {
	q := fmt.Sprintf("SELECT ?s ?p ?o WHERE { GRAPH <%s> { ?s ?p ?o } }", schema.RepositoryRegistryGraph)
	res, err := m.Store.Query(ctx, q, 30*time.Second)
	if err != nil {
		return nil, err
	}

	type accum struct {
		single   map[string]string
		releases []string
	}
	bySubject := map[string]*accum{}
	for _, row := range res.Rows {
		subj := row["s"]
		acc, ok := bySubject[subj]
		if !ok {
			acc = &accum{single: map[string]string{}}
			bySubject[subj] = acc
		}
		if row["p"] == PredRelease {
			acc.releases = append(acc.releases, row["o"])
			continue
		}
		acc.single[row["p"]] = row["o"]
	}

	var repos []*Repository
	for _, acc := range bySubject {
		releases := append([]string(nil), acc.releases...)
		sort.Slice(releases, func(i, j int) bool { return tagLess(releases[j], releases[i]) })
		repos = append(repos, &Repository{
			Org:           acc.single[PredOrg],
			Name:          acc.single[PredName],
			CloneURL:      acc.single[PredCloneURL],
			DefaultBranch: acc.single[PredDefaultBranch],
			AddedAt:       acc.single[PredAddedAt],
			Status:        acc.single[PredStatus],
			Releases:      releases,
		})
	}
	return repos, nil
}

func (m *Manager) writeRegistry(ctx context.Context, repo *Repository) error {
	uri, err := schema.RepositoryURI(repo.Org, repo.Name)
	if err != nil {
		return err
	}
	triples := []rdfstore.Triple{
		{Subject: uri, Predicate: PredOrg, Object: repo.Org, ObjectIsLiteral: true},
		{Subject: uri, Predicate: PredName, Object: repo.Name, ObjectIsLiteral: true},
		{Subject: uri, Predicate: PredCloneURL, Object: repo.CloneURL, ObjectIsLiteral: true},
		{Subject: uri, Predicate: PredDefaultBranch, Object: repo.DefaultBranch, ObjectIsLiteral: true},
		{Subject: uri, Predicate: PredAddedAt, Object: repo.AddedAt, ObjectIsLiteral: true},
		{Subject: uri, Predicate: PredStatus, Object: repo.Status, ObjectIsLiteral: true},
	}
	return m.Store.AppendToGraph(ctx, schema.RepositoryRegistryGraph, triples)
}

func (m *Manager) dropRegistryEntry(ctx context.Context, uri string) error {
	// The store has no subject-level delete; re-upsert the registry graph
	// without this subject's triples.
	q := fmt.Sprintf("SELECT ?s ?p ?o WHERE { GRAPH <%s> { ?s ?p ?o } }", schema.RepositoryRegistryGraph)
	res, err := m.Store.Query(ctx, q, 30*time.Second)
	if err != nil {
		return err
	}
	var remaining []rdfstore.Triple
	for _, row := range res.Rows {
		if row["s"] == uri {
			continue
		}
		remaining = append(remaining, rdfstore.Triple{Subject: row["s"], Predicate: row["p"], Object: row["o"], ObjectIsLiteral: true})
	}
	return m.Store.UpsertGraph(ctx, schema.RepositoryRegistryGraph, remaining)
}

// replaceFields rewrites uri's values for each predicate in replace,
// leaving every other triple in the registry graph (including this
// subject's other predicates) untouched. Used for fields that
// legitimately change after creation, like status and the release list,
// where AppendToGraph's merge-by-exact-triple semantics would otherwise
// leave the old value sitting alongside the new one.
func (m *Manager) replaceFields(ctx context.Context, uri string, replace map[string][]string) error {
	q := fmt.Sprintf("SELECT ?s ?p ?o WHERE { GRAPH <%s> { ?s ?p ?o } }", schema.RepositoryRegistryGraph)
	res, err := m.Store.Query(ctx, q, 30*time.Second)
	if err != nil {
		return err
	}
	var kept []rdfstore.Triple
	for _, row := range res.Rows {
		if row["s"] == uri {
			if _, replacing := replace[row["p"]]; replacing {
				continue
			}
		}
		kept = append(kept, rdfstore.Triple{Subject: row["s"], Predicate: row["p"], Object: row["o"], ObjectIsLiteral: true})
	}
	for pred, values := range replace {
		for _, v := range values {
			kept = append(kept, rdfstore.Triple{Subject: uri, Predicate: pred, Object: v, ObjectIsLiteral: true})
		}
	}
	return m.Store.UpsertGraph(ctx, schema.RepositoryRegistryGraph, kept)
}
