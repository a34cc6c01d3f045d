// Package schema mints deterministic graph and entity URIs for the
// semantic graph engine (component B of spec.md section 4.2). All naming
// in this package is a pure function of its inputs: the same
// (org, repo, version, qualified name) always produces the same URI,
// across processes and across time.
package schema

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/repolex-dev/repolex/rerrors"
)

// Base is the URI namespace root under which every graph and entity URI in
// this package is minted. It has no trailing slash.
const Base = "https://graphs.repolex.dev"

// EntityKind identifies the stable entity taxonomy named in spec.md
// section 3.
type EntityKind string

const (
	KindFunction EntityKind = "function"
	KindClass    EntityKind = "class"
	KindModule   EntityKind = "module"
)

// ValidateIdentifier rejects path-escape and control characters from any
// string bound for URI construction, satisfying the path-safety and
// security invariants of spec.md sections 4.2, 7, and 8 (property 7).
func ValidateIdentifier(component string) error {
	if component == "" {
		return rerrors.New(rerrors.Validation, "identifier component must not be empty")
	}
	if strings.Contains(component, "..") {
		return rerrors.New(rerrors.Security, fmt.Sprintf("identifier %q contains a path traversal sequence", component))
	}
	if strings.ContainsAny(component, "\x00\n\r") {
		return rerrors.New(rerrors.Security, fmt.Sprintf("identifier %q contains a disallowed control character", component))
	}
	if strings.TrimSpace(component) != component {
		return rerrors.New(rerrors.Validation, fmt.Sprintf("identifier %q has leading or trailing whitespace", component))
	}
	return nil
}

// encode percent-encodes a path component, rejecting escapes first.
func encode(component string) (string, error) {
	if err := ValidateIdentifier(component); err != nil {
		return "", err
	}
	return url.PathEscape(component), nil
}

// --- Repository-scoped graphs (spec.md 4.2) ---

// StableFunctionsGraph is the repository-wide graph of StableFunction and
// StableClass entities (the "…/functions/stable" graph).
func StableFunctionsGraph(org, repo string) (string, error) {
	return repoGraph(org, repo, "functions/stable")
}

// ImplementationsGraphPrefix is the logical prefix under which
// per-version implementation graphs are enumerated by list_graphs. The
// engine partitions implementations physically per version (see
// ImplementationsGraph); this prefix exists only for discovery.
func ImplementationsGraphPrefix(org, repo string) (string, error) {
	return repoGraph(org, repo, "functions/implementations")
}

// ImplementationsGraph is the version-scoped graph holding
// FunctionImplementation and ClassImplementation triples for one version.
func ImplementationsGraph(org, repo, version string) (string, error) {
	return versionGraph(org, repo, "functions/implementations", version)
}

// FilesGraph is the version-scoped graph of Module entities and file
// layout metadata for one version.
func FilesGraph(org, repo, version string) (string, error) {
	return versionGraph(org, repo, "files", version)
}

// MetaGraph is the version-scoped graph of ingestion metadata (parser
// warnings, skipped files, timing) for one version.
func MetaGraph(org, repo, version string) (string, error) {
	return versionGraph(org, repo, "meta", version)
}

// CommitsGraph, DevelopersGraph, BranchesGraph, TagsGraph are the four
// repository-scoped git graphs.
func CommitsGraph(org, repo string) (string, error)    { return repoGraph(org, repo, "git/commits") }
func DevelopersGraph(org, repo string) (string, error) { return repoGraph(org, repo, "git/developers") }
func BranchesGraph(org, repo string) (string, error)   { return repoGraph(org, repo, "git/branches") }
func TagsGraph(org, repo string) (string, error)       { return repoGraph(org, repo, "git/tags") }

// EvolutionAnalysisGraph, EvolutionStatisticsGraph, EvolutionPatternsGraph
// are the three repository-scoped evolution graphs.
func EvolutionAnalysisGraph(org, repo string) (string, error) {
	return repoGraph(org, repo, "evolution/analysis")
}
func EvolutionStatisticsGraph(org, repo string) (string, error) {
	return repoGraph(org, repo, "evolution/statistics")
}
func EvolutionPatternsGraph(org, repo string) (string, error) {
	return repoGraph(org, repo, "evolution/patterns")
}

// EventsGraph is the repository-scoped change-events graph
// ("…/abc/events").
func EventsGraph(org, repo string) (string, error) {
	return repoGraph(org, repo, "abc/events")
}

// Ontology graphs are shared across all repositories and loaded once.
const (
	OntologyCode      = Base + "/ontology/code"
	OntologyGit       = Base + "/ontology/git"
	OntologyEvolution = Base + "/ontology/evolution"
	OntologyFiles     = Base + "/ontology/files"
)

// RepositoryRegistryGraph is the single shared graph holding one
// Repository entity per tracked repository, independent of any version
// (spec.md section 4.9's add/list/show operations read and write here).
const RepositoryRegistryGraph = Base + "/registry/repositories"

// AllOntologyGraphs lists the four shared ontology graphs.
func AllOntologyGraphs() []string {
	return []string{OntologyCode, OntologyGit, OntologyEvolution, OntologyFiles}
}

// RepoGraphPrefix returns the URI prefix under which every graph owned by
// (org, repo) lives; used by Repo Manager's remove operation (spec.md
// 4.9) to find every graph whose URI prefix matches the repository.
func RepoGraphPrefix(org, repo string) (string, error) {
	o, err := encode(org)
	if err != nil {
		return "", err
	}
	r, err := encode(repo)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/repo/%s/%s/", Base, o, r), nil
}

func repoGraph(org, repo, suffix string) (string, error) {
	o, err := encode(org)
	if err != nil {
		return "", err
	}
	r, err := encode(repo)
	if err != nil {
		return "", err
	}
	// Git, evolution, and change-event graphs are nested under the same
	// "repo" top-level group as stable/implementation graphs so that a
	// single RepoGraphPrefix prefix-match finds every graph owned by a
	// repository, per the removal invariant in spec.md section 4.9.
	return fmt.Sprintf("%s/repo/%s/%s/%s", Base, o, r, suffix), nil
}

func versionGraph(org, repo, suffix, version string) (string, error) {
	if err := ValidateIdentifier(version); err != nil {
		return "", err
	}
	if strings.ContainsAny(version, " \t") {
		return "", rerrors.New(rerrors.Validation, fmt.Sprintf("version %q must not contain whitespace", version))
	}
	base, err := repoGraph(org, repo, suffix)
	if err != nil {
		return "", err
	}
	v, err := encode(version)
	if err != nil {
		return "", err
	}
	return base + "/" + v, nil
}

// --- Entity URIs (spec.md 4.2) ---

// StableEntityURI mints the version-invariant identity URI for a code
// entity: function:{org}/{repo}/{qualified_name}.
func StableEntityURI(org, repo, qualifiedName string) (string, error) {
	o, err := encode(org)
	if err != nil {
		return "", err
	}
	r, err := encode(repo)
	if err != nil {
		return "", err
	}
	q, err := encode(qualifiedName)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("function:%s/%s/%s", o, r, q), nil
}

// ImplementationURI mints the version-scoped identity URI for an
// implementation record: function:{org}/{repo}/{qualified_name}#{version}.
func ImplementationURI(org, repo, qualifiedName, version string) (string, error) {
	stable, err := StableEntityURI(org, repo, qualifiedName)
	if err != nil {
		return "", err
	}
	if err := ValidateIdentifier(version); err != nil {
		return "", err
	}
	if strings.ContainsAny(version, " \t") {
		return "", rerrors.New(rerrors.Validation, fmt.Sprintf("version %q must not contain whitespace", version))
	}
	v, err := encode(version)
	if err != nil {
		return "", err
	}
	return stable + "#" + v, nil
}

// CommitURI mints the identity URI for a Commit entity.
func CommitURI(org, repo, sha string) (string, error) {
	o, err := encode(org)
	if err != nil {
		return "", err
	}
	r, err := encode(repo)
	if err != nil {
		return "", err
	}
	s, err := encode(sha)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("commit:%s/%s/%s", o, r, s), nil
}

// DeveloperURI mints the identity URI for a Developer aggregate, keyed by
// email. The email is never parsed as numeric (spec.md 4.5); it is only
// ever percent-encoded.
func DeveloperURI(org, repo, email string) (string, error) {
	o, err := encode(org)
	if err != nil {
		return "", err
	}
	r, err := encode(repo)
	if err != nil {
		return "", err
	}
	e, err := encode(email)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("developer:%s/%s/%s", o, r, e), nil
}

// ModuleURI mints the identity URI for a Module entity, which unlike
// functions and classes is already version-scoped in the data model
// (spec.md section 3).
func ModuleURI(org, repo, dottedPath, version string) (string, error) {
	o, err := encode(org)
	if err != nil {
		return "", err
	}
	r, err := encode(repo)
	if err != nil {
		return "", err
	}
	d, err := encode(dottedPath)
	if err != nil {
		return "", err
	}
	v, err := encode(version)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("module:%s/%s/%s#%s", o, r, d, v), nil
}

// BranchURI mints the identity URI for a Branch entity.
func BranchURI(org, repo, name string) (string, error) {
	o, err := encode(org)
	if err != nil {
		return "", err
	}
	r, err := encode(repo)
	if err != nil {
		return "", err
	}
	n, err := encode(name)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("branch:%s/%s/%s", o, r, n), nil
}

// TagURI mints the identity URI for a Tag entity.
func TagURI(org, repo, name string) (string, error) {
	o, err := encode(org)
	if err != nil {
		return "", err
	}
	r, err := encode(repo)
	if err != nil {
		return "", err
	}
	n, err := encode(name)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("tag:%s/%s/%s", o, r, n), nil
}

// ChangeEventURI mints a deterministic identity URI for one ChangeEvent:
// the same (entity, kind, from-version, to-version) tuple always mints
// the same event URI, so re-running change-event generation over an
// already-processed version transition is idempotent.
func ChangeEventURI(org, repo, stableURI, kind, fromVersion, toVersion string) (string, error) {
	o, err := encode(org)
	if err != nil {
		return "", err
	}
	r, err := encode(repo)
	if err != nil {
		return "", err
	}
	e, err := encode(stableURI)
	if err != nil {
		return "", err
	}
	k, err := encode(kind)
	if err != nil {
		return "", err
	}
	f, err := encode(fromVersion)
	if err != nil {
		return "", err
	}
	tv, err := encode(toVersion)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("event:%s/%s/%s/%s/%s/%s", o, r, e, k, f, tv), nil
}

// RepositoryURI mints the identity URI for the Repository entity itself.
func RepositoryURI(org, repo string) (string, error) {
	o, err := encode(org)
	if err != nil {
		return "", err
	}
	r, err := encode(repo)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("repository:%s/%s", o, r), nil
}

// SafeJoin validates that a candidate path, once resolved relative to
// root, still lies within root, per spec.md section 4.8 and the
// path-safety testable property in section 8. It is used by the
// Repository Store component; it does not itself touch the filesystem.
func SafeJoin(root, candidate string) (string, error) {
	if strings.Contains(candidate, "\x00") {
		return "", rerrors.New(rerrors.Security, "path contains a NUL byte")
	}
	cleanRoot := strings.TrimSuffix(root, "/")
	joined := cleanRoot + "/" + candidate
	resolved := cleanPath(joined)
	if resolved != cleanRoot && !strings.HasPrefix(resolved, cleanRoot+"/") {
		return "", rerrors.New(rerrors.Security, fmt.Sprintf("path %q escapes root %q", candidate, root))
	}
	return resolved, nil
}

// cleanPath is a minimal '.'/'..'-resolving path cleaner that never
// consults the filesystem, so SafeJoin can reject an escape before any
// syscall is made.
func cleanPath(p string) string {
	parts := strings.Split(p, "/")
	stack := make([]string, 0, len(parts))
	for _, part := range parts {
		switch part {
		case "", ".":
			continue
		case "..":
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		default:
			stack = append(stack, part)
		}
	}
	return "/" + strings.Join(stack, "/")
}
