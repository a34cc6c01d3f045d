// Package gitintel implements the Git Intelligence Extractor (component E
// of spec.md section 4.5): it reads commit, author, branch, and tag
// history out of a checked-out repository and turns it into RDF triples
// plus a Developer aggregate, using github.com/go-git/go-git/v5 the way
// the retrieved corpus's own git-walking code (kptdev/kpt's porch package
// source) does -- by opening the repository once and iterating its
// plumbing objects directly, never shelling out to the git binary.
package gitintel

import (
	"fmt"
	"sort"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/repolex-dev/repolex/rdfstore"
	"github.com/repolex-dev/repolex/rerrors"
	"github.com/repolex-dev/repolex/schema"
)

// Predicates under the shared git ontology (schema.OntologyGit).
const (
	PredModifies     = "git:modifies"
	PredAuthorEmail  = "git:authorEmail"
	PredAuthorName   = "git:authorName"
	PredCommittedAt  = "git:committedAt"
	PredMessage      = "git:message"
	PredParentCommit = "git:parentCommit"
	PredCommitCount  = "git:commitCount"
	PredFirstCommit  = "git:firstCommitAt"
	PredLastCommit   = "git:lastCommitAt"
	PredBranchHead   = "git:headCommit"
	PredBranchName   = "git:branchName"
	PredTagName      = "git:tagName"
	PredTagCommit    = "git:taggedCommit"
)

// Extraction is the full set of triples produced by one ExtractAll run,
// split by destination graph per spec.md section 4.2's four git graphs.
type Extraction struct {
	Commits    []rdfstore.Triple
	Developers []rdfstore.Triple
	Branches   []rdfstore.Triple
	Tags       []rdfstore.Triple
}

// developerAgg accumulates a developer's commit history so the
// aggregate's first/last-commit timestamps and commit count can be
// recomputed eagerly on every extraction, per the decision recorded in
// SPEC_FULL.md: a Developer is never partially updated.
type developerAgg struct {
	name     string
	email    string
	count    int
	first    int64
	last     int64
}

// ExtractAll walks every reachable commit, branch, and tag in repo and
// maps them into the four git graphs for (org, repoName). modifiedStable
// resolves a file path touched by a commit to the stable entity URIs
// defined in that file, so PredModifies edges always point at stable
// entities and never at version-scoped implementation URIs (spec.md
// section 4.5's invariant).
func ExtractAll(repo *git.Repository, org, repoName string, modifiedStable func(commitFiles []string) []string) (*Extraction, error) {
	head, err := repo.Head()
	if err != nil {
		return nil, rerrors.Wrap(rerrors.Source, err, "resolve HEAD")
	}

	commitIter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, rerrors.Wrap(rerrors.Source, err, "walk commit log")
	}

	ex := &Extraction{}
	devs := map[string]*developerAgg{}

	err = commitIter.ForEach(func(c *object.Commit) error {
		sha := c.Hash.String()
		uri, err := schema.CommitURI(org, repoName, sha)
		if err != nil {
			return err
		}

		ex.Commits = append(ex.Commits,
			rdfstore.Triple{Subject: uri, Predicate: PredAuthorEmail, Object: c.Author.Email, ObjectIsLiteral: true},
			rdfstore.Triple{Subject: uri, Predicate: PredAuthorName, Object: c.Author.Name, ObjectIsLiteral: true},
			rdfstore.Triple{Subject: uri, Predicate: PredCommittedAt, Object: c.Author.When.UTC().Format("2006-01-02T15:04:05Z"), ObjectIsLiteral: true},
			rdfstore.Triple{Subject: uri, Predicate: PredMessage, Object: c.Message, ObjectIsLiteral: true},
		)

		c.Parents().ForEach(func(p *object.Commit) error {
			ex.Commits = append(ex.Commits, rdfstore.Triple{Subject: uri, Predicate: PredParentCommit, Object: p.Hash.String(), ObjectIsLiteral: true})
			return nil
		})

		if modifiedStable != nil {
			files, ferr := changedFiles(c)
			if ferr == nil {
				for _, target := range modifiedStable(files) {
					ex.Commits = append(ex.Commits, rdfstore.Triple{Subject: uri, Predicate: PredModifies, Object: target})
				}
			}
		}

		// Author email is treated as an opaque aggregation key, never
		// parsed as numeric, per spec.md section 8's boundary behavior.
		agg, ok := devs[c.Author.Email]
		if !ok {
			agg = &developerAgg{name: c.Author.Name, email: c.Author.Email}
			devs[c.Author.Email] = agg
		}
		agg.count++
		when := c.Author.When.Unix()
		if agg.first == 0 || when < agg.first {
			agg.first = when
		}
		if when > agg.last {
			agg.last = when
		}
		return nil
	})
	if err != nil {
		return nil, rerrors.Wrap(rerrors.Source, err, "iterate commits")
	}

	emails := make([]string, 0, len(devs))
	for email := range devs {
		emails = append(emails, email)
	}
	sort.Strings(emails)
	for _, email := range emails {
		agg := devs[email]
		uri, err := schema.DeveloperURI(org, repoName, email)
		if err != nil {
			return nil, err
		}
		ex.Developers = append(ex.Developers,
			rdfstore.Triple{Subject: uri, Predicate: PredAuthorName, Object: agg.name, ObjectIsLiteral: true},
			rdfstore.Triple{Subject: uri, Predicate: PredAuthorEmail, Object: agg.email, ObjectIsLiteral: true},
			rdfstore.Triple{Subject: uri, Predicate: PredCommitCount, Object: fmt.Sprint(agg.count), ObjectIsLiteral: true},
			rdfstore.Triple{Subject: uri, Predicate: PredFirstCommit, Object: fmt.Sprint(agg.first), ObjectIsLiteral: true},
			rdfstore.Triple{Subject: uri, Predicate: PredLastCommit, Object: fmt.Sprint(agg.last), ObjectIsLiteral: true},
		)
	}

	if berr := extractBranches(repo, org, repoName, ex); berr != nil {
		return nil, berr
	}
	if terr := extractTags(repo, org, repoName, ex); terr != nil {
		return nil, terr
	}

	return ex, nil
}

// LastCommitTouching walks repo's history from HEAD and returns the hash
// of the most recent commit whose diff against its parent (or, for a
// root commit, whose tree) touches file. Returns "" with a nil error if
// no commit touches the file, so callers can treat attribution as
// best-effort without special-casing the miss.
func LastCommitTouching(repo *git.Repository, file string) (string, error) {
	head, err := repo.Head()
	if err != nil {
		return "", rerrors.Wrap(rerrors.Source, err, "resolve HEAD")
	}
	commitIter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return "", rerrors.Wrap(rerrors.Source, err, "walk commit log")
	}
	defer commitIter.Close()

	var found string
	err = commitIter.ForEach(func(c *object.Commit) error {
		files, ferr := changedFiles(c)
		if ferr != nil {
			return nil
		}
		for _, f := range files {
			if f == file {
				found = c.Hash.String()
				return storer.ErrStop
			}
		}
		return nil
	})
	if err != nil {
		return "", rerrors.Wrap(rerrors.Source, err, "iterate commits looking for "+file)
	}
	return found, nil
}

func changedFiles(c *object.Commit) ([]string, error) {
	if c.NumParents() == 0 {
		return filesInTree(c)
	}
	parent, err := c.Parent(0)
	if err != nil {
		return nil, err
	}
	parentTree, err := parent.Tree()
	if err != nil {
		return nil, err
	}
	tree, err := c.Tree()
	if err != nil {
		return nil, err
	}
	changes, err := parentTree.Diff(tree)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, ch := range changes {
		name := ch.To.Name
		if name == "" {
			// A deletion has no "to" side; report the path it removed.
			name = ch.From.Name
		}
		files = append(files, name)
	}
	return files, nil
}

func filesInTree(c *object.Commit) ([]string, error) {
	tree, err := c.Tree()
	if err != nil {
		return nil, err
	}
	var files []string
	walker := object.NewTreeWalker(tree, true, nil)
	defer walker.Close()
	for {
		name, entry, werr := walker.Next()
		if werr != nil {
			break
		}
		if !entry.Mode.IsFile() {
			continue
		}
		files = append(files, name)
	}
	return files, nil
}
