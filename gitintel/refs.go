package gitintel

import (
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/repolex-dev/repolex/rdfstore"
	"github.com/repolex-dev/repolex/rerrors"
	"github.com/repolex-dev/repolex/schema"
)

func extractBranches(repo *git.Repository, org, repoName string, ex *Extraction) error {
	refs, err := repo.Branches()
	if err != nil {
		return rerrors.Wrap(rerrors.Source, err, "list branches")
	}
	defer refs.Close()

	return refs.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name().Short()
		uri, err := schema.BranchURI(org, repoName, name)
		if err != nil {
			return err
		}
		ex.Branches = append(ex.Branches,
			rdfstore.Triple{Subject: uri, Predicate: PredBranchName, Object: name, ObjectIsLiteral: true},
			rdfstore.Triple{Subject: uri, Predicate: PredBranchHead, Object: ref.Hash().String(), ObjectIsLiteral: true},
		)
		return nil
	})
}

func extractTags(repo *git.Repository, org, repoName string, ex *Extraction) error {
	refs, err := repo.Tags()
	if err != nil {
		return rerrors.Wrap(rerrors.Source, err, "list tags")
	}
	defer refs.Close()

	return refs.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name().Short()
		uri, err := schema.TagURI(org, repoName, name)
		if err != nil {
			return err
		}
		hash := ref.Hash()
		if tagObj, terr := repo.TagObject(hash); terr == nil {
			hash = tagObj.Target
		}
		ex.Tags = append(ex.Tags,
			rdfstore.Triple{Subject: uri, Predicate: PredTagName, Object: name, ObjectIsLiteral: true},
			rdfstore.Triple{Subject: uri, Predicate: PredTagCommit, Object: hash.String(), ObjectIsLiteral: true},
		)
		return nil
	})
}
