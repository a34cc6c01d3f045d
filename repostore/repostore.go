// Package repostore implements the Repository Store (component H of
// spec.md section 4.8): it owns the on-disk checkout layout for every
// tracked repository version and the clone/checkout/prune operations
// that populate it, using github.com/go-git/go-git/v5 the way the
// retrieved corpus's own git-walking code does.
package repostore

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/repolex-dev/repolex/rerrors"
	"github.com/repolex-dev/repolex/schema"
)

// Store owns {root}/repos/{org}/{repo}/.git (the bare-ish working clone
// git intelligence reads from) and {root}/repos/{org}/{repo}/{version}/
// (one checkout worktree per ingested version), per spec.md section 4.8.
type Store struct {
	root string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New constructs a Store rooted at root, creating it if absent.
func New(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, rerrors.Wrap(rerrors.Source, err, "create repository store root")
	}
	return &Store{root: root, locks: map[string]*sync.Mutex{}}, nil
}

// repoLock returns the advisory per-repository lock, creating it on first
// use. Two concurrent operations on different repositories never block
// each other; two on the same repository always serialize.
func (s *Store) repoLock(org, repo string) *sync.Mutex {
	key := org + "/" + repo
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	return lock
}

// GitDir returns the path to a repository's shared .git directory.
func (s *Store) GitDir(org, repo string) (string, error) {
	return schema.SafeJoin(s.root, filepath.Join("repos", org, repo, ".git"))
}

// VersionDir returns the path to one version's checkout worktree.
func (s *Store) VersionDir(org, repo, version string) (string, error) {
	return schema.SafeJoin(s.root, filepath.Join("repos", org, repo, version))
}

// Clone clones remoteURL into the repository's shared git directory if it
// does not already exist, or opens it if it does. It does not create any
// version worktree; call Checkout for that.
func (s *Store) Clone(remoteURL, org, repo string) (*git.Repository, error) {
	lock := s.repoLock(org, repo)
	lock.Lock()
	defer lock.Unlock()

	gitDir, err := s.GitDir(org, repo)
	if err != nil {
		return nil, err
	}

	if _, statErr := os.Stat(gitDir); statErr == nil {
		r, openErr := git.PlainOpen(gitDir)
		if openErr != nil {
			return nil, rerrors.Wrap(rerrors.Git, openErr, "open existing repository clone")
		}
		return r, nil
	}

	if err := os.MkdirAll(filepath.Dir(gitDir), 0o755); err != nil {
		return nil, rerrors.Wrap(rerrors.Source, err, "create repository parent directory")
	}

	r, err := git.PlainClone(gitDir, true, &git.CloneOptions{URL: remoteURL})
	if err != nil {
		return nil, rerrors.Wrap(rerrors.Git, err, "clone repository "+remoteURL)
	}
	return r, nil
}

// Fetch updates an already-cloned repository's refs from its remote.
// Fetch updates the shared clone's remote refs and returns the opened
// repository so callers can inspect what changed (new tags, branches)
// without a second open.
func (s *Store) Fetch(org, repo string) (*git.Repository, error) {
	lock := s.repoLock(org, repo)
	lock.Lock()
	defer lock.Unlock()

	gitDir, err := s.GitDir(org, repo)
	if err != nil {
		return nil, err
	}
	r, err := git.PlainOpen(gitDir)
	if err != nil {
		return nil, rerrors.Wrap(rerrors.Git, err, "open repository for fetch")
	}
	if err := r.Fetch(&git.FetchOptions{}); err != nil && err != git.NoErrAlreadyUpToDate {
		return nil, rerrors.Wrap(rerrors.Git, err, "fetch repository")
	}
	return r, nil
}

// Checkout materializes ref as a version worktree at
// {root}/repos/{org}/{repo}/{version}, replacing any prior checkout under
// that version name.
func (s *Store) Checkout(org, repo, version, ref string) (string, error) {
	lock := s.repoLock(org, repo)
	lock.Lock()
	defer lock.Unlock()

	gitDir, err := s.GitDir(org, repo)
	if err != nil {
		return "", err
	}
	r, err := git.PlainOpen(gitDir)
	if err != nil {
		return "", rerrors.Wrap(rerrors.Git, err, "open repository for checkout")
	}

	versionDir, err := s.VersionDir(org, repo, version)
	if err != nil {
		return "", err
	}
	if err := os.RemoveAll(versionDir); err != nil {
		return "", rerrors.Wrap(rerrors.Source, err, "clear prior version checkout")
	}
	if err := os.MkdirAll(versionDir, 0o755); err != nil {
		return "", rerrors.Wrap(rerrors.Source, err, "create version checkout directory")
	}

	hash, err := resolveRef(r, ref)
	if err != nil {
		return "", err
	}

	// The version worktree is its own local clone of the shared bare
	// clone, not a second remote against it; go-git happily clones from a
	// plain filesystem path.
	versionRepo, err := git.PlainClone(versionDir, false, &git.CloneOptions{URL: gitDir})
	if err != nil {
		return "", rerrors.Wrap(rerrors.Git, err, "clone version worktree from local mirror")
	}
	worktree, err := versionRepo.Worktree()
	if err != nil {
		return "", rerrors.Wrap(rerrors.Git, err, "open version worktree")
	}
	if err := worktree.Checkout(&git.CheckoutOptions{Hash: hash, Force: true}); err != nil {
		return "", rerrors.Wrap(rerrors.Git, err, "checkout "+ref)
	}

	return versionDir, nil
}

func resolveRef(r *git.Repository, ref string) (plumbing.Hash, error) {
	if h, err := r.ResolveRevision(plumbing.Revision(ref)); err == nil {
		return *h, nil
	}
	return plumbing.Hash{}, rerrors.New(rerrors.Git, "could not resolve ref "+ref)
}

// Prune removes a version's checkout worktree, leaving the shared clone
// intact.
func (s *Store) Prune(org, repo, version string) error {
	lock := s.repoLock(org, repo)
	lock.Lock()
	defer lock.Unlock()

	versionDir, err := s.VersionDir(org, repo, version)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(versionDir); err != nil {
		return rerrors.Wrap(rerrors.Source, err, "prune version checkout")
	}
	return nil
}

// ListVersions enumerates the version checkout directories present for a
// repository.
func (s *Store) ListVersions(org, repo string) ([]string, error) {
	base, err := schema.SafeJoin(s.root, filepath.Join("repos", org, repo))
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(base)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, rerrors.Wrap(rerrors.Source, err, "list version checkouts")
	}
	var versions []string
	for _, e := range entries {
		if e.IsDir() && e.Name() != ".git" {
			versions = append(versions, e.Name())
		}
	}
	return versions, nil
}

// RemoveRepository deletes a repository's entire on-disk presence: its
// shared clone and every version checkout.
func (s *Store) RemoveRepository(org, repo string) error {
	lock := s.repoLock(org, repo)
	lock.Lock()
	defer lock.Unlock()

	base, err := schema.SafeJoin(s.root, filepath.Join("repos", org, repo))
	if err != nil {
		return err
	}
	if err := os.RemoveAll(base); err != nil {
		return rerrors.Wrap(rerrors.Source, err, "remove repository")
	}
	return nil
}
