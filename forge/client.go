// Package forge resolves a tracked repository's clone URL and default
// branch against a remote code forge. Repo Manager depends on the Client
// interface only, so a forge-less deployment can supply CloneURL
// directly to Add and never construct a GiteaClient at all.
package forge

import (
	"code.gitea.io/sdk/gitea"
	"github.com/repolex-dev/repolex/rerrors"
)

// Client resolves a tracked repository's clone URL and default branch
// against a remote forge, the abstraction Repo Manager (component I)
// depends on so it never talks to a concrete forge SDK directly.
type Client interface {
	RepoInfo(org, repoName string) (cloneURL, defaultBranch string, err error)
}

// GiteaClient is the Client implementation for a Gitea instance, built on
// code.gitea.io/sdk/gitea.
type GiteaClient struct {
	client *gitea.Client
}

// NewGiteaClient constructs a GiteaClient against baseURL, authenticating
// with token if non-empty.
func NewGiteaClient(baseURL, token string) (*GiteaClient, error) {
	// SetGiteaVersion("") skips the SDK's default server-version
	// handshake, so construction never makes a network call.
	opts := []gitea.ClientOption{gitea.SetGiteaVersion("")}
	if token != "" {
		opts = append(opts, gitea.SetToken(token))
	}
	c, err := gitea.NewClient(baseURL, opts...)
	if err != nil {
		return nil, rerrors.Wrap(rerrors.Network, err, "create gitea client")
	}
	return &GiteaClient{client: c}, nil
}

// RepoInfo implements Client.
func (g *GiteaClient) RepoInfo(org, repoName string) (string, string, error) {
	repo, _, err := g.client.GetRepo(org, repoName)
	if err != nil {
		return "", "", rerrors.Wrap(rerrors.Network, err, "fetch repository metadata from forge")
	}
	return repo.CloneURL, repo.DefaultBranch, nil
}
