// Package lexify implements the `repolex lexify` convenience command
// named in spec.md section 10's Open Question 3: it is not a core
// component, just a composition of the Graph Manager's add and the
// compact exporter across a repository and its declared dependencies,
// ordered so a dependency's graph and artifact are always produced
// before anything that requires it.
package lexify

import (
	"context"
	"io"

	"github.com/go-git/go-git/v5"
	"github.com/repolex-dev/repolex/export"
	"github.com/repolex-dev/repolex/graph"
	"github.com/repolex-dev/repolex/graphbuilder"
	"github.com/repolex-dev/repolex/graphmanager"
	"github.com/repolex-dev/repolex/rerrors"
)

// Target describes one repository version to ingest and export as part
// of a lexify run. ID is the "org/repo" key other Targets reference in
// Requires.
type Target struct {
	ID            string
	Org           string
	Repo          string
	Version       string
	Ref           string
	PriorVersion  string
	GitRepository *git.Repository
	Requires      []string
}

// Outcome is one Target's build-and-export result.
type Outcome struct {
	Target  Target
	Build   *graphbuilder.Result
	Skipped bool // true if the target's graph was already ready and was left alone
	Err     error
}

// Run orders targets by dependency, then for each one (skipping any
// already in graphmanager.StateReady) builds its graph via manager and
// streams its compact export to w, in order. It stops at the first
// Target whose build fails; the returned Outcome slice holds every
// Target processed up to and including the failure.
func Run(ctx context.Context, manager *graphmanager.Manager, exporter *export.Exporter, targets []Target, w io.Writer) ([]Outcome, error) {
	nodes := make([]graph.Node, 0, len(targets))
	byID := make(map[string]Target, len(targets))
	for _, t := range targets {
		nodes = append(nodes, graph.Node{ID: t.ID, Requires: t.Requires})
		byID[t.ID] = t
	}

	order, err := graph.TopologicalOrder(nodes)
	if err != nil {
		return nil, rerrors.Wrap(rerrors.Validation, err, "order lexify targets")
	}

	outcomes := make([]Outcome, 0, len(order))
	for _, n := range order {
		t := byID[n.ID]

		if manager.State(t.Org, t.Repo, t.Version) == graphmanager.StateReady {
			outcomes = append(outcomes, Outcome{Target: t, Skipped: true})
		} else {
			res, err := manager.Add(ctx, t.Org, t.Repo, t.Version, t.Ref, t.PriorVersion, t.GitRepository)
			if err != nil {
				outcomes = append(outcomes, Outcome{Target: t, Err: err})
				return outcomes, err
			}
			outcomes = append(outcomes, Outcome{Target: t, Build: res})
		}

		if err := exporter.Compact(ctx, t.Org, t.Repo, t.Version, w); err != nil {
			outcomes[len(outcomes)-1].Err = err
			return outcomes, rerrors.Wrap(rerrors.Export, err, "export "+t.ID)
		}
	}

	return outcomes, nil
}
