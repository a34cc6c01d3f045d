package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/repolex-dev/repolex/lexify"
	"github.com/spf13/cobra"
)

// lexifyEntry is one manifest line: the JSON-serializable shape of a
// lexify.Target, minus the *git.Repository field Run actually needs,
// which is resolved from the tracked clone at run time instead.
type lexifyEntry struct {
	ID           string   `json:"id"`
	Org          string   `json:"org"`
	Repo         string   `json:"repo"`
	Version      string   `json:"version"`
	Ref          string   `json:"ref"`
	PriorVersion string   `json:"prior_version"`
	Requires     []string `json:"requires"`
}

var lexifyCmd = &cobra.Command{
	Use:   "lexify <manifest.json>",
	Short: "build and export a repository and its declared dependencies, in dependency order",
	Long: `lexify reads a JSON array of targets, each naming a repository
version and the target IDs it requires, and runs graph add followed by
a compact export for every target in topological order -- skipping any
target whose graph is already built. A dependency cycle or a reference
to an unknown target ID aborts before any work starts.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := appFrom(cmd)

		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		var entries []lexifyEntry
		if err := json.Unmarshal(data, &entries); err != nil {
			return err
		}

		targets := make([]lexify.Target, 0, len(entries))
		for _, e := range entries {
			gitRepo, err := openGitRepo(a, e.Org, e.Repo)
			if err != nil {
				return err
			}
			targets = append(targets, lexify.Target{
				ID: e.ID, Org: e.Org, Repo: e.Repo, Version: e.Version,
				Ref: e.Ref, PriorVersion: e.PriorVersion,
				GitRepository: gitRepo, Requires: e.Requires,
			})
		}

		out, _ := cmd.Flags().GetString("out")
		w := cmd.OutOrStdout()
		if out != "" && out != "-" {
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}

		outcomes, err := lexify.Run(cmd.Context(), a.graphs, a.export, targets, w)
		for _, o := range outcomes {
			status := "built"
			switch {
			case o.Err != nil:
				status = "failed: " + o.Err.Error()
			case o.Skipped:
				status = "skipped (already ready)"
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", o.Target.ID, status)
		}
		return err
	},
}

func init() {
	lexifyCmd.Flags().String("out", "", "destination for the concatenated compact export; default stdout")
	RootCmd.AddCommand(lexifyCmd)
}
