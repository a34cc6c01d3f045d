package cli

import (
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/repolex-dev/repolex/graphbuilder"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "build and tear down a repository's semantic graph",
}

// openGitRepo opens the shared clone Graph Manager reads git history
// from. The repository must already be tracked (see "repository add");
// PlainOpen fails otherwise.
func openGitRepo(a *app, org, repo string) (*git.Repository, error) {
	dir, err := a.repoStore.GitDir(org, repo)
	if err != nil {
		return nil, err
	}
	return git.PlainOpen(dir)
}

var graphAddCmd = &cobra.Command{
	Use:   "add <org> <repo> <version> <ref> [priorVersion]",
	Short: "build a new version's graph from scratch",
	Args:  cobra.RangeArgs(4, 5),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := appFrom(cmd)
		org, repo, version, ref := args[0], args[1], args[2], args[3]
		priorVersion := ""
		if len(args) == 5 {
			priorVersion = args[4]
		}

		gitRepo, err := openGitRepo(a, org, repo)
		if err != nil {
			return err
		}

		result, err := a.graphs.Add(cmd.Context(), org, repo, version, ref, priorVersion, gitRepo)
		if err != nil {
			return err
		}
		printBuildResult(cmd, result)
		return nil
	},
}

var graphUpdateCmd = &cobra.Command{
	Use:   "update <org> <repo> <version> <ref> [priorVersion]",
	Short: "rebuild a version's graph from scratch, discarding any prior build",
	Args:  cobra.RangeArgs(4, 5),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := appFrom(cmd)
		org, repo, version, ref := args[0], args[1], args[2], args[3]
		priorVersion := ""
		if len(args) == 5 {
			priorVersion = args[4]
		}

		gitRepo, err := openGitRepo(a, org, repo)
		if err != nil {
			return err
		}

		result, err := a.graphs.Update(cmd.Context(), org, repo, version, ref, priorVersion, gitRepo)
		if err != nil {
			return err
		}
		printBuildResult(cmd, result)
		return nil
	},
}

var graphRemoveCmd = &cobra.Command{
	Use:   "remove <org> <repo> [version]",
	Short: "tear down a repository's graph, or one version's graph when given",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := appFrom(cmd)
		org, repo := args[0], args[1]

		if len(args) == 3 {
			version := args[2]
			if err := confirmDestructive(cmd, a.cfg, fmt.Sprintf("remove graph %s/%s/%s", org, repo, version)); err != nil {
				return err
			}
			if err := a.graphs.RemoveVersion(cmd.Context(), org, repo, version); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s/%s/%s\n", org, repo, version)
			return nil
		}

		if err := confirmDestructive(cmd, a.cfg, fmt.Sprintf("remove every graph owned by %s/%s", org, repo)); err != nil {
			return err
		}
		if err := a.graphs.Remove(cmd.Context(), org, repo); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed every graph owned by %s/%s\n", org, repo)
		return nil
	},
}

var graphListCmd = &cobra.Command{
	Use:   "list <org> <repo>",
	Short: "list every graph a repository currently owns",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := appFrom(cmd)
		graphs, err := a.graphs.List(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		for _, g := range graphs {
			fmt.Fprintln(cmd.OutOrStdout(), g)
		}
		return nil
	},
}

var graphShowCmd = &cobra.Command{
	Use:   "show <org> <repo> <version>",
	Short: "show a version's graph lifecycle state",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := appFrom(cmd)
		state := a.graphs.Show(args[0], args[1], args[2])
		fmt.Fprintln(cmd.OutOrStdout(), state)
		return nil
	},
}

func printBuildResult(cmd *cobra.Command, result *graphbuilder.Result) {
	fmt.Fprintf(cmd.OutOrStdout(), "functions=%d classes=%d modules=%d changeEvents=%d warnings=%d duplicatesLogged=%d\n",
		result.FunctionCount, result.ClassCount, result.ModuleCount,
		len(result.ChangeEvents), len(result.Warnings), result.DuplicatesLogged)
	for _, w := range result.Warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s: %s\n", w.File, w.Message)
	}
}

func init() {
	graphCmd.AddCommand(graphAddCmd, graphUpdateCmd, graphRemoveCmd, graphListCmd, graphShowCmd)
	RootCmd.AddCommand(graphCmd)
}
