package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var repositoryCmd = &cobra.Command{
	Use:   "repository",
	Short: "manage tracked repositories, independent of any graph built from them",
}

var repositoryAddCmd = &cobra.Command{
	Use:   "add <org> <repo> [cloneURL]",
	Short: "track a repository and clone it",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := appFrom(cmd)
		cloneURL := ""
		if len(args) == 3 {
			cloneURL = args[2]
		}
		repo, err := a.repos.Add(cmd.Context(), args[0], args[1], cloneURL)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "tracked %s/%s (clone %s)\n  status:   %s\n  releases: %s\n",
			repo.Org, repo.Name, repo.CloneURL, repo.Status, strings.Join(repo.Releases, ", "))
		return nil
	},
}

var repositoryUpdateCmd = &cobra.Command{
	Use:   "update <org> <repo>",
	Short: "fetch a tracked repository's latest remote refs",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := appFrom(cmd)
		if err := a.repos.Update(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "updated %s/%s\n", args[0], args[1])
		return nil
	},
}

var repositoryRemoveCmd = &cobra.Command{
	Use:   "remove <org> <repo>",
	Short: "stop tracking a repository and delete its on-disk clone",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := appFrom(cmd)
		if err := confirmDestructive(cmd, a.cfg, fmt.Sprintf("remove repository %s/%s", args[0], args[1])); err != nil {
			return err
		}
		if err := a.repos.Remove(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %s/%s\n", args[0], args[1])
		return nil
	},
}

var repositoryShowCmd = &cobra.Command{
	Use:   "show <org> <repo>",
	Short: "show a tracked repository's registry entry",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := appFrom(cmd)
		repo, err := a.repos.Show(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s/%s\n  clone:    %s\n  branch:   %s\n  added:    %s\n  status:   %s\n  releases: %s\n",
			repo.Org, repo.Name, repo.CloneURL, repo.DefaultBranch, repo.AddedAt, repo.Status, strings.Join(repo.Releases, ", "))

		versions, err := a.repoStore.ListVersions(args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  checkouts: %s\n", strings.Join(versions, ", "))
		return nil
	},
}

var repositoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "list every tracked repository",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a := appFrom(cmd)
		repos, err := a.repos.List(cmd.Context())
		if err != nil {
			return err
		}
		for _, r := range repos {
			fmt.Fprintf(cmd.OutOrStdout(), "%s/%s\t%s\t%s\t%s\n", r.Org, r.Name, r.CloneURL, r.Status, strings.Join(r.Releases, ","))
		}
		return nil
	},
}

func init() {
	repositoryCmd.AddCommand(repositoryAddCmd, repositoryUpdateCmd, repositoryRemoveCmd, repositoryShowCmd, repositoryListCmd)
	RootCmd.AddCommand(repositoryCmd)
}
