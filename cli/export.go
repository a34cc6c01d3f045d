package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "stream a version's graph as a compact or outline artifact",
}

// exportDestination resolves where an export is written: the --out flag
// if given, or {storage_root}/exports/{org}/{repo}/{version}.{ext}
// otherwise. An empty result means "stdout".
func exportDestination(cmd *cobra.Command, a *app, org, repo, version, ext string) (string, error) {
	out, _ := cmd.Flags().GetString("out")
	if out == "-" {
		return "", nil
	}
	if out != "" {
		return out, nil
	}
	dir := filepath.Join(a.cfg.StorageRoot, "exports", org, repo)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(dir, version+"."+ext), nil
}

var exportCompactCmd = &cobra.Command{
	Use:   "compact <org> <repo> <version>",
	Short: "write the line-delimited JSON compact export",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := appFrom(cmd)
		org, repo, version := args[0], args[1], args[2]

		dest, err := exportDestination(cmd, a, org, repo, version, "jsonl")
		if err != nil {
			return err
		}
		if dest == "" {
			return a.export.Compact(cmd.Context(), org, repo, version, cmd.OutOrStdout())
		}
		if err := a.export.CompactToFile(cmd.Context(), org, repo, version, dest); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), dest)
		return nil
	},
}

var exportOutlineCmd = &cobra.Command{
	Use:   "outline <org> <repo> <version>",
	Short: "write the human-readable outline export",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := appFrom(cmd)
		org, repo, version := args[0], args[1], args[2]

		dest, err := exportDestination(cmd, a, org, repo, version, "txt")
		if err != nil {
			return err
		}
		if dest == "" {
			return a.export.Outline(cmd.Context(), org, repo, version, cmd.OutOrStdout())
		}
		if err := a.export.OutlineToFile(cmd.Context(), org, repo, version, dest); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), dest)
		return nil
	},
}

func init() {
	exportCmd.PersistentFlags().String("out", "", "destination file; '-' for stdout; default is the repository's exports directory")
	exportCmd.AddCommand(exportCompactCmd, exportOutlineCmd)
	RootCmd.AddCommand(exportCmd)
}
