package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/repolex-dev/repolex/config"
	"github.com/repolex-dev/repolex/rerrors"
	"github.com/spf13/cobra"
)

func init() {
	RootCmd.PersistentFlags().Bool("force", false, "skip the interactive confirmation prompt for destructive operations")
}

// confirmDestructive enforces RequireConfirmationForDestructive: when
// set, a destructive command must either be run with --force or answer
// "y" to an interactive prompt describing action. Confirmation is
// skipped entirely when the policy is disabled.
func confirmDestructive(cmd *cobra.Command, cfg *config.Config, action string) error {
	if !cfg.RequireConfirmationForDestructive {
		return nil
	}
	force, _ := cmd.Flags().GetBool("force")
	if force {
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s cannot be undone. Type 'y' to continue: ", action)
	reader := bufio.NewReader(cmd.InOrStdin())
	line, _ := reader.ReadString('\n')
	if strings.TrimSpace(strings.ToLower(line)) != "y" {
		return rerrors.New(rerrors.Validation, "destructive operation not confirmed", "re-run with --force or answer y at the prompt")
	}
	return nil
}
