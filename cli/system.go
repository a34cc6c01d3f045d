package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/repolex-dev/repolex/repomanager"
	"github.com/spf13/cobra"
)

var systemCmd = &cobra.Command{
	Use:   "system",
	Short: "inspect and operate the repolex process itself",
}

var systemShowCmd = &cobra.Command{
	Use:   "show",
	Short: "print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a := appFrom(cmd)
		cfg := a.cfg
		fmt.Fprintf(cmd.OutOrStdout(), "storage_root: %s\n", cfg.StorageRoot)
		fmt.Fprintf(cmd.OutOrStdout(), "forge_base_url: %s\n", cfg.ForgeBaseURL)
		fmt.Fprintf(cmd.OutOrStdout(), "log_level: %s\n", cfg.LogLevel)
		fmt.Fprintf(cmd.OutOrStdout(), "processing_timeout_seconds: %d\n", cfg.ProcessingTimeoutSeconds)
		fmt.Fprintf(cmd.OutOrStdout(), "max_file_size_mb: %d\n", cfg.MaxFileSizeMB)
		fmt.Fprintf(cmd.OutOrStdout(), "max_concurrent_parsers: %d\n", cfg.MaxConcurrentParsers)
		fmt.Fprintf(cmd.OutOrStdout(), "query_timeout_seconds: %d\n", cfg.QueryTimeoutSeconds)
		fmt.Fprintf(cmd.OutOrStdout(), "require_confirmation_for_destructive: %t\n", cfg.RequireConfirmationForDestructive)
		return nil
	},
}

var systemWatchCmd = &cobra.Command{
	Use:   "watch <cronExpression>",
	Short: "periodically update every tracked repository until interrupted",
	Long: `watch runs repository update against every tracked repository on
the given five-field cron schedule (e.g. "0 */6 * * *" for every six
hours) until interrupted with SIGINT or SIGTERM. It is off by default;
there is no implicit background refresh.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := appFrom(cmd)

		sched := repomanager.NewScheduler(a.repos, func(org, repo string, err error) {
			fmt.Fprintf(cmd.ErrOrStderr(), "update %s/%s failed: %v\n", org, repo, err)
		})
		if err := sched.Start(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "watching on schedule %q, press Ctrl+C to stop\n", args[0])

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit

		sched.Stop()
		return nil
	},
}

func init() {
	systemCmd.AddCommand(systemShowCmd, systemWatchCmd)
	RootCmd.AddCommand(systemCmd)
}
