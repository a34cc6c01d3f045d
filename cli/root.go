// Package cli implements repolex's command-line surface: a verb-noun
// cobra command tree over the groups {repository, graph, export, query,
// system}, wired to the engine components through viper-driven
// configuration the way the teacher's cli/root.go wires its own flags
// to viper -- minus the HTTP server, which this domain has no use for.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// cfgFile holds the path to the configuration file given via --config.
// An empty value means Load falls back to its built-in defaults.
var cfgFile string

// appViper is bound to every persistent flag the root command declares,
// kept package-scoped (rather than viper's global instance) so repeated
// Execute calls in tests never leak state between runs.
var appViper = viper.New()

type appContextKey struct{}

// RootCmd is the entry point for the repolex binary.
var RootCmd = &cobra.Command{
	Use:   "repolex",
	Short: "a semantic code graph engine for Go repositories",
	Long: `repolex builds and queries a semantic graph of Go source
repositories: stable entity identity across versions, git provenance,
change events between versions, and streaming export of the resulting
graph in compact or outline form.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfgFile, appViper)
		if err != nil {
			return err
		}
		cmd.SetContext(context.WithValue(cmd.Context(), appContextKey{}, a))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if a, ok := cmd.Context().Value(appContextKey{}).(*app); ok {
			a.close()
		}
	},
}

func init() {
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (JSON; defaults applied when omitted)")
	RootCmd.PersistentFlags().String("storage-root", "", "root directory for clones, the triple store, and exports")
	RootCmd.PersistentFlags().String("forge-base-url", "", "base URL of the forge API used to resolve clone URLs")
	RootCmd.PersistentFlags().String("auth-token", "", "bearer token for forge API requests")
	RootCmd.PersistentFlags().String("log-level", "", "debug, info, warn, or error")

	appViper.BindPFlag("storage_root", RootCmd.PersistentFlags().Lookup("storage-root"))
	appViper.BindPFlag("forge_base_url", RootCmd.PersistentFlags().Lookup("forge-base-url"))
	appViper.BindPFlag("auth_token", RootCmd.PersistentFlags().Lookup("auth-token"))
	appViper.BindPFlag("log_level", RootCmd.PersistentFlags().Lookup("log-level"))
}

// appFrom retrieves the *app built in PersistentPreRunE for cmd. Every
// leaf command handler calls this first.
func appFrom(cmd *cobra.Command) *app {
	a, _ := cmd.Context().Value(appContextKey{}).(*app)
	return a
}

// Execute runs the command tree and returns the process exit code,
// derived from the command's error via the rerrors.Kind taxonomy.
func Execute() int {
	err := RootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "repolex:", err)
	}
	return exitCodeFor(err)
}
