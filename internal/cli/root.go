// Package cli implements reviewctl, the operator command line.
package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/maraichr/reviewgate/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "reviewctl",
	Short: "Operate a reviewgate deployment",
	Long: `reviewctl manages the reviewgate database schema, replays stored
webhook payloads onto the delivery queue and inspects how payloads are
normalized and deduplicated.

Configuration is read from the environment (and .env) exactly like the
api and worker binaries.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(migrateCmd, replayCmd, dedupKeyCmd, versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// loadConfig is swapped in tests.
var loadConfig = config.Load
