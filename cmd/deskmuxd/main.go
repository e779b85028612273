// Command deskmuxd runs the desktop-shell orchestration daemon: the
// WebSocket gateway, the agent pool, and the main/window task processors
// that turn client tasks into desktop actions.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "deskmuxd",
		Short:        "deskmuxd - desktop-shell agent orchestration daemon",
		Long:         "deskmuxd routes client tasks to main and window agents, emits desktop actions over a WebSocket gateway, and persists session transcripts for restore on restart.",
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	rootCmd.AddCommand(buildServeCmd())
	return rootCmd
}
