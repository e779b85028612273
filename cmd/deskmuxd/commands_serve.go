package main

import (
	"github.com/spf13/cobra"
)

// buildServeCmd creates the "serve" command that starts the gateway,
// the orchestration core, and the metrics endpoint.
func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the deskmuxd orchestration daemon",
		Long: `Start deskmuxd's WebSocket gateway and orchestration core.

The daemon will:
1. Load configuration (falling back to documented defaults)
2. Restore window state and main-agent transcript from the newest prior session, if any
3. Dial the provider warm pool (stdio or websocket transport, per config)
4. Start the gateway on server.bind_addr and /metrics on server.metrics_addr

Graceful shutdown is handled on SIGINT/SIGTERM.`,
		Example: `  deskmuxd serve
  deskmuxd serve --config /etc/deskmuxd/config.yaml
  deskmuxd serve --debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file (uses documented defaults if omitted)")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	return cmd
}
