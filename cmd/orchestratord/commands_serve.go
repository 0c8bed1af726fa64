package main

import (
	"github.com/spf13/cobra"
)

// buildServeCmd creates the "serve" command that starts the orchestrator
// daemon: the supervisor graph, its HTTP/SSE surface, and every wired
// component behind it.
func buildServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the orchestrator daemon",
		Long: `Start the orchestrator daemon.

The daemon will:
1. Load configuration from the specified file
2. Initialize the LLM router, tool/skill registries, and sandbox manager
3. Serve run submission and SSE streaming over HTTP
4. Handle graceful shutdown on SIGINT/SIGTERM`,
		Example: `  # Start with default config path
  orchestratord serve --config orchestratord.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "orchestratord.yaml", "Path to the daemon config file")
	return cmd
}
