// Command orchestratord runs the multi-agent orchestration runtime: the
// supervisor graph, its task/research subgraphs, the tool and skill
// registries, the guardrail chain, and the streaming/HITL bridges that
// expose a run to a client.
//
// Usage:
//
//	orchestratord serve --config orchestratord.yaml
//	orchestratord version
//
// Environment variables:
//
//	ORCHESTRATORD_HOST, ORCHESTRATORD_PORT, REDIS_ADDR
//	ANTHROPIC_API_KEY, OPENAI_API_KEY, GEMINI_API_KEY
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// version, commit, and date are set via -ldflags at build time.
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

// buildRootCmd creates the root command with all subcommands attached.
// Separated from main() to keep it testable.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "orchestratord",
		Short: "orchestratord - multi-agent orchestration runtime",
		Long: `orchestratord runs a supervisor graph that routes each query to a
task or research subgraph, executes tools under guardrails, and streams
run events to clients over SSE.

Subgraphs: task (react loop + tool execution), research (scenario-tuned
search/analyze/synthesize/write pipeline)
LLM tiers: FLASH (routing, compression), PRO (task/research), MAX (escalation)`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildServeCmd(),
		buildVersionCmd(),
	)
	return rootCmd
}

func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "orchestratord %s (commit: %s, built: %s)\n", version, commit, date)
			return nil
		},
	}
}
