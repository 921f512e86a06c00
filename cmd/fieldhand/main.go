// Package main provides the CLI entry point for the fieldhand assistant core.
//
// Fieldhand drives an LLM through rounds of farm-data tool calls (fields,
// boundaries, weather, equipment, market prices) and serves the result over
// HTTP with a WebSocket progress stream.
//
// # Basic Usage
//
// Start the server:
//
//	fieldhand serve --config fieldhand.yaml
//
// # Environment Variables
//
//   - ANTHROPIC_API_KEY: Anthropic API key for Claude models
//   - OPENAI_API_KEY: OpenAI API key for GPT models
//
// Keys are referenced from the config file via ${VAR} expansion.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information - populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()

	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
// Separated from main() to facilitate testing.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fieldhand",
		Short: "Fieldhand - conversational farm-data assistant core",
		Long: `Fieldhand orchestrates LLM tool calling over farm data: field listings,
boundary lookups, weather, equipment telemetry, and market prices.

Supported LLM providers: Anthropic (Claude), OpenAI (GPT)`,
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
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("fieldhand %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}
