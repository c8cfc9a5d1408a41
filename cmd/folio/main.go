// Package main provides the folio CLI.
//
// folio serves the portfolio site's chat and rating APIs and maintains the
// composition search index.
//
// # Basic Usage
//
// Start the API server:
//
//	folio serve --config folio.yaml
//
// Rebuild the search index:
//
//	folio reindex
//
// Rate a synopsis:
//
//	echo "A crab opens a bakery." | folio rate
//
// # Environment Variables
//
// .env and .env.local are loaded before the config file. Unset config
// values fall back to:
//
//   - DATABASE_URL: PostgreSQL connection string
//   - GEMINI_API_KEY: Gemini key for chat and embeddings
//   - OPENAI_API_KEY: OpenAI key when embeddings.provider is openai
//   - REDIS_ADDR: Redis address for the query embedding cache
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
func buildRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "folio",
		Short: "folio - portfolio chat, rating and search index",
		Long: `folio answers visitors' questions about the site's compositions,
rates story synopses, and keeps the composition search index current.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			loadDotEnv()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath(),
		"Path to YAML or JSON5 configuration file (optional)")

	rootCmd.AddCommand(
		buildServeCmd(&configPath),
		buildReindexCmd(&configPath),
		buildRateCmd(&configPath),
		buildMigrateCmd(&configPath),
		buildConfigCmd(&configPath),
	)

	return rootCmd
}
