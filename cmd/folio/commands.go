package main

import (
	"github.com/spf13/cobra"
)

func buildServeCmd(configPath *string) *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the HTTP API server.

Routes:
  POST /api/chat                 chat with the site's guide
  POST /api/rate                 rate a synopsis
  GET  /api/compositions/titles  list composition titles
  GET  /healthz                  liveness
  GET  /metrics                  Prometheus metrics

Graceful shutdown is handled on SIGINT/SIGTERM signals.`,
		Example: `  # Start with default config
  folio serve

  # Start with debug logging
  folio serve --config /etc/folio/folio.yaml --debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *configPath, debug)
		},
	}
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	return cmd
}

func buildReindexCmd(configPath *string) *cobra.Command {
	var compositionID string

	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the composition search index",
		Long: `Chunk every composition, embed the chunks, and replace its stored chunks.

Compositions are processed one at a time in title order. An embedding failure
stops the run; a storage failure is logged and the run continues.`,
		Example: `  # Reindex everything
  folio reindex

  # Reindex one composition
  folio reindex --id cm1x2y3z`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReindex(cmd.Context(), cmd.OutOrStdout(), *configPath, compositionID)
		},
	}
	cmd.Flags().StringVar(&compositionID, "id", "", "Only reindex this composition")
	return cmd
}

func buildRateCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rate [description]",
		Short: "Rate a synopsis",
		Long: `Embed a synopsis and score it with the rating head.

The description is taken from the arguments, or from stdin when none are given.`,
		Example: `  folio rate "A retired lighthouse keeper adopts a crab."
  cat synopsis.txt | folio rate`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRate(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), *configPath, args)
		},
	}
	return cmd
}

func buildMigrateCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long: `Create the vector extension, the chunk table and its indexes.

Migrations are idempotent; applied versions are tracked in folio_schema_migrations.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context(), cmd.OutOrStdout(), *configPath)
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show index statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), cmd.OutOrStdout(), *configPath)
		},
	})
	return cmd
}

func buildConfigCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration helpers",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "schema",
			Short: "Print the configuration JSON schema",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runConfigSchema(cmd.OutOrStdout())
			},
		},
		&cobra.Command{
			Use:   "validate",
			Short: "Load and validate the configuration",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runConfigValidate(cmd.OutOrStdout(), *configPath)
			},
		},
	)
	return cmd
}
