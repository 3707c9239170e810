package commands

import (
	"context"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/alibaizhanov/mengram/cmd/mengram/internal/config"
	"github.com/alibaizhanov/mengram/pkg/mengram"
)

var (
	// Global flags
	flagConfig string
	flagUser   string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "mengram",
	Short: "Long-term memory engine for conversational AI",
	Long: `mengram - long-term memory for AI agents, stored as a markdown vault.

Conversations are distilled by an LLM into entity notes (facts, relations,
knowledge) that stay readable in any markdown editor. A knowledge graph and
a vector index are derived from the notes for hybrid retrieval.

Configuration is YAML (see --config); API keys fall back to the usual
environment variables, and a .env file in the working directory is loaded
automatically.

Examples:
  # Ingest a message for a user
  mengram add "I work at Uzum Bank, backend on Spring Boot" -u ali

  # Semantic search with structured results
  mengram search "where does ali work?" -u ali

  # Assembled context for an agent prompt
  mengram recall "ali's job" -u ali

  # Inspect the vault
  mengram get "Uzum Bank" -u ali
  mengram list -u ali
  mengram stats -u ali`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initEnv)

	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "f", "", "config file (default: $MENGRAM_CONFIG, ./mengram.yaml)")
	rootCmd.PersistentFlags().StringVarP(&flagUser, "user", "u", mengram.DefaultUser, "user ID (each user has an isolated vault)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func initEnv() {
	// Optional; credentials usually live here during development.
	_ = godotenv.Load()

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// openMemory builds the engine from the resolved configuration.
func openMemory(ctx context.Context) (*mengram.Memory, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	return mengram.New(ctx, *cfg)
}
