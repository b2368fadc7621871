package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tendant/content-catalog/pkg/catalog"
	"github.com/tendant/content-catalog/pkg/catalog/config"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	_ = godotenv.Load(".env")

	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func NewRootCommand() *cobra.Command {
	var configFile string
	var verbose bool

	rootCmd := &cobra.Command{
		Use:   "catalogctl",
		Short: "Content catalog administration CLI",
		Long: `Command line interface for the content catalog.

Talks to the catalog store directly using the same DATABASE_URL and
STORAGE_URL settings as catalog-server. Run "catalogctl config usage" for
the full list of settings.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (optional)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(NewMetadataTypeCommand())
	rootCmd.AddCommand(NewMetadataCommand())
	rootCmd.AddCommand(NewUserCommand())
	rootCmd.AddCommand(NewTokenCommand())
	rootCmd.AddCommand(NewContentCommand())
	rootCmd.AddCommand(NewStatsCommand())
	rootCmd.AddCommand(NewVerifyCommand())
	rootCmd.AddCommand(NewConfigCommand())

	return rootCmd
}

// loadConfig reads settings from --config when given, otherwise from the
// environment.
func loadConfig(cmd *cobra.Command) (*config.ServerConfig, error) {
	configFile, _ := cmd.Flags().GetString("config")
	if configFile != "" {
		return config.Load(config.WithConfigFile(configFile))
	}
	return config.Load(config.WithEnv())
}

// withService builds the catalog service for one command run and closes it
// afterwards.
func withService(cmd *cobra.Command, fn func(ctx context.Context, cfg *config.ServerConfig, svc catalog.Service) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	level := slog.LevelWarn
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	logger.Debug("Configuration loaded", "database", cfg.DatabaseType, "storage", cfg.DefaultStorageBackend)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	svc, cleanup, err := cfg.BuildService(ctx, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	return fn(ctx, cfg, svc)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
