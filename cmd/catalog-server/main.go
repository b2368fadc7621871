package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/tendant/chi-demo/app"
	"github.com/tendant/content-catalog/pkg/catalog/api"
	"github.com/tendant/content-catalog/pkg/catalog/config"
)

func main() {
	configFile := flag.String("config", "", "optional YAML, JSON, TOML or .env config file")
	flag.Parse()

	if err := godotenv.Load(".env"); err != nil {
		slog.Info("No .env file found or error loading it, using environment", "err", err)
	}

	opts := []config.Option{config.WithEnv()}
	if *configFile != "" {
		opts = []config.Option{config.WithConfigFile(*configFile)}
	}
	cfg, err := config.Load(opts...)
	if err != nil {
		slog.Error("Failed to load configuration", "err", err)
		os.Exit(1)
	}

	logger := cfg.Logger()
	slog.SetDefault(logger)

	ctx := context.Background()
	svc, cleanup, err := cfg.BuildService(ctx, logger)
	if err != nil {
		logger.Error("Failed to build catalog service", "err", err)
		os.Exit(1)
	}
	defer cleanup()

	logger.Info("Catalog service ready",
		"database", cfg.DatabaseType,
		"storage", cfg.DefaultStorageBackend,
		"key_strategy", cfg.KeyStrategy,
		"restrict_registration", cfg.RestrictRegistration)

	server := app.DefaultApp()

	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)

	server.R.Mount("/", api.NewRouter(svc, api.Config{
		JWTAuth:              cfg.JWTAuth(),
		MaxUploadBytes:       cfg.MaxUploadBytes,
		RestrictRegistration: cfg.RestrictRegistration,
		RequestTimeout:       60 * time.Second,
		Logger:               logger,
	}))

	server.Run()
}
