package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/tendant/content-catalog/internal/mcp"
	"github.com/tendant/content-catalog/pkg/catalog/config"
)

func main() {
	mode := flag.String("mode", "stdio", "Server mode: 'stdio', 'sse', or 'http'")
	addr := flag.String("addr", ":8000", "listen address for sse and http modes")
	baseURL := flag.String("base-url", "http://localhost:8000", "public base URL for sse mode")
	flag.Parse()

	if err := godotenv.Load(".env"); err != nil {
		slog.Info("No .env file found or error loading it, using environment", "err", err)
	}

	cfg, err := config.Load(config.WithEnv())
	if err != nil {
		slog.Error("Failed to load configuration", "err", err)
		os.Exit(1)
	}

	// stdout carries the protocol in stdio mode
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	svc, cleanup, err := cfg.BuildService(context.Background(), logger)
	if err != nil {
		logger.Error("Failed to build catalog service", "err", err)
		os.Exit(1)
	}
	defer cleanup()

	s := server.NewMCPServer(
		"Content Catalog Mcp",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	handler := mcp.NewCatalogHandler(svc)
	handler.RegisterTools(s)

	switch *mode {
	case "sse":
		sseServer := server.NewSSEServer(s, server.WithBaseURL(*baseURL))
		logger.Info("Starting SSE server", "base url", *baseURL)
		if err := sseServer.Start(*addr); err != nil {
			logger.Error("Failed to start SSE server", "err", err)
			os.Exit(1)
		}
	case "http":
		httpServer := server.NewStreamableHTTPServer(s)
		logger.Info("HTTP server listening", "addr", *addr)
		if err := httpServer.Start(*addr); err != nil {
			logger.Error("Server error", "err", err)
			os.Exit(1)
		}
	default:
		logger.Info("Starting in stdio mode")
		if err := server.ServeStdio(s); err != nil {
			logger.Error("Failed to start stdio server", "err", err)
			os.Exit(1)
		}
	}
}
