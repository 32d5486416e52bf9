package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	mcpadapter "github.com/kirillkom/domain-router/internal/adapters/mcp"
	"github.com/kirillkom/domain-router/internal/bootstrap"
	"github.com/kirillkom/domain-router/internal/config"
	"github.com/kirillkom/domain-router/internal/observability/logging"
)

const serviceName = "router-mcp"

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	// stdout carries the MCP protocol.
	slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, nil)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	server, err := mcpadapter.NewServer(mcpadapter.Services{
		Classifier: app.Classifier,
		Searcher:   app.Searcher,
		Chat:       app.ChatUC,
	}, cfg.RAGTopK)
	if err != nil {
		slog.Error("mcp_init_failed", "error", err)
		os.Exit(1)
	}

	slog.Info("mcp_serving_stdio", "collections", app.Collections.Domains())
	if err := server.ServeStdio(); err != nil {
		slog.Error("mcp_serve_failed", "error", err)
	}
}
