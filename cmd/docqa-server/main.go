// Package main runs the docqa HTTP API and MCP server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/bull/docqa/internal/app"
	"github.com/bull/docqa/internal/config"
	"github.com/bull/docqa/internal/logger"
)

func main() {
	configPath := flag.String("config", os.Getenv("DOCQA_CONFIG"), "path to a YAML config file")
	flag.Parse()

	// Load .env file if present (local development), ignore if missing (production)
	envErr := godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.Server.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	if envErr != nil {
		log.Debug("no .env file found, using environment variables")
	}

	// Create context that cancels on SIGTERM/SIGINT
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	if cfg.Server.Mode {
		gin.SetMode(gin.ReleaseMode)
	}

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := a.HTTPServer()
	errCh := make(chan error, 1)
	go func() {
		log.Info("starting HTTP server", "addr", srv.Addr, "mcp", "/mcp", "health", "/health")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if cfg.Server.Mode {
		// HTTP mode: the API and MCP endpoint serve remote clients until shutdown.
		select {
		case <-ctx.Done():
		case err := <-errCh:
			return fmt.Errorf("HTTP server error: %w", err)
		}
	} else {
		// Stdio mode: run MCP over stdin/stdout for a local client; the HTTP
		// API stays up in the background for local testing.
		log.Info("starting docqa MCP server (stdio mode)")
		go func() {
			if err := <-errCh; err != nil {
				log.Warn("HTTP server error", "error", err)
			}
		}()
		if err := a.MCP.Run(ctx); err != nil && ctx.Err() == nil {
			shutdown(srv, log)
			return fmt.Errorf("MCP server error: %w", err)
		}
	}

	shutdown(srv, log)
	return nil
}

func shutdown(srv *http.Server, log *logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("HTTP server shutdown", "error", err)
	}
}
