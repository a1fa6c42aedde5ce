package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecgraph/internal/metrics"
	chiTransport "github.com/kailas-cloud/vecgraph/internal/transport/chi"
	mcpTransport "github.com/kailas-cloud/vecgraph/internal/transport/mcp"
	"github.com/kailas-cloud/vecgraph/internal/version"
)

func (rt *runtimeEnv) serve(c *cli.Context) error {
	cfg, logger := rt.cfg, rt.logger

	logger.Info("Starting vecgraph API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", rt.env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("ingest_mode", cfg.Ingest.Mode),
		zap.String("extraction", cfg.Extraction.Provider),
	)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	server := chiTransport.NewServer(a.controller, a.query, a.health, logger.Named("http"))
	mcpServer := mcpTransport.NewServer(a.query, version.Version, logger.Named("mcp"))

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	r.Handle("/mcp", mcpServer.Handler())
	server.Register(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}
	if err := a.controller.Drain(shutdownCtx); err != nil {
		logger.Warn("Ingestion tasks still running at shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
	return nil
}
