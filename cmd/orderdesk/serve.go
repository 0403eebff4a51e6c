package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rpattn/orderdesk/internal/httpapi"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the JSON API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	// Warm the cache; a failure is served as 502 until the source recovers.
	if _, err := a.cache.Snapshot(ctx); err != nil {
		logger.Warn("initial order load failed", zap.Error(err))
	}

	api := httpapi.New(httpapi.Deps{
		Cache:          a.cache,
		Dispatcher:     a.dispatcher,
		Router:         a.router,
		Templates:      a.templates,
		Logs:           a.backend,
		Metrics:        a.metrics,
		Logger:         logger,
		SortDescending: cfg.Source.SortDescending,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.Handler(cfg.Server.AllowedOrigins),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting orderdesk API", zap.String("addr", cfg.Server.Addr), zap.String("source", cfg.Source.Kind))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err, ok := <-errCh:
		if ok {
			return err
		}
	}
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	logger.Info("server exited")
	return nil
}
