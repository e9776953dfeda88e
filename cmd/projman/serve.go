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

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaldarAralay/ProjectManager/internal/httpapi"
	"github.com/KaldarAralay/ProjectManager/internal/telemetry"
	"github.com/KaldarAralay/ProjectManager/internal/watch"
)

var (
	// serve command flags
	serveWatch    bool
	serveDebounce time.Duration
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "watch the scan roots and refresh on change")
	serveCmd.Flags().DurationVar(&serveDebounce, "debounce", watch.DefaultDebounce, "quiet period before a watch-triggered refresh")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the projman HTTP API",
	Long: `Run the projman HTTP API server. With --watch, the scan roots are also
watched for changes and the catalog refreshes automatically.

Examples:
  # Serve on the configured host and port
  projman serve

  # Serve and refresh when roots change
  projman serve --watch`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, err := initApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	tel, err := telemetry.New(ctx, a.cfg.Telemetry, a.logger)
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	engine := a.newEngine()

	server, err := httpapi.NewServer(a.store, engine, a.cfg.Roots, a.logger, &httpapi.Config{
		Host: a.cfg.Server.Host,
		Port: a.cfg.Server.Port,
	})
	if err != nil {
		return fmt.Errorf("building http server: %w", err)
	}

	if serveWatch {
		roots, err := a.effectiveRoots(ctx)
		if err != nil {
			return err
		}
		if len(roots) == 0 {
			return fmt.Errorf("--watch requires at least one scan root")
		}

		watcher, err := watch.New(roots, engine, serveDebounce, a.logger)
		if err != nil {
			return fmt.Errorf("building watcher: %w", err)
		}
		if err := watcher.Start(ctx); err != nil {
			return fmt.Errorf("starting watcher: %w", err)
		}
		defer watcher.Stop()
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case sig := <-sigCh:
		a.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}
