// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/Shivanand-hulikatti/gift-exchange/internal/archive"
	"github.com/Shivanand-hulikatti/gift-exchange/internal/config"
	"github.com/Shivanand-hulikatti/gift-exchange/internal/database"
	"github.com/Shivanand-hulikatti/gift-exchange/internal/derange"
	"github.com/Shivanand-hulikatti/gift-exchange/internal/handler"
	"github.com/Shivanand-hulikatti/gift-exchange/internal/idgen"
	"github.com/Shivanand-hulikatti/gift-exchange/internal/observability"
	"github.com/Shivanand-hulikatti/gift-exchange/internal/repository"
	"github.com/Shivanand-hulikatti/gift-exchange/internal/service"
	"github.com/Shivanand-hulikatti/gift-exchange/internal/session"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "giftx: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return err
	}

	logger, err := observability.NewLogger(os.Stdout, cfg.Log)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 1. Telemetry ──────────────────────────────────────────────────────
	shutdownTracing, err := observability.SetupTracing(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown failed", slog.String("error", err.Error()))
		}
	}()

	meterProvider, shutdownMetrics, err := observability.SetupMetrics(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := shutdownMetrics(shutdownCtx); err != nil {
			logger.Warn("metrics shutdown failed", slog.String("error", err.Error()))
		}
	}()

	// ── 2. Closed-event archive ───────────────────────────────────────────
	archiver, err := openArchive(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("archive: %w", err)
	}
	defer archiver.Close()

	// ── 3. Wire up layers ────────────────────────────────────────────────
	secret := cfg.Session.Secret
	if secret == "" {
		secret = idgen.NewOrganizerToken()
		logger.Warn("no session secret configured; participant cookies will not survive a restart")
	}
	sessions, err := session.NewManager(session.Config{
		Secret: []byte(secret),
		TTL:    cfg.Session.TTL,
		Secure: cfg.Session.Secure,
	})
	if err != nil {
		return err
	}

	store := repository.NewEventStore(
		repository.WithDeranger(derange.New(derange.WithMaxAttempts(cfg.Draw.MaxAttempts))),
	)
	metrics := observability.NewMetricsRecorder(meterProvider)
	eventSvc := service.NewEventService(store, archiver, metrics, logger)
	eventHandler := handler.NewEventHandler(eventSvc, sessions, cfg.HTTP.PublicURL, logger)

	// ── 4. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      handler.NewRouter(eventHandler, logger, cfg.HTTP.AllowedOrigin),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening", slog.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

// openArchive returns the archiver selected by cfg.Archive.Driver.
func openArchive(ctx context.Context, cfg config.Config, logger *slog.Logger) (archive.Archiver, error) {
	switch cfg.Archive.Driver {
	case config.ArchivePostgres:
		pool, err := database.NewPool(ctx, cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		pg, err := archive.NewPostgres(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		logger.Info("archiving closed events to PostgreSQL")
		return pg, nil
	case config.ArchiveSQLite:
		lite, err := archive.NewSQLite(cfg.Archive.SQLitePath)
		if err != nil {
			return nil, err
		}
		logger.Info("archiving closed events to SQLite", slog.String("path", cfg.Archive.SQLitePath))
		return lite, nil
	default:
		return archive.Noop{}, nil
	}
}
