// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/notekeep/internal/api"
	"github.com/starford/notekeep/internal/mcpserver"
	"github.com/starford/notekeep/internal/notestore"
	"github.com/starford/notekeep/internal/sse"
	"github.com/starford/notekeep/internal/storage"
	"github.com/starford/notekeep/internal/watcher"
)

func newApplication(opts []Option, logOut io.Writer) (*application, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if app.logger == nil {
		app.logger = slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
			Level: app.config.App.LogLevel,
		}))
	}
	return app, nil
}

// openStorage opens the configured backend. The FS store is also returned
// when that backend is selected so it can be watched.
func openStorage(cfg StorageConfig) (storage.KV, *storage.FS, error) {
	switch cfg.Backend {
	case BackendSQLite:
		kv, err := storage.OpenSQLite(cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("init storage: %w", err)
		}
		return kv, nil, nil
	case BackendMemory:
		return storage.NewMemory(), nil, nil
	default:
		fsys, err := storage.NewFS(cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("init storage: %w", err)
		}
		return fsys, fsys, nil
	}
}

func openStore(kv storage.KV, logger *slog.Logger, opts ...notestore.Option) (*notestore.Store, error) {
	opts = append([]notestore.Option{notestore.WithLogger(logger)}, opts...)
	store, rep, err := notestore.Open(kv, opts...)
	if err != nil {
		return nil, fmt.Errorf("open notes: %w", err)
	}
	logger.Info("Notes loaded",
		slog.Int("active", len(store.ListActive())),
		slog.Int("completed", len(store.ListCompleted())),
		slog.Bool("seeded", rep.ActiveSeeded))
	if rep.Fallback() {
		logger.Warn("Stored notes were unreadable, defaults in use",
			slog.Bool("active_fallback", rep.ActiveFallback),
			slog.Bool("completed_fallback", rep.CompletedFallback))
	}
	return store, nil
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts, os.Stdout)
	if err != nil {
		return err
	}
	cfg, logger := app.config, app.logger
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("storage_backend", cfg.Storage.Backend),
		slog.String("storage_path", cfg.Storage.Path),
		slog.String("auth_mode", cfg.Auth.Mode),
		slog.String("log_level", cfg.App.LogLevel.String()))

	kv, fsys, err := openStorage(cfg.Storage)
	if err != nil {
		return err
	}
	defer kv.Close()

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	store, err := openStore(kv, logger, notestore.WithListener(broker.PublishChange))
	if err != nil {
		return err
	}

	h := api.NewHandler(store, logger)
	ih := api.NewImageHandler(cfg.Images.Encoder(), cfg.Images.MaxUploadBytes, logger)
	apiRouter := api.NewRouter(h, ih, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Reload on external edits of the list files.
	if fsys != nil && cfg.Watch.Enabled {
		g.Go(func() error {
			if err := watcher.Watch(gCtx, store, fsys, cfg.Watch.Debounce, logger); err != nil {
				logger.Warn("watcher unavailable", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the note tools over stdio. Logs go to stderr because stdout
// carries the protocol.
func RunMCP(_ context.Context, opts ...Option) error {
	app, err := newApplication(opts, os.Stderr)
	if err != nil {
		return err
	}
	cfg, logger := app.config, app.logger

	kv, _, err := openStorage(cfg.Storage)
	if err != nil {
		return err
	}
	defer kv.Close()

	store, err := openStore(kv, logger)
	if err != nil {
		return err
	}

	logger.Info("MCP server starting on stdio", slog.String("storage_backend", cfg.Storage.Backend))
	if err := mcpserver.New(store, cfg.Images.Encoder()).ServeStdio(); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

// Reset removes every stored note from the configured backend.
func Reset(_ context.Context, opts ...Option) error {
	app, err := newApplication(opts, os.Stderr)
	if err != nil {
		return err
	}
	kv, _, err := openStorage(app.config.Storage)
	if err != nil {
		return err
	}
	defer kv.Close()

	store, err := openStore(kv, app.logger)
	if err != nil {
		return err
	}
	if err := store.ClearAll(); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	app.logger.Info("All notes removed", slog.String("storage_backend", app.config.Storage.Backend))
	return nil
}
