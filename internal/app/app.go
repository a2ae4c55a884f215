package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/chrissnell/moonshade/internal/content"
	"github.com/chrissnell/moonshade/internal/controllers/restserver"
	"github.com/chrissnell/moonshade/internal/log"
	"github.com/chrissnell/moonshade/internal/store"
	"github.com/chrissnell/moonshade/pkg/config"
)

// App represents the main application
type App struct {
	config *config.ConfigData
	logger *zap.SugaredLogger
}

// New creates a new application instance
func New(cfg *config.ConfigData, logger *zap.SugaredLogger) *App {
	return &App{
		config: cfg,
		logger: logger,
	}
}

// Run starts the application and blocks until shutdown
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	st, err := OpenStore(a.config.Storage)
	if err != nil {
		return err
	}
	defer st.Close()

	apiKey := ResolveAPIKey(ctx, a.config.Content.GeminiAPIKey, st)
	cs, err := content.NewService(ctx, apiKey, a.config.Content.Model, st)
	if err != nil {
		return fmt.Errorf("error creating content service: %w", err)
	}

	rest, err := restserver.NewController(ctx, &wg, a.config.Server, a.config.Render, st, cs, log.Named("rest"))
	if err != nil {
		return fmt.Errorf("error creating REST server: %w", err)
	}
	rest.DefaultAPIKey = a.config.Content.GeminiAPIKey
	if err := rest.StartController(); err != nil {
		return err
	}

	a.logger.Infow("Application started successfully", "addr", rest.Server.Addr, "model", cs.UsesModel())

	// Set up signal handling
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	// Wait for shutdown signal
	select {
	case <-sigs:
		log.Info("shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
		log.Info("context cancelled, shutting down...")
	}

	// Cancel context to signal all goroutines to stop
	cancel()

	// Wait for all workers to terminate
	log.Info("waiting for all workers to terminate...")
	wg.Wait()
	log.Info("shutdown complete")

	return nil
}

// OpenStore opens the configured backend, PostgreSQL taking precedence
func OpenStore(sc config.StorageData) (store.Store, error) {
	if sc.Postgres != nil {
		st, err := store.NewPostgresStore(sc.Postgres.ConnectionString)
		if err != nil {
			return nil, fmt.Errorf("error opening PostgreSQL store: %w", err)
		}
		return st, nil
	}

	path := "moonshade.db"
	if sc.SQLite != nil && sc.SQLite.Path != "" {
		path = sc.SQLite.Path
	}
	st, err := store.NewSQLiteStore(path)
	if err != nil {
		return nil, fmt.Errorf("error opening SQLite store: %w", err)
	}
	log.Infof("using SQLite store at %s", path)
	return st, nil
}

// ResolveAPIKey prefers the configured key and falls back to one saved
// through the settings endpoint.
func ResolveAPIKey(ctx context.Context, configured string, st store.Store) string {
	if content.KeyConfigured(configured) {
		return configured
	}

	saved, err := st.Setting(ctx, store.SettingAPIKey)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Warnw("error reading saved API key", "error", err)
		}
		return configured
	}
	return saved
}
