package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"nekoscout/internal/auth"
	"nekoscout/internal/config"
	"nekoscout/internal/database"
	"nekoscout/internal/dispatch"
	"nekoscout/internal/handler"
	"nekoscout/internal/provider"
	"nekoscout/internal/requestlog"
)

const shutdownTimeout = 30 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

// services are the core components shared by the server and the CLI commands.
type services struct {
	registry *provider.Registry
	engine   *dispatch.Engine
	auth     *auth.Manager
}

func newServices(cfg *config.Config) *services {
	registry := provider.NewRegistry(provider.Manifest(provider.APIKeys{
		OpenAI:    cfg.ProviderKeys.OpenAI,
		Google:    cfg.ProviderKeys.Google,
		Anthropic: cfg.ProviderKeys.Anthropic,
		Cohere:    cfg.ProviderKeys.Cohere,
		Groq:      cfg.ProviderKeys.Groq,
	}))

	return &services{
		registry: registry,
		engine:   dispatch.NewEngine(registry, cfg.DefaultProvider),
		auth:     auth.NewManager(auth.NewServerValidator(cfg.Servers, cfg.ValidationTimeout, nil)),
	}
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	svc := newServices(cfg)
	log.Printf("registered providers: count=%d default=%s", svc.registry.Len(), cfg.DefaultProvider)
	for _, s := range cfg.Servers {
		log.Printf("validation server: name=%s url=%s", s.Name, s.BaseURL)
	}

	deps := &handler.Deps{
		Config:     cfg,
		Registry:   svc.registry,
		Engine:     svc.engine,
		Auth:       svc.auth,
		RequestLog: requestlog.NewMemoryStore(),
	}

	if cfg.Database.Enabled() {
		db, err := openAndMigrate(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := db.Close(); err != nil {
				log.Printf("error closing database connection: %v", err)
			}
		}()
		deps.DB = db
		deps.RequestLog = requestlog.NewDatastore(db.DB)
	} else {
		log.Println("DATABASE_URL not set, request log kept in memory")
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler.NewHandler(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("nekoscout server starting on :%s (env: %s)", cfg.Port, cfg.Environment)
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-shutdown:
		log.Printf("received signal %v, initiating graceful shutdown...", sig)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		log.Println("waiting for in-flight requests to complete...")
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("graceful shutdown failed: %v, forcing shutdown", err)
			if err := server.Close(); err != nil {
				return fmt.Errorf("forced shutdown failed: %w", err)
			}
		}

		log.Println("server shutdown complete")
	}

	return nil
}

// openAndMigrate connects to the configured database and applies pending
// migrations.
func openAndMigrate(ctx context.Context, cfg *config.Config) (*database.DB, error) {
	db, err := database.Open(ctx, cfg.Database.URL, poolConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Println("database connection established")

	migrationsPath := getMigrationsPath(cfg)
	if err := db.MigrateUp(migrationsPath); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Printf("error closing database connection: %v", closeErr)
		}
		return nil, err
	}

	state, err := db.MigrationVersion(migrationsPath)
	switch {
	case err != nil:
		log.Printf("WARNING: failed to get migration version: %v", err)
	case state.Dirty:
		log.Printf("WARNING: database is in dirty state at version %d - a previous migration failed and manual intervention is required", state.Version)
	default:
		log.Printf("database migrations complete (%s)", state)
	}

	return db, nil
}

func poolConfig(cfg *config.Config) database.PoolConfig {
	return database.PoolConfig{
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	}
}

// getMigrationsPath returns MIGRATIONS_PATH if set, otherwise looks for a
// migrations directory next to the working directory or the executable.
func getMigrationsPath(cfg *config.Config) string {
	if cfg.Database.MigrationsPath != "" {
		return cfg.Database.MigrationsPath
	}

	if _, err := os.Stat("migrations"); err == nil {
		absPath, _ := filepath.Abs("migrations")
		return absPath
	}

	execPath, err := os.Executable()
	if err == nil {
		migrationsPath := filepath.Join(filepath.Dir(execPath), "migrations")
		if _, err := os.Stat(migrationsPath); err == nil {
			return migrationsPath
		}
	}

	return "/app/migrations"
}
