// Package server provides the public entry point for initializing the
// UM-SAFE chat service.
//
// It composes every component from configuration: the store (PostgreSQL
// when DATABASE_URL is set, a seeded in-memory store otherwise), the
// translation provider chain, the model backend, the persistence sink,
// the incident notifier, and the auth provider chain.
//
// Usage:
//
//	srv, err := server.New(ctx)
//	http.ListenAndServe(":8080", srv.Handler)
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/umsafe/umsafe/internal/api"
	"github.com/umsafe/umsafe/internal/api/handlers"
	"github.com/umsafe/umsafe/internal/auth"
	"github.com/umsafe/umsafe/internal/config"
	"github.com/umsafe/umsafe/internal/llm"
	"github.com/umsafe/umsafe/internal/notify"
	"github.com/umsafe/umsafe/internal/persist"
	"github.com/umsafe/umsafe/internal/retention"
	"github.com/umsafe/umsafe/internal/store"
	"github.com/umsafe/umsafe/internal/telemetry"
	"github.com/umsafe/umsafe/internal/translate"
)

// Server holds the initialized chat service.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	// Store is the backing data store.
	Store store.Store

	// Sink is the background persistence queue; drained on shutdown.
	Sink *persist.Sink

	// Janitor is the transcript retention sweeper, nil when disabled.
	// The caller starts it with Janitor.Start once the service is up.
	Janitor *retention.Janitor

	// Port is the port the server should listen on.
	Port int

	// ShutdownFunc flushes telemetry on graceful shutdown.
	ShutdownFunc func(context.Context) error
}

// New initializes the service from environment configuration.
func New(ctx context.Context) (*Server, error) {
	return NewWithConfig(ctx, config.Load())
}

// NewWithConfig initializes the service with an explicit configuration.
func NewWithConfig(ctx context.Context, cfg *config.Config) (*Server, error) {
	shutdown, err := telemetry.Init(cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	dataStore, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	translator := translate.NewTranslator(
		translate.BuildProviders(cfg.Translate),
		translate.NewMemoryCache(cfg.Translate.CacheSize),
	)
	log.Info().Strs("providers", translator.Providers()).Msg("translation chain initialized")

	backend := llm.NewOpenAICompat(cfg.Model)
	log.Info().Str("kind", cfg.Model.Kind).Str("model", cfg.Model.Model).Msg("model backend initialized")

	sink := persist.NewSink(dataStore, 0)
	notifier := notify.NewNotifier(cfg.Alerts)
	if notifier.Enabled() {
		log.Info().Msg("incident alert webhook enabled")
	}

	chain := auth.NewProviderChain()
	chain.RegisterProvider(auth.NewIdentityProvider(cfg.Auth))
	chain.RegisterProvider(auth.NewAPIKeyProvider(cfg.Auth.APIKeys))

	h := handlers.New(dataStore, translator, backend, sink, notifier, cfg.Version)
	router := api.NewRouter(h, chain)

	var janitor *retention.Janitor
	if cfg.Retention.Enabled {
		janitor = retention.NewJanitor(dataStore, cfg.Retention.Interval, cfg.Retention.MessageDays)
		if cfg.Retention.ArchivePath != "" {
			janitor.SetArchiver(retention.NewLocalFileArchiver(cfg.Retention.ArchivePath, cfg.Retention.CompressArchives))
		}
	}

	return &Server{
		Handler:      router,
		Store:        dataStore,
		Sink:         sink,
		Janitor:      janitor,
		Port:         cfg.Port,
		ShutdownFunc: shutdown,
	}, nil
}

// buildStore opens PostgreSQL when a DSN is configured, otherwise falls
// back to a seeded in-memory store for zero-config development.
func buildStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.Database.URL == "" {
		log.Info().Msg("no DATABASE_URL set, using seeded in-memory store")
		return store.NewSeededMemoryStore(), nil
	}

	pg, err := store.OpenPostgres(cfg.Database.URL, cfg.Database.MaxConnections)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := pg.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}
	log.Info().Msg("postgres store initialized")
	return pg, nil
}
