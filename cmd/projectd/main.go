package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/appdraft/project-engine/internal/api"
	"github.com/appdraft/project-engine/internal/collab"
	"github.com/appdraft/project-engine/internal/config"
	"github.com/appdraft/project-engine/internal/event"
	"github.com/appdraft/project-engine/internal/health"
	"github.com/appdraft/project-engine/internal/metrics"
	"github.com/appdraft/project-engine/internal/models"
	"github.com/appdraft/project-engine/internal/project"
	"github.com/appdraft/project-engine/internal/retry"
	"github.com/appdraft/project-engine/internal/storage"
)

func main() {
	// Setup structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()

	if os.Getenv("ENVIRONMENT") == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	log.Logger = logger

	// Load config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.ApplyFile(path); err != nil {
			logger.Fatal().Err(err).Str("path", path).Msg("failed to apply config file")
		}
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err == nil {
		zerolog.SetGlobalLevel(level)
	}

	if !cfg.AuthConfigured() && cfg.Environment != "development" {
		logger.Fatal().Msg("API_KEY or JWT_SECRET must be set outside development")
	}

	logger.Info().
		Str("environment", cfg.Environment).
		Str("listen_addr", cfg.ListenAddr).
		Str("storage_backend", cfg.StorageBackend).
		Msg("starting project engine")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	collector := metrics.New()

	// Storage backend. Only sqlite and remote get the retry wrapper.
	retryCfg := retry.Config{
		MaxAttempts: cfg.RetryAttempts,
		BaseDelay:   cfg.RetryBaseDelay,
		MaxDelay:    cfg.RetryMaxDelay,
		Jitter:      true,
	}

	var adapter storage.Adapter
	var sqliteAdapter *storage.SQLiteAdapter
	switch cfg.StorageBackend {
	case "sqlite":
		sqliteAdapter, err = storage.NewSQLiteAdapter(cfg.SQLitePath, logger)
		if err != nil {
			logger.Fatal().Err(err).Str("path", cfg.SQLitePath).Msg("failed to open sqlite storage")
		}
		adapter = storage.NewRetryingAdapter(sqliteAdapter, retryCfg)
		logger.Info().Str("path", cfg.SQLitePath).Msg("SQLite storage initialized")
	case "remote":
		if !cfg.RemoteEnabled() {
			logger.Fatal().Msg("REMOTE_BASE_URL must be set for the remote storage backend")
		}
		adapter = storage.NewRetryingAdapter(
			storage.NewRemoteAdapter(cfg.RemoteBaseURL, cfg.RemoteBucket, logger), retryCfg)
		logger.Info().Str("base_url", cfg.RemoteBaseURL).Str("bucket", cfg.RemoteBucket).Msg("remote storage initialized")
	default:
		adapter = storage.NewMemoryAdapter()
		logger.Info().Msg("in-memory storage initialized")
	}

	// Health checker
	checker := health.NewChecker(logger)
	checker.Register("storage", func(ctx context.Context) health.Status {
		if _, err := adapter.Exists(ctx, "healthz-probe"); err != nil {
			return health.StatusDown
		}
		return health.StatusOK
	})

	// Event bus: count every published event and keep an audit trail.
	bus := event.NewBus(logger)
	unsubscribe := bus.SubscribeFunc(func(ev models.Event) error {
		collector.RecordEvent(string(ev.Type))
		logger.Info().
			Str("event_id", ev.ID).
			Str("type", string(ev.Type)).
			Str("project_id", ev.ProjectID).
			Str("actor", ev.Actor).
			Msg("project event")
		return nil
	})

	// Role policy overlay (optional)
	var policy *collab.Policy
	if cfg.RolePolicyPath != "" {
		policy, err = collab.LoadPolicy(cfg.RolePolicyPath)
		if err != nil {
			logger.Fatal().Err(err).Str("path", cfg.RolePolicyPath).Msg("failed to load role policy")
		}
		logger.Info().Str("path", cfg.RolePolicyPath).Msg("role policy loaded")
	}

	store := project.NewStore(project.Config{CacheSize: cfg.CacheSize}, adapter, bus, policy, logger)

	apiServer := api.NewServer(api.ServerConfig{
		ListenAddr: cfg.ListenAddr,
		AuthConfig: api.AuthConfig{
			APIKey:    cfg.APIKey,
			JWTSecret: cfg.JWTSecret,
		},
		CORSOrigins: cfg.CORSOrigins,
	}, store, checker, collector, logger)

	// WaitGroup for in-flight work
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := apiServer.Start(); err != nil {
			logger.Error().Err(err).Msg("api server error")
		}
	}()

	// Wait for shutdown signal
	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("shutting down gracefully")

	if err := apiServer.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("api server shutdown error")
	}

	store.Close()
	unsubscribe()

	if sqliteAdapter != nil {
		if err := sqliteAdapter.Close(); err != nil {
			logger.Error().Err(err).Msg("sqlite close error")
		}
	}

	// Wait for in-flight work to complete
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info().Msg("all goroutines stopped")
	case <-time.After(15 * time.Second):
		logger.Warn().Msg("forced shutdown after timeout")
	}

	logger.Info().Msg("project engine stopped")
}
