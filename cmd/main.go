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
	"github.com/joho/godotenv"

	"github.com/okian/gradestats/internal/adapters/http/api"
	"github.com/okian/gradestats/internal/adapters/http/swagger"
	"github.com/okian/gradestats/internal/adapters/mq/broker"
	"github.com/okian/gradestats/internal/adapters/repository"
	service "github.com/okian/gradestats/internal/app"
	"github.com/okian/gradestats/internal/config"
	"github.com/okian/gradestats/pkg/logger"
	"github.com/okian/gradestats/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 10 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	systemMetricsInterval  = 10 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg, os.Getenv(config.EnvFile)); err != nil {
		log.Error(ctx, "server failed", logger.Error(err))
		os.Exit(1)
	}
}

// run serves until ctx is cancelled. configPath is watched when cfg.WatchConfig is set.
func run(ctx context.Context, cfg *config.Config, configPath string) error {
	log := logger.Get()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	if cfg.SeedFile != "" {
		n, err := seedStore(ctx, store, cfg.SeedFile)
		if err != nil {
			_ = store.Close()
			return err
		}
		log.Info(ctx, "seeded store", logger.String("file", cfg.SeedFile), logger.Int("inserted", n))
	}

	svc := service.New(
		service.WithStore(store),
		service.WithLogger(log.Named("service")),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.QueueSize),
		service.WithDedupeSize(cfg.DedupeSize),
		service.WithPolicy(cfg.Policy()),
		service.WithThreshold(cfg.PassThreshold),
		service.WithStrict(cfg.StrictEntries),
	)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	if cfg.AMQPURL != "" {
		consumer := broker.NewConsumer(cfg.AMQPURL, cfg.AMQPQueue, svc)
		if err := consumer.Start(ctx); err != nil {
			return fmt.Errorf("start amqp consumer: %w", err)
		}
		defer func() {
			if err := consumer.Close(); err != nil {
				log.Warn(ctx, "closing amqp consumer failed", logger.Error(err))
			}
		}()
	}

	if cfg.WatchConfig {
		if configPath == "" {
			log.Warn(ctx, "watch_config is set but no config file is in use", logger.String("env", config.EnvFile))
		} else {
			go func() {
				if err := config.Watch(ctx, configPath, reloader(ctx, svc)); err != nil {
					log.Error(ctx, "config watcher stopped", logger.Error(err))
				}
			}()
		}
	}

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newRouter(ctx, svc, cfg),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

// openStore returns the store selected by db_driver.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	if cfg.DBDriver == config.DriverMemory || cfg.DBDriver == "" {
		return repository.NewMemoryStore(), nil
	}
	store, err := repository.OpenSQL(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return store, nil
}

// seedStore inserts the fixture at path. Records already present are skipped.
func seedStore(ctx context.Context, store repository.Store, path string) (int, error) {
	records, err := repository.LoadFixture(path)
	if err != nil {
		return 0, fmt.Errorf("seed: %w", err)
	}
	inserted := 0
	for _, r := range records {
		err := store.Insert(ctx, r)
		switch {
		case err == nil:
			inserted++
		case errors.Is(err, repository.ErrDuplicate):
		default:
			return inserted, fmt.Errorf("seed: %w", err)
		}
	}
	return inserted, nil
}

// newRouter builds the HTTP handler for the business API and its docs.
func newRouter(ctx context.Context, svc api.Dependencies, cfg *config.Config) http.Handler {
	r := chi.NewRouter()
	api.NewServer(svc, api.WithAllowedOrigins(cfg.Origins())).Register(ctx, r)
	swagger.Register(ctx, r)
	return r
}

// reloader applies a reloaded config to the running service.
func reloader(ctx context.Context, svc *service.Service) func(*config.Config) {
	log := logger.Get()
	return func(cfg *config.Config) {
		err := svc.Reconfigure(ctx, service.Settings{
			Policy:    cfg.Policy(),
			Threshold: cfg.PassThreshold,
			Strict:    cfg.StrictEntries,
		})
		if err != nil {
			log.Error(ctx, "reconfigure rejected", logger.Error(err))
		}
		if err := logger.SetLevelString(cfg.LogLevel); err != nil {
			log.Warn(ctx, "invalid log_level in reloaded config", logger.String("log_level", cfg.LogLevel))
		}
	}
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.UpdateSystem()
		}
	}
}

// startServiceMetricsUpdater refreshes queue and store gauges; GetStats records them.
func startServiceMetricsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = svc.GetStats(ctx)
		}
	}
}
