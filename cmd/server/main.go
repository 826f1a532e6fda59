package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"aquaflow/internal/api"
	"aquaflow/internal/config"
	"aquaflow/internal/database"
	"aquaflow/internal/domain"
	"aquaflow/internal/google"
	"aquaflow/internal/lock"
	"aquaflow/internal/logging"
	"aquaflow/internal/metrics"
	"aquaflow/internal/postgres"
	"aquaflow/internal/repository"
	"aquaflow/internal/store"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	book, cleanup, err := openWorkbook(ctx, cfg, &logger)
	if err != nil {
		return err
	}
	defer cleanup()

	locker, err := initLock(cfg, redisClient, &logger)
	if err != nil {
		return err
	}

	st := store.New(book, locker, cfg.Store.LockWait, logging.Component(&logger, "store"))
	cache := initCache(cfg, redisClient, &logger)
	httpServer := api.NewHTTPServer(cfg.API, st, cache, &logger)

	startMetrics(ctx, cfg, &logger)

	return serve(ctx, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "server-main").Logger()

	return cfg, logger, closer, nil
}

// openWorkbook selects the table backend. The returned cleanup releases it.
func openWorkbook(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (store.Workbook, func(), error) {
	switch cfg.Store.Backend {
	case config.BackendSQLite:
		db, err := database.NewDB(cfg.Database.Path, logger)
		if err != nil {
			logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
			return nil, nil, err
		}
		backup := database.NewBackupService(db, cfg.Backup, logger)
		go backup.Start(ctx)
		logger.Info().Str("db_path", cfg.Database.Path).Msg("sqlite backend ready")
		return db.Workbook(), func() { _ = db.Close() }, nil

	case config.BackendSheets:
		wb, err := google.NewWorkbook(ctx, cfg.Google.CredentialsFile, cfg.Google.SpreadsheetID, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("init google sheets: %w", err)
		}
		if err := wb.TestConnection(ctx); err != nil {
			if email, emailErr := google.ServiceAccountEmail(cfg.Google.CredentialsFile); emailErr == nil {
				logger.Error().Str("service_account", email).Msg("share the spreadsheet with this account")
			}
			return nil, nil, fmt.Errorf("google sheets connection: %w", err)
		}
		logger.Info().Str("spreadsheet_id", cfg.Google.SpreadsheetID).Msg("google sheets backend ready")
		return wb, func() {}, nil

	case config.BackendPostgres:
		wb, err := postgres.NewWorkbook(ctx, cfg.Postgres.DSN())
		if err != nil {
			return nil, nil, fmt.Errorf("init postgres: %w", err)
		}
		logger.Info().Msg("postgres backend ready")
		return wb, wb.Close, nil

	default:
		logger.Warn().Msg("memory backend: data is lost on restart")
		return store.NewMemoryWorkbook(), func() {}, nil
	}
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		if cfg.Lock.Backend == config.LockRedis {
			// The lock cannot fall back; keep the client so Acquire reports the outage.
			logger.Error().Err(err).Msg("redis connection failed, writes will time out until it recovers")
			return redisClient
		}
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = redisClient.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

func initLock(cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) (lock.Locker, error) {
	if cfg.Lock.Backend != config.LockRedis {
		return lock.NewMemory(), nil
	}
	if redisClient == nil {
		return nil, errors.New("redis lock requested but redis is not configured")
	}
	return lock.NewRedis(redisClient, cfg.Lock.Key, cfg.Lock.TTL, logging.Component(logger, "lock")), nil
}

// initCache fronts the bulk read. Redis is preferred with the in-process
// cache taking over while it is down.
func initCache(cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) domain.SnapshotCache {
	memory := repository.NewMemorySnapshotRepository(cfg.Store.SnapshotTTL)
	if redisClient == nil {
		return memory
	}
	primary := repository.NewRedisSnapshotRepository(redisClient, repository.DefaultSnapshotKey, cfg.Store.SnapshotTTL)
	return repository.NewFailoverSnapshotRepository(primary, memory, logger)
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func serve(ctx context.Context, httpServer *api.HTTPServer, cfg *config.Config, logger *zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil {
			errCh <- err
		}
	}()

	logger.Info().
		Int("http_port", cfg.API.HTTP.Port).
		Str("backend", cfg.Store.Backend).
		Str("lock", cfg.Lock.Backend).
		Msg("store server started")

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		logger.Error().Err(err).Msg("http server stopped")
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.API.HTTP.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}

	logger.Info().Msg("store server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
