// Package main - точка входа API сервера Ninja Dashboard.
//
// Сервер отвечает за:
// - Таблицу учебной программы и живые границы для формы администратора
// - Карточки ниндзя и кнопку "Lesson Up"
// - Историю прогресса и её исправление
//
// Без DB_URL в режиме development данные живут в памяти процесса.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dojo-hub/ninja-dashboard/config"
	"github.com/dojo-hub/ninja-dashboard/internal/application/command"
	"github.com/dojo-hub/ninja-dashboard/internal/application/query"
	"github.com/dojo-hub/ninja-dashboard/internal/domain/ninja"
	"github.com/dojo-hub/ninja-dashboard/internal/infrastructure/curriculumfile"
	"github.com/dojo-hub/ninja-dashboard/internal/infrastructure/messaging"
	"github.com/dojo-hub/ninja-dashboard/internal/infrastructure/metrics"
	"github.com/dojo-hub/ninja-dashboard/internal/infrastructure/persistence/memory"
	"github.com/dojo-hub/ninja-dashboard/internal/infrastructure/persistence/postgres"
	"github.com/dojo-hub/ninja-dashboard/internal/infrastructure/persistence/redis"
	httpapi "github.com/dojo-hub/ninja-dashboard/internal/interface/http"
	"github.com/dojo-hub/ninja-dashboard/internal/interface/http/handlers"
	"github.com/dojo-hub/ninja-dashboard/pkg/logger"
	"github.com/dojo-hub/ninja-dashboard/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

// storage - выбранные реализации хранилища.
type storage struct {
	ninjas  ninja.Repository
	history ninja.HistoryRepository
	cache   ninja.Cache
	health  *handlers.CompositeHealthChecker

	// pubsub - nil, если Redis отключён.
	pubsub redis.ChannelPublisher

	closers []func()
}

func (s *storage) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. КОНФИГУРАЦИЯ И ЛОГИРОВАНИЕ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg)
	defer func() { _ = log.Sync() }()

	log.Info("starting ninja dashboard",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.Any("features", cfg.Features.Snapshot()),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. УЧЕБНАЯ ПРОГРАММА
	// ─────────────────────────────────────────────────────────────────────────
	curriculum, err := curriculumfile.Load(cfg.Curriculum.File)
	if err != nil {
		return fmt.Errorf("failed to load curriculum: %w", err)
	}
	if cfg.Curriculum.File != "" {
		log.Info("curriculum overrides applied", logger.String("file", cfg.Curriculum.File))
	}

	recorder := metrics.NewRecorder()

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ХРАНИЛИЩЕ (PostgreSQL + Redis или память)
	// ─────────────────────────────────────────────────────────────────────────
	store, err := setupStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.close()

	// ─────────────────────────────────────────────────────────────────────────
	// 4. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	busCfg := messaging.DefaultInMemoryEventBusConfig()
	busCfg.Logger = log
	busCfg.Observer = recorder
	bus := messaging.NewInMemoryEventBus(busCfg)
	defer func() {
		log.Info("closing event bus")
		_ = bus.Close()
	}()

	if store.pubsub != nil {
		forwarder := redis.NewProgressPublisher(store.pubsub, redis.ProgressPublisherConfig{
			Channel: cfg.Redis.ProgressChannel,
			Enabled: func() bool { return cfg.Features.IsEnabled(config.FeatureProgressPubSub) },
			Logger:  log,
		})
		if err := forwarder.Register(bus); err != nil {
			return fmt.Errorf("failed to register progress publisher: %w", err)
		}
		log.Info("progress events forwarded", logger.String("channel", forwarder.Channel()))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ОБРАБОТЧИКИ КОМАНД И ЗАПРОСОВ
	// ─────────────────────────────────────────────────────────────────────────
	cmdOpts := command.Options{Curriculum: curriculum, Observer: recorder, Logger: log}
	queryOpts := query.Options{Curriculum: curriculum, Observer: recorder, Logger: log}

	deps := httpapi.Dependencies{
		CreateNinja:        command.NewCreateNinjaHandler(store.ninjas, bus, &cfg.Features, cmdOpts),
		UpdateProgression:  command.NewUpdateProgressionHandler(store.ninjas, store.cache, bus, cmdOpts),
		LessonUp:           command.NewLessonUpHandler(store.ninjas, store.cache, ninja.NoReward{}, bus, cmdOpts),
		CorrectProgress:    command.NewCorrectProgressHandler(store.history, bus, cmdOpts),
		GetBounds:          query.NewGetBoundsHandler(queryOpts),
		GetCurriculum:      query.NewGetCurriculumHandler(queryOpts),
		GetNinja:           query.NewGetNinjaHandler(store.ninjas, store.cache, cfg.Redis.NinjaTTL, queryOpts),
		GetProgressHistory: query.NewGetProgressHistoryHandler(store.ninjas, store.history),
		PreviewAdvance:     query.NewPreviewAdvanceHandler(queryOpts),
		RequestObserver:    recorder,
		HealthChecker:      store.health,
		AdminAuth:          handlers.NewAPIKeyAuth("X-API-Key", cfg.HTTP.AdminKeyHash),
		Logger:             log,
	}
	if cfg.Observability.MetricsEnabled {
		deps.MetricsHandler = recorder.Handler()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. HTTP СЕРВЕР
	// ─────────────────────────────────────────────────────────────────────────
	serverCfg := httpapi.DefaultConfig()
	serverCfg.Host = cfg.HTTP.Host
	serverCfg.Port = cfg.HTTP.Port
	serverCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	serverCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	serverCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	serverCfg.AllowedOrigins = cfg.HTTP.CORSOrigins
	serverCfg.Version = cfg.App.Version

	server := httpapi.NewServer(serverCfg, deps)
	errCh := server.StartAsync()

	// ─────────────────────────────────────────────────────────────────────────
	// 7. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		log.Info("received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	for err := range errCh {
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// setupLogger настраивает структурированное логирование.
func setupLogger(cfg *config.Config) *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	if cfg.App.Debug {
		opts.Level = logger.LevelDebug
	}
	if cfg.Observability.LogFormat == "console" {
		opts.Format = logger.FormatConsole
	}
	return logger.New(opts).With(logger.String("app", cfg.App.Name))
}

// setupStorage подключает PostgreSQL и Redis. Обе зависимости могут ещё
// подниматься, поэтому подключение повторяется через retry.StartupRetrier.
func setupStorage(ctx context.Context, cfg *config.Config, log *logger.Logger) (*storage, error) {
	s := &storage{health: handlers.NewCompositeHealthChecker(cfg.App.Version)}
	s.health.SetTimeout(cfg.HTTP.HealthCheckTimeout)

	onRetry := func(what string) retry.Option {
		return retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			log.Warn("dependency not ready, retrying",
				logger.String("dependency", what),
				logger.Int("attempt", attempt),
				logger.Duration("delay", delay),
				logger.Err(err),
			)
		})
	}

	// PostgreSQL
	if dsn := cfg.Database.DSN(); dsn != "" {
		pgCfg := postgres.DefaultConfig()
		pgCfg.URL = dsn
		pgCfg.MaxConns = int32(cfg.Database.MaxOpenConns)
		pgCfg.MinConns = int32(cfg.Database.MaxIdleConns)
		pgCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
		pgCfg.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime

		var conn *postgres.Connection
		err := retry.StartupRetrier(onRetry("postgres")).Do(ctx, func(ctx context.Context) error {
			var err error
			conn, err = postgres.NewConnection(ctx, pgCfg)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		s.closers = append(s.closers, conn.Close)
		log.Info("database connection established")

		if cfg.Database.AutoMigrate {
			applied, err := postgres.NewMigrator(conn).Migrate(ctx)
			if err != nil {
				s.close()
				return nil, fmt.Errorf("failed to run migrations: %w", err)
			}
			log.Info("database schema is up to date", logger.Int("applied", applied))
		}

		s.ninjas = postgres.NewNinjaRepository(conn)
		s.history = postgres.NewHistoryRepository(conn)
		s.health.AddCheck("postgres", handlers.NewPingCheck(conn))
	} else {
		log.Warn("DB_URL not set, using in-memory storage")
		mem := memory.NewStore()
		s.ninjas = mem.Ninjas()
		s.history = mem.History()
	}

	// Redis
	if cfg.Redis.Disabled {
		log.Warn("redis disabled, using in-memory ninja cache")
		s.cache = memory.NewCache()
		return s, nil
	}

	redisCfg := redis.DefaultConfig()
	redisCfg.Host = cfg.Redis.Host
	redisCfg.Port = cfg.Redis.Port
	redisCfg.Password = cfg.Redis.Password
	redisCfg.DB = cfg.Redis.DB
	redisCfg.PoolSize = cfg.Redis.PoolSize
	redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
	redisCfg.DialTimeout = cfg.Redis.DialTimeout
	redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
	redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

	var cache *redis.Cache
	err := retry.StartupRetrier(onRetry("redis")).Do(ctx, func(ctx context.Context) error {
		var err error
		cache, err = redis.NewCache(ctx, redisCfg)
		return err
	})
	if err != nil {
		if !cfg.IsDevelopment() || errors.Is(err, context.Canceled) {
			s.close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		log.Warn("redis unavailable, using in-memory ninja cache", logger.Err(err))
		s.cache = memory.NewCache()
		return s, nil
	}

	s.closers = append(s.closers, func() { _ = cache.Close() })
	s.cache = redis.NewNinjaCache(cache)
	s.pubsub = cache
	s.health.AddCheck("redis", handlers.NewPingCheck(cache))
	log.Info("redis connection established", logger.String("addr", redisCfg.Addr()))

	return s, nil
}
