// Package main - рабочий процесс движка наград GAMILIT.
//
// Worker применяет награды и обслуживает сопутствующие фоновые задачи:
// - Суточный сброс счётчиков монет и чистка истёкших множителей
// - Периодический пересчёт прогресса достижений
// - Выборочная сверка баланса с журналом транзакций
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/gamilit/rewards-engine/config"
	"github.com/gamilit/rewards-engine/internal/application/eventhandler"
	"github.com/gamilit/rewards-engine/internal/application/query"
	"github.com/gamilit/rewards-engine/internal/application/saga"
	"github.com/gamilit/rewards-engine/internal/domain/shared"
	"github.com/gamilit/rewards-engine/internal/infrastructure/messaging"
	"github.com/gamilit/rewards-engine/internal/infrastructure/persistence/postgres"
	"github.com/gamilit/rewards-engine/internal/infrastructure/persistence/redis"
	"github.com/gamilit/rewards-engine/internal/infrastructure/service"
	"github.com/gamilit/rewards-engine/pkg/keylock"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	// .env отсутствует в production, там окружение задаёт оркестратор.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting GAMILIT rewards worker",
		"env", cfg.App.Environment,
		"debug", cfg.App.Debug,
		"timezone", cfg.App.Timezone,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ПОДКЛЮЧЕНИЕ К БАЗЕ ДАННЫХ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")
	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		dbConn.Close()
	}()

	if err := dbConn.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	log.Info("database connection established")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. МИГРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("checking database migrations...")
	migrator := postgres.NewMigrator(dbConn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("database schema is up to date")

	// ─────────────────────────────────────────────────────────────────────────
	// 5. REDIS (опционально)
	// ─────────────────────────────────────────────────────────────────────────
	var (
		statsCache   *redis.StatsCache
		earnersCache *redis.TopEarnersCache
		pubsub       *redis.PubSub
	)

	if !cfg.Redis.Disabled {
		log.Info("connecting to Redis...")
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

		redisCache, err := redis.NewCache(redisCfg)
		if err != nil {
			log.Warn("failed to connect to Redis, caching disabled", "error", err)
		} else {
			defer redisCache.Close()
			statsCache = redis.NewStatsCache(redisCache)
			earnersCache = redis.NewTopEarnersCache(redisCache)
			pubsub = redis.NewPubSub(redisCache)
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. РЕПОЗИТОРИИ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing repositories...")
	statsRepo := postgres.NewStatsRepository(dbConn)
	ledgerRepo := postgres.NewLedgerRepository(dbConn)
	definitionRepo := postgres.NewAchievementDefinitionRepository(dbConn)
	userAchRepo := postgres.NewUserAchievementRepository(dbConn)
	multiplierRepo := postgres.NewMultiplierRepository(dbConn)
	rankRepo := postgres.NewRankRepository(dbConn)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing event bus...")
	localBusConfig := messaging.DefaultInMemoryEventBusConfig()
	localBusConfig.Logger = log
	localBusConfig.AsyncMode = true

	var eventBus shared.EventBus
	if pubsub != nil {
		redisBus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:         pubsub,
			InstanceID:     uuid.New().String(),
			LocalBusConfig: localBusConfig,
			Logger:         log,
		})
		if err != nil {
			return fmt.Errorf("failed to start event bus: %w", err)
		}
		defer func() { _ = redisBus.Close() }()
		eventBus = redisBus
	} else {
		localBus := messaging.NewInMemoryEventBus(localBusConfig)
		defer func() { _ = localBus.Close() }()
		eventBus = localBus
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. ОБРАБОТЧИКИ СОБЫТИЙ
	// ─────────────────────────────────────────────────────────────────────────
	notifier := service.NewLogNotifier(log)

	rankChanged := eventhandler.NewOnRankChangedHandler(notifier, log)
	achUnlocked := eventhandler.NewOnAchievementUnlockedHandler(notifier, log)

	if err := eventBus.Subscribe(shared.EventRankChanged, rankChanged.Handle); err != nil {
		return fmt.Errorf("failed to subscribe rank handler: %w", err)
	}
	if err := eventBus.Subscribe(shared.EventAchievementUnlocked, achUnlocked.Handle); err != nil {
		return fmt.Errorf("failed to subscribe achievement handler: %w", err)
	}

	if earnersCache != nil && statsCache != nil {
		coinsEarned := eventhandler.NewOnCoinsEarnedHandler(earnersCache, statsCache, log)
		if err := eventBus.Subscribe(shared.EventCoinsEarned, coinsEarned.Handle); err != nil {
			return fmt.Errorf("failed to subscribe coins handler: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 9. ФОНОВЫЕ ЗАДАЧИ
	// ─────────────────────────────────────────────────────────────────────────
	auditor := query.NewAuditBalanceHandler(statsRepo, ledgerRepo, eventBus, log)
	locks := keylock.NewWithShards(cfg.Rewards.KeylockShards)

	maintenance := saga.NewDailyMaintenanceSaga(statsRepo, multiplierRepo, auditor, locks, log)
	detection := saga.NewDetectAchievementsSaga(
		statsRepo, definitionRepo, userAchRepo, rankRepo, locks, eventBus, log,
	)

	var scheduler gocron.Scheduler
	if cfg.Scheduler.Enabled {
		scheduler, err = gocron.NewScheduler(gocron.WithLocation(cfg.App.Location))
		if err != nil {
			return fmt.Errorf("failed to create scheduler: %w", err)
		}

		// Суточное обслуживание сразу после полуночи платформы.
		_, err = scheduler.NewJob(
			gocron.DailyJob(1, gocron.NewAtTimes(
				gocron.NewAtTime(uint(cfg.Scheduler.MaintenanceHour), uint(cfg.Scheduler.MaintenanceMinute), 0),
			)),
			gocron.NewTask(func() {
				jobCtx, jobCancel := context.WithTimeout(ctx, cfg.Scheduler.JobTimeout)
				defer jobCancel()

				result, err := maintenance.Run(jobCtx)
				if err != nil {
					log.Error("daily maintenance failed", "error", err)
					return
				}
				log.Info("daily maintenance completed",
					"counters_reset", result.CountersReset,
					"multipliers_purged", result.MultipliersPurged,
					"users_audited", result.UsersAudited,
					"inconsistencies", result.Inconsistencies,
				)
			}),
		)
		if err != nil {
			return fmt.Errorf("failed to schedule daily maintenance: %w", err)
		}

		// Периодический пересчёт достижений по всем пользователям.
		_, err = scheduler.NewJob(
			gocron.DurationJob(cfg.Scheduler.AchievementSweepInterval),
			gocron.NewTask(func() {
				jobCtx, jobCancel := context.WithTimeout(ctx, cfg.Scheduler.JobTimeout)
				defer jobCancel()

				result, err := detection.Run(jobCtx, saga.DetectAchievementsInput{})
				if err != nil {
					log.Error("achievement sweep failed", "error", err)
					return
				}
				log.Info("achievement sweep completed",
					"users_scanned", result.UsersScanned,
					"users_updated", result.UsersUpdated,
					"unlocked", result.AchievementsUnlocked,
					"duration", result.Duration.String(),
				)
			}),
		)
		if err != nil {
			return fmt.Errorf("failed to schedule achievement sweep: %w", err)
		}

		scheduler.Start()
		log.Info("scheduler started",
			"maintenance_at", fmt.Sprintf("%02d:%02d", cfg.Scheduler.MaintenanceHour, cfg.Scheduler.MaintenanceMinute),
			"sweep_interval", cfg.Scheduler.AchievementSweepInterval.String(),
		)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 10. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("GAMILIT rewards worker is running", "timezone", cfg.App.Timezone)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	sig := <-sigCh
	log.Info("received shutdown signal", "signal", sig.String())
	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())

	if scheduler != nil {
		shutdownCh := make(chan error, 1)
		go func() { shutdownCh <- scheduler.Shutdown() }()

		select {
		case err := <-shutdownCh:
			if err != nil {
				log.Warn("scheduler shutdown error", "error", err)
			}
		case <-time.After(cfg.App.ShutdownTimeout):
			log.Warn("scheduler shutdown timed out")
		}
	}

	log.Info("shutdown completed successfully")
	return nil
}

// setupLogger настраивает структурированное логирование.
func setupLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.Observability.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	if cfg.App.Debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		// JSON формат по умолчанию (лучше для агрегаторов логов)
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)

	return log
}
