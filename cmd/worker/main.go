// Package main - точка входа сервиса синхронизации Codeforces.
//
// Worker отвечает за:
// - Периодическую синхронизацию профилей, контестов и задач студентов
// - Напоминания неактивным студентам по email
// - Административный HTTP API (настройки, статус, ручной запуск)
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tle-eliminators/cf-tracker/config"
	"github.com/tle-eliminators/cf-tracker/internal/application/command"
	"github.com/tle-eliminators/cf-tracker/internal/application/query"
	"github.com/tle-eliminators/cf-tracker/internal/domain/settings"
	"github.com/tle-eliminators/cf-tracker/internal/infrastructure/external/codeforces"
	"github.com/tle-eliminators/cf-tracker/internal/infrastructure/notifier"
	"github.com/tle-eliminators/cf-tracker/internal/infrastructure/persistence/postgres"
	"github.com/tle-eliminators/cf-tracker/internal/infrastructure/persistence/redis"
	"github.com/tle-eliminators/cf-tracker/internal/infrastructure/scheduler"
	"github.com/tle-eliminators/cf-tracker/internal/infrastructure/scheduler/jobs"
	httpapi "github.com/tle-eliminators/cf-tracker/internal/interface/http"
	"github.com/tle-eliminators/cf-tracker/internal/interface/http/handlers"
	"github.com/tle-eliminators/cf-tracker/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	// Корневой контекст отменяется по SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	startedAt := time.Now()

	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log := logger.Setup(logger.Config{
		Level:  cfg.Observability.LogLevel,
		Format: cfg.Observability.LogFormat,
		Attrs: []slog.Attr{
			slog.String("service", cfg.App.Name),
			slog.String("env", string(cfg.App.Environment)),
		},
	})
	log.Info("starting Codeforces sync worker",
		"version", cfg.App.Version,
		"timezone", cfg.App.Timezone,
		"mail_provider", cfg.Mail.Provider,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ПОДКЛЮЧЕНИЕ К POSTGRESQL
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")
	dbCfg := postgres.DefaultConfig(cfg.Database.URL)
	dbCfg.MaxConns = int32(cfg.Database.MaxConns)
	dbCfg.MinConns = int32(cfg.Database.MinConns)
	dbCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	dbCfg.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime

	dbConn, err := postgres.NewConnection(ctx, dbCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		dbConn.Close()
	}()
	log.Info("database connection established")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. МИГРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Database.AutoMigrate {
		log.Info("checking database migrations...")
		applied, err := postgres.NewMigrator(dbConn, log).Migrate(ctx)
		if err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("database schema is up to date", "applied", applied)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. REDIS (опционально: кеш настроек и история циклов)
	// ─────────────────────────────────────────────────────────────────────────
	var cache *redis.Cache
	if !cfg.Redis.Disabled {
		log.Info("connecting to Redis...", "addr", cfg.Redis.Addr())
		cache, err = redis.NewCache(redis.Config{
			Addr:         cfg.Redis.Addr(),
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			log.Warn("failed to connect to Redis, caching disabled", "error", err)
			cache = nil
		} else {
			defer cache.Close()
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. РЕПОЗИТОРИИ
	// ─────────────────────────────────────────────────────────────────────────
	students := postgres.NewStudentRepository(dbConn)
	contests := postgres.NewContestRepository(dbConn)
	problems := postgres.NewProblemRepository(dbConn)

	var settingsStore settings.Store = postgres.NewSettingsStore(dbConn)
	var reportStore *redis.ReportStore[jobs.CycleReport]
	if cache != nil {
		settingsStore = redis.NewCachedSettingsStore(settingsStore, cache, log)
		reportStore = redis.NewReportStore[jobs.CycleReport](cache, "cycle", int64(cfg.Redis.ReportHistory))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. ВНЕШНИЕ КЛИЕНТЫ
	// ─────────────────────────────────────────────────────────────────────────
	cfClient := codeforces.NewClient(codeforces.ClientConfig{
		BaseURL:         cfg.Codeforces.BaseURL,
		CallTimeout:     cfg.Codeforces.CallTimeout,
		SubmissionCount: cfg.Codeforces.SubmissionCount,
		RateLimiterConfig: codeforces.RateLimiterConfig{
			RequestsPerSecond: cfg.Codeforces.RequestsPerSecond,
			BurstSize:         cfg.Codeforces.Burst,
		},
		BreakerFailureThreshold: cfg.Codeforces.BreakerThreshold,
		BreakerCooldown:         cfg.Codeforces.BreakerCooldown,
		Logger:                  log,
	})

	renderer := notifier.Renderer{
		TeamName:      cfg.Mail.TeamName,
		ThresholdDays: cfg.Sync.InactivityThresholdDays,
	}
	var mailer command.Notifier
	switch cfg.Mail.Provider {
	case config.MailProviderSendGrid:
		mailer = notifier.NewSendGridNotifier(notifier.SendGridConfig{
			APIKey:    cfg.Mail.SendGridAPIKey,
			Host:      cfg.Mail.SendGridHost,
			FromName:  cfg.Mail.FromName,
			FromEmail: cfg.Mail.FromEmail,
			Timeout:   cfg.Mail.Timeout,
		}, renderer, log)
	default:
		mailer = notifier.NewLogNotifier(renderer, log)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. ПРИКЛАДНОЙ СЛОЙ
	// ─────────────────────────────────────────────────────────────────────────
	reconciler := command.NewReconciler(students, contests, problems, command.WithReconcilerLogger(log))
	evaluator := command.NewInactivityEvaluator(students, mailer,
		command.WithThresholdDays(cfg.Sync.InactivityThresholdDays),
		command.WithInactivityLogger(log),
	)

	var cycleReports jobs.ReportStore
	if reportStore != nil {
		cycleReports = reportStore
	}
	syncJob := jobs.NewSyncCycleJob(students, cfClient, reconciler, evaluator, cycleReports, log, jobs.SyncCycleConfig{
		Concurrency:   cfg.Sync.Concurrency,
		SoftDeadline:  cfg.Sync.SoftDeadline,
		FetchAttempts: cfg.Sync.FetchAttempts,
		RetryDelay:    cfg.Sync.RetryDelay,
	})

	// ─────────────────────────────────────────────────────────────────────────
	// 9. ПЛАНИРОВЩИК
	// ─────────────────────────────────────────────────────────────────────────
	sched := scheduler.NewSyncScheduler(syncJob, settingsStore, scheduler.SchedulerConfig{
		Logger:   log,
		Location: cfg.App.Location,
	})
	if cfg.Sync.Enabled {
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		status := sched.Status()
		log.Info("scheduler started", "expression", status.Expression, "next_run", status.NextRun)

		if cfg.Sync.RunOnStart {
			if err := sched.Trigger(ctx); err != nil {
				log.Warn("initial sync cycle not started", "error", err)
			}
		}
	} else {
		log.Warn("sync scheduler disabled by configuration")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 10. HTTP API
	// ─────────────────────────────────────────────────────────────────────────
	var server *httpapi.Server
	var serverErr <-chan error
	if cfg.HTTP.Enabled {
		health := handlers.NewCompositeHealthChecker(cfg.App.Version)
		health.AddCheck("postgres", handlers.NewPingCheck(dbConn))
		if cache != nil {
			health.AddOptionalCheck("redis", handlers.NewPingCheck(cache))
		}

		deps := httpapi.Dependencies{
			Settings:       settingsStore,
			UpdateSchedule: command.NewUpdateSyncScheduleHandler(settingsStore, sched),
			SyncStudent:    command.NewSyncStudentHandler(students, cfClient, reconciler),
			ContestHistory: query.NewGetContestHistoryHandler(students, contests),
			ProblemStats:   query.NewGetProblemStatsHandler(students, problems),
			Scheduler:      sched,
			HealthChecker:  health,
			Logger:         log,
		}
		if reportStore != nil {
			deps.Reports = reportStore
		}

		server = httpapi.NewServer(httpapi.Config{
			Host:           cfg.HTTP.Host,
			Port:           cfg.HTTP.Port,
			ReadTimeout:    cfg.HTTP.ReadTimeout,
			WriteTimeout:   cfg.HTTP.WriteTimeout,
			IdleTimeout:    cfg.HTTP.IdleTimeout,
			RequestTimeout: cfg.HTTP.RequestTimeout,
			MaxHeaderBytes: 1 << 20,
		}, deps)
		serverErr = server.StartAsync()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 11. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("worker is running")

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("received shutdown signal")
	case err, ok := <-serverErr:
		if ok && err != nil {
			runErr = err
			log.Error("HTTP server failed", "error", err)
		}
	}

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown failed", "error", err)
		}
	}

	stopped := make(chan error, 1)
	go func() { stopped <- sched.Stop() }()
	select {
	case err := <-stopped:
		if err != nil && !errors.Is(err, scheduler.ErrSchedulerNotRunning) {
			log.Error("scheduler shutdown failed", "error", err)
		}
	case <-shutdownCtx.Done():
		log.Warn("scheduler did not stop in time, abandoning in-flight cycle")
	}

	log.Info("shutdown completed", "uptime", time.Since(startedAt).Round(time.Second).String())
	return runErr
}
