package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/fieldops/taskboard/internal/api/http"
	"github.com/fieldops/taskboard/internal/api/http/handlers"
	"github.com/fieldops/taskboard/internal/auth"
	"github.com/fieldops/taskboard/internal/cache"
	"github.com/fieldops/taskboard/internal/config"
	"github.com/fieldops/taskboard/internal/events"
	"github.com/fieldops/taskboard/internal/notify"
	"github.com/fieldops/taskboard/internal/observability"
	"github.com/fieldops/taskboard/internal/persistence"
	"github.com/fieldops/taskboard/internal/repository"
	"github.com/fieldops/taskboard/internal/service"
	"github.com/fieldops/taskboard/internal/session"
	"github.com/fieldops/taskboard/internal/suggest"
	"github.com/fieldops/taskboard/internal/visibility"
	"github.com/fieldops/taskboard/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.App, cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	metrics := observability.NewMetrics(strings.ReplaceAll(cfg.App.Name, "-", "_"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	taskRepo := repository.NewTaskRepository(pool)
	historyRepo := repository.NewTaskHistoryRepository(pool)
	activityRepo := repository.NewActivityLogRepository(pool)
	plannerRepo := repository.NewPlannerEventRepository(pool)

	sessions := session.NewRedisStore(redis.Handle(), cfg.App.Name)
	scopeCache := cache.NewRedisScopeCache(redis.Handle(), cfg.App.Name, cfg.Redis.ScopeCacheTTL())
	dispatcher := events.NewInMemoryDispatcher(logger)
	mailer := worker.NewMailQueue(notify.NewMailer(cfg.Notification, logger), cfg.Notification.QueueSize, logger)

	scopeService := service.NewScopeService(userRepo, scopeCache, visibility.DefaultPolicy(), metrics, logger)
	activityService := service.NewActivityService(activityRepo, scopeService, logger)
	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo:     userRepo,
		SessionStore: sessions,
		Activity:     activityService,
	})
	userService := service.NewUserService(userRepo, sessions, scopeService, cfg.Auth.BcryptCost, logger)
	taskService := service.NewTaskService(service.TaskDependencies{
		TaskRepo:    taskRepo,
		HistoryRepo: historyRepo,
		UserRepo:    userRepo,
		Activity:    activityService,
		Scopes:      scopeService,
		Suggester:   suggest.New(cfg.Suggester, logger),
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	plannerService := service.NewPlannerService(plannerRepo, activityService, scopeService, dispatcher)
	reportService := service.NewReportService(taskRepo, scopeService)

	notificationService := service.NewNotificationService(dispatcher, userRepo, mailer, logger)
	var scheduler *worker.ReportScheduler
	if cfg.Reports.Enabled {
		scheduler, err = worker.NewReportScheduler(cfg.Reports.Schedule, cfg.Reports.Window(), userRepo, reportService, mailer, logger)
		if err != nil {
			logger.Fatal("failed to init report scheduler", zap.Error(err))
		}
	}
	background := worker.Start(notificationService, scheduler, mailer, logger)
	defer background.Stop()

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), sessions, userRepo)

	health := handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
		"postgres": pg,
		"redis":    redis,
	})

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterEdgeMiddlewares(app, cfg.App)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:       health,
		Auth:         handlers.NewAuthHandler(authService),
		Users:        handlers.NewUsersHandler(userService),
		Tasks:        handlers.NewTasksHandler(taskService),
		Activity:     handlers.NewActivityHandler(activityService),
		Planner:      handlers.NewPlannerHandler(plannerService),
		Reports:      handlers.NewReportsHandler(reportService),
		Metrics:      metrics,
		Authenticate: authMiddleware.Handle,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
