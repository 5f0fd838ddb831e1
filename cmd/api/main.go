package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/quickqueue/helpdesk/internal/api/http"
	"github.com/quickqueue/helpdesk/internal/api/http/handlers"
	"github.com/quickqueue/helpdesk/internal/auth"
	"github.com/quickqueue/helpdesk/internal/config"
	"github.com/quickqueue/helpdesk/internal/events"
	"github.com/quickqueue/helpdesk/internal/observability"
	"github.com/quickqueue/helpdesk/internal/persistence"
	"github.com/quickqueue/helpdesk/internal/rbac"
	"github.com/quickqueue/helpdesk/internal/repository"
	"github.com/quickqueue/helpdesk/internal/service"
	"github.com/quickqueue/helpdesk/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if _, err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	var (
		ticketRepo  repository.TicketRepository
		commentRepo repository.CommentRepository
		userRepo    repository.UserRepository
	)
	if pool := pg.PoolHandle(); pool != nil {
		ticketRepo = repository.NewTicketRepository(pool)
		commentRepo = repository.NewCommentRepository(pool)
		userRepo = repository.NewUserRepository(pool)
	} else {
		ticketStore := repository.NewMemoryTicketStore()
		ticketRepo = ticketStore
		commentRepo = ticketStore.Comments()
		userRepo = repository.NewMemoryUserStore()
	}

	engine := rbac.NewEngine(cfg.Policy.TicketSelfDelete)
	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()

	authService := service.NewAuthService(*cfg, userRepo, engine)
	if err := authService.SeedAccounts(ctx, logger); err != nil {
		logger.Fatal("failed to seed accounts", zap.Error(err))
	}

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  ticketRepo,
		CommentRepo: commentRepo,
		Engine:      engine,
		Dispatcher:  dispatcher,
	})

	reportService := service.NewReportService(ticketRepo, engine, redis.ClientHandle(), cfg.Policy.SummaryCacheTTL(), logger)
	reportService.RegisterInvalidation(dispatcher)

	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService)

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), userRepo)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(pg, redis),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Users:          handlers.NewUsersHandler(authService),
		Reports:        handlers.NewReportsHandler(reportService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
