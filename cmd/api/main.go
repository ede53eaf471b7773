package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/supportdesk/internal/ai"
	httptransport "github.com/spec-kit/supportdesk/internal/api/http"
	"github.com/spec-kit/supportdesk/internal/api/http/handlers"
	"github.com/spec-kit/supportdesk/internal/auth"
	"github.com/spec-kit/supportdesk/internal/cache"
	"github.com/spec-kit/supportdesk/internal/config"
	"github.com/spec-kit/supportdesk/internal/events"
	"github.com/spec-kit/supportdesk/internal/mail"
	"github.com/spec-kit/supportdesk/internal/observability"
	"github.com/spec-kit/supportdesk/internal/persistence"
	"github.com/spec-kit/supportdesk/internal/repository"
	"github.com/spec-kit/supportdesk/internal/repository/sqldb"
	"github.com/spec-kit/supportdesk/internal/service"
	"github.com/spec-kit/supportdesk/internal/worker"
)

type stores struct {
	tickets    repository.TicketRepository
	replies    repository.ReplyRepository
	principals repository.PrincipalRepository
	settings   repository.SettingsRepository
	db         handlers.Pinger
	close      func()
}

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

	store, err := openStores(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.String("driver", cfg.Database.Driver), zap.Error(err))
	}
	defer store.close()

	dependencies := map[string]handlers.Pinger{cfg.Database.Driver: store.db}
	var counts cache.TicketCounts = cache.Nop{}
	if cfg.Redis.Enabled {
		redis := persistence.NewRedis(ctx, cfg.Redis, logger)
		defer redis.Close()
		counts = cache.NewRedisTicketCounts(redis.Client, cfg.Cache.TTL())
		dependencies["redis"] = redis
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes, cfg.Auth.NonceTTLMinutes)

	settingsService := service.NewSettingsService(store.settings, logger)
	authService := service.NewAuthService(cfg.Auth, store.principals, tokens, logger)
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo: store.tickets,
		ReplyRepo:  store.replies,
		Logger:     logger,
	})
	lifecycleService := service.NewLifecycleService(service.LifecycleDependencies{
		TicketRepo:    store.tickets,
		ReplyRepo:     store.replies,
		PrincipalRepo: store.principals,
		Dispatcher:    dispatcher,
		Logger:        logger,
	})
	gdprService := service.NewGDPRService(service.GDPRDependencies{
		TicketRepo: store.tickets,
		ReplyRepo:  store.replies,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	teamService := service.NewTeamService(store.principals, store.tickets, counts, logger)
	notificationService := service.NewNotificationService(mail.NewSMTPMailer(cfg.Mail, logger), cfg.App.SiteURL, metrics, logger)
	assistant := service.NewReplyAssistant(store.tickets, store.replies, store.principals,
		ai.NewAdapter(cfg.AI, metrics, logger), logger)

	worker.StartNotificationWorker(dispatcher, notificationService, teamService)

	retention, err := worker.NewRetentionWorker(cfg.Retention.Cron, settingsService, gdprService, logger)
	if err != nil {
		logger.Fatal("failed to configure retention", zap.Error(err))
	}
	stopRetention := retention.Start(ctx)
	defer stopRetention()

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, dependencies),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService, settingsService),
		Lifecycle:      handlers.NewLifecycleHandler(lifecycleService, settingsService),
		Settings:       handlers.NewSettingsHandler(settingsService),
		AI:             handlers.NewAIHandler(assistant, settingsService),
		Team:           handlers.NewTeamHandler(teamService),
		GDPR:           handlers.NewGDPRHandler(gdprService, settingsService),
		Metrics:        metrics,
		AuthMiddleware: auth.NewAuthMiddleware(tokens, store.principals, cfg.Auth.RequireNonce),
	})

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
}

func openStores(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*stores, error) {
	if cfg.Driver == "postgres" {
		pg, err := persistence.NewPostgres(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		if cfg.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.Pool, logger); err != nil {
				pg.Close()
				return nil, err
			}
		}
		return &stores{
			tickets:    repository.NewTicketRepository(pg.Pool),
			replies:    repository.NewReplyRepository(pg.Pool),
			principals: repository.NewPrincipalRepository(pg.Pool),
			settings:   repository.NewSettingsRepository(pg.Pool),
			db:         pg,
			close:      pg.Close,
		}, nil
	}

	db, err := persistence.OpenSQL(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &stores{
		tickets:    sqldb.NewTicketRepository(db.DB),
		replies:    sqldb.NewReplyRepository(db.DB),
		principals: sqldb.NewPrincipalRepository(db.DB),
		settings:   sqldb.NewSettingsRepository(db.DB),
		db:         db,
		close:      db.Close,
	}, nil
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
