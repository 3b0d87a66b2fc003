package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/Armin-FalDiS/availability-bot/internal/api/http"
	"github.com/Armin-FalDiS/availability-bot/internal/api/http/handlers"
	"github.com/Armin-FalDiS/availability-bot/internal/auth"
	"github.com/Armin-FalDiS/availability-bot/internal/bot"
	"github.com/Armin-FalDiS/availability-bot/internal/cache"
	"github.com/Armin-FalDiS/availability-bot/internal/config"
	"github.com/Armin-FalDiS/availability-bot/internal/observability"
	"github.com/Armin-FalDiS/availability-bot/internal/persistence"
	"github.com/Armin-FalDiS/availability-bot/internal/repository"
	"github.com/Armin-FalDiS/availability-bot/internal/service"
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

	if cfg.Auth.DevMode {
		logger.Warn("development mode: init-data verification disabled (BOT_TOKEN not set)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	availRepo := repository.NewAvailabilityRepository(pool)

	rangeCache := cache.NewAvailabilityCache(redis.Client, cfg.Cache.TTL(), logger)
	userService := service.NewUserService(userRepo)
	availService := service.NewAvailabilityService(userRepo, availRepo, rangeCache, logger)

	metrics := observability.NewMetrics()
	allowlist := auth.NewAllowlist(cfg.Auth.AllowedUserIDs)
	if allowlist.Enabled() {
		logger.Info("allow-list enabled", zap.Int("users", allowlist.Size()))
	}
	authMiddleware := auth.NewMiddleware(cfg.Auth, allowlist, logger, metrics)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Users:          handlers.NewUsersHandler(userService),
		Availability:   handlers.NewAvailabilityHandler(availService),
		AuthMiddleware: authMiddleware,
		Metrics:        metrics,
	})

	launcher, err := bot.New(cfg.Auth.BotToken, cfg.Bot.WebAppURL, allowlist, logger)
	if err != nil {
		logger.Fatal("failed to init launcher bot", zap.Error(err))
	}
	launcher.Start()
	defer launcher.Stop()

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
