package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/token-auth-service/internal/api/http"
	"github.com/spec-kit/token-auth-service/internal/api/http/handlers"
	"github.com/spec-kit/token-auth-service/internal/auth"
	"github.com/spec-kit/token-auth-service/internal/config"
	"github.com/spec-kit/token-auth-service/internal/events"
	"github.com/spec-kit/token-auth-service/internal/observability"
	"github.com/spec-kit/token-auth-service/internal/persistence"
	"github.com/spec-kit/token-auth-service/internal/repository"
	"github.com/spec-kit/token-auth-service/internal/service"
	"github.com/spec-kit/token-auth-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App.Name)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics()
	dependencies := map[string]handlers.Pinger{}

	var users repository.UserRepository
	switch cfg.Directory.Backend {
	case config.DirectoryRedis:
		redis := persistence.NewRedis(cfg.Redis, logger)
		defer redis.Close()
		dependencies["redis"] = redis
		users = repository.NewRedisUserRepository(redis.Client)
	default:
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			logger.Fatal("failed to connect postgres", zap.Error(err))
		}
		defer pg.Close()
		dependencies["postgres"] = pg

		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		users = repository.NewUserRepository(pg.PoolHandle())
	}

	if err := service.BootstrapAdmin(ctx, users, cfg.Bootstrap, cfg.Auth.BcryptCost, logger); err != nil {
		logger.Fatal("failed to bootstrap admin", zap.Error(err))
	}

	codec, err := auth.NewTokenCodec([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		logger.Fatal("invalid token configuration", zap.Error(err))
	}
	logger.Info("tokens configured", zap.Duration("validity", cfg.Auth.TokenValidity()))

	dispatcher := events.NewInMemoryDispatcher()
	worker.StartAuditWorker(service.NewAuditService(dispatcher, logger, metrics))

	loginService, err := service.NewLoginService(cfg.Auth, service.LoginDependencies{
		Directory:  users,
		Verifier:   auth.NewBcryptVerifier(),
		Codec:      codec,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	if err != nil {
		logger.Fatal("failed to init login service", zap.Error(err))
	}

	validator := auth.NewTokenValidator(codec, logger, metrics)
	converter := auth.NewRequestAuthenticationConverter(validator, users, cfg.Auth.DependencyTimeout(), logger, metrics)
	authMiddleware := auth.NewAuthMiddleware(converter)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, dependencies, metrics),
		Login:          handlers.NewLoginHandler(loginService),
		Persons:        handlers.NewPersonsHandler(service.NewPersonService(logger)),
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
