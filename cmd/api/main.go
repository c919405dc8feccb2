package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/support-desk/internal/api/http"
	"github.com/spec-kit/support-desk/internal/api/http/handlers"
	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/observability"
	"github.com/spec-kit/support-desk/internal/persistence"
	"github.com/spec-kit/support-desk/internal/repository"
	"github.com/spec-kit/support-desk/internal/service"
	"github.com/spec-kit/support-desk/internal/store"
	"github.com/spec-kit/support-desk/internal/worker"
)

func main() {
	envFile := pflag.String("env-file", "", "extra env file loaded before .env")
	migrateOnly := pflag.Bool("migrate-only", false, "run migrations and exit")
	seedFile := pflag.String("seed-file", "", "YAML fixture applied at startup")
	pflag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, zap.String("service", cfg.App.Name), zap.String("env", cfg.App.Env))
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

	if cfg.Postgres.RunMigrations || *migrateOnly {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}
	if *migrateOnly {
		return
	}

	var persister store.Persister = store.NopPersister{}
	if pg.Enabled() {
		persister = repository.NewPostgresPersister(pg.PoolHandle())
	}
	st := store.New(persister)
	if pg.Enabled() {
		state, err := repository.Load(ctx, pg.PoolHandle())
		if err != nil {
			logger.Fatal("failed to load state", zap.Error(err))
		}
		st.Hydrate(state)
		logger.Info("state loaded",
			zap.Int("organizations", len(state.Organizations)),
			zap.Int("users", len(state.Users)),
			zap.Int("tickets", len(state.Tickets)))
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)
	deps := service.Dependencies{
		Store:              st,
		Dispatcher:         dispatcher,
		Logger:             logger,
		Metrics:            metrics,
		BcryptCost:         cfg.Auth.BcryptCost,
		DefaultRatePerHour: cfg.Billing.DefaultRatePerHour,
	}

	if *seedFile != "" {
		if err := applySeed(ctx, deps, *seedFile, logger); err != nil {
			logger.Fatal("failed to seed", zap.Error(err))
		}
	}

	service.NewNotificationService(deps, nil).RegisterHandlers()
	if redis.Enabled() {
		worker.NewActivityStreamSink(redis.Client, cfg.Activity.StreamKey, cfg.Activity.StreamMaxLen, logger, metrics).
			Register(dispatcher)
	}

	authService := service.NewAuthService(*cfg, deps)
	userService := service.NewUserService(deps)
	ticketService := service.NewTicketService(deps)
	conversionService := service.NewConversionService(deps)
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), st)

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout(), cfg.App.CORSAllowOrigins)

	routes := httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:           handlers.NewAuthHandler(authService, userService),
		Users:          handlers.NewUsersHandler(userService),
		Organizations:  handlers.NewOrganizationsHandler(service.NewOrganizationService(deps)),
		Tickets:        handlers.NewTicketsHandler(ticketService, conversionService),
		Approvals:      handlers.NewApprovalsHandler(conversionService),
		Billing:        handlers.NewBillingHandler(service.NewInvoiceService(deps), service.NewDashboardService(deps, cfg.Activity.FeedLimit)),
		AuthMiddleware: authMiddleware,
		LoginLimiter:   auth.NewLoginLimiter(cfg.Auth.LoginRatePerMinute, cfg.Auth.LoginBurst),
	}
	if cfg.Metrics.Enabled {
		routes.Metrics = metrics
	}
	httptransport.RegisterRoutes(app, routes)

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()), zap.Bool("durable", pg.Enabled()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}

func applySeed(ctx context.Context, deps service.Dependencies, path string, logger *zap.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	fixture, err := service.ParseSeedFixture(data)
	if err != nil {
		return err
	}
	result, err := service.NewSeeder(deps).Apply(ctx, fixture)
	if err != nil {
		return err
	}
	logger.Info("seed applied",
		zap.Int("organizations_created", result.OrganizationsCreated),
		zap.Int("users_created", result.UsersCreated),
		zap.Int("users_skipped", result.UsersSkipped))
	return nil
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
