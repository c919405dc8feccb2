package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/observability"
	"github.com/spec-kit/support-desk/internal/persistence"
	"github.com/spec-kit/support-desk/internal/repository"
	"github.com/spec-kit/support-desk/internal/service"
	"github.com/spec-kit/support-desk/internal/store"
)

// seed writes organizations and accounts from a YAML fixture into the
// configured database. Records that already exist are left untouched.
func main() {
	envFile := pflag.String("env-file", "", "extra env file loaded before .env")
	file := pflag.StringP("file", "f", "seed.yaml", "YAML fixture to apply")
	pflag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger, err := observability.NewLogger(cfg.Logger, zap.String("service", "seed"))
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	data, err := os.ReadFile(*file)
	if err != nil {
		logger.Fatal("read fixture", zap.String("file", *file), zap.Error(err))
	}
	fixture, err := service.ParseSeedFixture(data)
	if err != nil {
		logger.Fatal("parse fixture", zap.Error(err))
	}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()
	if !pg.Enabled() {
		logger.Fatal("POSTGRES_DSN is required; use the api --seed-file flag for in-memory runs")
	}
	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	st := store.New(repository.NewPostgresPersister(pg.PoolHandle()))
	state, err := repository.Load(ctx, pg.PoolHandle())
	if err != nil {
		logger.Fatal("failed to load state", zap.Error(err))
	}
	st.Hydrate(state)

	result, err := service.NewSeeder(service.Dependencies{
		Store:      st,
		Dispatcher: events.NewInMemoryDispatcher(logger),
		Logger:     logger,
		BcryptCost: cfg.Auth.BcryptCost,
	}).Apply(ctx, fixture)
	if err != nil {
		logger.Fatal("seed failed", zap.Error(err))
	}
	logger.Info("seed applied",
		zap.Int("organizations_created", result.OrganizationsCreated),
		zap.Int("users_created", result.UsersCreated),
		zap.Int("users_skipped", result.UsersSkipped))
}
