// Package bootstrap assembles the infrastructure shared by the api and
// worker binaries: configuration, logging, tracing, metrics and the two
// backing stores. Each binary layers its own services on top.
package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/dmwangi/medsupply/internal/infrastructure/config"
	"github.com/dmwangi/medsupply/internal/infrastructure/observability"
	infraRedis "github.com/dmwangi/medsupply/internal/infrastructure/redis"
	"github.com/dmwangi/medsupply/internal/repository/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// App holds the assembled shared infrastructure.
type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Pool    *pgxpool.Pool
	Redis   *redis.Client
	Metrics *observability.Metrics
}

func New(ctx context.Context, serviceName string, metricsNamespace string) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := observability.InitLogger(cfg.Observability.LogLevel, os.Stdout).With().
		Str("service", serviceName).Logger()
	logger.Info().Str("mpesa_environment", cfg.Mpesa.Environment).Msg("Bootstrapping")

	initTracing(ctx, serviceName, cfg, logger)

	metrics := observability.NewMetrics(metricsNamespace, nil)

	pool, err := postgres.NewPool(ctx, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	redisClient, err := infraRedis.NewClient(ctx, &cfg.Redis)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	logger.Info().Msg("Infrastructure ready")

	return &App{
		Config:  cfg,
		Logger:  logger,
		Pool:    pool,
		Redis:   redisClient,
		Metrics: metrics,
	}, nil
}

// initTracing is best effort: a dead Jaeger endpoint must not keep the
// service from starting.
func initTracing(ctx context.Context, serviceName string, cfg *config.Config, logger zerolog.Logger) {
	if !cfg.Observability.EnableTracing {
		return
	}

	tp, err := observability.InitTracer(serviceName, cfg.Observability.JaegerEndpoint)
	if err != nil {
		logger.Warn().Err(err).Msg("Tracing disabled: exporter init failed")
		return
	}
	go func() {
		<-ctx.Done()
		observability.Shutdown(context.Background(), tp)
	}()
	logger.Info().Msg("Tracing enabled")
}

// Close releases the store connections in reverse order of acquisition.
func (a *App) Close() {
	a.Redis.Close()
	a.Pool.Close()
}
