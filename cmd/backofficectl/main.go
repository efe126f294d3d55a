package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/odyssey-erp/backoffice/cmd/backofficectl/cli"
	"github.com/odyssey-erp/backoffice/internal/app"
	jobmetrics "github.com/odyssey-erp/backoffice/internal/jobs"
	"github.com/odyssey-erp/backoffice/internal/platform/cache"
	"github.com/odyssey-erp/backoffice/internal/platform/db"
	"github.com/odyssey-erp/backoffice/jobs"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Default().Warn("load .env", slog.Any("error", err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCmd(open).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func open(ctx context.Context) (*cli.Runtime, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := app.NewLogger(cfg).With(slog.String("component", "backofficectl"))

	pool, err := db.New(ctx, cfg.PGDSN, db.WithMaxConns(cfg.PGMaxConns))
	if err != nil {
		return nil, err
	}
	redisClient, err := cache.New(ctx, cfg.RedisAddr, cache.WithPassword(cfg.RedisPassword), cache.WithDB(cfg.RedisDB))
	if err != nil {
		pool.Close()
		return nil, err
	}
	services, err := app.BuildServices(cfg, logger, pool, redisClient)
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, err
	}
	redisOpts := cfg.AsynqRedis()
	client := jobs.NewClient(redisOpts)
	inspector := asynq.NewInspector(redisOpts)
	return &cli.Runtime{
		Numbers:   services.Numbers,
		Sweep:     services.SweepJob(cfg, logger, jobmetrics.NewMetrics(nil)),
		Queue:     client,
		Inspector: inspector,
		Close: func() error {
			pool.Close()
			return errors.Join(client.Close(), inspector.Close(), redisClient.Close())
		},
	}, nil
}
