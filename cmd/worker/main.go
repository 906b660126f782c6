package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/campavatars/internal/config"
	"github.com/briangreenhill/campavatars/internal/jobs"
	"github.com/briangreenhill/campavatars/internal/providers"
)

var errNoRedis = errors.New("worker requires REDIS_ADDR")

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("component", "worker").Logger()

	if err := godotenv.Load(".env"); err != nil {
		logger.Debug().Msg("no .env file, using process environment")
	}

	if err := run(context.Background(), logger); err != nil {
		logger.Fatal().Err(err).Msg("worker stopped")
	}
}

// run processes tasks until the asynq server is signalled to stop
func run(ctx context.Context, logger zerolog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if !cfg.HasRedis() {
		return errNoRedis
	}
	logger = logger.Level(cfg.Level())

	stack, err := providers.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("setup avatar stack: %w", err)
	}
	defer func() { _ = stack.Close() }()

	// each task already bounds its own fetches; run them one at a time
	srv := asynq.NewServer(asynq.RedisClientOpt{Addr: cfg.RedisAddr}, asynq.Config{
		Concurrency: 1,
		Queues: map[string]int{
			"default": 1,
		},
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(jobs.TaskWarmAvatars, jobs.HandleWarmAvatars(stack.NewLoader, logger))

	logger.Info().Str("provider", stack.Provider.Name()).Msg("worker running")
	return srv.Run(mux)
}
