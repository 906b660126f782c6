// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/campavatars/internal/config"
	"github.com/briangreenhill/campavatars/internal/http/routes"
	"github.com/briangreenhill/campavatars/internal/providers"
	"github.com/briangreenhill/campavatars/internal/roster"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	if err := godotenv.Load(".env"); err != nil {
		logger.Debug().Msg("no .env file, using process environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger); err != nil {
		stop()
		logger.Fatal().Err(err).Msg("api stopped")
	}
}

// run serves until ctx is done. Everything it opens is closed before it
// returns.
func run(ctx context.Context, logger zerolog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	logger = logger.Level(cfg.Level())

	target, _ := cfg.Target() // checked by Validate

	ro, err := roster.Load(cfg.RosterPath)
	if err != nil {
		return fmt.Errorf("load roster %s: %w", cfg.RosterPath, err)
	}

	stack, err := providers.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("setup avatar stack: %w", err)
	}
	defer func() {
		if err := stack.Close(); err != nil {
			logger.Error().Err(err).Msg("close avatar store")
		}
	}()

	opts := routes.ServerOptions{
		Roster:        ro,
		NewLoader:     stack.NewLoader,
		Cache:         stack.Cache,
		Target:        target,
		Log:           logger,
		AllowedOrigin: cfg.AllowedOrigin,
	}

	// Queue (optional)
	if cfg.HasRedis() {
		client := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		defer func() { _ = client.Close() }()
		opts.Queue = client
	}

	s := routes.New(opts)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown")
		}
	}()

	logger.Info().
		Str("port", cfg.Port).
		Str("provider", stack.Provider.Name()).
		Str("store", cfg.Store.Backend).
		Int("channels", len(ro.Channels)).
		Msg("starting api")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}
