package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/starikovprod-pixel/ai-vfx-backend/internal/infra"
	"github.com/starikovprod-pixel/ai-vfx-backend/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	if cfg.StorageBaseURL == "" {
		logger.Fatal().Msg("sweeper: STORAGE_BASE_URL is required")
	}
	if cfg.StorageServiceKey == "" {
		logger.Fatal().Msg("sweeper: STORAGE_SERVICE_KEY is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := storage.NewStoreClient(cfg.StorageBaseURL, cfg.StorageServiceKey, nil)
	sweeper := storage.NewSweeper(store, cfg.InputsBucket, cfg.InputsTTL, logger)

	logger.Info().
		Str("bucket", cfg.InputsBucket).
		Dur("ttl", cfg.InputsTTL).
		Dur("interval", cfg.SweeperInterval).
		Msg("sweeper: started")

	ticker := time.NewTicker(cfg.SweeperInterval)
	defer ticker.Stop()

	// First pass immediately, then on the interval.
	runSweep(ctx, sweeper, logger)
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("sweeper: stopped")
			return
		case <-ticker.C:
			runSweep(ctx, sweeper, logger)
		}
	}
}

func runSweep(ctx context.Context, sweeper *storage.Sweeper, logger infra.Logger) {
	if _, err := sweeper.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("sweeper: sweep failed")
	}
}
