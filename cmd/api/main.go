package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/starikovprod-pixel/ai-vfx-backend/internal/adapter/repo"
	"github.com/starikovprod-pixel/ai-vfx-backend/internal/domain"
	"github.com/starikovprod-pixel/ai-vfx-backend/internal/generation"
	"github.com/starikovprod-pixel/ai-vfx-backend/internal/http/handlers"
	httpapi "github.com/starikovprod-pixel/ai-vfx-backend/internal/http/httpapi"
	"github.com/starikovprod-pixel/ai-vfx-backend/internal/identity"
	"github.com/starikovprod-pixel/ai-vfx-backend/internal/infra"
	"github.com/starikovprod-pixel/ai-vfx-backend/internal/providers"
	"github.com/starikovprod-pixel/ai-vfx-backend/internal/providers/fal"
	"github.com/starikovprod-pixel/ai-vfx-backend/internal/providers/replicate"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	verifier, err := identity.NewClient(identity.Options{
		BaseURL:        cfg.AuthBaseURL,
		APIKey:         cfg.AuthAPIKey,
		RequestTimeout: cfg.ProviderTimeout,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build identity client")
	}

	registry := providers.Registry{}
	if cfg.ReplicateAPIToken != "" {
		client, err := replicate.NewClient(replicate.Options{
			APIToken:       cfg.ReplicateAPIToken,
			BaseURL:        cfg.ReplicateBaseURL,
			Logger:         &logger,
			RequestTimeout: cfg.ProviderTimeout,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to build replicate client")
		}
		registry[domain.ProviderReplicate] = client
	}
	if cfg.FalAPIKey != "" {
		client, err := fal.NewClient(fal.Options{
			APIKey:         cfg.FalAPIKey,
			BaseURL:        cfg.FalBaseURL,
			QueueBaseURL:   cfg.FalQueueBaseURL,
			Logger:         &logger,
			RequestTimeout: cfg.ProviderTimeout,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to build fal client")
		}
		registry[domain.ProviderFal] = client
	}

	jobs := repo.NewJobRepository(dbpool)
	balances := repo.NewBalanceRepository(dbpool)
	profiles := repo.NewProfileRepository(dbpool)

	service := generation.NewService(generation.Options{
		Jobs:            jobs,
		Ledger:          balances,
		Registry:        registry,
		CreditsEnforced: cfg.CreditsEnforced,
		Logger:          logger,
	})

	app := &handlers.App{
		Service:        service,
		Balances:       balances,
		Jobs:           jobs,
		Profiles:       profiles,
		StorageBaseURL: cfg.StorageBaseURL,
		InputsBucket:   cfg.InputsBucket,
		Logger:         logger,
	}

	router := httpapi.NewRouter(app, httpapi.RouterOptions{
		Verifier:        verifier,
		Logger:          logger,
		AllowedOrigins:  cfg.AllowedOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
