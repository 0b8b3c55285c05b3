package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kamilgrz/cs2-tracker/internal/config"
	"github.com/kamilgrz/cs2-tracker/internal/services"
	"github.com/kamilgrz/cs2-tracker/internal/workers"
	"github.com/kamilgrz/cs2-tracker/pkg/crypto"
	"github.com/kamilgrz/cs2-tracker/pkg/database"
	"github.com/kamilgrz/cs2-tracker/pkg/pricing"
	"github.com/kamilgrz/cs2-tracker/pkg/steamapi"
)

func main() {
	// Setup logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log.Info().Str("environment", cfg.Environment).Msg("Starting CS2 Tracker Workers")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to database
	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	// Create Steam Web API client (inventory fetches)
	steamClient := steamapi.NewClient(cfg.SteamAPIKeys, cfg.RedisURL, cfg.SteamRateLimit)

	// Create services
	keybox, err := crypto.NewKeybox(cfg.EncryptionKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid encryption key")
	}
	keyManager := services.NewKeyManager(db, keybox)
	keyManager.StartAutoRefresh(ctx)
	steamClient.SetKeySource(keyManager.GetNextKey, keyManager.DisableKey)

	settingsService := services.NewSettingsService(db)
	alertService := services.NewAlertService(db)
	priceService := services.NewPriceService(db)
	profileService := services.NewProfileService(db, steamClient)
	notifier := services.NewNotifier(cfg, settingsService)

	// Price source client (Steam market + fallback API)
	priceClient := pricing.NewClient(cfg.PriceAPIURL, cfg.PriceAPIKey)

	// Create workers
	pricePoller := workers.NewPricePoller(priceClient, priceService, alertService, cfg)
	inventorySync := workers.NewInventorySync(profileService, cfg)
	dispatcher := workers.NewDispatcher(alertService, notifier, cfg)

	// Start workers in goroutines
	go pricePoller.Start(ctx)
	go inventorySync.Start(ctx)
	go dispatcher.Start(ctx)

	// Live market feed is optional; polling covers tracked names without it.
	if cfg.MarketFeedURL != "" {
		feed := services.NewMarketFeedService(cfg, priceService, alertService)
		go feed.Start(ctx)
	}

	log.Info().Msg("All workers started")

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("Shutdown signal received, stopping workers...")
	cancel()

	log.Info().Msg("Workers stopped")
}
