package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kamilgrz/cs2-tracker/internal/config"
	"github.com/kamilgrz/cs2-tracker/internal/handlers"
	"github.com/kamilgrz/cs2-tracker/internal/services"
	"github.com/kamilgrz/cs2-tracker/pkg/crypto"
	"github.com/kamilgrz/cs2-tracker/pkg/database"
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

	log.Info().Str("environment", cfg.Environment).Msg("Starting CS2 Tracker API")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to database
	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	// Run migrations
	log.Info().Msg("Running database migrations...")
	if err := db.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}
	log.Info().Msg("Migrations completed successfully")

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// CORS
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-CSRF-Token, X-Bot-Token")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Initialize services
	keybox, err := crypto.NewKeybox(cfg.EncryptionKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid encryption key")
	}
	keyManager := services.NewKeyManager(db, keybox)
	settingsService := services.NewSettingsService(db)
	seedSettings(ctx, settingsService, cfg)

	steamClient := steamapi.NewClient(cfg.SteamAPIKeys, cfg.RedisURL, cfg.SteamRateLimit)
	steamClient.SetKeySource(keyManager.GetNextKey, keyManager.DisableKey)

	alertService := services.NewAlertService(db)
	priceService := services.NewPriceService(db)
	profileService := services.NewProfileService(db, steamClient)
	chartService := services.NewChartService()

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(db, cfg)
	profileHandler := handlers.NewProfileHandler(profileService, keyManager, priceService)
	priceHandler := handlers.NewPriceHandler(priceService, chartService)
	alertHandler := handlers.NewAlertHandler(alertService)
	settingsHandler := handlers.NewSettingsHandler(settingsService)
	botHandler := handlers.NewBotInternalHandler(db, alertService, priceService, chartService)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public Routes
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)
		r.Get("/auth/discord/login", authHandler.DiscordOAuthLogin)
		r.Get("/auth/discord/callback", authHandler.DiscordOAuthCallback)

		// Prices (Public Read)
		r.Get("/prices/history", priceHandler.GetHistory)
		r.Get("/prices/candles", priceHandler.GetCandles)
		r.Get("/prices/latest", priceHandler.GetLatest)
		r.Get("/prices/chart", priceHandler.GetChart)

		// Protected Routes
		r.Group(func(r chi.Router) {
			r.Use(handlers.AuthMiddleware)

			// Auth
			r.Get("/auth/me", authHandler.GetMe)
			r.Put("/auth/preferences", authHandler.UpdatePreferences)

			// Steam profiles & inventory
			r.Get("/profiles", profileHandler.ListProfiles)
			r.Post("/profiles", profileHandler.LinkProfile)
			r.Delete("/profiles/{id}", profileHandler.DeleteProfile)
			r.Post("/profiles/{id}/primary", profileHandler.SetPrimaryProfile)
			r.Post("/profiles/{id}/sync", profileHandler.SyncProfile)
			r.Get("/profiles/{id}/inventory", profileHandler.GetInventory)
			r.Put("/items/{id}/purchase-price", profileHandler.SetPurchasePrice)

			// User Steam API key
			r.Put("/user/steam-key", profileHandler.StoreSteamKey)
			r.Delete("/user/steam-key", profileHandler.DeleteSteamKey)

			// Alerts
			r.Get("/alerts", alertHandler.ListAlerts)
			r.Post("/alerts", alertHandler.CreateAlert)
			r.Get("/alerts/{id}", alertHandler.GetAlert)
			r.Put("/alerts/{id}", alertHandler.UpdateAlert)
			r.Delete("/alerts/{id}", alertHandler.DeleteAlert)
			r.Post("/alerts/{id}/toggle", alertHandler.ToggleAlert)
			r.Get("/alerts/{id}/notifications", alertHandler.ListAlertNotifications)
			r.Get("/notifications", alertHandler.ListNotifications)

			// User Settings
			r.Get("/user/settings", settingsHandler.GetUserSettings)
			r.Put("/user/settings", settingsHandler.UpdateUserSetting)

			// Settings (Admin/System - could be further restricted later)
			r.Route("/settings", func(r chi.Router) {
				r.Get("/", settingsHandler.GetSettings)
				r.Put("/", settingsHandler.UpdateSetting)
			})
		})
	})

	// Internal bot API (shared-secret auth, separate from versioned API)
	r.Route("/api/internal", func(r chi.Router) {
		r.Use(handlers.BotTokenMiddleware(cfg.BotAPIToken))

		r.Get("/users/{discord_id}/alerts", botHandler.GetUserAlerts)
		r.Post("/users/{discord_id}/alerts", botHandler.CreateUserAlert)
		r.Delete("/users/{discord_id}/alerts/{id}", botHandler.DeleteUserAlert)
		r.Get("/prices/latest", botHandler.GetLatestPrice)
		r.Get("/prices/chart", botHandler.GetPriceChart)
	})

	// Start server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info().Msg("Shutting down server...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server shutdown error")
		}
		cancel()
	}()

	log.Info().Str("port", cfg.Port).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("Server error")
	}

	log.Info().Msg("Server stopped")
}

func seedSettings(ctx context.Context, s *services.SettingsService, cfg *config.Config) {
	// Seed STEAM_API_KEYS
	if val := s.Get(ctx, "STEAM_API_KEYS", "NOT_SET"); val == "NOT_SET" {
		log.Info().Msg("Seeding STEAM_API_KEYS")
		initialVal := ""
		if len(cfg.SteamAPIKeys) > 0 {
			initialVal = strings.Join(cfg.SteamAPIKeys, ",")
		}
		s.Set(ctx, "STEAM_API_KEYS", initialVal, "Steam Web API Keys (Comma separated)", true)
	}

	// Seed PRICE_API_KEY
	if val := s.Get(ctx, "PRICE_API_KEY", "NOT_SET"); val == "NOT_SET" {
		log.Info().Msg("Seeding PRICE_API_KEY")
		s.Set(ctx, "PRICE_API_KEY", cfg.PriceAPIKey, "Fallback price API key", true)
	}

	// Seed MARKET_FEED_TOKEN
	if val := s.Get(ctx, "MARKET_FEED_TOKEN", "NOT_SET"); val == "NOT_SET" {
		log.Info().Msg("Seeding MARKET_FEED_TOKEN")
		s.Set(ctx, "MARKET_FEED_TOKEN", cfg.MarketFeedToken, "Market price feed WebSocket token", true)
	}

	// Seed steam_rate_limit
	if val := s.Get(ctx, "steam_rate_limit", "NOT_SET"); val == "NOT_SET" {
		log.Info().Msg("Seeding steam_rate_limit")
		s.Set(ctx, "steam_rate_limit", "60", "Steam API rate limit (Requests per minute per key)", false)
	}
}
