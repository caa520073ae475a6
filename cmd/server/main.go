package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/polite-conquest/internal/auth"
	"github.com/freeeve/polite-conquest/internal/config"
	"github.com/freeeve/polite-conquest/internal/handler"
	"github.com/freeeve/polite-conquest/internal/logger"
	"github.com/freeeve/polite-conquest/internal/middleware"
	"github.com/freeeve/polite-conquest/internal/repository/postgres"
	redisrepo "github.com/freeeve/polite-conquest/internal/repository/redis"
	"github.com/freeeve/polite-conquest/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init(logger.Options{})
		log.Fatal().Err(err).Msg("Config load failed")
	}
	logger.Init(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile, Dev: cfg.Dev, JSON: cfg.LogJSON})
	log.Info().
		Str("port", cfg.Port).
		Interface("rules", cfg.Rules).
		Str("turnDuration", cfg.TurnDuration).
		Str("stepDelay", cfg.StepDelay).
		Msg("Config loaded")

	// Database
	db, err := postgres.Connect(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Database connection failed")
	}
	defer db.Close()

	// Redis
	redisClient, err := redisrepo.NewClient(context.Background(), cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Redis connection failed")
	}
	defer redisClient.Close()

	if err := redisClient.EnableExpiryEvents(context.Background()); err != nil {
		log.Warn().Err(err).Msg("Failed to enable Redis expiry events (falling back to polling)")
	}

	// Repos
	userRepo := postgres.NewUserRepo(db)
	gameRepo := postgres.NewGameRepo(db)
	turnRepo := postgres.NewTurnRepo(db)

	// Auth
	jwtMgr := auth.NewJWTManager(cfg.JWTSecret)
	var discord *auth.OAuthProvider
	if cfg.DiscordClientID != "" {
		discord = auth.NewDiscordOAuth(cfg.DiscordClientID, cfg.DiscordClientSecret, cfg.DiscordRedirectURL)
	} else {
		log.Warn().Msg("DISCORD_CLIENT_ID not set, Discord login disabled")
	}

	// WebSocket hub
	wsHub := handler.NewHub()

	// Services
	gameSvc := service.NewGameService(gameRepo, turnRepo, userRepo, cfg.Rules)
	gameSvc.SetPacingDefaults(cfg.TurnDuration, cfg.StepDelay)
	turnSvc := service.NewTurnService(gameRepo, turnRepo, redisClient, wsHub)
	decisionSvc := service.NewDecisionService(gameRepo, turnSvc)

	// Timer listener (deadline and step expiry)
	timerListener := service.NewTimerListener(redisClient, turnSvc, turnRepo)

	// Handlers
	authHandler := handler.NewAuthHandler(discord, jwtMgr, userRepo, cfg.Dev)
	userHandler := handler.NewUserHandler(userRepo)
	gameHandler := handler.NewGameHandler(gameSvc, turnSvc, wsHub)
	decisionHandler := handler.NewDecisionHandler(decisionSvc, wsHub)
	turnHandler := handler.NewTurnHandler(turnSvc)
	wsHandler := handler.NewWSHandler(wsHub, jwtMgr, turnSvc)

	// Router
	mux := http.NewServeMux()
	authMw := auth.Middleware(jwtMgr)

	// Health
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Auth (public)
	mux.HandleFunc("GET /auth/discord/login", authHandler.DiscordLogin)
	mux.HandleFunc("GET /auth/discord/callback", authHandler.DiscordCallback)
	mux.HandleFunc("POST /auth/refresh", authHandler.RefreshToken)
	mux.HandleFunc("GET /auth/dev", authHandler.DevLogin)

	// Protected API routes
	api := http.NewServeMux()
	api.HandleFunc("GET /users/me", userHandler.GetMe)
	api.HandleFunc("PATCH /users/me", userHandler.UpdateMe)
	api.HandleFunc("GET /users/{id}", userHandler.GetUser)

	api.HandleFunc("POST /games", gameHandler.CreateGame)
	api.HandleFunc("GET /games", gameHandler.ListGames)
	api.HandleFunc("GET /games/{id}", gameHandler.GetGame)
	api.HandleFunc("POST /games/{id}/join", gameHandler.JoinGame)
	api.HandleFunc("POST /games/{id}/start", gameHandler.StartGame)
	api.HandleFunc("DELETE /games/{id}", gameHandler.DeleteGame)
	api.HandleFunc("POST /games/{id}/stop", gameHandler.StopGame)
	api.HandleFunc("PATCH /games/{id}/players/{userId}/bot-difficulty", gameHandler.UpdateBotDifficulty)

	api.HandleFunc("POST /games/{id}/decisions", decisionHandler.SubmitDecisions)
	api.HandleFunc("GET /games/{id}/decisions", decisionHandler.ListDecisions)
	api.HandleFunc("DELETE /games/{id}/decisions/{kind}", decisionHandler.RetractDecisions)
	api.HandleFunc("POST /games/{id}/players/{userId}/points", decisionHandler.AwardPoints)

	api.HandleFunc("GET /games/{id}/state", turnHandler.State)
	api.HandleFunc("GET /games/{id}/territories", turnHandler.Territories)
	api.HandleFunc("GET /games/{id}/players", turnHandler.Players)
	api.HandleFunc("GET /games/{id}/turns", turnHandler.ListTurns)
	api.HandleFunc("GET /games/{id}/turns/{number}/events", turnHandler.TurnEvents)
	api.HandleFunc("POST /games/{id}/advance", turnHandler.Advance)

	mux.Handle("/api/v1/", http.StripPrefix("/api/v1", authMw(api)))

	// WebSocket (auth via query param, not middleware)
	mux.HandleFunc("GET /api/v1/ws", wsHandler.ServeWS)

	// Apply global middleware
	root := middleware.Chain(mux, middleware.Logger, middleware.Recoverer, middleware.CORS(cfg.CORSOrigins), middleware.JSON)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Rehydrate Redis state and timers from Postgres after a restart.
	if err := turnSvc.RecoverActiveGames(context.Background()); err != nil {
		log.Error().Err(err).Msg("Failed to recover active games (non-fatal)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go timerListener.Start(ctx)

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server shutdown error")
	}
	log.Info().Msg("Server stopped")
}
