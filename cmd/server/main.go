package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agenticaihome/fitrate-backend-sub001/internal/auth"
	"github.com/agenticaihome/fitrate-backend-sub001/internal/battle"
	"github.com/agenticaihome/fitrate-backend-sub001/internal/config"
	"github.com/agenticaihome/fitrate-backend-sub001/internal/handlers"
	"github.com/agenticaihome/fitrate-backend-sub001/internal/judge"
	"github.com/agenticaihome/fitrate-backend-sub001/internal/middleware"
	"github.com/agenticaihome/fitrate-backend-sub001/internal/notify"
	"github.com/agenticaihome/fitrate-backend-sub001/internal/services"
	"github.com/agenticaihome/fitrate-backend-sub001/internal/store"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

func main() {
	// Load configuration
	env := config.GetEnv()
	cfg, err := config.Load(env)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("Starting battle server in %s mode", cfg.Environment)

	// Select the battle store
	var battleStore store.Store
	var mongoStore *store.MongoStore
	if cfg.Store.Backend == "memory" {
		log.Println("Using in-memory battle store (single-node mode)")
		battleStore = store.NewMemoryStore()
	} else {
		mongoStore, err = store.NewMongoStore(cfg.MongoDB.URI, cfg.MongoDB.Database)
		if err != nil {
			log.Fatalf("Failed to connect to MongoDB: %v", err)
		}
		battleStore = mongoStore
		log.Printf("Connected to MongoDB database: %s", cfg.MongoDB.Database)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		battleStore.Close(ctx)
	}()

	// Push notification hub and cross-replica bus
	hub := notify.NewHub(cfg.Frontend.URL)
	go hub.Run()

	var bus *notify.Bus
	if mongoStore != nil {
		bus = notify.NewBus(mongoStore.NotifyEvents(), hub)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := bus.EnsureIndexes(ctx); err != nil {
			log.Printf("Warning: failed to create notify bus indexes: %v", err)
		}
		cancel()
		bus.Start()
		defer bus.Stop()
	}
	pusher := notify.NewPushService(hub, bus)

	// Comparative judge client; nil disables judging and every battle
	// resolves on the submitted scores
	var comparativeJudge judge.Judge
	if cfg.Judge.BaseURL != "" {
		comparativeJudge = judge.NewClient(
			cfg.Judge.BaseURL,
			cfg.Judge.APIKey,
			time.Duration(cfg.Judge.TimeoutSeconds)*time.Second,
		)
	} else {
		log.Println("No judge configured, battles resolve on submitted scores")
	}

	// Identity tokens
	tokenService := auth.NewTokenService(cfg.Identity.Secret)
	identityMiddleware := middleware.NewIdentityMiddleware(tokenService)

	// Battle service and background forfeit sweep
	battleService := battle.NewService(battleStore, comparativeJudge, pusher)

	sweeper := services.NewForfeitSweeper(battleStore, pusher)
	go sweeper.RunSweepPass() // catch battles that timed out during downtime
	sweeper.Start()
	defer sweeper.Stop()

	// Rate limiting
	rateLimiter := middleware.NewRateLimiter()
	defer rateLimiter.Stop()

	// Create handlers
	battleHandler := handlers.NewBattleHandler(battleService)
	identityHandler := handlers.NewIdentityHandler(tokenService)
	wsHandler := handlers.NewWSHandler(hub)

	// Set up router
	router := mux.NewRouter()
	router.Use(middleware.SecurityHeaders())
	router.Use(identityMiddleware.Resolve)

	// WebSocket notifications
	router.Handle("/ws",
		rateLimiter.IPRateLimitMiddleware(middleware.WebSocketUpgradeLimit)(
			http.HandlerFunc(wsHandler.Subscribe)))

	// API routes
	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/identity/token", identityHandler.IssueToken).Methods("POST")

	api.Handle("/battles",
		rateLimiter.IPRateLimitMiddleware(middleware.BattleCreationLimit)(
			http.HandlerFunc(battleHandler.CreateBattle))).Methods("POST")
	api.HandleFunc("/battles/{battleId}", battleHandler.GetBattle).Methods("GET")
	api.HandleFunc("/battles/{battleId}/join", battleHandler.JoinBattle).Methods("POST")
	api.Handle("/battles/{battleId}/respond",
		rateLimiter.IPRateLimitMiddleware(middleware.BattleRespondLimit)(
			http.HandlerFunc(battleHandler.RespondBattle))).Methods("POST")
	api.HandleFunc("/battles/{battleId}", battleHandler.DeleteBattle).Methods("DELETE")

	// API Documentation
	router.HandleFunc("/docs", handlers.ServeAPIDocs).Methods("GET")

	// Health check
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	// CORS middleware
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{cfg.Frontend.URL},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-User-ID"},
		AllowCredentials: true,
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      corsHandler.Handler(router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // respond waits on the judge
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}
