package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/mmogame/backend/internal/auth"
	"github.com/mmogame/backend/internal/config"
	"github.com/mmogame/backend/internal/database"
	"github.com/mmogame/backend/internal/game"
	"github.com/mmogame/backend/internal/itembank"
	"github.com/mmogame/backend/internal/middleware"
	"github.com/mmogame/backend/internal/rasch"
	"github.com/mmogame/backend/internal/worker"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	driver := database.Driver(cfg.DBDriver)
	db, err := database.Open(ctx, driver, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db, driver); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize services
	deps := game.NewDeps(db)
	games := game.NewStore(db)
	registry := game.DefaultRegistry(deps)
	gameService := game.NewService(games, registry, deps.Ledger, deps.Attempts, itembank.NewStore(db))

	snapshots := rasch.NewStore(db)
	pipeline := rasch.NewPipeline(games, registry, snapshots, cfg.EstimationMaxIterations)

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	queue := worker.NewQueue(pipeline, cfg.EstimationQueueSize)
	queue.Start(workerCtx, cfg.EstimationWorkers)

	var sched *worker.Scheduler
	if cfg.EstimationInterval > 0 {
		sched, err = worker.NewScheduler(queue, games, cfg.EstimationInterval)
		if err != nil {
			log.Fatalf("Failed to create estimation scheduler: %v", err)
		}
		sched.Start()
		log.Printf("Estimation scheduled every %s", cfg.EstimationInterval)
	}

	// Initialize handlers
	tokens := auth.NewTokens(cfg.JWTSecret, auth.DefaultTokenTTL)
	authHandler := auth.NewHandler(deps.Ledger, tokens)
	gameHandler := game.NewHandler(gameService)
	estimationHandler := worker.NewHandler(queue, snapshots)

	// Setup router
	r := mux.NewRouter()
	r.Use(middleware.RequestIDs, middleware.Metrics)
	api := r.PathPrefix("/api/v1").Subrouter()

	// Public routes
	api.HandleFunc("/session", authHandler.Session).Methods("POST")
	api.HandleFunc("/games/{id:[0-9]+}/leaderboard", gameHandler.Leaderboard).Methods("GET")

	// Player routes
	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.Auth(tokens))
	protected.HandleFunc("/me", authHandler.GetCurrentPlayer).Methods("GET")
	protected.HandleFunc("/games/{id:[0-9]+}/next", gameHandler.Next).Methods("POST")
	protected.HandleFunc("/games/{id:[0-9]+}/attempts/{attemptId:[0-9]+}/answer", gameHandler.Answer).Methods("POST")
	protected.HandleFunc("/games/{id:[0-9]+}/state", gameHandler.State).Methods("GET")
	protected.HandleFunc("/games/{id:[0-9]+}/nickname", gameHandler.SetNickname).Methods("PUT")

	// Admin routes
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.Admin(cfg.AdminToken))
	admin.HandleFunc("/games", gameHandler.CreateGame).Methods("POST")
	admin.HandleFunc("/games/{id:[0-9]+}/generation", gameHandler.AdvanceGeneration).Methods("POST")
	admin.HandleFunc("/games/{id:[0-9]+}/enabled", gameHandler.SetEnabled).Methods("PUT")
	admin.HandleFunc("/items", gameHandler.CreateItem).Methods("POST")
	admin.HandleFunc("/games/{id:[0-9]+}/estimations", estimationHandler.Enqueue).Methods("POST")
	admin.HandleFunc("/estimations/jobs/{jobId}", estimationHandler.Job).Methods("GET")
	admin.HandleFunc("/estimations/{keyId:[0-9]+}", estimationHandler.Snapshot).Methods("GET")

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           c.Handler(r),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("WARN: server shutdown: %v", err)
	}
	if sched != nil {
		if err := sched.Shutdown(); err != nil {
			log.Printf("WARN: scheduler shutdown: %v", err)
		}
	}
	// Queued jobs are dropped; running ones see their context cancelled.
	cancelWorkers()
	queue.Close()
}
