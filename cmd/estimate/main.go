package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/mmogame/backend/internal/config"
	"github.com/mmogame/backend/internal/database"
	"github.com/mmogame/backend/internal/game"
	"github.com/mmogame/backend/internal/rasch"
)

func main() {
	gameID := flag.Int64("game", 0, "game id to estimate (required)")
	numGame := flag.Int("numgame", 0, "generation to estimate, 0 for the current one")
	userID := flag.Int64("user", 0, "id of the requesting administrator")
	iterations := flag.Int("iterations", 0, "iteration count, 0 for ESTIMATION_MAX_ITERATIONS")
	flag.Parse()

	if *gameID <= 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if *iterations > 0 {
		cfg.EstimationMaxIterations = *iterations
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	driver := database.Driver(cfg.DBDriver)
	db, err := database.Open(ctx, driver, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db, driver); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	deps := game.NewDeps(db)
	games := game.NewStore(db)
	pipeline := rasch.NewPipeline(games, game.DefaultRegistry(deps), rasch.NewStore(db), cfg.EstimationMaxIterations)

	keyID, err := pipeline.Run(ctx, *gameID, *numGame, *userID)
	if err != nil {
		log.Fatalf("Estimation failed: %v", err)
	}
	fmt.Println(keyID)
}
