// @title English Edu Backend API
// @version 1.0
// @description Backend for an AI-driven English tutoring platform: diagnostic placement, adaptive learning roadmaps, graded quizzes, speaking practice and vocabulary training.

// @host localhost:8080
// @BasePath /api
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization

package main

import (
	"flag"
	"log"

	"english_edu_backend/internal/app"
	"english_edu_backend/internal/config"
	"english_edu_backend/pkg/configwatcher"
	"english_edu_backend/pkg/logger"

	"github.com/joho/godotenv"
)

func main() {
	// .env is optional; real deployments set env vars directly.
	godotenv.Load()

	migrateOnly := flag.Bool("migrate-only", false, "run database migrations and exit")
	migrate := flag.Bool("migrate", false, "run database migrations on startup")
	flag.Parse()

	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	cfg.ForceMigrate = *migrate || *migrateOnly
	cfg.MigrateOnly = *migrateOnly

	application := app.NewApp(cfg)
	defer logger.Log.Sync()

	// Hot-reload config edits into the shared struct. Services holding the
	// pointer (JWT secret checks and similar) pick changes up on next use.
	go configwatcher.WatchConfig("configs/config.yaml", cfg, func(newCfg interface{}) {
		if c, ok := newCfg.(*config.Config); ok {
			c.ForceMigrate = cfg.ForceMigrate
			c.MigrateOnly = cfg.MigrateOnly
			*cfg = *c
		}
	})

	application.Run()
}
