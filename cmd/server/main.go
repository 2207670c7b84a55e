package main

import (
	"context"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shelfex/backend/internal/router"
	"github.com/shelfex/backend/pkg/blob"
	"github.com/shelfex/backend/pkg/config"
	"github.com/shelfex/backend/validators"
)

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
}

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database connections
	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize databases")
	}
	defer db.CloseDB()

	// Image storage; the API still runs without it, uploads just fail.
	var uploader blob.Uploader
	storage, err := blob.NewFirebaseStorage(context.Background(), cfg.FirebaseCredentialsPath, cfg.StorageBucket)
	if err != nil {
		log.Warn().Err(err).Msg("image storage not configured, uploads disabled")
		uploader = blob.Disabled{}
	} else {
		uploader = storage
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Validator = validators.NewValidator()

	// Setup global middleware
	router.SetupMiddleware(e)

	// Setup routes and dependencies
	if err := router.SetupRoutes(e, cfg, db.Postgres, db.Mongo, uploader, log.Logger); err != nil {
		log.Fatal().Err(err).Msg("failed to set up routes")
	}

	// Start server
	if err := e.Start(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
