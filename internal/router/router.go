package router

import (
	"github.com/labstack/echo/v4"
	eMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/shelfex/backend/internal/fanout"
	"github.com/shelfex/backend/internal/handlers"
	"github.com/shelfex/backend/internal/livepush"
	"github.com/shelfex/backend/internal/middleware"
	"github.com/shelfex/backend/internal/models"
	"github.com/shelfex/backend/internal/repositories"
	"github.com/shelfex/backend/pkg/blob"
	"github.com/shelfex/backend/pkg/config"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

// SetupMiddleware configures global Echo middleware
func SetupMiddleware(e *echo.Echo) {
	e.Use(eMiddleware.Recover())
	e.Use(eMiddleware.CORS())
}

// SetupRoutes configures all application routes and injects dependencies
func SetupRoutes(e *echo.Echo, cfg *config.Config, pgdb *gorm.DB, mgClient *mongo.Client, uploader blob.Uploader, log zerolog.Logger) error {
	// AutoMigrate PostgreSQL models
	if err := pgdb.AutoMigrate(&models.User{}, &models.Follow{}); err != nil {
		return err
	}
	log.Info().Msg("PostgreSQL auto-migrations completed")

	mdb := mgClient.Database(cfg.MongoDatabase)

	// Health check - always accessible
	e.GET("/health", handlers.HealthCheck)

	// --- Repositories ---
	userRepo := repositories.NewPostgresUserRepository(pgdb)
	followRepo := repositories.NewPostgresFollowRepository(pgdb)
	postRepo := repositories.NewMongoPostRepository(mdb)
	notificationRepo := repositories.NewMongoNotificationRepository(mdb)

	// --- Fan-out pipeline ---
	hub := livepush.NewHub(log)
	engine := fanout.NewEngine(followRepo, notificationRepo, hub, cfg.FanoutWorkers, cfg.FanoutTimeout, log)

	// --- Unprotected routes ---
	authGroup := e.Group("/api")
	authHandler := handlers.NewAuthHandler(userRepo, notificationRepo, cfg.JWTSecret)
	authHandler.RegisterAuthRoutes(authGroup)

	// --- Protected routes (require JWT authentication) ---
	api := e.Group("/api")
	api.Use(middleware.JWTAuthMiddleware(cfg.JWTSecret))

	postHandler := handlers.NewPostHandler(postRepo, userRepo, followRepo, engine, uploader, log)
	postHandler.RegisterPostRoutes(api)

	notificationHandler := handlers.NewNotificationHandler(notificationRepo)
	notificationHandler.RegisterNotificationRoutes(api)

	userHandler := handlers.NewUserHandler(userRepo, followRepo, engine, uploader, log)
	userHandler.RegisterUserRoutes(api)

	// The live channel does its own token check (query parameter), so it
	// sits outside the bearer-header middleware.
	wsHandler := handlers.NewWSHandler(hub, cfg.JWTSecret, log)
	wsHandler.RegisterWSRoutes(authGroup)

	log.Info().Msg("all routes configured")
	return nil
}
