package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"whalewatch-backend/controllers"
	"whalewatch-backend/database"
	"whalewatch-backend/middlewares"
	"whalewatch-backend/models"
	"whalewatch-backend/routes"
	"whalewatch-backend/services"
	"whalewatch-backend/utils"
	"whalewatch-backend/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// envInt reads an int env var with a default fallback.
func envInt(key string, def int) int {
	return utils.ParseIntDefault(os.Getenv(key), def)
}

func main() {
	// ---- Database
	database.Connect()
	database.AutoMigrate()
	if err := database.EnsureConstraints(); err != nil {
		log.Fatal("constraint migration failed: ", err)
	}

	// ---- Fiber app with global error handler + body limit
	bodyLimitBytes := envInt("BODY_LIMIT_BYTES", 0)
	if bodyLimitBytes <= 0 {
		bodyLimitBytes = envInt("BODY_LIMIT_MB", 1) * 1024 * 1024
	}
	app := fiber.New(fiber.Config{
		ErrorHandler: middlewares.ErrorHandler,
		BodyLimit:    bodyLimitBytes,
	})

	// ---- CORS (preflights always answer 200, before any auth runs)
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "*"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowCredentials: false, // using Bearer tokens, not cookies, for the API
		AllowMethods:     "GET, POST, OPTIONS",
		AllowHeaders:     "authorization, content-type, apikey, x-client-info, idempotency-key",
	}))

	// ---- Global rate limiter (tune via env)
	rlMax := envInt("RATE_LIMIT_MAX", 60)
	rlWindow := time.Duration(envInt("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second
	app.Use(limiter.New(limiter.Config{
		Max:        rlMax,
		Expiration: rlWindow,
		LimitReached: func(c *fiber.Ctx) error {
			return &models.APIError{
				Status:        fiber.StatusTooManyRequests,
				Code:          models.CodeRateLimited,
				Message:       "too many requests",
				RetryAfterSec: int(rlWindow / time.Second),
			}
		},
	}))

	// ---- External collaborators
	enricher := workers.NewEnrichmentClient(database.DB)
	controllers.Init(services.NewENSResolver(), enricher)

	// ---- Routes
	routes.Register(app)

	// ---- Background jobs
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	workers.StartScheduler(ctx, database.DB, enricher)

	// ---- Start
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("server error: %v", err)
		}
	}()
	log.Println("API server started on port", port)

	<-ctx.Done()
	log.Println("shutting down...")
	_ = app.Shutdown()
}
