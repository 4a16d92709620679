package main

import (
	"log"
	"os"
	"strings"
	"time"

	"fitpulse/internal/api"
	"fitpulse/internal/coach"
	"fitpulse/internal/database"
	"fitpulse/internal/store"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
)

func main() {
	// Initialize database
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "./data/fitpulse.db"
	}
	db, err := database.Initialize(dbPath)
	if err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer db.Close()

	// Run migrations only if explicitly enabled (opt-in for safety)
	runMigrations := os.Getenv("RUN_MIGRATIONS") == "true"
	if runMigrations {
		log.Println("Running database migrations...")
		if err := api.MigrateAddFollowupDay(db); err != nil {
			log.Printf("Migration error (followup day): %v", err)
		}
		if err := api.MigrateLegacyVerifyRecords(db); err != nil {
			log.Printf("Migration error (verify records): %v", err)
		}
	} else {
		log.Println("Migrations skipped (set RUN_MIGRATIONS=true to enable)")
	}

	// Coach backend client
	coachURL := os.Getenv("COACH_API_URL")
	if coachURL == "" {
		log.Println("WARNING: Using default COACH_API_URL. Set COACH_API_URL env var for production.")
	}
	cc := coach.NewClient(coach.Config{BaseURL: coachURL})

	st := store.New(db)

	// Run background workers only if enabled (default: true for backward compatibility)
	enableWorkers := os.Getenv("ENABLE_WORKERS")
	if enableWorkers == "" {
		enableWorkers = "true" // Default to enabled
	}

	if enableWorkers == "true" {
		log.Println("Starting background workers...")
		// Catch reminders that came due while the server was down, then
		// re-check every minute.
		api.ProcessDueReminders(db, st, time.Now())
		go func() {
			ticker := time.NewTicker(1 * time.Minute)
			defer ticker.Stop()
			for range ticker.C {
				api.ProcessDueReminders(db, st, time.Now())
			}
		}()
	} else {
		log.Println("Background workers disabled (set ENABLE_WORKERS=true to enable)")
	}

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Middleware
	app.Use(logger.New())

	// CORS configuration: restrict to specific origins for security
	allowedOriginsRaw := os.Getenv("ALLOWED_ORIGINS")
	allowedOrigins := strings.TrimSpace(allowedOriginsRaw)
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:80,http://localhost:3000" // Default for local dev
		log.Println("WARNING: Using default ALLOWED_ORIGINS. Set ALLOWED_ORIGINS env var for production.")
	} else {
		// Normalize comma-separated list (trim whitespace around entries)
		if allowedOrigins != "*" {
			parts := strings.Split(allowedOrigins, ",")
			for i, p := range parts {
				parts[i] = strings.TrimSpace(p)
			}
			allowedOrigins = strings.Join(parts, ",")
		}
	}

	log.Printf("CORS allowed origins: %s", allowedOrigins)

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     "GET,POST,PATCH,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true, // Required for cookies
	}))

	// Setup routes
	api.SetupRoutes(app, db, cc)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s", port)
	log.Fatal(app.Listen(":" + port))
}
