package api

import (
	"database/sql"
	"os"
	"strings"

	"fitpulse/internal/coach"
	"fitpulse/internal/store"

	"github.com/gofiber/fiber/v2"
)

func SetupRoutes(app *fiber.App, db *sql.DB, cc *coach.Client) {
	st := store.New(db)
	api := app.Group("/api")

	// Check if registration is disabled
	disableRegistration := strings.ToLower(os.Getenv("DISABLE_REGISTRATION")) == "true"

	// Configuration endpoint (public)
	api.Get("/config", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"disableRegistration": disableRegistration,
		})
	})

	// Auth routes
	auth := api.Group("/auth")
	if !disableRegistration {
		auth.Post("/register", RegisterHandler(db))
	}
	auth.Post("/login", LoginHandler(db))
	auth.Post("/refresh", RefreshTokenHandler(db))
	auth.Post("/logout", LogoutHandler(db))

	// VAPID public key endpoint (public - must be before protected routes for proper routing)
	api.Get("/push/vapid-public-key", VapidPublicKeyHandler())

	// Protected routes
	protected := api.Group("/", AuthMiddleware())

	// Profile / onboarding
	protected.Post("/profile", SubmitProfileHandler(db, cc))
	protected.Get("/profile", GetProfileHandler(db))
	protected.Patch("/profile", UpdateProfileHandler(db, cc))
	protected.Get("/profile/summary", ProfileSummaryHandler(db, cc))

	// Diet suggestions
	diet := protected.Group("/diet")
	diet.Get("/plan", DietPlanHandler(db, cc))
	diet.Get("/history", DietHistoryHandler(db, cc))
	diet.Post("/custom", CustomDietHandler(cc))

	// Workout plans
	workout := protected.Group("/workout")
	workout.Get("/plan", WorkoutPlanHandler(db, cc))
	workout.Get("/plan/pdf", WorkoutPlanPDFHandler(cc))

	// Calorie detection and history
	cal := protected.Group("/calories")
	cal.Post("/detect", DetectCaloriesHandler(db, cc))
	cal.Get("/history", CalorieHistoryHandler(db, cc))
	cal.Get("/summary", CalorieSummaryHandler(db, cc))
	cal.Delete("/:id", DeleteCalorieEntryHandler(db, cc))

	// Exercise follow-up flow
	exercise := protected.Group("/exercise")
	exercise.Get("/status", ExerciseStatusHandler(st))
	exercise.Post("/reminder", SetReminderHandler(st))
	exercise.Post("/verify", VerifyExerciseHandler(st, cc))
	exercise.Get("/followup", GetFollowUpHandler(db, st, cc))
	exercise.Post("/followup", SubmitFollowUpHandler(db, st, cc))

	// Coach chat and suggestions
	protected.Post("/chat", ChatHandler(cc))
	protected.Post("/gym/suggestion", GymSuggestionHandler(cc))
	protected.Get("/analysis", AnalysisHandler(cc))

	// Push subscription routes
	push := protected.Group("/push")
	push.Post("/subscribe", SubscribePushHandler(db))
	push.Delete("/unsubscribe", UnsubscribePushHandler(db))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
}
