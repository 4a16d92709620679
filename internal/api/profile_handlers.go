package api

import (
	"database/sql"
	"errors"
	"log"

	"fitpulse/internal/coach"
	"fitpulse/internal/models"

	"github.com/gofiber/fiber/v2"
)

// getUser loads the authenticated user's row. The coach backend keys on
// name+email, so most proxy handlers need it.
func getUser(db *sql.DB, userID int) (models.User, error) {
	var user models.User
	err := db.QueryRow(
		"SELECT id, name, email, phone, onboarding_completed, created_at FROM users WHERE id = ?",
		userID,
	).Scan(&user.ID, &user.Name, &user.Email, &user.Phone, &user.OnboardingCompleted, &user.CreatedAt)
	return user, err
}

// coachError maps a failed coach call onto an HTTP error. Failures are
// surfaced, not retried; retrying is a user re-action.
func coachError(err error) error {
	var ce *coach.Error
	if errors.As(err, &ce) {
		return fiber.NewError(fiber.StatusBadGateway, ce.Message)
	}
	log.Printf("Coach request failed: %v", err)
	return fiber.NewError(fiber.StatusBadGateway, "Coach service unavailable")
}

// SubmitProfileHandler stores the onboarding answers, marks onboarding
// complete and forwards the profile to the coach backend so it can generate
// plans.
func SubmitProfileHandler(db *sql.DB, cc *coach.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)

		var req models.ProfileRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		if req.Age < 1 || req.Age > 120 {
			return fiber.NewError(fiber.StatusBadRequest, "Please enter a valid age")
		}
		if req.HeightCm <= 0 || req.WeightKg <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Height and weight are required")
		}
		if req.Goal == "" || req.ActivityLevel == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Fitness goal and activity level are required")
		}

		user, err := getUser(db, userID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to load user")
		}

		tx, err := db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		_, err = tx.Exec(
			`INSERT INTO profiles (user_id, age, gender, height_cm, weight_kg, goal, activity_level, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(user_id) DO UPDATE SET
			age = excluded.age,
			gender = excluded.gender,
			height_cm = excluded.height_cm,
			weight_kg = excluded.weight_kg,
			goal = excluded.goal,
			activity_level = excluded.activity_level,
			updated_at = CURRENT_TIMESTAMP`,
			userID, req.Age, req.Gender, req.HeightCm, req.WeightKg, req.Goal, req.ActivityLevel,
		)
		if err != nil {
			return err
		}
		if _, err := tx.Exec("UPDATE users SET onboarding_completed = 1 WHERE id = ?", userID); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}

		// Forward to the coach so plan generation can start.
		payload := struct {
			Name string `json:"name"`
			models.ProfileRequest
			Email string `json:"email"`
		}{Name: user.Name, ProfileRequest: req, Email: user.Email}

		raw, err := cc.SubmitProfile(c.UserContext(), payload)
		if err != nil {
			return coachError(err)
		}

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"onboarding_completed": true,
			"coach":                raw,
		})
	}
}

func GetProfileHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)

		user, err := getUser(db, userID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to load user")
		}

		var profile models.Profile
		err = db.QueryRow(
			"SELECT user_id, age, gender, height_cm, weight_kg, goal, activity_level, updated_at FROM profiles WHERE user_id = ?",
			userID,
		).Scan(&profile.UserID, &profile.Age, &profile.Gender, &profile.HeightCm,
			&profile.WeightKg, &profile.Goal, &profile.ActivityLevel, &profile.UpdatedAt)

		if err == sql.ErrNoRows {
			return c.JSON(fiber.Map{"user": user, "profile": nil})
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to load profile")
		}

		return c.JSON(fiber.Map{"user": user, "profile": profile})
	}
}

// UpdateProfileHandler applies a partial profile update locally and forwards
// it to the coach backend.
func UpdateProfileHandler(db *sql.DB, cc *coach.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)

		var req struct {
			Age           *int     `json:"age,omitempty"`
			Gender        *string  `json:"gender,omitempty"`
			HeightCm      *float64 `json:"height,omitempty"`
			WeightKg      *float64 `json:"weight,omitempty"`
			Goal          *string  `json:"goal,omitempty"`
			ActivityLevel *string  `json:"activity_level,omitempty"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		user, err := getUser(db, userID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to load user")
		}

		set := func(column string, value any) error {
			_, err := db.Exec("UPDATE profiles SET "+column+" = ?, updated_at = CURRENT_TIMESTAMP WHERE user_id = ?", value, userID)
			return err
		}
		if req.Age != nil {
			if err := set("age", *req.Age); err != nil {
				return err
			}
		}
		if req.Gender != nil {
			if err := set("gender", *req.Gender); err != nil {
				return err
			}
		}
		if req.HeightCm != nil {
			if err := set("height_cm", *req.HeightCm); err != nil {
				return err
			}
		}
		if req.WeightKg != nil {
			if err := set("weight_kg", *req.WeightKg); err != nil {
				return err
			}
		}
		if req.Goal != nil {
			if err := set("goal", *req.Goal); err != nil {
				return err
			}
		}
		if req.ActivityLevel != nil {
			if err := set("activity_level", *req.ActivityLevel); err != nil {
				return err
			}
		}

		update := map[string]any{"email": user.Email}
		if req.Age != nil {
			update["age"] = *req.Age
		}
		if req.Gender != nil {
			update["gender"] = *req.Gender
		}
		if req.HeightCm != nil {
			update["height"] = *req.HeightCm
		}
		if req.WeightKg != nil {
			update["weight"] = *req.WeightKg
		}
		if req.Goal != nil {
			update["goal"] = *req.Goal
		}
		if req.ActivityLevel != nil {
			update["activity_level"] = *req.ActivityLevel
		}

		raw, err := cc.UpdateProfile(c.UserContext(), update)
		if err != nil {
			return coachError(err)
		}
		return c.JSON(raw)
	}
}

func ProfileSummaryHandler(db *sql.DB, cc *coach.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)
		user, err := getUser(db, userID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to load user")
		}
		raw, err := cc.ProfileSummary(c.UserContext(), user.Name, user.Email)
		if err != nil {
			return coachError(err)
		}
		return c.JSON(raw)
	}
}
