package api

import (
	"database/sql"
	"encoding/json"
	"time"

	"fitpulse/internal/coach"
	"fitpulse/internal/models"

	"github.com/gofiber/fiber/v2"
)

func DietPlanHandler(db *sql.DB, cc *coach.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)
		user, err := getUser(db, userID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to load user")
		}
		raw, err := cc.DietPlan(c.UserContext(), user.Name, user.Email)
		if err != nil {
			return coachError(err)
		}
		return c.JSON(raw)
	}
}

func DietHistoryHandler(db *sql.DB, cc *coach.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)
		user, err := getUser(db, userID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to load user")
		}
		raw, err := cc.DietHistory(c.UserContext(), user.Name, user.Email)
		if err != nil {
			return coachError(err)
		}
		return c.JSON(raw)
	}
}

func CustomDietHandler(cc *coach.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		email := c.Locals("email").(string)

		var req models.CustomDietRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		if len(req.Ingredients) == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "At least one ingredient is required")
		}

		raw, err := cc.CustomDiet(c.UserContext(), email, req.Ingredients)
		if err != nil {
			return coachError(err)
		}
		return c.JSON(raw)
	}
}

func WorkoutPlanHandler(db *sql.DB, cc *coach.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)
		user, err := getUser(db, userID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to load user")
		}
		plan, err := cc.WorkoutPlan(c.UserContext(), user.Name, user.Email)
		if err != nil {
			return coachError(err)
		}
		return c.JSON(plan.Raw)
	}
}

func WorkoutPlanPDFHandler(cc *coach.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		email := c.Locals("email").(string)

		pdf, err := cc.WorkoutPlanPDF(c.UserContext(), email)
		if err != nil {
			return coachError(err)
		}
		c.Set(fiber.HeaderContentType, "application/pdf")
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="workout-plan.pdf"`)
		return c.Send(pdf)
	}
}

func GymSuggestionHandler(cc *coach.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		email := c.Locals("email").(string)
		raw, err := cc.GymSuggestion(c.UserContext(), email)
		if err != nil {
			return coachError(err)
		}
		return c.JSON(raw)
	}
}

// ChatHandler forwards the chat payload untouched; the widget owns its
// message shape and the coach owns the reply.
func ChatHandler(cc *coach.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		email := c.Locals("email").(string)

		var payload map[string]any
		if err := c.BodyParser(&payload); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		payload["email"] = email

		body, err := json.Marshal(payload)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		raw, err := cc.Chat(c.UserContext(), body)
		if err != nil {
			return coachError(err)
		}
		return c.JSON(raw)
	}
}

// currentWeekWindow returns the Monday and Sunday of the week containing
// now, as YYYY-MM-DD.
func currentWeekWindow(now time.Time) (string, string) {
	daysToMonday := int(now.Weekday()) - 1
	if now.Weekday() == time.Sunday {
		daysToMonday = 6
	}
	monday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).
		AddDate(0, 0, -daysToMonday)
	sunday := monday.AddDate(0, 0, 6)
	return monday.Format("2006-01-02"), sunday.Format("2006-01-02")
}

func AnalysisHandler(cc *coach.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		email := c.Locals("email").(string)

		weekStart, weekEnd := currentWeekWindow(time.Now())
		raw, err := cc.Analysis(c.UserContext(), email, weekStart, weekEnd)
		if err != nil {
			return coachError(err)
		}
		return c.JSON(raw)
	}
}
