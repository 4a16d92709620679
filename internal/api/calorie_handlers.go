package api

import (
	"database/sql"
	"strings"
	"time"

	"fitpulse/internal/calories"
	"fitpulse/internal/coach"

	"github.com/gofiber/fiber/v2"
)

// DetectCaloriesHandler proxies a meal photo to the coach for analysis.
func DetectCaloriesHandler(db *sql.DB, cc *coach.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)
		user, err := getUser(db, userID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to load user")
		}

		fileHeader, err := c.FormFile("file")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Image file is required")
		}
		if ct := fileHeader.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
			return fiber.NewError(fiber.StatusBadRequest, "Please upload an image file")
		}
		file, err := fileHeader.Open()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Could not read uploaded file")
		}
		defer file.Close()

		raw, err := cc.DetectCalories(c.UserContext(), fileHeader.Filename, file, user.Name, user.Email)
		if err != nil {
			return coachError(err)
		}
		return c.JSON(raw)
	}
}

// CalorieHistoryHandler returns the raw entry list from the coach.
func CalorieHistoryHandler(db *sql.DB, cc *coach.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)
		user, err := getUser(db, userID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to load user")
		}
		_, raw, err := cc.CalorieHistory(c.UserContext(), user.Name, user.Email)
		if err != nil {
			return coachError(err)
		}
		return c.JSON(raw)
	}
}

// CalorieSummaryHandler runs the history through the day-bucket aggregator.
// Calorie sums are rounded here, not inside the aggregation, so rounding
// error never compounds across days.
func CalorieSummaryHandler(db *sql.DB, cc *coach.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)
		user, err := getUser(db, userID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to load user")
		}
		entries, _, err := cc.CalorieHistory(c.UserContext(), user.Name, user.Email)
		if err != nil {
			return coachError(err)
		}

		summary := calories.Aggregate(entries, time.Local)

		buckets := make([]fiber.Map, 0, len(summary.Buckets))
		for _, b := range summary.Buckets {
			buckets = append(buckets, fiber.Map{
				"date":     b.Date,
				"calories": calories.Round(b.Calories),
				"entries":  b.Entries,
			})
		}
		return c.JSON(fiber.Map{
			"total":   calories.Round(summary.Total),
			"buckets": buckets,
		})
	}
}

func DeleteCalorieEntryHandler(db *sql.DB, cc *coach.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)
		entryID := c.Params("id")
		if entryID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Entry ID is required")
		}
		user, err := getUser(db, userID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to load user")
		}
		raw, err := cc.DeleteCalorieEntry(c.UserContext(), entryID, user.Name, user.Email)
		if err != nil {
			return coachError(err)
		}
		return c.JSON(raw)
	}
}
