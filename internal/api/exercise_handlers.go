package api

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"fitpulse/internal/coach"
	"fitpulse/internal/gate"
	"fitpulse/internal/models"
	"fitpulse/internal/store"
	"fitpulse/internal/ticket"

	"github.com/gofiber/fiber/v2"
)

// todayDayName is the lowercase weekday key used by workout plans
// ("monday" ... "sunday").
func todayDayName(now time.Time) string {
	return strings.ToLower(now.Weekday().String())
}

// ExerciseStatusHandler evaluates the daily follow-up gate for the current
// user. Clients poll this and re-check it when they return to the
// foreground; the evaluation itself is idempotent and side-effect-free.
func ExerciseStatusHandler(st *store.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)
		now := time.Now()

		followUp := st.FollowUp(userID)
		reminder := st.Reminder(userID)
		state := gate.Evaluate(followUp, reminder, now)

		resp := fiber.Map{
			"state": state,
			"date":  gate.DateKey(now),
			"day":   todayDayName(now),
		}
		if reminder != nil && reminder.Date == gate.DateKey(now) {
			resp["reminder"] = reminder
		}
		return c.JSON(resp)
	}
}

// SetReminderHandler defers today's follow-up prompt to a later time.
func SetReminderHandler(st *store.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)

		var req models.SetReminderRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		rec, err := gate.SetReminder(req.Time, time.Now())
		if err != nil {
			if errors.Is(err, gate.ErrInvalidTime) {
				return fiber.NewError(fiber.StatusBadRequest, "Please enter a reminder time as HH:MM")
			}
			return err
		}
		if err := st.SetReminder(userID, rec); err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(rec)
	}
}

// VerifyExerciseHandler sends the exercise photo to the coach for
// validation and, on success, issues the short-lived ticket that unlocks
// the follow-up checklist.
func VerifyExerciseHandler(st *store.Store, cc *coach.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)
		email := c.Locals("email").(string)
		now := time.Now()

		if gate.Evaluate(st.FollowUp(userID), nil, now) == gate.Completed {
			return fiber.NewError(fiber.StatusConflict, "Follow-up already submitted today")
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

		result, err := cc.ValidateExercise(c.UserContext(), fileHeader.Filename, file, email)
		if err != nil {
			return coachError(err)
		}

		if !result.IsExercise {
			// Not an error: the user retries with a clearer photo.
			return c.JSON(fiber.Map{
				"is_exercise": false,
				"message":     "The uploaded image does not appear to show an exercise. Please upload a clear image of you performing an exercise.",
			})
		}

		tk := ticket.Issue(now)
		if err := st.SetTicket(userID, tk); err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"is_exercise": true,
			"ticket":      tk,
		})
	}
}

// requireTicket enforces the verification precondition. An absent or
// expired ticket gets a hard redirect answer, and expired tickets are
// cleaned up on sight.
func requireTicket(c *fiber.Ctx, st *store.Store, userID int, now time.Time) bool {
	tk := st.Ticket(userID)
	if ticket.Valid(tk, now) {
		return true
	}
	if tk != nil {
		_ = st.ClearTicket(userID)
	}
	_ = c.Status(fiber.StatusForbidden).JSON(fiber.Map{
		"error":    "Exercise verification required",
		"redirect": "verify",
	})
	return false
}

// GetFollowUpHandler returns today's prescribed exercises for the
// checklist. Gated behind a valid verification ticket.
func GetFollowUpHandler(db *sql.DB, st *store.Store, cc *coach.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)
		now := time.Now()

		if !requireTicket(c, st, userID, now) {
			return nil
		}

		user, err := getUser(db, userID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to load user")
		}
		plan, err := cc.WorkoutPlan(c.UserContext(), user.Name, user.Email)
		if err != nil {
			return coachError(err)
		}

		day := todayDayName(now)
		workout, ok := plan.Days[day]
		if !ok || len(workout.Exercises) == 0 {
			return fiber.NewError(fiber.StatusNotFound, "No workout plan available for today. Please check back tomorrow!")
		}

		return c.JSON(fiber.Map{
			"date":      gate.DateKey(now),
			"day":       day,
			"focus":     workout.Focus,
			"exercises": workout.Exercises,
		})
	}
}

// SubmitFollowUpHandler accepts the completed checklist, forwards it to the
// coach, records it, marks the gate completed for today and consumes the
// ticket and any pending reminder.
func SubmitFollowUpHandler(db *sql.DB, st *store.Store, cc *coach.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)
		now := time.Now()

		if !requireTicket(c, st, userID, now) {
			return nil
		}

		var req struct {
			Exercises []models.ExerciseResult `json:"exercises"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		if len(req.Exercises) == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Exercises are required")
		}

		completed := 0
		for _, ex := range req.Exercises {
			if ex.Completed {
				completed++
			}
		}
		if completed == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Please mark at least one exercise as completed")
		}

		user, err := getUser(db, userID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to load user")
		}

		submission := models.FollowUpSubmission{
			Email:              user.Email,
			Date:               gate.DateKey(now),
			Day:                todayDayName(now),
			Exercises:          req.Exercises,
			TotalExercises:     len(req.Exercises),
			CompletedExercises: completed,
			CompletionRate:     float64(completed) / float64(len(req.Exercises)) * 100,
		}

		raw, err := cc.SubmitFollowUp(c.UserContext(), submission)
		if err != nil {
			return coachError(err)
		}

		_, err = db.Exec(
			`INSERT INTO followups (user_id, date, day, total_exercises, completed_exercises, completion_rate)
			VALUES (?, ?, ?, ?, ?, ?)`,
			userID, submission.Date, submission.Day,
			submission.TotalExercises, submission.CompletedExercises, submission.CompletionRate,
		)
		if err != nil {
			return err
		}

		if err := st.SetFollowUp(userID, gate.MarkCompleted(now)); err != nil {
			return err
		}
		// The reminder served its purpose and the ticket is single-use.
		_ = st.ClearReminder(userID)
		_ = st.ClearTicket(userID)

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"success":    true,
			"submission": submission,
			"coach":      raw,
		})
	}
}
