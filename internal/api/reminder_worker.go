package api

import (
	"database/sql"
	"log"
	"time"

	"fitpulse/internal/gate"
	"fitpulse/internal/store"
)

// ProcessDueReminders scans stored follow-up reminders and notifies every
// user whose reminder time has passed today without a submitted follow-up.
// Each reminder fires at most once: the record is marked notified after the
// first delivery attempt, successful or not, so a flaky push endpoint does
// not spam the user on every tick.
func ProcessDueReminders(db *sql.DB, st *store.Store, now time.Time) {
	reminders, err := st.Reminders()
	if err != nil {
		log.Printf("Reminder scan failed: %v", err)
		return
	}

	today := gate.DateKey(now)
	sent := 0
	for _, r := range reminders {
		if r.Record.Date != today || r.Record.Notified {
			continue
		}

		// Evaluate settles both remaining questions: whether the reminder
		// time has passed and whether the follow-up got done in the meantime.
		state := gate.Evaluate(st.FollowUp(r.UserID), &r.Record, now)
		if state != gate.PromptNow {
			continue
		}

		if IsWebPushConfigured() {
			payload := PushPayload{
				Title: "Exercise check-in",
				Body:  "Time for your exercise follow-up. Log today's workout now.",
				Tag:   "exercise-reminder-" + today,
				Data:  map[string]interface{}{"url": "/exercise/followup"},
			}
			if err := SendPushToUser(db, r.UserID, payload); err != nil {
				log.Printf("Reminder push failed for user %d: %v", r.UserID, err)
			}
		} else if err := SendReminderEmail(db, r.UserID, r.Record.Time); err != nil {
			log.Printf("Reminder email failed for user %d: %v", r.UserID, err)
		}

		r.Record.Notified = true
		if err := st.SetReminder(r.UserID, r.Record); err != nil {
			log.Printf("Failed to mark reminder notified for user %d: %v", r.UserID, err)
			continue
		}
		sent++
	}

	if sent > 0 {
		log.Printf("Processed %d due exercise reminder(s)", sent)
	}
}
