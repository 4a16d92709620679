// Package gate decides whether the daily exercise follow-up is open for a
// user. It is a pure function of the stored follow-up record, the stored
// reminder record and the caller-supplied current time; callers own
// persistence and re-evaluation cadence.
package gate

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// State is the result of evaluating the daily follow-up gate.
type State string

const (
	// Completed means today's follow-up has already been submitted.
	Completed State = "completed"
	// Deferred means a reminder is set for later today and has not fired yet.
	Deferred State = "deferred"
	// PromptNow means the user should be prompted to do the follow-up.
	PromptNow State = "prompt_now"
)

var ErrInvalidTime = errors.New("reminder time is required in HH:MM format")

// FollowUpRecord marks that the user completed the follow-up on a given day.
// Records for past days are ignored by Evaluate.
type FollowUpRecord struct {
	Date      string `json:"date"`
	Completed bool   `json:"completed"`
}

// ReminderRecord defers the follow-up prompt to a time later the same day.
// A record whose date is not today is stale and treated as absent.
type ReminderRecord struct {
	Date     string `json:"date"`
	Time     string `json:"time"`
	Notified bool   `json:"notified,omitempty"`
}

// DateKey formats t as the YYYY-MM-DD grouping key in t's location.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// Evaluate returns the gate state for the day containing now. A completed
// follow-up dated today wins over any reminder. A reminder dated today
// defers the prompt until its time has passed. Stale or malformed records
// are treated as absent, so the gate fails open to PromptNow rather than
// erroring.
func Evaluate(followUp *FollowUpRecord, reminder *ReminderRecord, now time.Time) State {
	today := DateKey(now)

	if followUp != nil && followUp.Date == today {
		return Completed
	}

	if reminder != nil && reminder.Date == today {
		at, err := reminderTime(reminder.Time, now)
		if err == nil {
			if now.Before(at) {
				return Deferred
			}
			return PromptNow
		}
		// Unparseable time: fall through and prompt.
	}

	return PromptNow
}

// SetReminder builds a reminder record for today at the given HH:MM local
// time. The caller persists the result.
func SetReminder(hhmm string, now time.Time) (ReminderRecord, error) {
	hhmm = strings.TrimSpace(hhmm)
	if hhmm == "" {
		return ReminderRecord{}, ErrInvalidTime
	}
	if _, err := reminderTime(hhmm, now); err != nil {
		return ReminderRecord{}, fmt.Errorf("%w: %q", ErrInvalidTime, hhmm)
	}
	return ReminderRecord{Date: DateKey(now), Time: hhmm}, nil
}

// MarkCompleted builds the follow-up record for the day containing now.
func MarkCompleted(now time.Time) FollowUpRecord {
	return FollowUpRecord{Date: DateKey(now), Completed: true}
}

// reminderTime resolves an HH:MM string against the day containing now,
// in now's location.
func reminderTime(hhmm string, now time.Time) (time.Time, error) {
	parts := strings.Split(strings.TrimSpace(hhmm), ":")
	if len(parts) != 2 {
		return time.Time{}, fmt.Errorf("invalid time %q", hhmm)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid hour in %q", hhmm)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid minute in %q", hhmm)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return time.Time{}, fmt.Errorf("time %q out of range", hhmm)
	}
	return time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location()), nil
}
