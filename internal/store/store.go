// Package store is the typed repository over the per-user record table.
// Each record is a named JSON value with last-write-wins semantics; a
// malformed stored value reads as absent so callers never see a decode
// error for state the user can recover by re-acting.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"

	"fitpulse/internal/gate"
	"fitpulse/internal/ticket"
)

// Record names. These key the user_records table.
const (
	recordFollowUp = "exercise_followup"
	recordReminder = "exercise_reminder"
	recordTicket   = "exercise_verify"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// FollowUp returns the stored follow-up record, or nil if absent or
// unreadable.
func (s *Store) FollowUp(userID int) *gate.FollowUpRecord {
	var rec gate.FollowUpRecord
	if !s.get(userID, recordFollowUp, &rec) {
		return nil
	}
	return &rec
}

func (s *Store) SetFollowUp(userID int, rec gate.FollowUpRecord) error {
	return s.put(userID, recordFollowUp, rec)
}

// Reminder returns the stored reminder record, or nil if absent or
// unreadable.
func (s *Store) Reminder(userID int) *gate.ReminderRecord {
	var rec gate.ReminderRecord
	if !s.get(userID, recordReminder, &rec) {
		return nil
	}
	return &rec
}

func (s *Store) SetReminder(userID int, rec gate.ReminderRecord) error {
	return s.put(userID, recordReminder, rec)
}

func (s *Store) ClearReminder(userID int) error {
	return s.clear(userID, recordReminder)
}

// Ticket returns the stored verification ticket, or nil if absent or
// unreadable.
func (s *Store) Ticket(userID int) *ticket.Ticket {
	var t ticket.Ticket
	if !s.get(userID, recordTicket, &t) {
		return nil
	}
	return &t
}

func (s *Store) SetTicket(userID int, t ticket.Ticket) error {
	return s.put(userID, recordTicket, t)
}

func (s *Store) ClearTicket(userID int) error {
	return s.clear(userID, recordTicket)
}

// UserReminder pairs a reminder record with its owner, for the background
// worker scan.
type UserReminder struct {
	UserID int
	Record gate.ReminderRecord
}

// Reminders returns every stored reminder record. Unreadable rows are
// skipped.
func (s *Store) Reminders() ([]UserReminder, error) {
	rows, err := s.db.Query(
		"SELECT user_id, value FROM user_records WHERE name = ?",
		recordReminder,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reminders := []UserReminder{}
	for rows.Next() {
		var userID int
		var value string
		if err := rows.Scan(&userID, &value); err != nil {
			return nil, err
		}
		var rec gate.ReminderRecord
		if err := json.Unmarshal([]byte(value), &rec); err != nil {
			log.Printf("Skipping unreadable reminder record for user %d: %v", userID, err)
			continue
		}
		reminders = append(reminders, UserReminder{UserID: userID, Record: rec})
	}
	return reminders, rows.Err()
}

func (s *Store) get(userID int, name string, v any) bool {
	var value string
	err := s.db.QueryRow(
		"SELECT value FROM user_records WHERE user_id = ? AND name = ?",
		userID, name,
	).Scan(&value)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Printf("Record read error (user %d, %s): %v", userID, name, err)
		}
		return false
	}
	if err := json.Unmarshal([]byte(value), v); err != nil {
		// Treat corrupt state the same as missing state.
		log.Printf("Discarding malformed record (user %d, %s): %v", userID, name, err)
		return false
	}
	return true
}

func (s *Store) put(userID int, name string, v any) error {
	value, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO user_records (user_id, name, value, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id, name) DO UPDATE SET
		value = excluded.value,
		updated_at = CURRENT_TIMESTAMP`,
		userID, name, string(value),
	)
	return err
}

func (s *Store) clear(userID int, name string) error {
	_, err := s.db.Exec(
		"DELETE FROM user_records WHERE user_id = ? AND name = ?",
		userID, name,
	)
	return err
}
