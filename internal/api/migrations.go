package api

import (
	"database/sql"
	"fmt"
)

// columnExists checks if a column exists on a given table (SQLite PRAGMA table_info)
func columnExists(db *sql.DB, table string, column string) (bool, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	var cid int
	var name string
	var ctype string
	var notnull int
	var dflt sql.NullString
	var pk int

	for rows.Next() {
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, nil
}

// MigrateAddFollowupDay ensures the followups table has the day and
// completion_rate columns on databases created before they were added to the
// schema (idempotent).
func MigrateAddFollowupDay(db *sql.DB) error {
	exists, err := columnExists(db, "followups", "day")
	if err != nil {
		return err
	}
	if !exists {
		if _, err := db.Exec("ALTER TABLE followups ADD COLUMN day TEXT NOT NULL DEFAULT ''"); err != nil {
			return err
		}
	}

	exists, err = columnExists(db, "followups", "completion_rate")
	if err != nil {
		return err
	}
	if !exists {
		if _, err := db.Exec("ALTER TABLE followups ADD COLUMN completion_rate REAL NOT NULL DEFAULT 0"); err != nil {
			return err
		}
	}
	return nil
}

// MigrateLegacyVerifyRecords renames stored verification tickets from the
// old 'exercise_verify_success' record name to 'exercise_verify'. It's
// idempotent; a user who somehow has both keeps the newer record.
func MigrateLegacyVerifyRecords(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM user_records
		WHERE name = 'exercise_verify_success'
		AND EXISTS (
			SELECT 1 FROM user_records r2
			WHERE r2.user_id = user_records.user_id AND r2.name = 'exercise_verify'
		)`); err != nil {
		return err
	}

	if _, err := tx.Exec("UPDATE user_records SET name = 'exercise_verify' WHERE name = 'exercise_verify_success'"); err != nil {
		return err
	}

	return tx.Commit()
}
