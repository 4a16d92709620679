// Package ticket implements the short-lived proof token that links the
// exercise-photo verification step to the follow-up submission step.
package ticket

import (
	"time"

	"github.com/google/uuid"
)

// TTL is how long a verification ticket stays valid.
const TTL = 10 * time.Minute

// Ticket proves that exercise-image verification succeeded recently.
// IssuedAt is epoch milliseconds.
type Ticket struct {
	ID       string `json:"id"`
	IssuedAt int64  `json:"issued_at"`
}

// Issue creates a ticket stamped at now. Called once verification succeeds.
func Issue(now time.Time) Ticket {
	return Ticket{ID: uuid.NewString(), IssuedAt: now.UnixMilli()}
}

// Valid reports whether t can still gate the follow-up step. A ticket is
// valid iff now - issuedAt <= TTL; the boundary at exactly TTL is inclusive.
// Absent or unstamped tickets are invalid.
func Valid(t *Ticket, now time.Time) bool {
	return ValidTTL(t, now, TTL)
}

// ValidTTL is Valid with an explicit time-to-live.
func ValidTTL(t *Ticket, now time.Time, ttl time.Duration) bool {
	if t == nil || t.IssuedAt <= 0 {
		return false
	}
	elapsed := now.Sub(time.UnixMilli(t.IssuedAt))
	return elapsed <= ttl
}
