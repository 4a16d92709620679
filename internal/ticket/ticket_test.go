package ticket_test

import (
	"testing"
	"time"

	"fitpulse/internal/ticket"
)

func TestIssue(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	tk := ticket.Issue(now)
	if tk.ID == "" {
		t.Fatal("expected a ticket ID")
	}
	if tk.IssuedAt != now.UnixMilli() {
		t.Fatalf("expected issued_at %d, got %d", now.UnixMilli(), tk.IssuedAt)
	}
	if !ticket.Valid(&tk, now) {
		t.Fatal("freshly issued ticket should be valid")
	}
}

func TestValidBoundary(t *testing.T) {
	issued := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	tk := ticket.Issue(issued)

	cases := []struct {
		elapsed time.Duration
		want    bool
	}{
		{9*time.Minute + 59*time.Second, true},
		{10 * time.Minute, true}, // boundary is inclusive
		{10*time.Minute + 1*time.Second, false},
		{24 * time.Hour, false},
	}
	for _, tc := range cases {
		if got := ticket.Valid(&tk, issued.Add(tc.elapsed)); got != tc.want {
			t.Errorf("at +%s: expected %v, got %v", tc.elapsed, tc.want, got)
		}
	}
}

func TestValidAbsentOrUnstamped(t *testing.T) {
	now := time.Now()
	if ticket.Valid(nil, now) {
		t.Fatal("nil ticket should be invalid")
	}
	if ticket.Valid(&ticket.Ticket{ID: "x"}, now) {
		t.Fatal("unstamped ticket should be invalid")
	}
}

func TestValidCustomTTL(t *testing.T) {
	issued := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	tk := ticket.Issue(issued)
	if !ticket.ValidTTL(&tk, issued.Add(29*time.Minute), 30*time.Minute) {
		t.Fatal("expected valid under extended TTL")
	}
	if ticket.ValidTTL(&tk, issued.Add(2*time.Minute), time.Minute) {
		t.Fatal("expected invalid under shortened TTL")
	}
}
