package gate_test

import (
	"testing"
	"time"

	"fitpulse/internal/gate"
)

func at(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse("2006-01-02 15:04", value)
	if err != nil {
		t.Fatal(err)
	}
	return ts
}

func TestEvaluateCompletedToday(t *testing.T) {
	now := at(t, "2024-03-15 09:00")
	fu := &gate.FollowUpRecord{Date: "2024-03-15", Completed: true}

	if got := gate.Evaluate(fu, nil, now); got != gate.Completed {
		t.Fatalf("expected completed, got %s", got)
	}

	// A completed follow-up wins even when a reminder is also set for today.
	rem := &gate.ReminderRecord{Date: "2024-03-15", Time: "18:00"}
	if got := gate.Evaluate(fu, rem, now); got != gate.Completed {
		t.Fatalf("expected completed despite reminder, got %s", got)
	}
}

func TestEvaluatePastFollowUpIgnored(t *testing.T) {
	now := at(t, "2024-03-15 09:00")
	fu := &gate.FollowUpRecord{Date: "2024-03-14", Completed: true}

	if got := gate.Evaluate(fu, nil, now); got != gate.PromptNow {
		t.Fatalf("expected prompt_now for yesterday's record, got %s", got)
	}
}

func TestEvaluateReminderDefers(t *testing.T) {
	rem := &gate.ReminderRecord{Date: "2024-03-15", Time: "18:00"}

	if got := gate.Evaluate(nil, rem, at(t, "2024-03-15 17:00")); got != gate.Deferred {
		t.Fatalf("expected deferred before reminder time, got %s", got)
	}
	if got := gate.Evaluate(nil, rem, at(t, "2024-03-15 18:01")); got != gate.PromptNow {
		t.Fatalf("expected prompt_now after reminder time, got %s", got)
	}
	// Exactly at the reminder time the prompt fires.
	if got := gate.Evaluate(nil, rem, at(t, "2024-03-15 18:00")); got != gate.PromptNow {
		t.Fatalf("expected prompt_now at reminder time, got %s", got)
	}
}

func TestEvaluateStaleReminderIgnored(t *testing.T) {
	rem := &gate.ReminderRecord{Date: "2024-03-14", Time: "23:59"}

	if got := gate.Evaluate(nil, rem, at(t, "2024-03-15 08:00")); got != gate.PromptNow {
		t.Fatalf("expected prompt_now for stale reminder, got %s", got)
	}
}

func TestEvaluateMalformedRecordsFailOpen(t *testing.T) {
	now := at(t, "2024-03-15 09:00")

	cases := []struct {
		name string
		fu   *gate.FollowUpRecord
		rem  *gate.ReminderRecord
	}{
		{"nil records", nil, nil},
		{"empty follow-up", &gate.FollowUpRecord{}, nil},
		{"garbage reminder time", nil, &gate.ReminderRecord{Date: "2024-03-15", Time: "later"}},
		{"empty reminder time", nil, &gate.ReminderRecord{Date: "2024-03-15"}},
		{"out of range reminder", nil, &gate.ReminderRecord{Date: "2024-03-15", Time: "25:61"}},
	}
	for _, tc := range cases {
		if got := gate.Evaluate(tc.fu, tc.rem, now); got != gate.PromptNow {
			t.Errorf("%s: expected prompt_now, got %s", tc.name, got)
		}
	}
}

func TestEvaluateIdempotent(t *testing.T) {
	now := at(t, "2024-03-15 17:30")
	rem := &gate.ReminderRecord{Date: "2024-03-15", Time: "18:00"}

	first := gate.Evaluate(nil, rem, now)
	second := gate.Evaluate(nil, rem, now)
	if first != second {
		t.Fatalf("expected identical results, got %s then %s", first, second)
	}
}

func TestSetReminder(t *testing.T) {
	now := at(t, "2024-03-15 12:00")

	rec, err := gate.SetReminder("18:30", now)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Date != "2024-03-15" || rec.Time != "18:30" {
		t.Fatalf("unexpected record: %+v", rec)
	}

	if _, err := gate.SetReminder("", now); err == nil {
		t.Fatal("expected error for empty time")
	}
	if _, err := gate.SetReminder("6pm", now); err == nil {
		t.Fatal("expected error for unparseable time")
	}
}

func TestMarkCompleted(t *testing.T) {
	rec := gate.MarkCompleted(at(t, "2024-03-15 21:45"))
	if rec.Date != "2024-03-15" || !rec.Completed {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestDailyCycle(t *testing.T) {
	// NoRecord -> set reminder -> Deferred -> time passes -> PromptNow ->
	// user acts -> Completed -> next day resets.
	morning := at(t, "2024-03-15 08:00")

	if got := gate.Evaluate(nil, nil, morning); got != gate.PromptNow {
		t.Fatalf("expected prompt_now with no records, got %s", got)
	}

	rem, err := gate.SetReminder("19:00", morning)
	if err != nil {
		t.Fatal(err)
	}
	if got := gate.Evaluate(nil, &rem, at(t, "2024-03-15 12:00")); got != gate.Deferred {
		t.Fatalf("expected deferred, got %s", got)
	}
	if got := gate.Evaluate(nil, &rem, at(t, "2024-03-15 19:05")); got != gate.PromptNow {
		t.Fatalf("expected prompt_now after time, got %s", got)
	}

	fu := gate.MarkCompleted(at(t, "2024-03-15 19:30"))
	if got := gate.Evaluate(&fu, &rem, at(t, "2024-03-15 20:00")); got != gate.Completed {
		t.Fatalf("expected completed, got %s", got)
	}

	// The next day both records are stale and the cycle starts over.
	if got := gate.Evaluate(&fu, &rem, at(t, "2024-03-16 08:00")); got != gate.PromptNow {
		t.Fatalf("expected prompt_now the next day, got %s", got)
	}
}
