package coach_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"fitpulse/internal/coach"
)

func TestWorkoutPlanDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/profile/workout-plan" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"week_number": 3,
			"workout_plan": {
				"monday": {"focus": "push", "exercises": [
					{"name": "Bench Press", "sets": 4, "reps": "8-10", "rest": "90s"}
				]}
			}
		}`))
	}))
	defer srv.Close()

	client := coach.NewClient(coach.Config{BaseURL: srv.URL})
	plan, err := client.WorkoutPlan(context.Background(), "Test", "test@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if plan.WeekNumber != 3 {
		t.Fatalf("expected week 3, got %d", plan.WeekNumber)
	}
	day, ok := plan.Days["monday"]
	if !ok || len(day.Exercises) != 1 || day.Exercises[0].Name != "Bench Press" {
		t.Fatalf("unexpected plan: %+v", plan.Days)
	}
}

func TestValidateExerciseMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("expected multipart request: %v", err)
		}
		if got := r.FormValue("email"); got != "test@example.com" {
			t.Errorf("expected email field, got %q", got)
		}
		if _, _, err := r.FormFile("file"); err != nil {
			t.Errorf("expected file field: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"is_exercise": true}`))
	}))
	defer srv.Close()

	client := coach.NewClient(coach.Config{BaseURL: srv.URL})
	result, err := client.ValidateExercise(context.Background(), "photo.jpg", strings.NewReader("fake image"), "test@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsExercise {
		t.Fatal("expected is_exercise true")
	}
}

func TestCalorieHistoryToleratesNonArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"detail": "no history"}`))
	}))
	defer srv.Close()

	client := coach.NewClient(coach.Config{BaseURL: srv.URL})
	entries, raw, err := client.CalorieHistory(context.Background(), "Test", "test@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty entries, got %d", len(entries))
	}
	if len(raw) == 0 {
		t.Fatal("expected raw body to be preserved")
	}
}

func TestErrorCarriesBackendMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message": "profile not found"}`))
	}))
	defer srv.Close()

	client := coach.NewClient(coach.Config{BaseURL: srv.URL})
	_, err := client.DietPlan(context.Background(), "Test", "test@example.com")
	if err == nil {
		t.Fatal("expected error")
	}
	var coachErr *coach.Error
	if !errors.As(err, &coachErr) {
		t.Fatalf("expected *coach.Error, got %T", err)
	}
	if coachErr.StatusCode != http.StatusUnprocessableEntity || coachErr.Message != "profile not found" {
		t.Fatalf("unexpected error: %+v", coachErr)
	}
}
