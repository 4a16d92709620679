package models

import "time"

type User struct {
	ID                  int       `json:"id"`
	Name                string    `json:"name"`
	Email               string    `json:"email"`
	Phone               string    `json:"phone,omitempty"`
	PasswordHash        string    `json:"-"`
	OnboardingCompleted bool      `json:"onboarding_completed"`
	CreatedAt           time.Time `json:"created_at"`
}

// Profile holds the onboarding answers; the same payload is forwarded to the
// coach backend, which derives plans from it.
type Profile struct {
	UserID        int       `json:"user_id"`
	Age           int       `json:"age"`
	Gender        string    `json:"gender,omitempty"`
	HeightCm      float64   `json:"height"`
	WeightKg      float64   `json:"weight"`
	Goal          string    `json:"goal"`
	ActivityLevel string    `json:"activity_level"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// FollowUpEntry is one submitted follow-up, as kept in history.
type FollowUpEntry struct {
	ID                 int       `json:"id"`
	UserID             int       `json:"user_id"`
	Date               string    `json:"date"`
	Day                string    `json:"day"`
	TotalExercises     int       `json:"total_exercises"`
	CompletedExercises int       `json:"completed_exercises"`
	CompletionRate     float64   `json:"completion_rate"`
	CreatedAt          time.Time `json:"created_at"`
}

type PushSubscription struct {
	ID       int    `json:"id"`
	UserID   int    `json:"user_id"`
	Endpoint string `json:"endpoint"`
	P256dh   string `json:"p256dh"`
	Auth     string `json:"auth"`
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
	Remember bool   `json:"remember,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Remember bool   `json:"remember,omitempty"`
}

type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type ProfileRequest struct {
	Age           int     `json:"age"`
	Gender        string  `json:"gender,omitempty"`
	HeightCm      float64 `json:"height"`
	WeightKg      float64 `json:"weight"`
	Goal          string  `json:"goal"`
	ActivityLevel string  `json:"activity_level"`
}

type SetReminderRequest struct {
	Time string `json:"time"`
}

// ExerciseResult is one checklist row of a follow-up submission.
type ExerciseResult struct {
	Name      string `json:"name"`
	Sets      int    `json:"sets,omitempty"`
	Reps      string `json:"reps,omitempty"`
	Rest      string `json:"rest,omitempty"`
	Completed bool   `json:"completed"`
}

// FollowUpSubmission is the payload forwarded to the coach backend when the
// user submits the daily checklist.
type FollowUpSubmission struct {
	Email              string           `json:"email"`
	Date               string           `json:"date"`
	Day                string           `json:"day"`
	Exercises          []ExerciseResult `json:"exercises"`
	TotalExercises     int              `json:"total_exercises"`
	CompletedExercises int              `json:"completed_exercises"`
	CompletionRate     float64          `json:"completion_rate"`
}

type CustomDietRequest struct {
	Ingredients []string `json:"ingredients"`
}

type GymSuggestionRequest struct {
	Location string `json:"location,omitempty"`
}
