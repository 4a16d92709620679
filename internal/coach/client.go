// Package coach is the HTTP client for the external AI coach backend. All
// plan generation, image analysis and weekly analysis live there; this
// client only moves JSON and image uploads back and forth.
package coach

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"fitpulse/internal/calories"
	"fitpulse/internal/models"
)

type Config struct {
	BaseURL string
	Timeout time.Duration
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Error is a non-2xx answer from the coach backend, carrying whatever
// message it supplied.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("coach backend returned %d: %s", e.StatusCode, e.Message)
}

func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "http://localhost:8000"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// identity is the {name, email} pair most coach endpoints key on.
type identity struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

func (c *Client) SubmitProfile(ctx context.Context, payload any) (json.RawMessage, error) {
	return c.doJSON(ctx, http.MethodPost, "/profile", payload)
}

func (c *Client) UpdateProfile(ctx context.Context, payload any) (json.RawMessage, error) {
	return c.doJSON(ctx, http.MethodPatch, "/profile/update", payload)
}

func (c *Client) ProfileSummary(ctx context.Context, name, email string) (json.RawMessage, error) {
	return c.doJSON(ctx, http.MethodPost, "/profile/summary", identity{Name: name, Email: email})
}

func (c *Client) DietPlan(ctx context.Context, name, email string) (json.RawMessage, error) {
	return c.doJSON(ctx, http.MethodPost, "/profile/diet-plan", identity{Name: name, Email: email})
}

func (c *Client) DietHistory(ctx context.Context, name, email string) (json.RawMessage, error) {
	return c.doJSON(ctx, http.MethodPost, "/profile/diet-history", identity{Name: name, Email: email})
}

func (c *Client) CustomDiet(ctx context.Context, email string, ingredients []string) (json.RawMessage, error) {
	body := struct {
		Email       string   `json:"email"`
		Ingredients []string `json:"ingredients"`
	}{Email: email, Ingredients: ingredients}
	return c.doJSON(ctx, http.MethodPost, "/profile/custom-diet", body)
}

func (c *Client) GymSuggestion(ctx context.Context, email string) (json.RawMessage, error) {
	return c.doJSON(ctx, http.MethodPost, "/profile/gym-suggestion", identity{Email: email})
}

func (c *Client) Chat(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	return c.doJSON(ctx, http.MethodPost, "/profile/chat/", payload)
}

func (c *Client) Analysis(ctx context.Context, email, weekStart, weekEnd string) (json.RawMessage, error) {
	body := struct {
		Email     string `json:"email"`
		WeekStart string `json:"week_start"`
		WeekEnd   string `json:"week_end"`
	}{Email: email, WeekStart: weekStart, WeekEnd: weekEnd}
	return c.doJSON(ctx, http.MethodPost, "/profile/analysis", body)
}

// WorkoutExercise is one prescribed exercise of a workout day. Sets and reps
// come back in loose shapes depending on the plan generation, so reps and
// rest stay strings.
type WorkoutExercise struct {
	Name string `json:"name"`
	Sets int    `json:"sets,omitempty"`
	Reps string `json:"reps,omitempty"`
	Rest string `json:"rest,omitempty"`
}

type WorkoutDay struct {
	Focus     string            `json:"focus,omitempty"`
	Exercises []WorkoutExercise `json:"exercises"`
}

// WorkoutPlanResult is the decoded weekly plan plus the raw body for
// pass-through responses.
type WorkoutPlanResult struct {
	WeekNumber int                   `json:"week_number"`
	Days       map[string]WorkoutDay `json:"workout_plan"`
	Raw        json.RawMessage       `json:"-"`
}

func (c *Client) WorkoutPlan(ctx context.Context, name, email string) (*WorkoutPlanResult, error) {
	raw, err := c.doJSON(ctx, http.MethodPost, "/profile/workout-plan", identity{Name: name, Email: email})
	if err != nil {
		return nil, err
	}
	result := &WorkoutPlanResult{Raw: raw}
	if err := json.Unmarshal(raw, result); err != nil {
		return nil, fmt.Errorf("decoding workout plan: %w", err)
	}
	return result, nil
}

func (c *Client) WorkoutPlanPDF(ctx context.Context, email string) ([]byte, error) {
	body, err := json.Marshal(identity{Email: email})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/profile/workout-plan/pdf-download", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, responseError(resp.StatusCode, data)
	}
	return data, nil
}

func (c *Client) DetectCalories(ctx context.Context, filename string, file io.Reader, name, email string) (json.RawMessage, error) {
	fields := map[string]string{"name": name, "email": email}
	return c.doMultipart(ctx, "/profile/calorie/detect", filename, file, fields)
}

// CalorieHistory returns the decoded entry list together with the raw body.
// A non-array answer decodes as an empty list rather than an error.
func (c *Client) CalorieHistory(ctx context.Context, name, email string) ([]calories.Entry, json.RawMessage, error) {
	raw, err := c.doJSON(ctx, http.MethodPost, "/profile/calorie/history", identity{Name: name, Email: email})
	if err != nil {
		return nil, nil, err
	}
	var entries []calories.Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		entries = []calories.Entry{}
	}
	return entries, raw, nil
}

func (c *Client) DeleteCalorieEntry(ctx context.Context, id, name, email string) (json.RawMessage, error) {
	body := struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}{ID: id, Name: name, Email: email}
	return c.doJSON(ctx, http.MethodDelete, "/profile/calorie/delete", body)
}

// ValidationResult is the coach's verdict on an exercise photo.
type ValidationResult struct {
	IsExercise bool            `json:"is_exercise"`
	Raw        json.RawMessage `json:"-"`
}

func (c *Client) ValidateExercise(ctx context.Context, filename string, file io.Reader, email string) (*ValidationResult, error) {
	raw, err := c.doMultipart(ctx, "/profile/exercise/validate", filename, file, map[string]string{"email": email})
	if err != nil {
		return nil, err
	}
	result := &ValidationResult{Raw: raw}
	if err := json.Unmarshal(raw, result); err != nil {
		return nil, fmt.Errorf("decoding validation result: %w", err)
	}
	return result, nil
}

func (c *Client) SubmitFollowUp(ctx context.Context, submission models.FollowUpSubmission) (json.RawMessage, error) {
	return c.doJSON(ctx, http.MethodPost, "/profile/exercise/follow-up", submission)
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload any) (json.RawMessage, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req)
}

func (c *Client) doMultipart(ctx context.Context, path, filename string, file io.Reader, fields map[string]string) (json.RawMessage, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, err
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return c.do(req)
}

func (c *Client) do(req *http.Request) (json.RawMessage, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, responseError(resp.StatusCode, data)
	}
	return json.RawMessage(data), nil
}

func responseError(status int, body []byte) error {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	message := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			message = payload.Message
		} else if payload.Error != "" {
			message = payload.Error
		}
	}
	if message == "" {
		message = http.StatusText(status)
	}
	return &Error{StatusCode: status, Message: message}
}
