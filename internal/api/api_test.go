package api_test

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"fitpulse/internal/api"
	"fitpulse/internal/coach"
	"fitpulse/internal/database"
	"fitpulse/internal/gate"
	"fitpulse/internal/models"
	"fitpulse/internal/store"

	"github.com/gofiber/fiber/v2"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := database.Initialize(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	return db
}

// fakeCoach serves the coach backend endpoints the handlers proxy to. The
// exercise validator says yes to any filename except "cat.jpg".
func fakeCoach(t *testing.T) *httptest.Server {
	today := strings.ToLower(time.Now().Weekday().String())

	mux := http.NewServeMux()
	mux.HandleFunc("/profile/workout-plan", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"week_number": 1, "workout_plan": {%q: {"focus": "push",
			"exercises": [
				{"name": "Bench Press", "sets": 3, "reps": "10"},
				{"name": "Shoulder Press", "sets": 3, "reps": "8"}
			]}}}`, today)
	})
	mux.HandleFunc("/profile/exercise/validate", func(w http.ResponseWriter, r *http.Request) {
		_, header, err := r.FormFile("file")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		fmt.Fprintf(w, `{"is_exercise": %t}`, header.Filename != "cat.jpg")
	})
	mux.HandleFunc("/profile/exercise/follow-up", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status": "recorded"}`)
	})
	mux.HandleFunc("/profile/calorie/history", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"id": "1", "created_at": "2024-03-04T10:00:00Z", "estimated_calories": 500},
			{"id": "2", "created_at": "2024-03-04T13:00:00Z", "food_analysis": {"estimated_calories": "300"}}
		]`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func setupTestApp(db *sql.DB, coachURL string) *fiber.App {
	app := fiber.New()
	cc := coach.NewClient(coach.Config{BaseURL: coachURL})
	api.SetupRoutes(app, db, cc)
	return app
}

func registerTestUser(t *testing.T, app *fiber.App) string {
	registerReq := models.RegisterRequest{
		Name:     "Test User",
		Email:    "test@example.com",
		Phone:    "+15550001111",
		Password: "password123",
	}
	body, _ := json.Marshal(registerReq)
	req := httptest.NewRequest("POST", "/api/auth/register", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 201 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		t.Fatalf("Expected status 201, got %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var authResp models.AuthResponse
	bodyBytes, _ := io.ReadAll(resp.Body)
	json.Unmarshal(bodyBytes, &authResp)
	if authResp.Token == "" {
		t.Fatal("Expected token in response")
	}
	return authResp.Token
}

func authedRequest(method, target, token string, payload any) *http.Request {
	var body io.Reader
	if payload != nil {
		data, _ := json.Marshal(payload)
		body = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

// imageUpload builds a multipart body with an image-typed file part, the way
// browsers submit camera captures.
func imageUpload(t *testing.T, filename string) (*bytes.Buffer, string) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", "image/jpeg")
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatal(err)
	}
	part.Write([]byte("fake-jpeg-bytes"))
	if err := writer.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, writer.FormDataContentType()
}

func TestRegisterAndLogin(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	app := setupTestApp(db, fakeCoach(t).URL)

	token := registerTestUser(t, app)
	if token == "" {
		t.Fatal("Expected token from registration")
	}

	loginReq := models.LoginRequest{
		Email:    "test@example.com",
		Password: "password123",
	}
	body, _ := json.Marshal(loginReq)
	req := httptest.NewRequest("POST", "/api/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		t.Fatalf("Expected status 200, got %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var loginResp models.AuthResponse
	bodyBytes, _ := io.ReadAll(resp.Body)
	json.Unmarshal(bodyBytes, &loginResp)
	if loginResp.Token == "" {
		t.Fatal("Expected token in response")
	}
	if loginResp.User.Email != "test@example.com" {
		t.Fatalf("Expected user email test@example.com, got %s", loginResp.User.Email)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	app := setupTestApp(db, fakeCoach(t).URL)
	registerTestUser(t, app)

	loginReq := models.LoginRequest{
		Email:    "test@example.com",
		Password: "wrong-password",
	}
	body, _ := json.Marshal(loginReq)
	req := httptest.NewRequest("POST", "/api/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 401 {
		t.Fatalf("Expected status 401, got %d", resp.StatusCode)
	}
}

func TestExerciseStatusDefaultsToPrompt(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	app := setupTestApp(db, fakeCoach(t).URL)
	token := registerTestUser(t, app)

	resp, err := app.Test(authedRequest("GET", "/api/exercise/status", token, nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var status struct {
		State string `json:"state"`
		Date  string `json:"date"`
	}
	bodyBytes, _ := io.ReadAll(resp.Body)
	json.Unmarshal(bodyBytes, &status)

	if status.State != "prompt_now" {
		t.Fatalf("Expected state prompt_now, got %s", status.State)
	}
	if status.Date != time.Now().Format("2006-01-02") {
		t.Fatalf("Expected today's date, got %s", status.Date)
	}
}

func TestSetReminderDefersPrompt(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	app := setupTestApp(db, fakeCoach(t).URL)
	token := registerTestUser(t, app)

	later := time.Now().Add(2 * time.Hour)
	if later.Day() != time.Now().Day() {
		t.Skip("reminder window crosses midnight")
	}

	body := models.SetReminderRequest{Time: later.Format("15:04")}
	resp, err := app.Test(authedRequest("POST", "/api/exercise/reminder", token, body))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 201 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		t.Fatalf("Expected status 201, got %d: %s", resp.StatusCode, string(bodyBytes))
	}

	resp, err = app.Test(authedRequest("GET", "/api/exercise/status", token, nil))
	if err != nil {
		t.Fatal(err)
	}
	var status struct {
		State string `json:"state"`
	}
	bodyBytes, _ := io.ReadAll(resp.Body)
	json.Unmarshal(bodyBytes, &status)
	if status.State != "deferred" {
		t.Fatalf("Expected state deferred, got %s", status.State)
	}
}

func TestSetReminderRejectsBadTime(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	app := setupTestApp(db, fakeCoach(t).URL)
	token := registerTestUser(t, app)

	for _, bad := range []string{"", "later", "25:00", "12:75"} {
		body := models.SetReminderRequest{Time: bad}
		resp, err := app.Test(authedRequest("POST", "/api/exercise/reminder", token, body))
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != 400 {
			t.Fatalf("Expected status 400 for time %q, got %d", bad, resp.StatusCode)
		}
	}
}

func TestFollowUpRequiresTicket(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	app := setupTestApp(db, fakeCoach(t).URL)
	token := registerTestUser(t, app)

	resp, err := app.Test(authedRequest("GET", "/api/exercise/followup", token, nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 403 {
		t.Fatalf("Expected status 403, got %d", resp.StatusCode)
	}

	var body struct {
		Redirect string `json:"redirect"`
	}
	bodyBytes, _ := io.ReadAll(resp.Body)
	json.Unmarshal(bodyBytes, &body)
	if body.Redirect != "verify" {
		t.Fatalf("Expected redirect verify, got %q", body.Redirect)
	}
}

func TestVerifyThenFollowUpFlow(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	app := setupTestApp(db, fakeCoach(t).URL)
	token := registerTestUser(t, app)

	// Verify with an exercise photo
	buf, contentType := imageUpload(t, "pushups.jpg")
	req := httptest.NewRequest("POST", "/api/exercise/verify", buf)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		t.Fatalf("Expected status 200, got %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var verifyResp struct {
		IsExercise bool `json:"is_exercise"`
		Ticket     struct {
			ID       string `json:"id"`
			IssuedAt int64  `json:"issued_at"`
		} `json:"ticket"`
	}
	bodyBytes, _ := io.ReadAll(resp.Body)
	json.Unmarshal(bodyBytes, &verifyResp)
	if !verifyResp.IsExercise {
		t.Fatal("Expected is_exercise true")
	}
	if verifyResp.Ticket.ID == "" || verifyResp.Ticket.IssuedAt == 0 {
		t.Fatal("Expected a stamped ticket")
	}

	// Ticket unlocks today's checklist
	resp, err = app.Test(authedRequest("GET", "/api/exercise/followup", token, nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		t.Fatalf("Expected status 200, got %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var checklist struct {
		Day       string                  `json:"day"`
		Exercises []models.ExerciseResult `json:"exercises"`
	}
	bodyBytes, _ = io.ReadAll(resp.Body)
	json.Unmarshal(bodyBytes, &checklist)
	if len(checklist.Exercises) != 2 {
		t.Fatalf("Expected 2 exercises, got %d", len(checklist.Exercises))
	}

	// Submit the checklist
	submitBody := map[string]any{
		"exercises": []models.ExerciseResult{
			{Name: "Bench Press", Completed: true},
			{Name: "Shoulder Press", Completed: false},
		},
	}
	resp, err = app.Test(authedRequest("POST", "/api/exercise/followup", token, submitBody))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 201 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		t.Fatalf("Expected status 201, got %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var submitResp struct {
		Success    bool                      `json:"success"`
		Submission models.FollowUpSubmission `json:"submission"`
	}
	bodyBytes, _ = io.ReadAll(resp.Body)
	json.Unmarshal(bodyBytes, &submitResp)
	if !submitResp.Success {
		t.Fatal("Expected success true")
	}
	if submitResp.Submission.CompletedExercises != 1 || submitResp.Submission.TotalExercises != 2 {
		t.Fatalf("Expected 1/2 completed, got %d/%d",
			submitResp.Submission.CompletedExercises, submitResp.Submission.TotalExercises)
	}

	// Gate now reports completed
	resp, err = app.Test(authedRequest("GET", "/api/exercise/status", token, nil))
	if err != nil {
		t.Fatal(err)
	}
	var status struct {
		State string `json:"state"`
	}
	bodyBytes, _ = io.ReadAll(resp.Body)
	json.Unmarshal(bodyBytes, &status)
	if status.State != "completed" {
		t.Fatalf("Expected state completed, got %s", status.State)
	}

	// The ticket was consumed: the checklist locks again
	resp, err = app.Test(authedRequest("GET", "/api/exercise/followup", token, nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 403 {
		t.Fatalf("Expected status 403 after submission, got %d", resp.StatusCode)
	}

	// Re-verifying the same day conflicts
	buf, contentType = imageUpload(t, "pushups.jpg")
	req = httptest.NewRequest("POST", "/api/exercise/verify", buf)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 409 {
		t.Fatalf("Expected status 409, got %d", resp.StatusCode)
	}
}

func TestVerifyRejectsNonExercisePhoto(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	app := setupTestApp(db, fakeCoach(t).URL)
	token := registerTestUser(t, app)

	buf, contentType := imageUpload(t, "cat.jpg")
	req := httptest.NewRequest("POST", "/api/exercise/verify", buf)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var verifyResp struct {
		IsExercise bool `json:"is_exercise"`
	}
	bodyBytes, _ := io.ReadAll(resp.Body)
	json.Unmarshal(bodyBytes, &verifyResp)
	if verifyResp.IsExercise {
		t.Fatal("Expected is_exercise false")
	}

	// No ticket was issued
	resp, err = app.Test(authedRequest("GET", "/api/exercise/followup", token, nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 403 {
		t.Fatalf("Expected status 403, got %d", resp.StatusCode)
	}
}

func TestCalorieSummary(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	app := setupTestApp(db, fakeCoach(t).URL)
	token := registerTestUser(t, app)

	resp, err := app.Test(authedRequest("GET", "/api/calories/summary", token, nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		t.Fatalf("Expected status 200, got %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var summary struct {
		Total   int `json:"total"`
		Buckets []struct {
			Date     string  `json:"date"`
			Calories float64 `json:"calories"`
			Entries  int     `json:"entries"`
		} `json:"buckets"`
	}
	bodyBytes, _ := io.ReadAll(resp.Body)
	json.Unmarshal(bodyBytes, &summary)

	if summary.Total != 800 {
		t.Fatalf("Expected total 800, got %d", summary.Total)
	}

	// The bucket split depends on the host timezone, so assert on the sums.
	var bucketCalories float64
	bucketEntries := 0
	for _, b := range summary.Buckets {
		bucketCalories += b.Calories
		bucketEntries += b.Entries
	}
	if bucketEntries != 2 {
		t.Fatalf("Expected 2 bucketed entries, got %d", bucketEntries)
	}
	if bucketCalories != 800 {
		t.Fatalf("Expected 800 bucketed calories, got %v", bucketCalories)
	}
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	app := setupTestApp(db, fakeCoach(t).URL)

	for _, target := range []string{
		"/api/exercise/status",
		"/api/calories/summary",
		"/api/profile",
	} {
		req := httptest.NewRequest("GET", target, nil)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != 401 {
			t.Fatalf("Expected status 401 for %s, got %d", target, resp.StatusCode)
		}
	}
}

func TestProcessDueReminders(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	st := store.New(db)

	insertUser := func(email string) int {
		res, err := db.Exec(
			"INSERT INTO users (name, email, phone, password_hash) VALUES (?, ?, ?, ?)",
			"Worker User", email, "+1555"+email, "x",
		)
		if err != nil {
			t.Fatal(err)
		}
		id, _ := res.LastInsertId()
		return int(id)
	}

	now := time.Date(2024, 3, 4, 18, 30, 0, 0, time.Local)
	today := gate.DateKey(now)

	dueUser := insertUser("due@example.com")
	st.SetReminder(dueUser, gate.ReminderRecord{Date: today, Time: "18:00"})

	notYetUser := insertUser("later@example.com")
	st.SetReminder(notYetUser, gate.ReminderRecord{Date: today, Time: "21:00"})

	doneUser := insertUser("done@example.com")
	st.SetReminder(doneUser, gate.ReminderRecord{Date: today, Time: "18:00"})
	st.SetFollowUp(doneUser, gate.FollowUpRecord{Date: today, Completed: true})

	// Neither push nor SMTP is configured, so delivery is a no-op; the
	// worker still marks due reminders notified.
	api.ProcessDueReminders(db, st, now)

	if rec := st.Reminder(dueUser); rec == nil || !rec.Notified {
		t.Fatalf("expected due reminder marked notified, got %+v", rec)
	}
	if rec := st.Reminder(notYetUser); rec == nil || rec.Notified {
		t.Fatalf("expected future reminder untouched, got %+v", rec)
	}
	if rec := st.Reminder(doneUser); rec == nil || rec.Notified {
		t.Fatalf("expected completed user's reminder untouched, got %+v", rec)
	}

	// One-shot: a second pass changes nothing
	api.ProcessDueReminders(db, st, now.Add(time.Minute))
	if rec := st.Reminder(notYetUser); rec == nil || rec.Notified {
		t.Fatalf("expected future reminder still untouched, got %+v", rec)
	}
}

func TestMigrateLegacyVerifyRecords(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	_, err := db.Exec(
		"INSERT INTO users (name, email, phone, password_hash) VALUES (?, ?, ?, ?)",
		"Migrator", "migrator@example.com", "+15550002222", "x",
	)
	if err != nil {
		t.Fatal(err)
	}
	var userID int
	if err := db.QueryRow("SELECT id FROM users WHERE email = ?", "migrator@example.com").Scan(&userID); err != nil {
		t.Fatal(err)
	}

	if _, err := db.Exec(
		"INSERT INTO user_records (user_id, name, value) VALUES (?, 'exercise_verify_success', '{}')",
		userID,
	); err != nil {
		t.Fatal(err)
	}

	if err := api.MigrateLegacyVerifyRecords(db); err != nil {
		t.Fatal(err)
	}

	var count int
	if err := db.QueryRow(
		"SELECT COUNT(*) FROM user_records WHERE user_id = ? AND name = 'exercise_verify'", userID,
	).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("Expected 1 renamed record, got %d", count)
	}

	// Idempotent
	if err := api.MigrateLegacyVerifyRecords(db); err != nil {
		t.Fatal(err)
	}
}
