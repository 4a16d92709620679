package api

import (
	"bytes"
	"crypto/tls"
	"database/sql"
	"fmt"
	"html/template"
	"log"
	"net/smtp"
	"os"
	"strconv"
	"strings"
	"time"
)

type reminderEmailData struct {
	RecipientName string
	ReminderTime  string
	AppURL        string
	Year          int
}

var reminderEmailTemplate = template.Must(template.New("reminder").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #1f2933; margin: 0; padding: 24px;">
  <div style="max-width: 520px; margin: 0 auto;">
    <h2 style="color: #0f766e;">Time for your exercise check-in</h2>
    <p>Hi {{.RecipientName}},</p>
    <p>You asked to be reminded at <strong>{{.ReminderTime}}</strong> to log today's
    workout. Your follow-up for today is still open.</p>
    <p style="margin: 24px 0;">
      <a href="{{.AppURL}}/exercise/followup"
         style="background: #0f766e; color: #ffffff; padding: 12px 20px; border-radius: 6px; text-decoration: none;">
        Log today's exercises
      </a>
    </p>
    <p style="color: #6b7280; font-size: 13px;">You get this reminder once per day,
    only on days you set one.</p>
    <p style="color: #9ca3af; font-size: 12px;">&copy; {{.Year}} FitPulse</p>
  </div>
</body>
</html>`))

// SMTPConfig holds SMTP server configuration
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	UseTLS   bool
}

// GetSMTPConfig reads SMTP configuration from environment variables
func GetSMTPConfig() (*SMTPConfig, error) {
	host := os.Getenv("SMTP_HOST")
	portStr := os.Getenv("SMTP_PORT")
	username := os.Getenv("SMTP_USER")
	password := os.Getenv("SMTP_PASS")
	from := os.Getenv("SMTP_FROM")
	useTLSStr := os.Getenv("SMTP_USE_TLS")

	if host == "" {
		return nil, fmt.Errorf("SMTP_HOST not configured")
	}

	port := 587 // Default SMTP port
	if portStr != "" {
		var err error
		port, err = strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("invalid SMTP_PORT: %w", err)
		}
	}

	if from == "" {
		from = "noreply@fitpulse.app"
	}

	useTLS := true
	if useTLSStr != "" {
		useTLS = strings.ToLower(useTLSStr) != "false"
	}

	return &SMTPConfig{
		Host:     host,
		Port:     port,
		Username: username,
		Password: password,
		From:     from,
		UseTLS:   useTLS,
	}, nil
}

// SendReminderEmail emails the user's daily follow-up reminder. It is the
// fallback channel when web push is not configured, and quietly does nothing
// when SMTP is not configured either.
func SendReminderEmail(db *sql.DB, userID int, reminderTime string) error {
	config, err := GetSMTPConfig()
	if err != nil {
		log.Printf("SMTP not configured, skipping email: %v", err)
		return nil
	}

	var name, email string
	err = db.QueryRow("SELECT name, email FROM users WHERE id = ?", userID).Scan(&name, &email)
	if err != nil {
		return fmt.Errorf("failed to look up user %d: %w", userID, err)
	}
	if name == "" {
		name = "there"
	}

	data := reminderEmailData{
		RecipientName: name,
		ReminderTime:  reminderTime,
		AppURL:        getAppURL(),
		Year:          time.Now().Year(),
	}

	var buf bytes.Buffer
	if err := reminderEmailTemplate.Execute(&buf, data); err != nil {
		return fmt.Errorf("failed to render reminder email: %w", err)
	}

	return sendSMTPEmail(config, email, "Your exercise follow-up reminder", buf.String())
}

// sendSMTPEmail sends an email via SMTP
func sendSMTPEmail(config *SMTPConfig, to, subject, htmlBody string) error {
	// Build email message with proper MIME multipart format
	boundary := "----=_Part_0_1234567890.1234567890"

	message := fmt.Sprintf("From: %s\r\n", config.From)
	message += fmt.Sprintf("To: %s\r\n", to)
	message += fmt.Sprintf("Subject: %s\r\n", subject)
	message += "MIME-Version: 1.0\r\n"
	message += fmt.Sprintf("Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary)
	message += "\r\n"

	// Plain text version
	message += fmt.Sprintf("--%s\r\n", boundary)
	message += "Content-Type: text/plain; charset=UTF-8\r\n"
	message += "Content-Transfer-Encoding: 7bit\r\n"
	message += "\r\n"
	message += "Please view this email in an HTML-capable email client.\r\n"
	message += "\r\n"

	// HTML version
	message += fmt.Sprintf("--%s\r\n", boundary)
	message += "Content-Type: text/html; charset=UTF-8\r\n"
	message += "Content-Transfer-Encoding: 7bit\r\n"
	message += "\r\n"
	message += htmlBody
	message += "\r\n"
	message += fmt.Sprintf("--%s--\r\n", boundary)

	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)

	var auth smtp.Auth
	if config.Username != "" && config.Password != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}

	// Use TLS if configured
	if config.UseTLS {
		return sendMailTLS(addr, auth, config.From, []string{to}, []byte(message), config.Host)
	}

	// Standard SMTP without TLS
	return smtp.SendMail(addr, auth, config.From, []string{to}, []byte(message))
}

// sendMailTLS sends email with TLS encryption
func sendMailTLS(addr string, auth smtp.Auth, from string, to []string, msg []byte, host string) error {
	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer client.Close()

	tlsConfig := &tls.Config{
		ServerName: host,
	}
	if err = client.StartTLS(tlsConfig); err != nil {
		return fmt.Errorf("failed to start TLS: %w", err)
	}

	if auth != nil {
		if err = client.Auth(auth); err != nil {
			return fmt.Errorf("authentication failed: %w", err)
		}
	}

	if err = client.Mail(from); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}

	for _, recipient := range to {
		if err = client.Rcpt(recipient); err != nil {
			return fmt.Errorf("failed to set recipient: %w", err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to get data writer: %w", err)
	}
	defer w.Close()

	if _, err = w.Write(msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	return nil
}

// getAppURL returns the application URL from environment or default
func getAppURL() string {
	url := os.Getenv("APP_URL")
	if url == "" {
		url = "http://localhost:3000"
	}
	return url
}
