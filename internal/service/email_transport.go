package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/propwatch/propwatch/internal/models"
	"github.com/propwatch/propwatch/pkg/logger"
)

// EmailConfig carries SMTP and SendGrid credentials for the email transport.
type EmailConfig struct {
	SMTPHost       string
	SMTPPort       int
	SMTPUsername   string
	SMTPPassword   string
	FromEmail      string
	SendGridAPIKey string
}

// EmailTransport sends alert emails over SMTP, falling back to the SendGrid
// HTTP API when SMTP is not configured or fails.
type EmailTransport struct {
	cfg        EmailConfig
	httpClient *http.Client
	log        *logger.Logger
}

func NewEmailTransport(cfg EmailConfig, log *logger.Logger) *EmailTransport {
	return &EmailTransport{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		log: log,
	}
}

func (t *EmailTransport) Send(ctx context.Context, channel *models.NotificationChannel, alert *models.Alert) error {
	recipients := channel.Config.StringList("recipients")
	if len(recipients) == 0 {
		return fmt.Errorf("email channel %s has no recipients", channel.Name)
	}

	subject := fmt.Sprintf("[%s] %s alert: %s", strings.ToUpper(string(alert.Severity)), alert.Component, alert.AlertType)
	body := renderAlertHTML(alert)

	if t.cfg.SMTPHost != "" {
		if err := t.sendSMTP(recipients, subject, body); err == nil {
			return nil
		} else if t.cfg.SendGridAPIKey == "" {
			return err
		} else {
			t.log.WithError(err).Warn("SMTP delivery failed, falling back to SendGrid")
		}
	}

	if t.cfg.SendGridAPIKey != "" {
		return t.sendSendGrid(ctx, recipients, subject, body)
	}

	return fmt.Errorf("email transport has neither SMTP nor SendGrid configured")
}

func (t *EmailTransport) sendSMTP(recipients []string, subject, htmlBody string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", t.cfg.FromEmail)
	m.SetHeader("To", recipients...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)

	d := gomail.NewDialer(t.cfg.SMTPHost, t.cfg.SMTPPort, t.cfg.SMTPUsername, t.cfg.SMTPPassword)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send failed: %w", err)
	}
	return nil
}

func (t *EmailTransport) sendSendGrid(ctx context.Context, recipients []string, subject, htmlBody string) error {
	tos := make([]map[string]string, 0, len(recipients))
	for _, r := range recipients {
		tos = append(tos, map[string]string{"email": r})
	}

	payload := map[string]interface{}{
		"personalizations": []map[string]interface{}{
			{"to": tos},
		},
		"from":    map[string]string{"email": t.cfg.FromEmail},
		"subject": subject,
		"content": []map[string]string{
			{"type": "text/html", "value": htmlBody},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		"https://api.sendgrid.com/v3/mail/send", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+t.cfg.SendGridAPIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sendgrid request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid returned status %d", resp.StatusCode)
	}
	return nil
}

// renderAlertHTML renders the alert body with a details table. The same
// renderer serves manual test sends. Alert messages and details carry
// arbitrary text, so every value is escaped.
func renderAlertHTML(alert *models.Alert) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("<h2>%s</h2>", html.EscapeString(alert.Message)))
	b.WriteString("<table border=\"1\" cellpadding=\"4\" cellspacing=\"0\">")
	b.WriteString(fmt.Sprintf("<tr><td>Severity</td><td>%s</td></tr>", html.EscapeString(string(alert.Severity))))
	b.WriteString(fmt.Sprintf("<tr><td>Component</td><td>%s</td></tr>", html.EscapeString(alert.Component)))
	b.WriteString(fmt.Sprintf("<tr><td>Type</td><td>%s</td></tr>", html.EscapeString(alert.AlertType)))
	b.WriteString(fmt.Sprintf("<tr><td>Created</td><td>%s</td></tr>", alert.CreatedAt.Format(time.RFC3339)))
	for key, value := range alert.Details {
		b.WriteString(fmt.Sprintf("<tr><td>%s</td><td>%s</td></tr>",
			html.EscapeString(key), html.EscapeString(fmt.Sprintf("%v", value))))
	}
	b.WriteString("</table>")
	return b.String()
}
