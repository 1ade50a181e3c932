package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/propwatch/propwatch/internal/models"
	"github.com/propwatch/propwatch/pkg/logger"
)

// SlackConfig carries webhook and bot-token credentials. A channel may supply
// its own webhook_url in config; the bot token path is used when a channel
// names a slack channel instead.
type SlackConfig struct {
	WebhookURL string
	BotToken   string
}

// SlackTransport posts alerts as colored attachments, either to an incoming
// webhook or via chat.postMessage.
type SlackTransport struct {
	cfg        SlackConfig
	httpClient *http.Client
	log        *logger.Logger
}

func NewSlackTransport(cfg SlackConfig, log *logger.Logger) *SlackTransport {
	return &SlackTransport{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		log: log,
	}
}

var slackSeverityColors = map[models.Severity]string{
	models.SeverityInfo:     "#36a64f",
	models.SeverityWarning:  "#ffcc00",
	models.SeverityError:    "#ff6600",
	models.SeverityCritical: "#cc0000",
}

func (t *SlackTransport) Send(ctx context.Context, channel *models.NotificationChannel, alert *models.Alert) error {
	attachment := map[string]interface{}{
		"color":    slackSeverityColors[alert.Severity],
		"title":    fmt.Sprintf("%s alert: %s", alert.Severity, alert.AlertType),
		"text":     alert.Message,
		"footer":   alert.Component,
		"ts":       alert.CreatedAt.Unix(),
		"fallback": alert.Message,
	}

	webhookURL := channel.Config.String("webhook_url")
	if webhookURL == "" {
		webhookURL = t.cfg.WebhookURL
	}

	if webhookURL != "" {
		payload := map[string]interface{}{
			"attachments": []interface{}{attachment},
		}
		return t.post(ctx, webhookURL, payload, "")
	}

	slackChannel := channel.Config.String("channel")
	if t.cfg.BotToken == "" || slackChannel == "" {
		return fmt.Errorf("slack channel %s has neither webhook_url nor channel+bot token", channel.Name)
	}

	payload := map[string]interface{}{
		"channel":     slackChannel,
		"attachments": []interface{}{attachment},
	}
	return t.post(ctx, "https://slack.com/api/chat.postMessage", payload, t.cfg.BotToken)
}

func (t *SlackTransport) post(ctx context.Context, endpoint string, payload interface{}, token string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("slack request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("slack returned status %d", resp.StatusCode)
	}
	return nil
}
