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

// WebhookTransport POSTs the full alert as JSON to a channel-configured URL.
type WebhookTransport struct {
	httpClient *http.Client
	log        *logger.Logger
}

func NewWebhookTransport(log *logger.Logger) *WebhookTransport {
	return &WebhookTransport{
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		log: log,
	}
}

func (t *WebhookTransport) Send(ctx context.Context, channel *models.NotificationChannel, alert *models.Alert) error {
	endpoint := channel.Config.String("url")
	if endpoint == "" {
		return fmt.Errorf("webhook channel %s has no url", channel.Name)
	}

	body, err := json.Marshal(alert)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if secret := channel.Config.String("auth_header"); secret != "" {
		req.Header.Set("Authorization", secret)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
