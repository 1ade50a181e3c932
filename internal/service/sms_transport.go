package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/propwatch/propwatch/internal/models"
	"github.com/propwatch/propwatch/pkg/logger"
)

const smsMaxLength = 160

// TwilioConfig carries Twilio REST API credentials.
type TwilioConfig struct {
	AccountSID  string
	AuthToken   string
	PhoneNumber string
}

// SMSTransport sends alert texts through the Twilio messages API. Messages
// are truncated to a single SMS segment.
type SMSTransport struct {
	cfg        TwilioConfig
	baseURL    string
	httpClient *http.Client
	log        *logger.Logger
}

func NewSMSTransport(cfg TwilioConfig, log *logger.Logger) *SMSTransport {
	return &SMSTransport{
		cfg:     cfg,
		baseURL: "https://api.twilio.com",
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		log: log,
	}
}

func (t *SMSTransport) Send(ctx context.Context, channel *models.NotificationChannel, alert *models.Alert) error {
	if t.cfg.AccountSID == "" || t.cfg.AuthToken == "" {
		return fmt.Errorf("sms transport is not configured")
	}

	recipients := channel.Config.StringList("phone_numbers")
	if len(recipients) == 0 {
		return fmt.Errorf("sms channel %s has no phone_numbers", channel.Name)
	}

	text := fmt.Sprintf("[%s] %s: %s", strings.ToUpper(string(alert.Severity)), alert.Component, alert.Message)
	// Truncate on rune boundaries so a multi-byte character at the cut point
	// cannot produce invalid UTF-8.
	if runes := []rune(text); len(runes) > smsMaxLength {
		text = string(runes[:smsMaxLength-3]) + "..."
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", t.baseURL, t.cfg.AccountSID)

	var lastErr error
	delivered := 0
	for _, to := range recipients {
		form := url.Values{}
		form.Set("From", t.cfg.PhoneNumber)
		form.Set("To", to)
		form.Set("Body", text)

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return err
		}
		req.SetBasicAuth(t.cfg.AccountSID, t.cfg.AuthToken)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := t.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("twilio request failed: %w", err)
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 300 {
			lastErr = fmt.Errorf("twilio returned status %d", resp.StatusCode)
			continue
		}
		delivered++
	}

	if delivered == 0 && lastErr != nil {
		return lastErr
	}
	return nil
}
