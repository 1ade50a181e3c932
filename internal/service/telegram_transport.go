package service

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"

	"github.com/propwatch/propwatch/internal/models"
	"github.com/propwatch/propwatch/pkg/logger"
)

var telegramSeverityIcons = map[models.Severity]string{
	models.SeverityInfo:     "ℹ️",
	models.SeverityWarning:  "⚠️",
	models.SeverityError:    "🚨",
	models.SeverityCritical: "🔥",
}

// TelegramTransport sends alerts to chat IDs listed in the channel config.
type TelegramTransport struct {
	bot *bot.Bot
	log *logger.Logger
}

func NewTelegramTransport(token string, log *logger.Logger) (*TelegramTransport, error) {
	b, err := bot.New(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &TelegramTransport{bot: b, log: log}, nil
}

func (t *TelegramTransport) Send(ctx context.Context, channel *models.NotificationChannel, alert *models.Alert) error {
	chatIDs := channel.Config.StringList("chat_ids")
	if chatID := channel.Config.Int64("chat_id"); chatID != 0 {
		chatIDs = append(chatIDs, fmt.Sprintf("%d", chatID))
	}
	if len(chatIDs) == 0 {
		return fmt.Errorf("telegram channel %s has no chat_ids", channel.Name)
	}

	text := fmt.Sprintf("%s *%s* on %s\n%s",
		telegramSeverityIcons[alert.Severity], alert.AlertType, alert.Component, alert.Message)

	var lastErr error
	delivered := 0
	for _, chatID := range chatIDs {
		_, err := t.bot.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   text,
		})
		if err != nil {
			lastErr = err
			continue
		}
		delivered++
	}

	if delivered == 0 && lastErr != nil {
		return fmt.Errorf("telegram send failed: %w", lastErr)
	}
	return nil
}
