package models

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ChannelType is the transport behind a notification channel.
type ChannelType string

const (
	ChannelEmail    ChannelType = "email"
	ChannelSMS      ChannelType = "sms"
	ChannelSlack    ChannelType = "slack"
	ChannelWebhook  ChannelType = "webhook"
	ChannelTelegram ChannelType = "telegram"
)

var validChannelTypes = map[ChannelType]bool{
	ChannelEmail:    true,
	ChannelSMS:      true,
	ChannelSlack:    true,
	ChannelWebhook:  true,
	ChannelTelegram: true,
}

func (t ChannelType) Valid() bool { return validChannelTypes[t] }

// ChannelConfig is a free-form per-channel configuration blob. Lookups are
// defensive: missing or mistyped values degrade to zero values.
type ChannelConfig map[string]interface{}

func (c ChannelConfig) String(key string) string {
	if c == nil {
		return ""
	}
	if s, ok := c[key].(string); ok {
		return s
	}
	return ""
}

func (c ChannelConfig) StringList(key string) []string {
	if c == nil {
		return nil
	}
	switch v := c[key].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func (c ChannelConfig) Int64(key string) int64 {
	if c == nil {
		return 0
	}
	switch v := c[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

// NotificationChannel is a configured delivery target for alerts.
type NotificationChannel struct {
	ID      primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name    string             `bson:"name" json:"name"`
	Type    ChannelType        `bson:"type" json:"type"`
	Config  ChannelConfig      `bson:"config,omitempty" json:"config,omitempty"`
	Enabled bool               `bson:"enabled" json:"enabled"`
}

func (ch *NotificationChannel) Validate() error {
	if ch.Name == "" {
		return fmt.Errorf("channel name is required")
	}
	if !ch.Type.Valid() {
		return fmt.Errorf("unknown channel type %q", ch.Type)
	}
	if ch.Type == ChannelEmail && len(ch.Config.StringList("recipients")) == 0 {
		return fmt.Errorf("email channel requires recipients")
	}
	return nil
}

// NotificationMapping routes alerts of a type (or '*' wildcard) at or above
// MinSeverity to a channel.
type NotificationMapping struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	AlertType   string             `bson:"alert_type" json:"alert_type"`
	MinSeverity Severity           `bson:"min_severity" json:"min_severity"`
	ChannelID   primitive.ObjectID `bson:"channel_id" json:"channel_id"`
	Enabled     bool               `bson:"enabled" json:"enabled"`
}

func (m *NotificationMapping) Validate() error {
	if m.AlertType == "" {
		return fmt.Errorf("alert_type is required (use '*' for all)")
	}
	if !m.MinSeverity.Valid() {
		return fmt.Errorf("invalid min_severity %q", m.MinSeverity)
	}
	if m.ChannelID.IsZero() {
		return fmt.Errorf("channel_id is required")
	}
	return nil
}
