package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Well-known event types consumed by frequency and pattern rules.
const (
	EventTypeAPIError   = "api_error"
	EventTypeAPIRequest = "api_request"
	EventTypeETLSuccess = "etl_success"
	EventTypeETLFailure = "etl_failure"
)

// Event is a qualifying occurrence (API error, ETL outcome) recorded for rule
// evaluation and reporting.
type Event struct {
	ID        primitive.ObjectID     `bson:"_id,omitempty" json:"id"`
	Type      string                 `bson:"type" json:"type"`
	Component string                 `bson:"component,omitempty" json:"component,omitempty"`
	Message   string                 `bson:"message,omitempty" json:"message,omitempty"`
	Details   map[string]interface{} `bson:"details,omitempty" json:"details,omitempty"`
	Timestamp time.Time              `bson:"timestamp" json:"timestamp"`
}

// AlertEvent is the message published to the events exchange when an alert
// fires, consumed by downstream bots and dashboards.
type AlertEvent struct {
	Type      string                 `json:"type"`
	Component string                 `json:"component,omitempty"`
	Message   string                 `json:"message"`
	Priority  string                 `json:"priority"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}
