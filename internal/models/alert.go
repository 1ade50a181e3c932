package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Severity of an alert, ordered info < warning < error < critical.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityInfo:     1,
	SeverityWarning:  2,
	SeverityError:    3,
	SeverityCritical: 4,
}

// Rank returns the ordinal position of the severity, 0 for unknown values.
func (s Severity) Rank() int {
	return severityRank[s]
}

func (s Severity) Valid() bool {
	_, ok := severityRank[s]
	return ok
}

// AtLeast reports whether s is at or above min on the ordinal scale.
func (s Severity) AtLeast(min Severity) bool {
	return s.Rank() >= min.Rank()
}

// AlertStatus lifecycle: active -> acknowledged -> resolved, or
// active -> resolved directly. Transitions are monotonic.
type AlertStatus string

const (
	AlertStatusActive       AlertStatus = "active"
	AlertStatusAcknowledged AlertStatus = "acknowledged"
	AlertStatusResolved     AlertStatus = "resolved"
)

// Alert is a fired alert record.
type Alert struct {
	ID             primitive.ObjectID     `bson:"_id,omitempty" json:"id"`
	AlertType      string                 `bson:"alert_type" json:"alert_type"`
	Severity       Severity               `bson:"severity" json:"severity"`
	Component      string                 `bson:"component" json:"component"`
	Message        string                 `bson:"message" json:"message"`
	Details        map[string]interface{} `bson:"details,omitempty" json:"details,omitempty"`
	Status         AlertStatus            `bson:"status" json:"status"`
	RuleID         *primitive.ObjectID    `bson:"rule_id,omitempty" json:"rule_id,omitempty"`
	CreatedAt      time.Time              `bson:"created_at" json:"created_at"`
	AcknowledgedAt *time.Time             `bson:"acknowledged_at,omitempty" json:"acknowledged_at,omitempty"`
	AcknowledgedBy string                 `bson:"acknowledged_by,omitempty" json:"acknowledged_by,omitempty"`
	ResolvedAt     *time.Time             `bson:"resolved_at,omitempty" json:"resolved_at,omitempty"`
}

// AlertSummary is an aggregate view over stored alerts.
type AlertSummary struct {
	TotalAlerts int64            `bson:"total_alerts" json:"total_alerts"`
	ActiveCount int64            `bson:"active_count" json:"active_count"`
	BySeverity  map[string]int64 `bson:"by_severity" json:"by_severity"`
	ByComponent map[string]int64 `bson:"by_component" json:"by_component"`
}
