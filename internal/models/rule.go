package models

import (
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ConditionType selects which condition variant a rule carries.
type ConditionType string

const (
	ConditionThreshold ConditionType = "threshold"
	ConditionFrequency ConditionType = "frequency"
	ConditionPattern   ConditionType = "pattern"
)

// ThresholdCondition compares the latest value of a metric to a threshold.
type ThresholdCondition struct {
	MetricName string  `bson:"metric_name" json:"metric_name"`
	Operator   string  `bson:"operator" json:"operator"`
	Threshold  float64 `bson:"threshold" json:"threshold"`
}

// FrequencyCondition fires when at least Count events of EventType occurred
// within the last PeriodMinutes.
type FrequencyCondition struct {
	EventType     string `bson:"event_type" json:"event_type"`
	Count         int64  `bson:"count" json:"count"`
	PeriodMinutes int    `bson:"period_minutes" json:"period_minutes"`
}

// PatternCondition fires when a recent event message matches the pattern.
type PatternCondition struct {
	Pattern string `bson:"pattern" json:"pattern"`
	Source  string `bson:"source,omitempty" json:"source,omitempty"`
}

var validOperators = map[string]bool{
	">": true, ">=": true, "<": true, "<=": true, "==": true, "!=": true,
}

// AlertCondition is a closed tagged variant; exactly one payload must be set
// and it must match Type.
type AlertCondition struct {
	Type      ConditionType       `bson:"type" json:"type"`
	Threshold *ThresholdCondition `bson:"threshold,omitempty" json:"threshold,omitempty"`
	Frequency *FrequencyCondition `bson:"frequency,omitempty" json:"frequency,omitempty"`
	Pattern   *PatternCondition   `bson:"pattern,omitempty" json:"pattern,omitempty"`
}

func (c AlertCondition) Validate() error {
	switch c.Type {
	case ConditionThreshold:
		if c.Threshold == nil {
			return fmt.Errorf("threshold condition missing payload")
		}
		if c.Threshold.MetricName == "" {
			return fmt.Errorf("threshold condition requires metric_name")
		}
		if !validOperators[c.Threshold.Operator] {
			return fmt.Errorf("invalid operator %q", c.Threshold.Operator)
		}
	case ConditionFrequency:
		if c.Frequency == nil {
			return fmt.Errorf("frequency condition missing payload")
		}
		if c.Frequency.EventType == "" {
			return fmt.Errorf("frequency condition requires event_type")
		}
		if c.Frequency.Count <= 0 || c.Frequency.PeriodMinutes <= 0 {
			return fmt.Errorf("frequency condition requires positive count and period")
		}
	case ConditionPattern:
		if c.Pattern == nil {
			return fmt.Errorf("pattern condition missing payload")
		}
		if _, err := regexp.Compile(c.Pattern.Pattern); err != nil {
			return fmt.Errorf("invalid pattern: %w", err)
		}
	default:
		return fmt.Errorf("unknown condition type %q", c.Type)
	}
	return nil
}

// AlertRule is an operator-defined rule evaluated by the alert engine.
type AlertRule struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name            string             `bson:"name" json:"name"`
	AlertType       string             `bson:"alert_type" json:"alert_type"`
	Severity        Severity           `bson:"severity" json:"severity"`
	Condition       AlertCondition     `bson:"condition" json:"condition"`
	Component       string             `bson:"component,omitempty" json:"component,omitempty"`
	Enabled         bool               `bson:"enabled" json:"enabled"`
	CooldownMinutes int                `bson:"cooldown_minutes" json:"cooldown_minutes"`
	LastTriggered   *time.Time         `bson:"last_triggered,omitempty" json:"last_triggered,omitempty"`
	CreatedAt       time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time          `bson:"updated_at" json:"updated_at"`
}

func (r *AlertRule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("rule name is required")
	}
	if r.AlertType == "" {
		return fmt.Errorf("alert_type is required")
	}
	if !r.Severity.Valid() {
		return fmt.Errorf("invalid severity %q", r.Severity)
	}
	if r.CooldownMinutes < 0 {
		return fmt.Errorf("cooldown_minutes must not be negative")
	}
	return r.Condition.Validate()
}
