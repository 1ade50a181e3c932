package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Frequency of a schedule.
type Frequency string

const (
	FrequencyHourly  Frequency = "hourly"
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyCustom  Frequency = "custom"
)

// Job status values written to ETLSchedule.LastStatus.
const (
	JobStatusRunning = "running"
	JobStatusSuccess = "success"
	JobStatusError   = "error"
)

// ScheduleSpec holds the frequency arithmetic inputs shared by ETL schedules
// and scheduled reports. DayOfWeek follows time.Weekday (0 = Sunday).
type ScheduleSpec struct {
	Frequency      Frequency `bson:"frequency" json:"frequency"`
	Hour           int       `bson:"hour" json:"hour"`
	Minute         int       `bson:"minute" json:"minute"`
	DayOfWeek      int       `bson:"day_of_week" json:"day_of_week"`
	DayOfMonth     int       `bson:"day_of_month" json:"day_of_month"`
	CronExpression string    `bson:"cron_expression,omitempty" json:"cron_expression,omitempty"`
}

func (s ScheduleSpec) Validate() error {
	switch s.Frequency {
	case FrequencyHourly, FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		if s.Hour < 0 || s.Hour > 23 || s.Minute < 0 || s.Minute > 59 {
			return fmt.Errorf("invalid hour/minute %d:%d", s.Hour, s.Minute)
		}
		if s.Frequency == FrequencyWeekly && (s.DayOfWeek < 0 || s.DayOfWeek > 6) {
			return fmt.Errorf("invalid day_of_week %d", s.DayOfWeek)
		}
		if s.Frequency == FrequencyMonthly && (s.DayOfMonth < 1 || s.DayOfMonth > 31) {
			return fmt.Errorf("invalid day_of_month %d", s.DayOfMonth)
		}
	case FrequencyCustom:
		if s.CronExpression == "" {
			return fmt.Errorf("custom frequency requires cron_expression")
		}
	default:
		return fmt.Errorf("unknown frequency %q", s.Frequency)
	}
	return nil
}

// ETLSchedule drives periodic execution of a named ETL plugin.
type ETLSchedule struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PluginName   string             `bson:"plugin_name" json:"plugin_name"`
	Name         string             `bson:"name" json:"name"`
	ScheduleSpec `bson:",inline"`
	Enabled      bool       `bson:"enabled" json:"enabled"`
	LastRun      *time.Time `bson:"last_run,omitempty" json:"last_run,omitempty"`
	NextRun      time.Time  `bson:"next_run" json:"next_run"`
	LastStatus   string     `bson:"last_status,omitempty" json:"last_status,omitempty"`
	LastError    string     `bson:"last_error,omitempty" json:"last_error,omitempty"`
	CreatedAt    time.Time  `bson:"created_at" json:"created_at"`
}

func (s *ETLSchedule) Validate() error {
	if s.PluginName == "" {
		return fmt.Errorf("plugin_name is required")
	}
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	return s.ScheduleSpec.Validate()
}

// JobCommand is the queue message handed from the scheduler to the ETL runner.
type JobCommand struct {
	RunID      string    `json:"run_id"`
	ScheduleID string    `json:"schedule_id"`
	PluginName string    `json:"plugin_name"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}
