package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Report types understood by the report generator.
const (
	ReportTypeAlerts        = "alerts"
	ReportTypeSystemMetrics = "system_metrics"
	ReportTypeAPIUsage      = "api_usage"
	ReportTypeETL           = "etl"
)

// Output formats for rendered reports.
const (
	ReportFormatHTML  = "html"
	ReportFormatCSV   = "csv"
	ReportFormatExcel = "excel"
)

// ReportFilters narrows the rows a report variant considers.
type ReportFilters struct {
	Component string   `bson:"component,omitempty" json:"component,omitempty"`
	Severity  Severity `bson:"severity,omitempty" json:"severity,omitempty"`
	Status    string   `bson:"status,omitempty" json:"status,omitempty"`
}

// ScheduledReport drives periodic report generation and email delivery.
type ScheduledReport struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	ReportType   string             `bson:"report_type" json:"report_type"`
	Days         int                `bson:"days" json:"days"`
	Filters      ReportFilters      `bson:"filters,omitempty" json:"filters,omitempty"`
	ScheduleSpec `bson:",inline"`
	OutputFormat string     `bson:"output_format" json:"output_format"`
	Recipients   []string   `bson:"recipients" json:"recipients"`
	Enabled      bool       `bson:"enabled" json:"enabled"`
	LastRun      *time.Time `bson:"last_run,omitempty" json:"last_run,omitempty"`
	NextRun      time.Time  `bson:"next_run" json:"next_run"`
}

func (r *ScheduledReport) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("name is required")
	}
	switch r.ReportType {
	case ReportTypeAlerts, ReportTypeSystemMetrics, ReportTypeAPIUsage, ReportTypeETL:
	default:
		return fmt.Errorf("unknown report type %q", r.ReportType)
	}
	if len(r.Recipients) == 0 {
		return fmt.Errorf("recipients are required")
	}
	if r.Days <= 0 {
		r.Days = 7
	}
	return r.ScheduleSpec.Validate()
}

// ReportMetadata describes how and when a report was produced.
type ReportMetadata struct {
	ReportType  string        `json:"report_type"`
	GeneratedAt time.Time     `json:"generated_at"`
	PeriodStart time.Time     `json:"period_start"`
	PeriodEnd   time.Time     `json:"period_end"`
	Filters     ReportFilters `json:"filters,omitempty"`
}

// ReportData is the uniform shape every report variant returns. Rows are
// positional and aligned with Columns; every formatter renders the same
// rows and summary, only the layout differs.
type ReportData struct {
	Metadata ReportMetadata         `json:"metadata"`
	Summary  map[string]interface{} `json:"summary"`
	Columns  []string               `json:"columns"`
	Rows     [][]interface{}        `json:"rows"`
}
