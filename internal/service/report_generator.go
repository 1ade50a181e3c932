package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/propwatch/propwatch/internal/models"
	"github.com/propwatch/propwatch/internal/repository"
	"github.com/propwatch/propwatch/pkg/logger"
)

// ReportSender delivers a rendered report to its recipients.
type ReportSender interface {
	SendReport(ctx context.Context, recipients []string, subject string, body []byte, format string) error
}

// ReportGenerator builds reports over a trailing day window. All variants
// aggregate in memory and return the same uniform shape, so every output
// format renders identical rows and totals.
type ReportGenerator struct {
	alerts  repository.AlertRepository
	metrics repository.MetricsRepository
	events  repository.EventRepository
	reports repository.ReportRepository
	sender  ReportSender
	log     *logger.Logger
	tick    time.Duration
	now     func() time.Time
}

func NewReportGenerator(
	alerts repository.AlertRepository,
	metrics repository.MetricsRepository,
	events repository.EventRepository,
	reports repository.ReportRepository,
	sender ReportSender,
	log *logger.Logger,
	tick time.Duration,
) *ReportGenerator {
	return &ReportGenerator{
		alerts:  alerts,
		metrics: metrics,
		events:  events,
		reports: reports,
		sender:  sender,
		log:     log,
		tick:    tick,
		now:     time.Now,
	}
}

// Run processes due scheduled reports until ctx is cancelled.
func (g *ReportGenerator) Run(ctx context.Context) {
	ticker := time.NewTicker(g.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := g.processDueReports(ctx); err != nil {
				g.log.WithError(err).Error("Failed to process due reports")
			}
		case <-ctx.Done():
			g.log.Info("Stopping report generator")
			return
		}
	}
}

func (g *ReportGenerator) processDueReports(ctx context.Context) error {
	due, err := g.reports.GetDue(ctx, g.now())
	if err != nil {
		return err
	}

	for i := range due {
		report := due[i]
		if err := g.ProcessScheduledReport(ctx, &report); err != nil {
			g.log.WithError(err).WithField("report", report.Name).Error("Scheduled report failed")
		}
	}
	return nil
}

// ProcessScheduledReport generates, renders and emails one scheduled report.
// last_run advances only after a successful send; a failed send still
// advances next_run so the schedule keeps its cadence.
func (g *ReportGenerator) ProcessScheduledReport(ctx context.Context, report *models.ScheduledReport) error {
	now := g.now()
	nextRun := ComputeNextRun(report.ScheduleSpec, now)

	data, err := g.Generate(ctx, report.ReportType, report.Days, report.Filters)
	if err != nil {
		reportSendErrors.Inc()
		if nrErr := g.reports.SetNextRun(ctx, report.ID, nextRun); nrErr != nil {
			g.log.WithError(nrErr).Error("Failed to advance report next_run")
		}
		return fmt.Errorf("failed to generate report: %w", err)
	}

	rendered, err := FormatReport(data, report.OutputFormat)
	if err != nil {
		reportSendErrors.Inc()
		if nrErr := g.reports.SetNextRun(ctx, report.ID, nextRun); nrErr != nil {
			g.log.WithError(nrErr).Error("Failed to advance report next_run")
		}
		return fmt.Errorf("failed to render report: %w", err)
	}

	subject := fmt.Sprintf("%s report: %s (%s to %s)",
		report.ReportType, report.Name,
		data.Metadata.PeriodStart.Format("2006-01-02"),
		data.Metadata.PeriodEnd.Format("2006-01-02"))

	if err := g.sender.SendReport(ctx, report.Recipients, subject, rendered, report.OutputFormat); err != nil {
		reportSendErrors.Inc()
		if nrErr := g.reports.SetNextRun(ctx, report.ID, nextRun); nrErr != nil {
			g.log.WithError(nrErr).Error("Failed to advance report next_run")
		}
		return fmt.Errorf("failed to send report: %w", err)
	}

	if err := g.reports.SetRunResult(ctx, report.ID, now, nextRun); err != nil {
		return fmt.Errorf("failed to record report run: %w", err)
	}

	g.log.WithFields(logger.Fields{
		"report":     report.Name,
		"type":       report.ReportType,
		"recipients": len(report.Recipients),
	}).Info("Scheduled report sent")
	return nil
}

// Generate builds the report variant named by reportType.
func (g *ReportGenerator) Generate(ctx context.Context, reportType string, days int, filters models.ReportFilters) (*models.ReportData, error) {
	if days <= 0 {
		days = 7
	}

	start := g.now()
	var (
		data *models.ReportData
		err  error
	)
	switch reportType {
	case models.ReportTypeAlerts:
		data, err = g.GenerateAlertsReport(ctx, days, filters)
	case models.ReportTypeSystemMetrics:
		data, err = g.GenerateSystemMetricsReport(ctx, days)
	case models.ReportTypeAPIUsage:
		data, err = g.GenerateAPIUsageReport(ctx, days)
	case models.ReportTypeETL:
		data, err = g.GenerateETLReport(ctx, days)
	default:
		return nil, fmt.Errorf("unknown report type %q", reportType)
	}
	if err != nil {
		return nil, err
	}

	reportGenerationDuration.WithLabelValues(reportType).Observe(time.Since(start).Seconds())
	return data, nil
}

func (g *ReportGenerator) window(days int) (time.Time, time.Time) {
	end := g.now()
	return end.AddDate(0, 0, -days), end
}

// GenerateAlertsReport lists alerts in the window with severity and component
// breakdowns.
func (g *ReportGenerator) GenerateAlertsReport(ctx context.Context, days int, filters models.ReportFilters) (*models.ReportData, error) {
	periodStart, periodEnd := g.window(days)

	alerts, err := g.alerts.List(ctx, repository.AlertFilter{
		Status:    models.AlertStatus(filters.Status),
		Severity:  filters.Severity,
		Component: filters.Component,
		Since:     periodStart,
		Limit:     10000,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load alerts: %w", err)
	}

	bySeverity := make(map[string]int)
	byComponent := make(map[string]int)
	active := 0
	rows := make([][]interface{}, 0, len(alerts))

	for _, alert := range alerts {
		bySeverity[string(alert.Severity)]++
		byComponent[alert.Component]++
		if alert.Status == models.AlertStatusActive {
			active++
		}
		rows = append(rows, []interface{}{
			alert.CreatedAt.Format(time.RFC3339),
			alert.AlertType,
			string(alert.Severity),
			alert.Component,
			string(alert.Status),
			alert.Message,
		})
	}

	return &models.ReportData{
		Metadata: models.ReportMetadata{
			ReportType:  models.ReportTypeAlerts,
			GeneratedAt: g.now(),
			PeriodStart: periodStart,
			PeriodEnd:   periodEnd,
			Filters:     filters,
		},
		Summary: map[string]interface{}{
			"total_alerts": len(alerts),
			"active":       active,
			"by_severity":  bySeverity,
			"by_component": byComponent,
		},
		Columns: []string{"created_at", "alert_type", "severity", "component", "status", "message"},
		Rows:    rows,
	}, nil
}

// GenerateSystemMetricsReport aggregates stored system samples per metric
// name: count, mean, min, max.
func (g *ReportGenerator) GenerateSystemMetricsReport(ctx context.Context, days int) (*models.ReportData, error) {
	periodStart, periodEnd := g.window(days)

	samples, err := g.metrics.Range(ctx, "", "system", periodStart, periodEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to load metric samples: %w", err)
	}

	byName := make(map[string][]float64)
	units := make(map[string]string)
	order := make([]string, 0)
	for _, sample := range samples {
		if _, seen := byName[sample.Name]; !seen {
			order = append(order, sample.Name)
		}
		byName[sample.Name] = append(byName[sample.Name], sample.Value)
		units[sample.Name] = sample.Unit
	}

	rows := make([][]interface{}, 0, len(order))
	for _, name := range order {
		values := byName[name]
		min, max := values[0], values[0]
		for _, v := range values {
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
		rows = append(rows, []interface{}{
			name,
			units[name],
			len(values),
			round2(stat.Mean(values, nil)),
			round2(min),
			round2(max),
		})
	}

	return &models.ReportData{
		Metadata: models.ReportMetadata{
			ReportType:  models.ReportTypeSystemMetrics,
			GeneratedAt: g.now(),
			PeriodStart: periodStart,
			PeriodEnd:   periodEnd,
		},
		Summary: map[string]interface{}{
			"total_samples": len(samples),
			"metric_count":  len(order),
		},
		Columns: []string{"metric", "unit", "samples", "mean", "min", "max"},
		Rows:    rows,
	}, nil
}

// GenerateAPIUsageReport breaks API traffic down by component with error
// rates.
func (g *ReportGenerator) GenerateAPIUsageReport(ctx context.Context, days int) (*models.ReportData, error) {
	periodStart, periodEnd := g.window(days)

	events, err := g.events.Range(ctx, periodStart, periodEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}

	type usage struct {
		requests int
		errors   int
	}
	byComponent := make(map[string]*usage)
	order := make([]string, 0)
	totalRequests, totalErrors := 0, 0

	for _, event := range events {
		if event.Type != models.EventTypeAPIRequest && event.Type != models.EventTypeAPIError {
			continue
		}
		component := event.Component
		if component == "" {
			component = "unknown"
		}
		u, ok := byComponent[component]
		if !ok {
			u = &usage{}
			byComponent[component] = u
			order = append(order, component)
		}
		u.requests++
		totalRequests++
		if event.Type == models.EventTypeAPIError {
			u.errors++
			totalErrors++
		}
	}

	rows := make([][]interface{}, 0, len(order))
	for _, component := range order {
		u := byComponent[component]
		rows = append(rows, []interface{}{
			component,
			u.requests,
			u.errors,
			round2(percent(u.errors, u.requests)),
		})
	}

	return &models.ReportData{
		Metadata: models.ReportMetadata{
			ReportType:  models.ReportTypeAPIUsage,
			GeneratedAt: g.now(),
			PeriodStart: periodStart,
			PeriodEnd:   periodEnd,
		},
		Summary: map[string]interface{}{
			"total_requests": totalRequests,
			"total_errors":   totalErrors,
			"error_rate":     round2(percent(totalErrors, totalRequests)),
		},
		Columns: []string{"component", "requests", "errors", "error_rate_percent"},
		Rows:    rows,
	}, nil
}

// GenerateETLReport summarizes ETL run outcomes per plugin.
func (g *ReportGenerator) GenerateETLReport(ctx context.Context, days int) (*models.ReportData, error) {
	periodStart, periodEnd := g.window(days)

	events, err := g.events.Range(ctx, periodStart, periodEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}

	type outcome struct {
		runs      int
		successes int
		durations []float64
	}
	byPlugin := make(map[string]*outcome)
	order := make([]string, 0)
	totalRuns, totalSuccesses := 0, 0

	for _, event := range events {
		if event.Type != models.EventTypeETLSuccess && event.Type != models.EventTypeETLFailure {
			continue
		}
		plugin := event.Component
		if plugin == "" {
			plugin = "unknown"
		}
		o, ok := byPlugin[plugin]
		if !ok {
			o = &outcome{}
			byPlugin[plugin] = o
			order = append(order, plugin)
		}
		o.runs++
		totalRuns++
		if event.Type == models.EventTypeETLSuccess {
			o.successes++
			totalSuccesses++
		}
		if seconds, ok := event.Details["duration_seconds"].(float64); ok {
			o.durations = append(o.durations, seconds)
		}
	}

	rows := make([][]interface{}, 0, len(order))
	for _, plugin := range order {
		o := byPlugin[plugin]
		avgDuration := 0.0
		if len(o.durations) > 0 {
			avgDuration = stat.Mean(o.durations, nil)
		}
		rows = append(rows, []interface{}{
			plugin,
			o.runs,
			o.successes,
			o.runs - o.successes,
			round2(percent(o.successes, o.runs)),
			round2(avgDuration),
		})
	}

	return &models.ReportData{
		Metadata: models.ReportMetadata{
			ReportType:  models.ReportTypeETL,
			GeneratedAt: g.now(),
			PeriodStart: periodStart,
			PeriodEnd:   periodEnd,
		},
		Summary: map[string]interface{}{
			"total_runs":   totalRuns,
			"successes":    totalSuccesses,
			"failures":     totalRuns - totalSuccesses,
			"success_rate": round2(percent(totalSuccesses, totalRuns)),
		},
		Columns: []string{"plugin", "runs", "successes", "failures", "success_rate_percent", "avg_duration_seconds"},
		Rows:    rows,
	}, nil
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
