package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/propwatch/propwatch/internal/models"
	"github.com/propwatch/propwatch/internal/repository"
	"github.com/propwatch/propwatch/internal/service"
	"github.com/propwatch/propwatch/pkg/database"
	"github.com/propwatch/propwatch/pkg/logger"
)

// MonitoringHandler exposes the HTTP API for metrics, rules, alerts,
// channels, schedules and reports.
type MonitoringHandler struct {
	alerts    *service.AlertService
	engine    *service.AlertEngine
	generator *service.ReportGenerator
	rules     repository.RuleRepository
	channels  repository.ChannelRepository
	schedules repository.ScheduleRepository
	reports   repository.ReportRepository
	metrics   repository.MetricsRepository
	events    repository.EventRepository
	log       *logger.Logger
}

func NewMonitoringHandler(
	alerts *service.AlertService,
	engine *service.AlertEngine,
	generator *service.ReportGenerator,
	rules repository.RuleRepository,
	channels repository.ChannelRepository,
	schedules repository.ScheduleRepository,
	reports repository.ReportRepository,
	metrics repository.MetricsRepository,
	events repository.EventRepository,
	log *logger.Logger,
) *MonitoringHandler {
	return &MonitoringHandler{
		alerts:    alerts,
		engine:    engine,
		generator: generator,
		rules:     rules,
		channels:  channels,
		schedules: schedules,
		reports:   reports,
		metrics:   metrics,
		events:    events,
		log:       log,
	}
}

func (h *MonitoringHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now()})
}

func objectID(c *gin.Context) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return primitive.NilObjectID, false
	}
	return id, true
}

func (h *MonitoringHandler) respondError(c *gin.Context, err error) {
	switch err {
	case database.ErrNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case service.ErrAlreadyResolved:
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.log.WithError(err).Error("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// --- metrics ---

func (h *MonitoringHandler) IngestMetric(c *gin.Context) {
	var sample models.MetricSample
	if err := c.ShouldBindJSON(&sample); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if sample.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	if err := h.metrics.Insert(c.Request.Context(), &sample); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sample)
}

func (h *MonitoringHandler) QueryMetrics(c *gin.Context) {
	hours, _ := strconv.Atoi(c.DefaultQuery("hours", "24"))
	if hours <= 0 {
		hours = 24
	}
	to := time.Now()
	from := to.Add(-time.Duration(hours) * time.Hour)

	samples, err := h.metrics.Range(c.Request.Context(), c.Query("name"), c.Query("component"), from, to)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"metrics": samples, "count": len(samples)})
}

// --- events ---

func (h *MonitoringHandler) IngestEvent(c *gin.Context) {
	var event models.Event
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if event.Type == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type is required"})
		return
	}

	if err := h.events.Insert(c.Request.Context(), &event); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, event)
}

// --- alert rules ---

func (h *MonitoringHandler) CreateRule(c *gin.Context) {
	var rule models.AlertRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := rule.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.rules.Create(c.Request.Context(), &rule); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rule)
}

func (h *MonitoringHandler) ListRules(c *gin.Context) {
	rules, err := h.rules.GetAll(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rules": rules, "count": len(rules)})
}

func (h *MonitoringHandler) GetRule(c *gin.Context) {
	id, ok := objectID(c)
	if !ok {
		return
	}
	rule, err := h.rules.GetByID(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (h *MonitoringHandler) UpdateRule(c *gin.Context) {
	id, ok := objectID(c)
	if !ok {
		return
	}

	var rule models.AlertRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rule.ID = id
	if err := rule.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.rules.Update(c.Request.Context(), &rule); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (h *MonitoringHandler) DeleteRule(c *gin.Context) {
	id, ok := objectID(c)
	if !ok {
		return
	}
	if err := h.rules.Delete(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// CheckRules runs one evaluation pass immediately.
func (h *MonitoringHandler) CheckRules(c *gin.Context) {
	created, err := h.engine.CheckAlertRules(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts_created": created})
}

// --- alerts ---

func (h *MonitoringHandler) CreateAlert(c *gin.Context) {
	var req struct {
		AlertType string                 `json:"alert_type"`
		Severity  models.Severity        `json:"severity"`
		Component string                 `json:"component"`
		Message   string                 `json:"message"`
		Details   map[string]interface{} `json:"details"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.AlertType == "" || req.Message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "alert_type and message are required"})
		return
	}
	if !req.Severity.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid severity"})
		return
	}

	alert, createdNew, err := h.alerts.CreateAlert(c.Request.Context(), service.CreateAlertInput{
		AlertType: req.AlertType,
		Severity:  req.Severity,
		Component: req.Component,
		Message:   req.Message,
		Details:   req.Details,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !createdNew {
		// Deduplicated against an existing active alert.
		c.JSON(http.StatusOK, alert)
		return
	}
	c.JSON(http.StatusCreated, alert)
}

func (h *MonitoringHandler) ListAlerts(c *gin.Context) {
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "100"), 10, 64)

	filter := repository.AlertFilter{
		Status:    models.AlertStatus(c.Query("status")),
		Severity:  models.Severity(c.Query("severity")),
		Component: c.Query("component"),
		Limit:     limit,
	}
	if hours, err := strconv.Atoi(c.Query("hours")); err == nil && hours > 0 {
		filter.Since = time.Now().Add(-time.Duration(hours) * time.Hour)
	}

	alerts, err := h.alerts.List(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts, "count": len(alerts)})
}

func (h *MonitoringHandler) GetAlert(c *gin.Context) {
	id, ok := objectID(c)
	if !ok {
		return
	}
	alert, err := h.alerts.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

func (h *MonitoringHandler) AlertSummary(c *gin.Context) {
	summary, err := h.alerts.Summary(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *MonitoringHandler) AcknowledgeAlert(c *gin.Context) {
	id, ok := objectID(c)
	if !ok {
		return
	}

	var req struct {
		AcknowledgedBy string `json:"acknowledged_by"`
	}
	_ = c.ShouldBindJSON(&req)
	if req.AcknowledgedBy == "" {
		req.AcknowledgedBy = c.GetString("user_id")
	}

	if err := h.alerts.Acknowledge(c.Request.Context(), id, req.AcknowledgedBy); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"acknowledged": true})
}

func (h *MonitoringHandler) ResolveAlert(c *gin.Context) {
	id, ok := objectID(c)
	if !ok {
		return
	}
	if err := h.alerts.Resolve(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"resolved": true})
}

// --- notification channels and mappings ---

func (h *MonitoringHandler) CreateChannel(c *gin.Context) {
	var channel models.NotificationChannel
	if err := c.ShouldBindJSON(&channel); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := channel.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.channels.CreateChannel(c.Request.Context(), &channel); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, channel)
}

func (h *MonitoringHandler) ListChannels(c *gin.Context) {
	channels, err := h.channels.ListChannels(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"channels": channels, "count": len(channels)})
}

func (h *MonitoringHandler) UpdateChannel(c *gin.Context) {
	id, ok := objectID(c)
	if !ok {
		return
	}

	var channel models.NotificationChannel
	if err := c.ShouldBindJSON(&channel); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	channel.ID = id
	if err := channel.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.channels.UpdateChannel(c.Request.Context(), &channel); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, channel)
}

func (h *MonitoringHandler) DeleteChannel(c *gin.Context) {
	id, ok := objectID(c)
	if !ok {
		return
	}
	if err := h.channels.DeleteChannel(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (h *MonitoringHandler) CreateMapping(c *gin.Context) {
	var mapping models.NotificationMapping
	if err := c.ShouldBindJSON(&mapping); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := mapping.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := h.channels.GetChannel(c.Request.Context(), mapping.ChannelID); err != nil {
		if err == database.ErrNotFound {
			c.JSON(http.StatusBadRequest, gin.H{"error": "channel does not exist"})
			return
		}
		h.respondError(c, err)
		return
	}

	if err := h.channels.CreateMapping(c.Request.Context(), &mapping); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, mapping)
}

func (h *MonitoringHandler) ListMappings(c *gin.Context) {
	mappings, err := h.channels.ListMappings(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"mappings": mappings, "count": len(mappings)})
}

func (h *MonitoringHandler) DeleteMapping(c *gin.Context) {
	id, ok := objectID(c)
	if !ok {
		return
	}
	if err := h.channels.DeleteMapping(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// --- ETL schedules ---

func (h *MonitoringHandler) CreateSchedule(c *gin.Context) {
	var schedule models.ETLSchedule
	if err := c.ShouldBindJSON(&schedule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := schedule.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	schedule.NextRun = service.ComputeNextRun(schedule.ScheduleSpec, time.Now())
	if err := h.schedules.Create(c.Request.Context(), &schedule); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, schedule)
}

func (h *MonitoringHandler) ListSchedules(c *gin.Context) {
	schedules, err := h.schedules.GetAll(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"schedules": schedules, "count": len(schedules)})
}

func (h *MonitoringHandler) GetSchedule(c *gin.Context) {
	id, ok := objectID(c)
	if !ok {
		return
	}
	schedule, err := h.schedules.GetByID(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, schedule)
}

func (h *MonitoringHandler) UpdateSchedule(c *gin.Context) {
	id, ok := objectID(c)
	if !ok {
		return
	}

	existing, err := h.schedules.GetByID(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	var schedule models.ETLSchedule
	if err := c.ShouldBindJSON(&schedule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	schedule.ID = id
	schedule.CreatedAt = existing.CreatedAt
	schedule.LastRun = existing.LastRun
	schedule.LastStatus = existing.LastStatus
	schedule.LastError = existing.LastError
	if err := schedule.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Timing changes take effect immediately.
	schedule.NextRun = service.ComputeNextRun(schedule.ScheduleSpec, time.Now())

	if err := h.schedules.Update(c.Request.Context(), &schedule); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, schedule)
}

func (h *MonitoringHandler) DeleteSchedule(c *gin.Context) {
	id, ok := objectID(c)
	if !ok {
		return
	}
	if err := h.schedules.Delete(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// --- reports ---

func (h *MonitoringHandler) CreateScheduledReport(c *gin.Context) {
	var report models.ScheduledReport
	if err := c.ShouldBindJSON(&report); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := report.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	switch report.OutputFormat {
	case models.ReportFormatHTML, models.ReportFormatCSV, models.ReportFormatExcel:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid output_format"})
		return
	}

	report.NextRun = service.ComputeNextRun(report.ScheduleSpec, time.Now())
	if err := h.reports.Create(c.Request.Context(), &report); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, report)
}

func (h *MonitoringHandler) ListScheduledReports(c *gin.Context) {
	reports, err := h.reports.GetAll(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports, "count": len(reports)})
}

func (h *MonitoringHandler) DeleteScheduledReport(c *gin.Context) {
	id, ok := objectID(c)
	if !ok {
		return
	}
	if err := h.reports.Delete(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// RunScheduledReport generates and sends one scheduled report immediately.
func (h *MonitoringHandler) RunScheduledReport(c *gin.Context) {
	id, ok := objectID(c)
	if !ok {
		return
	}

	report, err := h.reports.GetByID(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if err := h.generator.ProcessScheduledReport(c.Request.Context(), report); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sent": true})
}

// GenerateReport builds a report on demand and returns it inline. JSON is
// the default; html, csv and excel stream as downloads.
func (h *MonitoringHandler) GenerateReport(c *gin.Context) {
	reportType := c.Query("type")
	days, _ := strconv.Atoi(c.DefaultQuery("days", "7"))

	filters := models.ReportFilters{
		Component: c.Query("component"),
		Severity:  models.Severity(c.Query("severity")),
		Status:    c.Query("status"),
	}

	data, err := h.generator.Generate(c.Request.Context(), reportType, days, filters)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	format := c.DefaultQuery("format", "json")
	if format == "json" {
		c.JSON(http.StatusOK, data)
		return
	}

	rendered, err := service.FormatReport(data, format)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	filename := reportType + "-report"
	switch format {
	case models.ReportFormatCSV:
		c.Header("Content-Disposition", `attachment; filename="`+filename+`.csv"`)
	case models.ReportFormatExcel:
		c.Header("Content-Disposition", `attachment; filename="`+filename+`.xlsx"`)
	}
	c.Data(http.StatusOK, service.ReportContentType(format), rendered)
}
