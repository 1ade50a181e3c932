package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	alertsFired = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "monitoring_alerts_fired_total",
		Help: "Total number of alerts fired",
	}, []string{"severity", "type", "component"})

	alertsDeduplicated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "monitoring_alerts_deduplicated_total",
		Help: "Total number of alert creations collapsed into an existing alert",
	})

	alertsEscalated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "monitoring_alerts_escalated_total",
		Help: "Total number of alerts superseded by a higher severity",
	})

	alertCheckDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "monitoring_alert_check_duration_seconds",
		Help:    "Duration of one alert rule evaluation pass",
		Buckets: prometheus.DefBuckets,
	})

	ruleEvaluationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "monitoring_rule_evaluation_errors_total",
		Help: "Total number of rule evaluation errors",
	}, []string{"rule"})

	notificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "monitoring_notifications_sent_total",
		Help: "Total number of notifications sent per channel type",
	}, []string{"channel_type"})

	notificationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "monitoring_notification_errors_total",
		Help: "Total number of notification delivery failures per channel type",
	}, []string{"channel_type"})

	jobsEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "monitoring_etl_jobs_enqueued_total",
		Help: "Total number of ETL jobs enqueued by the scheduler",
	}, []string{"plugin"})

	jobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "monitoring_etl_job_runs_total",
		Help: "Total number of ETL job runs by outcome",
	}, []string{"plugin", "status"})

	jobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "monitoring_etl_job_duration_seconds",
		Help:    "Duration of ETL job runs",
		Buckets: prometheus.DefBuckets,
	}, []string{"plugin"})

	reportsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "monitoring_reports_generated_total",
		Help: "Total number of reports generated",
	}, []string{"report_type", "format"})

	reportGenerationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "monitoring_report_generation_duration_seconds",
		Help:    "Duration of report generation",
		Buckets: prometheus.DefBuckets,
	}, []string{"report_type"})

	reportSendErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "monitoring_report_send_errors_total",
		Help: "Total number of scheduled report delivery failures",
	})

	systemMetricValue = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "monitoring_system_metric",
		Help: "Latest sampled system metric value",
	}, []string{"name"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "monitoring_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"})

	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "monitoring_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "endpoint", "status"})
)

// RecordAlertFired records a fired alert.
func RecordAlertFired(severity, alertType, component string) {
	alertsFired.WithLabelValues(severity, alertType, component).Inc()
}

// RecordNotification records a delivery attempt outcome for a channel type.
func RecordNotification(channelType string, err error) {
	if err != nil {
		notificationErrors.WithLabelValues(channelType).Inc()
		return
	}
	notificationsSent.WithLabelValues(channelType).Inc()
}

// RecordJobRun records an ETL job outcome with its duration in seconds.
func RecordJobRun(plugin, status string, seconds float64) {
	jobRuns.WithLabelValues(plugin, status).Inc()
	jobDuration.WithLabelValues(plugin).Observe(seconds)
}

// RecordHTTPRequest records an HTTP request for the API dashboards.
func RecordHTTPRequest(method, endpoint string, duration float64, statusCode int) {
	httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration)
	status := "success"
	if statusCode >= 400 {
		status = "error"
	}
	httpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
}
