package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/propwatch/propwatch/internal/repository"
	"github.com/propwatch/propwatch/pkg/logger"
	"github.com/propwatch/propwatch/pkg/middleware"
)

// SetupRouter wires all API routes. The v1 group requires a valid JWT;
// health and Prometheus metrics stay open.
func SetupRouter(
	handler *MonitoringHandler,
	events repository.EventRepository,
	jwtSecret string,
	log *logger.Logger,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	router.Use(RequestEvents(events, log))

	router.GET("/health", handler.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := middleware.NewAuthMiddleware(jwtSecret)

	v1 := router.Group("/api/v1")
	v1.Use(auth.Authenticate())
	{
		v1.POST("/metrics", handler.IngestMetric)
		v1.GET("/metrics", handler.QueryMetrics)

		v1.POST("/events", handler.IngestEvent)

		v1.POST("/rules", handler.CreateRule)
		v1.GET("/rules", handler.ListRules)
		v1.GET("/rules/:id", handler.GetRule)
		v1.PUT("/rules/:id", handler.UpdateRule)
		v1.DELETE("/rules/:id", handler.DeleteRule)
		v1.POST("/rules/check", handler.CheckRules)

		v1.POST("/alerts", handler.CreateAlert)
		v1.GET("/alerts", handler.ListAlerts)
		v1.GET("/alerts/summary", handler.AlertSummary)
		v1.GET("/alerts/:id", handler.GetAlert)
		v1.POST("/alerts/:id/acknowledge", handler.AcknowledgeAlert)
		v1.POST("/alerts/:id/resolve", handler.ResolveAlert)

		v1.POST("/channels", handler.CreateChannel)
		v1.GET("/channels", handler.ListChannels)
		v1.PUT("/channels/:id", handler.UpdateChannel)
		v1.DELETE("/channels/:id", handler.DeleteChannel)

		v1.POST("/mappings", handler.CreateMapping)
		v1.GET("/mappings", handler.ListMappings)
		v1.DELETE("/mappings/:id", handler.DeleteMapping)

		v1.POST("/schedules", handler.CreateSchedule)
		v1.GET("/schedules", handler.ListSchedules)
		v1.GET("/schedules/:id", handler.GetSchedule)
		v1.PUT("/schedules/:id", handler.UpdateSchedule)
		v1.DELETE("/schedules/:id", handler.DeleteSchedule)

		v1.POST("/reports", handler.CreateScheduledReport)
		v1.GET("/reports", handler.ListScheduledReports)
		v1.DELETE("/reports/:id", handler.DeleteScheduledReport)
		v1.POST("/reports/:id/run", handler.RunScheduledReport)
		v1.GET("/reports/generate", handler.GenerateReport)
	}

	return router
}
