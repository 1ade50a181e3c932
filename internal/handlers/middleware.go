package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/propwatch/propwatch/internal/models"
	"github.com/propwatch/propwatch/internal/repository"
	"github.com/propwatch/propwatch/internal/service"
	"github.com/propwatch/propwatch/pkg/logger"
)

// RequestEvents records every API request (and failures as api_error events)
// into the event stream, which feeds frequency rules and the usage report.
// Recording happens after the response and never delays it.
func RequestEvents(events repository.EventRepository, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" || path == "/metrics" || path == "/health" {
			return
		}

		status := c.Writer.Status()
		elapsed := time.Since(start)
		service.RecordHTTPRequest(c.Request.Method, path, elapsed.Seconds(), status)

		eventType := models.EventTypeAPIRequest
		message := fmt.Sprintf("%s %s -> %d", c.Request.Method, path, status)
		if status >= 400 {
			eventType = models.EventTypeAPIError
		}

		event := &models.Event{
			Type:      eventType,
			Component: "api",
			Message:   message,
			Details: map[string]interface{}{
				"method":      c.Request.Method,
				"path":        path,
				"status":      status,
				"duration_ms": elapsed.Milliseconds(),
			},
			Timestamp: start,
		}

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := events.Insert(ctx, event); err != nil {
				log.WithError(err).Debug("Failed to record request event")
			}
		}()
	}
}
