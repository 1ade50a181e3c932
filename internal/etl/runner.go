package etl

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/propwatch/propwatch/internal/models"
	"github.com/propwatch/propwatch/internal/repository"
	"github.com/propwatch/propwatch/internal/service"
	"github.com/propwatch/propwatch/pkg/logger"
)

// Plugin is one runnable ETL job. Run returns details recorded on the
// outcome event.
type Plugin interface {
	Name() string
	Run(ctx context.Context) (map[string]interface{}, error)
}

// Consumer is the queue subscription the runner reads job commands from.
type Consumer interface {
	ConsumeWithHandler(ctx context.Context, queueName, consumerName string, handler func([]byte) error) error
}

// Runner executes ETL job commands from the job queue and writes the outcome
// back to the schedule and the event stream.
type Runner struct {
	consumer  Consumer
	schedules repository.ScheduleRepository
	events    repository.EventRepository
	plugins   map[string]Plugin
	log       *logger.Logger
	queue     string
	tag       string
}

func NewRunner(
	consumer Consumer,
	schedules repository.ScheduleRepository,
	events repository.EventRepository,
	log *logger.Logger,
	queue, consumerTag string,
) *Runner {
	return &Runner{
		consumer:  consumer,
		schedules: schedules,
		events:    events,
		plugins:   make(map[string]Plugin),
		log:       log,
		queue:     queue,
		tag:       consumerTag,
	}
}

// Register adds a plugin under its name. Later registrations win.
func (r *Runner) Register(plugin Plugin) {
	r.plugins[plugin.Name()] = plugin
}

// Start subscribes to the job queue. Returns once the consumer is attached;
// handling continues until ctx is cancelled.
func (r *Runner) Start(ctx context.Context) error {
	return r.consumer.ConsumeWithHandler(ctx, r.queue, r.tag, func(body []byte) error {
		return r.HandleJob(ctx, body)
	})
}

// HandleJob executes one job command. Plugin errors are recorded on the
// schedule and do not nack the message; only a malformed command is rejected.
func (r *Runner) HandleJob(ctx context.Context, body []byte) error {
	var cmd models.JobCommand
	if err := json.Unmarshal(body, &cmd); err != nil {
		return fmt.Errorf("malformed job command: %w", err)
	}

	log := r.log.WithFields(logger.Fields{
		"run_id": cmd.RunID,
		"plugin": cmd.PluginName,
	})

	scheduleID, err := primitive.ObjectIDFromHex(cmd.ScheduleID)
	if err != nil {
		return fmt.Errorf("invalid schedule id %q: %w", cmd.ScheduleID, err)
	}

	plugin, ok := r.plugins[cmd.PluginName]
	if !ok {
		log.Error("Unknown ETL plugin")
		r.recordResult(ctx, scheduleID, cmd, nil, 0, fmt.Errorf("unknown plugin %q", cmd.PluginName))
		return nil
	}

	log.Info("ETL job started")
	start := time.Now()
	details, runErr := plugin.Run(ctx)
	elapsed := time.Since(start)

	r.recordResult(ctx, scheduleID, cmd, details, elapsed, runErr)

	if runErr != nil {
		log.WithError(runErr).WithField("duration", elapsed).Error("ETL job failed")
	} else {
		log.WithField("duration", elapsed).Info("ETL job finished")
	}
	return nil
}

func (r *Runner) recordResult(ctx context.Context, scheduleID primitive.ObjectID, cmd models.JobCommand, details map[string]interface{}, elapsed time.Duration, runErr error) {
	status := models.JobStatusSuccess
	eventType := models.EventTypeETLSuccess
	message := fmt.Sprintf("ETL job %s completed", cmd.PluginName)
	errText := ""

	if runErr != nil {
		status = models.JobStatusError
		eventType = models.EventTypeETLFailure
		message = fmt.Sprintf("ETL job %s failed: %s", cmd.PluginName, runErr)
		errText = runErr.Error()
	}

	if err := r.schedules.SetResult(ctx, scheduleID, status, errText); err != nil {
		r.log.WithError(err).Error("Failed to record job result on schedule")
	}

	if details == nil {
		details = make(map[string]interface{})
	}
	details["run_id"] = cmd.RunID
	details["duration_seconds"] = elapsed.Seconds()

	event := &models.Event{
		Type:      eventType,
		Component: cmd.PluginName,
		Message:   message,
		Details:   details,
		Timestamp: time.Now(),
	}
	if err := r.events.Insert(ctx, event); err != nil {
		r.log.WithError(err).Error("Failed to record job outcome event")
	}

	service.RecordJobRun(cmd.PluginName, status, elapsed.Seconds())
}
