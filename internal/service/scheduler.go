package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/propwatch/propwatch/internal/models"
	"github.com/propwatch/propwatch/internal/repository"
	"github.com/propwatch/propwatch/pkg/logger"
)

// JobScheduler polls ETL schedules and enqueues due jobs on the job queue.
// Execution happens in the ETL runner; the scheduler only hands off commands,
// so a slow job never delays other schedules.
type JobScheduler struct {
	schedules repository.ScheduleRepository
	publisher Publisher
	queue     string
	log       *logger.Logger
	tick      time.Duration
	now       func() time.Time
}

func NewJobScheduler(
	schedules repository.ScheduleRepository,
	publisher Publisher,
	queue string,
	log *logger.Logger,
	tick time.Duration,
) *JobScheduler {
	return &JobScheduler{
		schedules: schedules,
		publisher: publisher,
		queue:     queue,
		log:       log,
		tick:      tick,
		now:       time.Now,
	}
}

// Run polls for due schedules until ctx is cancelled.
func (s *JobScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	if err := s.RunDueJobs(ctx); err != nil {
		s.log.WithError(err).Error("Failed initial schedule check")
	}

	for {
		select {
		case <-ticker.C:
			if err := s.RunDueJobs(ctx); err != nil {
				s.log.WithError(err).Error("Failed to run due jobs")
			}
		case <-ctx.Done():
			s.log.Info("Stopping job scheduler")
			return
		}
	}
}

// RunDueJobs enqueues every enabled schedule whose next_run has passed. One
// schedule failing to enqueue does not block the rest.
func (s *JobScheduler) RunDueJobs(ctx context.Context) error {
	now := s.now()

	due, err := s.schedules.GetDue(ctx, now)
	if err != nil {
		return err
	}

	for _, schedule := range due {
		nextRun := ComputeNextRun(schedule.ScheduleSpec, now)

		if err := s.schedules.MarkRunning(ctx, schedule.ID, now, nextRun); err != nil {
			s.log.WithError(err).WithField("schedule", schedule.Name).Error("Failed to mark schedule running")
			continue
		}

		cmd := models.JobCommand{
			RunID:      uuid.NewString(),
			ScheduleID: schedule.ID.Hex(),
			PluginName: schedule.PluginName,
			EnqueuedAt: now,
		}

		if err := s.publisher.Publish("", s.queue, cmd); err != nil {
			s.log.WithError(err).WithField("schedule", schedule.Name).Error("Failed to enqueue job")
			if err := s.schedules.SetResult(ctx, schedule.ID, models.JobStatusError, "failed to enqueue job: "+err.Error()); err != nil {
				s.log.WithError(err).Error("Failed to record enqueue failure")
			}
			continue
		}

		jobsEnqueued.WithLabelValues(schedule.PluginName).Inc()
		s.log.WithFields(logger.Fields{
			"schedule": schedule.Name,
			"plugin":   schedule.PluginName,
			"run_id":   cmd.RunID,
			"next_run": nextRun,
		}).Info("ETL job enqueued")
	}

	return nil
}

// ComputeNextRun returns the first execution time strictly after from.
// Monthly schedules clamp day_of_month to the target month's length, so a
// day-31 schedule runs on the last day of shorter months.
func ComputeNextRun(spec models.ScheduleSpec, from time.Time) time.Time {
	switch spec.Frequency {
	case models.FrequencyHourly:
		next := time.Date(from.Year(), from.Month(), from.Day(), from.Hour(), spec.Minute, 0, 0, from.Location())
		if !next.After(from) {
			next = next.Add(time.Hour)
		}
		return next

	case models.FrequencyDaily:
		next := time.Date(from.Year(), from.Month(), from.Day(), spec.Hour, spec.Minute, 0, 0, from.Location())
		if !next.After(from) {
			next = next.AddDate(0, 0, 1)
		}
		return next

	case models.FrequencyWeekly:
		next := time.Date(from.Year(), from.Month(), from.Day(), spec.Hour, spec.Minute, 0, 0, from.Location())
		daysAhead := (spec.DayOfWeek - int(from.Weekday()) + 7) % 7
		next = next.AddDate(0, 0, daysAhead)
		if !next.After(from) {
			next = next.AddDate(0, 0, 7)
		}
		return next

	case models.FrequencyMonthly:
		next := monthlyOccurrence(from.Year(), from.Month(), spec, from.Location())
		if !next.After(from) {
			year, month := from.Year(), from.Month()+1
			next = monthlyOccurrence(year, month, spec, from.Location())
		}
		return next

	case models.FrequencyCustom:
		schedule, err := cron.ParseStandard(spec.CronExpression)
		if err != nil {
			// An unparsable expression must not wedge the schedule; retry in
			// an hour so the operator sees it polling.
			return from.Add(time.Hour)
		}
		return schedule.Next(from)

	default:
		return from.Add(time.Hour)
	}
}

func monthlyOccurrence(year int, month time.Month, spec models.ScheduleSpec, loc *time.Location) time.Time {
	// Normalize month overflow (January + 1 rolls the year).
	firstOfMonth := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	lastDay := firstOfMonth.AddDate(0, 1, -1).Day()

	day := spec.DayOfMonth
	if day > lastDay {
		day = lastDay
	}
	return time.Date(firstOfMonth.Year(), firstOfMonth.Month(), day, spec.Hour, spec.Minute, 0, 0, loc)
}
