package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/propwatch/propwatch/internal/models"
	"github.com/propwatch/propwatch/internal/repository"
	"github.com/propwatch/propwatch/pkg/database"
	"github.com/propwatch/propwatch/pkg/logger"
)

var (
	// ErrAlreadyResolved is returned when acknowledging or resolving an alert
	// that has already been resolved.
	ErrAlreadyResolved = errors.New("alert is already resolved")
)

// Locker is the coordination primitive used to serialize alert creation for
// one (alert_type, component) pair across instances.
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
}

// Publisher emits alert events to the message broker.
type Publisher interface {
	Publish(exchange, routingKey string, message interface{}) error
}

// Notifier delivers an alert to its mapped channels, returning how many
// deliveries succeeded.
type Notifier interface {
	SendAlertNotifications(ctx context.Context, alert *models.Alert) int
}

// AlertService owns the alert lifecycle: creation with deduplication and
// severity escalation, acknowledgement and resolution.
type AlertService struct {
	alerts      repository.AlertRepository
	locker      Locker
	publisher   Publisher
	notifier    Notifier
	log         *logger.Logger
	dedupWindow time.Duration
	exchange    string
	now         func() time.Time
}

func NewAlertService(
	alerts repository.AlertRepository,
	locker Locker,
	publisher Publisher,
	notifier Notifier,
	log *logger.Logger,
	dedupWindow time.Duration,
	exchange string,
) *AlertService {
	return &AlertService{
		alerts:      alerts,
		locker:      locker,
		publisher:   publisher,
		notifier:    notifier,
		log:         log,
		dedupWindow: dedupWindow,
		exchange:    exchange,
		now:         time.Now,
	}
}

// CreateAlert creates a new alert or returns an existing one. An active alert
// for the same (alert_type, component) created within the dedup window absorbs
// the new occurrence unless the new severity is strictly higher, in which case
// a fresh alert is created alongside it. Creation for one pair is serialized
// through a short Redis lock so concurrent callers cannot both insert. The
// bool reports whether a new alert was inserted.
func (s *AlertService) CreateAlert(ctx context.Context, input CreateAlertInput) (*models.Alert, bool, error) {
	if !input.Severity.Valid() {
		return nil, false, fmt.Errorf("invalid severity %q", input.Severity)
	}

	lockKey := fmt.Sprintf("alert:create:%s:%s", input.AlertType, input.Component)
	acquired, err := s.locker.AcquireLock(ctx, lockKey, 10*time.Second)
	if err != nil {
		s.log.WithError(err).Warn("Alert creation lock unavailable, proceeding without it")
	} else if !acquired {
		// Another instance is creating the same alert right now. Wait for it
		// and return whatever it produced.
		time.Sleep(200 * time.Millisecond)
		if existing, err := s.alerts.FindActive(ctx, input.AlertType, input.Component); err == nil {
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("concurrent alert creation in progress for %s/%s", input.AlertType, input.Component)
	} else {
		defer func() {
			if err := s.locker.ReleaseLock(context.WithoutCancel(ctx), lockKey); err != nil {
				s.log.WithError(err).Debug("Failed to release alert creation lock")
			}
		}()
	}

	now := s.now()

	existing, err := s.alerts.FindActive(ctx, input.AlertType, input.Component)
	if err != nil && err != database.ErrNotFound {
		return nil, false, fmt.Errorf("failed to look up active alert: %w", err)
	}

	if existing != nil && now.Sub(existing.CreatedAt) < s.dedupWindow {
		if input.Severity.Rank() <= existing.Severity.Rank() {
			alertsDeduplicated.Inc()
			s.log.WithFields(logger.Fields{
				"alert_id":  existing.ID.Hex(),
				"type":      input.AlertType,
				"component": input.Component,
			}).Debug("Duplicate alert suppressed")
			return existing, false, nil
		}
		// Higher severity escalates: the old alert stays, a new one fires.
		alertsEscalated.Inc()
	}

	alert := &models.Alert{
		AlertType: input.AlertType,
		Severity:  input.Severity,
		Component: input.Component,
		Message:   input.Message,
		Details:   input.Details,
		Status:    models.AlertStatusActive,
		RuleID:    input.RuleID,
		CreatedAt: now,
	}

	if err := s.alerts.Insert(ctx, alert); err != nil {
		return nil, false, fmt.Errorf("failed to insert alert: %w", err)
	}

	RecordAlertFired(string(alert.Severity), alert.AlertType, alert.Component)

	s.publishAlertEvent(alert)
	if s.notifier != nil {
		sent := s.notifier.SendAlertNotifications(ctx, alert)
		s.log.WithFields(logger.Fields{
			"alert_id": alert.ID.Hex(),
			"sent":     sent,
		}).Info("Alert created")
	}

	return alert, true, nil
}

func (s *AlertService) publishAlertEvent(alert *models.Alert) {
	if s.publisher == nil {
		return
	}

	event := &models.AlertEvent{
		Type:      fmt.Sprintf("alert.%s", alert.AlertType),
		Component: alert.Component,
		Message:   alert.Message,
		Priority:  string(alert.Severity),
		Timestamp: alert.CreatedAt,
		Metadata: map[string]interface{}{
			"alert_id": alert.ID.Hex(),
			"severity": string(alert.Severity),
		},
	}

	routingKey := fmt.Sprintf("alerts.%s", alert.Severity)
	if err := s.publisher.Publish(s.exchange, routingKey, event); err != nil {
		s.log.WithError(err).Error("Failed to publish alert event")
	}
}

// Acknowledge marks an active alert as acknowledged. Acknowledging an already
// acknowledged alert is a no-op; a resolved alert cannot be acknowledged.
func (s *AlertService) Acknowledge(ctx context.Context, id primitive.ObjectID, by string) error {
	alert, err := s.alerts.GetByID(ctx, id)
	if err != nil {
		return err
	}

	switch alert.Status {
	case models.AlertStatusResolved:
		return ErrAlreadyResolved
	case models.AlertStatusAcknowledged:
		return nil
	}

	now := s.now()
	return s.alerts.SetStatus(ctx, id, bson.M{
		"status":          models.AlertStatusAcknowledged,
		"acknowledged_at": now,
		"acknowledged_by": by,
	})
}

// Resolve marks an alert as resolved. Resolving twice is an error.
func (s *AlertService) Resolve(ctx context.Context, id primitive.ObjectID) error {
	alert, err := s.alerts.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if alert.Status == models.AlertStatusResolved {
		return ErrAlreadyResolved
	}

	now := s.now()
	return s.alerts.SetStatus(ctx, id, bson.M{
		"status":      models.AlertStatusResolved,
		"resolved_at": now,
	})
}

// List returns alerts matching the filter, newest first.
func (s *AlertService) List(ctx context.Context, filter repository.AlertFilter) ([]models.Alert, error) {
	return s.alerts.List(ctx, filter)
}

// Get returns one alert by ID.
func (s *AlertService) Get(ctx context.Context, id primitive.ObjectID) (*models.Alert, error) {
	return s.alerts.GetByID(ctx, id)
}

// Summary returns aggregate alert counts.
func (s *AlertService) Summary(ctx context.Context) (*models.AlertSummary, error) {
	return s.alerts.Summary(ctx)
}
