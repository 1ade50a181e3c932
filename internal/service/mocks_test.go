package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/propwatch/propwatch/internal/models"
	"github.com/propwatch/propwatch/internal/repository"
)

// MockRuleRepository is a mock implementation of repository.RuleRepository
type MockRuleRepository struct {
	mock.Mock
}

func (m *MockRuleRepository) Create(ctx context.Context, rule *models.AlertRule) error {
	args := m.Called(ctx, rule)
	return args.Error(0)
}

func (m *MockRuleRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.AlertRule, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AlertRule), args.Error(1)
}

func (m *MockRuleRepository) GetEnabled(ctx context.Context) ([]models.AlertRule, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.AlertRule), args.Error(1)
}

func (m *MockRuleRepository) GetAll(ctx context.Context) ([]models.AlertRule, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.AlertRule), args.Error(1)
}

func (m *MockRuleRepository) Update(ctx context.Context, rule *models.AlertRule) error {
	args := m.Called(ctx, rule)
	return args.Error(0)
}

func (m *MockRuleRepository) SetLastTriggered(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockRuleRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockEventRepository is a mock implementation of repository.EventRepository
type MockEventRepository struct {
	mock.Mock
}

func (m *MockEventRepository) Insert(ctx context.Context, event *models.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockEventRepository) CountSince(ctx context.Context, eventType, component string, since time.Time) (int64, error) {
	args := m.Called(ctx, eventType, component, since)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockEventRepository) Recent(ctx context.Context, eventType string, since time.Time, limit int64) ([]models.Event, error) {
	args := m.Called(ctx, eventType, since, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Event), args.Error(1)
}

func (m *MockEventRepository) Range(ctx context.Context, from, to time.Time) ([]models.Event, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Event), args.Error(1)
}

func (m *MockEventRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

// MockAlertRepository is a mock implementation of repository.AlertRepository
type MockAlertRepository struct {
	mock.Mock
}

func (m *MockAlertRepository) Insert(ctx context.Context, alert *models.Alert) error {
	args := m.Called(ctx, alert)
	if args.Error(0) == nil && alert.ID.IsZero() {
		alert.ID = primitive.NewObjectID()
	}
	return args.Error(0)
}

func (m *MockAlertRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Alert, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Alert), args.Error(1)
}

func (m *MockAlertRepository) FindActive(ctx context.Context, alertType, component string) (*models.Alert, error) {
	args := m.Called(ctx, alertType, component)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Alert), args.Error(1)
}

func (m *MockAlertRepository) List(ctx context.Context, filter repository.AlertFilter) ([]models.Alert, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Alert), args.Error(1)
}

func (m *MockAlertRepository) SetStatus(ctx context.Context, id primitive.ObjectID, update bson.M) error {
	args := m.Called(ctx, id, update)
	return args.Error(0)
}

func (m *MockAlertRepository) Summary(ctx context.Context) (*models.AlertSummary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AlertSummary), args.Error(1)
}

func (m *MockAlertRepository) DeleteResolvedOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

// MockChannelRepository is a mock implementation of repository.ChannelRepository
type MockChannelRepository struct {
	mock.Mock
}

func (m *MockChannelRepository) CreateChannel(ctx context.Context, channel *models.NotificationChannel) error {
	args := m.Called(ctx, channel)
	return args.Error(0)
}

func (m *MockChannelRepository) GetChannel(ctx context.Context, id primitive.ObjectID) (*models.NotificationChannel, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.NotificationChannel), args.Error(1)
}

func (m *MockChannelRepository) ListChannels(ctx context.Context) ([]models.NotificationChannel, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.NotificationChannel), args.Error(1)
}

func (m *MockChannelRepository) UpdateChannel(ctx context.Context, channel *models.NotificationChannel) error {
	args := m.Called(ctx, channel)
	return args.Error(0)
}

func (m *MockChannelRepository) DeleteChannel(ctx context.Context, id primitive.ObjectID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockChannelRepository) CreateMapping(ctx context.Context, mapping *models.NotificationMapping) error {
	args := m.Called(ctx, mapping)
	return args.Error(0)
}

func (m *MockChannelRepository) ListMappings(ctx context.Context) ([]models.NotificationMapping, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.NotificationMapping), args.Error(1)
}

func (m *MockChannelRepository) MappingsForAlertType(ctx context.Context, alertType string) ([]models.NotificationMapping, error) {
	args := m.Called(ctx, alertType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.NotificationMapping), args.Error(1)
}

func (m *MockChannelRepository) DeleteMapping(ctx context.Context, id primitive.ObjectID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockScheduleRepository is a mock implementation of repository.ScheduleRepository
type MockScheduleRepository struct {
	mock.Mock
}

func (m *MockScheduleRepository) Create(ctx context.Context, schedule *models.ETLSchedule) error {
	args := m.Called(ctx, schedule)
	return args.Error(0)
}

func (m *MockScheduleRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.ETLSchedule, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ETLSchedule), args.Error(1)
}

func (m *MockScheduleRepository) GetAll(ctx context.Context) ([]models.ETLSchedule, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ETLSchedule), args.Error(1)
}

func (m *MockScheduleRepository) GetDue(ctx context.Context, now time.Time) ([]models.ETLSchedule, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ETLSchedule), args.Error(1)
}

func (m *MockScheduleRepository) Update(ctx context.Context, schedule *models.ETLSchedule) error {
	args := m.Called(ctx, schedule)
	return args.Error(0)
}

func (m *MockScheduleRepository) MarkRunning(ctx context.Context, id primitive.ObjectID, startedAt, nextRun time.Time) error {
	args := m.Called(ctx, id, startedAt, nextRun)
	return args.Error(0)
}

func (m *MockScheduleRepository) SetResult(ctx context.Context, id primitive.ObjectID, status, lastError string) error {
	args := m.Called(ctx, id, status, lastError)
	return args.Error(0)
}

func (m *MockScheduleRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockReportRepository is a mock implementation of repository.ReportRepository
type MockReportRepository struct {
	mock.Mock
}

func (m *MockReportRepository) Create(ctx context.Context, report *models.ScheduledReport) error {
	args := m.Called(ctx, report)
	return args.Error(0)
}

func (m *MockReportRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.ScheduledReport, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ScheduledReport), args.Error(1)
}

func (m *MockReportRepository) GetAll(ctx context.Context) ([]models.ScheduledReport, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ScheduledReport), args.Error(1)
}

func (m *MockReportRepository) GetDue(ctx context.Context, now time.Time) ([]models.ScheduledReport, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ScheduledReport), args.Error(1)
}

func (m *MockReportRepository) Update(ctx context.Context, report *models.ScheduledReport) error {
	args := m.Called(ctx, report)
	return args.Error(0)
}

func (m *MockReportRepository) SetRunResult(ctx context.Context, id primitive.ObjectID, ranAt, nextRun time.Time) error {
	args := m.Called(ctx, id, ranAt, nextRun)
	return args.Error(0)
}

func (m *MockReportRepository) SetNextRun(ctx context.Context, id primitive.ObjectID, nextRun time.Time) error {
	args := m.Called(ctx, id, nextRun)
	return args.Error(0)
}

func (m *MockReportRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockMetricsRepository is a mock implementation of repository.MetricsRepository
type MockMetricsRepository struct {
	mock.Mock
}

func (m *MockMetricsRepository) Insert(ctx context.Context, sample *models.MetricSample) error {
	args := m.Called(ctx, sample)
	return args.Error(0)
}

func (m *MockMetricsRepository) InsertBatch(ctx context.Context, samples []models.MetricSample) error {
	args := m.Called(ctx, samples)
	return args.Error(0)
}

func (m *MockMetricsRepository) Latest(ctx context.Context, name, component string) (*models.MetricSample, error) {
	args := m.Called(ctx, name, component)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MetricSample), args.Error(1)
}

func (m *MockMetricsRepository) Range(ctx context.Context, name, component string, from, to time.Time) ([]models.MetricSample, error) {
	args := m.Called(ctx, name, component, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.MetricSample), args.Error(1)
}

func (m *MockMetricsRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

// MockMetricSource is a mock implementation of MetricSource
type MockMetricSource struct {
	mock.Mock
}

func (m *MockMetricSource) LatestValue(ctx context.Context, name, component string) (float64, error) {
	args := m.Called(ctx, name, component)
	return args.Get(0).(float64), args.Error(1)
}

// MockAlertCreator is a mock implementation of AlertCreator
type MockAlertCreator struct {
	mock.Mock
}

func (m *MockAlertCreator) CreateAlert(ctx context.Context, input CreateAlertInput) (*models.Alert, bool, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.Alert), args.Bool(1), args.Error(2)
}

// MockLocker is a mock implementation of Locker
type MockLocker struct {
	mock.Mock
}

func (m *MockLocker) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockLocker) ReleaseLock(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// MockPublisher is a mock implementation of Publisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(exchange, routingKey string, message interface{}) error {
	args := m.Called(exchange, routingKey, message)
	return args.Error(0)
}

// MockNotifier is a mock implementation of Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendAlertNotifications(ctx context.Context, alert *models.Alert) int {
	args := m.Called(ctx, alert)
	return args.Int(0)
}

// MockTransport is a mock implementation of Transport
type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Send(ctx context.Context, channel *models.NotificationChannel, alert *models.Alert) error {
	args := m.Called(ctx, channel, alert)
	return args.Error(0)
}

// MockReportSender is a mock implementation of ReportSender
type MockReportSender struct {
	mock.Mock
}

func (m *MockReportSender) SendReport(ctx context.Context, recipients []string, subject string, body []byte, format string) error {
	args := m.Called(ctx, recipients, subject, body, format)
	return args.Error(0)
}
