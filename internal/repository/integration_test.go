package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/propwatch/propwatch/internal/models"
	"github.com/propwatch/propwatch/pkg/database"
	"github.com/propwatch/propwatch/pkg/logger"
	"github.com/propwatch/propwatch/pkg/testutil"
)

type RepositoryIntegrationTestSuite struct {
	suite.Suite
	ctx       context.Context
	container *testutil.MongoDBContainer
	client    *mongo.Client
	db        *mongo.Database
}

func (s *RepositoryIntegrationTestSuite) SetupSuite() {
	s.ctx = context.Background()

	container, err := testutil.StartMongoContainer(s.ctx)
	s.Require().NoError(err)
	s.container = container

	client, err := database.NewMongoClient(container.URI, logger.NewLogger("test"))
	s.Require().NoError(err)
	s.client = client
	s.db = client.Database("monitoring_test")
}

func (s *RepositoryIntegrationTestSuite) TearDownSuite() {
	if s.client != nil {
		s.client.Disconnect(s.ctx)
	}
	if s.container != nil {
		s.container.Terminate(s.ctx)
	}
}

func (s *RepositoryIntegrationTestSuite) SetupTest() {
	s.Require().NoError(s.db.Drop(s.ctx))
}

func TestRepositoryIntegrationTestSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}
	suite.Run(t, new(RepositoryIntegrationTestSuite))
}

func (s *RepositoryIntegrationTestSuite) TestAlertLifecycle() {
	repo := NewAlertRepository(s.db)

	alert := &models.Alert{
		AlertType: "high_cpu",
		Severity:  models.SeverityCritical,
		Component: "system",
		Message:   "cpu above threshold",
		Status:    models.AlertStatusActive,
		CreatedAt: time.Now().UTC(),
	}
	s.Require().NoError(repo.Insert(s.ctx, alert))
	s.False(alert.ID.IsZero())

	found, err := repo.FindActive(s.ctx, "high_cpu", "system")
	s.Require().NoError(err)
	s.Equal(alert.ID, found.ID)

	_, err = repo.FindActive(s.ctx, "high_cpu", "other")
	s.ErrorIs(err, database.ErrNotFound)

	s.Require().NoError(repo.SetStatus(s.ctx, alert.ID, bson.M{
		"status":      models.AlertStatusResolved,
		"resolved_at": time.Now().UTC(),
	}))

	_, err = repo.FindActive(s.ctx, "high_cpu", "system")
	s.ErrorIs(err, database.ErrNotFound, "resolved alerts are not active")

	got, err := repo.GetByID(s.ctx, alert.ID)
	s.Require().NoError(err)
	s.Equal(models.AlertStatusResolved, got.Status)
}

func (s *RepositoryIntegrationTestSuite) TestAlertListAndSummary() {
	repo := NewAlertRepository(s.db)
	now := time.Now().UTC()

	for _, a := range []*models.Alert{
		{AlertType: "high_cpu", Severity: models.SeverityCritical, Component: "system",
			Status: models.AlertStatusActive, CreatedAt: now},
		{AlertType: "high_cpu", Severity: models.SeverityWarning, Component: "system",
			Status: models.AlertStatusResolved, CreatedAt: now.Add(-time.Hour)},
		{AlertType: "etl_failure", Severity: models.SeverityError, Component: "listings_fetch",
			Status: models.AlertStatusActive, CreatedAt: now.Add(-48 * time.Hour)},
	} {
		s.Require().NoError(repo.Insert(s.ctx, a))
	}

	active, err := repo.List(s.ctx, AlertFilter{Status: models.AlertStatusActive})
	s.Require().NoError(err)
	s.Len(active, 2)

	recent, err := repo.List(s.ctx, AlertFilter{Since: now.Add(-2 * time.Hour)})
	s.Require().NoError(err)
	s.Len(recent, 2)
	s.True(recent[0].CreatedAt.After(recent[1].CreatedAt), "newest first")

	summary, err := repo.Summary(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(3), summary.TotalAlerts)
	s.Equal(int64(2), summary.ActiveCount)
	s.Equal(int64(1), summary.BySeverity["critical"])
	s.Equal(int64(2), summary.ByComponent["system"])
}

func (s *RepositoryIntegrationTestSuite) TestScheduleDueQueryAndRunCycle() {
	repo := NewScheduleRepository(s.db)
	now := time.Now().UTC().Truncate(time.Millisecond)

	due := &models.ETLSchedule{
		PluginName:   "listings_fetch",
		Name:         "nightly fetch",
		ScheduleSpec: models.ScheduleSpec{Frequency: models.FrequencyDaily, Hour: 3},
		Enabled:      true,
		NextRun:      now.Add(-time.Minute),
	}
	future := &models.ETLSchedule{
		PluginName:   "retention_cleanup",
		Name:         "weekly cleanup",
		ScheduleSpec: models.ScheduleSpec{Frequency: models.FrequencyWeekly, DayOfWeek: 0, Hour: 4},
		Enabled:      true,
		NextRun:      now.Add(time.Hour),
	}
	disabled := &models.ETLSchedule{
		PluginName:   "listings_fetch",
		Name:         "paused fetch",
		ScheduleSpec: models.ScheduleSpec{Frequency: models.FrequencyDaily, Hour: 3},
		Enabled:      false,
		NextRun:      now.Add(-time.Minute),
	}
	for _, sched := range []*models.ETLSchedule{due, future, disabled} {
		s.Require().NoError(repo.Create(s.ctx, sched))
	}

	dueNow, err := repo.GetDue(s.ctx, now)
	s.Require().NoError(err)
	s.Require().Len(dueNow, 1)
	s.Equal(due.ID, dueNow[0].ID)

	nextRun := now.Add(24 * time.Hour)
	s.Require().NoError(repo.MarkRunning(s.ctx, due.ID, now, nextRun))

	running, err := repo.GetByID(s.ctx, due.ID)
	s.Require().NoError(err)
	s.Equal(models.JobStatusRunning, running.LastStatus)
	s.Require().NotNil(running.LastRun)
	s.WithinDuration(now, *running.LastRun, time.Second)
	s.WithinDuration(nextRun, running.NextRun, time.Second)

	dueAfter, err := repo.GetDue(s.ctx, now)
	s.Require().NoError(err)
	s.Empty(dueAfter, "a running schedule is no longer due")

	s.Require().NoError(repo.SetResult(s.ctx, due.ID, models.JobStatusSuccess, ""))
	done, err := repo.GetByID(s.ctx, due.ID)
	s.Require().NoError(err)
	s.Equal(models.JobStatusSuccess, done.LastStatus)
	s.Empty(done.LastError)
}

func (s *RepositoryIntegrationTestSuite) TestEventQueries() {
	repo := NewEventRepository(s.db)
	now := time.Now().UTC()

	for i := 0; i < 5; i++ {
		s.Require().NoError(repo.Insert(s.ctx, &models.Event{
			Type:      models.EventTypeAPIError,
			Component: "api",
			Message:   "upstream timeout",
			Timestamp: now.Add(-time.Duration(i) * time.Minute),
		}))
	}
	s.Require().NoError(repo.Insert(s.ctx, &models.Event{
		Type:      models.EventTypeAPIRequest,
		Component: "api",
		Timestamp: now.Add(-30 * time.Minute),
	}))

	count, err := repo.CountSince(s.ctx, models.EventTypeAPIError, "api", now.Add(-3*time.Minute))
	s.Require().NoError(err)
	s.Equal(int64(4), count)

	recent, err := repo.Recent(s.ctx, models.EventTypeAPIError, now.Add(-10*time.Minute), 0)
	s.Require().NoError(err)
	s.Len(recent, 5)
	s.True(recent[0].Timestamp.After(recent[1].Timestamp), "newest first")

	all, err := repo.Range(s.ctx, now.Add(-time.Hour), now.Add(time.Minute))
	s.Require().NoError(err)
	s.Len(all, 6)

	deleted, err := repo.DeleteOlderThan(s.ctx, now.Add(-10*time.Minute))
	s.Require().NoError(err)
	s.Equal(int64(1), deleted)
}

func (s *RepositoryIntegrationTestSuite) TestMetricLatestAndRange() {
	repo := NewMetricsRepository(s.db)
	now := time.Now().UTC()

	samples := []models.MetricSample{
		{Name: "cpu_percent", Value: 40, Category: "system", Component: "system", Timestamp: now.Add(-2 * time.Minute)},
		{Name: "cpu_percent", Value: 55, Category: "system", Component: "system", Timestamp: now.Add(-time.Minute)},
		{Name: "cpu_percent", Value: 61, Category: "system", Component: "system", Timestamp: now},
		{Name: "memory_percent", Value: 70, Category: "system", Component: "system", Timestamp: now},
	}
	s.Require().NoError(repo.InsertBatch(s.ctx, samples))

	latest, err := repo.Latest(s.ctx, "cpu_percent", "system")
	s.Require().NoError(err)
	s.Equal(61.0, latest.Value)

	_, err = repo.Latest(s.ctx, "disk_percent", "system")
	s.ErrorIs(err, database.ErrNotFound)

	window, err := repo.Range(s.ctx, "cpu_percent", "system", now.Add(-90*time.Second), now.Add(time.Second))
	s.Require().NoError(err)
	s.Len(window, 2)

	all, err := repo.Range(s.ctx, "", "system", now.Add(-time.Hour), now.Add(time.Second))
	s.Require().NoError(err)
	s.Len(all, 4)
}

func (s *RepositoryIntegrationTestSuite) TestChannelMappingsWildcard() {
	repo := NewChannelRepository(s.db)

	channel := &models.NotificationChannel{
		Name:    "ops slack",
		Type:    models.ChannelSlack,
		Enabled: true,
	}
	s.Require().NoError(repo.CreateChannel(s.ctx, channel))

	s.Require().NoError(repo.CreateMapping(s.ctx, &models.NotificationMapping{
		AlertType:   "*",
		MinSeverity: models.SeverityWarning,
		ChannelID:   channel.ID,
		Enabled:     true,
	}))
	s.Require().NoError(repo.CreateMapping(s.ctx, &models.NotificationMapping{
		AlertType:   "etl_failure",
		MinSeverity: models.SeverityInfo,
		ChannelID:   channel.ID,
		Enabled:     true,
	}))
	s.Require().NoError(repo.CreateMapping(s.ctx, &models.NotificationMapping{
		AlertType:   "high_cpu",
		MinSeverity: models.SeverityInfo,
		ChannelID:   channel.ID,
		Enabled:     false,
	}))

	mappings, err := repo.MappingsForAlertType(s.ctx, "etl_failure")
	s.Require().NoError(err)
	s.Len(mappings, 2, "exact match plus wildcard")

	mappings, err = repo.MappingsForAlertType(s.ctx, "high_cpu")
	s.Require().NoError(err)
	s.Len(mappings, 1, "disabled mapping excluded, wildcard included")

	mappings, err = repo.MappingsForAlertType(s.ctx, "unmapped_type")
	s.Require().NoError(err)
	s.Len(mappings, 1, "wildcard only")
}
