package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/propwatch/propwatch/internal/models"
	"github.com/propwatch/propwatch/pkg/logger"
)

type AlertEngineTestSuite struct {
	suite.Suite
	ctx     context.Context
	rules   *MockRuleRepository
	events  *MockEventRepository
	source  *MockMetricSource
	creator *MockAlertCreator
	engine  *AlertEngine
	now     time.Time
}

func (s *AlertEngineTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.rules = new(MockRuleRepository)
	s.events = new(MockEventRepository)
	s.source = new(MockMetricSource)
	s.creator = new(MockAlertCreator)
	s.engine = NewAlertEngine(s.rules, s.events, s.source, s.creator, logger.NewLogger("test"), time.Minute)
	s.now = time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	s.engine.now = func() time.Time { return s.now }
}

func TestAlertEngineTestSuite(t *testing.T) {
	suite.Run(t, new(AlertEngineTestSuite))
}

func thresholdRule(metric, operator string, threshold float64) models.AlertRule {
	return models.AlertRule{
		ID:        primitive.NewObjectID(),
		Name:      "high " + metric,
		AlertType: "high_" + metric,
		Severity:  models.SeverityCritical,
		Component: "system",
		Enabled:   true,
		Condition: models.AlertCondition{
			Type: models.ConditionThreshold,
			Threshold: &models.ThresholdCondition{
				MetricName: metric,
				Operator:   operator,
				Threshold:  threshold,
			},
		},
		CooldownMinutes: 30,
	}
}

func (s *AlertEngineTestSuite) TestThresholdRuleFires() {
	rule := thresholdRule("cpu_percent", ">", 90)

	s.rules.On("GetEnabled", s.ctx).Return([]models.AlertRule{rule}, nil)
	s.source.On("LatestValue", s.ctx, "cpu_percent", "system").Return(95.0, nil)
	s.creator.On("CreateAlert", s.ctx, mock.AnythingOfType("CreateAlertInput")).
		Return(&models.Alert{ID: primitive.NewObjectID()}, true, nil)
	s.rules.On("SetLastTriggered", s.ctx, rule.ID, s.now).Return(nil)

	created, err := s.engine.CheckAlertRules(s.ctx)
	s.NoError(err)
	s.Equal(1, created)

	s.creator.AssertCalled(s.T(), "CreateAlert", s.ctx, mock.MatchedBy(func(input CreateAlertInput) bool {
		return input.AlertType == "high_cpu_percent" &&
			input.Severity == models.SeverityCritical &&
			input.RuleID != nil && *input.RuleID == rule.ID
	}))
}

func (s *AlertEngineTestSuite) TestThresholdRuleBelowLimitDoesNotFire() {
	rule := thresholdRule("cpu_percent", ">", 90)

	s.rules.On("GetEnabled", s.ctx).Return([]models.AlertRule{rule}, nil)
	s.source.On("LatestValue", s.ctx, "cpu_percent", "system").Return(85.0, nil)

	created, err := s.engine.CheckAlertRules(s.ctx)
	s.NoError(err)
	s.Equal(0, created)
	s.creator.AssertNotCalled(s.T(), "CreateAlert", mock.Anything, mock.Anything)
}

func (s *AlertEngineTestSuite) TestDeduplicatedAlertDoesNotCountOrArmCooldown() {
	rule := thresholdRule("cpu_percent", ">", 90)

	s.rules.On("GetEnabled", s.ctx).Return([]models.AlertRule{rule}, nil)
	s.source.On("LatestValue", s.ctx, "cpu_percent", "system").Return(95.0, nil)
	s.creator.On("CreateAlert", s.ctx, mock.Anything).
		Return(&models.Alert{ID: primitive.NewObjectID()}, false, nil)

	created, err := s.engine.CheckAlertRules(s.ctx)
	s.NoError(err)
	s.Equal(0, created)
	s.rules.AssertNotCalled(s.T(), "SetLastTriggered", mock.Anything, mock.Anything, mock.Anything)
}

func (s *AlertEngineTestSuite) TestCooldownSuppressesRule() {
	rule := thresholdRule("cpu_percent", ">", 90)
	recent := s.now.Add(-10 * time.Minute)
	rule.LastTriggered = &recent

	s.rules.On("GetEnabled", s.ctx).Return([]models.AlertRule{rule}, nil)

	created, err := s.engine.CheckAlertRules(s.ctx)
	s.NoError(err)
	s.Equal(0, created)
	s.source.AssertNotCalled(s.T(), "LatestValue", mock.Anything, mock.Anything, mock.Anything)
}

func (s *AlertEngineTestSuite) TestExpiredCooldownAllowsRule() {
	rule := thresholdRule("cpu_percent", ">", 90)
	old := s.now.Add(-45 * time.Minute)
	rule.LastTriggered = &old

	s.rules.On("GetEnabled", s.ctx).Return([]models.AlertRule{rule}, nil)
	s.source.On("LatestValue", s.ctx, "cpu_percent", "system").Return(95.0, nil)
	s.creator.On("CreateAlert", s.ctx, mock.Anything).
		Return(&models.Alert{ID: primitive.NewObjectID()}, true, nil)
	s.rules.On("SetLastTriggered", s.ctx, rule.ID, s.now).Return(nil)

	created, err := s.engine.CheckAlertRules(s.ctx)
	s.NoError(err)
	s.Equal(1, created)
}

func (s *AlertEngineTestSuite) TestMissingMetricDoesNotFire() {
	rule := thresholdRule("made_up_metric", ">", 1)

	s.rules.On("GetEnabled", s.ctx).Return([]models.AlertRule{rule}, nil)
	s.source.On("LatestValue", s.ctx, "made_up_metric", "system").Return(0.0, ErrNoValue)

	created, err := s.engine.CheckAlertRules(s.ctx)
	s.NoError(err)
	s.Equal(0, created)
	s.creator.AssertNotCalled(s.T(), "CreateAlert", mock.Anything, mock.Anything)
}

func (s *AlertEngineTestSuite) TestFailingRuleDoesNotBlockOthers() {
	broken := thresholdRule("cpu_percent", ">", 90)
	healthy := thresholdRule("memory_percent", ">", 80)

	s.rules.On("GetEnabled", s.ctx).Return([]models.AlertRule{broken, healthy}, nil)
	s.source.On("LatestValue", s.ctx, "cpu_percent", "system").Return(0.0, errors.New("source down"))
	s.source.On("LatestValue", s.ctx, "memory_percent", "system").Return(92.0, nil)
	s.creator.On("CreateAlert", s.ctx, mock.Anything).
		Return(&models.Alert{ID: primitive.NewObjectID()}, true, nil)
	s.rules.On("SetLastTriggered", s.ctx, healthy.ID, s.now).Return(nil)

	created, err := s.engine.CheckAlertRules(s.ctx)
	s.NoError(err)
	s.Equal(1, created)
}

func (s *AlertEngineTestSuite) TestFrequencyRuleFires() {
	rule := models.AlertRule{
		ID:        primitive.NewObjectID(),
		Name:      "api error burst",
		AlertType: "api_error_burst",
		Severity:  models.SeverityError,
		Component: "api",
		Enabled:   true,
		Condition: models.AlertCondition{
			Type: models.ConditionFrequency,
			Frequency: &models.FrequencyCondition{
				EventType:     models.EventTypeAPIError,
				Count:         10,
				PeriodMinutes: 5,
			},
		},
	}

	s.rules.On("GetEnabled", s.ctx).Return([]models.AlertRule{rule}, nil)
	s.events.On("CountSince", s.ctx, models.EventTypeAPIError, "api", s.now.Add(-5*time.Minute)).
		Return(int64(12), nil)
	s.creator.On("CreateAlert", s.ctx, mock.Anything).
		Return(&models.Alert{ID: primitive.NewObjectID()}, true, nil)
	s.rules.On("SetLastTriggered", s.ctx, rule.ID, s.now).Return(nil)

	created, err := s.engine.CheckAlertRules(s.ctx)
	s.NoError(err)
	s.Equal(1, created)
}

func (s *AlertEngineTestSuite) TestFrequencyRuleBelowCountDoesNotFire() {
	rule := models.AlertRule{
		ID:        primitive.NewObjectID(),
		Name:      "api error burst",
		AlertType: "api_error_burst",
		Severity:  models.SeverityError,
		Enabled:   true,
		Condition: models.AlertCondition{
			Type: models.ConditionFrequency,
			Frequency: &models.FrequencyCondition{
				EventType:     models.EventTypeAPIError,
				Count:         10,
				PeriodMinutes: 5,
			},
		},
	}

	s.rules.On("GetEnabled", s.ctx).Return([]models.AlertRule{rule}, nil)
	s.events.On("CountSince", s.ctx, models.EventTypeAPIError, "", mock.AnythingOfType("time.Time")).
		Return(int64(3), nil)

	created, err := s.engine.CheckAlertRules(s.ctx)
	s.NoError(err)
	s.Equal(0, created)
}

func (s *AlertEngineTestSuite) TestPatternRuleFiresOnMatch() {
	rule := models.AlertRule{
		ID:        primitive.NewObjectID(),
		Name:      "timeout watch",
		AlertType: "upstream_timeout",
		Severity:  models.SeverityWarning,
		Enabled:   true,
		Condition: models.AlertCondition{
			Type: models.ConditionPattern,
			Pattern: &models.PatternCondition{
				Pattern: `timeout|connection refused`,
			},
		},
	}

	events := []models.Event{
		{Type: models.EventTypeAPIError, Message: "GET /listings -> 200"},
		{Type: models.EventTypeETLFailure, Message: "feed fetch: connection refused"},
	}

	s.rules.On("GetEnabled", s.ctx).Return([]models.AlertRule{rule}, nil)
	s.events.On("Recent", s.ctx, "", mock.AnythingOfType("time.Time"), int64(0)).Return(events, nil)
	s.creator.On("CreateAlert", s.ctx, mock.Anything).
		Return(&models.Alert{ID: primitive.NewObjectID()}, true, nil)
	s.rules.On("SetLastTriggered", s.ctx, rule.ID, s.now).Return(nil)

	created, err := s.engine.CheckAlertRules(s.ctx)
	s.NoError(err)
	s.Equal(1, created)

	s.creator.AssertCalled(s.T(), "CreateAlert", s.ctx, mock.MatchedBy(func(input CreateAlertInput) bool {
		return input.AlertType == "upstream_timeout"
	}))
}

func (s *AlertEngineTestSuite) TestPatternRuleNoMatch() {
	rule := models.AlertRule{
		ID:        primitive.NewObjectID(),
		Name:      "timeout watch",
		AlertType: "upstream_timeout",
		Severity:  models.SeverityWarning,
		Enabled:   true,
		Condition: models.AlertCondition{
			Type: models.ConditionPattern,
			Pattern: &models.PatternCondition{
				Pattern: `timeout`,
			},
		},
	}

	s.rules.On("GetEnabled", s.ctx).Return([]models.AlertRule{rule}, nil)
	s.events.On("Recent", s.ctx, "", mock.AnythingOfType("time.Time"), int64(0)).
		Return([]models.Event{{Message: "all good"}}, nil)

	created, err := s.engine.CheckAlertRules(s.ctx)
	s.NoError(err)
	s.Equal(0, created)
}
