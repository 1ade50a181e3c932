package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/propwatch/propwatch/internal/models"
	"github.com/propwatch/propwatch/pkg/database"
	"github.com/propwatch/propwatch/pkg/logger"
)

type DispatcherTestSuite struct {
	suite.Suite
	ctx        context.Context
	channels   *MockChannelRepository
	email      *MockTransport
	slack      *MockTransport
	dispatcher *Dispatcher
}

func (s *DispatcherTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.channels = new(MockChannelRepository)
	s.email = new(MockTransport)
	s.slack = new(MockTransport)
	s.dispatcher = NewDispatcher(s.channels, logger.NewLogger("test"))
	s.dispatcher.RegisterTransport(models.ChannelEmail, s.email)
	s.dispatcher.RegisterTransport(models.ChannelSlack, s.slack)
}

func TestDispatcherTestSuite(t *testing.T) {
	suite.Run(t, new(DispatcherTestSuite))
}

func testAlert(severity models.Severity) *models.Alert {
	return &models.Alert{
		ID:        primitive.NewObjectID(),
		AlertType: "high_cpu",
		Severity:  severity,
		Component: "system",
		Message:   "cpu above threshold",
	}
}

func testChannel(id primitive.ObjectID, channelType models.ChannelType, enabled bool) *models.NotificationChannel {
	return &models.NotificationChannel{
		ID:      id,
		Name:    string(channelType) + " channel",
		Type:    channelType,
		Enabled: enabled,
	}
}

func (s *DispatcherTestSuite) TestSendsToMappedChannels() {
	emailID := primitive.NewObjectID()
	slackID := primitive.NewObjectID()

	s.channels.On("MappingsForAlertType", s.ctx, "high_cpu").Return([]models.NotificationMapping{
		{ChannelID: emailID, MinSeverity: models.SeverityWarning},
		{ChannelID: slackID, MinSeverity: models.SeverityInfo},
	}, nil)
	s.channels.On("GetChannel", s.ctx, emailID).Return(testChannel(emailID, models.ChannelEmail, true), nil)
	s.channels.On("GetChannel", s.ctx, slackID).Return(testChannel(slackID, models.ChannelSlack, true), nil)
	s.email.On("Send", s.ctx, mock.Anything, mock.Anything).Return(nil)
	s.slack.On("Send", s.ctx, mock.Anything, mock.Anything).Return(nil)

	sent := s.dispatcher.SendAlertNotifications(s.ctx, testAlert(models.SeverityError))
	s.Equal(2, sent)
}

func (s *DispatcherTestSuite) TestMinSeverityGate() {
	channelID := primitive.NewObjectID()

	s.channels.On("MappingsForAlertType", s.ctx, "high_cpu").Return([]models.NotificationMapping{
		{ChannelID: channelID, MinSeverity: models.SeverityError},
	}, nil)

	// A warning alert does not meet an error-level mapping.
	sent := s.dispatcher.SendAlertNotifications(s.ctx, testAlert(models.SeverityWarning))
	s.Equal(0, sent)
	s.channels.AssertNotCalled(s.T(), "GetChannel", mock.Anything, mock.Anything)

	// An alert at exactly the mapping severity goes through.
	s.channels.On("GetChannel", s.ctx, channelID).Return(testChannel(channelID, models.ChannelEmail, true), nil)
	s.email.On("Send", s.ctx, mock.Anything, mock.Anything).Return(nil)

	sent = s.dispatcher.SendAlertNotifications(s.ctx, testAlert(models.SeverityError))
	s.Equal(1, sent)
}

func (s *DispatcherTestSuite) TestChannelFailureDoesNotBlockOthers() {
	emailID := primitive.NewObjectID()
	slackID := primitive.NewObjectID()

	s.channels.On("MappingsForAlertType", s.ctx, "high_cpu").Return([]models.NotificationMapping{
		{ChannelID: emailID, MinSeverity: models.SeverityInfo},
		{ChannelID: slackID, MinSeverity: models.SeverityInfo},
	}, nil)
	s.channels.On("GetChannel", s.ctx, emailID).Return(testChannel(emailID, models.ChannelEmail, true), nil)
	s.channels.On("GetChannel", s.ctx, slackID).Return(testChannel(slackID, models.ChannelSlack, true), nil)
	s.email.On("Send", s.ctx, mock.Anything, mock.Anything).Return(errors.New("smtp timeout"))
	s.slack.On("Send", s.ctx, mock.Anything, mock.Anything).Return(nil)

	sent := s.dispatcher.SendAlertNotifications(s.ctx, testAlert(models.SeverityCritical))
	s.Equal(1, sent)
	s.slack.AssertCalled(s.T(), "Send", s.ctx, mock.Anything, mock.Anything)
}

func (s *DispatcherTestSuite) TestDisabledChannelSkipped() {
	channelID := primitive.NewObjectID()

	s.channels.On("MappingsForAlertType", s.ctx, "high_cpu").Return([]models.NotificationMapping{
		{ChannelID: channelID, MinSeverity: models.SeverityInfo},
	}, nil)
	s.channels.On("GetChannel", s.ctx, channelID).Return(testChannel(channelID, models.ChannelEmail, false), nil)

	sent := s.dispatcher.SendAlertNotifications(s.ctx, testAlert(models.SeverityCritical))
	s.Equal(0, sent)
	s.email.AssertNotCalled(s.T(), "Send", mock.Anything, mock.Anything, mock.Anything)
}

func (s *DispatcherTestSuite) TestDanglingMappingSkipped() {
	missingID := primitive.NewObjectID()
	goodID := primitive.NewObjectID()

	s.channels.On("MappingsForAlertType", s.ctx, "high_cpu").Return([]models.NotificationMapping{
		{ChannelID: missingID, MinSeverity: models.SeverityInfo},
		{ChannelID: goodID, MinSeverity: models.SeverityInfo},
	}, nil)
	s.channels.On("GetChannel", s.ctx, missingID).Return(nil, database.ErrNotFound)
	s.channels.On("GetChannel", s.ctx, goodID).Return(testChannel(goodID, models.ChannelSlack, true), nil)
	s.slack.On("Send", s.ctx, mock.Anything, mock.Anything).Return(nil)

	sent := s.dispatcher.SendAlertNotifications(s.ctx, testAlert(models.SeverityError))
	s.Equal(1, sent)
}

func (s *DispatcherTestSuite) TestUnregisteredTransportSkipped() {
	channelID := primitive.NewObjectID()

	s.channels.On("MappingsForAlertType", s.ctx, "high_cpu").Return([]models.NotificationMapping{
		{ChannelID: channelID, MinSeverity: models.SeverityInfo},
	}, nil)
	s.channels.On("GetChannel", s.ctx, channelID).Return(testChannel(channelID, models.ChannelTelegram, true), nil)

	sent := s.dispatcher.SendAlertNotifications(s.ctx, testAlert(models.SeverityError))
	s.Equal(0, sent)
}

func (s *DispatcherTestSuite) TestNoMappings() {
	s.channels.On("MappingsForAlertType", s.ctx, "high_cpu").Return([]models.NotificationMapping{}, nil)

	sent := s.dispatcher.SendAlertNotifications(s.ctx, testAlert(models.SeverityCritical))
	s.Equal(0, sent)
}
