package service

import (
	"context"

	"github.com/propwatch/propwatch/internal/models"
	"github.com/propwatch/propwatch/internal/repository"
	"github.com/propwatch/propwatch/pkg/logger"
)

// Transport delivers one alert through one configured channel.
type Transport interface {
	Send(ctx context.Context, channel *models.NotificationChannel, alert *models.Alert) error
}

// Dispatcher routes fired alerts to notification channels via the stored
// mappings. Channel failures are logged per channel and never block the other
// channels; there is no retry.
type Dispatcher struct {
	channels   repository.ChannelRepository
	transports map[models.ChannelType]Transport
	log        *logger.Logger
}

func NewDispatcher(channels repository.ChannelRepository, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		channels:   channels,
		transports: make(map[models.ChannelType]Transport),
		log:        log,
	}
}

// RegisterTransport wires a transport for a channel type. Channels of an
// unregistered type are skipped at dispatch time.
func (d *Dispatcher) RegisterTransport(channelType models.ChannelType, transport Transport) {
	d.transports[channelType] = transport
}

// SendAlertNotifications delivers the alert to every mapped, enabled channel
// whose min_severity the alert meets. Returns the number of successful
// deliveries.
func (d *Dispatcher) SendAlertNotifications(ctx context.Context, alert *models.Alert) int {
	mappings, err := d.channels.MappingsForAlertType(ctx, alert.AlertType)
	if err != nil {
		d.log.WithError(err).Error("Failed to load notification mappings")
		return 0
	}

	sent := 0
	for _, mapping := range mappings {
		if !alert.Severity.AtLeast(mapping.MinSeverity) {
			continue
		}

		channel, err := d.channels.GetChannel(ctx, mapping.ChannelID)
		if err != nil {
			d.log.WithError(err).WithField("channel_id", mapping.ChannelID.Hex()).
				Warn("Mapping references missing channel")
			continue
		}
		if !channel.Enabled {
			continue
		}

		transport, ok := d.transports[channel.Type]
		if !ok {
			d.log.WithField("channel_type", channel.Type).Warn("No transport registered for channel type")
			continue
		}

		if err := transport.Send(ctx, channel, alert); err != nil {
			RecordNotification(string(channel.Type), err)
			d.log.WithError(err).WithFields(logger.Fields{
				"channel":  channel.Name,
				"type":     channel.Type,
				"alert_id": alert.ID.Hex(),
			}).Error("Notification delivery failed")
			continue
		}

		RecordNotification(string(channel.Type), nil)
		sent++
	}

	return sent
}
