package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/streadway/amqp"

	"github.com/propwatch/propwatch/pkg/logger"
)

// RabbitMQ wraps an AMQP connection with publish/consume helpers and a
// reconnect monitor.
type RabbitMQ struct {
	conn      *amqp.Connection
	channel   *amqp.Channel
	url       string
	log       *logger.Logger
	consumers []consumerRegistration
	stopCh    chan struct{}
}

type consumerRegistration struct {
	queueName    string
	consumerName string
	handler      func([]byte) error
	ctx          context.Context
}

func NewRabbitMQ(url string, log *logger.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	log.Info("Connected to RabbitMQ")

	r := &RabbitMQ{
		conn:    conn,
		channel: ch,
		url:     url,
		log:     log,
		stopCh:  make(chan struct{}),
	}

	go r.monitorConnection()

	return r, nil
}

func (r *RabbitMQ) Close() error {
	close(r.stopCh)
	if err := r.channel.Close(); err != nil {
		return fmt.Errorf("failed to close channel: %w", err)
	}
	if err := r.conn.Close(); err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}
	return nil
}

func (r *RabbitMQ) DeclareExchange(name, kind string, durable bool) error {
	return r.channel.ExchangeDeclare(name, kind, durable, false, false, false, nil)
}

func (r *RabbitMQ) DeclareQueue(name string, durable bool) (amqp.Queue, error) {
	return r.channel.QueueDeclare(name, durable, false, false, false, nil)
}

func (r *RabbitMQ) BindQueue(queueName, routingKey, exchangeName string) error {
	return r.channel.QueueBind(queueName, routingKey, exchangeName, false, nil)
}

// Publish marshals message to JSON and publishes it to the exchange.
func (r *RabbitMQ) Publish(exchange, routingKey string, message interface{}) error {
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	return r.channel.Publish(
		exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
			Timestamp:   time.Now(),
		},
	)
}

// ConsumeWithHandler consumes queueName until ctx is cancelled, acking on
// handler success and nacking with requeue on failure.
func (r *RabbitMQ) ConsumeWithHandler(ctx context.Context, queueName, consumerName string, handler func([]byte) error) error {
	r.consumers = append(r.consumers, consumerRegistration{
		queueName:    queueName,
		consumerName: consumerName,
		handler:      handler,
		ctx:          ctx,
	})

	deliveries, err := r.channel.Consume(queueName, consumerName, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consumer %s: %w", consumerName, err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				if err := handler(d.Body); err != nil {
					r.log.WithError(err).Warn("Message handler failed",
						logger.Field{Key: "queue", Value: queueName})
					_ = d.Nack(false, false)
					continue
				}
				_ = d.Ack(false)
			}
		}
	}()

	return nil
}

// monitorConnection re-dials when the broker closes the connection and
// restores registered consumers.
func (r *RabbitMQ) monitorConnection() {
	for {
		closeCh := r.conn.NotifyClose(make(chan *amqp.Error, 1))

		select {
		case <-r.stopCh:
			return
		case amqpErr := <-closeCh:
			if amqpErr == nil {
				return
			}
			r.log.WithField("reason", amqpErr.Reason).Warn("RabbitMQ connection lost, reconnecting")
		}

		for {
			select {
			case <-r.stopCh:
				return
			default:
			}

			conn, err := amqp.Dial(r.url)
			if err != nil {
				time.Sleep(5 * time.Second)
				continue
			}
			ch, err := conn.Channel()
			if err != nil {
				conn.Close()
				time.Sleep(5 * time.Second)
				continue
			}

			r.conn = conn
			r.channel = ch
			r.log.Info("RabbitMQ connection restored")

			for _, c := range r.consumers {
				if err := r.restoreConsumer(c); err != nil {
					r.log.WithError(err).Error("Failed to restore consumer",
						logger.Field{Key: "queue", Value: c.queueName})
				}
			}
			break
		}
	}
}

func (r *RabbitMQ) restoreConsumer(c consumerRegistration) error {
	deliveries, err := r.channel.Consume(c.queueName, c.consumerName, false, false, false, false, nil)
	if err != nil {
		return err
	}
	go func() {
		for {
			select {
			case <-c.ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				if err := c.handler(d.Body); err != nil {
					_ = d.Nack(false, false)
					continue
				}
				_ = d.Ack(false)
			}
		}
	}()
	return nil
}
