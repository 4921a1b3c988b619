package rabbitmq

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/streadway/amqp"

	"github.com/Go-routine-4595/equipment-dash/adapters/gateway/codec"
	"github.com/Go-routine-4595/equipment-dash/model"
)

const (
	queueSize      = 64
	reconnectDelay = 5 * time.Second
)

type RabbitMQConfig struct {
	ConnectionString string `yaml:"ConnectionString"`
	QueueName        string `yaml:"QueueName"`
}

// RabbitMQ queues sync events and publishes them from a single goroutine.
type RabbitMQ struct {
	ConnectionString string
	QueueName        string
	msgs             chan []byte
	logger           zerolog.Logger
	encoder          codec.Encoder
	conn             *amqp.Connection
	ch               *amqp.Channel
	// publish sends one body; it is replaced in tests
	publish func(body []byte) error
}

func NewRabbitMQ(config RabbitMQConfig, enc codec.Encoder, logger zerolog.Logger) *RabbitMQ {
	r := &RabbitMQ{
		msgs:             make(chan []byte, queueSize),
		ConnectionString: config.ConnectionString,
		QueueName:        config.QueueName,
		logger:           logger,
		encoder:          enc,
	}
	r.publish = r.publishToChannel
	return r
}

// PublishSync encodes the event and queues it. When the queue is full the
// event is dropped and logged rather than blocking the dashboard.
func (r *RabbitMQ) PublishSync(event model.SyncEvent) error {
	var (
		msg []byte
		err error
	)

	msg, err = r.encoder.Encode(event)
	if err != nil {
		return err
	}

	select {
	case r.msgs <- msg:
	default:
		r.logger.Warn().Str("cycle", event.CycleID).Msg("rabbitmq queue full, sync event dropped")
	}
	return nil
}

// connect establishes a new connection and channel
func (r *RabbitMQ) connect() error {
	var (
		err error
	)
	r.conn, err = amqp.Dial(r.ConnectionString)
	if err != nil {
		return err
	}

	r.ch, err = r.conn.Channel()
	if err != nil {
		return err
	}

	_, err = r.ch.QueueDeclare(
		r.QueueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return err
	}

	return nil
}

// reconnect retries until connected or ctx is cancelled.
func (r *RabbitMQ) reconnect(ctx context.Context) bool {
	for {
		r.logger.Info().Msg("Attempting to reconnect to RabbitMQ...")
		err := r.connect()
		if err == nil {
			r.logger.Info().Msg("Successfully reconnected to RabbitMQ...")
			return true
		}
		r.logger.Error().Err(err).Msg("Reconnect failed")
		select {
		case <-ctx.Done():
			return false
		case <-time.After(reconnectDelay):
		}
	}
}

// Start connects and runs the publishing loop until ctx is cancelled.
func (r *RabbitMQ) Start(ctx context.Context, wg *sync.WaitGroup) error {
	if err := r.connect(); err != nil {
		return err
	}
	wg.Add(1)
	go r.consume(ctx, wg)
	return nil
}

// Close gracefully shuts down the connection and channel
func (r *RabbitMQ) Close() error {
	if r.conn == nil {
		return nil
	}
	return r.conn.Close()
}

func (r *RabbitMQ) publishToChannel(body []byte) error {
	return r.ch.Publish(
		"",          // Exchange
		r.QueueName, // Routing key (queue name)
		false,       // Mandatory
		false,       // Immediate
		amqp.Publishing{
			ContentType: r.encoder.ContentType(),
			Timestamp:   time.Now(),
			Body:        body,
		},
	)
}

func (r *RabbitMQ) consume(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	r.logger.Info().Str("queue", r.QueueName).Msg("Waiting for sync events")
	for {
		select {
		case <-ctx.Done():
			// disconnect gracefully and leave
			if err := r.Close(); err != nil {
				r.logger.Warn().Err(err).Msg("closing rabbitmq connection")
			}
			r.logger.Info().Msg("Received interrupt signal, closing connection")
			return
		case msg := <-r.msgs:
			if err := r.publish(msg); err != nil {
				r.logger.Error().Err(err).Msg("Failed to publish a message")
				if !r.reconnect(ctx) {
					continue
				}
				if err = r.publish(msg); err != nil {
					r.logger.Error().Err(err).Msg("Failed to publish a message after reconnect")
				}
			}
		}
	}
}
