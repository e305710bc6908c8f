// Package queue connects the storefront to RabbitMQ: ingest message
// dispatch, the tracking archive stream and asynchronous scoring
// requests.
package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"storefront-api/internal/apperr"
)

// Config carries the broker wiring.
type Config struct {
	URL             string
	Exchange        string
	Queue           string
	DeadLetterQueue string
	ArchiveStream   string
}

// Broker holds the connection and channel and publishes envelopes.
type Broker struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	cfg  Config
}

// NewBroker dials the broker and opens a channel.
func NewBroker(cfg Config) (*Broker, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, apperr.Unavailable("connect to rabbitmq", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, apperr.Unavailable("open rabbitmq channel", err)
	}
	return &Broker{conn: conn, ch: ch, cfg: cfg}, nil
}

// SetupQueues declares the exchanges and queues: the main ingest
// queue with its dead-letter pair, plus the archive stream.
func (b *Broker) SetupQueues() error {
	dlx := b.cfg.DeadLetterQueue + "_exchange"
	if err := b.ch.ExchangeDeclare(
		dlx,
		"direct",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return apperr.Unavailable("declare dead-letter exchange", err)
	}
	if _, err := b.ch.QueueDeclare(
		b.cfg.DeadLetterQueue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		return apperr.Unavailable("declare dead-letter queue", err)
	}
	if err := b.ch.QueueBind(b.cfg.DeadLetterQueue, "", dlx, false, nil); err != nil {
		return apperr.Unavailable("bind dead-letter queue", err)
	}

	if err := b.ch.ExchangeDeclare(
		b.cfg.Exchange,
		"direct",
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		return apperr.Unavailable("declare exchange", err)
	}
	if _, err := b.ch.QueueDeclare(
		b.cfg.Queue,
		true,
		false,
		false,
		false,
		amqp.Table{
			"x-dead-letter-exchange":    dlx,
			"x-dead-letter-routing-key": b.cfg.DeadLetterQueue,
		},
	); err != nil {
		return apperr.Unavailable("declare ingest queue", err)
	}
	if err := b.ch.QueueBind(b.cfg.Queue, "", b.cfg.Exchange, false, nil); err != nil {
		return apperr.Unavailable("bind ingest queue", err)
	}

	if b.cfg.ArchiveStream != "" {
		if _, err := b.ch.QueueDeclare(
			b.cfg.ArchiveStream,
			true,
			false,
			false,
			false,
			nil,
		); err != nil {
			return apperr.Unavailable("declare archive stream", err)
		}
	}
	return nil
}

// publish sends one typed envelope to a routing target.
func (b *Broker) publish(ctx context.Context, exchange, routingKey, messageType string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return apperr.Rejected("encode message "+messageType, err)
	}
	body, err := json.Marshal(Envelope{MessageType: messageType, MessageData: raw})
	if err != nil {
		return apperr.Rejected("encode envelope "+messageType, err)
	}
	err = b.ch.PublishWithContext(ctx, exchange, routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			MessageId:    uuid.NewString(),
			Timestamp:    time.Now(),
			ContentType:  "application/json",
			Body:         body,
		})
	if err != nil {
		return apperr.Unavailable("publish "+messageType, err)
	}
	return nil
}

// Publish sends one typed envelope to the ingest exchange.
func (b *Broker) Publish(ctx context.Context, messageType string, data any) error {
	return b.publish(ctx, b.cfg.Exchange, "", messageType, data)
}

// RequestScoring enqueues an asynchronous scoring run for the
// customer behind an email.
func (b *Broker) RequestScoring(ctx context.Context, email string) error {
	return b.Publish(ctx, TypeCalculateScores, ScoreRequestData{Email: email})
}

// Archive mirrors a payload onto the archive stream.
func (b *Broker) Archive(ctx context.Context, messageType string, data any) error {
	if b.cfg.ArchiveStream == "" {
		return nil
	}
	return b.publish(ctx, "", b.cfg.ArchiveStream, messageType, data)
}

// Close releases the channel and connection.
func (b *Broker) Close() {
	if b.ch != nil {
		b.ch.Close()
	}
	if b.conn != nil {
		b.conn.Close()
	}
}
