package queue

import (
	"context"
	"encoding/json"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"storefront-api/internal/apperr"
	"storefront-api/internal/catalog"
	"storefront-api/internal/customer"
	"storefront-api/internal/models"
	"storefront-api/internal/scoring"
	"storefront-api/internal/tracking"
	"storefront-api/internal/weights"
)

// Envelope is the wire shape of every queue message.
type Envelope struct {
	MessageType string          `json:"message_type"`
	MessageData json.RawMessage `json:"message_data"`
}

// Recognised message types.
const (
	TypeProductConfig       = "mpc_assets_product_config"
	TypeStockUpdate         = "stock_update"
	TypeStaticPagePublish   = "static_page_publish"
	TypeStaticPageUnpublish = "static_page_unpublish"
	TypeWeightUpdate        = "scoring_weight_update"
	TypeCalculateScores     = "calculate_scores"
	TypeTrackingArchive     = "tracking_archive"
)

// ScoreRequestData addresses the customer of a scoring request.
type ScoreRequestData struct {
	CustomerID string `json:"customer_id,omitempty"`
	Email      string `json:"email,omitempty"`
}

// WeightUpdateData carries a new weight triple.
type WeightUpdateData struct {
	Question float64 `json:"question"`
	Order    float64 `json:"order"`
	Track    float64 `json:"track"`
}

// UnpublishData names the page a static_page_unpublish removes.
type UnpublishData struct {
	Descriptor string `json:"descriptor"`
}

// Consumer dispatches ingest envelopes onto the domain services.
type Consumer struct {
	broker    *Broker
	catalog   *catalog.Service
	pages     *customer.PageStore
	customers *customer.Store
	weights   *weights.Registry
	scoring   *scoring.Engine
	tracking  *tracking.Ingestor
}

// NewConsumer wires the consumer over the domain services.
func NewConsumer(
	broker *Broker,
	cat *catalog.Service,
	pages *customer.PageStore,
	customers *customer.Store,
	registry *weights.Registry,
	engine *scoring.Engine,
	ingestor *tracking.Ingestor,
) *Consumer {
	return &Consumer{
		broker:    broker,
		catalog:   cat,
		pages:     pages,
		customers: customers,
		weights:   registry,
		scoring:   engine,
		tracking:  ingestor,
	}
}

// Start consumes the ingest queue and the dead-letter queue until the
// context is cancelled. Transient failures requeue; permanent ones
// are logged and routed to the dead-letter queue.
func (c *Consumer) Start(ctx context.Context) error {
	msgs, err := c.broker.ch.Consume(
		c.broker.cfg.Queue,
		"storefront-api", // consumer tag
		false,            // auto-ack
		false,            // exclusive
		false,            // no-local
		false,            // no-wait
		nil,
	)
	if err != nil {
		return apperr.Unavailable("register ingest consumer", err)
	}
	go c.loop(ctx, msgs)

	dlq, err := c.broker.ch.Consume(
		c.broker.cfg.DeadLetterQueue,
		"storefront-api-dlq",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return apperr.Unavailable("register dead-letter consumer", err)
	}
	go func() {
		for msg := range dlq {
			log.Printf("queue: dead letter: %s", msg.Body)
			msg.Ack(false)
		}
	}()
	return nil
}

func (c *Consumer) loop(ctx context.Context, msgs <-chan amqp.Delivery) {
	for msg := range msgs {
		c.handle(ctx, msg)
	}
}

func (c *Consumer) handle(ctx context.Context, msg amqp.Delivery) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("queue: recovered from panic: %v", r)
			msg.Nack(false, false)
		}
	}()

	var env Envelope
	if err := json.Unmarshal(msg.Body, &env); err != nil {
		log.Printf("queue: malformed envelope: %v", err)
		msg.Nack(false, false)
		return
	}
	if err := c.Dispatch(ctx, env); err != nil {
		if apperr.Retryable(err) {
			log.Printf("queue: %s failed transiently, requeueing: %v", env.MessageType, err)
			msg.Nack(false, true)
			return
		}
		log.Printf("queue: %s failed permanently: %v", env.MessageType, err)
		msg.Nack(false, false)
		return
	}
	msg.Ack(false)
}

// Dispatch routes one envelope to its handler.
func (c *Consumer) Dispatch(ctx context.Context, env Envelope) error {
	switch env.MessageType {
	case TypeProductConfig:
		var products []models.Product
		if err := json.Unmarshal(env.MessageData, &products); err != nil {
			return apperr.Incorrect("malformed product config payload: %v", err)
		}
		return c.catalog.Upsert(ctx, products)

	case TypeStockUpdate:
		var updates []catalog.StockUpdate
		if err := json.Unmarshal(env.MessageData, &updates); err != nil {
			return apperr.Incorrect("malformed stock payload: %v", err)
		}
		return c.catalog.UpdateStock(ctx, updates)

	case TypeStaticPagePublish:
		var page customer.StaticPage
		if err := json.Unmarshal(env.MessageData, &page); err != nil {
			return apperr.Incorrect("malformed static page payload: %v", err)
		}
		return c.pages.Publish(ctx, page)

	case TypeStaticPageUnpublish:
		var data UnpublishData
		if err := json.Unmarshal(env.MessageData, &data); err != nil {
			return apperr.Incorrect("malformed unpublish payload: %v", err)
		}
		return c.pages.Unpublish(ctx, data.Descriptor)

	case TypeWeightUpdate:
		var data WeightUpdateData
		if err := json.Unmarshal(env.MessageData, &data); err != nil {
			return apperr.Incorrect("malformed weight payload: %v", err)
		}
		_, err := c.weights.Set(ctx, data.Question, data.Order, data.Track, time.Now())
		return err

	case TypeCalculateScores:
		var data ScoreRequestData
		if err := json.Unmarshal(env.MessageData, &data); err != nil {
			return apperr.Incorrect("malformed score request payload: %v", err)
		}
		return c.calculateScores(ctx, data)

	case TypeTrackingArchive:
		var actions []tracking.Action
		if err := json.Unmarshal(env.MessageData, &actions); err != nil {
			return apperr.Incorrect("malformed tracking payload: %v", err)
		}
		return c.tracking.Ingest(ctx, actions)

	default:
		return apperr.Incorrect("unknown message type %q", env.MessageType)
	}
}

// calculateScores runs the scoring engine for the addressed customer.
// Requests for a customer whose run is already in flight are dropped;
// the flag serialises runs across consumers.
func (c *Consumer) calculateScores(ctx context.Context, data ScoreRequestData) error {
	id := data.CustomerID
	if id == "" && data.Email != "" {
		cust, err := c.customers.FindByEmail(ctx, data.Email)
		if err != nil {
			return err
		}
		id = cust.ID
	}
	if id == "" {
		return c.scoring.Run(ctx, models.Anonymous())
	}
	inProgress, err := c.customers.PersonalizeInProgress(ctx, id)
	if err != nil {
		return err
	}
	if inProgress {
		log.Printf("queue: scoring for %s already in progress, dropping request", id)
		return nil
	}
	return c.scoring.Run(ctx, models.Identified(id))
}
