// Package broker ingests score records from a RabbitMQ queue.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/okian/gradestats/internal/domain/model"
	"github.com/okian/gradestats/pkg/logger"
	"github.com/okian/gradestats/pkg/metrics"
)

const defaultPrefetch = 32

// Ingester accepts decoded records.
type Ingester interface {
	Ingest(ctx context.Context, r model.ScoreRecord) (model.Receipt, error)
}

// Consumer reads JSON score records from a durable queue with manual acks.
//
// A delivery is acked once ingested or found to be a duplicate, rejected when
// it can never be ingested, and requeued on backpressure or transient errors.
type Consumer struct {
	url      string
	queue    string
	tag      string
	prefetch int
	ingester Ingester
	logger   logger.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
	done chan struct{}
}

// NewConsumer creates a consumer. Call Start to connect.
func NewConsumer(url, queueName string, ing Ingester, opts ...Option) *Consumer {
	c := &Consumer{
		url:      url,
		queue:    queueName,
		tag:      "gradestats",
		prefetch: defaultPrefetch,
		ingester: ing,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.Get().Named("broker")
	}
	return c
}

// Start connects, declares the queue and consumes until ctx ends or Close.
func (c *Consumer) Start(ctx context.Context) error {
	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to declare queue %q: %w", c.queue, err)
	}
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to set qos: %w", err)
	}
	deliveries, err := ch.Consume(
		c.queue,
		c.tag,
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to start consuming %q: %w", c.queue, err)
	}

	c.mu.Lock()
	c.conn, c.ch, c.done = conn, ch, make(chan struct{})
	done := c.done
	c.mu.Unlock()

	c.logger.Info(ctx, "consuming", logger.String("queue", c.queue))
	go func() {
		defer close(done)
		c.consume(ctx, deliveries)
	}()
	return nil
}

func (c *Consumer) consume(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			c.handle(ctx, d)
		}
	}
}

// handle settles one delivery.
func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) { //nolint:gocritic // hugeParam: deliveries arrive by value
	var rec model.ScoreRecord
	if err := json.Unmarshal(d.Body, &rec); err != nil {
		c.settle(ctx, d, fmt.Errorf("%w: %w", ErrDecode, err))
		return
	}
	if rec.RecordID == "" {
		rec.RecordID = d.MessageId
	}
	_, err := c.ingester.Ingest(ctx, rec)
	c.settle(ctx, d, err)
}

func (c *Consumer) settle(ctx context.Context, d amqp.Delivery, err error) { //nolint:gocritic // hugeParam: deliveries arrive by value
	var ackErr error
	switch {
	case err == nil:
		ackErr = d.Ack(false)
	case errors.Is(err, ErrDecode), errors.Is(err, model.ErrInvalidRecord), errors.Is(err, model.ErrMalformedEntry):
		metrics.RecordError("broker", "rejected")
		c.logger.Warn(ctx, "rejecting delivery", logger.Any("delivery_tag", d.DeliveryTag), logger.Error(err))
		ackErr = d.Reject(false)
	default:
		metrics.RecordError("broker", "requeued")
		c.logger.Debug(ctx, "requeueing delivery", logger.Any("delivery_tag", d.DeliveryTag), logger.Error(err))
		ackErr = d.Nack(false, true)
	}
	if ackErr != nil {
		c.logger.Error(ctx, "failed to settle delivery", logger.Error(ackErr))
	}
}

// Close cancels the consumer and closes the connection.
func (c *Consumer) Close() error {
	c.mu.Lock()
	ch, conn, done := c.ch, c.conn, c.done
	c.ch, c.conn = nil, nil
	c.mu.Unlock()

	if conn == nil {
		return ErrNotStarted
	}
	if err := ch.Cancel(c.tag, false); err != nil {
		c.logger.Warn(context.Background(), "failed to cancel consumer", logger.Error(err))
	}
	<-done
	if err := ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		return fmt.Errorf("close channel: %w", err)
	}
	if err := conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		return fmt.Errorf("close connection: %w", err)
	}
	return nil
}
