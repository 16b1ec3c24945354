package broker

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/okian/gradestats/internal/domain/model"
)

// Publisher sends score records to a queue as persistent JSON messages.
type Publisher struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

// NewPublisher dials url and declares queueName.
func NewPublisher(url, queueName string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare queue %q: %w", queueName, err)
	}
	return &Publisher{conn: conn, ch: ch, queue: queueName}, nil
}

// Publish sends r through the default exchange.
func (p *Publisher) Publish(ctx context.Context, r model.ScoreRecord) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	return p.ch.PublishWithContext(ctx, "", p.queue, false, false, Message(r.RecordID, body))
}

// Message builds the AMQP message for an encoded record.
func Message(recordID string, body []byte) amqp.Publishing {
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    recordID,
		Body:         body,
	}
}

// Close closes the channel and the connection.
func (p *Publisher) Close() error {
	_ = p.ch.Close()
	return p.conn.Close()
}
