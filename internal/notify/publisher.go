package notify

import (
	"encoding/json"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/mpaulose/budgetsync/internal/budget/domain"
)

const queueName = "budget_sync_events"

// RabbitMQPublisher forwards accepted events to a RabbitMQ queue so
// downstream consumers (push notification senders, audit sinks) can react
// without polling the sync feed.
type RabbitMQPublisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   amqp.Queue
}

func NewRabbitMQPublisher(rabbitMQURL string) (*RabbitMQPublisher, error) {
	conn, err := amqp.Dial(rabbitMQURL)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	queue, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &RabbitMQPublisher{
		conn:    conn,
		channel: ch,
		queue:   queue,
	}, nil
}

func (p *RabbitMQPublisher) Publish(event domain.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	err = p.channel.Publish(
		"",
		p.queue.Name,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
	if err != nil {
		return err
	}

	slog.Debug("event published",
		"event_type", event.Type,
		"budget_id", event.BudgetID,
		"sequence", event.Sequence,
	)
	return nil
}

func (p *RabbitMQPublisher) Close() {
	p.channel.Close()
	p.conn.Close()
}

// NoopPublisher is used when no AMQP_URL is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(domain.Event) error {
	return nil
}
