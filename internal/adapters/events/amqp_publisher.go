package events

import (
	"context"
	"encoding/json"
	"errors"
	"field-route-service/internal/domain"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultQueue receives finished assignment runs.
const DefaultQueue = "assignment_runs"

// Channel is the subset of *amqp.Channel the publisher needs.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type AMQPPublisher struct {
	ch       Channel
	exchange string
	queue    string
	timeout  time.Duration
}

func NewAMQPPublisher(ch Channel, queue string, timeout time.Duration) (*AMQPPublisher, error) {
	if ch == nil {
		return nil, errors.New("new amqp publisher: channel is required")
	}
	if queue == "" {
		queue = DefaultQueue
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &AMQPPublisher{ch: ch, queue: queue, timeout: timeout}, nil
}

// DeclareQueue declares the durable queue runs are routed to.
func DeclareQueue(ch *amqp.Channel, queue string) error {
	if queue == "" {
		queue = DefaultQueue
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %q: %w", queue, err)
	}
	return nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, run *domain.AssignmentRun) error {
	body, err := json.Marshal(NewRunMessage(run))
	if err != nil {
		return fmt.Errorf("publish run %s: encode: %w", run.RunID, err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.ch.PublishWithContext(ctx, p.exchange, p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    run.RunID,
		Timestamp:    run.CreatedAt,
		Type:         "assignment_run",
		Body:         body,
	}); err != nil {
		return fmt.Errorf("publish run %s: %w", run.RunID, err)
	}

	return nil
}
