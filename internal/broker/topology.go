// Package broker declares the RabbitMQ topology shared by the API publisher
// and the worker consumer.
package broker

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	Exchange     = "genflow.direct"
	ExchangeType = "direct"
	RoutingKey   = "generate"
	Queue        = "generation_tasks"

	DeadLetterExchange = "genflow.dlx"
	DeadLetterQueue    = "generation_tasks.dlq"
)

// Declare creates the exchanges and queues if they do not exist.
// Both sides call it with identical arguments so either may start first.
func Declare(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(Exchange, ExchangeType, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: declare exchange: %w", err)
	}

	// Dead letter exchange and queue
	if err := ch.ExchangeDeclare(DeadLetterExchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: declare DLX: %w", err)
	}
	if _, err := ch.QueueDeclare(DeadLetterQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: declare DLQ: %w", err)
	}
	if err := ch.QueueBind(DeadLetterQueue, RoutingKey, DeadLetterExchange, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: bind DLQ: %w", err)
	}

	args := amqp.Table{
		"x-dead-letter-exchange":    DeadLetterExchange,
		"x-dead-letter-routing-key": RoutingKey,
		"x-queue-type":              "quorum",
	}
	if _, err := ch.QueueDeclare(Queue, true, false, false, false, args); err != nil {
		return fmt.Errorf("rabbitmq: declare queue: %w", err)
	}
	if err := ch.QueueBind(Queue, RoutingKey, Exchange, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: bind queue: %w", err)
	}
	return nil
}
