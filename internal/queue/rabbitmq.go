package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/itsannaw/word-complexity-api/shared/rabbitmq"
	amqp "github.com/rabbitmq/amqp091-go"
)

const contentTypeJSON = "application/json"

var _ Queue = (*RabbitMQQueue)(nil)

// RabbitMQQueue is a Queue backed by a RabbitMQ work queue and a TTL delay
// queue that dead-letters back into it
type RabbitMQQueue struct {
	client        *rabbitmq.Client
	prefetchCount int
	logger        *slog.Logger
}

// NewRabbitMQQueue wraps a connected client
func NewRabbitMQQueue(client *rabbitmq.Client, prefetchCount int, logger *slog.Logger) *RabbitMQQueue {
	return &RabbitMQQueue{
		client:        client,
		prefetchCount: prefetchCount,
		logger:        logger,
	}
}

func (q *RabbitMQQueue) Enqueue(ctx context.Context, task Task) error {
	body, err := task.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode task: %w", err)
	}
	return q.client.PublishWithRetry(ctx, body, contentTypeJSON)
}

func (q *RabbitMQQueue) EnqueueAfter(ctx context.Context, task Task, delay time.Duration) error {
	body, err := task.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode task: %w", err)
	}
	return q.client.PublishDelayed(ctx, body, contentTypeJSON, delay)
}

func (q *RabbitMQQueue) Consume(ctx context.Context, consumerTag string) (<-chan Delivery, error) {
	if q.prefetchCount > 0 {
		if err := q.client.Qos(q.prefetchCount); err != nil {
			return nil, err
		}
	}

	msgs, err := q.client.Consume(consumerTag)
	if err != nil {
		return nil, err
	}

	out := make(chan Delivery)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				if err := q.client.Cancel(consumerTag); err != nil {
					q.logger.Warn("Failed to cancel consumer", slog.Any("error", err))
				}
				return
			case msg, ok := <-msgs:
				if !ok {
					q.logger.Warn("RabbitMQ delivery channel closed")
					return
				}

				task, err := DecodeTask(msg.Body)
				if err != nil {
					// poison message, nothing to retry
					q.logger.Error("Dropping undecodable message",
						slog.Any("error", err),
						slog.Uint64("delivery_tag", msg.DeliveryTag),
					)
					if err := msg.Nack(false, false); err != nil {
						q.logger.Error("Failed to nack message", slog.Any("error", err))
					}
					continue
				}

				select {
				case out <- &rabbitDelivery{msg: msg, task: task}:
				case <-ctx.Done():
					// unacked deliveries return to the queue when the channel closes
					if err := msg.Nack(false, true); err != nil {
						q.logger.Error("Failed to requeue message", slog.Any("error", err))
					}
					return
				}
			}
		}
	}()

	return out, nil
}

func (q *RabbitMQQueue) Ping(_ context.Context) error {
	if !q.client.IsConnected() {
		return errors.New("rabbitmq: not connected")
	}
	return nil
}

func (q *RabbitMQQueue) Close() error {
	return q.client.Close()
}

type rabbitDelivery struct {
	msg  amqp.Delivery
	task Task
}

func (d *rabbitDelivery) Task() Task { return d.task }

func (d *rabbitDelivery) Ack() error {
	return d.msg.Ack(false)
}

func (d *rabbitDelivery) Nack(requeue bool) error {
	return d.msg.Nack(false, requeue)
}
