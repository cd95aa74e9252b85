package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

var _ Queue = (*RedisQueue)(nil)

// promoteScript moves due members of the delayed set onto the ready list
var promoteScript = goredis.NewScript(`
local items = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
for _, item in ipairs(items) do
	redis.call('ZREM', KEYS[1], item)
	redis.call('LPUSH', KEYS[2], item)
end
return #items
`)

// RedisConfig configures the Redis queue keys and polling
type RedisConfig struct {
	KeyPrefix       string
	BlockTimeout    time.Duration
	PromoteInterval time.Duration
	PromoteBatch    int
}

// RedisQueue is a reliable list queue. Consumers move tasks from the ready
// list to a processing list and remove them on Ack. Delayed tasks wait in a
// sorted set scored by due time.
type RedisQueue struct {
	client goredis.UniversalClient
	cfg    RedisConfig
	logger *slog.Logger
}

// NewRedisQueue creates a RedisQueue on an existing client
func NewRedisQueue(client goredis.UniversalClient, cfg RedisConfig, logger *slog.Logger) *RedisQueue {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "complexity_scores"
	}
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = 2 * time.Second
	}
	if cfg.PromoteInterval <= 0 {
		cfg.PromoteInterval = time.Second
	}
	if cfg.PromoteBatch <= 0 {
		cfg.PromoteBatch = 100
	}
	return &RedisQueue{client: client, cfg: cfg, logger: logger}
}

func (q *RedisQueue) readyKey() string      { return q.cfg.KeyPrefix + ":ready" }
func (q *RedisQueue) processingKey() string { return q.cfg.KeyPrefix + ":processing" }
func (q *RedisQueue) delayedKey() string    { return q.cfg.KeyPrefix + ":delayed" }
func (q *RedisQueue) deadKey() string       { return q.cfg.KeyPrefix + ":dead" }

func (q *RedisQueue) Enqueue(ctx context.Context, task Task) error {
	body, err := task.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode task: %w", err)
	}
	if err := q.client.LPush(ctx, q.readyKey(), body).Err(); err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	return nil
}

func (q *RedisQueue) EnqueueAfter(ctx context.Context, task Task, delay time.Duration) error {
	if delay <= 0 {
		return q.Enqueue(ctx, task)
	}

	body, err := task.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode task: %w", err)
	}

	due := time.Now().Add(delay).UnixMilli()
	if err := q.client.ZAdd(ctx, q.delayedKey(), goredis.Z{Score: float64(due), Member: body}).Err(); err != nil {
		return fmt.Errorf("failed to schedule task: %w", err)
	}
	return nil
}

func (q *RedisQueue) Consume(ctx context.Context, consumerTag string) (<-chan Delivery, error) {
	if err := q.Ping(ctx); err != nil {
		return nil, err
	}

	go q.promoteLoop(ctx)

	out := make(chan Delivery)
	go func() {
		defer close(out)
		for ctx.Err() == nil {
			body, err := q.client.BLMove(ctx, q.readyKey(), q.processingKey(), "RIGHT", "LEFT", q.cfg.BlockTimeout).Result()
			if err != nil {
				if errors.Is(err, goredis.Nil) || ctx.Err() != nil {
					continue
				}
				if errors.Is(err, goredis.ErrClosed) {
					return
				}
				q.logger.Error("Failed to read from Redis queue",
					slog.String("consumer_tag", consumerTag),
					slog.Any("error", err),
				)
				sleep(ctx, q.cfg.BlockTimeout)
				continue
			}

			task, err := DecodeTask([]byte(body))
			if err != nil {
				q.logger.Error("Dropping undecodable message", slog.Any("error", err))
				q.moveToDead(context.WithoutCancel(ctx), body)
				continue
			}

			d := &redisDelivery{queue: q, body: body, task: task}
			select {
			case out <- d:
			case <-ctx.Done():
				if err := d.Nack(true); err != nil {
					q.logger.Error("Failed to requeue message", slog.Any("error", err))
				}
				return
			}
		}
	}()

	return out, nil
}

// Promote moves every due delayed task onto the ready list
func (q *RedisQueue) Promote(ctx context.Context) (int, error) {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	n, err := promoteScript.Run(ctx, q.client,
		[]string{q.delayedKey(), q.readyKey()},
		now, q.cfg.PromoteBatch,
	).Int()
	if err != nil {
		return 0, fmt.Errorf("failed to promote delayed tasks: %w", err)
	}
	return n, nil
}

// Recover returns tasks left on the processing list by a crashed consumer
// to the ready list. Only safe while no other consumer is running.
func (q *RedisQueue) Recover(ctx context.Context) (int, error) {
	moved := 0
	for {
		_, err := q.client.LMove(ctx, q.processingKey(), q.readyKey(), "RIGHT", "RIGHT").Result()
		if errors.Is(err, goredis.Nil) {
			return moved, nil
		}
		if err != nil {
			return moved, fmt.Errorf("failed to recover in-flight tasks: %w", err)
		}
		moved++
	}
}

func (q *RedisQueue) Ping(ctx context.Context) error {
	if err := q.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	return nil
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}

func (q *RedisQueue) promoteLoop(ctx context.Context) {
	ticker := time.NewTicker(q.cfg.PromoteInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := q.Promote(ctx)
			if err != nil {
				if ctx.Err() == nil {
					q.logger.Error("Failed to promote delayed tasks", slog.Any("error", err))
				}
				continue
			}
			if n > 0 {
				q.logger.Debug("Promoted delayed tasks", slog.Int("count", n))
			}
		}
	}
}

func (q *RedisQueue) moveToDead(ctx context.Context, body string) {
	pipe := q.client.TxPipeline()
	pipe.LRem(ctx, q.processingKey(), 1, body)
	pipe.LPush(ctx, q.deadKey(), body)
	if _, err := pipe.Exec(ctx); err != nil {
		q.logger.Error("Failed to dead-letter message", slog.Any("error", err))
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

type redisDelivery struct {
	queue *RedisQueue
	body  string
	task  Task
}

func (d *redisDelivery) Task() Task { return d.task }

func (d *redisDelivery) Ack() error {
	ctx := context.Background()
	if err := d.queue.client.LRem(ctx, d.queue.processingKey(), 1, d.body).Err(); err != nil {
		return fmt.Errorf("failed to ack task: %w", err)
	}
	return nil
}

func (d *redisDelivery) Nack(requeue bool) error {
	ctx := context.Background()
	target := d.queue.deadKey()
	if requeue {
		target = d.queue.readyKey()
	}

	pipe := d.queue.client.TxPipeline()
	pipe.LRem(ctx, d.queue.processingKey(), 1, d.body)
	pipe.LPush(ctx, target, d.body)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to nack task: %w", err)
	}
	return nil
}
