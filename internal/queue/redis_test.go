package queue

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedisQueue connects to REDIS_ADDR. Tests are skipped if Redis is
// not available.
func setupTestRedisQueue(t *testing.T) (*RedisQueue, *goredis.Client) {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set, skipping Redis queue tests")
	}

	client := goredis.NewClient(&goredis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("Redis not available for testing at %s: %v", addr, err)
	}

	q := NewRedisQueue(client, RedisConfig{
		KeyPrefix:       "test:" + uuid.NewString(),
		BlockTimeout:    100 * time.Millisecond,
		PromoteInterval: 20 * time.Millisecond,
	}, slog.New(slog.DiscardHandler))

	t.Cleanup(func() {
		ctx := context.Background()
		client.Del(ctx, q.readyKey(), q.processingKey(), q.delayedKey(), q.deadKey())
		client.Close()
	})
	return q, client
}

func TestRedisQueue_EnqueueAck(t *testing.T) {
	q, client := setupTestRedisQueue(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, q.Enqueue(ctx, NewTask("abc123def456")))

	deliveries, err := q.Consume(ctx, "test")
	require.NoError(t, err)

	d := <-deliveries
	assert.Equal(t, NewTask("abc123def456"), d.Task())

	n, err := client.LLen(ctx, q.processingKey()).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, d.Ack())
	n, err = client.LLen(ctx, q.processingKey()).Result()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRedisQueue_NackDeadLetters(t *testing.T) {
	q, client := setupTestRedisQueue(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, q.Enqueue(ctx, NewTask("a")))
	deliveries, err := q.Consume(ctx, "test")
	require.NoError(t, err)

	d := <-deliveries
	require.NoError(t, d.Nack(false))

	dead, err := client.LRange(ctx, q.deadKey(), 0, -1).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{`{"job_id":"a","attempt":1}`}, dead)
}

func TestRedisQueue_EnqueueAfter(t *testing.T) {
	q, client := setupTestRedisQueue(t)
	ctx := context.Background()

	require.NoError(t, q.EnqueueAfter(ctx, NewTask("later"), time.Hour))
	require.NoError(t, q.EnqueueAfter(ctx, NewTask("soon"), time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	n, err := q.Promote(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ready, err := client.LRange(ctx, q.readyKey(), 0, -1).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{`{"job_id":"soon","attempt":1}`}, ready)

	delayed, err := client.ZCard(ctx, q.delayedKey()).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), delayed)
}

func TestRedisQueue_Recover(t *testing.T) {
	q, client := setupTestRedisQueue(t)
	ctx := context.Background()

	require.NoError(t, client.LPush(ctx, q.processingKey(), `{"job_id":"stuck","attempt":1}`).Err())

	n, err := q.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ready, err := client.LLen(ctx, q.readyKey()).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), ready)
}
