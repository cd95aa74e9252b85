// Package bootstrap wires configuration into the shared clients used by both
// services: logger, Postgres store and task queue.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/itsannaw/word-complexity-api/internal/config"
	"github.com/itsannaw/word-complexity-api/internal/queue"
	"github.com/itsannaw/word-complexity-api/internal/storage"
	"github.com/itsannaw/word-complexity-api/shared/logger"
	"github.com/itsannaw/word-complexity-api/shared/postgresql"
	"github.com/itsannaw/word-complexity-api/shared/rabbitmq"
	"github.com/itsannaw/word-complexity-api/shared/redis"
)

// InitLogger initializes and configures the application logger
func InitLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableSource,
		TimeFormat:   time.RFC3339,
	})
}

// InitStore connects to PostgreSQL and returns the job store. The schema is
// applied first when database.auto_migrate is set.
func InitStore(ctx context.Context, cfg *config.DatabaseConfig, logger *slog.Logger) (*storage.PostgresStore, io.Closer, error) {
	client, err := postgresql.NewClient(&postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}, logger)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewPostgresStore(client.GetDB(), logger)

	if cfg.AutoMigrate {
		if err := store.Migrate(ctx); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		logger.Info("Database schema is up to date")
	}

	logger.Debug("PostgreSQL pool", client.Stats()...)

	return store, client, nil
}

// InitQueue connects the configured queue backend
func InitQueue(ctx context.Context, cfg *config.Config, logger *slog.Logger) (queue.Queue, error) {
	switch cfg.Queue.Backend {
	case config.QueueBackendRabbitMQ:
		client, err := initRabbitMQ(&cfg.RabbitMQ, logger)
		if err != nil {
			return nil, err
		}
		return queue.NewRabbitMQQueue(client, cfg.RabbitMQ.Consumer.PrefetchCount, logger), nil

	case config.QueueBackendRedis:
		client, err := redis.NewClient(&redis.Config{
			URI:         cfg.Redis.URI,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			DialTimeout: cfg.Redis.DialTimeout,
			PoolSize:    cfg.Redis.PoolSize,
		}, logger)
		if err != nil {
			return nil, err
		}

		q := queue.NewRedisQueue(client, queue.RedisConfig{
			KeyPrefix:       cfg.Redis.KeyPrefix,
			BlockTimeout:    cfg.Redis.BlockTimeout,
			PromoteInterval: cfg.Redis.PromoteInterval,
		}, logger)

		if cfg.Redis.RecoverOnStart {
			n, err := q.Recover(ctx)
			if err != nil {
				q.Close()
				return nil, err
			}
			if n > 0 {
				logger.Warn("Recovered in-flight tasks", slog.Int("count", n))
			}
		}
		return q, nil

	default:
		return nil, fmt.Errorf("unsupported queue backend: %q", cfg.Queue.Backend)
	}
}

// initRabbitMQ initializes the RabbitMQ client
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		QueueName:          cfg.Queue.Name,
		QueueDurable:       cfg.Queue.Durable,
		QueueAutoDelete:    cfg.Queue.AutoDelete,
		QueueExclusive:     cfg.Queue.Exclusive,
		RoutingKey:         cfg.RoutingKey,
		DelayQueueName:     cfg.DelayQueue,
		DeadLetterExchange: cfg.DeadLetterExchange,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		ConnectionTimeout:  cfg.Connection.ConnectionTimeout,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}
