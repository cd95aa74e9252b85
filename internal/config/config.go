package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Queue backends selectable with queue.backend
const (
	QueueBackendRabbitMQ = "rabbitmq"
	QueueBackendRedis    = "redis"
)

// Config represents the complete application configuration.
//
// Values come from the YAML file first; environment variables listed in the
// env tags override them when set.
type Config struct {
	App        AppConfig        `yaml:"app"`
	Server     ServerConfig     `yaml:"server"     envPrefix:"SERVER_"`
	Database   DatabaseConfig   `yaml:"database"   envPrefix:"DB_"`
	Queue      QueueConfig      `yaml:"queue"      envPrefix:"QUEUE_"`
	RabbitMQ   RabbitMQConfig   `yaml:"rabbitmq"   envPrefix:"RABBITMQ_"`
	Redis      RedisConfig      `yaml:"redis"      envPrefix:"REDIS_"`
	Dictionary DictionaryConfig `yaml:"dictionary" envPrefix:"DICTIONARY_"`
	Worker     WorkerConfig     `yaml:"worker"     envPrefix:"WORKER_"`
	Logging    LoggingConfig    `yaml:"logging"    envPrefix:"LOG_"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment" env:"APP_ENV"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" env:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host"     env:"HOST"`
	Port            int           `yaml:"port"     env:"PORT"`
	User            string        `yaml:"user"     env:"USER"`
	Password        string        `yaml:"password" env:"PASSWORD"`
	Database        string        `yaml:"database" env:"NAME"`
	SSLMode         string        `yaml:"sslmode"  env:"SSLMODE"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	// AutoMigrate applies the embedded schema on startup
	AutoMigrate bool `yaml:"auto_migrate" env:"AUTO_MIGRATE"`
}

// QueueConfig selects the task queue backend
type QueueConfig struct {
	Backend string `yaml:"backend" env:"BACKEND"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange/queue configuration
type RabbitMQConfig struct {
	Host               string           `yaml:"host"     env:"HOST"`
	Port               int              `yaml:"port"     env:"PORT"`
	User               string           `yaml:"user"     env:"USER"`
	Password           string           `yaml:"password" env:"PASSWORD"`
	VHost              string           `yaml:"vhost"    env:"VHOST"`
	Exchange           ExchangeConfig   `yaml:"exchange"`
	Queue              AMQPQueueConfig  `yaml:"queue"`
	RoutingKey         string           `yaml:"routing_key"`
	DelayQueue         string           `yaml:"delay_queue"`
	DeadLetterExchange string           `yaml:"dead_letter_exchange"`
	Connection         ConnectionConfig `yaml:"connection"`
	Publish            PublishConfig    `yaml:"publish"`
	Consumer           ConsumerConfig   `yaml:"consumer"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// AMQPQueueConfig holds RabbitMQ queue configuration
type AMQPQueueConfig struct {
	Name       string `yaml:"name"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
	Exclusive  bool   `yaml:"exclusive"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	Heartbeat         time.Duration `yaml:"heartbeat"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// ConsumerConfig holds RabbitMQ consumer settings
type ConsumerConfig struct {
	PrefetchCount int `yaml:"prefetch_count"`
}

// RedisConfig holds Redis connection and queue key settings
type RedisConfig struct {
	URI             string        `yaml:"uri"      env:"URI"`
	Password        string        `yaml:"password" env:"PASSWORD"`
	DB              int           `yaml:"db"       env:"DB"`
	PoolSize        int           `yaml:"pool_size"`
	DialTimeout     time.Duration `yaml:"dial_timeout"`
	KeyPrefix       string        `yaml:"key_prefix"`
	BlockTimeout    time.Duration `yaml:"block_timeout"`
	PromoteInterval time.Duration `yaml:"promote_interval"`
	// RecoverOnStart requeues tasks left in the processing list. Only enable
	// with a single worker process.
	RecoverOnStart bool `yaml:"recover_on_start"`
}

// DictionaryConfig holds the dictionary API client settings
type DictionaryConfig struct {
	BaseURL           string        `yaml:"base_url" env:"BASE_URL"`
	Timeout           time.Duration `yaml:"timeout"  env:"TIMEOUT"`
	RequestsPerSecond float64       `yaml:"requests_per_second" env:"RPS"`
	Burst             int           `yaml:"burst"`
	UserAgent         string        `yaml:"user_agent"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"  env:"LEVEL"`
	Format       string `yaml:"format" env:"FORMAT"`
	Output       string `yaml:"output" env:"OUTPUT"`
	EnableSource bool   `yaml:"enable_source"`
}

// WorkerConfig holds worker service configuration
type WorkerConfig struct {
	ID                string        `yaml:"id" env:"ID"`
	Concurrency       int           `yaml:"concurrency" env:"CONCURRENCY"`
	LookupConcurrency int           `yaml:"lookup_concurrency"`
	JobTimeout        time.Duration `yaml:"job_timeout"`
	RetryDelay        time.Duration `yaml:"retry_delay" env:"RETRY_DELAY"`
	// MaxAttempts caps attempts per job on transient failures; 0 is unbounded
	MaxAttempts     int           `yaml:"max_attempts" env:"MAX_ATTEMPTS"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Load reads and parses the configuration file, applies environment
// overrides and fills in defaults
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := env.Parse(&config); err != nil {
		return nil, fmt.Errorf("failed to parse environment overrides: %w", err)
	}

	config.SetDefaults()
	return &config, nil
}

// SetDefaults fills in zero values that have a sensible default
func (c *Config) SetDefaults() {
	if c.Queue.Backend == "" {
		c.Queue.Backend = QueueBackendRabbitMQ
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.RabbitMQ.Exchange.Type == "" {
		c.RabbitMQ.Exchange.Type = "direct"
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = "complexity_scores"
	}
	if c.Dictionary.Timeout <= 0 {
		c.Dictionary.Timeout = 10 * time.Second
	}
	if c.Worker.Concurrency <= 0 {
		c.Worker.Concurrency = 4
	}
	if c.Worker.LookupConcurrency <= 0 {
		c.Worker.LookupConcurrency = 4
	}
	if c.Worker.JobTimeout <= 0 {
		c.Worker.JobTimeout = 2 * time.Minute
	}
	if c.Worker.RetryDelay <= 0 {
		c.Worker.RetryDelay = 5 * time.Minute
	}
	if c.Worker.ShutdownTimeout <= 0 {
		c.Worker.ShutdownTimeout = 30 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks the settings shared by both services: database and queue
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < MinPort || c.Database.Port > MaxPort {
		return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	switch c.Queue.Backend {
	case QueueBackendRabbitMQ:
		return c.validateRabbitMQ()
	case QueueBackendRedis:
		if c.Redis.URI == "" {
			return fmt.Errorf("redis uri is required")
		}
	default:
		return fmt.Errorf("unsupported queue backend: %q", c.Queue.Backend)
	}

	return nil
}

func (c *Config) validateRabbitMQ() error {
	if c.RabbitMQ.Host == "" {
		return fmt.Errorf("rabbitmq host is required")
	}

	if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
		return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
	}

	if c.RabbitMQ.Exchange.Name == "" {
		return fmt.Errorf("rabbitmq exchange name is required")
	}

	if c.RabbitMQ.Queue.Name == "" {
		return fmt.Errorf("rabbitmq queue name is required")
	}

	return nil
}

// ValidateAPIConfig checks the api-service configuration
func (c *Config) ValidateAPIConfig() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	return c.Validate()
}

// ValidateWorkerConfig checks the worker-service configuration
func (c *Config) ValidateWorkerConfig() error {
	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker concurrency must be greater than 0")
	}

	if c.Worker.JobTimeout <= 0 {
		return fmt.Errorf("worker job_timeout must be greater than 0")
	}

	if c.Worker.RetryDelay <= 0 {
		return fmt.Errorf("worker retry_delay must be greater than 0")
	}

	if c.Worker.MaxAttempts < 0 {
		return fmt.Errorf("worker max_attempts must not be negative")
	}

	if c.Dictionary.RequestsPerSecond < 0 {
		return fmt.Errorf("dictionary requests_per_second must not be negative")
	}

	return c.Validate()
}
