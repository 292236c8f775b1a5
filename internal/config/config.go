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

// Config represents the complete application configuration
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	RabbitMQ     RabbitMQConfig     `yaml:"rabbitmq"`
	Redis        RedisConfig        `yaml:"redis"`
	Logging      LoggingConfig      `yaml:"logging"`
	App          AppConfig          `yaml:"app"`
	Worker       WorkerConfig       `yaml:"worker"`
	Booking      BookingConfig      `yaml:"booking"`
	Notification NotificationConfig `yaml:"notification"`
	Support      SupportConfig      `yaml:"support"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" env:"SERVER_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host" env:"DB_HOST"`
	Port            int           `yaml:"port" env:"DB_PORT"`
	User            string        `yaml:"user" env:"DB_USER"`
	Password        string        `yaml:"password" env:"DB_PASSWORD"`
	Database        string        `yaml:"database" env:"DB_NAME"`
	SSLMode         string        `yaml:"sslmode" env:"DB_SSLMODE"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	MigrationsPath  string        `yaml:"migrations_path" env:"DB_MIGRATIONS_PATH"`
	RunMigrations   bool          `yaml:"run_migrations"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange/queue configuration
type RabbitMQConfig struct {
	Host       string           `yaml:"host" env:"RABBITMQ_HOST"`
	Port       int              `yaml:"port" env:"RABBITMQ_PORT"`
	User       string           `yaml:"user" env:"RABBITMQ_USER"`
	Password   string           `yaml:"password" env:"RABBITMQ_PASSWORD"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	PushQueue  QueueConfig      `yaml:"push_queue"`
	MailQueue  QueueConfig      `yaml:"mail_queue"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
	Consumer   ConsumerConfig   `yaml:"consumer"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// QueueConfig names a durable queue and the routing key bound to it
type QueueConfig struct {
	Name       string `yaml:"name"`
	RoutingKey string `yaml:"routing_key"`
	Quorum     bool   `yaml:"quorum"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	Heartbeat     time.Duration `yaml:"heartbeat"`
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

// RedisConfig holds Redis connection and cache settings
type RedisConfig struct {
	Host     string        `yaml:"host" env:"REDIS_HOST"`
	Port     int           `yaml:"port" env:"REDIS_PORT"`
	Password string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"pool_size"`
	UserTTL  time.Duration `yaml:"user_ttl"`
	OnceTTL  time.Duration `yaml:"once_ttl"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level" env:"LOG_LEVEL"`
	Format       string `yaml:"format" env:"LOG_FORMAT"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment" env:"APP_ENV"`
}

// WorkerConfig holds worker service configuration
type WorkerConfig struct {
	Concurrency     int           `yaml:"concurrency"`
	MaxAttempts     int           `yaml:"max_attempts"`
	DeliveryTimeout time.Duration `yaml:"delivery_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// BookingConfig holds lifecycle tuning
type BookingConfig struct {
	ExpirySweepInterval time.Duration `yaml:"expiry_sweep_interval"`
	ExpiryBatch         int           `yaml:"expiry_batch"`
}

// NotificationConfig holds the night window and channel provider settings
type NotificationConfig struct {
	Timezone        string     `yaml:"timezone"`
	NightStart      string     `yaml:"night_start"`
	NightEnd        string     `yaml:"night_end"`
	BusinessStart   string     `yaml:"business_start"`
	MailConcurrency int        `yaml:"mail_concurrency"`
	Push            PushConfig `yaml:"push"`
	SMS             SMSConfig  `yaml:"sms"`
}

// PushConfig configures OneSignal
type PushConfig struct {
	URL     string        `yaml:"url"`
	AppID   string        `yaml:"app_id" env:"ONESIGNAL_APP_ID"`
	APIKey  string        `yaml:"api_key" env:"ONESIGNAL_API_KEY"`
	Timeout time.Duration `yaml:"timeout"`
}

// SMSConfig configures the SMS gateway
type SMSConfig struct {
	Sender    string        `yaml:"sender" env:"SMS_NUMBER"`
	URL       string        `yaml:"url"`
	Token     string        `yaml:"token" env:"SMS_TOKEN"`
	PerSecond float64       `yaml:"per_second"`
	Burst     int           `yaml:"burst"`
	Timeout   time.Duration `yaml:"timeout"`
}

// SupportConfig holds customer support contact details
type SupportConfig struct {
	Phone string `yaml:"phone" env:"SUPPORT_PHONE"`
}

// Load reads and parses the configuration file, then applies environment
// overrides
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
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	return &config, nil
}

func (c *Config) validateStorage() error {
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < MinPort || c.Database.Port > MaxPort {
		return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.RabbitMQ.Host == "" {
		return fmt.Errorf("rabbitmq host is required")
	}

	if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
		return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
	}

	if c.RabbitMQ.Exchange.Name == "" {
		return fmt.Errorf("rabbitmq exchange name is required")
	}

	if c.RabbitMQ.PushQueue.Name == "" {
		return fmt.Errorf("rabbitmq push queue name is required")
	}

	return nil
}

// ValidateAPIConfig checks the settings the api-service needs
func (c *Config) ValidateAPIConfig() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if err := c.validateStorage(); err != nil {
		return err
	}

	if c.Redis.Host == "" {
		return fmt.Errorf("redis host is required")
	}

	if c.Redis.Port < MinPort || c.Redis.Port > MaxPort {
		return fmt.Errorf("invalid redis port: %d (must be between %d and %d)", c.Redis.Port, MinPort, MaxPort)
	}

	if c.Support.Phone == "" {
		return fmt.Errorf("support phone is required")
	}

	if c.Notification.SMS.URL == "" {
		return fmt.Errorf("sms url is required")
	}

	return c.ValidateNotificationConfig()
}

// ValidateWorkerConfig checks the settings the worker-service needs
func (c *Config) ValidateWorkerConfig() error {
	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker concurrency must be greater than 0")
	}

	if c.Worker.MaxAttempts < 0 {
		return fmt.Errorf("worker max_attempts must not be negative")
	}

	if c.Worker.DeliveryTimeout <= 0 {
		return fmt.Errorf("worker delivery_timeout must be greater than 0")
	}

	if c.Worker.ShutdownTimeout <= 0 {
		return fmt.Errorf("worker shutdown_timeout must be greater than 0")
	}

	if c.Booking.ExpirySweepInterval <= 0 {
		return fmt.Errorf("booking expiry_sweep_interval must be greater than 0")
	}

	if err := c.validateStorage(); err != nil {
		return err
	}

	if c.Notification.Push.AppID == "" {
		return fmt.Errorf("push app_id is required")
	}

	return c.ValidateNotificationConfig()
}

// ValidateNotificationConfig checks the timezone and the HH:MM bounds
func (c *Config) ValidateNotificationConfig() error {
	if _, err := time.LoadLocation(c.Notification.Timezone); err != nil {
		return fmt.Errorf("invalid notification timezone %q: %w", c.Notification.Timezone, err)
	}

	bounds := []struct {
		name  string
		value string
	}{
		{"night_start", c.Notification.NightStart},
		{"night_end", c.Notification.NightEnd},
		{"business_start", c.Notification.BusinessStart},
	}
	for _, b := range bounds {
		if _, err := time.Parse("15:04", b.value); err != nil {
			return fmt.Errorf("invalid notification %s %q: must be HH:MM", b.name, b.value)
		}
	}

	if c.Notification.SMS.PerSecond < 0 {
		return fmt.Errorf("sms per_second must not be negative")
	}

	return nil
}
