// Package bootstrap builds the clients and the booking core shared by the
// api-service and worker-service binaries.
package bootstrap

import (
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/cuongbtq/booking-service/internal/booking/domain"
	"github.com/cuongbtq/booking-service/internal/booking/matcher"
	"github.com/cuongbtq/booking-service/internal/booking/notify"
	"github.com/cuongbtq/booking-service/internal/booking/orchestrator"
	"github.com/cuongbtq/booking-service/internal/booking/transition"
	"github.com/cuongbtq/booking-service/internal/channel"
	"github.com/cuongbtq/booking-service/internal/config"
	"github.com/cuongbtq/booking-service/internal/storage/cache"
	"github.com/cuongbtq/booking-service/internal/storage/memory"
	"github.com/cuongbtq/booking-service/internal/storage/postgres"
	"github.com/cuongbtq/booking-service/shared/logger"
	"github.com/cuongbtq/booking-service/shared/postgresql"
	"github.com/cuongbtq/booking-service/shared/rabbitmq"
	"github.com/cuongbtq/booking-service/shared/redis"
)

// InitLogger initializes and configures the application logger
func InitLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	})
}

func postgresConfig(cfg *config.DatabaseConfig) *postgresql.Config {
	return &postgresql.Config{
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
	}
}

// InitPostgreSQL applies pending migrations when enabled and opens the pool
func InitPostgreSQL(cfg *config.DatabaseConfig, log *slog.Logger) (*postgresql.Client, error) {
	pgCfg := postgresConfig(cfg)

	if cfg.RunMigrations {
		if err := postgresql.RunMigrations(pgCfg.URL(), cfg.MigrationsPath); err != nil {
			return nil, err
		}
		version, dirty, err := postgresql.MigrationVersion(pgCfg.URL(), cfg.MigrationsPath)
		if err != nil {
			return nil, err
		}
		log.Info("Database migrations applied",
			slog.Uint64("version", uint64(version)),
			slog.Bool("dirty", dirty),
		)
	}

	return postgresql.NewClient(pgCfg, log)
}

// InitRabbitMQ connects and declares the push and mail queues
func InitRabbitMQ(cfg *config.RabbitMQConfig, log *slog.Logger) (*rabbitmq.Client, error) {
	bindings := []rabbitmq.Binding{{
		Queue:      cfg.PushQueue.Name,
		RoutingKey: routingKey(cfg.PushQueue.RoutingKey, channel.RoutingKeyPush),
		Quorum:     cfg.PushQueue.Quorum,
	}}
	if cfg.MailQueue.Name != "" {
		bindings = append(bindings, rabbitmq.Binding{
			Queue:      cfg.MailQueue.Name,
			RoutingKey: routingKey(cfg.MailQueue.RoutingKey, channel.RoutingKeyMail),
			Quorum:     cfg.MailQueue.Quorum,
		})
	}

	return rabbitmq.NewClient(&rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		Bindings:           bindings,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}, log)
}

func routingKey(configured, def string) string {
	if configured == "" {
		return def
	}
	return configured
}

// InitRedis connects to Redis. An empty host disables the cache.
func InitRedis(cfg *config.RedisConfig, log *slog.Logger) (*goredis.Client, error) {
	if cfg.Host == "" {
		return nil, nil
	}
	return redis.NewClient(&redis.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}, log)
}

// InitSMS builds the SMS gateway. An empty URL disables SMS.
func InitSMS(cfg *config.SMSConfig) (notify.SMSChannel, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	gw, err := channel.NewSMSGateway(channel.SMSConfig{
		URL:       cfg.URL,
		Token:     cfg.Token,
		PerSecond: cfg.PerSecond,
		Burst:     cfg.Burst,
		Timeout:   cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create sms gateway: %w", err)
	}
	return gw, nil
}

// CoreDeps are the collaborators the booking core is built from
type CoreDeps struct {
	Config    *config.Config
	DB        *postgresql.Client
	Publisher channel.Publisher
	// Redis is optional. Without it users are read straight from the
	// database and the once-guard lives in process memory.
	Redis  goredis.UniversalClient
	SMS    notify.SMSChannel
	Clock  domain.Clock
	Logger *slog.Logger
}

// NewCore wires storage, matcher, dispatcher and transition engine into an
// orchestrator
func NewCore(deps CoreDeps) (*orchestrator.Orchestrator, error) {
	cfg := deps.Config
	log := deps.Logger

	clock := deps.Clock
	if clock == nil {
		clock = domain.SystemClock{}
	}

	schedule, err := notify.NewSchedule(
		cfg.Notification.Timezone,
		cfg.Notification.NightStart,
		cfg.Notification.NightEnd,
		cfg.Notification.BusinessStart,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build notification schedule: %w", err)
	}

	store := postgres.NewStore(deps.DB, log)

	var (
		users domain.UserDirectory = store
		once  notify.OnceGuard     = memory.NewOnceGuard()
	)
	if deps.Redis != nil {
		users = cache.NewDirectory(store, deps.Redis, cfg.Redis.UserTTL, log)
		once = cache.NewOnceGuard(deps.Redis, cfg.Redis.OnceTTL)
	}

	m := matcher.New(users, store, log)
	dispatcher := notify.New(
		notify.Channels{
			Push:  channel.NewPushQueue(deps.Publisher, cfg.RabbitMQ.PushQueue.RoutingKey),
			SMS:   deps.SMS,
			Email: channel.NewMailQueue(deps.Publisher, cfg.RabbitMQ.MailQueue.RoutingKey),
			Once:  once,
		},
		schedule,
		clock,
		notify.Options{
			SMSSender:       cfg.Notification.SMS.Sender,
			MailConcurrency: cfg.Notification.MailConcurrency,
		},
		log,
	)
	engine := transition.New(store, users, m, dispatcher, clock, log)

	return orchestrator.New(store, users, m, engine, dispatcher, clock, orchestrator.Config{
		SupportPhone: cfg.Support.Phone,
		Location:     schedule.Location(),
		ExpireBatch:  cfg.Booking.ExpiryBatch,
	}, log), nil
}
