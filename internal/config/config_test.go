package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		filePath  string
		wantErr   bool
		errString string
	}{
		{
			name:     "valid config file",
			filePath: "testdata/valid_config.yaml",
			wantErr:  false,
		},
		{
			name:      "non-existent file",
			filePath:  "testdata/nonexistent.yaml",
			wantErr:   true,
			errString: "failed to read config file",
		},
		{
			name:      "malformed yaml",
			filePath:  "testdata/malformed.yaml",
			wantErr:   true,
			errString: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.filePath)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, cfg)
			} else {
				require.NoError(t, err)
				require.NotNil(t, cfg)

				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, "booking_db", cfg.Database.Database)
				assert.Equal(t, "booking_exchange", cfg.RabbitMQ.Exchange.Name)
				assert.Equal(t, "notification.push", cfg.RabbitMQ.PushQueue.RoutingKey)
				assert.True(t, cfg.RabbitMQ.PushQueue.Quorum)
				assert.Equal(t, 5, cfg.Worker.MaxAttempts)
				assert.Equal(t, 168*time.Hour, cfg.Redis.OnceTTL)
				assert.Equal(t, time.Minute, cfg.Booking.ExpirySweepInterval)
				assert.Equal(t, "Europe/Stockholm", cfg.Notification.Timezone)
				assert.Equal(t, "22:00", cfg.Notification.NightStart)
				assert.InDelta(t, 5.0, cfg.Notification.SMS.PerSecond, 0.001)
				assert.Equal(t, "booking-api-service", cfg.App.Name)
			}
		})
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("DB_PASSWORD", "from-env")
	t.Setenv("ONESIGNAL_API_KEY", "push-key")
	t.Setenv("SMS_TOKEN", "sms-token")
	t.Setenv("SUPPORT_PHONE", "+46 8 123 456")
	t.Setenv("SERVER_PORT", "9090")

	cfg, err := Load("testdata/valid_config.yaml")
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Database.Password)
	assert.Equal(t, "push-key", cfg.Notification.Push.APIKey)
	assert.Equal(t, "sms-token", cfg.Notification.SMS.Token)
	assert.Equal(t, "+46 8 123 456", cfg.Support.Phone)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "booking", cfg.Database.User, "unset variables keep the file value")
}

func TestLoad_InvalidEnvironmentValue(t *testing.T) {
	t.Setenv("SERVER_PORT", "eighty")

	_, err := Load("testdata/valid_config.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to apply environment overrides")
}

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "booking_db",
		},
		RabbitMQ: RabbitMQConfig{
			Host:      "localhost",
			Port:      5672,
			Exchange:  ExchangeConfig{Name: "booking_exchange"},
			PushQueue: QueueConfig{Name: "booking_push"},
		},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		Worker: WorkerConfig{
			Concurrency:     2,
			DeliveryTimeout: 10 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Booking: BookingConfig{ExpirySweepInterval: time.Minute},
		Notification: NotificationConfig{
			Timezone:      "Europe/Stockholm",
			NightStart:    "22:00",
			NightEnd:      "07:00",
			BusinessStart: "07:00",
			Push:          PushConfig{AppID: "app"},
			SMS:           SMSConfig{URL: "https://sms.example.test/send"},
		},
		Support: SupportConfig{Phone: "+46 73 75 86 865"},
	}
}

func TestConfig_ValidateAPIConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		errString string
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{name: "invalid server port - too low", mutate: func(c *Config) { c.Server.Port = 0 }, errString: "invalid server port"},
		{name: "invalid server port - too high", mutate: func(c *Config) { c.Server.Port = 70000 }, errString: "invalid server port"},
		{name: "empty database host", mutate: func(c *Config) { c.Database.Host = "" }, errString: "database host is required"},
		{name: "empty database name", mutate: func(c *Config) { c.Database.Database = "" }, errString: "database name is required"},
		{name: "empty rabbitmq host", mutate: func(c *Config) { c.RabbitMQ.Host = "" }, errString: "rabbitmq host is required"},
		{name: "empty exchange name", mutate: func(c *Config) { c.RabbitMQ.Exchange.Name = "" }, errString: "rabbitmq exchange name is required"},
		{name: "empty push queue name", mutate: func(c *Config) { c.RabbitMQ.PushQueue.Name = "" }, errString: "rabbitmq push queue name is required"},
		{name: "empty redis host", mutate: func(c *Config) { c.Redis.Host = "" }, errString: "redis host is required"},
		{name: "empty support phone", mutate: func(c *Config) { c.Support.Phone = "" }, errString: "support phone is required"},
		{name: "empty sms url", mutate: func(c *Config) { c.Notification.SMS.URL = "" }, errString: "sms url is required"},
		{name: "bad night window", mutate: func(c *Config) { c.Notification.NightStart = "10pm" }, errString: "night_start"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.ValidateAPIConfig()
			if tt.errString != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateWorkerConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		errString string
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{name: "zero concurrency", mutate: func(c *Config) { c.Worker.Concurrency = 0 }, errString: "worker concurrency"},
		{name: "negative max attempts", mutate: func(c *Config) { c.Worker.MaxAttempts = -1 }, errString: "max_attempts"},
		{name: "zero delivery timeout", mutate: func(c *Config) { c.Worker.DeliveryTimeout = 0 }, errString: "delivery_timeout"},
		{name: "zero shutdown timeout", mutate: func(c *Config) { c.Worker.ShutdownTimeout = 0 }, errString: "shutdown_timeout"},
		{name: "zero sweep interval", mutate: func(c *Config) { c.Booking.ExpirySweepInterval = 0 }, errString: "expiry_sweep_interval"},
		{name: "missing push app", mutate: func(c *Config) { c.Notification.Push.AppID = "" }, errString: "push app_id is required"},
		{name: "server port not needed", mutate: func(c *Config) { c.Server.Port = 0 }},
		{name: "redis not needed", mutate: func(c *Config) { c.Redis.Host = "" }},
		{name: "sms not needed", mutate: func(c *Config) { c.Notification.SMS.URL = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.ValidateWorkerConfig()
			if tt.errString != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateNotificationConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*NotificationConfig)
		errString string
	}{
		{name: "valid", mutate: func(*NotificationConfig) {}},
		{name: "empty timezone means UTC", mutate: func(n *NotificationConfig) { n.Timezone = "" }},
		{name: "unknown timezone", mutate: func(n *NotificationConfig) { n.Timezone = "Mars/Olympus" }, errString: "invalid notification timezone"},
		{name: "bad night end", mutate: func(n *NotificationConfig) { n.NightEnd = "7" }, errString: "night_end"},
		{name: "bad business start", mutate: func(n *NotificationConfig) { n.BusinessStart = "25:00" }, errString: "business_start"},
		{name: "negative sms rate", mutate: func(n *NotificationConfig) { n.SMS.PerSecond = -1 }, errString: "per_second"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg.Notification)

			err := cfg.ValidateNotificationConfig()
			if tt.errString != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestLoad_ValidateIntegration(t *testing.T) {
	t.Run("load and validate valid config", func(t *testing.T) {
		cfg, err := Load("testdata/valid_config.yaml")
		require.NoError(t, err)

		require.NoError(t, cfg.ValidateAPIConfig())
		require.NoError(t, cfg.ValidateWorkerConfig())
	})

	t.Run("load config with invalid port", func(t *testing.T) {
		cfg, err := Load("testdata/invalid_port.yaml")
		require.NoError(t, err)

		err = cfg.ValidateAPIConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid server port")
	})

	t.Run("load config with missing database", func(t *testing.T) {
		cfg, err := Load("testdata/missing_database.yaml")
		require.NoError(t, err)

		err = cfg.ValidateAPIConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database name is required")
	})
}
