package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

// Config holds all application configuration
type Config struct {
	App          AppConfig          `mapstructure:"app"`
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Kafka        KafkaConfig        `mapstructure:"kafka"`
	JWT          JWTConfig          `mapstructure:"jwt"`
	OTel         OTelConfig         `mapstructure:"otel"`
	CORS         CORSConfig         `mapstructure:"cors"`
	Lifecycle    LifecycleConfig    `mapstructure:"lifecycle"`
	Outbox       OutboxConfig       `mapstructure:"outbox"`
	Notification NotificationConfig `mapstructure:"notification"`
	Payment      PaymentConfig      `mapstructure:"payment"`
	Cache        CacheConfig        `mapstructure:"cache"`
}

// AppConfig holds application-level settings
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"` // development, staging, production
	Debug       bool   `mapstructure:"debug"`
	Version     string `mapstructure:"version"`
	LogLevel    string `mapstructure:"log_level"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int           `mapstructure:"max_conns"`
	MinConns        int           `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	// TxMaxRetries bounds retries of ledger transactions aborted by serialization
	// failures or deadlocks.
	TxMaxRetries int `mapstructure:"tx_max_retries"`
	// AutoMigrate creates missing tables on startup
	AutoMigrate bool `mapstructure:"auto_migrate"`
}

// DSN returns the PostgreSQL connection string
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Addr returns the Redis address
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// KafkaConfig holds Kafka/Redpanda connection settings
type KafkaConfig struct {
	Brokers       []string `mapstructure:"brokers"`
	ConsumerGroup string   `mapstructure:"consumer_group"`
	ClientID      string   `mapstructure:"client_id"`
}

// JWTConfig holds JWT verification settings
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled       bool    `mapstructure:"enabled"`
	ServiceName   string  `mapstructure:"service_name"`
	CollectorAddr string  `mapstructure:"collector_addr"`
	SampleRatio   float64 `mapstructure:"sample_ratio"`
}

// CORSConfig holds allowed browser origins
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LifecycleConfig drives the event status sweep and the reference clock
type LifecycleConfig struct {
	SweepEnabled   bool          `mapstructure:"sweep_enabled"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`
	SweepBatchSize int           `mapstructure:"sweep_batch_size"`
	// ClockUTCOffset is the fixed reference offset all date comparisons are made in,
	// e.g. "+03:00".
	ClockUTCOffset string `mapstructure:"clock_utc_offset"`
}

// OutboxConfig drives the notification outbox relay
type OutboxConfig struct {
	PollInterval         time.Duration `mapstructure:"poll_interval"`
	BatchSize            int           `mapstructure:"batch_size"`
	MaxRetries           int           `mapstructure:"max_retries"`
	CleanupInterval      time.Duration `mapstructure:"cleanup_interval"`
	CleanupRetentionDays int           `mapstructure:"cleanup_retention_days"`
}

// NotificationConfig selects how queued notices reach users
type NotificationConfig struct {
	// Delivery is "kafka" (relay publishes, notification-worker consumes), "direct"
	// (relay writes user notifications itself) or "inline" (written right after commit,
	// no outbox).
	Delivery string `mapstructure:"delivery"`
	Topic    string `mapstructure:"topic"`
}

// PaymentConfig holds payment gateway settings
type PaymentConfig struct {
	Provider        string `mapstructure:"provider"` // stripe or mock
	StripeSecretKey string `mapstructure:"stripe_secret_key"`
	Currency        string `mapstructure:"currency"`
}

// CacheConfig holds read cache settings
type CacheConfig struct {
	EventTTL time.Duration `mapstructure:"event_ttl"`
}

// Load loads configuration from environment variables and an optional .env file
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")

	// A missing .env is fine: environment variables are enough.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read .env: %w", err)
		}
	}

	return load(v)
}

// LoadWithPath loads configuration from a specific env file
func LoadWithPath(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	v.SetConfigType("env")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	cfg := &Config{}
	bindConfig(v, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	// App
	v.SetDefault("APP_NAME", "diplom-server")
	v.SetDefault("APP_ENVIRONMENT", "development")
	v.SetDefault("APP_DEBUG", true)
	v.SetDefault("APP_VERSION", "1.0.0")
	v.SetDefault("APP_LOG_LEVEL", "info")

	// Server
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 5000)
	v.SetDefault("SERVER_READ_TIMEOUT", "10s")
	v.SetDefault("SERVER_WRITE_TIMEOUT", "30s")
	v.SetDefault("SERVER_IDLE_TIMEOUT", "120s")

	// Database
	v.SetDefault("DATABASE_HOST", "localhost")
	v.SetDefault("DATABASE_PORT", 5432)
	v.SetDefault("DATABASE_USER", "postgres")
	v.SetDefault("DATABASE_PASSWORD", "postgres")
	v.SetDefault("DATABASE_DBNAME", "ticketing")
	v.SetDefault("DATABASE_SSLMODE", "disable")
	v.SetDefault("DATABASE_MAX_CONNS", 20)
	v.SetDefault("DATABASE_MIN_CONNS", 2)
	v.SetDefault("DATABASE_CONN_MAX_LIFETIME", "30m")
	v.SetDefault("DATABASE_CONN_MAX_IDLE_TIME", "5m")
	v.SetDefault("DATABASE_TX_MAX_RETRIES", 5)
	v.SetDefault("DATABASE_AUTO_MIGRATE", true)

	// Redis
	v.SetDefault("REDIS_ENABLED", true)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_POOL_SIZE", 50)
	v.SetDefault("REDIS_MIN_IDLE_CONNS", 5)
	v.SetDefault("REDIS_DIAL_TIMEOUT", "5s")
	v.SetDefault("REDIS_READ_TIMEOUT", "3s")
	v.SetDefault("REDIS_WRITE_TIMEOUT", "3s")

	// Kafka
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_CONSUMER_GROUP", "notification-worker")
	v.SetDefault("KAFKA_CLIENT_ID", "diplom-server")

	// JWT
	v.SetDefault("JWT_SECRET", defaultJWTSecret)
	v.SetDefault("JWT_ISSUER", "")

	// OTel
	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_SERVICE_NAME", "diplom-server")
	v.SetDefault("OTEL_COLLECTOR_ADDR", "localhost:4317")
	v.SetDefault("OTEL_SAMPLE_RATIO", 1.0)

	// CORS
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")

	// Lifecycle
	v.SetDefault("LIFECYCLE_SWEEP_ENABLED", true)
	v.SetDefault("LIFECYCLE_SWEEP_INTERVAL", "1m")
	v.SetDefault("LIFECYCLE_SWEEP_BATCH_SIZE", 500)
	v.SetDefault("CLOCK_UTC_OFFSET", "+03:00")

	// Outbox
	v.SetDefault("OUTBOX_POLL_INTERVAL", "500ms")
	v.SetDefault("OUTBOX_BATCH_SIZE", 100)
	v.SetDefault("OUTBOX_MAX_RETRIES", 5)
	v.SetDefault("OUTBOX_CLEANUP_INTERVAL", "1h")
	v.SetDefault("OUTBOX_CLEANUP_RETENTION_DAYS", 7)

	// Notifications
	v.SetDefault("NOTIFICATION_DELIVERY", "direct")
	v.SetDefault("NOTIFICATION_TOPIC", "ticketing.notifications")

	// Payment
	v.SetDefault("PAYMENT_PROVIDER", "mock")
	v.SetDefault("STRIPE_SECRET_KEY", "")
	v.SetDefault("PAYMENT_CURRENCY", "rub")

	// Cache
	v.SetDefault("CACHE_EVENT_TTL", "30s")
}

func bindConfig(v *viper.Viper, cfg *Config) {
	// App
	cfg.App.Name = v.GetString("APP_NAME")
	cfg.App.Environment = v.GetString("APP_ENVIRONMENT")
	cfg.App.Debug = v.GetBool("APP_DEBUG")
	cfg.App.Version = v.GetString("APP_VERSION")
	cfg.App.LogLevel = v.GetString("APP_LOG_LEVEL")

	// Server
	cfg.Server.Host = v.GetString("SERVER_HOST")
	cfg.Server.Port = v.GetInt("SERVER_PORT")
	cfg.Server.ReadTimeout = v.GetDuration("SERVER_READ_TIMEOUT")
	cfg.Server.WriteTimeout = v.GetDuration("SERVER_WRITE_TIMEOUT")
	cfg.Server.IdleTimeout = v.GetDuration("SERVER_IDLE_TIMEOUT")

	// Database
	cfg.Database.Host = v.GetString("DATABASE_HOST")
	cfg.Database.Port = v.GetInt("DATABASE_PORT")
	cfg.Database.User = v.GetString("DATABASE_USER")
	cfg.Database.Password = v.GetString("DATABASE_PASSWORD")
	cfg.Database.DBName = v.GetString("DATABASE_DBNAME")
	cfg.Database.SSLMode = v.GetString("DATABASE_SSLMODE")
	cfg.Database.MaxConns = v.GetInt("DATABASE_MAX_CONNS")
	cfg.Database.MinConns = v.GetInt("DATABASE_MIN_CONNS")
	cfg.Database.ConnMaxLifetime = v.GetDuration("DATABASE_CONN_MAX_LIFETIME")
	cfg.Database.ConnMaxIdleTime = v.GetDuration("DATABASE_CONN_MAX_IDLE_TIME")
	cfg.Database.TxMaxRetries = v.GetInt("DATABASE_TX_MAX_RETRIES")
	cfg.Database.AutoMigrate = v.GetBool("DATABASE_AUTO_MIGRATE")

	// Redis
	cfg.Redis.Enabled = v.GetBool("REDIS_ENABLED")
	cfg.Redis.Host = v.GetString("REDIS_HOST")
	cfg.Redis.Port = v.GetInt("REDIS_PORT")
	cfg.Redis.Password = v.GetString("REDIS_PASSWORD")
	cfg.Redis.DB = v.GetInt("REDIS_DB")
	cfg.Redis.PoolSize = v.GetInt("REDIS_POOL_SIZE")
	cfg.Redis.MinIdleConns = v.GetInt("REDIS_MIN_IDLE_CONNS")
	cfg.Redis.DialTimeout = v.GetDuration("REDIS_DIAL_TIMEOUT")
	cfg.Redis.ReadTimeout = v.GetDuration("REDIS_READ_TIMEOUT")
	cfg.Redis.WriteTimeout = v.GetDuration("REDIS_WRITE_TIMEOUT")

	// Kafka
	cfg.Kafka.Brokers = splitList(v.GetString("KAFKA_BROKERS"))
	cfg.Kafka.ConsumerGroup = v.GetString("KAFKA_CONSUMER_GROUP")
	cfg.Kafka.ClientID = v.GetString("KAFKA_CLIENT_ID")

	// JWT
	cfg.JWT.Secret = v.GetString("JWT_SECRET")
	cfg.JWT.Issuer = v.GetString("JWT_ISSUER")

	// OTel
	cfg.OTel.Enabled = v.GetBool("OTEL_ENABLED")
	cfg.OTel.ServiceName = v.GetString("OTEL_SERVICE_NAME")
	cfg.OTel.CollectorAddr = v.GetString("OTEL_COLLECTOR_ADDR")
	cfg.OTel.SampleRatio = v.GetFloat64("OTEL_SAMPLE_RATIO")

	// CORS
	cfg.CORS.AllowedOrigins = splitList(v.GetString("CORS_ALLOWED_ORIGINS"))

	// Lifecycle
	cfg.Lifecycle.SweepEnabled = v.GetBool("LIFECYCLE_SWEEP_ENABLED")
	cfg.Lifecycle.SweepInterval = v.GetDuration("LIFECYCLE_SWEEP_INTERVAL")
	cfg.Lifecycle.SweepBatchSize = v.GetInt("LIFECYCLE_SWEEP_BATCH_SIZE")
	cfg.Lifecycle.ClockUTCOffset = v.GetString("CLOCK_UTC_OFFSET")

	// Outbox
	cfg.Outbox.PollInterval = v.GetDuration("OUTBOX_POLL_INTERVAL")
	cfg.Outbox.BatchSize = v.GetInt("OUTBOX_BATCH_SIZE")
	cfg.Outbox.MaxRetries = v.GetInt("OUTBOX_MAX_RETRIES")
	cfg.Outbox.CleanupInterval = v.GetDuration("OUTBOX_CLEANUP_INTERVAL")
	cfg.Outbox.CleanupRetentionDays = v.GetInt("OUTBOX_CLEANUP_RETENTION_DAYS")

	// Notifications
	cfg.Notification.Delivery = strings.ToLower(v.GetString("NOTIFICATION_DELIVERY"))
	cfg.Notification.Topic = v.GetString("NOTIFICATION_TOPIC")

	// Payment
	cfg.Payment.Provider = strings.ToLower(v.GetString("PAYMENT_PROVIDER"))
	cfg.Payment.StripeSecretKey = v.GetString("STRIPE_SECRET_KEY")
	cfg.Payment.Currency = v.GetString("PAYMENT_CURRENCY")

	// Cache
	cfg.Cache.EventTTL = v.GetDuration("CACHE_EVENT_TTL")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app name is required")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}

	if c.IsProduction() && c.JWT.Secret == defaultJWTSecret {
		return fmt.Errorf("JWT secret must be changed in production")
	}

	if c.Lifecycle.SweepInterval <= 0 {
		return fmt.Errorf("invalid lifecycle sweep interval: %v", c.Lifecycle.SweepInterval)
	}

	if _, err := time.Parse("-07:00", c.Lifecycle.ClockUTCOffset); err != nil {
		return fmt.Errorf("invalid CLOCK_UTC_OFFSET %q: %w", c.Lifecycle.ClockUTCOffset, err)
	}

	switch c.Notification.Delivery {
	case "kafka":
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required for kafka notification delivery")
		}
	case "direct", "inline":
	default:
		return fmt.Errorf("unknown notification delivery: %q", c.Notification.Delivery)
	}

	switch c.Payment.Provider {
	case "stripe":
		if c.Payment.StripeSecretKey == "" {
			return fmt.Errorf("STRIPE_SECRET_KEY is required for the stripe provider")
		}
	case "mock":
	default:
		return fmt.Errorf("unknown payment provider: %q", c.Payment.Provider)
	}

	return nil
}

// ValidateDatabase validates database configuration
func (c *Config) ValidateDatabase() error {
	if c.Database.Host == "" {
		return fmt.Errorf("DATABASE_HOST is required")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("DATABASE_DBNAME is required")
	}
	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}
