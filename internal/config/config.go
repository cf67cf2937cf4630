package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// DBConfig: параметры подключения к БД.
type DBConfig struct {
	Driver   string `envconfig:"DB_DRIVER" default:"postgres"`
	DSN      string `envconfig:"DB_DSN"`
	Host     string `envconfig:"DB_HOST" default:"postgres"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" default:"booking"`
	Password string `envconfig:"DB_PASSWORD" default:"booking"`
	Name     string `envconfig:"DB_NAME" default:"booking_db"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	TimeZone string `envconfig:"DB_TIMEZONE" default:"UTC"`

	MaxOpenConns    int  `envconfig:"DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int  `envconfig:"DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifeTime int  `envconfig:"DB_CONN_MAX_LIFETIME_MIN" default:"30"` // минут
	AutoMigrate     bool `envconfig:"DB_AUTO_MIGRATE" default:"true"`
}

type NotifyConfig struct {
	Backend string `envconfig:"NOTIFY_BACKEND" default:"log"`

	RabbitURL       string `envconfig:"RABBIT_URL"`
	BookingExchange string `envconfig:"BOOKING_EXCHANGE" default:"booking.exchange"`

	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisStream   string `envconfig:"REDIS_STREAM" default:"booking.events"`
}

type SchedulingConfig struct {
	CancellationBuffer    time.Duration `envconfig:"CANCELLATION_BUFFER" default:"24h"`
	SlotDuration          time.Duration `envconfig:"SLOT_DURATION" default:"60m"`
	GenerationHorizonDays int           `envconfig:"GENERATION_HORIZON_DAYS" default:"14"`
}

type Config struct {
	Env           string `envconfig:"ENV" default:"dev"`
	GRPCAddr      string `envconfig:"GRPC_ADDR" default:":50051"`
	AdminHTTPAddr string `envconfig:"ADMIN_HTTP_ADDR" default:":8081"`
	LogLevel      string `envconfig:"LOG_LEVEL" default:"info"`
	StoreBackend  string `envconfig:"STORE_BACKEND" default:"gorm"`
	JWTSecret     string `envconfig:"JWT_SECRET" required:"true"`
	OTLPEndpoint  string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	DB         DBConfig
	Notify     NotifyConfig
	Scheduling SchedulingConfig
}

// Load читает .env (если есть) и переменные окружения.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv reads the process environment only.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MinJWTSecretLen: минимальная длина HS256 секрета в байтах.
const MinJWTSecretLen = 32

// Validate: минимальная валидация.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("invalid config: JWT_SECRET must not be empty")
	}
	if len(c.JWTSecret) < MinJWTSecretLen {
		return fmt.Errorf("invalid config: JWT_SECRET must be at least %d bytes", MinJWTSecretLen)
	}

	switch c.StoreBackend {
	case "gorm", "memory":
	default:
		return fmt.Errorf("invalid config: STORE_BACKEND %q must be gorm or memory", c.StoreBackend)
	}
	if c.StoreBackend == "gorm" {
		if err := c.DB.Validate(); err != nil {
			return err
		}
	}

	switch c.Notify.Backend {
	case "log":
	case "rabbitmq":
		if c.Notify.RabbitURL == "" {
			return fmt.Errorf("invalid config: RABBIT_URL is required for the rabbitmq notify backend")
		}
	case "redis":
		if c.Notify.RedisAddr == "" {
			return fmt.Errorf("invalid config: REDIS_ADDR is required for the redis notify backend")
		}
	default:
		return fmt.Errorf("invalid config: NOTIFY_BACKEND %q must be log, rabbitmq or redis", c.Notify.Backend)
	}

	s := c.Scheduling
	if s.SlotDuration <= 0 {
		return fmt.Errorf("invalid config: SLOT_DURATION must be positive")
	}
	if s.CancellationBuffer <= 0 {
		return fmt.Errorf("invalid config: CANCELLATION_BUFFER must be positive")
	}
	if s.GenerationHorizonDays < 1 {
		return fmt.Errorf("invalid config: GENERATION_HORIZON_DAYS must be at least 1")
	}
	return nil
}

func (c DBConfig) Validate() error {
	switch c.Driver {
	case "postgres", "mysql":
		if c.DSN == "" && (c.Host == "" || c.User == "" || c.Name == "") {
			return fmt.Errorf("invalid DB config: host/user/name must not be empty")
		}
	case "sqlite":
		if c.DSN == "" {
			return fmt.Errorf("invalid DB config: DB_DSN is required for sqlite")
		}
	default:
		return fmt.Errorf("invalid DB config: unknown driver %q", c.Driver)
	}
	return nil
}
