package app

import (
	"os"
	"strings"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/xenking/delifood-checkout/internal/domain/pricing"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (DELIFOOD_ prefix), a .env file, flags, or YAML
// config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (DELIFOOD_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Pricing      PricingConfig
	ServiceHours ServiceHoursConfig
	Notify       NotifyConfig
	Redis        RedisConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// PricingConfig holds the delivery fee and ETA rules.
type PricingConfig struct {
	FreeDeliveryThreshold string `default:"500" usage:"Subtotal from which delivery is free"`
	FlatDeliveryFee       string `default:"40"  usage:"Delivery fee below the free threshold"`
	DeliveryBufferMinutes int    `default:"20"  usage:"Minutes added to the slowest preparation time"`
}

// ServiceHoursConfig is the daily window in which orders are accepted.
type ServiceHoursConfig struct {
	Open     int    `default:"9"     usage:"First accepted hour (0-23)"`
	Close    int    `default:"22"    usage:"Last accepted hour (0-23), inclusive"`
	Timezone string `default:"Local" usage:"IANA timezone the hours are expressed in"`
}

// NotifyConfig selects the notification sinks. Every enabled sink receives
// each notification.
type NotifyConfig struct {
	Timeout  time.Duration `default:"3s"   usage:"Upper bound for delivering one notification"`
	Store    bool          `default:"true" usage:"Persist notifications in PostgreSQL"`
	Kafka    KafkaConfig
	RabbitMQ RabbitMQConfig
	Redis    bool `default:"false" usage:"Publish notifications on per-user Redis channels"`
}

// KafkaConfig enables the Kafka sink when Brokers is set.
type KafkaConfig struct {
	Brokers []string `usage:"Kafka bootstrap brokers"`
	Topic   string   `default:"order-notifications" usage:"Kafka topic"`
}

// RabbitMQConfig enables the RabbitMQ sink when URL is set.
type RabbitMQConfig struct {
	URL      string `usage:"AMQP URL"`
	Exchange string `default:"notifications_fanout" usage:"Fanout exchange name"`
}

// RedisConfig enables Redis backed idempotency keys and rate limiting when
// Addr is set.
type RedisConfig struct {
	Addr string `usage:"Redis address, host:port or redis:// URL (DELIFOOD_REDIS_ADDR or REDIS_URL)"`
}

// RateLimitConfig controls the per-client rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads .env, then configuration from environment variables, YAML
// config files and flags, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrap(err, "load .env")
	}
	return loadConfig(aconfig.Config{
		EnvPrefix: "DELIFOOD",
		Files:     []string{"config.yaml", "/etc/delifood/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
}

func loadConfig(acfg aconfig.Config) (*Config, error) {
	var cfg Config
	if err := aconfig.LoaderFor(&cfg, acfg).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's DELIFOOD_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = os.Getenv("REDIS_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}

// Validate checks settings that cannot be expressed as defaults.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set DELIFOOD_DATABASE_URL or DATABASE_URL")
	}
	if _, err := c.Policy(); err != nil {
		return err
	}
	if c.Notify.RabbitMQ.URL != "" && strings.TrimSpace(c.Notify.RabbitMQ.Exchange) == "" {
		return errors.New("notify: rabbitmq exchange is required")
	}
	if len(c.Notify.Kafka.Brokers) > 0 && c.Notify.Kafka.Topic == "" {
		return errors.New("notify: kafka topic is required")
	}
	return nil
}

// Policy builds the pricing policy described by the configuration.
func (c *Config) Policy() (pricing.Policy, error) {
	loc, err := time.LoadLocation(c.ServiceHours.Timezone)
	if err != nil {
		return pricing.Policy{}, errors.Wrapf(err, "service hours timezone %q", c.ServiceHours.Timezone)
	}
	threshold, err := decimal.NewFromString(c.Pricing.FreeDeliveryThreshold)
	if err != nil {
		return pricing.Policy{}, errors.Wrap(err, "free delivery threshold")
	}
	fee, err := decimal.NewFromString(c.Pricing.FlatDeliveryFee)
	if err != nil {
		return pricing.Policy{}, errors.Wrap(err, "flat delivery fee")
	}
	if threshold.IsNegative() || fee.IsNegative() || c.Pricing.DeliveryBufferMinutes < 0 {
		return pricing.Policy{}, errors.New("pricing values must not be negative")
	}

	p := pricing.Policy{
		FreeDeliveryThreshold: threshold,
		FlatDeliveryFee:       fee,
		BufferMinutes:         c.Pricing.DeliveryBufferMinutes,
		Hours: pricing.ServiceHours{
			Open:     c.ServiceHours.Open,
			Close:    c.ServiceHours.Close,
			Location: loc,
		},
	}
	if err := p.Hours.Validate(); err != nil {
		return pricing.Policy{}, err
	}
	return p, nil
}
