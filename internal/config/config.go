package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"taximeter/internal/domain"
)

// EnvPrefix is prepended to every environment variable, e.g. TAXIMETER_SERVER_PORT.
const EnvPrefix = "TAXIMETER"

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Meter    MeterConfig
	Redis    RedisConfig
	AMQP     AMQPConfig
	NewRelic NewRelicConfig
	Log      LogConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string
}

// MeterConfig holds the pricing model and display settings.
type MeterConfig struct {
	MinimumFare    float64
	StoppedRate    float64 // per second
	MovingRate     float64 // per second
	CurrencySymbol string
	PollInterval   time.Duration // refresh cadence for live displays
}

// Rates converts the pricing settings to the domain model.
func (m MeterConfig) Rates() domain.Rates {
	return domain.Rates{
		StoppedPerSecond: m.StoppedRate,
		MovingPerSecond:  m.MovingRate,
		MinimumFare:      m.MinimumFare,
	}
}

// RedisConfig holds Redis configuration. Redis only backs idempotency keys.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// AMQPConfig holds the RabbitMQ settings for meter events. An empty URL
// disables the broker.
type AMQPConfig struct {
	URL      string
	Exchange string
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string
	Format string // text or json
}

// Configuration keys.
const (
	keyServerPort            = "server.port"
	keyServerReadTimeout     = "server.read_timeout"
	keyServerWriteTimeout    = "server.write_timeout"
	keyServerShutdownTimeout = "server.shutdown_timeout"
	keyServerCORSOrigins     = "server.cors_origins"

	keyMeterMinimumFare    = "meter.minimum_fare"
	keyMeterStoppedRate    = "meter.stopped_rate"
	keyMeterMovingRate     = "meter.moving_rate"
	keyMeterCurrencySymbol = "meter.currency_symbol"
	keyMeterPollInterval   = "meter.poll_interval"

	keyRedisEnabled  = "redis.enabled"
	keyRedisAddr     = "redis.addr"
	keyRedisPassword = "redis.password"
	keyRedisDB       = "redis.db"

	keyAMQPURL      = "amqp.url"
	keyAMQPExchange = "amqp.exchange"

	keyNewRelicAppName    = "newrelic.app_name"
	keyNewRelicLicenseKey = "newrelic.license_key"
	keyNewRelicEnabled    = "newrelic.enabled"

	keyLogLevel  = "log.level"
	keyLogFormat = "log.format"
)

func setDefaults(v *viper.Viper) {
	rates := domain.DefaultRates()

	v.SetDefault(keyServerPort, "8080")
	v.SetDefault(keyServerReadTimeout, 10*time.Second)
	v.SetDefault(keyServerWriteTimeout, 10*time.Second)
	v.SetDefault(keyServerShutdownTimeout, 5*time.Second)
	v.SetDefault(keyServerCORSOrigins, "*")

	v.SetDefault(keyMeterMinimumFare, rates.MinimumFare)
	v.SetDefault(keyMeterStoppedRate, rates.StoppedPerSecond)
	v.SetDefault(keyMeterMovingRate, rates.MovingPerSecond)
	v.SetDefault(keyMeterCurrencySymbol, "€")
	v.SetDefault(keyMeterPollInterval, 500*time.Millisecond)

	v.SetDefault(keyRedisEnabled, false)
	v.SetDefault(keyRedisAddr, "localhost:6379")
	v.SetDefault(keyRedisPassword, "")
	v.SetDefault(keyRedisDB, 0)

	v.SetDefault(keyAMQPURL, "")
	v.SetDefault(keyAMQPExchange, "taximeter.events")

	v.SetDefault(keyNewRelicAppName, "taximeter")
	v.SetDefault(keyNewRelicLicenseKey, "")
	v.SetDefault(keyNewRelicEnabled, false)

	v.SetDefault(keyLogLevel, "info")
	v.SetDefault(keyLogFormat, "text")
}

// Load loads configuration from environment variables and, when path is
// not empty, from a YAML file. Environment variables win over the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            v.GetString(keyServerPort),
			ReadTimeout:     v.GetDuration(keyServerReadTimeout),
			WriteTimeout:    v.GetDuration(keyServerWriteTimeout),
			ShutdownTimeout: v.GetDuration(keyServerShutdownTimeout),
			CORSOrigins:     splitCSV(v.GetString(keyServerCORSOrigins)),
		},
		Meter: MeterConfig{
			MinimumFare:    v.GetFloat64(keyMeterMinimumFare),
			StoppedRate:    v.GetFloat64(keyMeterStoppedRate),
			MovingRate:     v.GetFloat64(keyMeterMovingRate),
			CurrencySymbol: v.GetString(keyMeterCurrencySymbol),
			PollInterval:   v.GetDuration(keyMeterPollInterval),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool(keyRedisEnabled),
			Addr:     v.GetString(keyRedisAddr),
			Password: v.GetString(keyRedisPassword),
			DB:       v.GetInt(keyRedisDB),
		},
		AMQP: AMQPConfig{
			URL:      v.GetString(keyAMQPURL),
			Exchange: v.GetString(keyAMQPExchange),
		},
		NewRelic: NewRelicConfig{
			AppName:    v.GetString(keyNewRelicAppName),
			LicenseKey: v.GetString(keyNewRelicLicenseKey),
			Enabled:    v.GetBool(keyNewRelicEnabled),
		},
		Log: LogConfig{
			Level:  v.GetString(keyLogLevel),
			Format: v.GetString(keyLogFormat),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that would otherwise fail late.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port == "" {
		errs = append(errs, errors.New("server port is required"))
	}
	if c.Meter.MinimumFare < 0 {
		errs = append(errs, fmt.Errorf("minimum fare must not be negative, got %v", c.Meter.MinimumFare))
	}
	if c.Meter.StoppedRate < 0 {
		errs = append(errs, fmt.Errorf("stopped rate must not be negative, got %v", c.Meter.StoppedRate))
	}
	if c.Meter.MovingRate < 0 {
		errs = append(errs, fmt.Errorf("moving rate must not be negative, got %v", c.Meter.MovingRate))
	}
	if c.Meter.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll interval must be positive, got %v", c.Meter.PollInterval))
	}
	if c.AMQP.URL != "" && c.AMQP.Exchange == "" {
		errs = append(errs, errors.New("amqp exchange is required when amqp url is set"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// splitCSV splits a comma-separated string into a trimmed slice, ignoring empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
