package server

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/adred-codev/busq/internal/monitoring"
)

// Config holds all daemon configuration.
// Tags:
//
//	env: Environment variable name
//	envDefault: Default value if not set
type Config struct {
	// Server basics
	Addr string `env:"BUSQ_ADDR" envDefault:":3002"`

	// Bus sizing
	RingSize  int `env:"BUSQ_RING_SIZE" envDefault:"1024"`
	SkipItems int `env:"BUSQ_SKIP_ITEMS" envDefault:"0"`

	// Publish pipeline
	EventBuffer int     `env:"BUSQ_EVENT_BUFFER" envDefault:"256"`
	SampleRate  float64 `env:"BUSQ_SAMPLE_RATE" envDefault:"4.0"` // telemetry samples per second

	// NATS bridge (optional)
	NATSEnabled   bool          `env:"BUSQ_NATS_ENABLED" envDefault:"false"`
	NATSUrl       string        `env:"BUSQ_NATS_URL" envDefault:"nats://localhost:4222"`
	NATSSubjects  []string      `env:"BUSQ_NATS_SUBJECTS" envDefault:"telemetry.>" envSeparator:","`
	NATSReconnect time.Duration `env:"BUSQ_NATS_RECONNECT_WAIT" envDefault:"2s"`

	// Kafka bridge (optional)
	KafkaEnabled  bool     `env:"BUSQ_KAFKA_ENABLED" envDefault:"false"`
	KafkaBrokers  []string `env:"BUSQ_KAFKA_BROKERS" envDefault:"localhost:19092" envSeparator:","`
	ConsumerGroup string   `env:"BUSQ_KAFKA_CONSUMER_GROUP" envDefault:"busq-feedd"`
	KafkaTopics   []string `env:"BUSQ_KAFKA_TOPICS" envDefault:"telemetry" envSeparator:","`

	// Connection handling
	MaxConnections int `env:"BUSQ_MAX_CONNECTIONS" envDefault:"5000"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
}

// LoadConfig reads configuration from .env file and environment variables.
// Priority: ENV vars > .env file > defaults.
//
// Optional logger parameter for structured logging. If nil, startup notes
// go to stdout.
func LoadConfig(logger *zerolog.Logger) (*Config, error) {
	// .env is a development convenience; production uses real env vars.
	if err := godotenv.Load(); err != nil {
		if logger != nil {
			logger.Info().Msg("No .env file found (using environment variables only)")
		} else {
			fmt.Println("Info: No .env file found (using environment variables only)")
		}
	} else if logger != nil {
		logger.Info().Msg("Loaded configuration from .env file")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks configuration for errors.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("BUSQ_ADDR is required")
	}
	if c.RingSize < 1 {
		return fmt.Errorf("BUSQ_RING_SIZE must be >= 1, got %d", c.RingSize)
	}
	if c.SkipItems < 0 || c.SkipItems >= c.RingSize {
		return fmt.Errorf("BUSQ_SKIP_ITEMS must be in [0, %d), got %d", c.RingSize, c.SkipItems)
	}
	if c.EventBuffer < 1 {
		return fmt.Errorf("BUSQ_EVENT_BUFFER must be >= 1, got %d", c.EventBuffer)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("BUSQ_SAMPLE_RATE must be > 0, got %g", c.SampleRate)
	}
	if c.MaxConnections < 1 {
		return fmt.Errorf("BUSQ_MAX_CONNECTIONS must be > 0, got %d", c.MaxConnections)
	}
	if c.KafkaEnabled {
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("BUSQ_KAFKA_BROKERS is required when the Kafka bridge is enabled")
		}
		if len(c.KafkaTopics) == 0 {
			return fmt.Errorf("BUSQ_KAFKA_TOPICS is required when the Kafka bridge is enabled")
		}
	}
	if c.NATSEnabled && len(c.NATSSubjects) == 0 {
		return fmt.Errorf("BUSQ_NATS_SUBJECTS is required when the NATS bridge is enabled")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error (got: %s)", c.LogLevel)
	}
	validLogFormats := map[string]bool{"json": true, "pretty": true}
	if !validLogFormats[c.LogFormat] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, pretty (got: %s)", c.LogFormat)
	}

	return nil
}

// LoggerConfig maps the config onto the monitoring logger options.
func (c *Config) LoggerConfig() monitoring.LoggerConfig {
	return monitoring.LoggerConfig{
		Level:  monitoring.LogLevel(c.LogLevel),
		Format: monitoring.LogFormat(c.LogFormat),
	}
}
