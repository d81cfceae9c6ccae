package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"meridian/pkg/errors"
)

type Config struct {
	App           AppConfig
	Orchestration OrchestrationConfig
	ToolService   ToolServiceConfig
	Postgres      PostgresConfig
	ClickHouse    ClickHouseConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	Embeddings    EmbeddingsConfig
	ErrorTracking ErrorTrackingConfig
}

type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"meridian"`
	Env         string `envconfig:"APP_ENV" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	MetricsAddr string `envconfig:"METRICS_ADDR"`
}

// OrchestrationConfig holds the knobs of the analysis pipeline
type OrchestrationConfig struct {
	ConfidenceThreshold      float64       `envconfig:"CONFIDENCE_THRESHOLD" default:"0.6"`
	MaxSpecialists           int           `envconfig:"MAX_SPECIALISTS" default:"6"`
	DivergenceTolerance      float64       `envconfig:"DIVERGENCE_TOLERANCE" default:"0.10"`
	ToolTimeout              time.Duration `envconfig:"TOOL_TIMEOUT" default:"30s"`
	MaxToolConcurrency       int           `envconfig:"MAX_TOOL_CONCURRENCY" default:"4"`
	PeerInsightMinConfidence float64       `envconfig:"PEER_INSIGHT_MIN_CONFIDENCE" default:"0.5"`
}

// Validate rejects values the pipeline cannot work with
func (c OrchestrationConfig) Validate() error {
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return errors.NewValidationError("CONFIDENCE_THRESHOLD", "must be within [0,1]", c.ConfidenceThreshold)
	}
	if c.MaxSpecialists < 1 {
		return errors.NewValidationError("MAX_SPECIALISTS", "must be at least 1", c.MaxSpecialists)
	}
	if c.DivergenceTolerance < 0 {
		return errors.NewValidationError("DIVERGENCE_TOLERANCE", "must not be negative", c.DivergenceTolerance)
	}
	if c.PeerInsightMinConfidence < 0 || c.PeerInsightMinConfidence > 1 {
		return errors.NewValidationError("PEER_INSIGHT_MIN_CONFIDENCE", "must be within [0,1]", c.PeerInsightMinConfidence)
	}
	return nil
}

// DefaultOrchestration returns the defaults used when no environment is loaded
func DefaultOrchestration() OrchestrationConfig {
	return OrchestrationConfig{
		ConfidenceThreshold:      0.6,
		MaxSpecialists:           6,
		DivergenceTolerance:      0.10,
		ToolTimeout:              30 * time.Second,
		MaxToolConcurrency:       4,
		PeerInsightMinConfidence: 0.5,
	}
}

// ToolServiceConfig points at the external tool-execution service
type ToolServiceConfig struct {
	BaseURL           string        `envconfig:"TOOL_SERVICE_URL" default:"http://localhost:8090"`
	APIKey            string        `envconfig:"TOOL_SERVICE_API_KEY"`
	RequestsPerMinute int           `envconfig:"TOOL_SERVICE_RPM" default:"600"`
	MaxRetries        int           `envconfig:"TOOL_SERVICE_MAX_RETRIES" default:"2"`
	RequestTimeout    time.Duration `envconfig:"TOOL_SERVICE_TIMEOUT" default:"20s"`
}

// PostgresConfig is optional: an empty host keeps the reasoning bank in memory
type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER"`
	Password string `envconfig:"POSTGRES_PASSWORD"`
	Database string `envconfig:"POSTGRES_DB" default:"meridian"`
	SSLMode  string `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
	MaxConns int    `envconfig:"POSTGRES_MAX_CONNS" default:"10"`
}

func (c PostgresConfig) Enabled() bool { return c.Host != "" }

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

type ClickHouseConfig struct {
	Host     string `envconfig:"CLICKHOUSE_HOST"`
	Port     int    `envconfig:"CLICKHOUSE_PORT" default:"9000"`
	User     string `envconfig:"CLICKHOUSE_USER" default:"default"`
	Password string `envconfig:"CLICKHOUSE_PASSWORD"`
	Database string `envconfig:"CLICKHOUSE_DB" default:"meridian"`
}

func (c ClickHouseConfig) Enabled() bool { return c.Host != "" }

type RedisConfig struct {
	Host       string        `envconfig:"REDIS_HOST"`
	Port       int           `envconfig:"REDIS_PORT" default:"6379"`
	Password   string        `envconfig:"REDIS_PASSWORD"`
	DB         int           `envconfig:"REDIS_DB" default:"0"`
	InsightTTL time.Duration `envconfig:"REDIS_INSIGHT_TTL" default:"168h"`
}

func (c RedisConfig) Enabled() bool { return c.Host != "" }

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type KafkaConfig struct {
	Brokers       []string `envconfig:"KAFKA_BROKERS"`
	GroupID       string   `envconfig:"KAFKA_GROUP_ID" default:"meridian"`
	FeedbackTopic string   `envconfig:"KAFKA_FEEDBACK_TOPIC" default:"analysis.feedback"`
}

func (c KafkaConfig) Enabled() bool { return len(c.Brokers) > 0 }

// EmbeddingsConfig enables semantic routing when an API key is present
type EmbeddingsConfig struct {
	Provider string        `envconfig:"EMBEDDINGS_PROVIDER" default:"openai"`
	APIKey   string        `envconfig:"OPENAI_API_KEY"`
	BaseURL  string        `envconfig:"EMBEDDINGS_BASE_URL"` // OpenAI-compatible endpoint override
	Model    string        `envconfig:"EMBEDDINGS_MODEL" default:"text-embedding-3-small"`
	Timeout  time.Duration `envconfig:"EMBEDDINGS_TIMEOUT" default:"30s"`
	MinScore float64       `envconfig:"ROUTER_MIN_SCORE" default:"0.3"`
}

func (c EmbeddingsConfig) Enabled() bool { return c.APIKey != "" }

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"true"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// Load reads configuration from environment variables
// It first tries to load .env file (useful for local development)
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	if err := cfg.Orchestration.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid orchestration config")
	}

	return &cfg, nil
}
