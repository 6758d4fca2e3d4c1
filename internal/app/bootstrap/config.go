package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ServiceID string

	HTTPPort int
	GRPCPort int

	DatabaseURL  string
	RedisURL     string
	KafkaBrokers []string

	MaxDBConns int32

	CommandStream     string
	QueueGroup        string
	VisibilityTimeout time.Duration
	MaxDeliveries     int
	WorkerCount       int

	OutcomeTopic         string
	DispatchPollInterval time.Duration

	EnvelopeTTL time.Duration

	// IdempotencyTTL must be at least the maximum plausible redelivery
	// window (visibility timeout times the delivery limit, plus slack).
	// A shorter TTL breaks dedup: a redelivered command whose record
	// already expired would mutate the store a second time.
	IdempotencyTTL time.Duration
}

type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL  string   `yaml:"postgres_url"`
		RedisURL     string   `yaml:"redis_url"`
		KafkaBrokers []string `yaml:"kafka_brokers"`
	} `yaml:"dependencies"`
	Pipeline struct {
		CommandStream       string `yaml:"command_stream"`
		QueueGroup          string `yaml:"queue_group"`
		VisibilitySeconds   int    `yaml:"visibility_seconds"`
		MaxDeliveries       int    `yaml:"max_deliveries"`
		WorkerCount         int    `yaml:"worker_count"`
		OutcomeTopic        string `yaml:"outcome_topic"`
		DispatchPollSeconds int    `yaml:"dispatch_poll_seconds"`
		EnvelopeTTLSeconds  int    `yaml:"envelope_ttl_seconds"`
		IdempotencyTTLHours int    `yaml:"idempotency_ttl_hours"`
	} `yaml:"pipeline"`
}

func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:            "M21-Lesson-Command-Service",
		HTTPPort:             8080,
		GRPCPort:             9090,
		MaxDBConns:           20,
		CommandStream:        "lesson.commands",
		QueueGroup:           "m21-lesson-command",
		VisibilityTimeout:    30 * time.Second,
		MaxDeliveries:        5,
		WorkerCount:          4,
		OutcomeTopic:         "lesson.command_outcome",
		DispatchPollInterval: time.Second,
		EnvelopeTTL:          5 * time.Minute,
		IdempotencyTTL:       24 * time.Hour,
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		if f.Service.ID != "" {
			cfg.ServiceID = f.Service.ID
		}
		if f.Service.HTTPPort > 0 {
			cfg.HTTPPort = f.Service.HTTPPort
		}
		if f.Service.GRPCPort > 0 {
			cfg.GRPCPort = f.Service.GRPCPort
		}
		if f.Dependencies.PostgresURL != "" {
			cfg.DatabaseURL = f.Dependencies.PostgresURL
		}
		if f.Dependencies.RedisURL != "" {
			cfg.RedisURL = f.Dependencies.RedisURL
		}
		if len(f.Dependencies.KafkaBrokers) > 0 {
			cfg.KafkaBrokers = trimNonEmpty(f.Dependencies.KafkaBrokers)
		}
		if f.Pipeline.CommandStream != "" {
			cfg.CommandStream = f.Pipeline.CommandStream
		}
		if f.Pipeline.QueueGroup != "" {
			cfg.QueueGroup = f.Pipeline.QueueGroup
		}
		if f.Pipeline.VisibilitySeconds > 0 {
			cfg.VisibilityTimeout = time.Duration(f.Pipeline.VisibilitySeconds) * time.Second
		}
		if f.Pipeline.MaxDeliveries > 0 {
			cfg.MaxDeliveries = f.Pipeline.MaxDeliveries
		}
		if f.Pipeline.WorkerCount > 0 {
			cfg.WorkerCount = f.Pipeline.WorkerCount
		}
		if f.Pipeline.OutcomeTopic != "" {
			cfg.OutcomeTopic = f.Pipeline.OutcomeTopic
		}
		if f.Pipeline.DispatchPollSeconds > 0 {
			cfg.DispatchPollInterval = time.Duration(f.Pipeline.DispatchPollSeconds) * time.Second
		}
		if f.Pipeline.EnvelopeTTLSeconds > 0 {
			cfg.EnvelopeTTL = time.Duration(f.Pipeline.EnvelopeTTLSeconds) * time.Second
		}
		if f.Pipeline.IdempotencyTTLHours > 0 {
			cfg.IdempotencyTTL = time.Duration(f.Pipeline.IdempotencyTTLHours) * time.Hour
		}
	}

	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.KafkaBrokers = envCSV("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))
	cfg.CommandStream = envOrDefault("COMMAND_STREAM", cfg.CommandStream)
	cfg.QueueGroup = envOrDefault("QUEUE_GROUP", cfg.QueueGroup)
	cfg.VisibilityTimeout = time.Duration(envInt("QUEUE_VISIBILITY_SECONDS", int(cfg.VisibilityTimeout.Seconds()))) * time.Second
	cfg.MaxDeliveries = envInt("QUEUE_MAX_DELIVERIES", cfg.MaxDeliveries)
	cfg.WorkerCount = envInt("WORKER_COUNT", cfg.WorkerCount)
	cfg.OutcomeTopic = envOrDefault("OUTCOME_TOPIC", cfg.OutcomeTopic)
	cfg.DispatchPollInterval = time.Duration(envInt("DISPATCH_POLL_SECONDS", int(cfg.DispatchPollInterval.Seconds()))) * time.Second
	cfg.EnvelopeTTL = time.Duration(envInt("ENVELOPE_TTL_SECONDS", int(cfg.EnvelopeTTL.Seconds()))) * time.Second
	cfg.IdempotencyTTL = time.Duration(envInt("IDEMPOTENCY_TTL_HOURS", int(cfg.IdempotencyTTL.Hours()))) * time.Hour

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("missing DB_URL/POSTGRES_URL")
	}
	if cfg.IdempotencyTTL < redeliveryWindow(cfg) {
		return Config{}, fmt.Errorf("IDEMPOTENCY_TTL_HOURS below the redelivery window; this would break dedup correctness")
	}
	return cfg, nil
}

// redeliveryWindow is the longest a command can keep being redelivered
// before it dead-letters, with generous slack for consumer downtime.
func redeliveryWindow(cfg Config) time.Duration {
	return time.Duration(cfg.MaxDeliveries)*cfg.VisibilityTimeout + time.Hour
}

func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envCSV(name string, fallback []string) []string {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	return trimNonEmpty(strings.Split(raw, ","))
}

func trimNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
