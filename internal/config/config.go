package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Transport TransportConfig `yaml:"transport"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	Tracking  TrackingConfig  `yaml:"tracking"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	MetricsEnabled bool     `yaml:"metrics_enabled"`
}

// GetHost returns the server host, with ECS detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// Addr returns host:port for the HTTP listener.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.GetHost(), c.Port)
}

// DatabaseConfig holds the subscriber store connection. An empty URL selects
// the in-memory store.
type DatabaseConfig struct {
	URL             string `yaml:"url"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_seconds"`
}

// Enabled reports whether a Postgres store is configured.
func (c DatabaseConfig) Enabled() bool {
	return c.URL != ""
}

// RedisConfig holds the Redis connection used for the campaign counter and
// dispatch locks. An empty URL disables both Redis features.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// TransportConfig selects and configures the email transport.
type TransportConfig struct {
	Provider       string          `yaml:"provider"` // ses, sparkpost, resend, log
	FromName       string          `yaml:"from_name"`
	FromEmail      string          `yaml:"from_email"`
	ReplyTo        string          `yaml:"reply_to"`
	TimeoutSeconds int             `yaml:"timeout_seconds"`
	MaxRetries     int             `yaml:"max_retries"`
	SES            SESConfig       `yaml:"ses"`
	SparkPost      SparkPostConfig `yaml:"sparkpost"`
	Resend         ResendConfig    `yaml:"resend"`
}

// Timeout returns the configured per-recipient timeout as a duration
func (c TransportConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SESConfig holds AWS SES API configuration
type SESConfig struct {
	Region           string `yaml:"region"`
	AccessKey        string `yaml:"access_key"`
	SecretKey        string `yaml:"secret_key"`
	ConfigurationSet string `yaml:"configuration_set"`
}

// SparkPostConfig holds SparkPost API configuration
type SparkPostConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// ResendConfig holds Resend API configuration
type ResendConfig struct {
	APIKey string `yaml:"api_key"`
}

// DispatchConfig bounds a single send request.
type DispatchConfig struct {
	Concurrency    int `yaml:"concurrency"`
	MaxRecipients  int `yaml:"max_recipients"`
	LockTTLSeconds int `yaml:"lock_ttl_seconds"`
}

// LockTTL returns the duplicate-dispatch lock lifetime.
func (c DispatchConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// TrackingConfig holds the outcome event stream settings. An empty queue
// URL disables publishing.
type TrackingConfig struct {
	SQSQueueURL string `yaml:"sqs_queue_url"`
	Region      string `yaml:"region"`
}

// ArchiveConfig selects where dispatch archives are written.
type ArchiveConfig struct {
	Type      string `yaml:"type"` // none, local, s3, dynamodb
	LocalPath string `yaml:"local_path"`
	S3Bucket  string `yaml:"s3_bucket"`
	S3Region  string `yaml:"s3_region"`
	S3Prefix  string `yaml:"s3_prefix"`
	// DynamoTable uses S3Region; items expire after TTLDays.
	DynamoTable string `yaml:"dynamodb_table"`
	TTLDays     int    `yaml:"ttl_days"`
}

// LogConfig controls the house logger.
type LogConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// Redact reports whether email addresses are redacted in logs. Defaults on.
func (c LogConfig) Redact() bool {
	return c.RedactPII == nil || *c.RedactPII
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"http://localhost:3000"}
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 300
	}
	if cfg.Transport.Provider == "" {
		cfg.Transport.Provider = "log"
	}
	cfg.Transport.Provider = strings.ToLower(cfg.Transport.Provider)
	if cfg.Transport.TimeoutSeconds == 0 {
		cfg.Transport.TimeoutSeconds = 30
	}
	if cfg.Transport.MaxRetries == 0 {
		cfg.Transport.MaxRetries = 2
	}
	if cfg.Transport.FromName == "" {
		cfg.Transport.FromName = "Promotions"
	}
	if cfg.Transport.FromEmail == "" {
		cfg.Transport.FromEmail = "promotions@example.com"
	}
	if cfg.Transport.SES.Region == "" {
		cfg.Transport.SES.Region = "us-west-2"
	}
	if cfg.Transport.SparkPost.BaseURL == "" {
		cfg.Transport.SparkPost.BaseURL = "https://api.sparkpost.com/api/v1"
	}
	if cfg.Dispatch.Concurrency == 0 {
		cfg.Dispatch.Concurrency = 1
	}
	if cfg.Dispatch.MaxRecipients == 0 {
		cfg.Dispatch.MaxRecipients = 5000
	}
	if cfg.Dispatch.LockTTLSeconds == 0 {
		cfg.Dispatch.LockTTLSeconds = 600
	}
	if cfg.Tracking.Region == "" {
		cfg.Tracking.Region = cfg.Transport.SES.Region
	}
	if cfg.Archive.Type == "" {
		cfg.Archive.Type = "none"
	}
	if cfg.Archive.LocalPath == "" {
		cfg.Archive.LocalPath = "./data/dispatches"
	}
	if cfg.Archive.S3Region == "" {
		cfg.Archive.S3Region = cfg.Transport.SES.Region
	}
	if cfg.Archive.S3Prefix == "" {
		cfg.Archive.S3Prefix = "dispatches/"
	}
	if cfg.Archive.TTLDays == 0 {
		cfg.Archive.TTLDays = 90
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "INFO"
	}
}

// Validate checks settings that would otherwise fail at first send.
func (cfg *Config) Validate() error {
	switch cfg.Transport.Provider {
	case "log":
	case "ses":
	case "sparkpost":
		if cfg.Transport.SparkPost.APIKey == "" {
			return fmt.Errorf("transport.sparkpost.api_key is required for provider sparkpost")
		}
	case "resend":
		if cfg.Transport.Resend.APIKey == "" {
			return fmt.Errorf("transport.resend.api_key is required for provider resend")
		}
	default:
		return fmt.Errorf("unknown transport provider %q", cfg.Transport.Provider)
	}
	switch cfg.Archive.Type {
	case "none", "local":
	case "s3":
		if cfg.Archive.S3Bucket == "" {
			return fmt.Errorf("archive.s3_bucket is required for archive type s3")
		}
	case "dynamodb":
		if cfg.Archive.DynamoTable == "" {
			return fmt.Errorf("archive.dynamodb_table is required for archive type dynamodb")
		}
	default:
		return fmt.Errorf("unknown archive type %q", cfg.Archive.Type)
	}
	if cfg.Dispatch.Concurrency < 1 {
		return fmt.Errorf("dispatch.concurrency must be at least 1")
	}
	return nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS.
// A missing config file is not an error; defaults plus env apply.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = &Config{}
		cfg.applyDefaults()
	} else if err != nil {
		return nil, err
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("ESP_PROVIDER"); v != "" {
		cfg.Transport.Provider = strings.ToLower(v)
	}
	if v := os.Getenv("AWS_SES_ACCESS_KEY"); v != "" {
		cfg.Transport.SES.AccessKey = v
	}
	if v := os.Getenv("AWS_SES_SECRET_KEY"); v != "" {
		cfg.Transport.SES.SecretKey = v
	}
	if v := os.Getenv("AWS_SES_REGION"); v != "" {
		cfg.Transport.SES.Region = v
	}
	if v := os.Getenv("SPARKPOST_API_KEY"); v != "" {
		cfg.Transport.SparkPost.APIKey = v
	}
	if v := os.Getenv("SPARKPOST_BASE_URL"); v != "" {
		cfg.Transport.SparkPost.BaseURL = v
	}
	if v := os.Getenv("RESEND_API_KEY"); v != "" {
		cfg.Transport.Resend.APIKey = v
	}
	if v := os.Getenv("SQS_QUEUE_URL"); v != "" {
		cfg.Tracking.SQSQueueURL = v
	}
	if v := os.Getenv("ARCHIVE_S3_BUCKET"); v != "" {
		cfg.Archive.S3Bucket = v
		if cfg.Archive.Type == "none" {
			cfg.Archive.Type = "s3"
		}
	}
	if v := os.Getenv("ARCHIVE_DYNAMODB_TABLE"); v != "" {
		cfg.Archive.DynamoTable = v
		if cfg.Archive.Type == "none" {
			cfg.Archive.Type = "dynamodb"
		}
	}
	if v := os.Getenv("DISPATCH_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Dispatch.Concurrency = n
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}

	return cfg, nil
}
