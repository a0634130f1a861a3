// Package config loads application configuration from defaults, an optional
// YAML file and ONCALL_ environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment overrides. Nested keys are joined
// with a double underscore: ONCALL_DATABASE__URL sets database.url.
const EnvPrefix = "ONCALL_"

// Config is the application configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Database      DatabaseConfig      `koanf:"database"`
	Log           LogConfig           `koanf:"log"`
	JWT           JWTConfig           `koanf:"jwt"`
	CORS          CORSConfig          `koanf:"cors"`
	Escalation    EscalationConfig    `koanf:"escalation"`
	Lease         LeaseConfig         `koanf:"lease"`
	Notifications NotificationsConfig `koanf:"notifications"`
}

// ServerConfig configures the HTTP listeners.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              string        `koanf:"port" validate:"required"`
	MetricsPort       string        `koanf:"metrics_port" validate:"required"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
}

// DatabaseConfig configures the PostgreSQL pool.
type DatabaseConfig struct {
	URL             string        `koanf:"url" validate:"required"`
	MaxOpenConns    int           `koanf:"max_open_conns" validate:"min=1"`
	MaxIdleConns    int           `koanf:"max_idle_conns" validate:"min=0"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout" validate:"gt=0"`
	ConnectAttempts int           `koanf:"connect_attempts" validate:"min=1"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json text"`
}

// JWTConfig configures bearer token validation.
type JWTConfig struct {
	SecretKey string `koanf:"secret_key" validate:"required"`
	Issuer    string `koanf:"issuer"`
}

// CORSConfig configures allowed browser origins.
type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// EscalationConfig configures the escalation worker.
type EscalationConfig struct {
	Enabled      bool          `koanf:"enabled"`
	PollInterval time.Duration `koanf:"poll_interval" validate:"gt=0"`
	TickTimeout  time.Duration `koanf:"tick_timeout" validate:"gt=0"`
	BatchSize    int           `koanf:"batch_size" validate:"min=1,max=1000"`
	Concurrency  int           `koanf:"concurrency" validate:"min=1,max=100"`
	LeaseTTL     time.Duration `koanf:"lease_ttl" validate:"gt=0"`
	BaseURL      string        `koanf:"base_url"`
}

// LeaseConfig configures the cross-process incident lease.
type LeaseConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Address   string `koanf:"address" validate:"required_if=Enabled true"`
	Password  string `koanf:"password"`
	DB        int    `koanf:"db" validate:"min=0"`
	KeyPrefix string `koanf:"key_prefix"`
}

// NotificationsConfig configures delivery channels.
type NotificationsConfig struct {
	AttemptTimeout time.Duration `koanf:"attempt_timeout" validate:"gt=0"`
	Concurrency    int           `koanf:"concurrency" validate:"min=1"`
	Breaker        BreakerConfig `koanf:"breaker"`
	Push           PushConfig    `koanf:"push"`
	Slack          SlackConfig   `koanf:"slack"`
	Webhook        WebhookConfig `koanf:"webhook"`
}

// BreakerConfig configures the per-channel circuit breaker.
type BreakerConfig struct {
	Enabled          bool          `koanf:"enabled"`
	FailureThreshold uint32        `koanf:"failure_threshold" validate:"min=1"`
	OpenTimeout      time.Duration `koanf:"open_timeout" validate:"gt=0"`
	Interval         time.Duration `koanf:"interval"`
}

// PushConfig configures the push sender.
type PushConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Endpoint  string `koanf:"endpoint" validate:"omitempty,url"`
	ServerKey string `koanf:"server_key" validate:"required_if=Enabled true"`
	RateLimit int    `koanf:"rate_limit" validate:"min=0"`
}

// SlackConfig configures the chat sender.
type SlackConfig struct {
	Enabled  bool   `koanf:"enabled"`
	BotToken string `koanf:"bot_token" validate:"required_if=Enabled true"`
	APIURL   string `koanf:"api_url" validate:"omitempty,url"`
}

// WebhookConfig configures the webhook sender.
type WebhookConfig struct {
	Enabled       bool   `koanf:"enabled"`
	SigningSecret string `koanf:"signing_secret"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              "8080",
			MetricsPort:       "9090",
			ReadTimeout:       15 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
			ConnectTimeout:  30 * time.Second,
			ConnectAttempts: 5,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Escalation: EscalationConfig{
			Enabled:      true,
			PollInterval: 30 * time.Second,
			TickTimeout:  25 * time.Second,
			BatchSize:    100,
			Concurrency:  10,
			LeaseTTL:     time.Minute,
		},
		Lease: LeaseConfig{
			KeyPrefix: "oncall:lease:",
		},
		Notifications: NotificationsConfig{
			AttemptTimeout: 10 * time.Second,
			Concurrency:    8,
			Breaker: BreakerConfig{
				Enabled:          true,
				FailureThreshold: 5,
				OpenTimeout:      30 * time.Second,
				Interval:         time.Minute,
			},
			Push: PushConfig{
				RateLimit: 50,
			},
			Webhook: WebhookConfig{
				Enabled: true,
			},
		},
	}
}

// Load reads configuration. path may be empty to skip the YAML file.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps ONCALL_NOTIFICATIONS__SLACK__BOT_TOKEN to notifications.slack.bot_token.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Validate checks the configuration with struct tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
