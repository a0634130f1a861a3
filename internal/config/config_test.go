package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ONCALL_DATABASE__URL", "postgres://localhost/oncall")
	t.Setenv("ONCALL_JWT__SECRET_KEY", "secret")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Escalation.PollInterval)
	assert.Equal(t, 100, cfg.Escalation.BatchSize)
	assert.Equal(t, 10*time.Second, cfg.Notifications.AttemptTimeout)
	assert.True(t, cfg.Notifications.Webhook.Enabled)
	assert.False(t, cfg.Lease.Enabled)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeConfig(t, `
database:
  url: postgres://file/oncall
jwt:
  secret_key: from-file
escalation:
  poll_interval: 10s
  batch_size: 20
log:
  level: debug
`)
	t.Setenv("ONCALL_ESCALATION__BATCH_SIZE", "50")
	t.Setenv("ONCALL_NOTIFICATIONS__SLACK__ENABLED", "true")
	t.Setenv("ONCALL_NOTIFICATIONS__SLACK__BOT_TOKEN", "xoxb-test")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://file/oncall", cfg.Database.URL)
	assert.Equal(t, 10*time.Second, cfg.Escalation.PollInterval)
	assert.Equal(t, 50, cfg.Escalation.BatchSize)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Notifications.Slack.Enabled)
	assert.Equal(t, "xoxb-test", cfg.Notifications.Slack.BotToken)
	// untouched keys keep their defaults
	assert.Equal(t, 10, cfg.Escalation.Concurrency)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg := Default()
		cfg.Database.URL = "postgres://localhost/oncall"
		cfg.JWT.SecretKey = "secret"
		return cfg
	}

	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"missing database url", func(c *Config) { c.Database.URL = "" }, true},
		{"missing jwt secret", func(c *Config) { c.JWT.SecretKey = "" }, true},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }, true},
		{"zero poll interval", func(c *Config) { c.Escalation.PollInterval = 0 }, true},
		{"batch too large", func(c *Config) { c.Escalation.BatchSize = 5000 }, true},
		{"lease without address", func(c *Config) { c.Lease.Enabled = true }, true},
		{"lease with address", func(c *Config) {
			c.Lease.Enabled = true
			c.Lease.Address = "localhost:6379"
		}, false},
		{"push without key", func(c *Config) { c.Notifications.Push.Enabled = true }, true},
		{"slack without token", func(c *Config) { c.Notifications.Slack.Enabled = true }, true},
		{"bad push endpoint", func(c *Config) { c.Notifications.Push.Endpoint = "not a url" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(&cfg)

			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "database.url", envKey("ONCALL_DATABASE__URL"))
	assert.Equal(t, "notifications.slack.bot_token", envKey("ONCALL_NOTIFICATIONS__SLACK__BOT_TOKEN"))
	assert.Equal(t, "escalation.poll_interval", envKey("ONCALL_ESCALATION__POLL_INTERVAL"))
}
