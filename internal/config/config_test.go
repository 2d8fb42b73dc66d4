package config

import (
	"testing"
	"time"

	pkgconfig "github.com/lewisedginton/livechat-bridge/pkg/config"
	"github.com/lewisedginton/livechat-bridge/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() AppConfig {
	return AppConfig{
		ServiceName:    "livechat-bridge",
		Port:           4000,
		RequestTimeout: 30 * time.Second,
		RocketChat: RocketChatConfig{
			BaseURL:      "http://localhost:3000",
			UserPassword: "secret",
			BotUsername:  "rocket.cat",
			Timeout:      10 * time.Second,
		},
		Bridge:  BridgeConfig{InactivityTimeout: 5 * time.Minute},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*AppConfig)
		wantErr string
	}{
		{
			name:   "valid config",
			mutate: func(*AppConfig) {},
		},
		{
			name:    "invalid log level",
			mutate:  func(c *AppConfig) { c.Logging.Level = "verbose" },
			wantErr: "log_level",
		},
		{
			name:    "invalid log format",
			mutate:  func(c *AppConfig) { c.Logging.Format = "xml" },
			wantErr: "log_format",
		},
		{
			name:    "port out of range",
			mutate:  func(c *AppConfig) { c.Port = 0 },
			wantErr: "port",
		},
		{
			name:    "base url without scheme",
			mutate:  func(c *AppConfig) { c.RocketChat.BaseURL = "localhost:3000" },
			wantErr: "rocketchat_base_url",
		},
		{
			name:    "empty bot username",
			mutate:  func(c *AppConfig) { c.RocketChat.BotUsername = "" },
			wantErr: "rocketchat_bot_username",
		},
		{
			name:    "zero inactivity timeout",
			mutate:  func(c *AppConfig) { c.Bridge.InactivityTimeout = 0 },
			wantErr: "inactivity_timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidate_AggregatesErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Port = 0
	cfg.Logging.Level = "verbose"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port")
	assert.Contains(t, err.Error(), "log_level")
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ROCKETCHAT_BASE_URL", "http://rocketchat.local:3000")
	t.Setenv("ROCKETCHAT_USER_PASSWORD", "secret")
	t.Setenv("INACTIVITY_TIMEOUT", "90s")

	var cfg AppConfig
	require.NoError(t, pkgconfig.GetConfigFromEnvVars(&cfg))

	assert.Equal(t, 4000, cfg.Port)
	assert.Equal(t, "rocket.cat", cfg.RocketChat.BotUsername)
	assert.Equal(t, 90*time.Second, cfg.Bridge.InactivityTimeout)
	assert.Equal(t, logger.InfoLevel, cfg.GetLogLevel())
	assert.True(t, cfg.Health.Enabled)
	assert.True(t, cfg.Monitoring.MetricsEnabled)
}

func TestLoadFromEnv_MissingRequired(t *testing.T) {
	var cfg AppConfig
	err := pkgconfig.GetConfigFromEnvVars(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ROCKETCHAT_BASE_URL")
}
