// Package config holds the bridge application configuration.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/lewisedginton/livechat-bridge/pkg/logger"
)

// AppConfig holds all application configuration
type AppConfig struct {
	// Service configuration
	ServiceName string `env:"SERVICE_NAME" yaml:"service_name" default:"livechat-bridge"`
	Version     string `env:"VERSION" yaml:"version" default:"dev"`
	Environment string `env:"ENVIRONMENT" yaml:"environment" default:"development"`

	// Server configuration
	Port           int           `env:"PORT" yaml:"port" default:"4000"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" yaml:"request_timeout" default:"30s"`
	IdleTimeout    time.Duration `env:"IDLE_TIMEOUT" yaml:"idle_timeout" default:"60s"`

	// Rocket.Chat configuration
	RocketChat RocketChatConfig `yaml:"rocketchat,inline"`

	// Bridge behaviour
	Bridge BridgeConfig `yaml:"bridge,inline"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging,inline"`

	// Health check configuration
	Health HealthConfig `yaml:"health,inline"`

	// Monitoring configuration
	Monitoring MonitoringConfig `yaml:"monitoring,inline"`
}

// Validate validates the configuration and returns an error if invalid
func (c *AppConfig) Validate() error {
	var result error

	// Validate log level
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		result = multierror.Append(result, fmt.Errorf("log_level must be one of [debug, info, warn, error], got %q", c.Logging.Level))
	}

	// Validate log format
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		result = multierror.Append(result, fmt.Errorf("log_format must be either 'json' or 'text', got %q", c.Logging.Format))
	}

	// Validate port range
	if c.Port < 1 || c.Port > 65535 {
		result = multierror.Append(result, fmt.Errorf("port must be between 1 and 65535, got %d", c.Port))
	}

	// Validate timeout values
	if c.RequestTimeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("request_timeout must be greater than 0"))
	}

	if !strings.HasPrefix(c.RocketChat.BaseURL, "http://") && !strings.HasPrefix(c.RocketChat.BaseURL, "https://") {
		result = multierror.Append(result, fmt.Errorf("rocketchat_base_url must start with http:// or https://, got %q", c.RocketChat.BaseURL))
	}

	if c.RocketChat.Timeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("rocketchat_timeout must be greater than 0"))
	}

	if c.RocketChat.BotUsername == "" {
		result = multierror.Append(result, fmt.Errorf("rocketchat_bot_username must not be empty"))
	}

	if c.Bridge.InactivityTimeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("inactivity_timeout must be greater than 0"))
	}

	return result
}

// GetLogLevel returns the parsed logger level
func (c *AppConfig) GetLogLevel() logger.Level {
	return logger.ParseLevel(strings.ToLower(c.Logging.Level))
}

// IsProduction returns true if running in production environment
func (c *AppConfig) IsProduction() bool {
	return strings.ToLower(c.Environment) == "production"
}

// LogConfig logs the current configuration (without sensitive data)
func (c *AppConfig) LogConfig(log logger.Logger) {
	log.Info("Application configuration loaded",
		logger.StringField("service_name", c.ServiceName),
		logger.StringField("version", c.Version),
		logger.StringField("environment", c.Environment),
		logger.IntField("port", c.Port),
		logger.StringField("rocketchat_base_url", c.RocketChat.BaseURL),
		logger.StringField("bot_username", c.RocketChat.BotUsername),
		logger.DurationField("inactivity_timeout", c.Bridge.InactivityTimeout),
		logger.StringField("log_level", c.Logging.Level),
		logger.StringField("log_format", c.Logging.Format),
		logger.BoolField("metrics_enabled", c.Monitoring.MetricsEnabled),
		logger.BoolField("health_enabled", c.Health.Enabled),
	)
}
