package config

import "time"

// RocketChatConfig holds connection settings for the Rocket.Chat REST API.
type RocketChatConfig struct {
	BaseURL      string        `env:"ROCKETCHAT_BASE_URL" yaml:"base_url" required:"true"`
	UserPassword string        `env:"ROCKETCHAT_USER_PASSWORD" yaml:"user_password" required:"true"`
	BotUsername  string        `env:"ROCKETCHAT_BOT_USERNAME" yaml:"bot_username" default:"rocket.cat"`
	Timeout      time.Duration `env:"ROCKETCHAT_TIMEOUT" yaml:"timeout" default:"10s"`
}
