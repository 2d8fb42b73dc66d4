package config

import "time"

// BridgeConfig holds relay behaviour settings.
type BridgeConfig struct {
	// InactivityTimeout is the user-silence period after which an open
	// livechat room is closed automatically.
	InactivityTimeout time.Duration `env:"INACTIVITY_TIMEOUT" yaml:"inactivity_timeout" default:"5m"`
}
