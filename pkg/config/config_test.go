package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Name    string        `env:"TEST_NAME" yaml:"name" default:"bridge"`
	Port    int           `env:"TEST_PORT" yaml:"port" default:"4000"`
	Timeout time.Duration `env:"TEST_TIMEOUT" yaml:"timeout" default:"5m"`
	Debug   bool          `env:"TEST_DEBUG" yaml:"debug" default:"false"`
	Token   string        `env:"TEST_TOKEN" yaml:"token" required:"true"`
	Nested  nestedConfig  `yaml:"nested,inline"`
}

type nestedConfig struct {
	Hosts []string `env:"TEST_HOSTS" yaml:"hosts" default:"a.example.com,b.example.com"`
}

func TestGetConfigFromEnvVars_Defaults(t *testing.T) {
	t.Setenv("TEST_TOKEN", "secret")

	var cfg testConfig
	require.NoError(t, GetConfigFromEnvVars(&cfg))

	assert.Equal(t, "bridge", cfg.Name)
	assert.Equal(t, 4000, cfg.Port)
	assert.Equal(t, 5*time.Minute, cfg.Timeout)
	assert.False(t, cfg.Debug)
	assert.Equal(t, []string{"a.example.com", "b.example.com"}, cfg.Nested.Hosts)
}

func TestGetConfigFromEnvVars_EnvOverridesDefault(t *testing.T) {
	t.Setenv("TEST_TOKEN", "secret")
	t.Setenv("TEST_PORT", "9999")
	t.Setenv("TEST_TIMEOUT", "30s")
	t.Setenv("TEST_HOSTS", "x.example.com , y.example.com")

	var cfg testConfig
	require.NoError(t, GetConfigFromEnvVars(&cfg))

	assert.Equal(t, 9999, cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, []string{"x.example.com", "y.example.com"}, cfg.Nested.Hosts)
}

func TestGetConfigFromEnvVars_MissingRequired(t *testing.T) {
	var cfg testConfig
	err := GetConfigFromEnvVars(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TEST_TOKEN")
	// Config must be reset on failure, not half-populated
	assert.Zero(t, cfg.Port)
}

func TestGetConfigFromEnvVars_BadValue(t *testing.T) {
	t.Setenv("TEST_TOKEN", "secret")
	t.Setenv("TEST_PORT", "not-a-number")

	var cfg testConfig
	assert.Error(t, GetConfigFromEnvVars(&cfg))
}

func TestGetConfig_FileThenEnvOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: from-file\nport: 1234\ntoken: file-token\n"), 0o600))

	t.Setenv("TEST_PORT", "5678")

	var cfg testConfig
	require.NoError(t, GetConfig(&cfg, path, false))

	assert.Equal(t, "from-file", cfg.Name)
	assert.Equal(t, 5678, cfg.Port, "env must win over file")
	assert.Equal(t, "file-token", cfg.Token)
}

func TestGetConfig_MissingFileFallback(t *testing.T) {
	t.Setenv("TEST_TOKEN", "secret")

	var cfg testConfig
	require.NoError(t, GetConfig(&cfg, "/does/not/exist.yaml", true))
	assert.Equal(t, "bridge", cfg.Name)

	assert.Error(t, GetConfig(&cfg, "/does/not/exist.yaml", false))
}

type validatedConfig struct {
	Port int `env:"TEST_VALIDATED_PORT" default:"70000"`
}

func (c validatedConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return assert.AnError
	}
	return nil
}

func TestGetConfigFromEnvVars_RunsValidator(t *testing.T) {
	var cfg validatedConfig
	err := GetConfigFromEnvVars(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}
