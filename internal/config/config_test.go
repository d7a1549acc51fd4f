// File: internal/config/config_test.go
package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	// Verify a few key defaults to ensure the mechanism works.
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "stockpilot", cfg.Logger.ServiceName)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 90*time.Second, cfg.Browser.NavigationTimeout)
	assert.Equal(t, 5*time.Second, cfg.Executor.WaitTimeout)
	assert.Equal(t, 400*time.Millisecond, cfg.Executor.NavProbeDelay)
	assert.Equal(t, "alloy", cfg.Voice.Voice)
	assert.Equal(t, "whisper-1", cfg.Voice.Transcription.Model)
	assert.Equal(t, 500*time.Millisecond, cfg.Voice.RetryShort)
	assert.Equal(t, 3*time.Second, cfg.Voice.RetryLong)
	assert.Equal(t, "gemini-2.0-flash", cfg.Inference.Model)
	assert.Equal(t, 30, cfg.Inference.RequestsPerMinute)
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NoError(t, cfg.Validate(), "a default config must be valid")

	invalidNav := *cfg
	invalidNav.Browser.NavigationTimeout = 0
	err := invalidNav.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "browser.navigation_timeout")

	invalidWait := *cfg
	invalidWait.Executor.WaitTimeout = -time.Second
	err = invalidWait.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "executor.wait_timeout")

	invalidRetry := *cfg
	invalidRetry.Voice.RetryShort = 10 * time.Second
	err = invalidRetry.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "voice.retry_short")

	invalidTemp := *cfg
	invalidTemp.Inference.Temperature = 3.5
	err = invalidTemp.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "inference.temperature")
}

// -- Viper Integration Tests --

func TestNewConfigFromViper(t *testing.T) {
	yamlConfig := []byte(`
logger:
  level: debug
  format: json
browser:
  headless: true
  post_load_wait: 1s
voice:
  voice: nova
  retry_short: 250ms
inference:
  model: gemini-2.0-pro
  temperature: 0.1
`)

	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(bytes.NewBuffer(yamlConfig)))

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)

	// Overridden values.
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "json", cfg.Logger.Format)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, time.Second, cfg.Browser.PostLoadWait)
	assert.Equal(t, "nova", cfg.Voice.Voice)
	assert.Equal(t, 250*time.Millisecond, cfg.Voice.RetryShort)
	assert.Equal(t, "gemini-2.0-pro", cfg.Inference.Model)
	assert.Equal(t, 0.1, cfg.Inference.Temperature)

	// Defaults survive where not overridden.
	assert.Equal(t, 90*time.Second, cfg.Browser.NavigationTimeout)
	assert.Equal(t, "whisper-1", cfg.Voice.Transcription.Model)
}

func TestNewConfigFromViperBindsAPIKeys(t *testing.T) {
	t.Setenv("STOCKPILOT_GEMINI_API_KEY", "gem-key")
	t.Setenv("STOCKPILOT_OPENAI_API_KEY", "oai-key")

	v := viper.New()
	SetDefaults(v)

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "gem-key", cfg.Inference.APIKey)
	assert.Equal(t, "oai-key", cfg.Voice.Transcription.APIKey)
}

func TestNewConfigFromViperRejectsInvalid(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("executor.wait_timeout", "0s")

	_, err := NewConfigFromViper(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}
