// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Browser   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	Executor  ExecutorConfig  `mapstructure:"executor" yaml:"executor"`
	Voice     VoiceConfig     `mapstructure:"voice" yaml:"voice"`
	Inference InferenceConfig `mapstructure:"inference" yaml:"inference"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig holds settings for the headless browser instance the agent
// drives.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	DisableCache      bool          `mapstructure:"disable_cache" yaml:"disable_cache"`
	IgnoreTLSErrors   bool          `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Debug             bool          `mapstructure:"debug" yaml:"debug"`
	Args              []string      `mapstructure:"args" yaml:"args"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	PostLoadWait      time.Duration `mapstructure:"post_load_wait" yaml:"post_load_wait"`
}

// ExecutorConfig tunes the action executor.
type ExecutorConfig struct {
	WaitTimeout   time.Duration `mapstructure:"wait_timeout" yaml:"wait_timeout"`
	NavProbeDelay time.Duration `mapstructure:"nav_probe_delay" yaml:"nav_probe_delay"`
}

// VoiceConfig holds the voice loop settings.
type VoiceConfig struct {
	Voice           string              `mapstructure:"voice" yaml:"voice"`
	SynthEndpoint   string              `mapstructure:"synth_endpoint" yaml:"synth_endpoint"`
	CaptureURL      string              `mapstructure:"capture_url" yaml:"capture_url"`
	SessionStartURL string              `mapstructure:"session_start_url" yaml:"session_start_url"`
	SessionStopURL  string              `mapstructure:"session_stop_url" yaml:"session_stop_url"`
	PlaybackCommand []string            `mapstructure:"playback_command" yaml:"playback_command"`
	PlaybackRate    int                 `mapstructure:"playback_rate" yaml:"playback_rate"`
	Transcription   TranscriptionConfig `mapstructure:"transcription" yaml:"transcription"`
	RetryShort      time.Duration       `mapstructure:"retry_short" yaml:"retry_short"`
	RetryLong       time.Duration       `mapstructure:"retry_long" yaml:"retry_long"`
}

// TranscriptionConfig configures the speech-to-text backend.
type TranscriptionConfig struct {
	APIKey string `mapstructure:"api_key" yaml:"api_key"`
	Model  string `mapstructure:"model" yaml:"model"`
}

// InferenceConfig configures the remote model that plans each turn.
type InferenceConfig struct {
	APIKey            string        `mapstructure:"api_key" yaml:"api_key"`
	Model             string        `mapstructure:"model" yaml:"model"`
	Endpoint          string        `mapstructure:"endpoint" yaml:"endpoint"`
	Timeout           time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Temperature       float64       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens         int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "stockpilot")
	v.SetDefault("logger.log_file", "stockpilot.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.disable_cache", false)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.debug", false)
	v.SetDefault("browser.navigation_timeout", "90s")
	v.SetDefault("browser.post_load_wait", "2s")

	// -- Executor --
	v.SetDefault("executor.wait_timeout", "5s")
	v.SetDefault("executor.nav_probe_delay", "400ms")

	// -- Voice --
	v.SetDefault("voice.voice", "alloy")
	v.SetDefault("voice.synth_endpoint", "http://localhost:8080/api/tts")
	v.SetDefault("voice.capture_url", "http://localhost:8080/api/voice/capture")
	v.SetDefault("voice.session_start_url", "")
	v.SetDefault("voice.session_stop_url", "")
	v.SetDefault("voice.playback_command", []string{"aplay", "-f", "S16_LE", "-r", "48000", "-c", "1", "-q", "-"})
	v.SetDefault("voice.playback_rate", 48000)
	v.SetDefault("voice.transcription.model", "whisper-1")
	v.SetDefault("voice.retry_short", "500ms")
	v.SetDefault("voice.retry_long", "3s")

	// -- Inference --
	v.SetDefault("inference.model", "gemini-2.0-flash")
	v.SetDefault("inference.timeout", "60s")
	v.SetDefault("inference.temperature", 0.4)
	v.SetDefault("inference.max_tokens", 2048)
	v.SetDefault("inference.requests_per_minute", 30)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data
	v.BindEnv("inference.api_key", "STOCKPILOT_GEMINI_API_KEY")
	v.BindEnv("voice.transcription.api_key", "STOCKPILOT_OPENAI_API_KEY")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Manually load the keys if Unmarshal didn't pick them up
	if cfg.Inference.APIKey == "" {
		cfg.Inference.APIKey = os.Getenv("STOCKPILOT_GEMINI_API_KEY")
	}
	if cfg.Voice.Transcription.APIKey == "" {
		cfg.Voice.Transcription.APIKey = os.Getenv("STOCKPILOT_OPENAI_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Browser.NavigationTimeout <= 0 {
		return fmt.Errorf("browser.navigation_timeout must be a positive duration")
	}
	if c.Executor.WaitTimeout <= 0 {
		return fmt.Errorf("executor.wait_timeout must be a positive duration")
	}
	if c.Voice.RetryShort <= 0 || c.Voice.RetryLong <= 0 {
		return fmt.Errorf("voice retry delays must be positive durations")
	}
	if c.Voice.RetryShort > c.Voice.RetryLong {
		return fmt.Errorf("voice.retry_short must not exceed voice.retry_long")
	}
	if c.Voice.PlaybackRate <= 0 {
		return fmt.Errorf("voice.playback_rate must be a positive integer")
	}
	if c.Inference.Temperature < 0 || c.Inference.Temperature > 2 {
		return fmt.Errorf("inference.temperature must be between 0.0 and 2.0")
	}
	if c.Inference.RequestsPerMinute < 0 {
		return fmt.Errorf("inference.requests_per_minute must not be negative")
	}
	return nil
}
