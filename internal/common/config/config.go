// Package config provides configuration management for the task
// orchestration server.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration sections.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	StuckDetector StuckDetectorConfig `mapstructure:"stuckDetector"`
	Bus          BusConfig          `mapstructure:"bus"`
	Conversation ConversationConfig `mapstructure:"conversation"`
}

// ServerConfig holds HTTP/WebSocket server configuration.
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"readTimeout"`  // in seconds
	WriteTimeout int    `mapstructure:"writeTimeout"` // in seconds
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"outputPath"`
}

// StuckDetectorConfig holds the Stuck Detector's tunable thresholds
// (spec §4.4: "all thresholds are configuration, not hardcoded").
type StuckDetectorConfig struct {
	WindowSize          int     `mapstructure:"windowSize"`
	EvaluateEvery       int     `mapstructure:"evaluateEvery"`
	RepeatingN          int     `mapstructure:"repeatingN"`
	RepeatingMinCount   int     `mapstructure:"repeatingMinCount"`
	SimilarityThreshold float64 `mapstructure:"similarityThreshold"`
	StepTimeoutSeconds  int     `mapstructure:"stepTimeoutSeconds"`
	NoProgressSeconds   int     `mapstructure:"noProgressSeconds"`
	CooldownSeconds     int     `mapstructure:"cooldownSeconds"`
}

// BusConfig holds the Event Bus's ring buffer and replay parameters
// (spec §4.2).
type BusConfig struct {
	RingCapacity       int `mapstructure:"ringCapacity"`
	ReplayWindow       int `mapstructure:"replayWindow"`
	OutboundQueueDepth int `mapstructure:"outboundQueueDepth"`
}

// ConversationConfig holds the Conversation Manager's LLM wiring.
type ConversationConfig struct {
	AnthropicAPIKey   string  `mapstructure:"anthropicApiKey"`
	Model             string  `mapstructure:"model"`
	MaxTokens         int64   `mapstructure:"maxTokens"`
	Temperature       float64 `mapstructure:"temperature"`
	HelpWaitTimeoutS  int     `mapstructure:"helpWaitTimeoutSeconds"`
	DefaultCDPURL     string  `mapstructure:"defaultCdpUrl"`
}

// ReadTimeoutDuration returns the read timeout as a time.Duration.
func (s *ServerConfig) ReadTimeoutDuration() time.Duration {
	return time.Duration(s.ReadTimeout) * time.Second
}

// WriteTimeoutDuration returns the write timeout as a time.Duration.
func (s *ServerConfig) WriteTimeoutDuration() time.Duration {
	return time.Duration(s.WriteTimeout) * time.Second
}

// StepTimeout returns the configured step timeout as a time.Duration.
func (s *StuckDetectorConfig) StepTimeout() time.Duration {
	return time.Duration(s.StepTimeoutSeconds) * time.Second
}

// NoProgressWindow returns the configured no-progress window as a
// time.Duration.
func (s *StuckDetectorConfig) NoProgressWindow() time.Duration {
	return time.Duration(s.NoProgressSeconds) * time.Second
}

// Cooldown returns the configured cooldown as a time.Duration.
func (s *StuckDetectorConfig) Cooldown() time.Duration {
	return time.Duration(s.CooldownSeconds) * time.Second
}

// HelpWaitTimeout returns the configured help-wait timeout as a
// time.Duration.
func (c *ConversationConfig) HelpWaitTimeout() time.Duration {
	return time.Duration(c.HelpWaitTimeoutS) * time.Second
}

// detectDefaultLogFormat returns "json" in production-like environments
// and "text" for terminal/development use.
func detectDefaultLogFormat() string {
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return "json"
	}
	if env := os.Getenv("KANDEV_ENV"); env == "production" || env == "prod" {
		return "json"
	}
	return "text"
}

// setDefaults configures default values for all configuration options.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 30)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", detectDefaultLogFormat())
	v.SetDefault("logging.outputPath", "stdout")

	v.SetDefault("stuckDetector.windowSize", 10)
	v.SetDefault("stuckDetector.evaluateEvery", 3)
	v.SetDefault("stuckDetector.repeatingN", 3)
	v.SetDefault("stuckDetector.repeatingMinCount", 3)
	v.SetDefault("stuckDetector.similarityThreshold", 0.7)
	v.SetDefault("stuckDetector.stepTimeoutSeconds", 120)
	v.SetDefault("stuckDetector.noProgressSeconds", 300)
	v.SetDefault("stuckDetector.cooldownSeconds", 60)

	v.SetDefault("bus.ringCapacity", 1000)
	v.SetDefault("bus.replayWindow", 50)
	v.SetDefault("bus.outboundQueueDepth", 256)

	v.SetDefault("conversation.anthropicApiKey", "")
	v.SetDefault("conversation.model", "")
	v.SetDefault("conversation.maxTokens", 1024)
	v.SetDefault("conversation.temperature", 0.7)
	v.SetDefault("conversation.helpWaitTimeoutSeconds", 300)
	v.SetDefault("conversation.defaultCdpUrl", "")
}

// Load reads configuration from environment variables, config file, and
// defaults. Environment variables use the prefix KANDEV_.
func Load() (*Config, error) {
	return LoadWithPath("")
}

// LoadWithPath reads configuration from the specified path or default
// locations.
func LoadWithPath(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("KANDEV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicit bindings for credentials that live outside the KANDEV_
	// prefix convention (spec §6: "Reads LLM credentials ... from
	// environment variables").
	_ = v.BindEnv("conversation.anthropicApiKey", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("conversation.defaultCdpUrl", "KANDEV_DEFAULT_CDP_URL")
	_ = v.BindEnv("logging.level", "KANDEV_LOG_LEVEL")

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/kandev/")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// validate checks configuration invariants. Missing LLM credentials are
// not a validation error: absence degrades the Conversation Manager to
// its local clarifier rather than failing startup (spec §6).
func validate(cfg *Config) error {
	var errs []string

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, "logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(cfg.Logging.Format)] {
		errs = append(errs, "logging.format must be one of: json, text")
	}

	if cfg.StuckDetector.WindowSize <= 0 {
		errs = append(errs, "stuckDetector.windowSize must be positive")
	}
	if cfg.StuckDetector.EvaluateEvery <= 0 {
		errs = append(errs, "stuckDetector.evaluateEvery must be positive")
	}
	if cfg.Bus.RingCapacity <= 0 {
		errs = append(errs, "bus.ringCapacity must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}

	return nil
}
