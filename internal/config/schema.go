// Package config handles YAML configuration loading, environment variable
// expansion, defaults, and validation for curator.
package config

import (
	"github.com/curatorbot/curator/internal/memory"
	"github.com/curatorbot/curator/internal/prompt"
)

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	Log         LogConfig         `yaml:"log"`
	Telegram    TelegramConfig    `yaml:"telegram"`
	Provider    ProviderConfig    `yaml:"provider"`
	History     HistoryConfig     `yaml:"history"`
	Storage     StorageConfig     `yaml:"storage"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Gateway     GatewayConfig     `yaml:"gateway"`
}

// LogConfig controls process logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
}

// TelegramConfig configures the Telegram channel.
type TelegramConfig struct {
	Token          string   `yaml:"token"`
	Mode           string   `yaml:"mode"` // "polling" or "webhook"
	PollingTimeout int      `yaml:"polling_timeout"`
	WebhookURL     string   `yaml:"webhook_url"`
	WebhookSecret  string   `yaml:"webhook_secret"`
	AllowUsers     []string `yaml:"allow_users"`
	APIURL         string   `yaml:"api_url"`
}

// ProviderConfig configures the OpenAI-compatible completion provider.
type ProviderConfig struct {
	BaseURL   string   `yaml:"base_url"`
	APIKey    string   `yaml:"api_key"`
	Model     string   `yaml:"model"`
	MaxTokens int      `yaml:"max_tokens"`
	Timeout   Duration `yaml:"timeout"`
}

// HistoryConfig configures the conversation memory store and prompt window.
type HistoryConfig struct {
	// MaxTurns bounds each user's retained history.
	MaxTurns int `yaml:"max_turns"`
	// Window is the number of recent turns sent to the provider.
	Window int `yaml:"window"`
	// SystemPrompt is the persona preamble prepended to every prompt.
	SystemPrompt string `yaml:"system_prompt"`
	// RetainFailed keeps the user turn in history when the provider call
	// fails; when false a failed call leaves no trace.
	RetainFailed bool `yaml:"retain_failed"`
}

// StorageConfig selects and configures the durable backend.
type StorageConfig struct {
	// Backend is "s3" or "sqlite".
	Backend string `yaml:"backend"`
	// Key names the single document holding the conversation mapping.
	Key    string       `yaml:"key"`
	S3     S3Config     `yaml:"s3"`
	SQLite SQLiteConfig `yaml:"sqlite"`
}

// S3Config configures the S3 blob backend.
type S3Config struct {
	Bucket string `yaml:"bucket"`
	Region string `yaml:"region"`
	// Endpoint overrides the AWS endpoint for S3-compatible stores
	// (MinIO, R2). Empty means AWS.
	Endpoint string `yaml:"endpoint"`
}

// SQLiteConfig configures the SQLite blob backend.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// PersistenceConfig tunes the write-behind pipeline.
type PersistenceConfig struct {
	QueueSize          int      `yaml:"queue_size"`
	SaveTimeout        Duration `yaml:"save_timeout"`
	ShutdownGrace      Duration `yaml:"shutdown_grace"`
	CheckpointInterval Duration `yaml:"checkpoint_interval"`
}

// GatewayConfig configures the HTTP gateway.
type GatewayConfig struct {
	Listen string `yaml:"listen"`
}

// defaults applies default values to unset fields.
func (c *Config) defaults() {
	if c.Version == "" {
		c.Version = "1"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Telegram.Mode == "" {
		c.Telegram.Mode = "polling"
	}
	if c.Telegram.PollingTimeout == 0 {
		c.Telegram.PollingTimeout = 30
	}
	if c.Telegram.APIURL == "" {
		c.Telegram.APIURL = "https://api.telegram.org"
	}
	if c.Provider.BaseURL == "" {
		c.Provider.BaseURL = "https://api.groq.com/openai/v1"
	}
	if c.Provider.Timeout == 0 {
		c.Provider.Timeout = Duration(30e9)
	}
	if c.History.MaxTurns == 0 {
		c.History.MaxTurns = memory.DefaultMaxTurns
	}
	if c.History.Window == 0 {
		c.History.Window = prompt.DefaultWindow
	}
	if c.History.SystemPrompt == "" {
		c.History.SystemPrompt = "You are a personal AI curator. Help the user with tasks, motivation, plans, business, emotional support, and fitness."
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "sqlite"
	}
	if c.Storage.Key == "" {
		c.Storage.Key = "conversations.json"
	}
	if c.Persistence.QueueSize == 0 {
		c.Persistence.QueueSize = 64
	}
	if c.Persistence.SaveTimeout == 0 {
		c.Persistence.SaveTimeout = Duration(30e9)
	}
	if c.Persistence.ShutdownGrace == 0 {
		c.Persistence.ShutdownGrace = Duration(5e9)
	}
	if c.Gateway.Listen == "" {
		c.Gateway.Listen = ":8080"
	}
}
