package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
)

// Validate checks the configuration for structural errors. Missing
// credentials are errors here so the process refuses to start rather than
// run partially configured.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q", cfg.Version))
	}

	if _, err := ParseLevel(cfg.Log.Level); err != nil {
		errs = append(errs, err)
	}

	if cfg.Telegram.Token == "" {
		errs = append(errs, errors.New("config: telegram.token is required"))
	}
	switch cfg.Telegram.Mode {
	case "polling":
		if cfg.Telegram.PollingTimeout < 0 || cfg.Telegram.PollingTimeout > 50 {
			errs = append(errs, fmt.Errorf("config: telegram.polling_timeout must be 0-50, got %d", cfg.Telegram.PollingTimeout))
		}
	case "webhook":
		if cfg.Telegram.WebhookURL == "" {
			errs = append(errs, errors.New("config: telegram.webhook_url is required when mode is \"webhook\""))
		}
	default:
		errs = append(errs, fmt.Errorf("config: telegram.mode must be \"polling\" or \"webhook\", got %q", cfg.Telegram.Mode))
	}

	if cfg.Provider.APIKey == "" {
		errs = append(errs, errors.New("config: provider.api_key is required"))
	}
	if cfg.Provider.Model == "" {
		errs = append(errs, errors.New("config: provider.model is required"))
	}
	if u, err := url.Parse(cfg.Provider.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, fmt.Errorf("config: provider.base_url must be a valid http/https URL, got %q", cfg.Provider.BaseURL))
	}

	if cfg.History.MaxTurns < 1 {
		errs = append(errs, fmt.Errorf("config: history.max_turns must be positive, got %d", cfg.History.MaxTurns))
	}
	if cfg.History.Window < 1 {
		errs = append(errs, fmt.Errorf("config: history.window must be positive, got %d", cfg.History.Window))
	}

	switch cfg.Storage.Backend {
	case "s3":
		if cfg.Storage.S3.Bucket == "" {
			errs = append(errs, errors.New("config: storage.s3.bucket is required"))
		}
	case "sqlite":
		if cfg.Storage.SQLite.Path == "" {
			errs = append(errs, errors.New("config: storage.sqlite.path is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: storage.backend must be \"s3\" or \"sqlite\", got %q", cfg.Storage.Backend))
	}

	if cfg.Persistence.QueueSize < 1 {
		errs = append(errs, fmt.Errorf("config: persistence.queue_size must be positive, got %d", cfg.Persistence.QueueSize))
	}

	return errors.Join(errs...)
}

// ParseLevel maps a config log level string to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("config: unknown log level %q", s)
	}
}
