// Package app wires the service together and owns the run loop.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/curatorbot/curator/internal/config"
	"github.com/curatorbot/curator/internal/gateway"
	"github.com/curatorbot/curator/internal/memory"
	"github.com/curatorbot/curator/internal/observability"
	"github.com/curatorbot/curator/internal/persist"
	"github.com/curatorbot/curator/internal/relay"
	"github.com/curatorbot/curator/modules/channel/telegram"
	"github.com/curatorbot/curator/modules/provider/openaicompat"
)

// RunParams configures the main application loop.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, ResolveConfigPath is called automatically.
	ConfigPath string

	// Version is injected at build time via ldflags.
	Version string
}

// Run loads configuration, wires every component explicitly, starts the
// gateway and channel, and blocks until a shutdown signal is received.
func Run(params RunParams) error {
	cfgPath := params.ConfigPath
	if cfgPath == "" {
		resolved, err := ResolveConfigPath()
		if err != nil {
			return err
		}
		cfgPath = resolved
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	logger.Info("starting curator", "version", params.Version, "config", cfgPath)

	metrics := observability.NewMetrics("curator")

	backend, closeBackend, err := buildBackend(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer closeBackend()

	// Crash-recovery load happens once, before any traffic is accepted.
	store := memory.NewInMemoryStore(cfg.History.MaxTurns)
	store.LoadFrom(persist.LoadSnapshot(context.Background(), backend, cfg.Storage.Key, logger))
	metrics.ActiveUsers.Set(float64(store.Users()))
	logger.Info("conversation store loaded", "users", store.Users())

	pipeline := persist.NewPipeline(persist.PipelineConfig{
		Backend:       backend,
		Key:           cfg.Storage.Key,
		QueueSize:     cfg.Persistence.QueueSize,
		SaveTimeout:   cfg.Persistence.SaveTimeout.Std(),
		ShutdownGrace: cfg.Persistence.ShutdownGrace.Std(),
		Logger:        logger,
		Metrics:       metrics,
	})
	pipeline.Start()

	checkpoint, err := persist.StartCheckpoint(cfg.Persistence.CheckpointInterval.Std(), store, pipeline, logger)
	if err != nil {
		return err
	}

	provider, err := openaicompat.New(openaicompat.Config{
		BaseURL:   cfg.Provider.BaseURL,
		APIKey:    cfg.Provider.APIKey,
		Model:     cfg.Provider.Model,
		MaxTokens: cfg.Provider.MaxTokens,
		Timeout:   cfg.Provider.Timeout.Std(),
	})
	if err != nil {
		return err
	}

	rly, err := relay.New(relay.Config{
		Store:        store,
		Completer:    provider,
		Pipeline:     pipeline,
		SystemPrompt: cfg.History.SystemPrompt,
		Window:       cfg.History.Window,
		Timeout:      cfg.Provider.Timeout.Std(),
		RetainFailed: cfg.History.RetainFailed,
		Logger:       logger,
		Metrics:      metrics,
	})
	if err != nil {
		return err
	}

	channel, err := telegram.New(telegram.Config{
		Token:          cfg.Telegram.Token,
		Mode:           cfg.Telegram.Mode,
		PollingTimeout: cfg.Telegram.PollingTimeout,
		WebhookURL:     cfg.Telegram.WebhookURL,
		WebhookSecret:  cfg.Telegram.WebhookSecret,
		AllowUsers:     cfg.Telegram.AllowUsers,
		APIURL:         cfg.Telegram.APIURL,
	}, rly, logger)
	if err != nil {
		return err
	}

	gw := gateway.New(cfg.Gateway.Listen, store, logger)
	gw.Dispatcher().Register("telegram", channel.Receiver())
	if err := gw.Start(); err != nil {
		return err
	}

	if err := channel.Start(context.Background()); err != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Persistence.ShutdownGrace.Std())
		defer cancel()
		_ = gw.Shutdown(shutdownCtx)
		pipeline.Stop()
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	sig := <-sigCh
	logger.Info("shutdown signal received", "signal", sig.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Persistence.ShutdownGrace.Std())
	defer cancel()

	// Stop intake first, then flush the final state.
	if err := channel.Stop(shutdownCtx); err != nil {
		logger.Warn("channel stop timed out", "error", err)
	}
	if err := gw.Shutdown(shutdownCtx); err != nil {
		logger.Warn("gateway shutdown failed", "error", err)
	}
	checkpoint.Stop()
	pipeline.Enqueue(store.Snapshot())
	pipeline.Stop()

	logger.Info("shutdown complete")
	return nil
}

// ResolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/curator/curator.yaml →
// ~/.config/curator/curator.yaml → ./curator.yaml
func ResolveConfigPath() (string, error) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "curator", "curator.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "curator", "curator.yaml"))
	}

	candidates = append(candidates, "curator.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no configuration file found (searched: %v)", candidates)
}
