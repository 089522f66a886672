// Package telegram implements the Telegram Bot API channel: a long poller
// or webhook receiver on the inbound side and sendMessage on the outbound.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Handler processes one inbound turn and returns the reply text.
// The relay implements this; it never returns an error — failures are
// already mapped to a user-facing message.
type Handler interface {
	HandleTurn(ctx context.Context, userID, text string) string
}

// Config holds the Telegram channel configuration.
type Config struct {
	Token          string
	Mode           string // "polling" or "webhook"
	PollingTimeout int
	WebhookURL     string
	WebhookSecret  string
	AllowUsers     []string
	APIURL         string
}

// defaults applies default values to unset fields.
func (c *Config) defaults() {
	if c.Mode == "" {
		c.Mode = "polling"
	}
	if c.PollingTimeout == 0 {
		c.PollingTimeout = 30
	}
	if c.APIURL == "" {
		c.APIURL = "https://api.telegram.org"
	}
}

// validate checks required fields.
func (c *Config) validate() error {
	if c.Token == "" {
		return errors.New("telegram: token is required")
	}
	switch c.Mode {
	case "polling", "webhook":
	default:
		return fmt.Errorf("telegram: invalid mode %q (must be \"polling\" or \"webhook\")", c.Mode)
	}
	if c.Mode == "webhook" && c.WebhookURL == "" {
		return errors.New("telegram: webhook_url is required when mode is \"webhook\"")
	}
	return nil
}

// Channel connects Telegram to the relay.
type Channel struct {
	config    Config
	client    *Client
	logger    *slog.Logger
	allowList *AllowList
	handler   Handler
	receiver  *WebhookReceiver
	poller    *Poller

	// inFlight tracks turns being processed so Stop can wait for them.
	inFlight sync.WaitGroup
}

// New creates a Channel. Call Start to begin receiving updates.
func New(cfg Config, handler Handler, logger *slog.Logger) (*Channel, error) {
	cfg.defaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if handler == nil {
		return nil, errors.New("telegram: handler is required")
	}

	ch := &Channel{
		config:    cfg,
		client:    NewClient(cfg.Token, cfg.APIURL),
		logger:    logger,
		allowList: NewAllowList(cfg.AllowUsers),
		handler:   handler,
	}
	ch.receiver = &WebhookReceiver{channel: ch, secret: cfg.WebhookSecret}
	ch.poller = NewPoller(ch)
	return ch, nil
}

// Receiver returns the webhook receiver, for mounting on the gateway.
func (c *Channel) Receiver() *WebhookReceiver {
	return c.receiver
}

// Start validates the bot token, then begins polling or registers the
// webhook with Telegram depending on the configured mode.
func (c *Channel) Start(ctx context.Context) error {
	user, err := c.client.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("telegram: getMe failed (check token): %w", err)
	}
	c.logger.Info("telegram bot authenticated", "id", user.ID, "username", user.Username)

	switch c.config.Mode {
	case "polling":
		c.poller.Start()
		c.logger.Info("telegram polling started", "timeout", c.config.PollingTimeout)

	case "webhook":
		if c.config.WebhookSecret == "" {
			c.logger.Warn("telegram webhook running without secret_token — " +
				"consider setting webhook_secret for production deployments")
		}
		if err := c.client.SetWebhook(ctx, SetWebhookRequest{
			URL:            c.config.WebhookURL,
			SecretToken:    c.config.WebhookSecret,
			AllowedUpdates: []string{"message", "edited_message"},
		}); err != nil {
			return fmt.Errorf("telegram: setWebhook failed: %w", err)
		}
		c.logger.Info("telegram webhook configured", "url", c.config.WebhookURL)
	}

	return nil
}

// Stop shuts the channel down: stops the poller or deletes the webhook,
// then waits for in-flight turns to finish or the context to expire.
func (c *Channel) Stop(ctx context.Context) error {
	c.logger.Info("telegram channel stopping")

	switch c.config.Mode {
	case "polling":
		c.poller.Stop()
	case "webhook":
		if err := c.client.DeleteWebhook(ctx); err != nil {
			c.logger.Warn("telegram: failed to delete webhook on shutdown", "error", err)
		}
	}

	done := make(chan struct{})
	go func() {
		c.inFlight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// processUpdate converts, filters, and dispatches one update. Each turn
// runs in its own goroutine so one slow completion does not serialize all
// users behind it.
func (c *Channel) processUpdate(update *Update) {
	turn, err := convertInbound(update)
	if err != nil {
		c.logger.Debug("skipping update", "update_id", update.UpdateID, "reason", err)
		return
	}

	if !c.allowList.IsAllowed(turn.UserID) {
		c.logger.Debug("update denied by allow list",
			"update_id", update.UpdateID,
			"sender", turn.UserID,
		)
		return
	}

	c.inFlight.Add(1)
	go func() {
		defer c.inFlight.Done()
		// Detached from the inbound request context: a webhook response
		// must not cancel the turn it acknowledged.
		ctx := context.Background()

		if err := c.client.SendChatAction(ctx, turn.ChatID, "typing"); err != nil {
			c.logger.Debug("sendChatAction failed", "chat", turn.ChatID, "error", err)
		}

		reply := c.handler.HandleTurn(ctx, turn.UserID, turn.Text)

		if err := c.client.SendMessage(ctx, turn.ChatID, reply); err != nil {
			c.logger.Error("sending reply failed",
				"chat", turn.ChatID,
				"user", turn.UserID,
				"error", err,
			)
		}
	}()
}
