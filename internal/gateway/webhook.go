package gateway

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
)

// maxWebhookBody caps inbound webhook payload size.
const maxWebhookBody = 1 << 20

// WebhookHandler processes a webhook payload for one source.
type WebhookHandler interface {
	HandleWebhook(ctx context.Context, source string, body []byte, headers http.Header) error
}

// WebhookDispatcher routes incoming webhooks to registered handlers.
// Source-specific authentication (e.g. Telegram's secret-token header)
// is the handler's responsibility.
type WebhookDispatcher struct {
	mu       sync.RWMutex
	handlers map[string]WebhookHandler
	logger   *slog.Logger
}

// NewWebhookDispatcher creates a ready-to-use dispatcher.
func NewWebhookDispatcher(logger *slog.Logger) *WebhookDispatcher {
	return &WebhookDispatcher{
		handlers: make(map[string]WebhookHandler),
		logger:   logger,
	}
}

// Register adds a handler for the given source.
func (d *WebhookDispatcher) Register(source string, h WebhookHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[source] = h
}

// ServeHTTP extracts the source from the chi URL param and dispatches to
// the registered handler.
func (d *WebhookDispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	source := chi.URLParam(r, "source")
	if source == "" {
		http.Error(w, "missing source", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	d.mu.RLock()
	handler, ok := d.handlers[source]
	d.mu.RUnlock()

	if !ok {
		d.logger.Warn("webhook received for unregistered source", "source", source)
		http.Error(w, "unknown source", http.StatusNotFound)
		return
	}

	if err := handler.HandleWebhook(r.Context(), source, body, r.Header); err != nil {
		d.logger.Error("webhook handler rejected payload", "source", source, "error", err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"ok":true}`))
}
