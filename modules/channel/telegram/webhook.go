package telegram

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
)

// WebhookReceiver processes incoming Telegram webhook payloads.
// It implements gateway.WebhookHandler.
type WebhookReceiver struct {
	channel *Channel
	secret  string
}

// HandleWebhook validates the Telegram secret-token header, parses the
// update, and dispatches it. Telegram re-delivers on non-2xx responses,
// so unusable updates return nil rather than an error.
func (w *WebhookReceiver) HandleWebhook(_ context.Context, _ string, body []byte, headers http.Header) error {
	if w.secret != "" {
		token := headers.Get("X-Telegram-Bot-Api-Secret-Token")
		if subtle.ConstantTimeCompare([]byte(w.secret), []byte(token)) != 1 {
			return errors.New("telegram: invalid webhook secret token")
		}
	}

	var update Update
	if err := json.Unmarshal(body, &update); err != nil {
		w.channel.logger.Warn("invalid webhook update JSON", "error", err)
		return nil
	}

	w.channel.processUpdate(&update)
	return nil
}
