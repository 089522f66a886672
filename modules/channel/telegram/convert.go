package telegram

import (
	"fmt"
	"strconv"
)

// InboundTurn is the (user, chat, text) triple extracted from an update.
type InboundTurn struct {
	// UserID keys the sender's conversation history.
	UserID string
	// ChatID is where the reply goes. Equal to UserID in direct messages.
	ChatID int64
	Text   string
}

// convertInbound extracts an InboundTurn from a Telegram update.
// Updates without a text message (media, service messages, bot echoes)
// are rejected with a reason for the debug log.
func convertInbound(update *Update) (InboundTurn, error) {
	msg := update.Message
	if msg == nil {
		msg = update.EditedMessage
	}
	if msg == nil {
		return InboundTurn{}, fmt.Errorf("update %d contains no message", update.UpdateID)
	}
	if msg.From == nil || msg.From.IsBot {
		return InboundTurn{}, fmt.Errorf("update %d has no human sender", update.UpdateID)
	}
	if msg.Text == "" {
		return InboundTurn{}, fmt.Errorf("update %d carries no text", update.UpdateID)
	}

	return InboundTurn{
		UserID: strconv.FormatInt(msg.From.ID, 10),
		ChatID: msg.Chat.ID,
		Text:   msg.Text,
	}, nil
}
