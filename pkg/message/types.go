// Package message defines the conversation data contract shared between
// channels, the memory store, and completion providers.
package message

// Role identifies the author of a conversation turn.
type Role string

// Supported roles. These match the chat-completions wire format, so turns
// serialize into provider requests without translation.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one role-tagged message unit in a conversation. Turns are
// immutable once created; the store copies them on read and snapshot.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// UserTurn builds a user-authored turn.
func UserTurn(content string) Turn {
	return Turn{Role: RoleUser, Content: content}
}

// AssistantTurn builds an assistant-authored turn.
func AssistantTurn(content string) Turn {
	return Turn{Role: RoleAssistant, Content: content}
}

// SystemTurn builds a system preamble turn.
func SystemTurn(content string) Turn {
	return Turn{Role: RoleSystem, Content: content}
}

// Valid reports whether the role is one of the supported values.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}
