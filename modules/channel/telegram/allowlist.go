package telegram

import "strings"

// AllowList restricts which senders may talk to the bot. An empty list
// allows everyone, matching an open personal-bot deployment; populate it
// to lock the bot down.
type AllowList struct {
	users map[string]struct{}
}

// NewAllowList builds an AllowList with O(1) lookups. Entries are trimmed
// and lowercased at construction time.
func NewAllowList(users []string) *AllowList {
	a := &AllowList{users: make(map[string]struct{}, len(users))}
	for _, u := range users {
		a.users[normalize(u)] = struct{}{}
	}
	return a
}

// IsAllowed reports whether the sender may interact with the bot.
func (a *AllowList) IsAllowed(userID string) bool {
	if a == nil || len(a.users) == 0 {
		return true
	}
	_, ok := a.users[normalize(userID)]
	return ok
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
