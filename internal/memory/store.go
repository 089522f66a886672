// Package memory provides the bounded per-user conversation history store
// and the snapshot type handed to the persistence pipeline.
package memory

import "github.com/curatorbot/curator/pkg/message"

// DefaultMaxTurns is the history bound applied when none is configured.
const DefaultMaxTurns = 50

// Store manages per-user conversation history.
// Implementations must be safe for concurrent use and must never perform
// I/O while holding their internal lock.
type Store interface {
	// Append adds a turn to the user's history, trimming the oldest turns
	// when the bound is exceeded. It returns a copy of the resulting history.
	Append(userID string, turn message.Turn) []message.Turn

	// Read returns a copy of the user's current history. An unknown user
	// yields nil. Read never blocks on remote I/O.
	Read(userID string) []message.Turn

	// Len returns the number of turns stored for a user.
	Len(userID string) int

	// Users returns the number of users with at least one stored turn.
	Users() int

	// LoadFrom bulk-initializes the mapping, replacing any in-memory state.
	// It is called once at startup, before the store accepts traffic.
	LoadFrom(snap Snapshot)

	// Snapshot returns an immutable point-in-time copy of the full mapping,
	// taken under the same lock used for mutation.
	Snapshot() Snapshot
}
