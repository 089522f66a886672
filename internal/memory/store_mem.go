package memory

import (
	"sync"

	"github.com/curatorbot/curator/pkg/message"
)

// InMemoryStore is a thread-safe, bounded, in-memory implementation of Store.
type InMemoryStore struct {
	mu       sync.RWMutex
	maxTurns int
	users    map[string][]message.Turn
}

// Compile-time interface check.
var _ Store = (*InMemoryStore)(nil)

// NewInMemoryStore creates an empty store bounded to maxTurns per user.
// A non-positive maxTurns falls back to DefaultMaxTurns.
func NewInMemoryStore(maxTurns int) *InMemoryStore {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &InMemoryStore{
		maxTurns: maxTurns,
		users:    make(map[string][]message.Turn),
	}
}

// Append adds a turn to the user's history and trims from the front when
// the bound is exceeded. The returned slice is a copy.
func (s *InMemoryStore) Append(userID string, turn message.Turn) []message.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := append(s.users[userID], turn)
	if excess := len(history) - s.maxTurns; excess > 0 {
		// Re-slice into a fresh backing array so trimmed turns can be
		// garbage collected instead of pinning the old array forever.
		trimmed := make([]message.Turn, s.maxTurns)
		copy(trimmed, history[excess:])
		history = trimmed
	}
	s.users[userID] = history

	result := make([]message.Turn, len(history))
	copy(result, history)
	return result
}

// Read returns a copy of the user's history, or nil for an unknown user.
func (s *InMemoryStore) Read(userID string) []message.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.users[userID]
	if !ok {
		return nil
	}
	result := make([]message.Turn, len(history))
	copy(result, history)
	return result
}

// Len returns the number of turns stored for a user.
func (s *InMemoryStore) Len(userID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users[userID])
}

// Users returns the number of users with stored history.
func (s *InMemoryStore) Users() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

// LoadFrom replaces the in-memory mapping with the given snapshot.
// Histories longer than the bound are trimmed from the front so the
// invariant holds even when the bound was lowered between restarts.
func (s *InMemoryStore) LoadFrom(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users = make(map[string][]message.Turn, len(snap))
	for userID, turns := range snap {
		if len(turns) > s.maxTurns {
			turns = turns[len(turns)-s.maxTurns:]
		}
		history := make([]message.Turn, len(turns))
		copy(history, turns)
		s.users[userID] = history
	}
}

// Snapshot returns a deep copy of the full mapping under the write lock,
// so the copy reflects a state that actually existed at one instant.
func (s *InMemoryStore) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := make(Snapshot, len(s.users))
	for userID, history := range s.users {
		turns := make([]message.Turn, len(history))
		copy(turns, history)
		snap[userID] = turns
	}
	return snap
}
