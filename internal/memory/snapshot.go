package memory

import (
	"encoding/json"
	"fmt"

	"github.com/curatorbot/curator/pkg/message"
)

// Snapshot is an immutable point-in-time copy of the user → history mapping.
// It is produced by Store.Snapshot and consumed exactly once by the flush
// worker; nothing mutates it after creation.
type Snapshot map[string][]message.Turn

// Encode serializes the snapshot to the persisted wire format: a JSON
// document mapping user IDs to ordered {role, content} pairs.
func (s Snapshot) Encode() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("memory: encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot parses a persisted document back into a Snapshot.
// Turns with unknown roles are rejected rather than silently coerced.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("memory: decode snapshot: %w", err)
	}
	for userID, turns := range snap {
		for i, t := range turns {
			if !t.Role.Valid() {
				return nil, fmt.Errorf("memory: decode snapshot: user %s turn %d: unknown role %q", userID, i, t.Role)
			}
		}
	}
	return snap, nil
}
