// Package persist implements write-behind persistence for conversation
// memory: a durable backend gateway contract, a queue with a single flush
// worker, and a cron-driven periodic checkpoint.
package persist

import (
	"context"
	"errors"
	"log/slog"

	"github.com/curatorbot/curator/internal/memory"
)

// ErrNotFound is returned by Backend.Load when the object does not exist.
// Callers treat it as "start empty", not as a failure.
var ErrNotFound = errors.New("persist: object not found")

// Backend is a thin gateway to a remote blob/key-value store with
// whole-document replace semantics.
type Backend interface {
	// Load fetches the object stored under key. Returns ErrNotFound when
	// the object does not exist; any other error is a transport failure.
	Load(ctx context.Context, key string) ([]byte, error)

	// Save replaces the object stored under key. Errors are non-fatal to
	// callers: the pipeline retries only via the next natural snapshot.
	Save(ctx context.Context, key string, data []byte) error
}

// LoadSnapshot fetches and decodes the persisted conversation mapping.
// A missing object, a transport failure, or a corrupt document all resolve
// to an empty snapshot: the service favors availability over strict
// durability at startup. Only the missing-object case is silent.
func LoadSnapshot(ctx context.Context, backend Backend, key string, logger *slog.Logger) memory.Snapshot {
	data, err := backend.Load(ctx, key)
	switch {
	case errors.Is(err, ErrNotFound):
		logger.Info("no persisted conversations found, starting empty", "key", key)
		return memory.Snapshot{}
	case err != nil:
		logger.Warn("loading persisted conversations failed, starting empty",
			"key", key,
			"error", err,
		)
		return memory.Snapshot{}
	}

	snap, err := memory.DecodeSnapshot(data)
	if err != nil {
		logger.Warn("persisted conversations are corrupt, starting empty",
			"key", key,
			"error", err,
		)
		return memory.Snapshot{}
	}
	return snap
}
