package persist

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/curatorbot/curator/internal/memory"
)

// Snapshotter is the part of the memory store the checkpoint needs.
type Snapshotter interface {
	Snapshot() memory.Snapshot
}

// Checkpoint periodically enqueues a fresh snapshot so that a quiet period
// after a failed flush still converges to a durable state, instead of
// waiting for the next inbound turn.
type Checkpoint struct {
	cron *cron.Cron
}

// StartCheckpoint schedules a snapshot enqueue every interval and starts
// the scheduler. A non-positive interval disables checkpointing and
// returns nil.
func StartCheckpoint(interval time.Duration, store Snapshotter, pipeline *Pipeline, logger *slog.Logger) (*Checkpoint, error) {
	if interval <= 0 {
		return nil, nil
	}

	c := cron.New()
	spec := fmt.Sprintf("@every %s", interval)
	_, err := c.AddFunc(spec, func() {
		pipeline.Enqueue(store.Snapshot())
		logger.Debug("checkpoint snapshot enqueued", "interval", interval)
	})
	if err != nil {
		return nil, fmt.Errorf("persist: schedule checkpoint %q: %w", spec, err)
	}

	c.Start()
	logger.Info("periodic checkpoint enabled", "interval", interval)
	return &Checkpoint{cron: c}, nil
}

// Stop halts the scheduler and waits for a running checkpoint to finish.
func (c *Checkpoint) Stop() {
	if c == nil {
		return
	}
	<-c.cron.Stop().Done()
}
