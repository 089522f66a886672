package persist

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/curatorbot/curator/internal/memory"
	"github.com/curatorbot/curator/internal/observability"
)

const (
	defaultQueueSize     = 64
	defaultSaveTimeout   = 30 * time.Second
	defaultShutdownGrace = 5 * time.Second
)

// PipelineConfig configures a write-behind Pipeline.
type PipelineConfig struct {
	Backend Backend
	// Key names the single document holding the whole conversation mapping.
	Key string
	// QueueSize bounds the snapshot queue. Defaults to 64.
	QueueSize int
	// SaveTimeout bounds each remote write. Defaults to 30s.
	SaveTimeout time.Duration
	// ShutdownGrace bounds the best-effort final flush on Stop. Defaults to 5s.
	ShutdownGrace time.Duration
	Logger        *slog.Logger
	// Metrics is optional; a nil value disables instrumentation.
	Metrics *observability.Metrics
}

// Pipeline decouples request latency from remote-storage latency: producers
// enqueue immutable snapshots without blocking, and a single worker
// serializes them into the backend. Exactly one remote write is in flight
// at any time, so persisted documents never interleave.
type Pipeline struct {
	backend       Backend
	key           string
	queue         chan memory.Snapshot
	saveTimeout   time.Duration
	shutdownGrace time.Duration
	logger        *slog.Logger
	metrics       *observability.Metrics

	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewPipeline creates a Pipeline. Call Start to launch the flush worker.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.SaveTimeout <= 0 {
		cfg.SaveTimeout = defaultSaveTimeout
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = defaultShutdownGrace
	}
	return &Pipeline{
		backend:       cfg.Backend,
		key:           cfg.Key,
		queue:         make(chan memory.Snapshot, cfg.QueueSize),
		saveTimeout:   cfg.SaveTimeout,
		shutdownGrace: cfg.ShutdownGrace,
		logger:        cfg.Logger,
		metrics:       cfg.Metrics,
		stopCh:        make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Start launches the flush worker goroutine.
func (p *Pipeline) Start() {
	go p.loop()
}

// Enqueue pushes a snapshot onto the queue without blocking. On overflow
// the oldest queued snapshot is dropped: every snapshot is a superset of
// the states before it, so only the newest one's durability matters.
func (p *Pipeline) Enqueue(snap memory.Snapshot) {
	select {
	case p.queue <- snap:
	default:
		select {
		case <-p.queue:
			if p.metrics != nil {
				p.metrics.QueueDropped.Inc()
			}
			p.logger.Warn("flush queue full, dropped oldest snapshot")
		default:
			// Worker drained the queue between our two selects.
		}
		select {
		case p.queue <- snap:
		default:
			// Still full: a concurrent producer won the slot. Its snapshot
			// is at least as fresh as ours, so dropping ours is safe.
			if p.metrics != nil {
				p.metrics.QueueDropped.Inc()
			}
		}
	}
	if p.metrics != nil {
		p.metrics.QueueDepth.Set(float64(len(p.queue)))
	}
}

// Stop shuts the worker down, flushing the most recent outstanding snapshot
// best-effort within the shutdown grace period. Safe to call more than once.
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	<-p.done
}

// loop runs until Stop is called. It suspends only while the queue is
// empty and while a remote write is in flight.
func (p *Pipeline) loop() {
	defer close(p.done)

	for {
		select {
		case <-p.stopCh:
			p.drain()
			return
		case snap := <-p.queue:
			snap = p.coalesce(snap)
			p.flush(context.Background(), snap)
		}
	}
}

// coalesce replaces the snapshot with the newest one already queued.
// Older snapshots are strict prefixes of state and writing them would only
// waste remote round-trips under burst load.
func (p *Pipeline) coalesce(snap memory.Snapshot) memory.Snapshot {
	for {
		select {
		case newer := <-p.queue:
			snap = newer
		default:
			if p.metrics != nil {
				p.metrics.QueueDepth.Set(float64(len(p.queue)))
			}
			return snap
		}
	}
}

// flush serializes one snapshot and writes it to the backend. Failures are
// logged and swallowed: the in-memory state stays authoritative and a newer
// snapshot will be enqueued on the next turn. Nothing here may panic or
// escalate, whatever the backend does.
func (p *Pipeline) flush(ctx context.Context, snap memory.Snapshot) {
	data, err := snap.Encode()
	if err != nil {
		p.logger.Error("encoding snapshot failed", "error", err)
		if p.metrics != nil {
			p.metrics.Flushes.WithLabelValues("error").Inc()
		}
		return
	}

	saveCtx, cancel := context.WithTimeout(ctx, p.saveTimeout)
	defer cancel()

	if err := p.backend.Save(saveCtx, p.key, data); err != nil {
		p.logger.Error("persisting snapshot failed, will retry with next snapshot",
			"key", p.key,
			"users", len(snap),
			"error", err,
		)
		if p.metrics != nil {
			p.metrics.Flushes.WithLabelValues("error").Inc()
		}
		return
	}

	if p.metrics != nil {
		p.metrics.Flushes.WithLabelValues("ok").Inc()
		p.metrics.FlushBytes.Observe(float64(len(data)))
	}
	p.logger.Debug("snapshot persisted", "key", p.key, "users", len(snap), "bytes", len(data))
}

// drain performs the shutdown flush: collapse whatever is still queued to
// the newest snapshot and attempt one final bounded write.
func (p *Pipeline) drain() {
	var last memory.Snapshot
	var pending bool
	for {
		select {
		case snap := <-p.queue:
			last = snap
			pending = true
		default:
			if !pending {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), p.shutdownGrace)
			defer cancel()
			p.flush(ctx, last)
			return
		}
	}
}
