// Package relay orchestrates a single conversation turn: record the user's
// message, derive a prompt window, call the completion provider, record the
// reply, and hand a snapshot to the persistence pipeline.
package relay

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/curatorbot/curator/internal/memory"
	"github.com/curatorbot/curator/internal/observability"
	"github.com/curatorbot/curator/internal/prompt"
	"github.com/curatorbot/curator/pkg/message"
)

// DefaultTimeout bounds the completion provider call.
const DefaultTimeout = 30 * time.Second

// DefaultApology is returned to the user when the provider call fails.
// It is deliberately short, stable, and free of technical detail.
const DefaultApology = "Sorry, I can't reply right now. Please try again in a moment."

// Completer produces a model reply for an ordered sequence of turns.
type Completer interface {
	Complete(ctx context.Context, turns []message.Turn) (string, error)
}

// Enqueuer receives snapshots for asynchronous persistence.
type Enqueuer interface {
	Enqueue(snap memory.Snapshot)
}

// Config wires a Relay. Store, Completer, and Pipeline are required.
type Config struct {
	Store     memory.Store
	Completer Completer
	Pipeline  Enqueuer

	// SystemPrompt is prepended to every prompt window.
	SystemPrompt string
	// Window is the number of recent turns sent to the provider.
	Window int
	// Timeout bounds the provider call. Defaults to DefaultTimeout.
	Timeout time.Duration
	// RetainFailed keeps the user's turn in history even when the provider
	// call fails. When false, a failed call leaves no trace in history.
	RetainFailed bool
	// Apology overrides DefaultApology.
	Apology string

	Logger *slog.Logger
	// Metrics is optional; a nil value disables instrumentation.
	Metrics *observability.Metrics
}

// Relay handles inbound turns for all users against one shared store.
type Relay struct {
	store        memory.Store
	completer    Completer
	pipeline     Enqueuer
	systemPrompt string
	window       int
	timeout      time.Duration
	retainFailed bool
	apology      string
	logger       *slog.Logger
	metrics      *observability.Metrics
}

// New creates a Relay from the given configuration.
func New(cfg Config) (*Relay, error) {
	if cfg.Store == nil {
		return nil, errors.New("relay: store is required")
	}
	if cfg.Completer == nil {
		return nil, errors.New("relay: completer is required")
	}
	if cfg.Pipeline == nil {
		return nil, errors.New("relay: pipeline is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Apology == "" {
		cfg.Apology = DefaultApology
	}
	return &Relay{
		store:        cfg.Store,
		completer:    cfg.Completer,
		pipeline:     cfg.Pipeline,
		systemPrompt: cfg.SystemPrompt,
		window:       cfg.Window,
		timeout:      cfg.Timeout,
		retainFailed: cfg.RetainFailed,
		apology:      cfg.Apology,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
	}, nil
}

// HandleTurn processes one user turn and returns the text to send back.
// Provider failures never escape: the user gets the apology string and the
// detail goes to the log only.
func (r *Relay) HandleTurn(ctx context.Context, userID, text string) string {
	userTurn := message.UserTurn(text)

	// With RetainFailed the user turn is committed up front and survives a
	// failed call; otherwise it is committed only together with the reply,
	// and the prompt is built from a private view including it.
	var history []message.Turn
	if r.retainFailed {
		history = r.store.Append(userID, userTurn)
	} else {
		history = append(r.store.Read(userID), userTurn)
	}

	turns := prompt.Window(history, r.systemPrompt, r.window)

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	reply, err := r.completer.Complete(callCtx, turns)
	if r.metrics != nil {
		r.metrics.RelayLatency.Observe(time.Since(start).Seconds())
	}

	if err != nil {
		r.logger.Error("completion call failed",
			"user", userID,
			"retained", r.retainFailed,
			"error", err,
		)
		if r.metrics != nil {
			r.metrics.Turns.WithLabelValues("relay_error").Inc()
		}
		if r.retainFailed {
			// The user turn is already in the live mapping; persist it.
			r.pipeline.Enqueue(r.store.Snapshot())
		}
		return r.apology
	}

	if !r.retainFailed {
		r.store.Append(userID, userTurn)
	}
	r.store.Append(userID, message.AssistantTurn(reply))

	if r.metrics != nil {
		r.metrics.Turns.WithLabelValues("ok").Inc()
		r.metrics.ActiveUsers.Set(float64(r.store.Users()))
	}
	r.pipeline.Enqueue(r.store.Snapshot())

	return reply
}
