// Package gateway exposes the service's HTTP surface: health, Prometheus
// metrics, and the webhook entry point for inbound channels.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/curatorbot/curator/internal/observability"
)

// UserCounter is the part of the memory store the health endpoint needs.
type UserCounter interface {
	Users() int
}

// Gateway is the HTTP server fronting the service.
type Gateway struct {
	listen     string
	logger     *slog.Logger
	store      UserCounter
	dispatcher *WebhookDispatcher
	server     *http.Server
}

// New creates a Gateway listening on addr.
func New(addr string, store UserCounter, logger *slog.Logger) *Gateway {
	g := &Gateway{
		listen:     addr,
		logger:     logger,
		store:      store,
		dispatcher: NewWebhookDispatcher(logger),
	}
	g.server = &http.Server{
		Addr:              addr,
		Handler:           g.buildRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return g
}

// Dispatcher returns the webhook dispatcher so channels can register.
func (g *Gateway) Dispatcher() *WebhookDispatcher {
	return g.dispatcher
}

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", g.handleHealth())
	r.Method(http.MethodGet, "/metrics", observability.Handler())
	r.Post("/webhooks/{source}", g.dispatcher.ServeHTTP)

	return r
}

// Start binds the listener and serves in a background goroutine, so bind
// errors surface synchronously at startup.
func (g *Gateway) Start() error {
	ln, err := net.Listen("tcp", g.listen)
	if err != nil {
		return err
	}
	g.logger.Info("gateway listening", "addr", g.listen)

	go func() {
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve failed", "error", err)
		}
	}()
	return nil
}

// Shutdown gracefully stops the server, bounded by ctx.
func (g *Gateway) Shutdown(ctx context.Context) error {
	return g.server.Shutdown(ctx)
}
