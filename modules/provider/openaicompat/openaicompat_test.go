package openaicompat_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/curatorbot/curator/modules/provider/openaicompat"
	"github.com/curatorbot/curator/pkg/message"
)

func newProvider(t *testing.T, baseURL string) *openaicompat.Provider {
	t.Helper()
	p, err := openaicompat.New(openaicompat.Config{
		BaseURL: baseURL,
		APIKey:  "sk-test",
		Model:   "llama-3.3-70b-versatile",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func turns(contents ...string) []message.Turn {
	out := make([]message.Turn, len(contents))
	for i, c := range contents {
		out[i] = message.UserTurn(c)
	}
	return out
}

func TestComplete_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q, want /chat/completions", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q, want the bearer key", got)
		}

		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "llama-3.3-70b-versatile" {
			t.Errorf("model = %q", req.Model)
		}
		if len(req.Messages) != 2 || req.Messages[1].Content != "how are you?" {
			t.Errorf("messages = %+v, want the two turns in order", req.Messages)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"doing well"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	got, err := newProvider(t, srv.URL).Complete(context.Background(), turns("hi", "how are you?"))
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "doing well" {
		t.Fatalf("Complete = %q, want %q", got, "doing well")
	}
}

func TestComplete_ErrorClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "server error", status: http.StatusInternalServerError, wantErr: openaicompat.ErrProviderDown},
		{name: "bad gateway", status: http.StatusBadGateway, wantErr: openaicompat.ErrProviderDown},
		{name: "rate limited", status: http.StatusTooManyRequests, wantErr: openaicompat.ErrRateLimit},
		{name: "unauthorized", status: http.StatusUnauthorized, wantErr: openaicompat.ErrAuthentication},
		{name: "forbidden", status: http.StatusForbidden, wantErr: openaicompat.ErrAuthentication},
		{name: "empty choices", status: http.StatusOK, body: `{"choices":[]}`, wantErr: openaicompat.ErrMalformedResponse},
		{name: "invalid json", status: http.StatusOK, body: `{{{`, wantErr: openaicompat.ErrMalformedResponse},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newProvider(t, srv.URL).Complete(context.Background(), turns("hi"))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Complete error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestComplete_TransportFailure(t *testing.T) {
	t.Parallel()

	// A closed server simulates a connection-refused transport failure.
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	_, err := newProvider(t, srv.URL).Complete(context.Background(), turns("hi"))
	if !errors.Is(err, openaicompat.ErrProviderDown) {
		t.Fatalf("Complete error = %v, want ErrProviderDown", err)
	}
}

func TestComplete_ContextCancellation(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newProvider(t, srv.URL).Complete(ctx, turns("hi"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Complete error = %v, want context.DeadlineExceeded", err)
	}
	// Cancellation is the caller's doing, not a provider outage.
	if errors.Is(err, openaicompat.ErrProviderDown) {
		t.Fatal("caller cancellation was misclassified as a provider failure")
	}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	valid := openaicompat.Config{
		BaseURL: "https://api.groq.com/openai/v1",
		APIKey:  "sk-test",
		Model:   "m",
	}

	tests := []struct {
		name   string
		mutate func(*openaicompat.Config)
	}{
		{name: "missing base url", mutate: func(c *openaicompat.Config) { c.BaseURL = "" }},
		{name: "bad scheme", mutate: func(c *openaicompat.Config) { c.BaseURL = "ftp://example.com" }},
		{name: "missing api key", mutate: func(c *openaicompat.Config) { c.APIKey = "" }},
		{name: "missing model", mutate: func(c *openaicompat.Config) { c.Model = "" }},
		{name: "negative max tokens", mutate: func(c *openaicompat.Config) { c.MaxTokens = -1 }},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := valid
			tt.mutate(&cfg)
			if _, err := openaicompat.New(cfg); err == nil {
				t.Fatal("New accepted an invalid config")
			}
		})
	}

	if _, err := openaicompat.New(valid); err != nil {
		t.Fatalf("New rejected a valid config: %v", err)
	}
}

func TestNew_TrimsTrailingSlash(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q, want /v1/chat/completions", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer srv.Close()

	p, err := openaicompat.New(openaicompat.Config{
		BaseURL: srv.URL + "/v1/",
		APIKey:  "sk-test",
		Model:   "m",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Complete(context.Background(), turns("hi")); err != nil {
		t.Fatalf("Complete: %v", err)
	}
}
