// Package openaicompat provides a completion client for any API that
// implements the OpenAI chat completions interface (Groq, Mistral,
// DeepSeek, Together, vLLM, LiteLLM, etc.) via a configurable base_url.
package openaicompat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/curatorbot/curator/pkg/message"
)

// Provider is an OpenAI-compatible completion client.
type Provider struct {
	config Config
	client *http.Client
}

// New creates a Provider after validating the configuration.
func New(cfg Config) (*Provider, error) {
	cfg.defaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Provider{
		config: cfg,
		// Response-header timeout on the transport instead of a global
		// client timeout; per-request contexts handle overall cancellation.
		client: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: cfg.Timeout,
			},
		},
	}, nil
}

// Complete sends the turns to the chat completions endpoint and returns
// the first choice's text.
func (p *Provider) Complete(ctx context.Context, turns []message.Turn) (string, error) {
	resp, err := p.doRequest(ctx, buildRequest(p.config.Model, p.config.MaxTokens, turns))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	if resp.StatusCode != http.StatusOK {
		return "", handleErrorResponse(resp)
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("%w: decode: %w", ErrMalformedResponse, err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", ErrMalformedResponse)
	}

	return chatResp.Choices[0].Message.Content, nil
}

// ModelName returns the configured model identifier.
func (p *Provider) ModelName() string {
	return p.config.Model
}
