package openaicompat

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config holds the configuration for an OpenAI-compatible provider.
type Config struct {
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
	Headers   map[string]string
}

// defaults sets default values for unset fields.
func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
}

// validate returns an error if required fields are missing or malformed.
func (c *Config) validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("provider: base_url is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("provider: base_url is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("provider: base_url scheme must be http or https, got %q", u.Scheme)
	}
	if c.APIKey == "" {
		return fmt.Errorf("provider: api_key is required")
	}
	if c.Model == "" {
		return fmt.Errorf("provider: model is required")
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("provider: max_tokens must not be negative")
	}
	return nil
}
