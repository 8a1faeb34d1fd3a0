// Client - timeout-enforcing wrapper around providers.

package llm

import (
	"context"
	"time"
)

// DefaultTimeout bounds every inference call when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// Client wraps a Provider and applies a fixed per-call timeout.
// Timeout expiry is indistinguishable from any other transport failure:
// the caller treats both as "analysis unavailable" for that frame.
type Client struct {
	provider Provider
	timeout  time.Duration
}

// NewClient creates a new inference client from a provider.
func NewClient(provider Provider, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{provider: provider, timeout: timeout}
}

// Analyze sends one inference request with the client's timeout applied.
func (c *Client) Analyze(ctx context.Context, req Request) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.provider.Analyze(ctx, req)
}

// Provider returns the underlying provider.
func (c *Client) Provider() Provider {
	return c.provider
}
