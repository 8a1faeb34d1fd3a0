// Package llm provides inference provider abstractions.
//
// Provider is the abstract interface for multimodal inference services.
// Each provider implementation hides:
// - API client initialization and authentication
// - Request/response format conversion
// - How tier, reasoning depth, and media fidelity map onto provider knobs
// - Continuation-token handling (or its absence)

package llm

import (
	"context"
)

// Provider defines the abstract interface for multimodal inference providers.
type Provider interface {
	// Name returns the provider name (for logging and metrics).
	Name() string

	// ModelFor returns the model identifier used for the given tier.
	ModelFor(tier Tier) string

	// Analyze sends one inference request and returns the raw response.
	// The response text is free-form; callers normalize it downstream.
	Analyze(ctx context.Context, req Request) (Response, error)
}
