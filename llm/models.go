// Package llm provides shared data models for inference providers.
package llm

// Tier selects how much model capability an inference call gets.
type Tier int

const (
	// TierFast routes the call to the cheaper, lower-latency model.
	TierFast Tier = iota
	// TierDeep routes the call to the stronger model.
	TierDeep
)

// String returns the string representation of the tier.
func (t Tier) String() string {
	switch t {
	case TierFast:
		return "fast"
	case TierDeep:
		return "deep"
	default:
		return "unknown"
	}
}

// ReasoningDepth trades inference latency and cost for more thorough analysis.
type ReasoningDepth int

const (
	// DepthLow requests minimal internal reasoning.
	DepthLow ReasoningDepth = iota
	// DepthHigh requests extended internal reasoning.
	DepthHigh
)

// String returns the string representation of the reasoning depth.
func (d ReasoningDepth) String() string {
	switch d {
	case DepthLow:
		return "low"
	case DepthHigh:
		return "high"
	default:
		return "unknown"
	}
}

// MediaFidelity controls how much image detail is sent to the model.
type MediaFidelity int

const (
	// FidelityLow sends heavily downsampled media.
	FidelityLow MediaFidelity = iota
	// FidelityMedium is the default resolution.
	FidelityMedium
	// FidelityHigh sends full-detail media.
	FidelityHigh
)

// String returns the string representation of the media fidelity.
func (f MediaFidelity) String() string {
	switch f {
	case FidelityLow:
		return "low"
	case FidelityMedium:
		return "medium"
	case FidelityHigh:
		return "high"
	default:
		return "unknown"
	}
}

// InferenceConfig is the per-call configuration chosen by the policy layer.
// Pure value type: recomputed for every call and never persisted.
type InferenceConfig struct {
	Tier           Tier
	ReasoningDepth ReasoningDepth
	MediaFidelity  MediaFidelity
}

// Request is a single inference call: one image, instructions, optional
// temporal context, and an optional continuation token from a prior turn.
type Request struct {
	// System is the system instruction for the call.
	System string
	// Prompt is the user-facing instruction text.
	Prompt string
	// Context is auxiliary temporal context embedded alongside the prompt.
	Context string
	// Image is the raw image payload. Nil for text-only calls (planning).
	Image []byte
	// MimeType describes Image, e.g. "image/jpeg". Defaults to JPEG.
	MimeType string
	// Continuation is an opaque token from a prior response for the same
	// investigation. Empty when no prior reasoning state exists. Providers
	// that don't support continuation ignore it.
	Continuation string
	// Config selects tier, reasoning depth, and media fidelity.
	Config InferenceConfig
	// JSONOutput asks the provider to constrain output to JSON where supported.
	JSONOutput bool
}

// Response is the provider's answer to a Request.
type Response struct {
	// Content is the raw text output, expected (not guaranteed) to contain JSON.
	Content string
	// Continuation is an opaque token that lets the provider reuse internal
	// reasoning context on the next call. Empty for providers without support.
	Continuation string
	// Usage reports token counts when the provider supplies them.
	Usage *TokenUsage
}

// TokenUsage contains token usage statistics.
type TokenUsage struct {
	PromptTokens     uint32
	CompletionTokens uint32
	TotalTokens      uint32
}
