// Google Gemini Provider implementation using official google.golang.org/genai SDK.
//
// Information Hiding:
// - API authentication and client creation
// - Request/response format for Gemini API
// - Mapping of tier/depth/fidelity onto model, thinking budget, media resolution
// - Thought-signature continuation handling

package llm

import (
	"context"
	"encoding/base64"
	"fmt"

	"google.golang.org/genai"
)

// thinkingBudgetHigh is the token budget granted when reasoning depth is high.
// Zero disables thinking entirely for low-depth calls.
const thinkingBudgetHigh = 8192

// GeminiProvider implements the Provider interface for Google Gemini.
type GeminiProvider struct {
	client      *genai.Client
	fastModel   string
	deepModel   string
	maxTokens   int32
	temperature float32
	initErr     error // Stores client initialization error for deferred reporting
}

// NewGeminiProvider creates a new Gemini provider.
// If client initialization fails, the error is stored and returned on first use.
func NewGeminiProvider(apiKey, fastModel, deepModel string, maxTokens uint32, temperature float32) *GeminiProvider {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		// Store initialization error to return on first use - preserves constructor signature
		return &GeminiProvider{
			fastModel:   fastModel,
			deepModel:   deepModel,
			maxTokens:   int32(maxTokens),
			temperature: temperature,
			initErr:     fmt.Errorf("failed to initialize Gemini client: %w", err),
		}
	}

	return &GeminiProvider{
		client:      client,
		fastModel:   fastModel,
		deepModel:   deepModel,
		maxTokens:   int32(maxTokens),
		temperature: temperature,
	}
}

// Name returns the provider name.
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// ModelFor returns the model used for the given tier.
func (p *GeminiProvider) ModelFor(tier Tier) string {
	if tier == TierDeep {
		return p.deepModel
	}
	return p.fastModel
}

// Analyze sends one inference request.
func (p *GeminiProvider) Analyze(ctx context.Context, req Request) (Response, error) {
	if p.initErr != nil {
		return Response{}, p.initErr
	}
	if p.client == nil {
		return Response{}, fmt.Errorf("gemini client not initialized")
	}

	contents, err := convertToGeminiContents(req)
	if err != nil {
		return Response{}, err
	}

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(p.temperature),
		MaxOutputTokens: p.maxTokens,
		MediaResolution: geminiMediaResolution(req.Config.MediaFidelity),
		ThinkingConfig:  geminiThinkingConfig(req.Config.ReasoningDepth),
	}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.JSONOutput {
		config.ResponseMIMEType = "application/json"
	}

	response, err := p.client.Models.GenerateContent(ctx, p.ModelFor(req.Config.Tier), contents, config)
	if err != nil {
		return Response{}, fmt.Errorf("inference call failed: %w", err)
	}

	content := response.Text()
	if content == "" {
		return Response{}, fmt.Errorf("empty response from Gemini")
	}

	var usage *TokenUsage
	if response.UsageMetadata != nil {
		usage = &TokenUsage{
			PromptTokens:     uint32(response.UsageMetadata.PromptTokenCount),
			CompletionTokens: uint32(response.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      uint32(response.UsageMetadata.TotalTokenCount),
		}
	}

	return Response{
		Content:      content,
		Continuation: extractThoughtSignature(response),
		Usage:        usage,
	}, nil
}

// convertToGeminiContents assembles the request contents.
// A continuation token is replayed as a model-role part carrying the thought
// signature from the prior turn, before the new user turn.
func convertToGeminiContents(req Request) ([]*genai.Content, error) {
	var contents []*genai.Content

	if req.Continuation != "" {
		sig, err := base64.StdEncoding.DecodeString(req.Continuation)
		if err != nil {
			return nil, fmt.Errorf("invalid continuation token: %w", err)
		}
		contents = append(contents, &genai.Content{
			Role: genai.RoleModel,
			Parts: []*genai.Part{{
				Text:             "Continuing prior analysis.",
				ThoughtSignature: sig,
			}},
		})
	}

	prompt := req.Prompt
	if req.Context != "" {
		prompt += "\n\nTEMPORAL CONTEXT:\n" + req.Context
	}

	parts := []*genai.Part{genai.NewPartFromText(prompt)}
	if len(req.Image) > 0 {
		mime := req.MimeType
		if mime == "" {
			mime = "image/jpeg"
		}
		parts = append(parts, genai.NewPartFromBytes(req.Image, mime))
	}
	contents = append(contents, genai.NewContentFromParts(parts, genai.RoleUser))

	return contents, nil
}

// extractThoughtSignature returns the base64-encoded thought signature from
// the first candidate's parts, or empty when the model returned none.
func extractThoughtSignature(response *genai.GenerateContentResponse) string {
	if len(response.Candidates) == 0 || response.Candidates[0].Content == nil {
		return ""
	}
	for _, part := range response.Candidates[0].Content.Parts {
		if len(part.ThoughtSignature) > 0 {
			return base64.StdEncoding.EncodeToString(part.ThoughtSignature)
		}
	}
	return ""
}

// geminiMediaResolution maps media fidelity to the Gemini resolution knob.
func geminiMediaResolution(f MediaFidelity) genai.MediaResolution {
	switch f {
	case FidelityLow:
		return genai.MediaResolutionLow
	case FidelityHigh:
		return genai.MediaResolutionHigh
	default:
		return genai.MediaResolutionMedium
	}
}

// geminiThinkingConfig maps reasoning depth to a thinking budget.
func geminiThinkingConfig(d ReasoningDepth) *genai.ThinkingConfig {
	budget := int32(0)
	if d == DepthHigh {
		budget = thinkingBudgetHigh
	}
	return &genai.ThinkingConfig{
		IncludeThoughts: false,
		ThinkingBudget:  genai.Ptr(budget),
	}
}

// Verify GeminiProvider implements Provider
var _ Provider = (*GeminiProvider)(nil)
