// Anthropic Provider implementation using official anthropic-sdk-go.
//
// Information Hiding:
// - API endpoint and authentication
// - Request/response format for Anthropic Messages API
// - Mapping of tier onto model choice
//
// Anthropic exposes no continuation-token mechanism here; responses carry an
// empty token. Media fidelity has no direct knob and is ignored.

package llm

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider implements the Provider interface for Anthropic Claude.
type AnthropicProvider struct {
	client      anthropic.Client
	fastModel   string
	deepModel   string
	maxTokens   int64
	temperature float64
}

// NewAnthropicProvider creates a new Anthropic provider.
func NewAnthropicProvider(apiKey, fastModel, deepModel string, maxTokens uint32, temperature float32) *AnthropicProvider {
	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)

	return &AnthropicProvider{
		client:      client,
		fastModel:   fastModel,
		deepModel:   deepModel,
		maxTokens:   int64(maxTokens),
		temperature: float64(temperature),
	}
}

// Name returns the provider name.
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// ModelFor returns the model used for the given tier.
func (p *AnthropicProvider) ModelFor(tier Tier) string {
	if tier == TierDeep {
		return p.deepModel
	}
	return p.fastModel
}

// Analyze sends one inference request.
func (p *AnthropicProvider) Analyze(ctx context.Context, req Request) (Response, error) {
	blocks := convertToAnthropicBlocks(req)

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(p.ModelFor(req.Config.Tier)),
		MaxTokens:   p.maxTokens,
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(blocks...)},
		Temperature: anthropic.Float(p.temperature),
	}

	if req.System != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: req.System},
		}
	}

	message, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return Response{}, fmt.Errorf("inference call failed: %w", err)
	}

	content := ""
	for _, block := range message.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			content += variant.Text
		}
	}
	if content == "" {
		return Response{}, fmt.Errorf("empty response from Anthropic")
	}

	var usage *TokenUsage
	if message.Usage.InputTokens > 0 || message.Usage.OutputTokens > 0 {
		usage = &TokenUsage{
			PromptTokens:     uint32(message.Usage.InputTokens),
			CompletionTokens: uint32(message.Usage.OutputTokens),
			TotalTokens:      uint32(message.Usage.InputTokens + message.Usage.OutputTokens),
		}
	}

	return Response{Content: content, Usage: usage}, nil
}

// convertToAnthropicBlocks builds the user content blocks for a request.
func convertToAnthropicBlocks(req Request) []anthropic.ContentBlockParamUnion {
	prompt := req.Prompt
	if req.Context != "" {
		prompt += "\n\nTEMPORAL CONTEXT:\n" + req.Context
	}

	var blocks []anthropic.ContentBlockParamUnion
	if len(req.Image) > 0 {
		mime := req.MimeType
		if mime == "" {
			mime = "image/jpeg"
		}
		blocks = append(blocks, anthropic.NewImageBlockBase64(mime, base64.StdEncoding.EncodeToString(req.Image)))
	}
	blocks = append(blocks, anthropic.NewTextBlock(prompt))

	return blocks
}

// Verify AnthropicProvider implements Provider
var _ Provider = (*AnthropicProvider)(nil)
