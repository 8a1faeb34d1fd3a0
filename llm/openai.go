// OpenAI Provider implementation using go-openai library.
//
// Information Hiding:
// - API endpoint and authentication
// - Request/response format for OpenAI Chat Completions API
// - Mapping of media fidelity onto image detail
//
// OpenAI has no continuation-token mechanism; responses carry an empty token
// and any token in the request is ignored.

package llm

import (
	"context"
	"encoding/base64"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider implements the Provider interface for OpenAI.
type OpenAIProvider struct {
	client      *openai.Client
	fastModel   string
	deepModel   string
	maxTokens   int
	temperature float32
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(apiKey, fastModel, deepModel string, maxTokens uint32, temperature float32) *OpenAIProvider {
	return &OpenAIProvider{
		client:      openai.NewClient(apiKey),
		fastModel:   fastModel,
		deepModel:   deepModel,
		maxTokens:   int(maxTokens),
		temperature: temperature,
	}
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// ModelFor returns the model used for the given tier.
func (p *OpenAIProvider) ModelFor(tier Tier) string {
	if tier == TierDeep {
		return p.deepModel
	}
	return p.fastModel
}

// Analyze sends one inference request.
func (p *OpenAIProvider) Analyze(ctx context.Context, req Request) (Response, error) {
	oaReq := openai.ChatCompletionRequest{
		Model:       p.ModelFor(req.Config.Tier),
		Messages:    convertToOpenAIMessages(req),
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
	}

	if req.JSONOutput {
		oaReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := p.client.CreateChatCompletion(ctx, oaReq)
	if err != nil {
		return Response{}, fmt.Errorf("inference call failed: %w", err)
	}

	content := ""
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	}
	if content == "" {
		return Response{}, fmt.Errorf("empty response from OpenAI")
	}

	usage := &TokenUsage{
		PromptTokens:     uint32(resp.Usage.PromptTokens),
		CompletionTokens: uint32(resp.Usage.CompletionTokens),
		TotalTokens:      uint32(resp.Usage.TotalTokens),
	}

	return Response{Content: content, Usage: usage}, nil
}

// convertToOpenAIMessages builds the chat messages for a request.
// Images travel as data-URI parts; media fidelity maps to image detail.
func convertToOpenAIMessages(req Request) []openai.ChatCompletionMessage {
	var messages []openai.ChatCompletionMessage

	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}

	prompt := req.Prompt
	if req.Context != "" {
		prompt += "\n\nTEMPORAL CONTEXT:\n" + req.Context
	}

	if len(req.Image) == 0 {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: prompt,
		})
		return messages
	}

	mime := req.MimeType
	if mime == "" {
		mime = "image/jpeg"
	}
	dataURI := fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(req.Image))

	messages = append(messages, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser,
		MultiContent: []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: prompt},
			{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    dataURI,
					Detail: openaiImageDetail(req.Config.MediaFidelity),
				},
			},
		},
	})

	return messages
}

// openaiImageDetail maps media fidelity to the image detail knob.
func openaiImageDetail(f MediaFidelity) openai.ImageURLDetail {
	switch f {
	case FidelityLow:
		return openai.ImageURLDetailLow
	case FidelityHigh:
		return openai.ImageURLDetailHigh
	default:
		return openai.ImageURLDetailAuto
	}
}

// Verify OpenAIProvider implements Provider
var _ Provider = (*OpenAIProvider)(nil)
