package llm

import (
	"context"
	"fmt"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicConfig configures the anthropic-sdk-go backed client.
type AnthropicConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int64
	Temperature float64
}

const defaultModel = "claude-3-5-sonnet-20241022"

// AnthropicClient implements Client using the official Anthropic SDK,
// grounded on the Messages.New call pattern used throughout the pack's
// bedrock/anthropic integrations.
type AnthropicClient struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
}

// NewAnthropicClient builds a Client from the given API key. Returns an
// error if the key is empty; callers should fall back to the local
// clarifier in that case rather than fail startup (spec §6: missing
// credentials yield warnings, not failure).
func NewAnthropicClient(cfg AnthropicConfig) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: no API key configured")
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1024
	}
	return &AnthropicClient{
		client:      anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:       model,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
	}, nil
}

// Complete sends the conversation to the Messages API and returns the
// concatenated text of the reply's text blocks.
func (c *AnthropicClient) Complete(ctx context.Context, messages []Message) (string, error) {
	var systemPrompt string
	sdkMessages := make([]anthropic.MessageParam, 0, len(messages))

	for _, m := range messages {
		switch m.Role {
		case "system":
			if systemPrompt == "" {
				systemPrompt = m.Content
			} else {
				systemPrompt += "\n" + m.Content
			}
		case "assistant":
			sdkMessages = append(sdkMessages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			sdkMessages = append(sdkMessages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	if len(sdkMessages) == 0 {
		return "", fmt.Errorf("anthropic: no messages to send")
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		Messages:  sdkMessages,
		MaxTokens: c.maxTokens,
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic: messages.new: %w", err)
	}

	var out string
	for _, block := range resp.Content {
		if text := block.Text; text != "" {
			out += text
		}
	}
	return out, nil
}
