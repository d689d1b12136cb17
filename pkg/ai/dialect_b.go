package ai

import (
	"context"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sony/gobreaker"
)

// anthropicClient implements Provider for the Anthropic dialect: system
// messages are stripped from the chat array and passed separately, auth is
// an x-api-key header plus an anthropic-version header (handled internally
// by the SDK's client), and usage is reported as input/output tokens rather
// than the OpenAI-style prompt/completion split.
type anthropicClient struct {
	model   string
	client  anthropic.Client
	breaker *gobreaker.CircuitBreaker
}

const defaultAnthropicMaxTokens = 4096

// NewAnthropicProvider builds a Provider for the Anthropic dialect.
func NewAnthropicProvider(cfg Config) (Provider, error) {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &anthropicClient{
		model:   cfg.Model,
		client:  anthropic.NewClient(opts...),
		breaker: newBreaker(string(ProviderAnthropic)),
	}, nil
}

func (c *anthropicClient) ChatCompletion(ctx context.Context, messages []Message, model string) (string, *TokenUsage, error) {
	ctx, cancel := context.WithTimeout(ctx, ChatCompletionTimeout)
	defer cancel()

	if model == "" {
		model = c.model
	}

	var systemPrompt strings.Builder
	var chatMessages []anthropic.MessageParam
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			if systemPrompt.Len() > 0 {
				systemPrompt.WriteString("\n")
			}
			systemPrompt.WriteString(m.Content)
		case RoleAssistant:
			chatMessages = append(chatMessages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			chatMessages = append(chatMessages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: defaultAnthropicMaxTokens,
		Messages:  chatMessages,
	}
	if systemPrompt.Len() > 0 {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt.String()}}
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		msg, err := c.client.Messages.New(ctx, params)
		if err != nil {
			return nil, classifyError(ProviderAnthropic, err)
		}
		return msg, nil
	})
	if err != nil {
		return "", nil, err
	}

	msg := result.(*anthropic.Message)
	if len(msg.Content) == 0 {
		return "", nil, &ErrParseFailure{Provider: ProviderAnthropic, Cause: errNoChoices}
	}

	var content strings.Builder
	for _, block := range msg.Content {
		content.WriteString(block.Text)
	}

	usage := &TokenUsage{
		PromptTokens:     int(msg.Usage.InputTokens),
		CompletionTokens: int(msg.Usage.OutputTokens),
		TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
	}
	return content.String(), usage, nil
}

func (c *anthropicClient) TestConnection(ctx context.Context) (ConnectionTestResult, error) {
	ctx, cancel := context.WithTimeout(ctx, ConnectionTestTimeout)
	defer cancel()

	start := time.Now()
	err := retryPing(ctx, func() error {
		_, _, err := c.ChatCompletion(ctx, []Message{{Role: RoleUser, Content: "ping"}}, c.model)
		return err
	})
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return ConnectionTestResult{Success: false, LatencyMs: latency, ErrorMessage: err.Error()}, nil
	}
	return ConnectionTestResult{Success: true, LatencyMs: latency}, nil
}

func (c *anthropicClient) AvailableModels() []ModelInfo {
	return []ModelInfo{
		{ID: "claude-sonnet-4-5", DisplayName: "Claude Sonnet 4.5", MaxTokens: 200000},
		{ID: "claude-haiku-4-5", DisplayName: "Claude Haiku 4.5", MaxTokens: 200000},
	}
}
