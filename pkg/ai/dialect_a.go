package ai

import (
	"context"
	"time"

	"github.com/pkoukk/tiktoken-go"
	"github.com/sony/gobreaker"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// openAICompatibleClient implements Provider for the OpenAI wire dialect,
// shared by the OpenAI, Deepseek, Zai, and Custom providers. Each differs
// only in base URL and default model; the request/response shape
// ({model, messages, max_tokens} -> {choices:[{message}], usage}) is common.
type openAICompatibleClient struct {
	provider ProviderType
	model    string
	llm      *openai.LLM
	breaker  *gobreaker.CircuitBreaker
	encoding *tiktoken.Tiktoken
}

// NewOpenAICompatibleProvider builds a Provider for any of the providers
// sharing the OpenAI-compatible dialect: OpenAI, Deepseek, Zai, or Custom.
func NewOpenAICompatibleProvider(cfg Config) (Provider, error) {
	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, &ErrNetwork{Provider: cfg.Provider, Cause: err}
	}

	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		enc = nil
	}

	return &openAICompatibleClient{
		provider: cfg.Provider,
		model:    cfg.Model,
		llm:      llm,
		breaker:  newBreaker(string(cfg.Provider)),
		encoding: enc,
	}, nil
}

func (c *openAICompatibleClient) ChatCompletion(ctx context.Context, messages []Message, model string) (string, *TokenUsage, error) {
	ctx, cancel := context.WithTimeout(ctx, ChatCompletionTimeout)
	defer cancel()

	if model == "" {
		model = c.model
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.llm.GenerateContent(ctx, toLangchainMessages(messages), llms.WithModel(model))
		if err != nil {
			return nil, classifyError(c.provider, err)
		}
		if len(resp.Choices) == 0 {
			return nil, &ErrParseFailure{Provider: c.provider, Cause: errNoChoices}
		}
		return resp.Choices[0], nil
	})
	if err != nil {
		return "", nil, err
	}

	choice := result.(*llms.ContentChoice)
	content := choice.Content
	usage := usageFromGenerationInfo(choice.GenerationInfo)
	if usage == nil {
		usage = c.estimateUsage(messages, content)
	}
	return content, usage, nil
}

func (c *openAICompatibleClient) TestConnection(ctx context.Context) (ConnectionTestResult, error) {
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

func (c *openAICompatibleClient) AvailableModels() []ModelInfo {
	switch c.provider {
	case ProviderOpenAI:
		return []ModelInfo{
			{ID: "gpt-4o", DisplayName: "GPT-4o", MaxTokens: 128000},
			{ID: "gpt-4o-mini", DisplayName: "GPT-4o mini", MaxTokens: 128000},
		}
	case ProviderDeepseek:
		return []ModelInfo{{ID: "deepseek-chat", DisplayName: "DeepSeek Chat", MaxTokens: 64000}}
	case ProviderZai:
		return []ModelInfo{{ID: "glm-4", DisplayName: "GLM-4", MaxTokens: 128000}}
	default:
		return []ModelInfo{{ID: c.model, DisplayName: c.model, MaxTokens: 32000}}
	}
}

func (c *openAICompatibleClient) estimateUsage(messages []Message, completion string) *TokenUsage {
	if c.encoding == nil {
		return &TokenUsage{Estimated: true}
	}
	prompt := 0
	for _, m := range messages {
		prompt += len(c.encoding.Encode(m.Content, nil, nil))
	}
	comp := len(c.encoding.Encode(completion, nil, nil))
	return &TokenUsage{PromptTokens: prompt, CompletionTokens: comp, TotalTokens: prompt + comp, Estimated: true}
}

func toLangchainMessages(messages []Message) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		out = append(out, llms.TextParts(toLangchainRole(m.Role), m.Content))
	}
	return out
}

func toLangchainRole(role Role) llms.ChatMessageType {
	switch role {
	case RoleSystem:
		return llms.ChatMessageTypeSystem
	case RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}

func usageFromGenerationInfo(info map[string]interface{}) *TokenUsage {
	if info == nil {
		return nil
	}
	prompt, ok1 := info["PromptTokens"].(int)
	completion, ok2 := info["CompletionTokens"].(int)
	total, ok3 := info["TotalTokens"].(int)
	if !ok1 && !ok2 && !ok3 {
		return nil
	}
	return &TokenUsage{PromptTokens: prompt, CompletionTokens: completion, TotalTokens: total}
}
