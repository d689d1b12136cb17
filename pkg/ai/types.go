// Package ai provides a uniform chat-completion contract over several
// remote model providers, each speaking one of two wire dialects, behind a
// common circuit-breaker-guarded transport.
package ai

import "time"

// ProviderType names a configured backend. OpenAI, Deepseek, and Zai share
// the OpenAI-compatible dialect; Anthropic speaks its own; Custom is a
// caller-supplied base URL using the OpenAI-compatible dialect.
type ProviderType string

const (
	ProviderOpenAI    ProviderType = "openai"
	ProviderAnthropic ProviderType = "anthropic"
	ProviderDeepseek  ProviderType = "deepseek"
	ProviderZai       ProviderType = "zai"
	ProviderCustom    ProviderType = "custom"
)

// Role is a chat message's speaker.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn in a chat completion request.
type Message struct {
	Role    Role
	Content string
}

// TokenUsage reports token counts for a completion, either reported by the
// provider or, when omitted, estimated locally.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Estimated        bool
}

// ModelInfo describes one model a provider exposes.
type ModelInfo struct {
	ID          string
	DisplayName string
	MaxTokens   int
}

// ConnectionTestResult reports the outcome of a provider connectivity probe.
type ConnectionTestResult struct {
	Success      bool
	LatencyMs    int64
	ErrorMessage string
}

// Config configures a single provider client.
type Config struct {
	Provider ProviderType
	APIKey   string
	BaseURL  string
	Model    string
}

const (
	ConnectionTestTimeout = 30 * time.Second
	ChatCompletionTimeout = 60 * time.Second
	HealthPingTimeout     = 10 * time.Second
)
