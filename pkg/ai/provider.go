package ai

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jordigilh/qa-intelligence/pkg/metrics"
)

// Provider is the uniform contract every backend (OpenAI, Anthropic,
// Deepseek, Zai, Custom) satisfies, regardless of wire dialect.
type Provider interface {
	ChatCompletion(ctx context.Context, messages []Message, model string) (string, *TokenUsage, error)
	TestConnection(ctx context.Context) (ConnectionTestResult, error)
	AvailableModels() []ModelInfo
}

// errNoChoices marks a provider response that parsed successfully but
// contained no completion choices.
var errNoChoices = errors.New("provider response contained no choices")

// classifyError maps a low-level transport error into the AI error
// taxonomy. Network errors are distinguished from HTTP status errors by
// substring since the underlying SDKs don't expose a structured status
// code uniformly across dialects.
func classifyError(provider ProviderType, err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "401") || strings.Contains(msg, "unauthorized"):
		return &ErrInvalidAPIKey{Provider: provider}
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit"):
		return &ErrRateLimited{Provider: provider}
	case strings.Contains(msg, "deadline exceeded") || strings.Contains(msg, "timeout"):
		return &ErrTimeout{Provider: provider, Op: "chat completion"}
	case strings.Contains(msg, "connection refused") || strings.Contains(msg, "no such host") || strings.Contains(msg, "eof"):
		return &ErrNetwork{Provider: provider, Cause: err}
	default:
		return &ErrRequestFailed{Provider: provider, Status: 0, Body: err.Error()}
	}
}

// Registry dispatches to the configured Provider for each ProviderType.
type Registry struct {
	providers map[ProviderType]Provider
	metrics   *metrics.Metrics
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{providers: map[ProviderType]Provider{}}
}

// WithMetrics attaches m so every Provider registered afterward has its
// ChatCompletion latency and error rate recorded. Returns the Registry for
// chaining; call before Register so the instrumentation wraps every
// provider.
func (r *Registry) WithMetrics(m *metrics.Metrics) *Registry {
	r.metrics = m
	return r
}

// Register attaches a Provider instance for the given type, overwriting any
// previous registration. If metrics were attached via WithMetrics, p is
// wrapped so its ChatCompletion calls are instrumented.
func (r *Registry) Register(t ProviderType, p Provider) {
	if r.metrics != nil {
		p = &instrumentedProvider{Provider: p, providerType: t, metrics: r.metrics}
	}
	r.providers[t] = p
}

// instrumentedProvider decorates a Provider with AI request latency and
// error-rate recording, mirroring how persistingCheck decorates a health.Check
// with persistence rather than baking metrics into every dialect client.
type instrumentedProvider struct {
	Provider
	providerType ProviderType
	metrics      *metrics.Metrics
}

func (p *instrumentedProvider) ChatCompletion(ctx context.Context, messages []Message, model string) (string, *TokenUsage, error) {
	start := time.Now()
	text, usage, err := p.Provider.ChatCompletion(ctx, messages, model)
	p.metrics.RecordAIRequest(string(p.providerType), time.Since(start), err)
	return text, usage, err
}

// Get returns the Provider registered for t, or ErrNotConfigured.
func (r *Registry) Get(t ProviderType) (Provider, error) {
	p, ok := r.providers[t]
	if !ok {
		return nil, &ErrNotConfigured{Provider: t}
	}
	return p, nil
}
