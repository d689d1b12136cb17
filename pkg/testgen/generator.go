package testgen

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/jordigilh/qa-intelligence/pkg/ai"
)

// Generator drives test-case generation for a ticket end to end: prompt
// assembly, a chat completion against the configured provider, extraction,
// and validation. Post-processing (tags, priority, dedup) is a distinct
// caller-invoked step, mirroring the original two-phase design.
type Generator struct {
	provider ai.Provider
	model    string
	log      *logrus.Logger
}

// NewGenerator builds a Generator against provider, requesting completions
// for model.
func NewGenerator(provider ai.Provider, model string, log *logrus.Logger) *Generator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Generator{provider: provider, model: model, log: log}
}

// GenerateFromTicket builds the prompt for ticket, requests a completion,
// and extracts the resulting test cases.
func (g *Generator) GenerateFromTicket(ctx context.Context, ticket TicketDetails) ([]GeneratedTestCase, error) {
	prompt := BuildPrompt(ticket)

	messages := []ai.Message{
		{Role: ai.RoleSystem, Content: SystemPrompt},
		{Role: ai.RoleUser, Content: prompt},
	}

	g.log.WithField("ticket_key", ticket.Key).Debug("generating test cases for ticket")

	content, _, err := g.provider.ChatCompletion(ctx, messages, g.model)
	if err != nil {
		return nil, err
	}

	return ExtractTestCases(content, g.log)
}
