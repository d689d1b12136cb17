// Package testgen assembles prompts for AI-driven test case generation,
// extracts and normalizes the model's JSON response, and post-processes
// the resulting test cases (tagging, priority assignment, deduplication).
package testgen

import "github.com/go-playground/validator/v10"

// TicketDetails carries the ticket fields the prompt is built from.
type TicketDetails struct {
	Key                string
	Title              string
	TicketType         string
	Description        string
	AcceptanceCriteria *string
}

// GeneratedTestCase is one test case extracted from a model response,
// before persistence.
type GeneratedTestCase struct {
	Title          string   `json:"title" validate:"required"`
	Description    string   `json:"description" validate:"required"`
	Preconditions  string   `json:"preconditions"`
	Steps          []string `json:"steps" validate:"required,min=1,dive,required"`
	ExpectedResult string   `json:"expectedResult" validate:"required"`
	Priority       string   `json:"priority"`
	Tags           []string `json:"tags"`
	Category       string   `json:"category"`
}

var validPriorities = map[string]struct{}{
	"Critical": {}, "High": {}, "Medium": {}, "Low": {},
}

var validCategories = map[string]struct{}{
	"positive": {}, "negative": {}, "edge_case": {}, "integration": {}, "security": {}, "performance": {},
}

var structValidator = validator.New()
