package testgen

import (
	"fmt"
	"strings"
)

// SystemPrompt is the fixed system message sent ahead of every generation
// request.
const SystemPrompt = `You are an expert QA test case generation specialist. Your expertise includes:
- Analyzing software requirements and bug reports
- Creating comprehensive, actionable test cases
- Identifying edge cases and potential failure scenarios
- Prioritizing test cases based on risk and impact
- Writing clear, verifiable test steps and expected results

Your task is to analyze tickets and generate high-quality test cases that follow best practices:
- Each test case should be independent and executable
- Steps should be sequential, specific, and actionable
- Expected results should be clear and verifiable
- Priority should reflect business risk and technical impact
- Categories and tags should accurately classify the test

Always respond with ONLY a valid JSON array - no markdown formatting, no code blocks, no explanatory text before or after the JSON.`

const bugInstructions = `
Focus on:
- Regression tests to prevent this bug from recurring
- Exact reproduction steps from the bug report
- Edge cases that could trigger similar issues
- Negative test cases to verify the fix
- Security implications if applicable`

const featureInstructions = `
Focus on:
- Test cases for each acceptance criterion explicitly mentioned
- Additional scenarios not explicitly mentioned but implied
- Positive, negative, and edge case scenarios
- Integration points with other features
- User experience and usability aspects`

const genericInstructions = `
Focus on:
- Comprehensive test coverage (positive, negative, edge cases)
- Clear test steps that are actionable and specific
- Verifiable expected results
- Appropriate priority assignment based on risk and impact`

// BuildPrompt assembles the XML-tagged generation prompt for ticket,
// selecting few-shot examples and instruction focus by ticket type.
func BuildPrompt(ticket TicketDetails) string {
	typeLower := strings.ToLower(ticket.TicketType)

	var examples, instructions string
	switch typeLower {
	case "bug", "defect":
		examples = bugTicketExamples
		instructions = bugInstructions
	case "story", "feature", "enhancement":
		examples = featureTicketExamples
		instructions = featureInstructions
	default:
		examples = featureTicketExamples
		instructions = genericInstructions
	}

	var ticketContext strings.Builder
	fmt.Fprintf(&ticketContext, "<ticket_key>%s</ticket_key>\n<title>%s</title>\n<type>%s</type>\n<description>%s</description>",
		ticket.Key, ticket.Title, ticket.TicketType, ticket.Description)
	if ticket.AcceptanceCriteria != nil {
		fmt.Fprintf(&ticketContext, "\n<acceptance_criteria>%s</acceptance_criteria>", *ticket.AcceptanceCriteria)
	}

	return fmt.Sprintf(`Analyze the following ticket and generate comprehensive test cases.

<ticket>
%s
</ticket>

<instructions>
%s

Generate 8-12 test cases covering:
- Positive scenarios (happy path)
- Negative scenarios (error handling, invalid inputs)
- Edge cases (boundary conditions, unusual inputs)
- Integration scenarios (if applicable)
- Security scenarios (if applicable)

Test case requirements:
- Each test case must have a clear, descriptive title
- Steps must be actionable, specific, and sequential
- Expected results must be verifiable and clear
- Priority should reflect risk (Critical for bugs blocking functionality, High for core features, Medium for nice-to-have, Low for cosmetic)
- Tags should categorize the test (e.g., login, api, ui, performance, security)
- Category should be one of: positive, negative, edge_case, integration, security, performance
</instructions>

<examples>
%s
</examples>

<json_schema>
%s
</json_schema>

<output_requirements>
1. Respond ONLY with a valid JSON array (no markdown, no code blocks, no explanatory text)
2. The JSON array must contain between 8-12 test case objects
3. Each test case must conform exactly to the JSON schema provided
4. All required fields must be present and non-empty
5. Steps array must contain at least 2 steps
6. Priority must be exactly one of: Critical, High, Medium, Low (case-sensitive)
7. Category must be exactly one of: positive, negative, edge_case, integration, security, performance
8. Tags array can be empty but should ideally contain 2-5 relevant tags
</output_requirements>

Generate the test cases now:`, ticketContext.String(), instructions, examples, jsonSchemaSpecification)
}

const jsonSchemaSpecification = `The response must be a JSON array of test case objects. Each test case object must have the following structure:

{
  "title": string (required, non-empty) - Clear, concise test case title
  "description": string (required, non-empty) - Detailed description of what the test verifies
  "preconditions": string (optional, can be empty) - Prerequisites that must be met before executing test steps
  "steps": array<string> (required, minimum 2 items) - Sequential, actionable test steps
  "expectedResult": string (required, non-empty) - Clear, verifiable expected outcome after executing all steps
  "priority": string (required) - One of: "Critical", "High", "Medium", "Low" (case-sensitive)
  "tags": array<string> (optional, can be empty) - 0-5 relevant tags for categorization
  "category": string (required) - One of: "positive", "negative", "edge_case", "integration", "security", "performance"
}`

const bugTicketExamples = `<example>
<ticket_type>Bug</ticket_type>
<ticket_title>Login page shows error when submitting with empty password field</ticket_title>
<description>The login page does not properly validate empty password field and shows a generic error instead of a specific validation message.</description>
<generated_test_cases>
[
  {
    "title": "Verify empty password field shows validation error",
    "description": "Test that submitting login form with empty password field displays proper validation error message",
    "preconditions": "User is on the login page, username field is populated",
    "steps": ["Navigate to login page", "Enter valid username in username field", "Leave password field empty", "Click login button"],
    "expectedResult": "A validation error message 'Password is required' is displayed below the password field, login is not processed",
    "priority": "High",
    "tags": ["login", "validation", "regression"],
    "category": "negative"
  },
  {
    "title": "Verify login works correctly with valid credentials after fixing empty password bug",
    "description": "Regression test to ensure valid login still works after fix",
    "preconditions": "User has valid account credentials",
    "steps": ["Navigate to login page", "Enter valid username", "Enter valid password", "Click login button"],
    "expectedResult": "User is successfully logged in and redirected to dashboard",
    "priority": "Critical",
    "tags": ["login", "regression", "positive"],
    "category": "positive"
  }
]
</generated_test_cases>
</example>`

const featureTicketExamples = `<example>
<ticket_type>Feature</ticket_type>
<ticket_title>Add two-factor authentication (2FA) for user login</ticket_title>
<description>Implement two-factor authentication using TOTP to enhance account security.</description>
<acceptance_criteria>
- User can enable 2FA from account settings page
- Login requires both password and 6-digit code from authenticator
</acceptance_criteria>
<generated_test_cases>
[
  {
    "title": "Verify user can enable 2FA from account settings",
    "description": "Test that user can successfully enable two-factor authentication from settings page",
    "preconditions": "User is logged in and navigated to account settings page",
    "steps": ["Navigate to Security section in account settings", "Click 'Enable Two-Factor Authentication' button", "Scan QR code with authenticator app", "Enter 6-digit code from authenticator"],
    "expectedResult": "2FA is enabled successfully, backup codes are displayed",
    "priority": "High",
    "tags": ["2fa", "security", "settings", "authentication"],
    "category": "positive"
  },
  {
    "title": "Verify login fails with invalid 2FA code",
    "description": "Test that login is rejected when incorrect 2FA code is entered",
    "preconditions": "User has 2FA enabled, user is on login page and has entered valid username/password",
    "steps": ["Enter username and password", "Click login", "Enter incorrect 6-digit code", "Click verify"],
    "expectedResult": "Error message 'Invalid authentication code' is displayed, user is not logged in",
    "priority": "High",
    "tags": ["2fa", "login", "security", "error-handling"],
    "category": "negative"
  }
]
</generated_test_cases>
</example>`
