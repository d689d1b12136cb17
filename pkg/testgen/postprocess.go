package testgen

import (
	"strings"
	"unicode"
)

const dedupSimilarityThreshold = 0.70

var inferredTagKeywords = []struct {
	tag      string
	keywords []string
}{
	{"api", []string{"api", "endpoint", "rest"}},
	{"ui", []string{"page", "button", "form", "modal", "screen"}},
	{"database", []string{"database", "db", "sql", "query"}},
	{"authentication", []string{"login", "auth", "password", "token"}},
	{"authorization", []string{"permission", "access", "role"}},
}

var actionVerbs = []string{
	"navigate", "go to", "visit", "open", "close",
	"click", "press", "select", "choose",
	"enter", "type", "input", "fill", "set",
	"verify", "check", "validate", "confirm", "assert",
	"wait", "pause", "sleep",
	"submit", "send", "post", "get", "delete", "put",
	"create", "add", "remove", "update",
}

// PostProcess applies tag/priority defaults, description formatting, and
// actionable-step filtering to each case, then deduplicates the set.
func PostProcess(cases []GeneratedTestCase, ticketType string) []GeneratedTestCase {
	for i := range cases {
		addDefaultTags(&cases[i], ticketType)
		assignDefaultPriority(&cases[i], ticketType)
		formatDescription(&cases[i])
		filterActionableSteps(&cases[i])
	}
	return deduplicate(cases)
}

func hasTagCI(tags []string, tag string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

func addDefaultTags(tc *GeneratedTestCase, ticketType string) {
	typeLower := strings.ToLower(ticketType)

	if !hasTagCI(tc.Tags, typeLower) {
		tc.Tags = append(tc.Tags, typeLower)
	}
	if tc.Category != "" && !hasTagCI(tc.Tags, tc.Category) {
		tc.Tags = append(tc.Tags, tc.Category)
	}
	if (typeLower == "bug" || typeLower == "defect") && !hasTagCI(tc.Tags, "regression") {
		tc.Tags = append(tc.Tags, "regression")
	}

	contentLower := strings.ToLower(tc.Title + " " + tc.Description)
	for _, entry := range inferredTagKeywords {
		if hasTagCI(tc.Tags, entry.tag) {
			continue
		}
		for _, kw := range entry.keywords {
			if strings.Contains(contentLower, kw) {
				tc.Tags = append(tc.Tags, entry.tag)
				break
			}
		}
	}
}

func assignDefaultPriority(tc *GeneratedTestCase, ticketType string) {
	typeLower := strings.ToLower(ticketType)
	priorityLower := strings.ToLower(tc.Priority)

	if _, ok := validPriorities[capitalized(priorityLower)]; priorityLower == "" || !ok {
		switch typeLower {
		case "bug", "defect":
			tc.Priority = "Critical"
		case "story", "feature", "enhancement":
			tc.Priority = "High"
		default:
			tc.Priority = "Medium"
		}
	}
}

func capitalized(lower string) string {
	switch lower {
	case "critical":
		return "Critical"
	case "high":
		return "High"
	case "medium":
		return "Medium"
	case "low":
		return "Low"
	default:
		return lower
	}
}

func formatDescription(tc *GeneratedTestCase) {
	tc.Title = capitalizeFirst(strings.TrimSpace(tc.Title))
	tc.Description = capitalizeFirst(strings.TrimSpace(tc.Description))
	tc.ExpectedResult = capitalizeFirst(strings.TrimSpace(tc.ExpectedResult))
}

func capitalizeFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// filterActionableSteps keeps steps that either begin with a recognized
// action verb or carry enough detail (>=10 chars); this is deliberately
// lenient to avoid dropping too many model-written steps.
func filterActionableSteps(tc *GeneratedTestCase) {
	kept := tc.Steps[:0]
	for _, step := range tc.Steps {
		trimmed := strings.TrimSpace(step)
		if trimmed == "" {
			continue
		}
		lower := strings.ToLower(trimmed)
		startsWithAction := false
		for _, verb := range actionVerbs {
			if strings.HasPrefix(lower, verb) {
				startsWithAction = true
				break
			}
		}
		hasDetail := len(trimmed) >= 10
		if startsWithAction || hasDetail {
			kept = append(kept, trimmed)
		}
	}
	tc.Steps = kept
}

// deduplicate drops any candidate whose title or normalized step sequence
// is at least dedupSimilarityThreshold similar to an already-kept case.
func deduplicate(cases []GeneratedTestCase) []GeneratedTestCase {
	if len(cases) == 0 {
		return cases
	}

	unique := make([]GeneratedTestCase, 0, len(cases))
	for _, candidate := range cases {
		duplicate := false
		for _, existing := range unique {
			titleSim := similarity(strings.ToLower(candidate.Title), strings.ToLower(existing.Title))
			stepsSim := similarity(normalizeStepsForComparison(candidate.Steps), normalizeStepsForComparison(existing.Steps))
			if titleSim >= dedupSimilarityThreshold || stepsSim >= dedupSimilarityThreshold {
				duplicate = true
				break
			}
		}
		if !duplicate {
			unique = append(unique, candidate)
		}
	}
	return unique
}

func normalizeStepsForComparison(steps []string) string {
	parts := make([]string, len(steps))
	for i, s := range steps {
		parts[i] = strings.TrimSpace(strings.ToLower(s))
	}
	return strings.Join(parts, " ")
}
