package testgen

import (
	"strings"

	"github.com/sirupsen/logrus"
)

var priorityAliases = map[string]string{
	"critical": "Critical", "p0": "Critical", "blocker": "Critical",
	"high": "High", "p1": "High", "major": "High",
	"medium": "Medium", "p2": "Medium", "normal": "Medium",
	"low": "Low", "p3": "Low", "minor": "Low", "trivial": "Low",
}

// categoryKeywords infers a category from test case content when the
// model omits or misformats one.
var categoryKeywords = []struct {
	category string
	keywords []string
}{
	{"negative", []string{"invalid", "error", "fail"}},
	{"edge_case", []string{"edge", "boundary", "limit"}},
	{"security", []string{"security", "auth", "permission"}},
	{"integration", []string{"integration", "api", "service"}},
	{"performance", []string{"performance", "load", "stress"}},
}

// Normalize fixes common value issues in place: priority is mapped to its
// canonical form, category is lowercased and inferred from content if
// invalid, and step whitespace is cleaned up.
func Normalize(tc *GeneratedTestCase) {
	if canonical, ok := priorityAliases[strings.ToLower(tc.Priority)]; ok {
		tc.Priority = canonical
	} else if _, ok := validPriorities[tc.Priority]; !ok {
		tc.Priority = "Medium"
	}

	tc.Category = strings.ToLower(tc.Category)
	if _, ok := validCategories[tc.Category]; !ok {
		contentLower := strings.ToLower(tc.Title + " " + tc.Description)
		tc.Category = "positive"
		for _, ck := range categoryKeywords {
			for _, kw := range ck.keywords {
				if strings.Contains(contentLower, kw) {
					tc.Category = ck.category
					goto categorized
				}
			}
		}
	categorized:
	}

	steps := tc.Steps[:0]
	for _, step := range tc.Steps {
		trimmed := strings.TrimSpace(step)
		if trimmed != "" {
			steps = append(steps, trimmed)
		}
	}
	tc.Steps = steps
}

// Validate reports whether tc satisfies the required-field and
// enumeration constraints, logging the reason for any rejection. A case
// with fewer than 2 steps is accepted with a logged warning.
func Validate(tc GeneratedTestCase, log *logrus.Logger) bool {
	if log == nil {
		log = logrus.StandardLogger()
	}

	if strings.TrimSpace(tc.Title) == "" {
		log.Warn("test case missing title")
		return false
	}
	if strings.TrimSpace(tc.Description) == "" {
		log.WithField("title", tc.Title).Warn("test case missing description")
		return false
	}
	if len(tc.Steps) == 0 {
		log.WithField("title", tc.Title).Warn("test case missing steps")
		return false
	}
	for _, step := range tc.Steps {
		if strings.TrimSpace(step) == "" {
			log.WithField("title", tc.Title).Warn("test case has empty steps")
			return false
		}
	}
	if len(tc.Steps) < 2 {
		log.WithField("title", tc.Title).Warn("test case has fewer than 2 steps")
	}
	if strings.TrimSpace(tc.ExpectedResult) == "" {
		log.WithField("title", tc.Title).Warn("test case missing expected result")
		return false
	}
	if _, ok := validPriorities[tc.Priority]; !ok {
		log.WithFields(logrus.Fields{"title": tc.Title, "priority": tc.Priority}).Warn("test case has invalid priority after normalization")
		return false
	}
	if _, ok := validCategories[tc.Category]; !ok {
		log.WithFields(logrus.Fields{"title": tc.Title, "category": tc.Category}).Warn("test case has invalid category")
		return false
	}

	if err := structValidator.Struct(tc); err != nil {
		log.WithFields(logrus.Fields{"title": tc.Title, "error": err.Error()}).Warn("test case failed struct validation")
		return false
	}

	return true
}
