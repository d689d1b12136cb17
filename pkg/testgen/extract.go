package testgen

import (
	"encoding/json"
	"strings"

	"github.com/sirupsen/logrus"
)

// ExtractTestCases locates the JSON array within a model response (which
// may be wrapped in markdown fences or preceded/followed by prose),
// decodes it, then normalizes and validates each case. If no JSON array
// can be parsed, it falls back to the text parser, which returns (nil,
// nil) — a deliberate "no cases, not an error" outcome rather than
// best-effort text extraction.
func ExtractTestCases(content string, log *logrus.Logger) ([]GeneratedTestCase, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")

	if start >= 0 && end >= start {
		jsonStr := content[start : end+1]
		var cases []GeneratedTestCase
		if err := json.Unmarshal([]byte(jsonStr), &cases); err == nil {
			log.WithField("count", len(cases)).Debug("parsed test cases from JSON response")

			for i := range cases {
				Normalize(&cases[i])
			}

			valid := cases[:0]
			for _, tc := range cases {
				if Validate(tc, log) {
					valid = append(valid, tc)
				}
			}
			log.WithField("count", len(valid)).Debug("test cases remaining after validation")
			return valid, nil
		} else {
			log.WithField("error", err.Error()).Warn("failed to parse JSON response, falling back to text parsing")
		}
	}

	return parseFromText(content, log)
}

// parseFromText is the fallback path when JSON extraction fails. It
// returns (nil, nil): no test cases, no error. Grounded on the original
// implementation's parse_test_cases_from_text, an explicit stub that
// returns an empty result rather than attempting best-effort recovery.
func parseFromText(_ string, log *logrus.Logger) ([]GeneratedTestCase, error) {
	log.Warn("text-based parsing not implemented, returning empty result")
	return nil, nil
}
