package testgen

import "github.com/agnivade/levenshtein"

// similarity scores two strings on a 0..1 scale derived from Levenshtein
// edit distance normalized by the longer string's length.
func similarity(s1, s2 string) float64 {
	if s1 == "" && s2 == "" {
		return 1.0
	}
	if s1 == "" || s2 == "" {
		return 0.0
	}

	distance := levenshtein.ComputeDistance(s1, s2)
	maxLen := len(s1)
	if len(s2) > maxLen {
		maxLen = len(s2)
	}
	return 1.0 - float64(distance)/float64(maxLen)
}
