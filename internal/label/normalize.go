// Package label normalizes free-text labels (certifications, program
// categories, target groups) before table lookups.
package label

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Normalize applies NFKC, case folding and whitespace collapsing. The result
// is suitable for exact-match keys and substring checks.
func Normalize(s string) string {
	s = norm.NFKC.String(s)
	s = cases.Fold().String(s)
	return strings.Join(strings.Fields(s), " ")
}

// ContainsAll reports whether every keyword occurs in the normalized text.
// An empty keyword list never matches.
func ContainsAll(text string, keywords ...string) bool {
	if len(keywords) == 0 {
		return false
	}
	for _, k := range keywords {
		if !strings.Contains(text, k) {
			return false
		}
	}
	return true
}

// ContainsAny reports whether at least one keyword occurs in the text.
func ContainsAny(text string, keywords ...string) bool {
	for _, k := range keywords {
		if k != "" && strings.Contains(text, k) {
			return true
		}
	}
	return false
}
