package triage

import (
	"strings"
	"unicode"
)

// Normalize lower-cases text, replaces anything that is not a letter or
// digit with a space, and collapses runs of whitespace. Matching and
// keyword storage both go through this so containment checks line up.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// TaxonomyMatch is one matched category with the keywords that hit.
type TaxonomyMatch struct {
	Category string
	Keywords []string
}

// MatchTaxonomy returns every rule with at least one keyword found as a
// substring of the normalized text, in rule declaration order. Multi-label:
// a text may match any number of categories. Empty or whitespace-only text
// matches nothing; that is a valid result, not an error.
func MatchTaxonomy(normalized string, rules []TaxonomyRule) []TaxonomyMatch {
	if normalized == "" {
		return nil
	}

	var matches []TaxonomyMatch
	for _, rule := range rules {
		var hits []string
		for _, kw := range rule.Keywords {
			if kw != "" && strings.Contains(normalized, kw) {
				hits = append(hits, kw)
			}
		}
		if len(hits) > 0 {
			matches = append(matches, TaxonomyMatch{Category: rule.ID, Keywords: hits})
		}
	}
	return matches
}
