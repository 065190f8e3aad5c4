package triage

import "strings"

// SeverityResult is the outcome of scoring one text against the severity rules.
type SeverityResult struct {
	Score   int
	Band    string
	Matched []string
}

// ScoreSeverity tests every severity rule with the same containment check as
// the taxonomy matcher and picks the matching rule with the highest score.
// Ties go to the first-declared band. Matched holds only the keywords that
// hit within the winning rule. No match yields score 0 and BandNone.
func ScoreSeverity(normalized string, rules []SeverityRule) SeverityResult {
	best := SeverityResult{Score: 0, Band: BandNone}
	found := false

	if normalized == "" {
		return best
	}

	for _, rule := range rules {
		var hits []string
		for _, kw := range rule.Keywords {
			if kw != "" && strings.Contains(normalized, kw) {
				hits = append(hits, kw)
			}
		}
		if len(hits) == 0 {
			continue
		}
		// strict > keeps the first-declared band on ties
		if !found || rule.Score > best.Score {
			best = SeverityResult{Score: rule.Score, Band: rule.Band, Matched: hits}
			found = true
		}
	}
	return best
}
