package eval

import (
	"strings"

	"github.com/brunobiangulo/historymind"
	"github.com/brunobiangulo/historymind/vntext"
)

// containsFact reports whether text mentions fact or one of its
// "|"-separated alternatives. Matching is case-insensitive, and falls back
// to accent-insensitive matching.
func containsFact(text, fact string) bool {
	norm := vntext.Normalize(stripMarkup(text))
	folded := vntext.StripDiacritics(norm)
	for _, alt := range strings.Split(fact, "|") {
		alt = vntext.Normalize(alt)
		if alt == "" {
			continue
		}
		if strings.Contains(norm, alt) || strings.Contains(folded, vntext.StripDiacritics(alt)) {
			return true
		}
	}
	return false
}

// stripMarkup removes markdown emphasis so "**1954**" matches "1954".
func stripMarkup(s string) string {
	return strings.NewReplacer("**", "", "__", "", "`", "").Replace(s)
}

// computeFactRecall is the fraction of expected facts found in the answer.
// No expectations scores 1.
func computeFactRecall(answer *historymind.Answer, facts []string) float64 {
	if len(facts) == 0 {
		return 1
	}
	if answer == nil || answer.Text == "" {
		return 0
	}
	found := 0
	for _, f := range facts {
		if containsFact(answer.Text, f) {
			found++
		}
	}
	return float64(found) / float64(len(facts))
}

// forbiddenHits returns the forbidden facts present in the answer.
func forbiddenHits(answer *historymind.Answer, facts []string) []string {
	if answer == nil {
		return nil
	}
	var hits []string
	for _, f := range facts {
		if containsFact(answer.Text, f) {
			hits = append(hits, f)
		}
	}
	return hits
}

// computeSourceRecall is the fraction of expected record ids among the
// answer's sources. No expectations scores 1.
func computeSourceRecall(answer *historymind.Answer, ids []string) float64 {
	if len(ids) == 0 {
		return 1
	}
	if answer == nil {
		return 0
	}
	have := make(map[string]bool, len(answer.Sources))
	for _, s := range answer.Sources {
		have[s.ID] = true
	}
	found := 0
	for _, id := range ids {
		if have[id] {
			found++
		}
	}
	return float64(found) / float64(len(ids))
}

// severityOf names the verifier's verdict, or "NONE" for answers that were
// not verified (canned, identity, conflict and empty results).
func severityOf(answer *historymind.Answer) string {
	if answer == nil || answer.Verification == nil {
		return "NONE"
	}
	return answer.Verification.Severity.String()
}
