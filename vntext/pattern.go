package vntext

import (
	"regexp"
	"strings"
)

// Pattern is one expression compiled twice: as written, and with its
// diacritics stripped so that unaccented input matches too. Inputs to
// Find and Match are the normalised text and its StripDiacritics form.
type Pattern struct {
	accented *regexp.Regexp
	folded   *regexp.Regexp
}

// MustCompile compiles src in both forms and panics on a bad expression.
func MustCompile(src string) Pattern {
	return Pattern{
		accented: regexp.MustCompile(src),
		folded:   regexp.MustCompile(StripDiacritics(src)),
	}
}

// Phrases compiles alternatives that must sit on word boundaries. RE2's \b
// only understands ASCII, which breaks on words ending in ô or à.
func Phrases(alts ...string) Pattern {
	return MustCompile(`(?:^|[^\p{L}\p{N}])(?:` + strings.Join(alts, "|") + `)(?:$|[^\p{L}\p{N}])`)
}

// Find returns the submatches of the accented form, else of the folded one.
func (p Pattern) Find(text, folded string) []string {
	if m := p.accented.FindStringSubmatch(text); m != nil {
		return m
	}
	return p.folded.FindStringSubmatch(folded)
}

// Match reports whether either form matches.
func (p Pattern) Match(text, folded string) bool {
	return p.accented.MatchString(text) || p.folded.MatchString(folded)
}

// MatchAny reports whether any of ps matches.
func MatchAny(ps []Pattern, text, folded string) bool {
	for _, p := range ps {
		if p.Match(text, folded) {
			return true
		}
	}
	return false
}
