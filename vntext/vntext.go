// Package vntext holds the Vietnamese text primitives shared by every
// pipeline stage: normalisation, diacritic handling and fuzzy matching.
package vntext

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var spaceRe = regexp.MustCompile(`\s+`)

// Normalize applies NFC, lowercases and collapses whitespace.
func Normalize(s string) string {
	s = norm.NFC.String(s)
	s = strings.ToLower(s)
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// StripDiacritics removes Vietnamese tone and vowel marks, mapping đ to d.
// The result is NFC and keeps the input's case.
func StripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.NewReplacer("đ", "d", "Đ", "D").Replace(out)
}

// Fold is Normalize followed by StripDiacritics; it is the comparison key
// used for accent-insensitive matching.
func Fold(s string) string {
	return StripDiacritics(Normalize(s))
}

// HasDiacritics reports whether any rune in s carries a Vietnamese mark.
func HasDiacritics(s string) bool {
	for _, r := range s {
		if isMarked(r) {
			return true
		}
	}
	return false
}

// DiacriticRatio returns the fraction of letters in s that carry a mark.
func DiacriticRatio(s string) float64 {
	letters, marked := 0, 0
	for _, r := range s {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if isMarked(r) {
			marked++
		}
	}
	if letters == 0 {
		return 0
	}
	return float64(marked) / float64(letters)
}

// LooksUnaccented reports whether s appears to have been typed without
// diacritics (under 5% of its letters are marked).
func LooksUnaccented(s string) bool {
	return DiacriticRatio(s) < 0.05
}

func isMarked(r rune) bool {
	if r == 'đ' || r == 'Đ' {
		return true
	}
	if r < 0x80 {
		return false
	}
	return StripDiacritics(string(r)) != string(r)
}

var punctRe = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// Key lowercases s and removes punctuation and whitespace entirely. Two
// narratives whose keys match are treated as the same sentence.
func Key(s string) string {
	return punctRe.ReplaceAllString(Normalize(s), "")
}

// Words splits s into lowercase word tokens, dropping punctuation.
func Words(s string) []string {
	return strings.Fields(punctRe.ReplaceAllString(Normalize(s), " "))
}

// ContainsPhrase reports whether phrase occurs in text on word boundaries.
// Both arguments are compared after Normalize.
func ContainsPhrase(text, phrase string) bool {
	return IndexPhrase(Words(text), Words(phrase)) >= 0
}

// IndexPhrase returns the word offset of phrase in words, or -1.
func IndexPhrase(words, phrase []string) int {
	if len(phrase) == 0 || len(phrase) > len(words) {
		return -1
	}
outer:
	for i := 0; i+len(phrase) <= len(words); i++ {
		for j, p := range phrase {
			if words[i+j] != p {
				continue outer
			}
		}
		return i
	}
	return -1
}

// ReplacePhrase substitutes every occurrence of from in text that sits on
// word boundaries. Both are expected to be normalised already.
func ReplacePhrase(text, from, to string) (string, bool) {
	if from == "" {
		return text, false
	}
	var b strings.Builder
	changed := false
	i := 0
	for i < len(text) {
		j := strings.Index(text[i:], from)
		if j < 0 {
			break
		}
		j += i
		end := j + len(from)
		if boundaryBefore(text, j) && boundaryAfter(text, end) {
			b.WriteString(text[i:j])
			b.WriteString(to)
			i = end
			changed = true
			continue
		}
		_, size := utf8.DecodeRuneInString(text[j:])
		b.WriteString(text[i : j+size])
		i = j + size
	}
	if !changed {
		return text, false
	}
	b.WriteString(text[i:])
	return b.String(), true
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !isWordRune(r)
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool { return unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.Is(unicode.Mn, r) }

// Token is a word of a text with its byte offsets.
type Token struct {
	Text       string
	Start, End int
}

var wordRe = regexp.MustCompile(`[\p{L}\p{M}\p{N}]+`)

// Tokenize returns the words of s with their positions in s.
func Tokenize(s string) []Token {
	locs := wordRe.FindAllStringIndex(s, -1)
	out := make([]Token, len(locs))
	for i, l := range locs {
		out[i] = Token{Text: s[l[0]:l[1]], Start: l[0], End: l[1]}
	}
	return out
}

// Title capitalises the first letter of each word of a canonical name.
func Title(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}
