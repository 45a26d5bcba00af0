package vntext

import "strings"

// Reference thresholds for fuzzy matching.
const (
	ContainsThreshold = 0.85 // keyword containment
	AccentThreshold   = 0.80 // unaccented n-gram restoration
	EntityThreshold   = 0.75 // single-name entity lookup
)

// denyPairs lists near-homographs that must never be treated as equal.
// "nguyên" is the invading Yuan dynasty, "nguyễn" a native surname and dynasty.
var denyPairs = [][2]string{
	{"nguyên", "nguyễn"},
	{"nguyên mông", "nguyễn"},
	{"mông nguyên", "nguyễn"},
}

// Denied reports whether a and b are a denylisted pair in either direction.
// Inputs are normalised; the check looks at word-level occurrences so that
// "quân nguyên" vs "quân nguyễn" is also denied.
func Denied(a, b string) bool {
	a, b = Normalize(a), Normalize(b)
	for _, p := range denyPairs {
		if deniedOneWay(a, b, p[0], p[1]) || deniedOneWay(b, a, p[0], p[1]) {
			return true
		}
	}
	return false
}

func deniedOneWay(a, b, x, y string) bool {
	return ContainsPhrase(a, x) && ContainsPhrase(b, y) && !ContainsPhrase(b, x)
}

// Levenshtein returns the rune-level edit distance between a and b.
func Levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}

// Similarity is 1 - distance/maxlen over normalised inputs, in [0,1].
func Similarity(a, b string) float64 {
	a, b = Normalize(a), Normalize(b)
	if a == b {
		return 1
	}
	n := max(len([]rune(a)), len([]rune(b)))
	if n == 0 {
		return 1
	}
	return 1 - float64(Levenshtein(a, b))/float64(n)
}

// FuzzyEqual reports whether a and b are equal within threshold, honouring
// the denylist regardless of how close the strings are.
func FuzzyEqual(a, b string, threshold float64) bool {
	if Denied(a, b) {
		return false
	}
	if Normalize(a) == Normalize(b) {
		return true
	}
	return Similarity(a, b) >= threshold
}

// FuzzyContains reports whether keyword occurs in text, exactly on word
// boundaries or as a window of the same word count within threshold.
func FuzzyContains(text, keyword string, threshold float64) bool {
	_, ok := FuzzyFind(Words(text), Words(keyword), threshold)
	return ok
}

// FuzzyFind returns the offset of the best window in words matching phrase.
// Exact matches win; otherwise the highest similarity at or above threshold.
func FuzzyFind(words, phrase []string, threshold float64) (int, bool) {
	if i := IndexPhrase(words, phrase); i >= 0 {
		return i, true
	}
	if len(phrase) == 0 || len(phrase) > len(words) {
		return -1, false
	}
	target := strings.Join(phrase, " ")
	best, bestIdx := 0.0, -1
	for i := 0; i+len(phrase) <= len(words); i++ {
		window := strings.Join(words[i:i+len(phrase)], " ")
		if Denied(window, target) {
			continue
		}
		if s := Similarity(window, target); s >= threshold && s > best {
			best, bestIdx = s, i
		}
	}
	return bestIdx, bestIdx >= 0
}
