// Package nlu rewrites raw user questions into a canonical primary query
// plus a small set of search variants.
package nlu

import (
	"log/slog"
	"strings"

	"github.com/brunobiangulo/historymind/kb"
	"github.com/brunobiangulo/historymind/vntext"
)

// Correction records one change the rewriter applied to the query.
type Correction struct {
	Kind string `json:"kind"` // typo, abbreviation, accent, fuzzy_accent, filler
	From string `json:"from"`
	To   string `json:"to"`
}

// Result is the output of Rewrite.
type Result struct {
	Original    string       `json:"original"`
	Primary     string       `json:"primary"`
	Variants    []string     `json:"variants,omitempty"`
	Corrections []Correction `json:"corrections,omitempty"`
}

// Options tunes the rewriter.
type Options struct {
	AccentThreshold float64 `json:"accent_threshold" yaml:"accent_threshold" mapstructure:"accent_threshold"`
	MinFuzzyRunes   int     `json:"min_fuzzy_runes" yaml:"min_fuzzy_runes" mapstructure:"min_fuzzy_runes"`
	MaxNGram        int     `json:"max_ngram" yaml:"max_ngram" mapstructure:"max_ngram"`
	MaxVariants     int     `json:"max_variants" yaml:"max_variants" mapstructure:"max_variants"`
	MaxPhonetic     int     `json:"max_phonetic" yaml:"max_phonetic" mapstructure:"max_phonetic"`
}

// DefaultOptions returns the reference thresholds.
func DefaultOptions() Options {
	return Options{
		AccentThreshold: vntext.AccentThreshold,
		MinFuzzyRunes:   4,
		MaxNGram:        5,
		MaxVariants:     6,
		MaxPhonetic:     3,
	}
}

// Rewriter applies the knowledge-base correction tables to questions.
// It holds only read-only state and is safe for concurrent use.
type Rewriter struct {
	snap     *kb.Snapshot
	opts     Options
	typoKeys []string
	abbrKeys []string
	fillers  []string
	byWords  map[int][]string // unaccented keys grouped by word count
}

// NewRewriter prepares the ordered substitution tables from snap.
func NewRewriter(snap *kb.Snapshot, opts Options) *Rewriter {
	k := snap.Knowledge()
	r := &Rewriter{
		snap:     snap,
		opts:     opts,
		typoKeys: keysOf(k.TypoFixes),
		abbrKeys: keysOf(k.Abbreviations),
		byWords:  make(map[int][]string),
	}
	for _, f := range k.Fillers {
		r.fillers = append(r.fillers, f)
		if folded := vntext.StripDiacritics(f); folded != f {
			r.fillers = append(r.fillers, folded)
		}
	}
	kb.SortLongestFirst(r.fillers)
	for _, key := range snap.UnaccentedKeys() {
		n := len(vntext.Words(key))
		r.byWords[n] = append(r.byWords[n], key)
	}
	return r
}

func keysOf(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	kb.SortLongestFirst(keys)
	return keys
}

// Rewrite normalises raw and returns the primary query and its variants.
// It never fails; an empty input yields an empty primary.
func (r *Rewriter) Rewrite(raw string) Result {
	res := Result{Original: raw}
	text := vntext.Normalize(raw)

	k := r.snap.Knowledge()
	for _, key := range r.typoKeys {
		if out, ok := vntext.ReplacePhrase(text, key, k.TypoFixes[key]); ok {
			res.Corrections = append(res.Corrections, Correction{Kind: "typo", From: key, To: k.TypoFixes[key]})
			text = out
		}
	}
	for _, key := range r.abbrKeys {
		if out, ok := vntext.ReplacePhrase(text, key, k.Abbreviations[key]); ok {
			res.Corrections = append(res.Corrections, Correction{Kind: "abbreviation", From: key, To: k.Abbreviations[key]})
			text = out
		}
	}

	var ambiguous [][2]string
	if text != "" && vntext.LooksUnaccented(text) {
		text, ambiguous = r.restoreAccents(text, &res)
	}

	for _, f := range r.fillers {
		if out, ok := vntext.ReplacePhrase(text, f, ""); ok {
			res.Corrections = append(res.Corrections, Correction{Kind: "filler", From: f})
			text = out
		}
	}
	text = tidy(text)
	res.Primary = text
	res.Variants = r.variants(text, ambiguous)

	if len(res.Corrections) > 0 {
		slog.Debug("nlu: rewrite", "original", raw, "primary", res.Primary,
			"corrections", len(res.Corrections), "variants", len(res.Variants))
	}
	return res
}

// restoreAccents replaces unambiguous stripped phrases with their accented
// form and then repairs near-miss n-grams. Ambiguous phrases are returned
// as (phrase, form) pairs for variant generation.
func (r *Rewriter) restoreAccents(text string, res *Result) (string, [][2]string) {
	var ambiguous [][2]string
	for _, key := range r.snap.UnaccentedKeys() {
		forms := r.snap.Unaccented(key)
		if !vntext.ContainsPhrase(text, key) {
			continue
		}
		if len(forms) != 1 {
			for _, f := range forms {
				ambiguous = append(ambiguous, [2]string{key, f})
			}
			continue
		}
		if out, ok := vntext.ReplacePhrase(text, key, forms[0]); ok {
			res.Corrections = append(res.Corrections, Correction{Kind: "accent", From: key, To: forms[0]})
			text = out
		}
	}
	return r.fuzzyRestore(text, res), ambiguous
}

// fuzzyRestore scans n-grams from the longest down, comparing windows made
// only of unaccented tokens against the stripped keys of the same length.
func (r *Rewriter) fuzzyRestore(text string, res *Result) string {
	toks := vntext.Tokenize(text)
	used := make([]bool, len(toks))
	type repl struct {
		start, end int
		to         string
	}
	var repls []repl

	for n := min(r.opts.MaxNGram, len(toks)); n >= 1; n-- {
		keys := r.byWords[n]
		if len(keys) == 0 {
			continue
		}
	window:
		for i := 0; i+n <= len(toks); i++ {
			words := make([]string, n)
			for j := 0; j < n; j++ {
				if used[i+j] || vntext.HasDiacritics(toks[i+j].Text) {
					continue window
				}
				words[j] = toks[i+j].Text
			}
			phrase := strings.Join(words, " ")
			if len([]rune(phrase)) < r.opts.MinFuzzyRunes {
				continue
			}
			best, bestKey := 0.0, ""
			for _, key := range keys {
				if s := vntext.Similarity(phrase, key); s > best {
					best, bestKey = s, key
				}
			}
			if best < r.opts.AccentThreshold || best == 1 {
				continue
			}
			forms := r.snap.Unaccented(bestKey)
			if len(forms) != 1 || vntext.Denied(phrase, forms[0]) {
				continue
			}
			for j := 0; j < n; j++ {
				used[i+j] = true
			}
			repls = append(repls, repl{start: toks[i].Start, end: toks[i+n-1].End, to: forms[0]})
			res.Corrections = append(res.Corrections, Correction{Kind: "fuzzy_accent", From: phrase, To: forms[0]})
		}
	}
	if len(repls) == 0 {
		return text
	}
	// Apply right to left so earlier offsets stay valid.
	for i := 1; i < len(repls); i++ {
		for j := i; j > 0 && repls[j].start > repls[j-1].start; j-- {
			repls[j], repls[j-1] = repls[j-1], repls[j]
		}
	}
	for _, rp := range repls {
		text = text[:rp.start] + rp.to + text[rp.end:]
	}
	return text
}

// tidy collapses the whitespace and stray leading separators that filler
// removal leaves behind.
func tidy(s string) string {
	s = vntext.Normalize(s)
	s = strings.TrimLeft(s, ",;: ")
	s = strings.ReplaceAll(s, " ,", ",")
	s = strings.ReplaceAll(s, " ?", "?")
	return strings.TrimSpace(s)
}
