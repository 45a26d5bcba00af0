// Package entity resolves the persons, dynasties, topics, places and
// keywords mentioned in a question against the snapshot's alias tables and
// inverted indexes.
package entity

import (
	"log/slog"
	"strings"

	"github.com/brunobiangulo/historymind/intent"
	"github.com/brunobiangulo/historymind/kb"
	"github.com/brunobiangulo/historymind/vntext"
)

// Mention is one resolved span of the question.
type Mention struct {
	Category  kb.Category `json:"category"`
	Surface   string      `json:"surface"`
	Canonical string      `json:"canonical"`
	Fuzzy     bool        `json:"fuzzy,omitempty"`
	Score     float64     `json:"score,omitempty"`
}

// Resolved lists canonical names per category, in order of discovery.
type Resolved struct {
	Persons   []string  `json:"persons,omitempty"`
	Dynasties []string  `json:"dynasties,omitempty"`
	Topics    []string  `json:"topics,omitempty"`
	Places    []string  `json:"places,omitempty"`
	Keywords  []string  `json:"keywords,omitempty"`
	Mentions  []Mention `json:"mentions,omitempty"`
}

// Empty reports whether nothing was resolved.
func (r Resolved) Empty() bool {
	return len(r.Persons)+len(r.Dynasties)+len(r.Topics)+len(r.Places)+len(r.Keywords) == 0
}

// Names returns the canonical names of the three entity categories that
// carry temporal metadata or aliases: persons, dynasties and topics.
func (r Resolved) Names() []string {
	out := append([]string(nil), r.Persons...)
	out = append(out, r.Dynasties...)
	return append(out, r.Topics...)
}

func (r *Resolved) list(c kb.Category) *[]string {
	switch c {
	case kb.CategoryPerson:
		return &r.Persons
	case kb.CategoryDynasty:
		return &r.Dynasties
	case kb.CategoryTopic:
		return &r.Topics
	case kb.CategoryPlace:
		return &r.Places
	default:
		return &r.Keywords
	}
}

// Options tunes the resolver.
type Options struct {
	FuzzyThreshold float64 `json:"fuzzy_threshold" yaml:"fuzzy_threshold" mapstructure:"fuzzy_threshold"`
	MinFuzzyRunes  int     `json:"min_fuzzy_runes" yaml:"min_fuzzy_runes" mapstructure:"min_fuzzy_runes"`
}

// DefaultOptions returns the reference thresholds.
func DefaultOptions() Options {
	return Options{FuzzyThreshold: vntext.EntityThreshold, MinFuzzyRunes: 5}
}

// categories in resolution order. Keywords go last so that a span already
// claimed as a name is not repeated as a keyword.
var categories = []kb.Category{
	kb.CategoryPerson, kb.CategoryDynasty, kb.CategoryTopic, kb.CategoryPlace, kb.CategoryKeyword,
}

// fuzzyCategories are the categories eligible for the n-gram pass.
var fuzzyCategories = map[kb.Category]bool{
	kb.CategoryPerson: true, kb.CategoryDynasty: true, kb.CategoryTopic: true, kb.CategoryPlace: true,
}

// key is a matchable name prepared once.
type key struct {
	name   string
	words  []string
	folded []string
}

// Resolver matches questions against the snapshot. Safe for concurrent use.
type Resolver struct {
	snap    *kb.Snapshot
	opts    Options
	aliases map[kb.Category][]key // pass 1: knowledge-base alias tables
	index   map[kb.Category][]key // pass 2: every other index key
}

// NewResolver prepares the ordered key lists.
func NewResolver(snap *kb.Snapshot, opts Options) *Resolver {
	r := &Resolver{
		snap:    snap,
		opts:    opts,
		aliases: make(map[kb.Category][]key),
		index:   make(map[kb.Category][]key),
	}
	k := snap.Knowledge()
	tables := map[kb.Category][]kb.Entity{
		kb.CategoryPerson:  k.Persons,
		kb.CategoryDynasty: k.Dynasties,
		kb.CategoryTopic:   k.Topics,
	}
	for _, c := range categories {
		inTable := make(map[string]bool)
		for _, e := range tables[c] {
			for _, n := range snap.Aliases(c, e.Name) {
				inTable[n] = true
			}
		}
		for _, name := range snap.Names(c) {
			if c == kb.CategoryKeyword && snap.IsNonDiscriminating(name) {
				continue
			}
			kk := key{name: name, words: vntext.Words(name), folded: vntext.Words(vntext.StripDiacritics(name))}
			if len(kk.words) == 0 {
				continue
			}
			if inTable[name] {
				r.aliases[c] = append(r.aliases[c], kk)
			} else {
				r.index[c] = append(r.index[c], kk)
			}
		}
	}
	return r
}

// text is a tokenised question with per-word consumption.
type text struct {
	words  []string
	folded []string
	used   []bool
}

func newText(s string) *text {
	w := vntext.Words(s)
	f := make([]string, len(w))
	for i, x := range w {
		f[i] = vntext.StripDiacritics(x)
	}
	return &text{words: w, folded: f, used: make([]bool, len(w))}
}

func (t *text) free(i, n int) bool {
	for j := i; j < i+n; j++ {
		if t.used[j] {
			return false
		}
	}
	return true
}

func (t *text) consume(i, n int) {
	for j := i; j < i+n; j++ {
		t.used[j] = true
	}
}

func (t *text) span(i, n int) string { return strings.Join(t.words[i:i+n], " ") }

// find locates k in t on free words. Accent-insensitive matching applies
// only where the user typed the span without diacritics; an accented span
// must match exactly, which keeps nguyên and nguyễn apart.
func (t *text) find(k key) int {
	n := len(k.words)
outer:
	for i := 0; i+n <= len(t.words); i++ {
		if !t.free(i, n) {
			continue
		}
		for j := 0; j < n; j++ {
			w := t.words[i+j]
			if w == k.words[j] {
				continue
			}
			if vntext.HasDiacritics(w) || t.folded[i+j] != k.folded[j] {
				continue outer
			}
		}
		return i
	}
	return -1
}

// Resolve resolves text and fills categories it left empty from variants,
// in order.
func (r *Resolver) Resolve(s string, variants []string) Resolved {
	res := r.resolve(s)
	for _, v := range variants {
		extra := r.resolve(v)
		for _, c := range categories {
			dst := res.list(c)
			if len(*dst) > 0 || len(*extra.list(c)) == 0 {
				continue
			}
			*dst = append(*dst, *extra.list(c)...)
			for _, m := range extra.Mentions {
				if m.Category == c {
					res.Mentions = append(res.Mentions, m)
				}
			}
		}
	}
	if !res.Empty() {
		slog.Debug("entity: resolved", "persons", res.Persons, "dynasties", res.Dynasties,
			"topics", res.Topics, "places", res.Places, "keywords", res.Keywords)
	}
	return res
}

func (r *Resolver) resolve(s string) Resolved {
	var res Resolved
	t := newText(s)
	// Keywords may not reuse words claimed by any name category.
	claimed := make([]bool, len(t.words))

	for _, c := range categories {
		t.used = make([]bool, len(t.words))
		if c == kb.CategoryKeyword {
			copy(t.used, claimed)
		}
		seen := make(map[string]bool)
		add := func(m Mention, i, n int) {
			t.consume(i, n)
			for j := i; j < i+n; j++ {
				claimed[j] = true
			}
			if seen[m.Canonical] {
				return
			}
			seen[m.Canonical] = true
			dst := res.list(c)
			*dst = append(*dst, m.Canonical)
			res.Mentions = append(res.Mentions, m)
		}

		for _, pass := range [][]key{r.aliases[c], r.index[c]} {
			for _, k := range pass {
				for {
					i := t.find(k)
					if i < 0 {
						break
					}
					canonical, ok := r.snap.Canonical(c, k.name)
					if !ok {
						canonical = k.name
					}
					add(Mention{Category: c, Surface: t.span(i, len(k.words)), Canonical: canonical}, i, len(k.words))
				}
			}
		}
		if fuzzyCategories[c] {
			r.fuzzy(t, c, add)
		}
	}
	return res
}

// fuzzy compares free n-grams with keys of the same length on their
// stripped form, longest keys first.
func (r *Resolver) fuzzy(t *text, c kb.Category, add func(Mention, int, int)) {
	keys := append(append([]key(nil), r.aliases[c]...), r.index[c]...)
	for _, k := range keys {
		n := len(k.words)
		if n < 2 {
			continue
		}
		target := strings.Join(k.folded, " ")
		best, bestAt := 0.0, -1
		for i := 0; i+n <= len(t.words); i++ {
			if !t.free(i, n) || hasDigit(t.words[i:i+n]) {
				continue
			}
			window := strings.Join(t.folded[i:i+n], " ")
			if len([]rune(window)) < r.opts.MinFuzzyRunes || vntext.Denied(t.span(i, n), k.name) {
				continue
			}
			if s := vntext.Similarity(window, target); s >= r.opts.FuzzyThreshold && s > best {
				best, bestAt = s, i
			}
		}
		if bestAt < 0 {
			continue
		}
		canonical, ok := r.snap.Canonical(c, k.name)
		if !ok {
			canonical = k.name
		}
		add(Mention{Category: c, Surface: t.span(bestAt, n), Canonical: canonical, Fuzzy: true, Score: best}, bestAt, n)
	}
}

func hasDigit(words []string) bool {
	for _, w := range words {
		for _, r := range w {
			if r >= '0' && r <= '9' {
				return true
			}
		}
	}
	return false
}

// Probe reports entity presence for the intent classifier.
func (r *Resolver) Probe(s string) intent.Presence {
	res := r.resolve(s)
	return intent.Presence{
		Persons:   len(res.Persons) > 0,
		Dynasties: len(res.Dynasties) > 0,
		Topics:    len(res.Topics) > 0,
		Places:    len(res.Places) > 0,
	}
}

var _ intent.EntityProbe = (*Resolver)(nil)
