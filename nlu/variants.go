package nlu

import (
	"strings"

	"github.com/brunobiangulo/historymind/kb"
	"github.com/brunobiangulo/historymind/vntext"
)

// Initial consonant pairs commonly confused in regional pronunciation.
var phoneticPairs = [][2]string{
	{"tr", "ch"},
	{"s", "x"},
	{"gi", "d"},
	{"r", "g"},
	{"v", "d"},
	{"n", "l"},
}

// aliasSwapsPerName bounds how many alternative names one match contributes.
const aliasSwapsPerName = 2

// variants builds the secondary search strings in a fixed order: ambiguous
// accent restorations, alias and topic-synonym swaps, then phonetic swaps
// when nothing in text is a known name.
func (r *Rewriter) variants(text string, ambiguous [][2]string) []string {
	if text == "" {
		return nil
	}
	var out []string
	seen := map[string]bool{text: true}
	add := func(v string) {
		v = tidy(v)
		if v == "" || seen[v] || len(out) >= r.opts.MaxVariants {
			return
		}
		seen[v] = true
		out = append(out, v)
	}

	for _, a := range ambiguous {
		if v, ok := vntext.ReplacePhrase(text, a[0], a[1]); ok {
			add(v)
		}
	}

	matched := false
	for _, c := range []kb.Category{kb.CategoryPerson, kb.CategoryDynasty, kb.CategoryTopic} {
		for _, m := range r.matches(text, c) {
			matched = true
			canonical, _ := r.snap.Canonical(c, m)
			swaps := 0
			for _, alias := range r.snap.Aliases(c, canonical) {
				if alias == m || swaps >= aliasSwapsPerName {
					continue
				}
				if v, ok := vntext.ReplacePhrase(text, m, alias); ok {
					add(v)
					swaps++
				}
			}
		}
	}

	if !matched {
		for i, v := range phoneticVariants(text) {
			if i >= r.opts.MaxPhonetic {
				break
			}
			add(v)
		}
	}
	return out
}

// matches returns the names of category c found in text, longest first,
// skipping names inside an earlier, longer match.
func (r *Rewriter) matches(text string, c kb.Category) []string {
	words := vntext.Words(text)
	used := make([]bool, len(words))
	var out []string
	for _, name := range r.snap.Names(c) {
		phrase := vntext.Words(name)
		i := vntext.IndexPhrase(words, phrase)
		if i < 0 {
			continue
		}
		overlap := false
		for j := i; j < i+len(phrase); j++ {
			overlap = overlap || used[j]
		}
		if overlap {
			continue
		}
		for j := i; j < i+len(phrase); j++ {
			used[j] = true
		}
		out = append(out, name)
	}
	return out
}

// phoneticVariants swaps the initial consonant of one word at a time, left
// to right, trying each pair in both directions.
func phoneticVariants(text string) []string {
	var out []string
	toks := vntext.Tokenize(text)
	for _, t := range toks {
		for _, p := range phoneticPairs {
			for _, dir := range [][2]string{{p[0], p[1]}, {p[1], p[0]}} {
				if !strings.HasPrefix(t.Text, dir[0]) {
					continue
				}
				if digraph(t.Text, dir[0]) {
					continue
				}
				swapped := dir[1] + strings.TrimPrefix(t.Text, dir[0])
				out = append(out, text[:t.Start]+swapped+text[t.End:])
			}
		}
	}
	return out
}

// digraph reports whether the single-letter prefix is really the start of
// a different consonant cluster (gi, gh, ng, nh).
func digraph(word, prefix string) bool {
	switch prefix {
	case "g":
		return strings.HasPrefix(word, "gi") || strings.HasPrefix(word, "gh")
	case "n":
		return strings.HasPrefix(word, "ng") || strings.HasPrefix(word, "nh")
	}
	return false
}
