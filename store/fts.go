package store

import (
	"strings"
	"unicode/utf8"

	"github.com/brunobiangulo/historymind/vntext"
)

var ftsReplacer = strings.NewReplacer(
	"\"", " ",
	"*", " ",
	"(", " ",
	")", " ",
	"+", " ",
	"-", " ",
	"^", " ",
	":", " ",
	"?", " ",
	"[", " ",
	"]", " ",
	"{", " ",
	"}", " ",
	"!", " ",
	".", " ",
	",", " ",
	";", " ",
	"'", " ",
)

// ftsOperators are bare words FTS5 would parse as syntax.
var ftsOperators = map[string]bool{"and": true, "or": true, "not": true, "near": true}

// sanitizeFTSQuery strips FTS5 syntax characters and builds an OR query of
// the full phrase plus every significant word.
func sanitizeFTSQuery(query string) string {
	words := strings.Fields(ftsReplacer.Replace(vntext.Normalize(query)))
	if len(words) == 0 {
		return ""
	}

	var parts []string
	if len(words) > 1 {
		parts = append(parts, "\""+strings.Join(words, " ")+"\"")
	}
	for _, w := range words {
		if utf8.RuneCountInString(w) < 2 || vntext.IsStopword(w) || ftsOperators[w] {
			continue
		}
		parts = append(parts, "\""+w+"\"")
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, " OR ")
}
