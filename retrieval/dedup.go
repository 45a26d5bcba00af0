package retrieval

import (
	"encoding/binary"
	"strings"
	"unicode/utf8"

	"github.com/go-crypt/x/blake2b"

	"github.com/brunobiangulo/historymind/vntext"
)

// contentKey hashes a narrative after lowercasing and stripping
// punctuation and whitespace, so trivially different copies collide.
func contentKey(squashed string) uint64 {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(squashed))
	return binary.LittleEndian.Uint64(h.Sum(nil))
}

// dedup keeps the first of each group of near-duplicate candidates. A
// candidate is a duplicate when its content key was seen, or when its
// text (at least minRunes long) is contained in the text of an earlier
// candidate of the same year.
func dedup(cands []Candidate, minRunes int) []Candidate {
	seen := make(map[uint64]bool, len(cands))
	out := make([]Candidate, 0, len(cands))
	var texts []string

outer:
	for _, c := range cands {
		squashed := vntext.Key(c.Doc.Text())
		key := contentKey(squashed)
		if seen[key] {
			continue
		}
		if utf8.RuneCountInString(squashed) >= minRunes {
			for i, k := range out {
				if k.Doc.Year == c.Doc.Year && strings.Contains(texts[i], squashed) {
					continue outer
				}
			}
		}
		seen[key] = true
		out = append(out, c)
		texts = append(texts, squashed)
	}
	return out
}
