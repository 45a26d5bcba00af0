package entity

import (
	"github.com/brunobiangulo/historymind/kb"
)

// Identity is the result of same-entity detection.
type Identity struct {
	Same      bool        `json:"same"`
	Category  kb.Category `json:"category,omitempty"`
	Canonical string      `json:"canonical,omitempty"`
	Names     []string    `json:"names,omitempty"` // surface names as written, in order
}

// SameEntity reports whether two or more distinct names in s refer to one
// canonical person, topic or dynasty, as in "Quang Trung và Nguyễn Huệ".
// Names are matched longest first, so a name inside a longer one (quang
// trung in vua quang trung) does not count twice.
func (r *Resolver) SameEntity(s string) Identity {
	for _, c := range []kb.Category{kb.CategoryPerson, kb.CategoryTopic, kb.CategoryDynasty} {
		t := newText(s)
		type hit struct {
			at      int
			surface string
		}
		groups := make(map[string][]hit)
		var order []string
		for _, pass := range [][]key{r.aliases[c], r.index[c]} {
			for _, k := range pass {
				for {
					i := t.find(k)
					if i < 0 {
						break
					}
					t.consume(i, len(k.words))
					canonical, ok := r.snap.Canonical(c, k.name)
					if !ok {
						canonical = k.name
					}
					if _, seen := groups[canonical]; !seen {
						order = append(order, canonical)
					}
					groups[canonical] = append(groups[canonical], hit{at: i, surface: k.name})
				}
			}
		}
		for _, canonical := range order {
			hits := groups[canonical]
			distinct := make(map[string]bool)
			for _, h := range hits {
				distinct[h.surface] = true
			}
			if len(distinct) < 2 {
				continue
			}
			// Report names in the order they are written.
			for i := 1; i < len(hits); i++ {
				for j := i; j > 0 && hits[j].at < hits[j-1].at; j-- {
					hits[j], hits[j-1] = hits[j-1], hits[j]
				}
			}
			var names []string
			added := make(map[string]bool)
			for _, h := range hits {
				if !added[h.surface] {
					added[h.surface] = true
					names = append(names, h.surface)
				}
			}
			return Identity{Same: true, Category: c, Canonical: canonical, Names: names}
		}
	}
	return Identity{}
}
