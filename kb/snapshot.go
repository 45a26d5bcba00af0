package kb

import (
	"log/slog"
	"sort"

	"github.com/brunobiangulo/historymind/vntext"
)

// Category names an entity class with its own alias table and index.
type Category string

const (
	CategoryPerson  Category = "person"
	CategoryDynasty Category = "dynasty"
	CategoryTopic   Category = "topic"
	CategoryPlace   Category = "place"
	CategoryKeyword Category = "keyword"
)

// Snapshot is the read-only state built once at startup: the corpus, the
// four inverted indexes and the knowledge tables. It is safe for concurrent
// use because nothing writes to it after Build returns.
type Snapshot struct {
	docs   []Document
	byID   map[string]int
	chrono []int // positions of dated documents, ordered by year

	postings map[Category]map[string][]int
	canon    map[Category]map[string]string // alias or canonical -> canonical
	aliases  map[Category]map[string][]string
	spans    map[Category]map[string]Span
	keys     map[Category][]string // every matchable name, longest first

	unaccented        map[string][]string
	unaccentedKeys    []string
	nonDiscriminating map[string]bool
	national          map[string]bool

	knowledge *Knowledge
	minYear   int
	maxYear   int
}

// Stats summarises a snapshot for the scope answer and diagnostics.
type Stats struct {
	Documents int `json:"documents"`
	Dated     int `json:"dated"`
	MinYear   int `json:"min_year"`
	MaxYear   int `json:"max_year"`
	Persons   int `json:"persons"`
	Dynasties int `json:"dynasties"`
	Places    int `json:"places"`
	Keywords  int `json:"keywords"`
}

// Build indexes docs against the knowledge tables. Documents with duplicate
// ids keep their first occurrence. A nil knowledge base is treated as empty.
func Build(docs []Document, k *Knowledge) *Snapshot {
	if k == nil {
		k = &Knowledge{}
	}
	s := &Snapshot{
		byID:              make(map[string]int, len(docs)),
		postings:          make(map[Category]map[string][]int),
		canon:             make(map[Category]map[string]string),
		aliases:           make(map[Category]map[string][]string),
		spans:             make(map[Category]map[string]Span),
		keys:              make(map[Category][]string),
		unaccented:        make(map[string][]string),
		nonDiscriminating: setOf(k.NonDiscriminating),
		national:          setOf(k.NationalNames),
		knowledge:         k,
	}
	for _, c := range []Category{CategoryPerson, CategoryDynasty, CategoryTopic, CategoryPlace, CategoryKeyword} {
		s.postings[c] = make(map[string][]int)
		s.canon[c] = make(map[string]string)
		s.aliases[c] = make(map[string][]string)
		s.spans[c] = make(map[string]Span)
	}

	for _, d := range docs {
		if _, dup := s.byID[d.ID]; dup {
			slog.Warn("kb: duplicate document id, keeping first", "id", d.ID)
			continue
		}
		pos := len(s.docs)
		s.byID[d.ID] = pos
		s.docs = append(s.docs, d)

		for _, p := range d.AllPersons() {
			s.post(CategoryPerson, p, pos)
		}
		if d.Dynasty != "" {
			s.post(CategoryDynasty, d.Dynasty, pos)
		}
		for _, p := range d.Places {
			s.post(CategoryPlace, p, pos)
		}
		for _, kw := range d.Keywords {
			s.post(CategoryKeyword, kw, pos)
		}
		if d.Year.Known() {
			s.chrono = append(s.chrono, pos)
			if s.minYear == 0 || d.Year.From < s.minYear {
				s.minYear = d.Year.From
			}
			if d.Year.To > s.maxYear {
				s.maxYear = d.Year.To
			}
		}
	}
	sort.SliceStable(s.chrono, func(i, j int) bool {
		a, b := s.docs[s.chrono[i]].Year, s.docs[s.chrono[j]].Year
		if a.From != b.From {
			return a.From < b.From
		}
		return a.To < b.To
	})

	s.addEntities(CategoryPerson, k.Persons)
	s.addEntities(CategoryDynasty, k.Dynasties)
	s.addEntities(CategoryTopic, k.Topics)

	// Index keys are canonical for themselves unless an alias table claims them.
	for _, c := range []Category{CategoryPerson, CategoryDynasty, CategoryPlace, CategoryKeyword} {
		for key := range s.postings[c] {
			if _, ok := s.canon[c][key]; !ok {
				s.canon[c][key] = key
			}
		}
	}
	for c, m := range s.canon {
		s.keys[c] = sortedKeys(m)
		for name := range m {
			s.addUnaccented(name)
		}
	}
	for _, v := range k.Abbreviations {
		s.addUnaccented(v)
	}
	for _, list := range s.unaccented {
		sort.Strings(list)
	}
	s.unaccentedKeys = sortedKeys(s.unaccented)
	return s
}

func (s *Snapshot) post(c Category, key string, pos int) {
	list := s.postings[c][key]
	if n := len(list); n > 0 && list[n-1] == pos {
		return
	}
	s.postings[c][key] = append(list, pos)
}

func (s *Snapshot) addEntities(c Category, list []Entity) {
	for _, e := range list {
		names := append([]string{e.Name}, e.Aliases...)
		for _, n := range names {
			if prev, ok := s.canon[c][n]; ok && prev != e.Name {
				slog.Warn("kb: alias claimed by two entities", "category", c, "alias", n, "kept", prev)
				continue
			}
			s.canon[c][n] = e.Name
		}
		s.aliases[c][e.Name] = names
		if sp, ok := e.Span(); ok {
			s.spans[c][e.Name] = sp
		}
	}
}

func (s *Snapshot) addUnaccented(name string) {
	if !vntext.HasDiacritics(name) {
		return
	}
	folded := vntext.StripDiacritics(name)
	for _, have := range s.unaccented[folded] {
		if have == name {
			return
		}
	}
	s.unaccented[folded] = append(s.unaccented[folded], name)
}

func setOf(list []string) map[string]bool {
	m := make(map[string]bool, len(list))
	for _, v := range list {
		m[v] = true
	}
	return m
}

// Len returns the number of documents.
func (s *Snapshot) Len() int { return len(s.docs) }

// Doc returns the document at position pos. The pointer must not be written.
func (s *Snapshot) Doc(pos int) *Document { return &s.docs[pos] }

// Position returns a document's position by id.
func (s *Snapshot) Position(id string) (int, bool) {
	pos, ok := s.byID[id]
	return pos, ok
}

// Knowledge returns the tables the snapshot was built from.
func (s *Snapshot) Knowledge() *Knowledge { return s.knowledge }

// Canonical maps any alias or index key of category c to its canonical name.
func (s *Snapshot) Canonical(c Category, name string) (string, bool) {
	v, ok := s.canon[c][vntext.Normalize(name)]
	return v, ok
}

// Names returns every matchable name of category c, longest first.
func (s *Snapshot) Names(c Category) []string { return s.keys[c] }

// Aliases returns the canonical name plus all known aliases for it.
func (s *Snapshot) Aliases(c Category, canonical string) []string {
	if list, ok := s.aliases[c][canonical]; ok {
		return list
	}
	return []string{canonical}
}

// Span returns the temporal metadata of a person or dynasty by any alias.
func (s *Snapshot) Span(c Category, name string) (Span, bool) {
	canonical, ok := s.Canonical(c, name)
	if !ok {
		canonical = vntext.Normalize(name)
	}
	sp, ok := s.spans[c][canonical]
	return sp, ok
}

// Docs returns the postings of the canonical entity in category c, merging
// the postings of every alias. Topics are looked up in the keyword index.
func (s *Snapshot) Docs(c Category, canonical string) []int {
	index := c
	if c == CategoryTopic {
		index = CategoryKeyword
	}
	var lists [][]int
	for _, name := range s.Aliases(c, canonical) {
		if p, ok := s.postings[index][name]; ok {
			lists = append(lists, p)
		}
	}
	return Union(lists...)
}

// YearDocs returns dated documents whose year contains y, chronologically.
func (s *Snapshot) YearDocs(y int) []int {
	var out []int
	for _, pos := range s.chrono {
		if s.docs[pos].Year.Contains(y) {
			out = append(out, pos)
		}
	}
	return out
}

// RangeDocs returns documents whose year starts inside [from, to],
// chronologically.
func (s *Snapshot) RangeDocs(from, to int) []int {
	var out []int
	for _, pos := range s.chrono {
		y := s.docs[pos].Year
		if y.From >= from && y.From <= to {
			out = append(out, pos)
		}
	}
	return out
}

// Unaccented returns the accented forms known for a diacritic-free phrase.
func (s *Snapshot) Unaccented(folded string) []string { return s.unaccented[folded] }

// UnaccentedKeys returns every diacritic-free phrase, longest first.
func (s *Snapshot) UnaccentedKeys() []string { return s.unaccentedKeys }

// IsNonDiscriminating reports whether term is true of the whole corpus and
// must not gate filtering.
func (s *Snapshot) IsNonDiscriminating(term string) bool {
	return s.nonDiscriminating[vntext.Normalize(term)]
}

// IsNationalName reports whether term is one of the country's historical names.
func (s *Snapshot) IsNationalName(term string) bool { return s.national[vntext.Normalize(term)] }

// NationalNames returns the configured national names.
func (s *Snapshot) NationalNames() []string { return s.knowledge.NationalNames }

// YearBounds returns the minimum and maximum attested years.
func (s *Snapshot) YearBounds() (int, int) { return s.minYear, s.maxYear }

// Stats reports corpus counts.
func (s *Snapshot) Stats() Stats {
	return Stats{
		Documents: len(s.docs),
		Dated:     len(s.chrono),
		MinYear:   s.minYear,
		MaxYear:   s.maxYear,
		Persons:   len(s.postings[CategoryPerson]),
		Dynasties: len(s.postings[CategoryDynasty]),
		Places:    len(s.postings[CategoryPlace]),
		Keywords:  len(s.postings[CategoryKeyword]),
	}
}

// Union merges ascending position lists into one ascending list without
// duplicates.
func Union(lists ...[]int) []int {
	seen := make(map[int]bool)
	var out []int
	for _, l := range lists {
		for _, p := range l {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	sort.Ints(out)
	return out
}
