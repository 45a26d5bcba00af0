package kb

import (
	_ "embed"
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/brunobiangulo/historymind/vntext"
)

//go:embed data/knowledge.yaml
var defaultKnowledgeYAML []byte

// Span is an entity's inclusive active period.
type Span struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// Contains reports whether y lies inside s.
func (s Span) Contains(y int) bool { return y >= s.From && y <= s.To }

// Overlaps reports whether s intersects [from, to].
func (s Span) Overlaps(from, to int) bool { return s.From <= to && s.To >= from }

func (s Span) String() string { return fmt.Sprintf("%d–%d", s.From, s.To) }

// Entity is a canonical name with its aliases and optional active span.
type Entity struct {
	Name    string   `yaml:"name" json:"name"`
	Aliases []string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
	Active  []int    `yaml:"active,omitempty,flow" json:"active,omitempty"`
}

// Span returns the entity's temporal metadata, if it has any.
func (e Entity) Span() (Span, bool) {
	if len(e.Active) != 2 || e.Active[0] > e.Active[1] {
		return Span{}, false
	}
	return Span{From: e.Active[0], To: e.Active[1]}, true
}

// Knowledge is the static alias, synonym and correction tables plus the
// entity temporal metadata. It is loaded once before the first request.
type Knowledge struct {
	Persons           []Entity          `yaml:"persons"`
	Dynasties         []Entity          `yaml:"dynasties"`
	Topics            []Entity          `yaml:"topics"`
	Abbreviations     map[string]string `yaml:"abbreviations"`
	TypoFixes         map[string]string `yaml:"typo_fixes"`
	Fillers           []string          `yaml:"fillers"`
	NonDiscriminating []string          `yaml:"non_discriminating"`
	NationalNames     []string          `yaml:"national_names"`
}

// LoadKnowledge decodes a YAML knowledge file and normalises every name.
func LoadKnowledge(r io.Reader) (*Knowledge, error) {
	var k Knowledge
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&k); err != nil {
		return nil, fmt.Errorf("decoding knowledge base: %w", err)
	}
	k.normalize()
	if err := k.validate(); err != nil {
		return nil, err
	}
	return &k, nil
}

// DefaultKnowledge returns the knowledge base embedded in the binary.
func DefaultKnowledge() (*Knowledge, error) {
	var k Knowledge
	if err := yaml.Unmarshal(defaultKnowledgeYAML, &k); err != nil {
		return nil, fmt.Errorf("decoding embedded knowledge base: %w", err)
	}
	k.normalize()
	if err := k.validate(); err != nil {
		return nil, err
	}
	return &k, nil
}

func (k *Knowledge) normalize() {
	for _, list := range [][]Entity{k.Persons, k.Dynasties, k.Topics} {
		for i := range list {
			list[i].Name = vntext.Normalize(list[i].Name)
			list[i].Aliases = normalizeList(list[i].Aliases)
		}
	}
	k.Abbreviations = normalizeMap(k.Abbreviations)
	k.TypoFixes = normalizeMap(k.TypoFixes)
	k.Fillers = normalizeList(k.Fillers)
	k.NonDiscriminating = normalizeList(k.NonDiscriminating)
	k.NationalNames = normalizeList(k.NationalNames)
}

func (k *Knowledge) validate() error {
	seen := make(map[string]string)
	for cat, list := range map[string][]Entity{"person": k.Persons, "dynasty": k.Dynasties, "topic": k.Topics} {
		for _, e := range list {
			if e.Name == "" {
				return fmt.Errorf("knowledge base: %s entry with empty name", cat)
			}
			if len(e.Active) != 0 {
				if _, ok := e.Span(); !ok {
					return fmt.Errorf("knowledge base: %s %q has invalid active span %v", cat, e.Name, e.Active)
				}
			}
			key := cat + ":" + e.Name
			if _, dup := seen[key]; dup {
				return fmt.Errorf("knowledge base: duplicate %s %q", cat, e.Name)
			}
			seen[key] = e.Name
		}
	}
	return nil
}

func normalizeMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		k, v = vntext.Normalize(k), vntext.Normalize(v)
		if k != "" && v != "" {
			out[k] = v
		}
	}
	return out
}

// sortedKeys returns map keys longest first, ties broken lexically, so that
// substitution is deterministic and prefers the most specific phrase.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	SortLongestFirst(keys)
	return keys
}

// SortLongestFirst orders phrases by word count, then rune length, then
// lexically, all descending except the lexical tie-break.
func SortLongestFirst(keys []string) {
	sort.Slice(keys, func(i, j int) bool {
		wi, wj := len(vntext.Words(keys[i])), len(vntext.Words(keys[j]))
		if wi != wj {
			return wi > wj
		}
		li, lj := len([]rune(keys[i])), len([]rune(keys[j]))
		if li != lj {
			return li > lj
		}
		return keys[i] < keys[j]
	})
}
