package rerank

import (
	"regexp"
	"strings"

	"github.com/brunobiangulo/historymind/constraint"
	"github.com/brunobiangulo/historymind/kb"
	"github.com/brunobiangulo/historymind/vntext"
)

// KeywordWeights scores candidates when the cross-encoder is unavailable.
// Penalties are stored as negative values.
type KeywordWeights struct {
	DynastyMatch    float64 `json:"dynasty_match" yaml:"dynasty_match" mapstructure:"dynasty_match"`
	DynastyMismatch float64 `json:"dynasty_mismatch" yaml:"dynasty_mismatch" mapstructure:"dynasty_mismatch"`
	PersonMatch     float64 `json:"person_match" yaml:"person_match" mapstructure:"person_match"`
	PersonMismatch  float64 `json:"person_mismatch" yaml:"person_mismatch" mapstructure:"person_mismatch"`
	Topic           float64 `json:"topic" yaml:"topic" mapstructure:"topic"`
	Place           float64 `json:"place" yaml:"place" mapstructure:"place"`
	Military        float64 `json:"military" yaml:"military" mapstructure:"military"`
	MilitaryMissing float64 `json:"military_missing" yaml:"military_missing" mapstructure:"military_missing"`
	Victory         float64 `json:"victory" yaml:"victory" mapstructure:"victory"`
	Enemy           float64 `json:"enemy" yaml:"enemy" mapstructure:"enemy"`
	EnemyMissing    float64 `json:"enemy_missing" yaml:"enemy_missing" mapstructure:"enemy_missing"`
	Tone            float64 `json:"tone" yaml:"tone" mapstructure:"tone"`

	MilitaryTerms []string `json:"military_terms" yaml:"military_terms" mapstructure:"military_terms"`
	VictoryTerms  []string `json:"victory_terms" yaml:"victory_terms" mapstructure:"victory_terms"`
}

// DefaultKeywordWeights returns the tuned weights.
func DefaultKeywordWeights() KeywordWeights {
	return KeywordWeights{
		DynastyMatch:    20,
		DynastyMismatch: -15,
		PersonMatch:     25,
		PersonMismatch:  -10,
		Topic:           10,
		Place:           10,
		Military:        5,
		MilitaryMissing: -25,
		Victory:         5,
		Enemy:           15,
		EnemyMissing:    -10,
		Tone:            5,
		MilitaryTerms:   []string{"chiến", "đánh", "thắng", "kháng", "quân", "trận", "hịch"},
		VictoryTerms:    []string{"chiến thắng", "đánh bại", "thắng lợi", "đại phá", "tiêu diệt", "đánh tan"},
	}
}

var againstRe = regexp.MustCompile(`chống\s+([\p{L}\s]+?)(?:\s+và|\s*$|[,.])`)

// keywordScorer scores documents against one constraint.
type keywordScorer struct {
	w     KeywordWeights
	snap  *kb.Snapshot
	c     *constraint.QueryConstraint
	query string

	military int
	victory  bool
	enemies  []string // nil when the question names no enemy
}

func newKeywordScorer(w KeywordWeights, snap *kb.Snapshot, c *constraint.QueryConstraint) *keywordScorer {
	s := &keywordScorer{w: w, snap: snap, c: c, query: vntext.Normalize(c.Rewritten)}
	for _, t := range w.MilitaryTerms {
		if strings.Contains(s.query, t) {
			s.military++
		}
	}
	for _, t := range w.VictoryTerms {
		if strings.Contains(s.query, t) {
			s.victory = true
			break
		}
	}
	if m := againstRe.FindStringSubmatch(s.query); m != nil {
		s.enemies = s.enemyVariants(strings.TrimSpace(m[1]))
	}
	return s
}

// enemyVariants expands "chống X" through the topic synonyms so that
// "chống mỹ" also matches documents about "đế quốc mỹ".
func (s *keywordScorer) enemyVariants(enemy string) []string {
	out := []string{enemy}
	if s.snap == nil {
		return out
	}
	for _, name := range s.snap.Names(kb.CategoryTopic) {
		canon, _ := s.snap.Canonical(kb.CategoryTopic, name)
		if related(name, enemy) || related(canon, enemy) {
			out = append(out, name, canon)
		}
	}
	return out
}

func related(a, b string) bool {
	return a != "" && b != "" && (strings.Contains(a, b) || strings.Contains(b, a))
}

func (s *keywordScorer) score(d *kb.Document) float64 {
	text := vntext.Normalize(strings.Join([]string{d.Event, d.Story, d.Title, strings.Join(d.Keywords, " ")}, " "))
	var score float64

	if len(s.c.Dynasties) > 0 && d.Dynasty != "" {
		if s.dynastyMatches(d.Dynasty) {
			score += s.w.DynastyMatch
		} else {
			score += s.w.DynastyMismatch
		}
	}

	if len(s.c.Persons) > 0 {
		persons := d.AllPersons()
		switch {
		case s.hasPerson(persons):
			score += s.w.PersonMatch
		case len(persons) > 0:
			score += s.w.PersonMismatch
		}
	}

	for _, t := range s.c.Topics {
		if s.mentions(text, kb.CategoryTopic, t) {
			score += s.w.Topic
		}
	}

	for _, p := range s.c.Places {
		for _, dp := range d.Places {
			if related(vntext.Normalize(dp), p) {
				score += s.w.Place
				break
			}
		}
	}

	if s.military > 0 {
		hits := 0
		for _, t := range s.w.MilitaryTerms {
			if strings.Contains(text, t) {
				hits++
			}
		}
		if hits == 0 {
			score += s.w.MilitaryMissing
		} else {
			score += float64(hits) * s.w.Military
		}
	}

	if s.victory {
		for _, t := range s.w.VictoryTerms {
			if strings.Contains(text, t) {
				score += s.w.Victory
			}
		}
	}

	if s.enemies != nil {
		found := false
		for _, e := range s.enemies {
			if strings.Contains(text, e) {
				found = true
				break
			}
		}
		if found {
			score += s.w.Enemy
		} else {
			score += s.w.EnemyMissing
		}
	}

	if d.Tone == kb.ToneHeroic && (s.victory || s.military > 0) {
		score += s.w.Tone
	}
	return score
}

func (s *keywordScorer) canonical(cat kb.Category, name string) string {
	if s.snap != nil {
		if v, ok := s.snap.Canonical(cat, name); ok {
			return v
		}
	}
	return vntext.Normalize(name)
}

func (s *keywordScorer) dynastyMatches(dynasty string) bool {
	d := s.canonical(kb.CategoryDynasty, dynasty)
	for _, t := range s.c.Dynasties {
		if related(d, t) {
			return true
		}
	}
	return false
}

func (s *keywordScorer) hasPerson(persons []string) bool {
	for _, p := range persons {
		canon := s.canonical(kb.CategoryPerson, p)
		for _, t := range s.c.Persons {
			if canon == t {
				return true
			}
		}
	}
	return false
}

func (s *keywordScorer) mentions(text string, cat kb.Category, canonical string) bool {
	names := []string{canonical}
	if s.snap != nil {
		names = append(names, s.snap.Aliases(cat, canonical)...)
	}
	for _, n := range names {
		if vntext.ContainsPhrase(text, n) {
			return true
		}
	}
	return false
}
