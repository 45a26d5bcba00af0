// Package intent classifies a rewritten question into one intent of a
// closed set and extracts its year mentions.
package intent

import (
	"log/slog"
	"strconv"

	"github.com/brunobiangulo/historymind/vntext"
)

// Intent is the closed set of question intents.
type Intent string

const (
	YearSpecific     Intent = "year_specific"
	YearRange        Intent = "year_range"
	PersonQuery      Intent = "person_query"
	DynastyQuery     Intent = "dynasty_query"
	EventQuery       Intent = "event_query"
	Definition       Intent = "definition"
	Relationship     Intent = "relationship"
	BroadHistory     Intent = "broad_history"
	FactCheck        Intent = "fact_check"
	DataScope        Intent = "data_scope"
	SemanticFallback Intent = "semantic_fallback"

	Greeting Intent = "greeting"
	Thanks   Intent = "thanks"
	Goodbye  Intent = "goodbye"
	Creator  Intent = "creator"
	Identity Intent = "identity"
)

// IsMeta reports whether the intent is small talk answered without retrieval.
func (i Intent) IsMeta() bool {
	switch i {
	case Greeting, Thanks, Goodbye, Creator, Identity:
		return true
	}
	return false
}

// QuestionType selects the answer template.
type QuestionType string

const (
	When     QuestionType = "when"
	Who      QuestionType = "who"
	What     QuestionType = "what"
	Where    QuestionType = "where"
	List     QuestionType = "list"
	Scope    QuestionType = "scope"
	Duration QuestionType = "duration"
)

// Presence reports which entity categories a question mentions.
type Presence struct {
	Persons   bool
	Dynasties bool
	Topics    bool
	Places    bool
}

// Any reports whether any category is present.
func (p Presence) Any() bool { return p.Persons || p.Dynasties || p.Topics || p.Places }

// EntityProbe detects entity mentions without resolving them fully.
type EntityProbe interface {
	Probe(text string) Presence
}

// Flags carries secondary pattern hits that later stages consult.
type Flags struct {
	Relationship bool `json:"relationship,omitempty"`
	Definition   bool `json:"definition,omitempty"`
	Broad        bool `json:"broad,omitempty"`
	Resistance   bool `json:"resistance,omitempty"`
}

// Analysis is the classifier's output.
type Analysis struct {
	Intent        Intent       `json:"intent"`
	QuestionType  QuestionType `json:"question_type"`
	Year          int          `json:"year,omitempty"` // 0 when no single year applies
	Range         *Range       `json:"range,omitempty"`
	ExplicitYears []int        `json:"explicit_years,omitempty"`
	Durations     []int        `json:"durations,omitempty"`
	IsDuration    bool         `json:"is_duration,omitempty"`
	ClaimedYear   int          `json:"claimed_year,omitempty"`
	HasClaim      bool         `json:"has_claim,omitempty"`
	Presence      Presence     `json:"-"`
	Flags         Flags        `json:"flags"`
	Rule          string       `json:"rule"`
}

// query is the per-call view the rules inspect.
type query struct {
	text    string
	folded  string
	words   int
	present Presence
	flags   Flags
}

type rule struct {
	name  string
	match func(q *query, a *Analysis) bool
}

// Classifier evaluates an ordered rule list; the first match wins.
type Classifier struct {
	probe EntityProbe
	rules []rule
}

// NewClassifier returns a classifier that consults probe for entity
// presence. A nil probe means no entities are ever present.
func NewClassifier(probe EntityProbe) *Classifier {
	c := &Classifier{probe: probe}
	c.rules = []rule{
		{"meta", matchMeta},
		{"data_scope", matchDataScope},
		{"fact_check", matchFactCheck},
		{"year_range", matchRange},
		{"multi_year", matchMultiYear},
		{"entity", matchEntity},
		{"definition", matchDefinition},
		{"broad_history", matchBroad},
		{"single_year", matchSingleYear},
	}
	return c
}

// Classify analyses a rewritten question.
func (c *Classifier) Classify(text string) Analysis {
	text = vntext.Normalize(text)
	q := &query{
		text:   text,
		folded: vntext.StripDiacritics(text),
		words:  len(vntext.Words(text)),
	}
	if c.probe != nil {
		q.present = c.probe.Probe(text)
	}
	q.flags = Flags{
		Relationship: anyMatch(relationshipPatterns, q.text, q.folded),
		Definition:   anyMatch(definitionPatterns, q.text, q.folded),
		Broad:        anyMatch(broadPatterns, q.text, q.folded),
		Resistance:   anyMatch(resistancePatterns, q.text, q.folded),
	}

	years, durations := numbers(text)
	a := Analysis{
		QuestionType:  questionType(q),
		ExplicitYears: years,
		Durations:     durations,
		IsDuration:    len(durations) > 0,
		Presence:      q.present,
		Flags:         q.flags,
	}

	for _, r := range c.rules {
		if r.match(q, &a) {
			a.Rule = r.name
			break
		}
	}
	if a.Intent == "" {
		a.Intent = SemanticFallback
		a.Rule = "semantic_fallback"
	}
	slog.Debug("intent: classified", "intent", a.Intent, "qtype", a.QuestionType,
		"rule", a.Rule, "years", a.ExplicitYears)
	return a
}

func questionType(q *query) QuestionType {
	switch {
	case anyMatch(scopePatterns, q.text, q.folded):
		return Scope
	case anyMatch(whenPatterns, q.text, q.folded):
		return When
	case anyMatch(whoPatterns, q.text, q.folded):
		return Who
	case anyMatch(listPatterns, q.text, q.folded):
		return List
	}
	return What
}

func matchMeta(q *query, a *Analysis) bool {
	small := q.words <= maxSmallTalkWords
	switch {
	case anyMatch(creatorPatterns, q.text, q.folded):
		a.Intent = Creator
	case anyMatch(identityPatterns, q.text, q.folded):
		a.Intent = Identity
	case small && anyMatch(thanksPatterns, q.text, q.folded):
		a.Intent = Thanks
	case small && anyMatch(goodbyePatterns, q.text, q.folded):
		a.Intent = Goodbye
	case small && anyMatch(greetingPatterns, q.text, q.folded):
		a.Intent = Greeting
	default:
		return false
	}
	return true
}

func matchDataScope(q *query, a *Analysis) bool {
	if !anyMatch(dataScopePatterns, q.text, q.folded) {
		return false
	}
	a.Intent = DataScope
	a.QuestionType = Scope
	return true
}

func matchFactCheck(q *query, a *Analysis) bool {
	for _, p := range factCheckPatterns {
		m := p.Find(q.text, q.folded)
		if m == nil {
			continue
		}
		y, err := strconv.Atoi(m[1])
		if err != nil || !validYear(y) {
			continue
		}
		a.Intent = FactCheck
		a.QuestionType = When
		a.ClaimedYear = y
		a.HasClaim = true
		return true
	}
	if anyMatch(yearlessFactCheckPatterns, q.text, q.folded) && len(a.ExplicitYears) == 0 && !q.flags.Relationship {
		a.Intent = FactCheck
		a.QuestionType = When
		return true
	}
	return false
}

func matchRange(q *query, a *Analysis) bool {
	r, ok := extractRange(q.text, q.folded)
	if !ok {
		return false
	}
	a.Intent = YearRange
	a.Range = &r
	a.QuestionType = List
	return true
}

// Several distinct years without a range: each year is scanned.
func matchMultiYear(_ *query, a *Analysis) bool {
	if len(a.ExplicitYears) < 2 {
		return false
	}
	a.Intent = YearSpecific
	a.ExplicitYears = sortedUnique(a.ExplicitYears)
	a.QuestionType = List
	return true
}

func matchEntity(q *query, a *Analysis) bool {
	p := q.present
	if !p.Any() {
		return false
	}
	switch {
	case q.flags.Relationship && (p.Persons || p.Topics || p.Dynasties):
		a.Intent = Relationship
	case q.flags.Definition && p.Persons:
		a.Intent = Definition
		a.QuestionType = Who
	case p.Persons:
		a.Intent = PersonQuery
	case p.Dynasties && !p.Topics:
		a.Intent = DynastyQuery
	default:
		a.Intent = EventQuery
	}
	a.Year = singleYear(a)
	return true
}

func matchDefinition(q *query, a *Analysis) bool {
	if !q.flags.Definition {
		return false
	}
	a.Intent = Definition
	return true
}

func matchBroad(q *query, a *Analysis) bool {
	switch {
	case q.flags.Broad:
		a.Intent = BroadHistory
	case q.flags.Resistance:
		a.Intent = EventQuery
	default:
		return false
	}
	a.QuestionType = List
	return true
}

func matchSingleYear(_ *query, a *Analysis) bool {
	y := singleYear(a)
	if y == 0 {
		return false
	}
	a.Intent = YearSpecific
	a.Year = y
	return true
}

func singleYear(a *Analysis) int {
	if len(a.ExplicitYears) == 1 {
		return a.ExplicitYears[0]
	}
	return 0
}
