// Package constraint aggregates the rewrite, intent and entity stages into
// the single read-only description of a request that later stages consume.
package constraint

import (
	"fmt"

	"github.com/brunobiangulo/historymind/entity"
	"github.com/brunobiangulo/historymind/intent"
	"github.com/brunobiangulo/historymind/nlu"
	"github.com/brunobiangulo/historymind/vntext"
)

// YearKind distinguishes the three shapes of a year constraint.
type YearKind int

const (
	YearsNone YearKind = iota
	YearsSingle
	YearsRange
)

// Years is the year constraint of a request. For YearsSingle From == To.
type Years struct {
	Kind YearKind `json:"kind"`
	From int      `json:"from,omitempty"`
	To   int      `json:"to,omitempty"`
}

// Single returns a one-year constraint.
func Single(y int) Years { return Years{Kind: YearsSingle, From: y, To: y} }

// Between returns an ordered range constraint.
func Between(a, b int) Years {
	if a > b {
		a, b = b, a
	}
	return Years{Kind: YearsRange, From: a, To: b}
}

// Set reports whether a year constraint applies.
func (y Years) Set() bool { return y.Kind != YearsNone }

func (y Years) String() string {
	switch y.Kind {
	case YearsSingle:
		return fmt.Sprintf("%d", y.From)
	case YearsRange:
		return fmt.Sprintf("%d–%d", y.From, y.To)
	}
	return "none"
}

// RelationType is the temporal relation a question asserts between its
// entities.
type RelationType string

const (
	RelationNone       RelationType = ""
	RelationLiveDuring RelationType = "live_during"
	RelationBelongTo   RelationType = "belong_to"
	RelationCompare    RelationType = "compare"
)

// Bounds is the inclusive window of accepted query years.
type Bounds struct {
	Min int `json:"min" yaml:"min" mapstructure:"min"`
	Max int `json:"max" yaml:"max" mapstructure:"max"`
}

// DefaultBounds matches the classifier's year window.
func DefaultBounds() Bounds { return Bounds{Min: intent.MinQueryYear, Max: intent.MaxQueryYear} }

func (b Bounds) contains(y int) bool { return y >= b.Min && y <= b.Max }

// QueryConstraint is built once per request and only read afterwards.
type QueryConstraint struct {
	Raw       string   `json:"raw"`
	Rewritten string   `json:"rewritten"`
	Variants  []string `json:"variants,omitempty"`

	Intent       intent.Intent       `json:"intent"`
	QuestionType intent.QuestionType `json:"question_type"`
	RelationType RelationType        `json:"relation_type,omitempty"`

	Persons   []string `json:"persons,omitempty"`
	Dynasties []string `json:"dynasties,omitempty"`
	Topics    []string `json:"topics,omitempty"`
	Places    []string `json:"places,omitempty"`
	Keywords  []string `json:"keywords,omitempty"`

	Years         Years           `json:"years"`
	ExplicitYears []int           `json:"explicit_years,omitempty"`
	ClaimedYear   int             `json:"claimed_year,omitempty"`
	HasClaim      bool            `json:"has_claim,omitempty"`
	IsDuration    bool            `json:"is_duration,omitempty"`
	SameEntity    entity.Identity `json:"same_entity"`
	Flags         intent.Flags    `json:"flags"`
}

// HasEntities reports whether any entity or keyword was resolved.
func (c *QueryConstraint) HasEntities() bool {
	return len(c.Persons)+len(c.Dynasties)+len(c.Topics)+len(c.Places)+len(c.Keywords) > 0
}

// IsMultiYear reports a list of distinct years without a range.
func (c *QueryConstraint) IsMultiYear() bool {
	return !c.Years.Set() && len(c.ExplicitYears) >= 2
}

// QueryYears returns every year the question itself names.
func (c *QueryConstraint) QueryYears() []int {
	out := append([]int(nil), c.ExplicitYears...)
	if c.Years.Set() {
		out = append(out, c.Years.From, c.Years.To)
	}
	if c.HasClaim {
		out = append(out, c.ClaimedYear)
	}
	return out
}

// Extract aggregates the per-stage results. It performs no lookups.
func Extract(rw nlu.Result, a intent.Analysis, res entity.Resolved, same entity.Identity, b Bounds) QueryConstraint {
	c := QueryConstraint{
		Raw:          rw.Original,
		Rewritten:    rw.Primary,
		Variants:     rw.Variants,
		Intent:       a.Intent,
		QuestionType: a.QuestionType,
		Persons:      res.Persons,
		Dynasties:    res.Dynasties,
		Topics:       res.Topics,
		Places:       res.Places,
		Keywords:     res.Keywords,
		IsDuration:   a.IsDuration,
		SameEntity:   same,
		Flags:        a.Flags,
	}

	for _, y := range a.ExplicitYears {
		if b.contains(y) {
			c.ExplicitYears = append(c.ExplicitYears, y)
		}
	}

	switch {
	case a.Intent == intent.FactCheck:
		// The claimed year is what is being checked, not a filter.
		if a.HasClaim && b.contains(a.ClaimedYear) {
			c.ClaimedYear = a.ClaimedYear
			c.HasClaim = true
		}
	case a.Range != nil:
		if b.contains(a.Range.From) && b.contains(a.Range.To) {
			c.Years = Between(a.Range.From, a.Range.To)
		}
	case a.Year != 0:
		if b.contains(a.Year) {
			c.Years = Single(a.Year)
		}
	}

	folded := vntext.StripDiacritics(rw.Primary)
	c.RelationType = relationType(rw.Primary, folded)
	c.QuestionType = refineQuestionType(c.QuestionType, rw.Primary, folded)
	return c
}

var (
	liveDuringPatterns = []vntext.Pattern{
		vntext.Phrases(`cuối\s+thời`, `đầu\s+thời`, `sinh\s+thời`, `trong\s+giai\s+đoạn`,
			`sống\s+(?:vào|thời|trong)`, `sinh\s+(?:vào|năm|ra)`, `cùng\s+thời`),
	}
	belongToPatterns = []vntext.Pattern{
		vntext.Phrases(`thuộc`, `phục\s+vụ`, `thời\s+nhà`, `dưới\s+triều`, `triều\s+đại`, `triều`, `thời`),
	}
	comparePatterns = []vntext.Pattern{
		vntext.Phrases(`so\s+với`, `so\s+sánh`, `khác\s+nhau`),
	}
	durationPatterns = []vntext.Pattern{
		vntext.Phrases(`bao\s+lâu`, `bao\s+nhiêu\s+năm`, `mấy\s+năm`, `kéo\s+dài`),
	}
	wherePatterns = []vntext.Pattern{
		vntext.Phrases(`ở\s+đâu`, `nơi\s+nào`, `tại\s+đâu`, `chỗ\s+nào`, `where`),
	}
)

// relationType checks live_during, then belong_to, then compare.
func relationType(text, folded string) RelationType {
	switch {
	case vntext.MatchAny(liveDuringPatterns, text, folded):
		return RelationLiveDuring
	case vntext.MatchAny(belongToPatterns, text, folded):
		return RelationBelongTo
	case vntext.MatchAny(comparePatterns, text, folded):
		return RelationCompare
	}
	return RelationNone
}

func refineQuestionType(q intent.QuestionType, text, folded string) intent.QuestionType {
	switch q {
	case intent.What, intent.When:
		if vntext.MatchAny(durationPatterns, text, folded) {
			return intent.Duration
		}
	}
	if q == intent.What && vntext.MatchAny(wherePatterns, text, folded) {
		return intent.Where
	}
	return q
}
