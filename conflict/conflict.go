// Package conflict rejects questions whose entities and years cannot be
// true together, before any retrieval happens.
package conflict

import (
	"fmt"
	"log/slog"

	"github.com/brunobiangulo/historymind/constraint"
	"github.com/brunobiangulo/historymind/kb"
	"github.com/brunobiangulo/historymind/vntext"
)

// Verdict is the outcome of Detect. Phase names the check that fired and
// is only meaningful when IsConflicting is set.
type Verdict struct {
	IsConflicting bool   `json:"is_conflicting"`
	Reason        string `json:"reason,omitempty"`
	Phase         int    `json:"phase"`
}

// SpanSource provides temporal metadata for canonical entity names.
type SpanSource interface {
	Span(c kb.Category, name string) (kb.Span, bool)
}

// Detector checks a constraint against entity spans.
type Detector struct {
	spans SpanSource
}

// NewDetector returns a detector backed by spans, usually a *kb.Snapshot.
func NewDetector(spans SpanSource) *Detector {
	return &Detector{spans: spans}
}

type spanned struct {
	cat  kb.Category
	name string
	span kb.Span
}

func (s spanned) label() string { return fmt.Sprintf("%s (%s)", vntext.Title(s.name), s.span) }

// Detect runs the phases in order and returns the first conflict.
func (d *Detector) Detect(c *constraint.QueryConstraint) Verdict {
	persons := d.lookup(kb.CategoryPerson, c.Persons)
	dynasties := d.lookup(kb.CategoryDynasty, c.Dynasties)

	phases := []func() (string, bool){
		func() (string, bool) { return yearsOutsideRange(c) },
		func() (string, bool) { return spanVersusYears(c, append(append([]spanned(nil), persons...), dynasties...)) },
		func() (string, bool) { return coexistence(c, persons, dynasties) },
		func() (string, bool) { return membership(c, persons, dynasties) },
	}
	for i, phase := range phases {
		if reason, bad := phase(); bad {
			slog.Debug("conflict: detected", "phase", i, "reason", reason)
			return Verdict{IsConflicting: true, Reason: reason, Phase: i}
		}
	}
	return Verdict{}
}

// lookup keeps the names that carry metadata; the others never conflict.
func (d *Detector) lookup(cat kb.Category, names []string) []spanned {
	var out []spanned
	for _, n := range names {
		if sp, ok := d.spans.Span(cat, n); ok {
			out = append(out, spanned{cat: cat, name: n, span: sp})
		}
	}
	return out
}

// Phase 0: a year named alongside a range must fall inside it.
func yearsOutsideRange(c *constraint.QueryConstraint) (string, bool) {
	if c.Years.Kind != constraint.YearsRange {
		return "", false
	}
	for _, y := range c.ExplicitYears {
		if y < c.Years.From || y > c.Years.To {
			return fmt.Sprintf("Năm %d nằm ngoài giai đoạn %d–%d mà bạn đã nêu.", y, c.Years.From, c.Years.To), true
		}
	}
	return "", false
}

// Phase 1: each entity against the single year or the range.
func spanVersusYears(c *constraint.QueryConstraint, ents []spanned) (string, bool) {
	switch c.Years.Kind {
	case constraint.YearsSingle:
		y := c.Years.From
		for _, e := range ents {
			if !e.span.Contains(y) {
				return fmt.Sprintf("%s không %s vào năm %d.", e.label(), verb(e.cat), y), true
			}
		}
	case constraint.YearsRange:
		for _, e := range ents {
			if !e.span.Overlaps(c.Years.From, c.Years.To) {
				return fmt.Sprintf("%s không %s trong giai đoạn %d–%d.", e.label(), verb(e.cat), c.Years.From, c.Years.To), true
			}
		}
	}
	return "", false
}

// Phase 2: entities said to live during one another must share a period.
// For belong_to only persons are compared here; persons against
// dynasties is phase 3.
func coexistence(c *constraint.QueryConstraint, persons, dynasties []spanned) (string, bool) {
	var ents []spanned
	switch c.RelationType {
	case constraint.RelationLiveDuring:
		ents = append(append(ents, persons...), dynasties...)
	case constraint.RelationBelongTo:
		ents = persons
	default:
		return "", false
	}
	if len(ents) < 2 {
		return "", false
	}
	lo, hi := ents[0], ents[0]
	for _, e := range ents[1:] {
		if e.span.From > lo.span.From {
			lo = e
		}
		if e.span.To < hi.span.To {
			hi = e
		}
	}
	if lo.span.From <= hi.span.To {
		return "", false
	}
	return fmt.Sprintf("%s và %s không cùng thời.", hi.label(), lo.label()), true
}

// Phase 3: a person said to belong to a dynasty must overlap it.
func membership(c *constraint.QueryConstraint, persons, dynasties []spanned) (string, bool) {
	if c.RelationType != constraint.RelationBelongTo {
		return "", false
	}
	for _, p := range persons {
		for _, d := range dynasties {
			if !p.span.Overlaps(d.span.From, d.span.To) {
				return fmt.Sprintf("%s không thuộc thời %s.", p.label(), d.label()), true
			}
		}
	}
	return "", false
}

func verb(c kb.Category) string {
	if c == kb.CategoryPerson {
		return "sống"
	}
	return "tồn tại"
}
