// Package synth renders answers from reranked candidates with fixed
// Vietnamese templates chosen by intent and question type.
package synth

import (
	"log/slog"

	"github.com/brunobiangulo/historymind/constraint"
	"github.com/brunobiangulo/historymind/intent"
	"github.com/brunobiangulo/historymind/kb"
	"github.com/brunobiangulo/historymind/retrieval"
)

// Template names the shape of a rendered answer.
type Template string

const (
	TemplateWhen         Template = "when"
	TemplateWho          Template = "who"
	TemplateWhat         Template = "what"
	TemplateList         Template = "list"
	TemplateGroupedList  Template = "grouped_list"
	TemplateDynasty      Template = "dynasty"
	TemplateFactConfirm  Template = "fact_confirm"
	TemplateFactCorrect  Template = "fact_correct"
	TemplateFactInfo     Template = "fact_info"
	TemplateScope        Template = "scope"
	TemplateCanned       Template = "canned"
	TemplateSameEntity   Template = "same_entity"
	TemplateConflict     Template = "conflict"
	TemplateNoData       Template = "no_data"
	TemplateConservative Template = "conservative"
)

// Factual reports whether the template renders corpus content and is
// therefore subject to output verification.
func (t Template) Factual() bool {
	switch t {
	case TemplateWhen, TemplateWho, TemplateWhat, TemplateList, TemplateGroupedList,
		TemplateDynasty, TemplateFactConfirm, TemplateFactCorrect, TemplateFactInfo:
		return true
	}
	return false
}

// Input is what a factual answer is synthesised from.
type Input struct {
	Constraint *constraint.QueryConstraint
	Candidates []retrieval.Candidate
}

// Draft is a rendered answer. Used lists the candidates that contributed
// to Text, in rendering order.
type Draft struct {
	Text     string                `json:"text"`
	Used     []retrieval.Candidate `json:"-"`
	Template Template              `json:"template"`
}

// Config holds event caps and list grouping.
type Config struct {
	DefaultCap int `json:"default_cap" yaml:"default_cap" mapstructure:"default_cap"`
	EntityCap  int `json:"entity_cap" yaml:"entity_cap" mapstructure:"entity_cap"`
	RangeCap   int `json:"range_cap" yaml:"range_cap" mapstructure:"range_cap"`
	WhoCap     int `json:"who_cap" yaml:"who_cap" mapstructure:"who_cap"`

	// Lists spanning more than GroupSpan years are grouped by period.
	GroupSpan int `json:"group_span" yaml:"group_span" mapstructure:"group_span"`

	// ConservativeCap bounds the title list of the conservative answer.
	ConservativeCap int `json:"conservative_cap" yaml:"conservative_cap" mapstructure:"conservative_cap"`
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		DefaultCap:      5,
		EntityCap:       10,
		RangeCap:        15,
		WhoCap:          5,
		GroupSpan:       200,
		ConservativeCap: 5,
	}
}

// Synthesizer renders drafts. It is safe for concurrent use.
type Synthesizer struct {
	snap *kb.Snapshot
	cfg  Config
}

// New creates a Synthesizer. snap provides corpus statistics and aliases.
func New(snap *kb.Snapshot, cfg Config) *Synthesizer {
	return &Synthesizer{snap: snap, cfg: cfg}
}

// Synthesize picks the template for in and renders it. Meta and scope
// questions need no candidates; otherwise an empty candidate list gives
// the no-data suggestion.
func (s *Synthesizer) Synthesize(in Input) Draft {
	c := in.Constraint
	switch {
	case c.Intent.IsMeta():
		return s.Canned(c.Intent)
	case c.Intent == intent.DataScope || c.QuestionType == intent.Scope:
		return s.Scope()
	case len(in.Candidates) == 0:
		return s.NoData(c)
	}

	var d Draft
	switch {
	case c.Intent == intent.FactCheck:
		d = s.factCheck(c, in.Candidates)
	case c.Years.Kind == constraint.YearsRange || c.IsMultiYear() ||
		c.QuestionType == intent.List || c.Flags.Broad || c.Intent == intent.BroadHistory:
		d = s.list(in.Candidates, s.capFor(c, TemplateList))
	case c.Intent == intent.DynastyQuery && c.QuestionType != intent.When && len(c.Dynasties) > 0:
		d = s.dynasty(c, in.Candidates)
	case c.QuestionType == intent.When:
		d = s.when(in.Candidates)
	case c.QuestionType == intent.Who:
		d = s.who(c, in.Candidates)
	default:
		d = s.what(in.Candidates, s.capFor(c, TemplateWhat))
	}
	if d.Text == "" {
		return s.NoData(c)
	}
	slog.Debug("synth: rendered", "template", d.Template, "used", len(d.Used))
	return d
}

func (s *Synthesizer) capFor(c *constraint.QueryConstraint, t Template) int {
	switch {
	case c.Years.Kind == constraint.YearsRange || c.IsMultiYear():
		return s.cfg.RangeCap
	case t == TemplateDynasty || c.HasEntities():
		return s.cfg.EntityCap
	}
	return s.cfg.DefaultCap
}
