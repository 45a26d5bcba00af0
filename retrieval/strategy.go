package retrieval

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/brunobiangulo/historymind/constraint"
	"github.com/brunobiangulo/historymind/intent"
	"github.com/brunobiangulo/historymind/kb"
	"github.com/brunobiangulo/historymind/vntext"
)

type strategy struct {
	name    string
	applies func(c *constraint.QueryConstraint) bool
	run     func(ctx context.Context, p *pass) (Kind, []Candidate)
}

// cascade returns the strategies in priority order. The last one always
// applies.
func (o *Orchestrator) cascade() []strategy {
	return []strategy{
		{"meta", isCanned, func(context.Context, *pass) (Kind, []Candidate) { return KindCanned, nil }},
		{"fact_check", is(intent.FactCheck), o.factCheck},
		{"year_range", func(c *constraint.QueryConstraint) bool { return c.Years.Kind == constraint.YearsRange }, o.yearRange},
		{"multi_year", func(c *constraint.QueryConstraint) bool { return c.IsMultiYear() }, o.multiYear},
		{"entity", isEntityScan, func(ctx context.Context, p *pass) (Kind, []Candidate) {
			return KindCandidates, o.entityScan(ctx, p, "entity")
		}},
		{"identity", isIdentity, func(context.Context, *pass) (Kind, []Candidate) { return KindIdentity, nil }},
		{"relationship", is(intent.Relationship), func(ctx context.Context, p *pass) (Kind, []Candidate) {
			return KindCandidates, o.entityScan(ctx, p, "relationship")
		}},
		{"definition", is(intent.Definition), o.semanticStrategy("definition")},
		{"single_year", func(c *constraint.QueryConstraint) bool { return c.Years.Kind == constraint.YearsSingle }, o.singleYear},
		{"semantic", func(*constraint.QueryConstraint) bool { return true }, o.semanticStrategy("semantic")},
	}
}

func is(i intent.Intent) func(*constraint.QueryConstraint) bool {
	return func(c *constraint.QueryConstraint) bool { return c.Intent == i }
}

func isCanned(c *constraint.QueryConstraint) bool {
	return c.Intent.IsMeta() || c.Intent == intent.DataScope
}

func isEntityScan(c *constraint.QueryConstraint) bool {
	return c.HasEntities() && c.Intent != intent.Relationship && c.Intent != intent.Definition
}

func isIdentity(c *constraint.QueryConstraint) bool {
	return c.SameEntity.Same && (c.Intent == intent.Relationship || c.Intent == intent.Definition || c.Flags.Relationship)
}

func (o *Orchestrator) semanticStrategy(name string) func(context.Context, *pass) (Kind, []Candidate) {
	return func(ctx context.Context, p *pass) (Kind, []Candidate) {
		return KindCandidates, o.semantic(ctx, p, vntext.Normalize(p.c.Rewritten), name)
	}
}

// factCheck looks the event up by its entities, ignoring the claimed year,
// and falls back to a semantic search of the question.
func (o *Orchestrator) factCheck(ctx context.Context, p *pass) (Kind, []Candidate) {
	if p.c.HasEntities() {
		if cands := o.entityScan(ctx, p, "fact_check"); len(cands) > 0 {
			return KindCandidates, cands
		}
	}
	return KindCandidates, o.semantic(ctx, p, vntext.Normalize(p.c.Rewritten), "fact_check")
}

func (o *Orchestrator) yearRange(_ context.Context, p *pass) (Kind, []Candidate) {
	positions := o.snap.RangeDocs(p.c.Years.From, p.c.Years.To)
	return KindCandidates, o.capped(o.positionsToCandidates(positions, "year_range"))
}

func (o *Orchestrator) multiYear(_ context.Context, p *pass) (Kind, []Candidate) {
	var lists [][]int
	for _, y := range p.c.ExplicitYears {
		lists = append(lists, o.snap.YearDocs(y))
	}
	positions := kb.Union(lists...)
	o.sortChronological(positions)
	return KindCandidates, o.capped(o.positionsToCandidates(positions, "multi_year"))
}

func (o *Orchestrator) singleYear(_ context.Context, p *pass) (Kind, []Candidate) {
	return KindCandidates, o.positionsToCandidates(o.snap.YearDocs(p.c.Years.From), "single_year")
}

func (o *Orchestrator) capped(c []Candidate) []Candidate {
	if o.cfg.RangeCap > 0 && len(c) > o.cfg.RangeCap {
		return c[:o.cfg.RangeCap]
	}
	return c
}

func (o *Orchestrator) positionsToCandidates(positions []int, strategy string) []Candidate {
	out := make([]Candidate, 0, len(positions))
	for _, pos := range positions {
		out = append(out, Candidate{Doc: o.snap.Doc(pos), Pos: pos, Score: 1, Strategy: strategy})
	}
	return out
}

func (o *Orchestrator) sortChronological(positions []int) {
	sort.SliceStable(positions, func(i, j int) bool {
		return yearKey(o.snap.Doc(positions[i])) < yearKey(o.snap.Doc(positions[j]))
	})
}

// yearKey orders undated documents last.
func yearKey(d *kb.Document) int {
	if !d.Year.Known() {
		return math.MaxInt
	}
	return d.Year.From
}

// entityScan unions the postings of every resolved entity, ranks documents
// by how many entities they match, applies the year constraint and the
// relevance filters, then tops up thin results semantically.
func (o *Orchestrator) entityScan(ctx context.Context, p *pass, name string) []Candidate {
	c := p.c
	counts := make(map[int]int)
	var order []int
	add := func(cat kb.Category, names []string) {
		for _, n := range names {
			for _, pos := range o.snap.Docs(cat, n) {
				if counts[pos] == 0 {
					order = append(order, pos)
				}
				counts[pos]++
			}
		}
	}
	add(kb.CategoryPerson, c.Persons)
	add(kb.CategoryDynasty, c.Dynasties)
	add(kb.CategoryTopic, c.Topics)
	add(kb.CategoryPlace, c.Places)
	add(kb.CategoryKeyword, c.Keywords)

	o.sortChronological(order)
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })

	cands := make([]Candidate, 0, len(order))
	for _, pos := range order {
		cands = append(cands, Candidate{Doc: o.snap.Doc(pos), Pos: pos, Score: float64(counts[pos]), Strategy: name})
	}
	cands = filterYears(c, cands)
	cands = o.filterPersons(c, cands)
	cands = o.filterDynasty(c, cands)
	cands = o.filterKeywords(c, cands)

	if n := len(cands); n > 0 && n < o.cfg.SupplementBelow {
		extra := o.semantic(ctx, p, vntext.Normalize(c.Rewritten), name+"_supplement")
		cands = append(cands, extra...)
	}
	return cands
}

// filterYears applies the year constraint; undated documents never pass a
// set constraint.
func filterYears(c *constraint.QueryConstraint, cands []Candidate) []Candidate {
	var keep func(kb.Year) bool
	switch {
	case c.Years.Kind == constraint.YearsSingle:
		keep = func(y kb.Year) bool { return y.Contains(c.Years.From) }
	case c.Years.Kind == constraint.YearsRange:
		keep = func(y kb.Year) bool { return y.Overlaps(c.Years.From, c.Years.To) }
	case c.IsMultiYear():
		keep = func(y kb.Year) bool {
			for _, v := range c.ExplicitYears {
				if y.Contains(v) {
					return true
				}
			}
			return false
		}
	default:
		return cands
	}
	out := cands[:0:0]
	for _, cd := range cands {
		if keep(cd.Doc.Year) {
			out = append(out, cd)
		}
	}
	return out
}

// filterPersons keeps documents that list one of the requested persons
// when persons are the only named entities. An empty result is a data gap,
// not a reason to keep everything.
func (o *Orchestrator) filterPersons(c *constraint.QueryConstraint, cands []Candidate) []Candidate {
	if len(c.Persons) == 0 || len(c.Dynasties) > 0 || len(c.Topics) > 0 {
		return cands
	}
	targets := make(map[string]bool, len(c.Persons))
	for _, p := range c.Persons {
		targets[p] = true
	}
	out := cands[:0:0]
	for _, cd := range cands {
		for _, name := range cd.Doc.AllPersons() {
			if targets[o.canonical(kb.CategoryPerson, name)] {
				out = append(out, cd)
				break
			}
		}
	}
	return out
}

// filterDynasty drops documents of another dynasty than the requested
// ones, unless that would drop everything or the question names the
// country itself.
func (o *Orchestrator) filterDynasty(c *constraint.QueryConstraint, cands []Candidate) []Candidate {
	if len(c.Dynasties) == 0 || len(cands) == 0 || o.namesNation(c) {
		return cands
	}
	out := cands[:0:0]
	for _, cd := range cands {
		if cd.Doc.Dynasty == "" || o.dynastyMatches(cd.Doc.Dynasty, c.Dynasties) {
			out = append(out, cd)
		}
	}
	if len(out) == 0 {
		return cands
	}
	return out
}

func (o *Orchestrator) dynastyMatches(docDynasty string, targets []string) bool {
	d := o.canonical(kb.CategoryDynasty, docDynasty)
	for _, t := range targets {
		if d == t || strings.Contains(d, t) || strings.Contains(t, d) {
			return true
		}
	}
	return false
}

func (o *Orchestrator) namesNation(c *constraint.QueryConstraint) bool {
	for _, list := range [][]string{c.Places, c.Keywords, c.Topics} {
		for _, n := range list {
			if o.snap.IsNationalName(n) {
				return true
			}
		}
	}
	for _, n := range o.snap.NationalNames() {
		if vntext.ContainsPhrase(c.Rewritten, n) {
			return true
		}
	}
	return false
}

func (o *Orchestrator) canonical(cat kb.Category, name string) string {
	if v, ok := o.snap.Canonical(cat, name); ok {
		return v
	}
	return vntext.Normalize(name)
}

// filterKeywords scores candidates by how many significant query words
// their text contains and drops clear outliers.
func (o *Orchestrator) filterKeywords(c *constraint.QueryConstraint, cands []Candidate) []Candidate {
	if len(cands) == 0 {
		return cands
	}
	var words []string
	for _, w := range vntext.SignificantWords(c.Rewritten) {
		if !o.snap.IsNonDiscriminating(w) {
			words = append(words, w)
		}
	}
	if len(words) < 2 {
		return cands
	}

	scores := make([]int, len(cands))
	best := 0
	for i, cd := range cands {
		text := vntext.Normalize(cd.Doc.Story + " " + cd.Doc.Event + " " + strings.Join(cd.Doc.Keywords, " "))
		for _, w := range words {
			if strings.Contains(text, w) {
				scores[i]++
			}
		}
		if scores[i] > best {
			best = scores[i]
		}
	}
	if best <= 1 {
		return cands
	}

	threshold := int(math.Floor(float64(best) * o.cfg.KeywordFloorRatio))
	if threshold < o.cfg.KeywordFloorMin {
		threshold = o.cfg.KeywordFloorMin
	}
	out := cands[:0:0]
	for i, cd := range cands {
		if scores[i] >= threshold {
			out = append(out, cd)
		}
	}
	if len(out) > 0 {
		return out
	}
	for i, cd := range cands {
		if scores[i] > 0 {
			out = append(out, cd)
		}
	}
	if len(out) > 0 {
		return out
	}
	return cands
}
