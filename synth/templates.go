package synth

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/brunobiangulo/historymind/constraint"
	"github.com/brunobiangulo/historymind/kb"
	"github.com/brunobiangulo/historymind/retrieval"
	"github.com/brunobiangulo/historymind/vntext"
)

// yearPrefixRe matches stories that repeat their own year, "Năm 1945: ...".
var yearPrefixRe = regexp.MustCompile(`(?i)^(năm|vào năm)\s+\d{1,4}(\s*[–-]\s*\d{1,4})?\s*[:,.–-]\s*`)

// narrative returns the cleaned display text of a document.
func narrative(d *kb.Document) string {
	text := strings.TrimSpace(d.Text())
	if loc := yearPrefixRe.FindStringIndex(text); loc != nil {
		text = upperFirst(strings.TrimSpace(text[loc[1]:]))
	}
	return text
}

func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// line renders "**Năm Y:** story", or the story alone when undated.
func line(d *kb.Document, text string) string {
	if d.Year.Known() {
		return fmt.Sprintf("**Năm %s:** %s", d.Year, text)
	}
	return text
}

// distinct walks cands in order, skipping empty and repeated narratives,
// until limit entries were collected.
func distinct(cands []retrieval.Candidate, limit int, fn func(c retrieval.Candidate, text string)) []retrieval.Candidate {
	seen := make(map[string]bool, len(cands))
	var used []retrieval.Candidate
	for _, c := range cands {
		if limit > 0 && len(used) >= limit {
			break
		}
		text := narrative(c.Doc)
		key := vntext.Key(text)
		if text == "" || seen[key] {
			continue
		}
		seen[key] = true
		used = append(used, c)
		fn(c, text)
	}
	return used
}

func chronological(cands []retrieval.Candidate) []retrieval.Candidate {
	out := append([]retrieval.Candidate(nil), cands...)
	sort.SliceStable(out, func(i, j int) bool {
		yi, yj := out[i].Doc.Year, out[j].Doc.Year
		switch {
		case !yi.Known():
			return false
		case !yj.Known():
			return true
		}
		return yi.From < yj.From
	})
	return out
}

func (s *Synthesizer) when(cands []retrieval.Candidate) Draft {
	var text string
	used := distinct(cands, 1, func(c retrieval.Candidate, t string) {
		if c.Doc.Year.Known() {
			text = fmt.Sprintf("Năm **%s**, %s", c.Doc.Year, t)
		} else {
			text = t
		}
	})
	return Draft{Text: text, Used: used, Template: TemplateWhen}
}

func (s *Synthesizer) who(c *constraint.QueryConstraint, cands []retrieval.Candidate) Draft {
	var parts []string
	if len(c.Persons) > 0 {
		parts = append(parts, "**"+vntext.Title(c.Persons[0])+"**")
	}
	used := distinct(cands, s.cfg.WhoCap, func(c retrieval.Candidate, t string) {
		parts = append(parts, line(c.Doc, t))
	})
	if len(used) == 0 {
		return Draft{Template: TemplateWho}
	}
	return Draft{Text: strings.Join(parts, "\n\n"), Used: used, Template: TemplateWho}
}

func (s *Synthesizer) what(cands []retrieval.Candidate, limit int) Draft {
	var parts []string
	used := distinct(cands, limit, func(c retrieval.Candidate, t string) {
		if !c.Doc.Year.Known() && c.Doc.Title != "" && c.Doc.Title != t {
			parts = append(parts, fmt.Sprintf("**%s:** %s", c.Doc.Title, t))
			return
		}
		parts = append(parts, line(c.Doc, t))
	})
	return Draft{Text: strings.Join(parts, "\n\n"), Used: used, Template: TemplateWhat}
}

func (s *Synthesizer) dynasty(c *constraint.QueryConstraint, cands []retrieval.Candidate) Draft {
	parts := []string{"**" + vntext.Title(c.Dynasties[0]) + "**"}
	used := distinct(chronological(cands), s.cfg.EntityCap, func(c retrieval.Candidate, t string) {
		parts = append(parts, line(c.Doc, t))
	})
	if len(used) == 0 {
		return Draft{Template: TemplateDynasty}
	}
	return Draft{Text: strings.Join(parts, "\n\n"), Used: used, Template: TemplateDynasty}
}

// list renders candidates chronologically, grouped by period when they
// span more than GroupSpan years.
func (s *Synthesizer) list(cands []retrieval.Candidate, limit int) Draft {
	type item struct {
		c    retrieval.Candidate
		text string
	}
	var items []item
	used := distinct(chronological(cands), limit, func(c retrieval.Candidate, t string) {
		items = append(items, item{c, t})
	})

	lo, hi, dated := 0, 0, false
	for _, it := range items {
		y := it.c.Doc.Year
		if !y.Known() {
			continue
		}
		if !dated || y.From < lo {
			lo = y.From
		}
		if !dated || y.To > hi {
			hi = y.To
		}
		dated = true
	}

	if !dated || hi-lo <= s.cfg.GroupSpan {
		parts := make([]string, len(items))
		for i, it := range items {
			parts[i] = line(it.c.Doc, it.text)
		}
		return Draft{Text: strings.Join(parts, "\n\n"), Used: used, Template: TemplateList}
	}

	groups := make(map[int][]string)
	for _, it := range items {
		p := -1
		if it.c.Doc.Year.Known() {
			p = PeriodOf(it.c.Doc.Year.From)
		}
		groups[p] = append(groups[p], "- "+line(it.c.Doc, it.text))
	}
	var sections []string
	for i, p := range Periods {
		if lines, ok := groups[i]; ok {
			heading := fmt.Sprintf("### %s (%d–%d)", p.Name, p.From, p.To)
			sections = append(sections, heading+"\n"+strings.Join(lines, "\n"))
		}
	}
	if lines, ok := groups[-1]; ok {
		sections = append(sections, "### "+otherPeriod+"\n"+strings.Join(lines, "\n"))
	}
	return Draft{Text: strings.Join(sections, "\n\n"), Used: used, Template: TemplateGroupedList}
}

// factCheck compares the claimed year against the best dated candidate.
// A claim inside a ranged record counts as correct.
func (s *Synthesizer) factCheck(c *constraint.QueryConstraint, cands []retrieval.Candidate) Draft {
	var best *retrieval.Candidate
	for i := range cands {
		if cands[i].Doc.Year.Known() && narrative(cands[i].Doc) != "" {
			best = &cands[i]
			break
		}
	}
	if best == nil {
		return s.what(cands, s.cfg.DefaultCap)
	}
	y := best.Doc.Year
	var head string
	var t Template
	switch {
	case !c.HasClaim:
		head = fmt.Sprintf("Theo dữ liệu lịch sử, sự kiện này diễn ra vào năm **%s**.", y)
		t = TemplateFactInfo
	case y.Contains(c.ClaimedYear):
		head = fmt.Sprintf("✅ **Đúng rồi!** Sự kiện này diễn ra vào năm **%s**.", y)
		t = TemplateFactConfirm
	default:
		head = fmt.Sprintf("❌ **Không phải năm %d**, sự kiện này thực tế diễn ra vào năm **%s**.", c.ClaimedYear, y)
		t = TemplateFactCorrect
	}
	return Draft{
		Text:     head + "\n\n" + narrative(best.Doc),
		Used:     []retrieval.Candidate{*best},
		Template: t,
	}
}
