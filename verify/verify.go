// Package verify checks rendered answers before they are returned.
//
// Every check reports a Severity and the worst one decides the outcome:
// AUTO_FIX answers are returned with the fixed text, SOFT_FAIL answers are
// returned with a warning, and HARD_FAIL answers are replaced by the caller.
package verify

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/brunobiangulo/historymind/constraint"
	"github.com/brunobiangulo/historymind/intent"
	"github.com/brunobiangulo/historymind/kb"
	"github.com/brunobiangulo/historymind/retrieval"
	"github.com/brunobiangulo/historymind/vntext"
)

// Severity orders check outcomes from harmless to blocking.
type Severity int

const (
	Pass Severity = iota
	AutoFix
	SoftFail
	HardFail
)

var severityNames = [...]string{"PASS", "AUTO_FIX", "SOFT_FAIL", "HARD_FAIL"}

func (s Severity) String() string {
	if s < Pass || s > HardFail {
		return "UNKNOWN"
	}
	return severityNames[s]
}

// MarshalText renders the severity by name in JSON payloads.
func (s Severity) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText parses a severity name.
func (s *Severity) UnmarshalText(b []byte) error {
	for i, name := range severityNames {
		if string(b) == name {
			*s = Severity(i)
			return nil
		}
	}
	return fmt.Errorf("verify: unknown severity %q", b)
}

// Check is the outcome of one verification step.
type Check struct {
	Name     string   `json:"name"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message,omitempty"`
}

// Result aggregates the checks of one answer.
type Result struct {
	Severity Severity `json:"severity"`
	Checks   []Check  `json:"checks"`

	// Fixed is set when the truncation check rewrote the answer.
	Fixed string `json:"-"`

	// Years counts year mentions in the answer; Grounded those found in
	// the evidence.
	Years    int `json:"years"`
	Grounded int `json:"grounded"`
}

// Passed reports whether the answer can be returned as is or after fixing.
func (r Result) Passed() bool { return r.Severity <= AutoFix }

// Text returns the fixed answer when there is one, otherwise answer.
func (r Result) Text(answer string) string {
	if r.Fixed != "" {
		return r.Fixed
	}
	return answer
}

func (r *Result) add(c Check) {
	r.Checks = append(r.Checks, c)
	if c.Severity > r.Severity {
		r.Severity = c.Severity
	}
}

// Config holds the verifier thresholds.
type Config struct {
	// Answers mentioning fewer than DriftThreshold of the question's
	// entities soft-fail.
	DriftThreshold float64 `json:"drift_threshold" yaml:"drift_threshold" mapstructure:"drift_threshold"`

	// Numbers outside [MinYear, MaxYear] are not treated as years.
	MinYear int `json:"min_year" yaml:"min_year" mapstructure:"min_year"`
	MaxYear int `json:"max_year" yaml:"max_year" mapstructure:"max_year"`
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{DriftThreshold: 0.3, MinYear: intent.MinQueryYear, MaxYear: intent.MaxQueryYear}
}

// Verifier runs the output checks. It is safe for concurrent use.
type Verifier struct {
	snap *kb.Snapshot
	cfg  Config
}

// New creates a Verifier. snap supplies entity aliases for the drift check
// and may be nil.
func New(snap *kb.Snapshot, cfg Config) *Verifier {
	return &Verifier{snap: snap, cfg: cfg}
}

var (
	yearRe       = regexp.MustCompile(`\b([1-9]\d{2,3})\b`)
	shortYearRe  = regexp.MustCompile(`(?i)\bnăm\s+\**([1-9]\d)\b`)
	danglingRe   = regexp.MustCompile(`(\.\.\.|…|[,;:])\s*$`)
	sentenceEnd  = regexp.MustCompile(`[.!?…]["»)]?\s`)
	terminalRune = ".!?…\"»)"
)

// Verify checks answer, rendered from used out of the surviving
// candidates all, against the request constraint c.
func (v *Verifier) Verify(answer string, c *constraint.QueryConstraint, used, all []retrieval.Candidate) Result {
	var r Result
	if strings.TrimSpace(answer) == "" {
		r.add(Check{Name: "empty", Severity: HardFail, Message: "answer is empty"})
		return r
	}

	text := answer
	if fixed, reason, ok := fixTruncation(answer); ok {
		text = fixed
		r.Fixed = fixed
		r.add(Check{Name: "truncation", Severity: AutoFix, Message: reason})
	} else {
		r.add(Check{Name: "truncation"})
	}

	r.add(v.completeness(text, c, all))
	r.add(v.topicDrift(text, c))
	r.add(v.yearHallucination(text, c, all, &r))

	if r.Severity > AutoFix {
		slog.Debug("verify: failed", "severity", r.Severity, "checks", len(r.Checks))
	}
	return r
}

// fixTruncation repairs a cut-off answer. It trims to the last complete
// sentence of the final paragraph, or appends "." when there is none.
func fixTruncation(answer string) (string, string, bool) {
	text := strings.TrimRightFunc(answer, unicode.IsSpace)
	var reasons []string

	if strings.Count(text, "**")%2 == 1 {
		i := strings.LastIndex(text, "**")
		text = strings.TrimRightFunc(text[:i]+text[i+2:], unicode.IsSpace)
		reasons = append(reasons, "unbalanced bold marker")
	}
	if danglingRe.MatchString(text) {
		text = strings.TrimRightFunc(danglingRe.ReplaceAllString(text, ""), unicode.IsSpace)
		reasons = append(reasons, "dangling punctuation")
	}
	if !endsSentence(text) {
		reasons = append(reasons, "missing terminal punctuation")
		text = trimToSentence(text)
	}

	if len(reasons) == 0 {
		return answer, "", false
	}
	return text, strings.Join(reasons, ", "), true
}

func endsSentence(s string) bool {
	s = strings.TrimRight(s, "*_")
	r, _ := utf8.DecodeLastRuneInString(s)
	return r != utf8.RuneError && strings.ContainsRune(terminalRune, r)
}

func trimToSentence(s string) string {
	start := strings.LastIndex(s, "\n") + 1
	last := s[start:]
	locs := sentenceEnd.FindAllStringIndex(last+" ", -1)
	if len(locs) > 0 {
		cut := start + locs[len(locs)-1][1] - 1
		if cut < len(s) {
			return strings.TrimRightFunc(s[:cut], unicode.IsSpace)
		}
	}
	if s == "" {
		return s
	}
	return s + "."
}

// listShaped reports whether the answer enumerates events.
func listShaped(c *constraint.QueryConstraint) bool {
	if c.Intent == intent.FactCheck {
		return false
	}
	return c.Years.Kind == constraint.YearsRange || c.IsMultiYear() ||
		c.QuestionType == intent.List || c.Flags.Broad || c.Intent == intent.BroadHistory
}

// completeness soft-fails a list answer that leaves out the year of any
// surviving candidate, including those dropped by the synthesizer's caps.
func (v *Verifier) completeness(text string, c *constraint.QueryConstraint, all []retrieval.Candidate) Check {
	ch := Check{Name: "completeness"}
	if !listShaped(c) {
		return ch
	}
	seen := make(map[string]bool, len(all))
	var missing []string
	for _, cand := range all {
		y := cand.Doc.Year
		if !y.Known() || seen[y.String()] {
			continue
		}
		seen[y.String()] = true
		if !strings.Contains(text, y.String()) && !strings.Contains(text, strconv.Itoa(y.From)) {
			missing = append(missing, y.String())
		}
	}
	if len(missing) > 0 {
		ch.Severity = SoftFail
		ch.Message = "missing years: " + strings.Join(missing, ", ")
	}
	return ch
}

type term struct {
	cat  kb.Category
	name string
}

func (v *Verifier) topicDrift(text string, c *constraint.QueryConstraint) Check {
	ch := Check{Name: "topic_drift"}
	var terms []term
	for _, t := range []struct {
		cat   kb.Category
		names []string
	}{
		{kb.CategoryPerson, c.Persons},
		{kb.CategoryDynasty, c.Dynasties},
		{kb.CategoryTopic, c.Topics},
		{kb.CategoryPlace, c.Places},
	} {
		for _, n := range t.names {
			if v.snap != nil && v.snap.IsNonDiscriminating(n) {
				continue
			}
			terms = append(terms, term{t.cat, n})
		}
	}
	if len(terms) == 0 {
		return ch
	}

	found := 0
	for _, t := range terms {
		if v.mentions(text, t) {
			found++
		}
	}
	ratio := float64(found) / float64(len(terms))
	if ratio < v.cfg.DriftThreshold {
		ch.Severity = SoftFail
		ch.Message = fmt.Sprintf("answer mentions %d of %d query entities", found, len(terms))
	}
	return ch
}

func (v *Verifier) mentions(text string, t term) bool {
	names := []string{t.name}
	if v.snap != nil {
		names = append(names, v.snap.Aliases(t.cat, t.name)...)
	}
	for _, n := range names {
		if vntext.ContainsPhrase(text, n) {
			return true
		}
	}
	return false
}

// yearHallucination requires every year in the answer to come from the
// evidence or from the question. Markdown headings are structural and are
// not checked.
func (v *Verifier) yearHallucination(text string, c *constraint.QueryConstraint, all []retrieval.Candidate, r *Result) Check {
	ch := Check{Name: "year_hallucination"}
	years := v.years(stripHeadings(text))
	if len(years) == 0 {
		return ch
	}

	allowed := make(map[int]bool)
	for _, y := range c.QueryYears() {
		allowed[y] = true
	}
	for _, cand := range all {
		for _, y := range v.years(cand.Doc.Title + " " + cand.Doc.Text()) {
			allowed[y] = true
		}
	}

	var phantom []string
	for _, y := range years {
		if allowed[y] || inAnyRecord(y, all) {
			r.Grounded++
			continue
		}
		phantom = append(phantom, strconv.Itoa(y))
	}
	r.Years = len(years)
	if len(phantom) > 0 {
		ch.Severity = HardFail
		ch.Message = "ungrounded years: " + strings.Join(phantom, ", ")
	}
	return ch
}

func inAnyRecord(y int, all []retrieval.Candidate) bool {
	for _, c := range all {
		if c.Doc.Year.Contains(y) {
			return true
		}
	}
	return false
}

// years returns the distinct plausible years of s in ascending order.
func (v *Verifier) years(s string) []int {
	seen := make(map[int]bool)
	var out []int
	// Two-digit numbers only count as years after "năm".
	matches := append(yearRe.FindAllStringSubmatch(s, -1), shortYearRe.FindAllStringSubmatch(s, -1)...)
	for _, m := range matches {
		y, err := strconv.Atoi(m[1])
		if err != nil || y < v.cfg.MinYear || y > v.cfg.MaxYear || seen[y] {
			continue
		}
		seen[y] = true
		out = append(out, y)
	}
	sort.Ints(out)
	return out
}

func stripHeadings(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, l := range lines {
		if strings.HasPrefix(strings.TrimSpace(l), "#") {
			continue
		}
		kept = append(kept, l)
	}
	return strings.Join(kept, "\n")
}
