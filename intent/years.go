package intent

import (
	"sort"
	"strconv"
	"strings"

	"github.com/brunobiangulo/historymind/vntext"
)

// Bounds of a plausible year mention in a question.
const (
	MinQueryYear = 40
	MaxQueryYear = 2025
)

// Range is an inclusive year interval named in a question.
type Range struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// Words that turn the following number into an elapsed time.
var durationCues = map[string]bool{
	"hơn": true, "gần": true, "khoảng": true, "suốt": true, "qua": true,
	"tròn": true, "được": true,
	"hon": true, "gan": true, "khoang": true, "suot": true, "tron": true, "duoc": true,
}

var durationCuePairs = map[string]bool{
	"trải qua": true, "kỷ niệm": true, "kỉ niệm": true,
	"trai qua": true, "ky niem": true,
}

func validYear(y int) bool { return y >= MinQueryYear && y <= MaxQueryYear }

// numbers splits the numeric tokens of text into year mentions and
// durations. A token preceded by a dash never counts as a year: it is the
// tail of a range or a negative value.
func numbers(text string) (years, durations []int) {
	toks := vntext.Tokenize(text)
	unaccented := vntext.LooksUnaccented(text)
	seen := make(map[int]bool)
	for i, t := range toks {
		n, err := strconv.Atoi(t.Text)
		if err != nil {
			continue
		}
		if isDuration(text, toks, i, unaccented) {
			durations = append(durations, n)
			continue
		}
		if len(t.Text) < 2 || len(t.Text) > 4 || !validYear(n) || dashBefore(text, t.Start) {
			continue
		}
		if !seen[n] {
			seen[n] = true
			years = append(years, n)
		}
	}
	return years, durations
}

func isDuration(text string, toks []vntext.Token, i int, unaccented bool) bool {
	if i > 0 && durationCues[toks[i-1].Text] {
		return true
	}
	if i > 1 && durationCuePairs[toks[i-2].Text+" "+toks[i-1].Text] {
		return true
	}
	// "năm 1945 năm 1954" lists years; only a bare "N năm" is elapsed time.
	if i > 0 && (toks[i-1].Text == "năm" || (unaccented && toks[i-1].Text == "nam")) {
		return false
	}
	if i+1 < len(toks) && strings.TrimSpace(text[toks[i].End:toks[i+1].Start]) == "" {
		next := toks[i+1].Text
		if next == "năm" || (unaccented && next == "nam") {
			return true
		}
	}
	return false
}

func dashBefore(text string, start int) bool {
	prev := strings.TrimRight(text[:start], " ")
	return strings.HasSuffix(prev, "-") || strings.HasSuffix(prev, "–") || strings.HasSuffix(prev, "—")
}

// extractRange returns the first well-formed year range in text, ordered.
func extractRange(text, folded string) (Range, bool) {
	for _, p := range rangePatterns {
		m := p.Find(text, folded)
		if m == nil {
			continue
		}
		a, errA := strconv.Atoi(m[1])
		b, errB := strconv.Atoi(m[2])
		if errA != nil || errB != nil || !validYear(a) || !validYear(b) || a == b {
			continue
		}
		if a > b {
			a, b = b, a
		}
		return Range{From: a, To: b}, true
	}
	return Range{}, false
}

func sortedUnique(in []int) []int {
	out := append([]int(nil), in...)
	sort.Ints(out)
	n := 0
	for i, v := range out {
		if i == 0 || v != out[n-1] {
			out[n] = v
			n++
		}
	}
	return out[:n]
}
