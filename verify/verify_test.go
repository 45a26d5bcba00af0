package verify

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunobiangulo/historymind/constraint"
	"github.com/brunobiangulo/historymind/intent"
	"github.com/brunobiangulo/historymind/kb/kbtest"
	"github.com/brunobiangulo/historymind/retrieval"
)

func fixture(t *testing.T) (*Verifier, func(ids ...string) []retrieval.Candidate) {
	t.Helper()
	snap := kbtest.Snapshot(t)
	return New(snap, DefaultConfig()), func(ids ...string) []retrieval.Candidate {
		var out []retrieval.Candidate
		for _, id := range ids {
			pos, ok := snap.Position(id)
			require.True(t, ok, id)
			out = append(out, retrieval.Candidate{Doc: snap.Doc(pos), Pos: pos})
		}
		return out
	}
}

const doidoAnswer = "Năm **1010**, Lý Công Uẩn ban Chiếu dời đô từ Hoa Lư về Thăng Long."

func TestFixTruncation(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		want  string
		fixed bool
	}{
		{"complete", "Câu hoàn chỉnh.", "Câu hoàn chỉnh.", false},
		{"exclamation", "Kết thúc bằng chấm than!", "Kết thúc bằng chấm than!", false},
		{"closing quote", `Trích "câu nói."`, `Trích "câu nói."`, false},
		{"dangling comma", "Năm 1945, cách mạng thành công,", "Năm 1945, cách mạng thành công.", true},
		{"dangling semicolon", "Quân Nguyên rút lui;  ", "Quân Nguyên rút lui.", true},
		{"cut sentence", "Câu một. Câu hai bị cắt", "Câu một.", true},
		{"ellipsis", "Đang kể...", "Đang kể.", true},
		{"unicode ellipsis", "Đang kể…", "Đang kể.", true},
		{"unbalanced bold", "**Năm 1945** thành công. **Tuyên ngôn", "**Năm 1945** thành công.", true},
		{"last paragraph only", "Dòng một.\n\n**Năm 1954:** Chiến thắng", "Dòng một.\n\n**Năm 1954:** Chiến thắng.", true},
		{"bold tail", "Chiến thắng **Điện Biên Phủ**", "Chiến thắng **Điện Biên Phủ**.", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason, fixed := fixTruncation(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.fixed, fixed)
			if fixed {
				assert.NotEmpty(t, reason)
			}
		})
	}
}

func TestVerifyClean(t *testing.T) {
	v, cands := fixture(t)
	c := &constraint.QueryConstraint{Intent: intent.EventQuery, QuestionType: intent.When}
	all := cands("doido-1010")

	r := v.Verify(doidoAnswer, c, all, all)
	assert.Equal(t, Pass, r.Severity)
	assert.True(t, r.Passed())
	assert.Empty(t, r.Fixed)
	assert.Equal(t, doidoAnswer, r.Text(doidoAnswer))
	assert.Equal(t, 1, r.Years)
	assert.Equal(t, 1, r.Grounded)

	var names []string
	for _, ch := range r.Checks {
		names = append(names, ch.Name)
	}
	assert.Equal(t, []string{"truncation", "completeness", "topic_drift", "year_hallucination"}, names)
}

func TestVerifyEmpty(t *testing.T) {
	v, _ := fixture(t)
	r := v.Verify("  \n", &constraint.QueryConstraint{}, nil, nil)
	assert.Equal(t, HardFail, r.Severity)
	require.Len(t, r.Checks, 1)
	assert.Equal(t, "empty", r.Checks[0].Name)
}

func TestVerifyAutoFix(t *testing.T) {
	v, cands := fixture(t)
	c := &constraint.QueryConstraint{Intent: intent.EventQuery, QuestionType: intent.When}
	all := cands("doido-1010")
	answer := "Năm **1010**, Lý Công Uẩn ban Chiếu dời đô từ Hoa Lư về Thăng Long"

	r := v.Verify(answer, c, all, all)
	assert.Equal(t, AutoFix, r.Severity)
	assert.True(t, r.Passed())
	assert.Equal(t, doidoAnswer, r.Text(answer))
}

func TestYearHallucination(t *testing.T) {
	v, cands := fixture(t)

	tests := []struct {
		name   string
		answer string
		c      *constraint.QueryConstraint
		ids    []string
		want   Severity
	}{
		{
			name:   "phantom year",
			answer: "Năm **1011**, Lý Công Uẩn ban Chiếu dời đô từ Hoa Lư về Thăng Long.",
			c:      &constraint.QueryConstraint{QuestionType: intent.When},
			ids:    []string{"doido-1010"},
			want:   HardFail,
		},
		{
			name:   "claimed year is allowed",
			answer: "❌ **Không phải năm 1800**, sự kiện này thực tế diễn ra vào năm **1288**.",
			c:      &constraint.QueryConstraint{Intent: intent.FactCheck, HasClaim: true, ClaimedYear: 1800},
			ids:    []string{"bachdang-1288"},
			want:   Pass,
		},
		{
			name:   "year within a ranged record",
			answer: "Năm 1950 cuộc kháng chiến chống thực dân Pháp vẫn tiếp diễn.",
			c:      &constraint.QueryConstraint{QuestionType: intent.What},
			ids:    []string{"khangchien-1946"},
			want:   Pass,
		},
		{
			name:   "year from a title",
			answer: "Chiến thắng Bạch Đằng năm 1288 là trận thủy chiến lớn.",
			c:      &constraint.QueryConstraint{QuestionType: intent.What},
			ids:    []string{"bachdang-1288"},
			want:   Pass,
		},
		{
			name:   "two-digit year after năm",
			answer: "Năm **1010**, Lý Công Uẩn ban Chiếu dời đô từ Hoa Lư về Thăng Long, như năm 40.",
			c:      &constraint.QueryConstraint{QuestionType: intent.When},
			ids:    []string{"doido-1010"},
			want:   HardFail,
		},
		{
			name:   "durations are not years",
			answer: "Năm **1010**, Lý Công Uẩn ban Chiếu dời đô từ Hoa Lư về Thăng Long sau 30 năm.",
			c:      &constraint.QueryConstraint{QuestionType: intent.When},
			ids:    []string{"doido-1010"},
			want:   Pass,
		},
		{
			name:   "period headings are ignored",
			answer: "### Thời Lý (1009–1225)\n- **Năm 1010:** Lý Công Uẩn ban Chiếu dời đô từ Hoa Lư về Thăng Long.",
			c:      &constraint.QueryConstraint{QuestionType: intent.List},
			ids:    []string{"doido-1010"},
			want:   Pass,
		},
		{
			name:   "query range years",
			answer: "Từ năm 1000 đến năm 1100: năm 1010 Lý Công Uẩn dời đô.",
			c:      &constraint.QueryConstraint{Years: constraint.Between(1000, 1100), QuestionType: intent.What, Intent: intent.FactCheck},
			ids:    []string{"doido-1010"},
			want:   Pass,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			all := cands(tt.ids...)
			r := v.Verify(tt.answer, tt.c, all, all)
			assert.Equal(t, tt.want, r.Severity, "%+v", r.Checks)
		})
	}
}

func TestDefaultYearWindow(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, intent.MinQueryYear, cfg.MinYear)
	assert.Equal(t, intent.MaxQueryYear, cfg.MaxYear)

	v := New(nil, cfg)
	assert.Equal(t, []int{40, 938}, v.years("Năm 40 và năm **938**, 30 năm sau; năm 2030."))
}

func TestYearHallucinationMessage(t *testing.T) {
	v, cands := fixture(t)
	all := cands("doido-1010")
	r := v.Verify("Năm 1011 và năm 1012 có sự kiện.", &constraint.QueryConstraint{}, all, all)
	require.Equal(t, HardFail, r.Severity)
	last := r.Checks[len(r.Checks)-1]
	assert.Equal(t, "year_hallucination", last.Name)
	assert.Equal(t, "ungrounded years: 1011, 1012", last.Message)
	assert.Equal(t, 2, r.Years)
	assert.Equal(t, 0, r.Grounded)
}

func TestCompleteness(t *testing.T) {
	v, cands := fixture(t)
	used := cands("doido-1010", "nhunguyet-1077")
	c := &constraint.QueryConstraint{Years: constraint.Between(1000, 1100)}

	r := v.Verify("**Năm 1010:** Lý Công Uẩn ban Chiếu dời đô từ Hoa Lư về Thăng Long.", c, used, used)
	assert.Equal(t, SoftFail, r.Severity)
	assert.False(t, r.Passed())
	assert.Equal(t, "missing years: 1077", r.Checks[1].Message)

	full := "**Năm 1010:** Lý Công Uẩn ban Chiếu dời đô từ Hoa Lư về Thăng Long.\n\n" +
		"**Năm 1077:** Lý Thường Kiệt chỉ huy phòng tuyến sông Như Nguyệt đánh bại quân Tống."
	r = v.Verify(full, c, used, used)
	assert.Equal(t, Pass, r.Severity, "%+v", r.Checks)

	t.Run("capped list", func(t *testing.T) {
		all := cands("bachdang-938", "doido-1010", "nhunguyet-1077")
		c := &constraint.QueryConstraint{Years: constraint.Between(900, 1100)}
		answer := "**Năm 938:** Ngô Quyền đánh bại quân Nam Hán trên sông Bạch Đằng."
		r := v.Verify(answer, c, all[:1], all)
		assert.Equal(t, SoftFail, r.Checks[1].Severity)
		assert.Equal(t, "missing years: 1010, 1077", r.Checks[1].Message)
	})

	t.Run("not a list", func(t *testing.T) {
		c := &constraint.QueryConstraint{QuestionType: intent.What}
		r := v.Verify("**Năm 1010:** Lý Công Uẩn ban Chiếu dời đô từ Hoa Lư về Thăng Long.", c, used, used)
		assert.Equal(t, Pass, r.Checks[1].Severity)
	})

	t.Run("ranged record", func(t *testing.T) {
		used := cands("khangchien-1946")
		c := &constraint.QueryConstraint{QuestionType: intent.List}
		r := v.Verify("**Năm 1946–1954:** Cuộc kháng chiến chống thực dân Pháp kéo dài chín năm trên toàn quốc.", c, used, used)
		assert.Equal(t, Pass, r.Severity, "%+v", r.Checks)
	})
}

func TestTopicDrift(t *testing.T) {
	v, cands := fixture(t)

	tests := []struct {
		name   string
		c      *constraint.QueryConstraint
		answer string
		ids    []string
		want   Severity
	}{
		{
			name:   "unrelated person",
			c:      &constraint.QueryConstraint{Persons: []string{"trần hưng đạo"}},
			answer: "Lý Công Uẩn ban Chiếu dời đô từ Hoa Lư về Thăng Long.",
			ids:    []string{"doido-1010"},
			want:   SoftFail,
		},
		{
			name:   "alias counts",
			c:      &constraint.QueryConstraint{Persons: []string{"hồ chí minh"}},
			answer: "Nguyễn Ái Quốc chủ trì hội nghị thành lập Đảng Cộng sản Việt Nam.",
			ids:    []string{"dang-1930"},
			want:   Pass,
		},
		{
			name:   "half the entities",
			c:      &constraint.QueryConstraint{Persons: []string{"lý công uẩn", "trần hưng đạo"}},
			answer: "Lý Công Uẩn ban Chiếu dời đô từ Hoa Lư về Thăng Long.",
			ids:    []string{"doido-1010"},
			want:   Pass,
		},
		{
			name: "below threshold",
			c: &constraint.QueryConstraint{
				Persons: []string{"lý công uẩn", "trần hưng đạo"},
				Places:  []string{"sài gòn", "điện biên phủ"},
			},
			answer: "Lý Công Uẩn ban Chiếu dời đô từ Hoa Lư về Thăng Long.",
			ids:    []string{"doido-1010"},
			want:   SoftFail,
		},
		{
			name:   "non-discriminating terms are skipped",
			c:      &constraint.QueryConstraint{Topics: []string{"việt nam"}},
			answer: "Lý Công Uẩn ban Chiếu dời đô từ Hoa Lư về Thăng Long.",
			ids:    []string{"doido-1010"},
			want:   Pass,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			all := cands(tt.ids...)
			r := v.Verify(tt.answer, tt.c, all, all)
			assert.Equal(t, tt.want, r.Checks[2].Severity, r.Checks[2].Message)
		})
	}
}

func TestWorstSeverityWins(t *testing.T) {
	v, cands := fixture(t)
	all := cands("doido-1010")
	answer := "Năm 1011, Lý Công Uẩn ban Chiếu dời đô,"

	r := v.Verify(answer, &constraint.QueryConstraint{}, all, all)
	assert.Equal(t, HardFail, r.Severity)
	assert.Equal(t, "Năm 1011, Lý Công Uẩn ban Chiếu dời đô.", r.Fixed)
	assert.Equal(t, AutoFix, r.Checks[0].Severity)
}

func TestSeverityJSON(t *testing.T) {
	b, err := json.Marshal(Result{Severity: SoftFail, Checks: []Check{{Name: "topic_drift", Severity: SoftFail}}})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"severity":"SOFT_FAIL"`)

	var back Result
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, SoftFail, back.Severity)
	assert.Equal(t, SoftFail, back.Checks[0].Severity)
	assert.Error(t, json.Unmarshal([]byte(`{"severity":"MAYBE"}`), &back))
	assert.Equal(t, "HARD_FAIL", HardFail.String())
	assert.Equal(t, "UNKNOWN", Severity(9).String())
}

func TestConfidence(t *testing.T) {
	v, cands := fixture(t)
	all := cands("doido-1010")
	c := &constraint.QueryConstraint{QuestionType: intent.When}

	r := v.Verify(doidoAnswer, c, all, all)
	w := DefaultConfidenceWeights()
	got := Confidence(doidoAnswer, r, all, w)
	// coverage 1, grounding 1, verification 1, 15 words
	assert.InDelta(t, 0.3+0.3+0.25+0.15*0.5, got, 1e-9)

	failed := Result{Severity: HardFail, Years: 1}
	assert.InDelta(t, 0.15*0.2, Confidence("Năm 1011.", failed, nil, w), 1e-9)

	assert.Greater(t, got, Confidence(doidoAnswer, Result{Severity: SoftFail, Years: 1, Grounded: 1}, all, w))
}

func TestAnswerLengthScore(t *testing.T) {
	tests := []struct {
		words int
		want  float64
	}{
		{5, 0.2}, {10, 0.5}, {30, 0.8}, {100, 1.0}, {500, 0.9},
	}
	for _, tt := range tests {
		answer := ""
		for i := 0; i < tt.words; i++ {
			answer += "từ "
		}
		assert.Equal(t, tt.want, answerLengthScore(answer), "%d words", tt.words)
	}
}
