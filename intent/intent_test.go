package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// stubProbe reports presence for exact texts only.
type stubProbe map[string]Presence

func (s stubProbe) Probe(text string) Presence { return s[text] }

func TestMetaIntents(t *testing.T) {
	c := NewClassifier(nil)
	tests := []struct {
		in   string
		want Intent
	}{
		{"hello", Greeting},
		{"Xin chào!", Greeting},
		{"cảm ơn bạn", Thanks},
		{"tạm biệt", Goodbye},
		{"ai tạo ra bạn?", Creator},
		{"bạn là ai", Identity},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			a := c.Classify(tt.in)
			assert.Equal(t, tt.want, a.Intent)
			assert.True(t, a.Intent.IsMeta())
		})
	}

	// Greeting words inside a real question do not short-circuit it.
	assert.Equal(t, YearSpecific, c.Classify("xin chào, năm 1945 có gì?").Intent)
}

func TestDataScope(t *testing.T) {
	a := NewClassifier(nil).Classify("Bạn có dữ liệu từ năm nào?")
	assert.Equal(t, DataScope, a.Intent)
	assert.Equal(t, Scope, a.QuestionType)
}

func TestFactCheckPatterns(t *testing.T) {
	c := NewClassifier(nil)
	tests := []struct {
		in    string
		claim int
	}{
		{"Chiến thắng Điện Biên Phủ năm 1874 đúng không?", 1874},
		{"dien bien phu nam 1874 dung khong", 1874},
		{"Có phải Lý Công Uẩn dời đô năm 1010?", 1010},
		{"Có đúng là Lê Lợi lên ngôi năm 1428 không", 1428},
		{"Điện Biên Phủ 1954, không?", 1954},
		{"Cách mạng tháng Tám năm 1945 à?", 1945},
		{"Is it true that Ho Chi Minh died in 1969?", 1969},
		{"Bach Dang happened in 938, right?", 938},
		{"Did Le Loi win in 1428?", 1428},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			a := c.Classify(tt.in)
			assert.Equal(t, FactCheck, a.Intent)
			assert.True(t, a.HasClaim)
			assert.Equal(t, tt.claim, a.ClaimedYear)
			assert.Equal(t, When, a.QuestionType)
		})
	}
}

func TestYearlessFactCheck(t *testing.T) {
	a := NewClassifier(nil).Classify("Có đúng là Quang Trung đánh quân Thanh?")
	assert.Equal(t, FactCheck, a.Intent)
	assert.False(t, a.HasClaim)
	assert.Zero(t, a.ClaimedYear)
}

func TestDurationGuard(t *testing.T) {
	c := NewClassifier(nil)
	tests := []struct {
		in        string
		durations []int
	}{
		{"Thời Bắc thuộc kéo dài hơn 1000 năm", []int{1000}},
		{"kỷ niệm 1000 năm Thăng Long", []int{1000}},
		{"trải qua 150 năm chia cắt", []int{150}},
		{"nhà Lý tồn tại 216 năm", []int{216}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			a := c.Classify(tt.in)
			assert.Equal(t, tt.durations, a.Durations)
			assert.True(t, a.IsDuration)
			assert.Empty(t, a.ExplicitYears)
			assert.NotEqual(t, YearSpecific, a.Intent)
		})
	}
}

func TestYearExtractionBounds(t *testing.T) {
	years, _ := numbers("năm -100 và năm 12345, năm 5, năm 2030, năm 1945")
	assert.Equal(t, []int{1945}, years)

	years, _ = numbers("năm 40 và năm 2025")
	assert.Equal(t, []int{40, 2025}, years)
}

func TestYearRange(t *testing.T) {
	probe := stubProbe{"hồ chí minh từ năm 1960 đến 1975": {Persons: true}}
	c := NewClassifier(probe)
	tests := []struct {
		in   string
		want Range
	}{
		{"Hồ Chí Minh từ năm 1960 đến 1975", Range{1960, 1975}},
		{"các sự kiện từ 1975 đến 1960", Range{1960, 1975}},
		{"giai đoạn 1946-1954", Range{1946, 1954}},
		{"from 1945 to 1954", Range{1945, 1954}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			a := c.Classify(tt.in)
			assert.Equal(t, YearRange, a.Intent)
			if assert.NotNil(t, a.Range) {
				assert.Equal(t, tt.want, *a.Range)
			}
			assert.Equal(t, List, a.QuestionType)
		})
	}
}

func TestMultipleYears(t *testing.T) {
	a := NewClassifier(nil).Classify("Năm 1954 và 1945 có sự kiện gì?")
	assert.Equal(t, YearSpecific, a.Intent)
	assert.Equal(t, []int{1945, 1954}, a.ExplicitYears)
	assert.Zero(t, a.Year)
	assert.Equal(t, List, a.QuestionType)
}

func TestEntityRefinement(t *testing.T) {
	probe := stubProbe{
		"trần hưng đạo là ai": {Persons: true},
		"quang trung và nguyễn huệ có phải là một người không?": {Persons: true},
		"nhà trần":              {Dynasties: true},
		"trần hưng đạo năm 1945": {Persons: true},
		"trận bạch đằng":        {Topics: true},
		"sông bạch đằng ở đâu":  {Places: true},
	}
	c := NewClassifier(probe)
	tests := []struct {
		in    string
		want  Intent
		qtype QuestionType
		year  int
	}{
		{"Trần Hưng Đạo là ai", Definition, Who, 0},
		{"Quang Trung và Nguyễn Huệ có phải là một người không?", Relationship, What, 0},
		{"nhà Trần", DynastyQuery, What, 0},
		{"Trần Hưng Đạo năm 1945", PersonQuery, What, 1945},
		{"trận Bạch Đằng", EventQuery, What, 0},
		{"sông Bạch Đằng ở đâu", EventQuery, What, 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			a := c.Classify(tt.in)
			assert.Equal(t, tt.want, a.Intent)
			assert.Equal(t, tt.qtype, a.QuestionType)
			assert.Equal(t, tt.year, a.Year)
			assert.Equal(t, "entity", a.Rule)
		})
	}
}

func TestFallbackRules(t *testing.T) {
	c := NewClassifier(nil)
	tests := []struct {
		in   string
		want Intent
		rule string
	}{
		{"chiến tranh là gì", Definition, "definition"},
		{"lịch sử Việt Nam", BroadHistory, "broad_history"},
		{"các cuộc kháng chiến", BroadHistory, "broad_history"},
		{"kháng chiến", EventQuery, "broad_history"},
		{"năm 1945 có gì", YearSpecific, "single_year"},
		{"thời tiết hôm nay", SemanticFallback, "semantic_fallback"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			a := c.Classify(tt.in)
			assert.Equal(t, tt.want, a.Intent)
			assert.Equal(t, tt.rule, a.Rule)
		})
	}
}

func TestQuestionTypes(t *testing.T) {
	c := NewClassifier(nil)
	assert.Equal(t, When, c.Classify("điện biên phủ năm nào").QuestionType)
	assert.Equal(t, When, c.Classify("dien bien phu nam nao").QuestionType)
	assert.Equal(t, Who, c.Classify("ai là người dời đô").QuestionType)
	assert.Equal(t, List, c.Classify("liệt kê các trận đánh").QuestionType)
	assert.Equal(t, What, c.Classify("chuyện gì xảy ra").QuestionType)
}

func TestClassifyDeterministic(t *testing.T) {
	c := NewClassifier(nil)
	for _, q := range []string{"hello", "năm 1945 và 1954", "Điện Biên Phủ năm 1874 đúng không?"} {
		assert.Equal(t, c.Classify(q), c.Classify(q))
	}
}
