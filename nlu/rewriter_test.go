package nlu

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/brunobiangulo/historymind/kb/kbtest"
)

func newTestRewriter(t *testing.T) *Rewriter {
	t.Helper()
	return NewRewriter(kbtest.Snapshot(t), DefaultOptions())
}

func hasCorrection(res Result, kind string) bool {
	for _, c := range res.Corrections {
		if c.Kind == kind {
			return true
		}
	}
	return false
}

func TestRewriteNormalizes(t *testing.T) {
	r := newTestRewriter(t)
	res := r.Rewrite("  HELLO  ")
	assert.Equal(t, "  HELLO  ", res.Original)
	assert.Equal(t, "hello", res.Primary)
	assert.Empty(t, res.Variants)

	empty := r.Rewrite("   ")
	assert.Equal(t, "", empty.Primary)
	assert.Nil(t, empty.Variants)
}

func TestRewriteTablesAndFillers(t *testing.T) {
	r := newTestRewriter(t)
	tests := []struct {
		in, want, kind string
	}{
		{"Dienbienphu năm nào?", "điện biên phủ năm nào?", "typo"},
		{"cmtt là gì", "cách mạng tháng tám là gì", "abbreviation"},
		{"Cho tôi hỏi Lê Lợi là ai?", "lê lợi là ai?", "filler"},
		{"tran hung dao la ai", "trần hưng đạo la ai", "accent"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			res := r.Rewrite(tt.in)
			assert.Equal(t, tt.want, res.Primary)
			assert.True(t, hasCorrection(res, tt.kind), "corrections: %+v", res.Corrections)
		})
	}
}

func TestRewriteFuzzyAccentRestoration(t *testing.T) {
	r := newTestRewriter(t)
	res := r.Rewrite("tran hung dap danh quan nguyen")
	assert.True(t, strings.HasPrefix(res.Primary, "trần hưng đạo "), res.Primary)
	assert.True(t, hasCorrection(res, "fuzzy_accent"))
	// The invader's name stays as typed; it must not be pulled towards nguyễn.
	assert.NotContains(t, res.Primary, "nguyễn")
}

func TestRewriteAccentedInputUntouched(t *testing.T) {
	r := newTestRewriter(t)
	res := r.Rewrite("Trần Hưng Đạo đánh quân Nguyên")
	assert.Equal(t, "trần hưng đạo đánh quân nguyên", res.Primary)
	assert.False(t, hasCorrection(res, "fuzzy_accent"))
}

func TestAliasVariants(t *testing.T) {
	r := newTestRewriter(t)
	res := r.Rewrite("quang trung là ai")
	assert.Contains(t, res.Variants, "nguyễn huệ là ai")
	assert.LessOrEqual(t, len(res.Variants), DefaultOptions().MaxVariants)
	assert.NotContains(t, res.Variants, res.Primary)
}

func TestPhoneticVariants(t *testing.T) {
	r := newTestRewriter(t)
	assert.Equal(t, []string{"xông lam", "sông nam"}, r.Rewrite("sông lam").Variants)

	capped := r.Rewrite("sa sa sa sa").Variants
	assert.Equal(t, []string{"xa sa sa sa", "sa xa sa sa", "sa sa xa sa"}, capped)
}

func TestPhoneticDigraphs(t *testing.T) {
	got := phoneticVariants("nguyễn ghi")
	for _, v := range got {
		assert.False(t, strings.HasPrefix(v, "lguyễn"), v)
	}
}

func TestRewriteDeterministic(t *testing.T) {
	r := newTestRewriter(t)
	for _, q := range []string{"tran hung dap danh quan nguyen", "quang trung là ai", "vn năm 1945"} {
		assert.Equal(t, r.Rewrite(q), r.Rewrite(q))
	}
}
