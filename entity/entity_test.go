package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunobiangulo/historymind/kb"
	"github.com/brunobiangulo/historymind/kb/kbtest"
)

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	return NewResolver(kbtest.Snapshot(t), DefaultOptions())
}

func TestResolveAliases(t *testing.T) {
	r := newTestResolver(t)
	res := r.Resolve("vua quang trung đánh quân thanh", nil)
	assert.Equal(t, []string{"nguyễn huệ"}, res.Persons)
	require.NotEmpty(t, res.Mentions)
	assert.Equal(t, "vua quang trung", res.Mentions[0].Surface)
	assert.Equal(t, kb.CategoryPerson, res.Mentions[0].Category)
}

func TestResolveAccentInsensitiveOnlyForUnaccentedSpans(t *testing.T) {
	r := newTestResolver(t)
	assert.Equal(t, []string{"trần hưng đạo"}, r.Resolve("tran hung dao", nil).Persons)

	// An accented span must match exactly; nguyên is not nguyễn.
	res := r.Resolve("nhà nguyên", nil)
	assert.NotContains(t, res.Dynasties, "nhà nguyễn")
}

func TestResolveTypoUnaccentedMatchesAccented(t *testing.T) {
	r := newTestResolver(t)
	accented := r.Resolve("trần hưng đạo đánh quân nguyên", nil)
	typoed := r.Resolve("trần hưng đạo danh quan nguyen", nil)

	assert.Equal(t, []string{"trần hưng đạo"}, accented.Persons)
	assert.Equal(t, accented.Persons, typoed.Persons)
	assert.Equal(t, accented.Dynasties, typoed.Dynasties)
	assert.NotContains(t, accented.Dynasties, "nhà nguyễn")
	assert.NotContains(t, typoed.Dynasties, "nhà nguyễn")
}

func TestResolveFuzzy(t *testing.T) {
	r := newTestResolver(t)
	res := r.Resolve("lý thường kiêt chống tống", nil)
	assert.Equal(t, []string{"lý thường kiệt"}, res.Persons)

	var fuzzy bool
	for _, m := range res.Mentions {
		if m.Canonical == "lý thường kiệt" {
			fuzzy = m.Fuzzy
		}
	}
	assert.True(t, fuzzy)
}

func TestResolveKeywords(t *testing.T) {
	r := newTestResolver(t)

	res := r.Resolve("tuyên ngôn độc lập việt nam", nil)
	assert.Equal(t, []string{"tuyên ngôn độc lập"}, res.Topics)
	assert.NotContains(t, res.Keywords, "việt nam")
	assert.NotContains(t, res.Keywords, "tuyên ngôn độc lập")

	assert.Contains(t, r.Resolve("cuộc chiến với quân nam hán", nil).Keywords, "nam hán")
}

func TestResolveVariantsFillEmptyCategories(t *testing.T) {
	r := newTestResolver(t)
	res := r.Resolve("ông ấy là ai", []string{"nguyễn huệ là ai"})
	assert.Equal(t, []string{"nguyễn huệ"}, res.Persons)

	// A category already filled by the primary text is not extended.
	res = r.Resolve("lê lợi là ai", []string{"nguyễn huệ là ai"})
	assert.Equal(t, []string{"lê lợi"}, res.Persons)
}

func TestProbe(t *testing.T) {
	r := newTestResolver(t)
	p := r.Probe("nhà trần")
	assert.True(t, p.Dynasties)
	assert.False(t, p.Persons)
	assert.False(t, r.Probe("thời tiết hôm nay").Any())
}

func TestSameEntity(t *testing.T) {
	r := newTestResolver(t)

	id := r.SameEntity("quang trung và nguyễn huệ có phải là một người không?")
	assert.True(t, id.Same)
	assert.Equal(t, kb.CategoryPerson, id.Category)
	assert.Equal(t, "nguyễn huệ", id.Canonical)
	assert.Equal(t, []string{"quang trung", "nguyễn huệ"}, id.Names)

	assert.False(t, r.SameEntity("trần hưng đạo và lê lợi").Same)
	// The contained alias is not a second name.
	assert.False(t, r.SameEntity("vua quang trung là ai").Same)
}
