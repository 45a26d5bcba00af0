package vntext

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "trần hưng đạo", Normalize("  Trần   HƯNG\tĐạo "))
	// Decomposed input is recomposed.
	assert.Equal(t, Normalize("Lê Lợi"), Normalize("Lê Lợi"))
}

func TestStripDiacritics(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"trần hưng đạo", "tran hung dao"},
		{"Điện Biên Phủ", "Dien Bien Phu"},
		{"nguyễn", "nguyen"},
		{"nguyên", "nguyen"},
		{"hello", "hello"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StripDiacritics(tt.in), tt.in)
	}
}

func TestLooksUnaccented(t *testing.T) {
	assert.True(t, LooksUnaccented("tran hung dao danh quan nguyen"))
	assert.False(t, LooksUnaccented("trần hưng đạo"))
	assert.True(t, LooksUnaccented("1945"))
}

func TestKeyIgnoresPunctuationAndSpace(t *testing.T) {
	assert.Equal(t, Key("Chiến thắng Bạch Đằng!"), Key("chiến thắng, bạch   đằng"))
}

func TestContainsPhrase(t *testing.T) {
	assert.True(t, ContainsPhrase("Trận Bạch Đằng năm 938", "bạch đằng"))
	assert.False(t, ContainsPhrase("nhà lýa", "nhà lý"))
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("abc", "ABC"))
	assert.InDelta(t, 0.75, Similarity("abcd", "abce"), 1e-9)
	assert.Equal(t, 3, Levenshtein("kitten", "sitting"))
}

func TestFuzzyDenylist(t *testing.T) {
	pairs := [][2]string{
		{"nguyên", "nguyễn"},
		{"nguyễn", "nguyên"},
		{"quân nguyên", "quân nguyễn"},
		{"nguyên mông", "nguyễn mông"},
	}
	for _, p := range pairs {
		for _, th := range []float64{0, 0.5, 0.85, 1} {
			assert.False(t, FuzzyEqual(p[0], p[1], th), "%q vs %q at %.2f", p[0], p[1], th)
		}
	}
	assert.False(t, FuzzyContains("chống quân nguyễn", "nguyên", ContainsThreshold))
	assert.True(t, FuzzyContains("chống quân nguyên", "nguyên", ContainsThreshold))
}

func TestFuzzyContains(t *testing.T) {
	assert.True(t, FuzzyContains("chiến thắng điện biên phủ", "điện biên phủ", ContainsThreshold))
	assert.True(t, FuzzyContains("tran hung dao", "tran hung dau", AccentThreshold))
	assert.False(t, FuzzyContains("lý thường kiệt", "lê lợi", ContainsThreshold))
}

func TestReplacePhrase(t *testing.T) {
	got, ok := ReplacePhrase("vn và vnx, vn?", "vn", "việt nam")
	assert.True(t, ok)
	assert.Equal(t, "việt nam và vnx, việt nam?", got)

	got, ok = ReplacePhrase("trần hưng đạo", "hưng", "x")
	assert.True(t, ok)
	assert.Equal(t, "trần x đạo", got)

	_, ok = ReplacePhrase("nguyễn", "nguy", "x")
	assert.False(t, ok)
}

func TestTokenize(t *testing.T) {
	toks := Tokenize("năm 1945, đúng không?")
	if assert.Len(t, toks, 4) {
		assert.Equal(t, "1945", toks[1].Text)
		assert.Equal(t, "năm 1945, đúng không?"[toks[2].Start:toks[2].End], "đúng")
	}
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "Trần Hưng Đạo", Title("trần hưng đạo"))
	assert.Equal(t, "Đinh Bộ Lĩnh", Title("đinh bộ lĩnh"))
}
