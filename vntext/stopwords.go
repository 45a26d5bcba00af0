package vntext

var stopwords = map[string]bool{
	"là": true, "gì": true, "của": true, "và": true, "hay": true, "hoặc": true, "có": true,
	"không": true, "được": true, "bị": true, "cho": true, "với": true, "từ": true, "đến": true,
	"trong": true, "ngoài": true, "về": true, "theo": true, "như": true, "hãy": true, "kể": true,
	"nêu": true, "liệt": true, "tóm": true, "tắt": true, "mô": true, "tả": true, "giải": true,
	"thích": true, "tôi": true, "bạn": true, "ai": true, "nào": true, "đâu": true, "sao": true,
	"thế": true, "nhé": true, "ạ": true, "vậy": true, "rồi": true, "nha": true, "nhỉ": true,
	"này": true, "đó": true, "kia": true, "ấy": true, "những": true, "các": true, "một": true,
	"mọi": true, "mỗi": true, "nhiều": true, "ít": true, "ra": true, "lên": true, "xuống": true,
	"vào": true, "đi": true, "lại": true, "đã": true, "đang": true, "sẽ": true, "cũng": true,
	"rất": true, "quá": true, "lắm": true, "nhất": true, "hơn": true, "năm": true,
}

// IsStopword reports whether a normalised word carries no meaning for
// relevance scoring.
func IsStopword(w string) bool { return stopwords[w] }

// SignificantWords returns the distinct non-stopword words of s with at
// least two runes, in order of appearance.
func SignificantWords(s string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, w := range Words(s) {
		if seen[w] || stopwords[w] || len([]rune(w)) < 2 {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}
