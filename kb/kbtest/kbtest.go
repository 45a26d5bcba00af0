// Package kbtest provides a small fixed corpus for tests across packages.
package kbtest

import (
	"fmt"
	"testing"

	"github.com/brunobiangulo/historymind/kb"
)

// Records returns the raw fixture records, including one with a list-valued
// year and a non-string story.
func Records() []map[string]any {
	return []map[string]any{
		{
			"id": "bachdang-938", "year": 938, "title": "Chiến thắng Bạch Đằng",
			"story":   "Ngô Quyền đánh tan quân Nam Hán trên sông Bạch Đằng, chấm dứt thời kỳ Bắc thuộc.",
			"dynasty": "nhà ngô", "persons": []any{"ngô quyền"}, "places": []any{"sông bạch đằng"},
			"keywords": []any{"bạch_đằng", "nam hán"}, "tone": "heroic",
		},
		{
			"id": "doido-1010", "year": 1010, "title": "Chiếu dời đô",
			"story":   "Lý Công Uẩn ban Chiếu dời đô từ Hoa Lư về Thăng Long.",
			"dynasty": "nhà lý", "persons": []any{"lý công uẩn"}, "places": []any{"thăng long", "hoa lư"},
			"keywords": []any{"dời đô"}, "tone": "neutral",
		},
		{
			"id": "nhunguyet-1077", "year": "1077", "title": "Phòng tuyến Như Nguyệt",
			"story":   "Lý Thường Kiệt chỉ huy phòng tuyến sông Như Nguyệt đánh bại quân Tống.",
			"dynasty": "nhà lý", "persons": []any{"lý thường kiệt"}, "places": []any{"sông như nguyệt"},
			"keywords": []any{"như nguyệt", "chống tống"}, "tone": "heroic",
		},
		{
			"id": "bachdang-1288", "year": 1288, "title": "Chiến thắng Bạch Đằng năm 1288",
			"story":   "Trần Hưng Đạo chỉ huy quân dân nhà Trần đại phá quân Nguyên trên sông Bạch Đằng.",
			"dynasty": "nhà trần", "persons": []any{"trần hưng đạo"}, "persons_all": []any{"trần nhân tông"},
			"places": []any{"sông bạch đằng"}, "keywords": []any{"bạch đằng", "kháng chiến chống nguyên mông"},
			"tone": "heroic",
		},
		{
			"id": "bachdang-1288-aug", "year": 1288.0, "title": "Bạch Đằng 1288",
			"story":   "Trần Hưng Đạo chỉ huy quân dân nhà Trần đại phá quân Nguyên trên sông Bạch Đằng!",
			"dynasty": "nhà trần", "persons": []any{"trần hưng đạo"},
			"keywords": []any{"bạch đằng"}, "tone": "heroic",
		},
		{
			"id": "lamson-1428", "year": 1428, "title": "Lê Lợi lên ngôi",
			"story":   "Sau mười năm khởi nghĩa Lam Sơn, Lê Lợi lên ngôi hoàng đế, mở ra nhà Lê sơ.",
			"dynasty": "nhà lê sơ", "persons": []any{"lê lợi", "nguyễn trãi"},
			"keywords": []any{"khởi nghĩa lam sơn"}, "tone": "heroic",
		},
		{
			"id": "dongda-1789", "year": 1789, "title": "Chiến thắng Ngọc Hồi – Đống Đa",
			"story":   "Vua Quang Trung đại phá quân Thanh ở Ngọc Hồi – Đống Đa, giải phóng Thăng Long.",
			"dynasty": "tây sơn", "persons": []any{"quang trung"}, "places": []any{"thăng long"},
			"keywords": []any{"ngọc hồi đống đa", "chống thanh"}, "tone": "heroic",
		},
		{
			"id": "gialong-1802", "year": 1802, "title": "Nhà Nguyễn thành lập",
			"story":   "Nguyễn Ánh lên ngôi, lấy niên hiệu Gia Long, lập ra nhà Nguyễn.",
			"dynasty": "nhà nguyễn", "persons": []any{"nguyễn ánh"}, "places": []any{"phú xuân"},
			"keywords": []any{"gia long"}, "tone": "neutral",
		},
		{
			"id": "dang-1930", "year": 1930, "title": "Thành lập Đảng",
			"story":   "Nguyễn Ái Quốc chủ trì hội nghị thành lập Đảng Cộng sản Việt Nam.",
			"persons": []any{"nguyễn ái quốc"}, "keywords": []any{"thành lập đảng", "việt nam"},
			"tone": "neutral",
		},
		{
			"id": "cmtt-1945", "year": 1945, "title": "Cách mạng tháng Tám",
			"story":   "Cách mạng tháng Tám thành công, Chủ tịch Hồ Chí Minh đọc bản Tuyên ngôn độc lập tại Ba Đình.",
			"persons": []any{"hồ chí minh"}, "places": []any{"ba đình", "hà nội"},
			"keywords": []any{"cách mạng tháng tám", "tuyên ngôn độc lập"}, "tone": "heroic",
		},
		{
			"id": "khangchien-1946", "year": "1946-1954", "title": "Kháng chiến chống Pháp",
			"story":   "Cuộc kháng chiến chống thực dân Pháp kéo dài chín năm trên toàn quốc.",
			"keywords": []any{"kháng chiến chống pháp"}, "tone": "heroic",
		},
		{
			"id": "dbp-1954", "year": 1954, "title": "Chiến thắng Điện Biên Phủ",
			"story":   "Quân đội nhân dân Việt Nam do Đại tướng Võ Nguyên Giáp chỉ huy giành chiến thắng Điện Biên Phủ.",
			"persons": []any{"võ nguyên giáp"}, "places": []any{"điện biên phủ"},
			"keywords": []any{"điện biên phủ", "kháng chiến chống pháp"}, "tone": "heroic",
		},
		{
			"id": "hcm-1969", "year": 1969, "title": "Chủ tịch Hồ Chí Minh qua đời",
			"story":   "Chủ tịch Hồ Chí Minh qua đời tại Hà Nội, để lại bản Di chúc lịch sử.",
			"persons": []any{"hồ chí minh"}, "places": []any{"hà nội"}, "tone": "tragic",
		},
		{
			"id": "thongnhat-1975", "year": 1975, "title": "Giải phóng miền Nam",
			"story":   "Chiến dịch mùa xuân toàn thắng, giải phóng hoàn toàn miền Nam, thống nhất đất nước.",
			"persons_all": []any{"văn tiến dũng"}, "places": []any{"sài gòn"},
			"keywords": []any{"giải phóng miền nam"}, "tone": "heroic",
		},
		{
			"id": "malformed-list-year", "year": []any{"1945", "1946"}, "title": "Bản ghi lỗi",
			"story": 42, "keywords": []any{"tuyên ngôn độc lập"}, "tone": true,
		},
	}
}

// Documents returns the fixture records normalised into documents.
func Documents() []kb.Document {
	recs := Records()
	docs := make([]kb.Document, len(recs))
	for i, r := range recs {
		docs[i] = kb.NewDocument(r, fmt.Sprintf("doc-%d", i))
	}
	return docs
}

// Snapshot builds the fixture snapshot against the embedded knowledge base.
func Snapshot(t testing.TB) *kb.Snapshot {
	t.Helper()
	k, err := kb.DefaultKnowledge()
	if err != nil {
		t.Fatalf("loading default knowledge: %v", err)
	}
	return kb.Build(Documents(), k)
}
