package synth

import (
	"fmt"
	"strings"

	"github.com/brunobiangulo/historymind/constraint"
	"github.com/brunobiangulo/historymind/entity"
	"github.com/brunobiangulo/historymind/intent"
	"github.com/brunobiangulo/historymind/kb"
	"github.com/brunobiangulo/historymind/retrieval"
	"github.com/brunobiangulo/historymind/vntext"
)

const (
	greetingText = "Xin chào! 👋\n\n" +
		"Tôi là **History Mind AI** — trợ lý lịch sử Việt Nam của bạn.\n\n" +
		"Tôi có thể giúp bạn khám phá lịch sử dân tộc. Hãy thử hỏi tôi về:\n\n" +
		"- Các sự kiện lịch sử: *\"Trận Bạch Đằng năm 1288\"*\n" +
		"- Nhân vật anh hùng: *\"Ai là Trần Hưng Đạo?\"*\n" +
		"- Triều đại: *\"Kể về nhà Trần\"*\n" +
		"- So sánh: *\"So sánh nhà Lý và nhà Trần\"*\n\n" +
		"Bạn muốn tìm hiểu về điều gì?"

	identityText = "Xin chào! Tôi là **History Mind AI** — trợ lý lịch sử Việt Nam.\n\n" +
		"Tôi giúp bạn tra cứu lịch sử dân tộc một cách dễ dàng. Bạn có thể hỏi tôi về:\n\n" +
		"- Tra cứu sự kiện theo năm, triều đại hoặc nhân vật\n" +
		"- Những trận chiến nổi tiếng: Bạch Đằng, Chi Lăng, Điện Biên Phủ\n" +
		"- Các triều đại: Lý, Trần, Lê, Nguyễn\n\n" +
		"Hãy thử đặt câu hỏi, tôi sẵn sàng giúp bạn!"

	thanksText = "Rất vui được giúp bạn! 😊\n\n" +
		"Nếu bạn có thêm câu hỏi về lịch sử Việt Nam, đừng ngại hỏi tôi nhé!"

	goodbyeText = "Tạm biệt! 👋\n\n" +
		"Hẹn gặp lại bạn. Chúc bạn một ngày tốt lành!"

	creatorText = "Tôi được xây dựng bởi nhóm phát triển **History Mind**.\n\n" +
		"Tôi trả lời dựa trên một kho dữ kiện lịch sử Việt Nam có chọn lọc, " +
		"kết hợp tìm kiếm ngữ nghĩa và kiểm chứng câu trả lời trước khi gửi đến bạn."

	noDataHead     = "Tôi chưa tìm thấy thông tin phù hợp. Bạn có thể thử:"
	noDataExamples = "- **Hỏi cụ thể hơn** — ví dụ: *\"Trận Bạch Đằng năm 1288\"*\n" +
		"- **Dùng tên nhân vật** — ví dụ: *\"Trần Hưng Đạo đánh quân Nguyên\"*\n" +
		"- **Nêu triều đại** — ví dụ: *\"Nhà Trần có sự kiện gì nổi bật?\"*\n" +
		"- **Tra theo năm** — ví dụ: *\"Năm 1945 có sự kiện gì?\"*"

	conservativeHead = "Tôi tìm thấy các sự kiện liên quan sau:"
)

// Canned returns the fixed response for a meta intent.
func (s *Synthesizer) Canned(i intent.Intent) Draft {
	text := greetingText
	switch i {
	case intent.Thanks:
		text = thanksText
	case intent.Goodbye:
		text = goodbyeText
	case intent.Creator:
		text = creatorText
	case intent.Identity:
		text = identityText
	}
	return Draft{Text: text, Template: TemplateCanned}
}

// Scope describes the loaded corpus.
func (s *Synthesizer) Scope() Draft {
	var st kb.Stats
	if s.snap != nil {
		st = s.snap.Stats()
	}
	if st.Dated == 0 {
		return Draft{
			Text:     "Tôi có dữ kiện lịch sử Việt Nam bao gồm các giai đoạn cổ đại, trung đại, cận đại và hiện đại.",
			Template: TemplateScope,
		}
	}
	text := fmt.Sprintf("Tôi có dữ kiện lịch sử Việt Nam từ năm **%d** đến năm **%d**, với **%d** sự kiện.\n\n",
		st.MinYear, st.MaxYear, st.Documents) +
		"Dữ liệu bao gồm các giai đoạn:\n" +
		"- Cổ đại: Bắc thuộc, Ngô – Đinh – Tiền Lê\n" +
		"- Trung đại: Lý – Trần – Lê\n" +
		"- Cận đại: Nguyễn, Pháp thuộc\n" +
		"- Hiện đại: Cách mạng, Kháng chiến, Đổi mới\n\n" +
		"Bạn có thể hỏi về bất kỳ sự kiện, nhân vật, hoặc triều đại nào!"
	return Draft{Text: text, Template: TemplateScope}
}

var sameLabels = map[kb.Category]string{
	kb.CategoryPerson:  "cùng một người",
	kb.CategoryTopic:   "cùng một chủ đề / sự kiện",
	kb.CategoryDynasty: "cùng một triều đại / thời kỳ",
}

// SameEntity explains that the names of id refer to one entity.
func (s *Synthesizer) SameEntity(id entity.Identity) Draft {
	names := make([]string, len(id.Names))
	for i, n := range id.Names {
		names[i] = "**" + vntext.Title(n) + "**"
	}
	label, ok := sameLabels[id.Category]
	if !ok {
		label = "cùng một thực thể"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s là **%s**.\n\nTên chính: **%s**.", strings.Join(names, " và "), label, vntext.Title(id.Canonical))

	var aliases []string
	if s.snap != nil {
		for _, a := range s.snap.Aliases(id.Category, id.Canonical) {
			if a != id.Canonical {
				aliases = append(aliases, vntext.Title(a))
			}
		}
	}
	if len(aliases) > 0 {
		fmt.Fprintf(&b, "\n\nCác tên gọi khác: %s.", strings.Join(aliases, ", "))
	}
	return Draft{Text: b.String(), Template: TemplateSameEntity}
}

// Conflict renders a rejected question.
func (s *Synthesizer) Conflict(reason string) Draft {
	return Draft{Text: "⚠️ " + reason, Template: TemplateConflict}
}

// NoData suggests rephrasings, echoing the rewritten question when the
// rewriter changed it.
func (s *Synthesizer) NoData(c *constraint.QueryConstraint) Draft {
	var parts []string
	if c != nil && c.Rewritten != "" && vntext.Normalize(c.Rewritten) != vntext.Normalize(c.Raw) {
		parts = append(parts, fmt.Sprintf("Tôi đã hiểu câu hỏi của bạn là: *\"%s\"*", c.Rewritten))
	}
	parts = append(parts, noDataHead+"\n\n"+noDataExamples)
	return Draft{Text: strings.Join(parts, "\n\n"), Template: TemplateNoData}
}

// Conservative lists candidate titles only. It replaces answers that
// failed verification.
func (s *Synthesizer) Conservative(cands []retrieval.Candidate) Draft {
	var lines []string
	var used []retrieval.Candidate
	seen := make(map[string]bool)
	for _, c := range cands {
		if len(used) >= s.cfg.ConservativeCap {
			break
		}
		title := c.Doc.Title
		if title == "" {
			title = c.Doc.Event
		}
		key := vntext.Normalize(title)
		if title == "" || seen[key] {
			continue
		}
		seen[key] = true
		used = append(used, c)
		if c.Doc.Year.Known() {
			lines = append(lines, fmt.Sprintf("- **Năm %s:** %s", c.Doc.Year, title))
		} else {
			lines = append(lines, "- "+title)
		}
	}
	if len(lines) == 0 {
		return s.NoData(nil)
	}
	return Draft{Text: conservativeHead + "\n\n" + strings.Join(lines, "\n"), Used: used, Template: TemplateConservative}
}
