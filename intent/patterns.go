package intent

import "github.com/brunobiangulo/historymind/vntext"

type pattern = vntext.Pattern

var (
	compile = vntext.MustCompile
	phrases = vntext.Phrases
)

func anyMatch(ps []pattern, text, folded string) bool { return vntext.MatchAny(ps, text, folded) }

// Meta conversation. Greeting, thanks and goodbye only apply to short
// messages so that "xin chào, năm 1945 có gì" still reaches retrieval.
var (
	greetingPatterns = []pattern{
		phrases(`hello`, `hi`, `hey`, `good morning`, `good afternoon`, `good evening`,
			`how are you`, `nice to meet you`),
		phrases(`xin chào`, `chào bạn`, `chào`, `chào buổi sáng`, `chào buổi chiều`, `chào buổi tối`,
			`bạn khỏe không`, `bạn có khỏe không`, `rất vui được gặp`, `alo`, `alô`, `hê lô`, `chào cậu`),
	}
	thanksPatterns = []pattern{
		phrases(`thank you`, `thanks`, `thank`, `thx`, `cảm ơn`, `cám ơn`, `xin cảm ơn`),
	}
	goodbyePatterns = []pattern{
		phrases(`bye`, `goodbye`, `see you`, `take care`, `tạm biệt`, `hẹn gặp lại`, `bái bai`),
	}
	// Checked before identity: "ai tạo ra bạn" also contains "bạn".
	creatorPatterns = []pattern{
		phrases(`ai tạo ra`, `ai phát triển`, `ai xây dựng`, `ai làm ra`, `ai tạo bạn`, `ai đã tạo`,
			`được tạo bởi`, `tạo ra bạn`, `phát triển bạn`, `created by`, `made by`, `who made you`,
			`who created you`, `who built you`),
	}
	identityPatterns = []pattern{
		phrases(`bạn là ai`, `giới thiệu bản thân`, `tên bạn là gì`, `tên của bạn`, `bạn tên gì`,
			`giới thiệu về bạn`, `who are you`, `what is your name`),
	}
)

const maxSmallTalkWords = 5

var dataScopePatterns = []pattern{
	compile(`có\s+dữ\s*(?:liệu|kiện)\s+(?:từ|gì|về|nào)`),
	compile(`dữ\s*(?:liệu|kiện)\s+(?:của\s+)?bạn`),
	compile(`bạn\s+(?:có\s+)?(?:biết|có)\s+(?:dữ|lịch\s+sử\s+(?:từ|đến))`),
	compile(`dataset\s+(?:của|bạn)`),
	compile(`phạm\s+vi\s+(?:dữ\s*liệu|kiến\s+thức)`),
	compile(`có\s+lịch\s+sử\s+đến\s+năm`),
	compile(`biết\s+(?:từ|đến)\s+năm\s+nào`),
	compile(`bao\s+nhiêu\s+sự\s+kiện`),
}

// Fact-check assertions. Group 1 is the claimed year.
var factCheckPatterns = []pattern{
	compile(`năm\s+(\d{2,4})\s*,?\s*(?:có\s+)?(?:đúng|phải)\s+(?:không|chứ|chăng)`),
	compile(`^có\s+phải\s+(?:là\s+)?.+?\s(?:vào\s+)?năm\s+(\d{2,4})`),
	compile(`có\s+đúng\s+(?:là\s+)?.+?\s(?:vào\s+)?năm\s+(\d{2,4})`),
	compile(`(?:^liệu|có\s+thật\s+là)\s+.+?\s(?:vào\s+)?năm\s+(\d{2,4})`),
	compile(`(?:^|\s)(\d{2,4})\s*,?\s*(?:có\s+)?(?:đúng|phải)\s+(?:không|chứ)`),
	compile(`năm\s+(\d{2,4})\s+(?:à|hả|nhỉ|ư)\s*\??\s*$`),
	compile(`(?:^|\s)(\d{2,4})\s*,\s*(?:không|chứ)\s*\??\s*$`),
	compile(`is\s+it\s+true\s+that\s+.+?\s+in\s+(\d{2,4})`),
	compile(`in\s+(\d{2,4})\s*,?\s*(?:right|correct|true)\s*\??\s*$`),
	compile(`in\s+(\d{2,4})\s*,\s*no\s*\??\s*$`),
	compile(`^did\s+.+?\s+in\s+(\d{2,4})\s*\??\s*$`),
}

// Assertions without a year: the answer states the year instead.
var yearlessFactCheckPatterns = []pattern{
	compile(`^có\s+đúng\s+là\s+`),
	compile(`^có\s+phải\s+(?:là\s+)?(?:năm|vào)\s`),
	compile(`(?:đúng|phải)\s+không\s*\??\s*$`),
	compile(`^is\s+it\s+true\s+that\s`),
}

var rangePatterns = []pattern{
	compile(`(?:năm\s+)?(\d{2,4})\s+(?:đến|tới|cho\s+đến)\s+(?:năm\s+)?(\d{2,4})`),
	compile(`(\d{2,4})\s*[-–—]\s*(\d{2,4})`),
	compile(`(?:between|from)\s+(\d{2,4})\s+(?:and|to)\s+(\d{2,4})`),
}

var (
	relationshipPatterns = []pattern{
		compile(`là\s+gì\s+của\s+nhau`),
		compile(`có\s+quan\s+hệ\s+gì`),
		compile(`liên\s+quan\s+gì`),
		compile(`là\s+ai\s+của`),
		compile(`(?:là|phải\s+là)\s+(?:cùng\s+)?một\s+người`),
		compile(`cùng\s+một\s+(?:người|nhân\s+vật)`),
		compile(`\s+và\s+.+\s+là\s`),
	}
	definitionPatterns = []pattern{
		phrases(`là\s+gì`, `là\s+ai`, `what\s+is`, `who\s+(?:is|was)`),
	}
	broadPatterns = []pattern{
		compile(`lịch\s+sử\s+(?:việt\s*nam|nước\s+ta|dân\s+tộc)`),
		compile(`các\s+(?:cuộc|trận)\s+(?:kháng\s+chiến|chiến\s+tranh)`),
		compile(`toàn\s+bộ\s+lịch\s+sử`),
		compile(`qua\s+các\s+(?:thời\s+kỳ|triều\s+đại|giai\s+đoạn)`),
	}
	resistancePatterns = []pattern{
		phrases(`kháng\s+chiến`, `chống\s+(?:ngoại\s+xâm|giặc)`, `giữ\s+nước`, `bảo\s+vệ\s+(?:tổ\s+quốc|đất\s+nước)`),
	}
)

// Question-type cues, checked scope, when, who, list; anything else is what.
var (
	scopePatterns = []pattern{
		compile(`có\s+dữ\s*(?:liệu|kiện)`),
		compile(`dataset`),
		compile(`bao\s+phủ`),
		compile(`phạm\s+vi`),
		compile(`từ\s+năm\s+(?:bao\s*nhiêu|nào)\s+đến`),
	}
	whenPatterns = []pattern{
		phrases(`năm\s+(?:bao\s*nhiêu|nào|mấy)`, `khi\s+nào`, `bao\s+giờ`, `lúc\s+nào`,
			`xảy\s+ra\s+(?:vào\s+)?(?:năm|khi|lúc)`, `vào\s+(?:thời\s+)?(?:gian|điểm)\s+nào`, `when`),
	}
	whoPatterns = []pattern{
		phrases(`là\s+ai`, `ai\s+là`, `ai\s+đã`, `nhân\s+vật\s+nào`, `who\s+(?:is|was)`),
	}
	listPatterns = []pattern{
		compile(`các\s+(?:sự\s+kiện|cuộc|trận|triều\s+đại|nhân\s+vật)`),
		compile(`những\s+(?:sự\s+kiện|gì|ai)`),
		phrases(`kể\s+(?:tên|về|ra)`, `liệt\s+kê`, `tóm\s+tắt`, `có\s+(?:những\s+)?(?:gì|sự\s+kiện\s+gì)`),
	}
)
