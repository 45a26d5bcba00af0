package synth

// Period is a named era of Vietnamese history used to group long lists.
type Period struct {
	Name string
	From int
	To   int
}

// Periods are checked in order; the first containing a year wins.
var Periods = []Period{
	{"Thời Bắc thuộc", 40, 938},
	{"Thời Ngô – Đinh – Tiền Lê", 939, 1009},
	{"Thời Lý", 1009, 1225},
	{"Thời Trần", 1225, 1400},
	{"Thời Hồ", 1400, 1407},
	{"Thời Lê sơ", 1428, 1527},
	{"Thời Mạc – Lê Trung Hưng", 1527, 1789},
	{"Thời Tây Sơn", 1789, 1802},
	{"Thời Nguyễn", 1802, 1945},
	{"Pháp thuộc", 1858, 1945},
	{"Cách mạng tháng Tám & Kháng chiến chống Pháp", 1945, 1954},
	{"Kháng chiến chống Mỹ", 1954, 1975},
	{"Thống nhất – Đổi mới – Hiện đại", 1975, 2025},
}

const otherPeriod = "Khác"

// PeriodOf returns the index into Periods for y, or -1.
func PeriodOf(y int) int {
	for i, p := range Periods {
		if y >= p.From && y <= p.To {
			return i
		}
	}
	return -1
}
