//go:build cgo

package store

import "testing"

func TestSanitizeFTSQuery(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"???", ""},
		{"là", ""},
		{"Điện Biên Phủ", `"điện biên phủ" OR "điện" OR "biên" OR "phủ"`},
		{`Trận "Bạch Đằng" là gì?`, `"trận bạch đằng là gì" OR "trận" OR "bạch" OR "đằng"`},
		{"a OR b", `"a or b"`},
		{"1945", `"1945"`},
		{"Lý-Trần", `"lý trần" OR "lý" OR "trần"`},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := sanitizeFTSQuery(tt.in); got != tt.want {
				t.Fatalf("sanitizeFTSQuery(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
