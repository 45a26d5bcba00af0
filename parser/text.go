package parser

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"
)

// leadingYearRe matches timeline lines such as "1288, Trần Hưng Đạo ..." or
// "Năm 1945: ...".
var leadingYearRe = regexp.MustCompile(`^(?i:năm\s+)?(\d{1,4})(?:\s*[–-]\s*(\d{1,4}))?\s*[,:.–-]\s*`)

// TextParser handles plain timeline files with one event per line. Lines
// shorter than MinRunes are skipped.
type TextParser struct {
	MinRunes int
}

func (p *TextParser) SupportedFormats() []string { return []string{"txt"} }

func (p *TextParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading text file: %w", err)
	}
	defer f.Close()

	minRunes := p.MinRunes
	if minRunes <= 0 {
		minRunes = 30
	}

	res := &ParseResult{Format: "txt"}
	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text := strings.Join(strings.Fields(sc.Text()), " ")
		if text == "" {
			continue
		}
		if utf8.RuneCountInString(text) < minRunes {
			res.Skipped++
			continue
		}
		res.Records = append(res.Records, newRecord(timelineFields(text), sourceAt(path, line)))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading text file: %w", err)
	}
	return res, nil
}

func timelineFields(text string) map[string]any {
	fields := map[string]any{"story": text}
	if m := leadingYearRe.FindStringSubmatch(text); m != nil {
		year := m[1]
		if m[2] != "" {
			year += "-" + m[2]
		}
		fields["year"] = year
		fields["story"] = strings.TrimSpace(text[len(m[0]):])
	}
	return fields
}
