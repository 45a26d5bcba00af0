package parser

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// listColumns are split into string lists.
var listColumns = map[string]bool{
	"persons": true, "persons_all": true, "places": true, "keywords": true, "nature": true,
}

// XLSXParser reads every sheet whose first row is a header of field names.
type XLSXParser struct{}

func (p *XLSXParser) SupportedFormats() []string { return []string{"xlsx"} }

func (p *XLSXParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening XLSX: %w", err)
	}
	defer f.Close()

	res := &ParseResult{Format: "xlsx"}
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil || len(rows) < 2 {
			continue
		}

		header := make([]string, len(rows[0]))
		for i, h := range rows[0] {
			header[i] = columnName(h)
		}

		for n, row := range rows[1:] {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			fields := make(map[string]any, len(header))
			for i, cell := range row {
				if i >= len(header) || header[i] == "" {
					continue
				}
				cell = strings.TrimSpace(cell)
				if listColumns[header[i]] {
					fields[header[i]] = splitList(cell)
				} else {
					fields[header[i]] = cell
				}
			}
			if empty(fields) {
				res.Skipped++
				continue
			}
			// spreadsheet rows are 1-based and the header is row 1
			res.Records = append(res.Records, newRecord(fields, fmt.Sprintf("%s#%s:%d", path, sheet, n+2)))
		}
	}

	if len(res.Records) == 0 && res.Skipped == 0 {
		return nil, fmt.Errorf("no data found in XLSX")
	}
	return res, nil
}

func columnName(h string) string {
	return strings.Join(strings.Fields(strings.ToLower(h)), "_")
}

// splitList splits a cell on ";" or, when it has none, on ",".
func splitList(cell string) []any {
	if cell == "" {
		return []any{}
	}
	sep := ";"
	if !strings.Contains(cell, sep) {
		sep = ","
	}
	var out []any
	for _, part := range strings.Split(cell, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
