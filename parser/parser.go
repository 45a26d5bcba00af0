// Package parser reads corpus files into loosely typed event records.
//
// Records are not validated here; kb.NewDocument coerces their fields when
// they are loaded.
package parser

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/go-crypt/x/blake2b"
)

// Record is one event row read from a file.
type Record struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
	Source string         `json:"source"` // file plus line, row or index
}

// ParseResult is what a parser produces from a corpus file.
type ParseResult struct {
	Records []Record
	Skipped int    // rows that were not objects or were empty
	Format  string // "json", "jsonl", "xlsx", "txt"
}

// Parser can parse a specific corpus format.
type Parser interface {
	Parse(ctx context.Context, path string) (*ParseResult, error)
	SupportedFormats() []string
}

// RecordID returns the record's own id when it has one, otherwise an id
// derived from its content so re-imports of the same row are stable.
func RecordID(fields map[string]any) string {
	switch v := fields["id"].(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
	case int:
		return strconv.Itoa(v)
	}
	// encoding/json sorts map keys, so the encoding is canonical
	b, _ := json.Marshal(fields)
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write(b)
	return "rec-" + hex.EncodeToString(h.Sum(nil))
}

func newRecord(fields map[string]any, source string) Record {
	return Record{ID: RecordID(fields), Fields: fields, Source: source}
}

func sourceAt(path string, n int) string {
	return fmt.Sprintf("%s:%d", path, n)
}

func empty(fields map[string]any) bool {
	for _, v := range fields {
		switch x := v.(type) {
		case nil:
		case string:
			if x != "" {
				return false
			}
		case []any:
			if len(x) > 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
