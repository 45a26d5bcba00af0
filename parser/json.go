package parser

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// containerKeys are the object fields that may wrap a record array.
var containerKeys = []string{"documents", "events", "records"}

// JSONParser reads a JSON array of records, or an object holding one under
// a container key such as "documents".
type JSONParser struct{}

func (p *JSONParser) SupportedFormats() []string { return []string{"json"} }

func (p *JSONParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading JSON: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return &ParseResult{Format: "json"}, nil
	}

	var items []json.RawMessage
	if data[0] == '{' {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil, fmt.Errorf("decoding JSON: %w", err)
		}
		for _, k := range containerKeys {
			if raw, ok := obj[k]; ok {
				if err := json.Unmarshal(raw, &items); err != nil {
					return nil, fmt.Errorf("decoding %q array: %w", k, err)
				}
				break
			}
		}
		if items == nil {
			// a single record
			items = []json.RawMessage{data}
		}
	} else if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decoding JSON: %w", err)
	}

	res := &ParseResult{Format: "json"}
	for i, raw := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var fields map[string]any
		if err := json.Unmarshal(raw, &fields); err != nil || empty(fields) {
			res.Skipped++
			continue
		}
		res.Records = append(res.Records, newRecord(fields, sourceAt(path, i)))
	}
	return res, nil
}

// JSONLParser reads one JSON object per line. Blank lines are ignored and
// malformed lines are counted as skipped.
type JSONLParser struct{}

func (p *JSONLParser) SupportedFormats() []string { return []string{"jsonl", "ndjson"} }

func (p *JSONLParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening JSONL: %w", err)
	}
	defer f.Close()

	res := &ParseResult{Format: "jsonl"}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var fields map[string]any
		if err := json.Unmarshal([]byte(text), &fields); err != nil || empty(fields) {
			res.Skipped++
			continue
		}
		res.Records = append(res.Records, newRecord(fields, sourceAt(path, line)))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading JSONL: %w", err)
	}
	return res, nil
}
